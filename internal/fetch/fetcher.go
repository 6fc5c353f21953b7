// Package fetch downloads label documents to scratch files using gocolly.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Some agency document hosts reject obvious bot clients, so a realistic
// browser user-agent is required.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

const maxDocumentBytes = 50 * 1024 * 1024

// Config controls download behavior.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

// Error is returned once every download attempt for a URL has failed. It
// carries the last underlying cause.
type Error struct {
	URL      string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("download %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fetcher downloads single documents with bounded retry.
type Fetcher struct {
	cfg    Config
	base   *colly.Collector
	logger *zap.Logger
}

// New builds a Fetcher. Zero config fields get the production defaults:
// 3 attempts, 2s fixed inter-attempt delay, 30s per-request timeout.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	c.MaxBodySize = maxDocumentBytes
	c.WithTransport(newHTTPTransport())

	return &Fetcher{cfg: cfg, base: c, logger: logger}
}

// Download fetches url and writes the body to dest, returning the number of
// bytes written. Attempts are sequential with a fixed delay; exhausting them
// returns a *Error wrapping the last cause.
func (f *Fetcher) Download(ctx context.Context, url, dest string) (int64, error) {
	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return 0, &Error{URL: url, Attempts: attempt - 1, Err: ctx.Err()}
			case <-time.After(f.cfg.RetryDelay):
			}
		}

		n, err := f.attempt(ctx, url, dest)
		if err == nil {
			return n, nil
		}
		lastErr = err
		f.logger.Warn("download attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return 0, &Error{URL: url, Attempts: f.cfg.MaxAttempts, Err: lastErr}
}

func (f *Fetcher) attempt(ctx context.Context, url, dest string) (int64, error) {
	collector := f.base.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.IgnoreRobotsTxt = true
	collector.AllowURLRevisit = true
	collector.MaxBodySize = maxDocumentBytes
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return 0, err
	}
	if err := os.WriteFile(dest, body, 0o600); err != nil {
		return 0, fmt.Errorf("write scratch file: %w", err)
	}
	return int64(len(body)), nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("download canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
