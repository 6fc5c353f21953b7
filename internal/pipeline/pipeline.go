// Package pipeline implements the per-recall label processing pipeline.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/recallwatch/labelworker/internal/labels"
	"github.com/recallwatch/labelworker/internal/render"
	"github.com/recallwatch/labelworker/internal/scratch"
	"github.com/recallwatch/labelworker/internal/storage"
	"github.com/recallwatch/labelworker/internal/store"
)

// Extractor recovers candidate document URLs from summary markup.
type Extractor interface {
	Extract(markup string) []string
}

// Downloader fetches one URL to a scratch file.
type Downloader interface {
	Download(ctx context.Context, url, dest string) (int64, error)
}

// PageRenderer rasterizes a PDF's pages, tolerating partial failure.
type PageRenderer interface {
	RenderAll(pdfPath, outDir string) []render.Page
}

// Normalizer produces one web-servable output per input image.
type Normalizer interface {
	Normalize(inputPath string) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the wall-clock time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Status classifies the outcome of one recall's pipeline run.
type Status string

// Pipeline outcome statuses.
const (
	StatusProcessed Status = "processed"
	StatusNoLabels  Status = "no_labels"
	StatusSkipped   Status = "skipped"
	StatusError     Status = "error"
)

// Result summarizes one recall's pipeline run.
type Result struct {
	RecallID      string
	Status        Status
	URLCount      int
	ArtifactCount int
	ImageCount    int
	HasErrors     bool
	ProcessedAt   time.Time
}

// Config controls pipeline behavior.
type Config struct {
	// StoragePrefix is prepended to every object key.
	StoragePrefix string
}

// Pipeline drives one recall through extract, fetch, classify, render,
// normalize, upload and the final metadata write.
type Pipeline struct {
	extractor  Extractor
	fetcher    Downloader
	renderer   PageRenderer
	normalizer Normalizer
	objects    storage.ObjectStore
	recalls    store.RecallStore
	scratch    *scratch.Dir
	caps       labels.Capabilities
	clock      Clock
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Pipeline.
func New(
	extractor Extractor,
	fetcher Downloader,
	renderer PageRenderer,
	normalizer Normalizer,
	objects storage.ObjectStore,
	recalls store.RecallStore,
	scratchDir *scratch.Dir,
	caps labels.Capabilities,
	clock Clock,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		extractor:  extractor,
		fetcher:    fetcher,
		renderer:   renderer,
		normalizer: normalizer,
		objects:    objects,
		recalls:    recalls,
		scratch:    scratchDir,
		caps:       caps,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Process runs the whole pipeline for one recall. Individual document
// failures become error artifacts; only the final metadata write can fail
// the recall, in which case nothing was persisted for this run.
func (p *Pipeline) Process(ctx context.Context, recall labels.Recall) (Result, error) {
	urls := p.extractor.Extract(recall.Summary)
	if len(urls) == 0 {
		return Result{RecallID: recall.ID, Status: StatusNoLabels}, nil
	}

	var artifacts []labels.Artifact
	for i, u := range urls {
		artifacts = append(artifacts, p.processDocument(ctx, recall.ID, i, u)...)
	}

	imageCount := 0
	hasErrors := false
	for _, a := range artifacts {
		if a.Type == labels.ArtifactError {
			hasErrors = true
			continue
		}
		imageCount++
	}

	processedAt := p.clock.Now()
	update := labels.ImageUpdate{
		ProcessedImages:   artifacts,
		ExtractedURLs:     urls,
		TotalImageCount:   imageCount,
		HasErrors:         hasErrors,
		ImagesProcessedAt: processedAt,
	}
	if err := p.recalls.UpdateRecallImages(ctx, recall.ID, update); err != nil {
		return Result{}, fmt.Errorf("update recall %s: %w", recall.ID, err)
	}
	labels.TotalRecallsProcessed.Inc()

	p.logger.Info("recall processed",
		zap.String("recall_id", recall.ID),
		zap.Int("urls", len(urls)),
		zap.Int("artifacts", len(artifacts)),
		zap.Int("images", imageCount),
		zap.Bool("has_errors", hasErrors),
	)
	return Result{
		RecallID:      recall.ID,
		Status:        StatusProcessed,
		URLCount:      len(urls),
		ArtifactCount: len(artifacts),
		ImageCount:    imageCount,
		HasErrors:     hasErrors,
		ProcessedAt:   processedAt,
	}, nil
}

// processDocument handles one source URL end to end. Its scratch files are
// removed once its artifacts are finalized, success or not.
func (p *Pipeline) processDocument(ctx context.Context, recallID string, index int, rawURL string) []labels.Artifact {
	filename := documentFilename(rawURL)

	docDir, err := p.scratch.DocumentDir(recallID, index)
	if err != nil {
		return []labels.Artifact{p.errorArtifact(filename, rawURL, fmt.Errorf("scratch dir: %w", err))}
	}
	defer func() {
		if err := os.RemoveAll(docDir); err != nil {
			p.logger.Warn("document scratch cleanup failed",
				zap.String("dir", docDir),
				zap.Error(err),
			)
		}
	}()

	dest := filepath.Join(docDir, filename)
	size, err := p.fetcher.Download(ctx, rawURL, dest)
	if err != nil {
		labels.TotalFetchErrors.Inc()
		p.logger.Warn("document download failed",
			zap.String("recall_id", recallID),
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return []labels.Artifact{p.errorArtifact(filename, rawURL, err)}
	}
	labels.TotalDocumentsFetched.Inc()
	downloadedAt := p.clock.Now()

	if labels.Classify(filename) == labels.KindPDF {
		return p.processPDF(ctx, recallID, index, rawURL, filename, dest, docDir, size, downloadedAt)
	}
	return []labels.Artifact{p.processImage(ctx, recallID, index, rawURL, filename, dest, downloadedAt)}
}

func (p *Pipeline) processPDF(
	ctx context.Context,
	recallID string,
	index int,
	rawURL string,
	filename string,
	pdfPath string,
	docDir string,
	pdfSize int64,
	downloadedAt time.Time,
) []labels.Artifact {
	var pages []render.Page
	if p.caps.RenderPDF && p.renderer != nil {
		pages = p.renderer.RenderAll(pdfPath, docDir)
	}

	if len(pages) == 0 {
		// Rendering unavailable or nothing rasterized: store the original
		// PDF unmodified as the single artifact.
		key := p.buildKey(recallID, index, filename)
		publicURL, err := p.objects.Upload(ctx, pdfPath, key)
		if err != nil {
			return []labels.Artifact{p.errorArtifact(filename, rawURL, err)}
		}
		labels.TotalArtifactsUploaded.Inc()
		return []labels.Artifact{{
			OriginalFilename: filename,
			Type:             labels.ArtifactPDF,
			SourceURL:        rawURL,
			StorageURL:       publicURL,
			StoragePath:      key,
			MimeType:         storage.ContentTypeFor(key),
			SizeBytes:        pdfSize,
			DownloadedAt:     downloadedAt,
		}}
	}

	var artifacts []labels.Artifact
	for _, page := range pages {
		out, err := p.normalizer.Normalize(page.Path)
		if err != nil {
			artifacts = append(artifacts, p.errorArtifact(filename, rawURL,
				fmt.Errorf("normalize page %d: %w", page.Number, err)))
			continue
		}
		key := p.buildKey(recallID, index, filepath.Base(out))
		publicURL, err := p.objects.Upload(ctx, out, key)
		if err != nil {
			artifacts = append(artifacts, p.errorArtifact(filename, rawURL,
				fmt.Errorf("upload page %d: %w", page.Number, err)))
			continue
		}
		labels.TotalArtifactsUploaded.Inc()
		artifacts = append(artifacts, labels.Artifact{
			OriginalFilename: filename,
			Type:             labels.ArtifactPDFPage,
			Page:             page.Number,
			SourceURL:        rawURL,
			StorageURL:       publicURL,
			StoragePath:      key,
			MimeType:         storage.ContentTypeFor(key),
			SizeBytes:        fileSize(out),
			DownloadedAt:     downloadedAt,
		})
	}
	return artifacts
}

func (p *Pipeline) processImage(
	ctx context.Context,
	recallID string,
	index int,
	rawURL string,
	filename string,
	imagePath string,
	downloadedAt time.Time,
) labels.Artifact {
	out, err := p.normalizer.Normalize(imagePath)
	if err != nil {
		return p.errorArtifact(filename, rawURL, fmt.Errorf("normalize image: %w", err))
	}
	key := p.buildKey(recallID, index, filepath.Base(out))
	publicURL, err := p.objects.Upload(ctx, out, key)
	if err != nil {
		return p.errorArtifact(filename, rawURL, err)
	}
	labels.TotalArtifactsUploaded.Inc()
	return labels.Artifact{
		OriginalFilename: filename,
		Type:             labels.ArtifactImage,
		SourceURL:        rawURL,
		StorageURL:       publicURL,
		StoragePath:      key,
		MimeType:         storage.ContentTypeFor(key),
		SizeBytes:        fileSize(out),
		DownloadedAt:     downloadedAt,
	}
}

func (p *Pipeline) errorArtifact(filename, attemptedURL string, err error) labels.Artifact {
	return labels.Artifact{
		OriginalFilename: filename,
		Type:             labels.ArtifactError,
		SourceURL:        attemptedURL,
		AttemptedURL:     attemptedURL,
		Error:            err.Error(),
		DownloadedAt:     p.clock.Now(),
	}
}

func (p *Pipeline) buildKey(recallID string, index int, base string) string {
	prefix := strings.Trim(p.cfg.StoragePrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/doc%02d/%s", recallID, index+1, base)
	}
	return fmt.Sprintf("%s/%s/doc%02d/%s", prefix, recallID, index+1, base)
}

// documentFilename derives the decoded basename of the source URL, falling
// back to a generic name when the URL has no usable path.
func documentFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "document"
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return "document"
	}
	return base
}

func fileSize(p string) int64 {
	info, err := os.Stat(p)
	if err != nil {
		return 0
	}
	return info.Size()
}
