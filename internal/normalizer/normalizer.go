// Package normalizer resizes and re-encodes raster images for web display.
package normalizer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// Config controls output dimensions and encoding.
type Config struct {
	// Enabled gates optimization; when false every input is copied verbatim.
	Enabled  bool
	MaxWidth int
	Quality  int
}

// Normalizer produces exactly one web-servable output file per input file.
type Normalizer struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a Normalizer. Zero dimension/quality values get production
// defaults (1200px max width, JPEG quality 85).
func New(cfg Config, logger *zap.Logger) *Normalizer {
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 1200
	}
	if cfg.Quality <= 0 {
		cfg.Quality = 85
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{cfg: cfg, logger: logger}
}

// Normalize re-encodes inputPath as a bounded-width JPEG next to the input
// and returns the output path. Images narrower than the bound are never
// upscaled. When optimization is disabled, or the input cannot be decoded,
// the contract degrades to a verbatim copy so callers still get exactly one
// output per input.
func (n *Normalizer) Normalize(inputPath string) (string, error) {
	if !n.cfg.Enabled {
		return n.copyVerbatim(inputPath)
	}

	img, err := imaging.Open(inputPath)
	if err != nil {
		n.logger.Warn("image decode failed, storing verbatim copy",
			zap.String("input", inputPath),
			zap.Error(err),
		)
		return n.copyVerbatim(inputPath)
	}

	if img.Bounds().Dx() > n.cfg.MaxWidth {
		img = imaging.Resize(img, n.cfg.MaxWidth, 0, imaging.Lanczos)
	}

	outPath := n.outputPath(inputPath, ".jpg")
	if err := imaging.Save(img, outPath, imaging.JPEGQuality(n.cfg.Quality)); err != nil {
		return "", fmt.Errorf("save normalized image: %w", err)
	}
	return outPath, nil
}

func (n *Normalizer) copyVerbatim(inputPath string) (string, error) {
	outPath := n.outputPath(inputPath, filepath.Ext(inputPath))

	in, err := os.Open(inputPath)
	if err != nil {
		return "", fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("copy input: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close copy: %w", err)
	}
	return outPath, nil
}

func (n *Normalizer) outputPath(inputPath, ext string) string {
	dir := filepath.Dir(inputPath)
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(dir, stem+"-web"+ext)
}
