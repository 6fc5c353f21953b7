package render

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/recallwatch/labelworker/internal/labels"
)

// Page is one successfully rendered PDF page.
type Page struct {
	Number int
	Path   string
}

// Renderer drives an Engine across every page of a document, tolerating
// per-page failures.
type Renderer struct {
	engine Engine
	logger *zap.Logger
}

// NewRenderer builds a Renderer. A nil engine means rendering is unavailable
// and RenderAll always returns nothing.
func NewRenderer(engine Engine, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{engine: engine, logger: logger}
}

// RenderAll rasterizes every page of the PDF into outDir and returns the
// pages that succeeded. A page-count failure assumes a single page rather
// than blocking progress; individual page failures are skipped. An empty
// result tells the caller to fall back to storing the original PDF.
func (r *Renderer) RenderAll(pdfPath, outDir string) []Page {
	if r.engine == nil {
		return nil
	}

	count, err := r.engine.PageCount(pdfPath)
	if err != nil || count < 1 {
		r.logger.Warn("page count unavailable, assuming one page",
			zap.String("pdf", pdfPath),
			zap.Error(err),
		)
		count = 1
	}

	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	var pages []Page
	for p := 1; p <= count; p++ {
		outPath := filepath.Join(outDir, fmt.Sprintf("%s-page-%d.jpg", stem, p))
		if err := r.engine.RenderPage(pdfPath, p, outPath); err != nil {
			labels.TotalRenderFailures.Inc()
			r.logger.Warn("page render failed",
				zap.String("pdf", pdfPath),
				zap.Int("page", p),
				zap.Error(err),
			)
			continue
		}
		labels.TotalPagesRendered.Inc()
		pages = append(pages, Page{Number: p, Path: outPath})
	}
	return pages
}
