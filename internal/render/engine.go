// Package render rasterizes PDF pages to web-servable images.
package render

import (
	"fmt"
	"image/jpeg"
	"os"

	"github.com/gen2brain/go-fitz"
)

// Engine abstracts the PDF rendering dependency so the pipeline can run
// against a fake in tests.
type Engine interface {
	// PageCount returns the number of pages in the PDF.
	PageCount(pdfPath string) (int, error)
	// RenderPage rasterizes one page (1-based) to an image file at outPath.
	RenderPage(pdfPath string, page int, outPath string) error
}

// Raster defaults tuned for web display independent of the source page size.
const (
	defaultDPI        = 150.0
	renderJPEGQuality = 90
)

// FitzEngine implements Engine with MuPDF via go-fitz.
type FitzEngine struct {
	dpi float64
}

// NewFitzEngine builds a FitzEngine rendering at the given density.
// A non-positive dpi falls back to the default.
func NewFitzEngine(dpi float64) *FitzEngine {
	if dpi <= 0 {
		dpi = defaultDPI
	}
	return &FitzEngine{dpi: dpi}
}

// PageCount opens the document and returns its page count.
func (e *FitzEngine) PageCount(pdfPath string) (int, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// RenderPage rasterizes one page to a JPEG file.
func (e *FitzEngine) RenderPage(pdfPath string, page int, outPath string) error {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	img, err := doc.ImageDPI(page-1, e.dpi)
	if err != nil {
		return fmt.Errorf("render page %d: %w", page, err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create page image: %w", err)
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: renderJPEGQuality}); err != nil {
		_ = out.Close()
		return fmt.Errorf("encode page %d: %w", page, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close page image: %w", err)
	}
	return nil
}

// probePDF is a minimal one-page document used to verify the rendering
// dependency is usable before the run starts.
var probePDF = []byte("%PDF-1.1\n" +
	"1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
	"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
	"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 72 72]>>endobj\n" +
	"trailer<</Root 1 0 R>>\n")

// Probe reports whether the MuPDF dependency can open and rasterize a
// document. A failure means the run should degrade to raw-PDF fallbacks.
func Probe() error {
	doc, err := fitz.NewFromMemory(probePDF)
	if err != nil {
		return fmt.Errorf("open probe pdf: %w", err)
	}
	defer doc.Close()
	if _, err := doc.Image(0); err != nil {
		return fmt.Errorf("render probe page: %w", err)
	}
	return nil
}
