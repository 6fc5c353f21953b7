// Package labels defines core types shared across the label image pipeline.
package labels

import (
	"path"
	"strings"
	"time"
)

// ArtifactType identifies the outcome recorded for one source document or
// one rendered PDF page.
type ArtifactType string

// Artifact type values persisted on the recall.
const (
	ArtifactImage   ArtifactType = "image"
	ArtifactPDF     ArtifactType = "pdf"
	ArtifactPDFPage ArtifactType = "pdf-page"
	ArtifactError   ArtifactType = "error"
)

// Artifact is one stored outcome of processing a source URL (or one page of
// a multi-page PDF). Artifacts are immutable; a re-run replaces the recall's
// whole list rather than editing entries.
type Artifact struct {
	OriginalFilename string       `json:"originalFilename"`
	Type             ArtifactType `json:"type"`
	Page             int          `json:"page,omitempty"`
	SourceURL        string       `json:"sourceUrl"`
	StorageURL       string       `json:"storageUrl,omitempty"`
	StoragePath      string       `json:"storagePath,omitempty"`
	MimeType         string       `json:"mimeType,omitempty"`
	SizeBytes        int64        `json:"sizeBytes,omitempty"`
	DownloadedAt     time.Time    `json:"downloadedAt"`
	Error            string       `json:"error,omitempty"`
	AttemptedURL     string       `json:"attemptedUrl,omitempty"`
}

// Recall is the slice of the metadata store's recall entry this system reads
// and writes. The summary is consumed; the remaining fields are replaced
// atomically after a processing run.
type Recall struct {
	ID                string     `json:"id"`
	Summary           string     `json:"summary"`
	ExtractedURLs     []string   `json:"extractedUrls,omitempty"`
	ProcessedImages   []Artifact `json:"processedImages,omitempty"`
	TotalImageCount   int        `json:"totalImageCount"`
	HasErrors         bool       `json:"hasErrors"`
	ImagesProcessedAt *time.Time `json:"imagesProcessedAt,omitempty"`
}

// ImageUpdate is the single atomic write applied to a recall after its
// pipeline run completes.
type ImageUpdate struct {
	ProcessedImages   []Artifact
	ExtractedURLs     []string
	TotalImageCount   int
	HasErrors         bool
	ImagesProcessedAt time.Time
}

// Capabilities records which optional local dependencies were usable at
// startup. It is computed once and passed into components; nothing reads
// global state.
type Capabilities struct {
	RenderPDF      bool
	OptimizeImages bool
}

// Kind is the handling path selected for a downloaded document.
type Kind string

// Document kinds.
const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
)

// Classify selects the handling path from a decoded basename. Anything that
// is not a PDF is treated as a direct image.
func Classify(basename string) Kind {
	if strings.EqualFold(path.Ext(basename), ".pdf") {
		return KindPDF
	}
	return KindImage
}
