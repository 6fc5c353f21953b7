// Package storage persists final artifacts to durable, publicly addressable
// blob storage.
package storage

import (
	"context"
	"mime"
	"path/filepath"
	"strings"
)

// ObjectStore is the narrow interface the pipeline uploads through.
type ObjectStore interface {
	// EnsureBucket verifies the destination bucket exists, creating it on
	// first use. Called once at startup, not per upload.
	EnsureBucket(ctx context.Context) error
	// Upload persists localPath under key, publicly readable, and returns
	// the stable public URL.
	Upload(ctx context.Context, localPath, key string) (string, error)
}

var fallbackContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ContentTypeFor derives the upload content type from a file extension.
func ContentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := fallbackContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
