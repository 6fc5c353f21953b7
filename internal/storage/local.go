package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore implements ObjectStore on the local filesystem. Useful for
// development and tests; the returned URLs use the file scheme.
type LocalStore struct {
	baseDir string
}

// NewLocalStore builds a LocalStore rooted at baseDir.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("storage.base_dir is required")
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// EnsureBucket creates the base directory.
func (s *LocalStore) EnsureBucket(_ context.Context) error {
	if err := os.MkdirAll(s.baseDir, 0o750); err != nil {
		return fmt.Errorf("create base directory: %w", err)
	}
	return nil
}

// Upload copies the local file under the key, guarding against path
// traversal, and returns a file:// URL.
func (s *LocalStore) Upload(_ context.Context, localPath, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}

	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(key))
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("key escapes base directory")
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}

	in, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer in.Close()

	out, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("create object file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("write object file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close object file: %w", err)
	}

	return fmt.Sprintf("file://%s", fullPath), nil
}
