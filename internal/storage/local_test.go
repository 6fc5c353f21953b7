package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStore_UploadRoundTrip(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	s, err := NewLocalStore(base)
	require.NoError(t, err)
	require.NoError(t, s.EnsureBucket(context.Background()))

	src := filepath.Join(t.TempDir(), "page.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpeg-bytes"), 0o600))

	url, err := s.Upload(context.Background(), src, "labels/r-1/doc01-page.jpg")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "file://"))

	stored := filepath.Join(base, "labels", "r-1", "doc01-page.jpg")
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	require.Equal(t, "jpeg-bytes", string(data))
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	t.Parallel()

	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "page.jpg")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	_, err = s.Upload(context.Background(), src, "../escape.jpg")
	require.Error(t, err)
}

func TestLocalStore_RequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := NewLocalStore("  ")
	require.Error(t, err)
}

func TestContentTypeFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, "application/pdf", ContentTypeFor("x/label.PDF"))
	require.Equal(t, "image/jpeg", ContentTypeFor("page-1.jpg"))
	require.Equal(t, "image/png", ContentTypeFor("label.png"))
	require.Equal(t, "application/octet-stream", ContentTypeFor("mystery.bin"))
	require.Equal(t, "application/octet-stream", ContentTypeFor("noext"))
}
