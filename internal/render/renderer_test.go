package render

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEngine struct {
	pages      int
	countErr   error
	failPages  map[int]bool
	renderedTo []string
}

func (f *fakeEngine) PageCount(string) (int, error) {
	return f.pages, f.countErr
}

func (f *fakeEngine) RenderPage(_ string, page int, outPath string) error {
	if f.failPages[page] {
		return fmt.Errorf("page %d broken", page)
	}
	f.renderedTo = append(f.renderedTo, outPath)
	return nil
}

func TestRenderAll_AllPagesSucceed(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{pages: 2}
	r := NewRenderer(eng, zap.NewNop())

	dir := t.TempDir()
	pages := r.RenderAll("/scratch/label.pdf", dir)
	require.Len(t, pages, 2)
	require.Equal(t, 1, pages[0].Number)
	require.Equal(t, 2, pages[1].Number)
	require.Equal(t, filepath.Join(dir, "label-page-1.jpg"), pages[0].Path)
	require.Equal(t, filepath.Join(dir, "label-page-2.jpg"), pages[1].Path)
}

func TestRenderAll_PartialFailureKeepsOtherPages(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{pages: 3, failPages: map[int]bool{2: true}}
	r := NewRenderer(eng, zap.NewNop())

	pages := r.RenderAll("/scratch/label.pdf", t.TempDir())
	require.Len(t, pages, 2)
	require.Equal(t, 1, pages[0].Number)
	require.Equal(t, 3, pages[1].Number)
}

func TestRenderAll_PageCountFailureAssumesOnePage(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{countErr: errors.New("corrupt xref")}
	r := NewRenderer(eng, zap.NewNop())

	pages := r.RenderAll("/scratch/label.pdf", t.TempDir())
	require.Len(t, pages, 1)
	require.Equal(t, 1, pages[0].Number)
}

func TestRenderAll_ZeroSuccessesReturnsNothing(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{pages: 2, failPages: map[int]bool{1: true, 2: true}}
	r := NewRenderer(eng, zap.NewNop())
	require.Empty(t, r.RenderAll("/scratch/label.pdf", t.TempDir()))
}

func TestRenderAll_NilEngineReturnsNothing(t *testing.T) {
	t.Parallel()

	r := NewRenderer(nil, zap.NewNop())
	require.Empty(t, r.RenderAll("/scratch/label.pdf", t.TempDir()))
}
