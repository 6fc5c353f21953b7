package job

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/recallwatch/labelworker/internal/labels"
	"github.com/recallwatch/labelworker/internal/notify"
	"github.com/recallwatch/labelworker/internal/pipeline"
	"github.com/recallwatch/labelworker/internal/scratch"
)

type fakeRecallStore struct {
	window  []labels.Recall
	scanErr error
}

func (f *fakeRecallStore) GetRecallsNeedingImages(context.Context, int) ([]labels.Recall, error) {
	return f.window, f.scanErr
}

func (f *fakeRecallStore) UpdateRecallImages(context.Context, string, labels.ImageUpdate) error {
	return nil
}

type fakeProcessor struct {
	results   map[string]pipeline.Result
	errs      map[string]error
	panicOn   string
	processed []string
}

func (f *fakeProcessor) Process(_ context.Context, rec labels.Recall) (pipeline.Result, error) {
	f.processed = append(f.processed, rec.ID)
	if rec.ID == f.panicOn {
		panic("corrupt document state for " + rec.ID)
	}
	if err, ok := f.errs[rec.ID]; ok {
		return pipeline.Result{}, err
	}
	if res, ok := f.results[rec.ID]; ok {
		return res, nil
	}
	return pipeline.Result{RecallID: rec.ID, Status: pipeline.StatusProcessed}, nil
}

type fakeExtractor struct {
	emptyFor map[string]bool
}

func (f *fakeExtractor) Extract(markup string) []string {
	if f.emptyFor[markup] {
		return nil
	}
	return []string{"https://example.com/label.pdf"}
}

type fakePublisher struct {
	events []notify.ProcessedEvent
	err    error
}

func (f *fakePublisher) PublishProcessed(_ context.Context, e notify.ProcessedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func recallWithSummary(id string) labels.Recall {
	return labels.Recall{ID: id, Summary: "summary-" + id}
}

func processedRecall(id string) labels.Recall {
	now := time.Now()
	return labels.Recall{
		ID:      id,
		Summary: "summary-" + id,
		ProcessedImages: []labels.Artifact{
			{Type: labels.ArtifactImage, StorageURL: "https://storage.googleapis.com/b/x.jpg"},
		},
		TotalImageCount:   1,
		ImagesProcessedAt: &now,
	}
}

func newTestOrchestrator(t *testing.T, st *fakeRecallStore, proc *fakeProcessor, pub notify.Publisher, cfg Config) (*Orchestrator, *scratch.Dir) {
	t.Helper()
	sc, err := scratch.New(t.TempDir())
	require.NoError(t, err)
	o := New(st, proc, &fakeExtractor{}, pub, sc, cfg, zap.NewNop())
	return o, sc
}

func TestRun_ProcessesCandidatesUpToLimit(t *testing.T) {
	t.Parallel()

	st := &fakeRecallStore{window: []labels.Recall{
		recallWithSummary("r-1"),
		recallWithSummary("r-2"),
		recallWithSummary("r-3"),
		recallWithSummary("r-4"),
	}}
	proc := &fakeProcessor{}
	o, _ := newTestOrchestrator(t, st, proc, nil, Config{Limit: 3})

	stats := o.Run(context.Background())
	require.Equal(t, 4, stats.Scanned)
	require.Equal(t, 3, stats.Candidates)
	require.Equal(t, 3, stats.Processed)
	require.Equal(t, 3, stats.Succeeded)
	require.Equal(t, []string{"r-1", "r-2", "r-3"}, proc.processed)
	require.NotEmpty(t, stats.RunID)
}

func TestRun_SkipsAlreadyProcessedUnlessReprocess(t *testing.T) {
	t.Parallel()

	window := []labels.Recall{processedRecall("r-done"), recallWithSummary("r-new")}

	proc := &fakeProcessor{}
	o, _ := newTestOrchestrator(t, &fakeRecallStore{window: window}, proc, nil, Config{Limit: 10})
	stats := o.Run(context.Background())
	require.Equal(t, []string{"r-new"}, proc.processed)
	require.Equal(t, 1, stats.Candidates)

	proc = &fakeProcessor{}
	o, _ = newTestOrchestrator(t, &fakeRecallStore{window: window}, proc, nil, Config{Limit: 10, Reprocess: true})
	stats = o.Run(context.Background())
	require.Equal(t, []string{"r-done", "r-new"}, proc.processed)
	require.Equal(t, 2, stats.Candidates)
}

func TestRun_SkipsRecallsWithoutLabelURLs(t *testing.T) {
	t.Parallel()

	st := &fakeRecallStore{window: []labels.Recall{
		recallWithSummary("r-empty"),
		recallWithSummary("r-labeled"),
	}}
	sc, err := scratch.New(t.TempDir())
	require.NoError(t, err)
	proc := &fakeProcessor{}
	extractor := &fakeExtractor{emptyFor: map[string]bool{"summary-r-empty": true}}
	o := New(st, proc, extractor, nil, sc, Config{Limit: 10}, zap.NewNop())

	stats := o.Run(context.Background())
	require.Equal(t, []string{"r-labeled"}, proc.processed)
	require.Equal(t, 1, stats.Candidates)
}

func TestRun_ErrorAndPanicAreIsolated(t *testing.T) {
	t.Parallel()

	st := &fakeRecallStore{window: []labels.Recall{
		recallWithSummary("r-err"),
		recallWithSummary("r-panic"),
		recallWithSummary("r-ok"),
	}}
	proc := &fakeProcessor{
		errs:    map[string]error{"r-err": errors.New("connection reset")},
		panicOn: "r-panic",
	}
	o, _ := newTestOrchestrator(t, st, proc, nil, Config{Limit: 10})

	stats := o.Run(context.Background())
	require.Equal(t, 3, stats.Processed)
	require.Equal(t, 2, stats.Errored)
	require.Equal(t, 1, stats.Succeeded)

	require.Equal(t, pipeline.StatusError, stats.Results[0].Status)
	require.Contains(t, stats.Results[0].Error, "connection reset")
	require.Equal(t, pipeline.StatusError, stats.Results[1].Status)
	require.Contains(t, stats.Results[1].Error, "panic")
	require.Equal(t, pipeline.StatusProcessed, stats.Results[2].Status)
}

func TestRun_PublishesCompletionEvents(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()
	st := &fakeRecallStore{window: []labels.Recall{
		recallWithSummary("r-1"),
		recallWithSummary("r-2"),
	}}
	proc := &fakeProcessor{
		results: map[string]pipeline.Result{
			"r-1": {RecallID: "r-1", Status: pipeline.StatusProcessed, ImageCount: 4, ProcessedAt: now},
		},
		errs: map[string]error{"r-2": errors.New("boom")},
	}
	pub := &fakePublisher{}
	o, _ := newTestOrchestrator(t, st, proc, pub, Config{Limit: 10})

	stats := o.Run(context.Background())
	require.Len(t, pub.events, 1)
	require.Equal(t, "r-1", pub.events[0].RecallID)
	require.Equal(t, 4, pub.events[0].ImageCount)
	require.Equal(t, now, pub.events[0].ProcessedAt)
	require.Equal(t, stats.RunID, pub.events[0].RunID)
}

func TestRun_PublishFailureDoesNotFailRecall(t *testing.T) {
	t.Parallel()

	st := &fakeRecallStore{window: []labels.Recall{recallWithSummary("r-1")}}
	pub := &fakePublisher{err: errors.New("topic unavailable")}
	o, _ := newTestOrchestrator(t, st, &fakeProcessor{}, pub, Config{Limit: 10})

	stats := o.Run(context.Background())
	require.Equal(t, 1, stats.Succeeded)
	require.Equal(t, 0, stats.Errored)
}

func TestRun_ScanFailureReturnsEmptyStats(t *testing.T) {
	t.Parallel()

	st := &fakeRecallStore{scanErr: errors.New("db down")}
	proc := &fakeProcessor{}
	o, sc := newTestOrchestrator(t, st, proc, nil, Config{Limit: 10})

	stats := o.Run(context.Background())
	require.Zero(t, stats.Processed)
	require.Empty(t, proc.processed)

	// The scratch root is removed even on an aborted run.
	_, err := os.Stat(sc.Root())
	require.True(t, os.IsNotExist(err))
}

func TestRun_RemovesScratchRoot(t *testing.T) {
	t.Parallel()

	st := &fakeRecallStore{window: []labels.Recall{recallWithSummary("r-1")}}
	o, sc := newTestOrchestrator(t, st, &fakeProcessor{}, nil, Config{Limit: 10})

	o.Run(context.Background())
	_, err := os.Stat(sc.Root())
	require.True(t, os.IsNotExist(err))
}

func TestRun_CanceledContextStopsBetweenRecalls(t *testing.T) {
	t.Parallel()

	st := &fakeRecallStore{window: []labels.Recall{
		recallWithSummary("r-1"),
		recallWithSummary("r-2"),
	}}
	proc := &fakeProcessor{}
	o, _ := newTestOrchestrator(t, st, proc, nil, Config{Limit: 10, Delay: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats := o.Run(ctx)
	require.Zero(t, stats.Processed)
	require.Empty(t, proc.processed)
}
