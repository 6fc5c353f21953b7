// Package job implements the batch run: candidate selection, per-recall
// execution with error isolation, throttling and scratch cleanup.
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recallwatch/labelworker/internal/labels"
	"github.com/recallwatch/labelworker/internal/notify"
	"github.com/recallwatch/labelworker/internal/pipeline"
	"github.com/recallwatch/labelworker/internal/scratch"
	"github.com/recallwatch/labelworker/internal/store"
)

// Processor runs one recall through the label pipeline.
type Processor interface {
	Process(ctx context.Context, recall labels.Recall) (pipeline.Result, error)
}

// Config controls one batch run.
type Config struct {
	// Limit bounds how many candidates are processed (0 means no bound).
	Limit int
	// Window bounds how many recent recalls are scanned for candidates.
	Window int
	// Reprocess disables the eligibility predicate so every recall with
	// label URLs is reprocessed.
	Reprocess bool
	// Delay is the pause between recalls, throttling upstream servers.
	Delay time.Duration
}

// RecallResult is one entry of the run report.
type RecallResult struct {
	RecallID      string
	Status        pipeline.Status
	ArtifactCount int
	ImageCount    int
	Error         string
}

// RunStats aggregates one batch run.
type RunStats struct {
	RunID           string
	Scanned         int
	Candidates      int
	Processed       int
	Succeeded       int
	NoLabels        int
	Errored         int
	ArtifactsStored int
	ImagesStored    int
	Results         []RecallResult
}

// Orchestrator drives a full batch run, one recall at a time.
type Orchestrator struct {
	recalls   store.RecallStore
	pipe      Processor
	extractor pipeline.Extractor
	publisher notify.Publisher
	scratch   *scratch.Dir
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Orchestrator. publisher may be nil to disable
// completion events.
func New(
	recalls store.RecallStore,
	pipe Processor,
	extractor pipeline.Extractor,
	publisher notify.Publisher,
	scratchDir *scratch.Dir,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Window <= 0 {
		cfg.Window = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		recalls:   recalls,
		pipe:      pipe,
		extractor: extractor,
		publisher: publisher,
		scratch:   scratchDir,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes one batch. It never returns an error: failures are visible in
// the logs and in the returned stats, and the scratch directory is removed
// on the way out no matter what happened.
func (o *Orchestrator) Run(ctx context.Context) RunStats {
	stats := RunStats{RunID: uuid.NewString()}
	defer func() {
		if err := o.scratch.Remove(); err != nil {
			o.logger.Warn("scratch cleanup failed", zap.Error(err))
		}
	}()

	window, err := o.recalls.GetRecallsNeedingImages(ctx, o.cfg.Window)
	if err != nil {
		o.logger.Error("candidate scan failed", zap.String("run_id", stats.RunID), zap.Error(err))
		o.logSummary(stats)
		return stats
	}
	stats.Scanned = len(window)

	candidates := o.selectCandidates(window)
	stats.Candidates = len(candidates)
	o.logger.Info("batch run starting",
		zap.String("run_id", stats.RunID),
		zap.Int("scanned", stats.Scanned),
		zap.Int("candidates", stats.Candidates),
		zap.Bool("reprocess", o.cfg.Reprocess),
	)

	for i, rec := range candidates {
		if i > 0 && o.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(o.cfg.Delay):
			}
		}
		if ctx.Err() != nil {
			o.logger.Warn("run interrupted", zap.String("run_id", stats.RunID))
			break
		}

		res := o.processOne(ctx, stats.RunID, rec)
		stats.Results = append(stats.Results, res)
		stats.Processed++
		stats.ArtifactsStored += res.ArtifactCount
		stats.ImagesStored += res.ImageCount
		switch res.Status {
		case pipeline.StatusError:
			stats.Errored++
		case pipeline.StatusNoLabels:
			stats.NoLabels++
		default:
			stats.Succeeded++
		}
	}

	o.logSummary(stats)
	return stats
}

// selectCandidates keeps recalls whose summary yields label URLs and whose
// eligibility says "needs processing" (unless reprocessing), up to the
// configured limit.
func (o *Orchestrator) selectCandidates(window []labels.Recall) []labels.Recall {
	var out []labels.Recall
	for _, rec := range window {
		if o.cfg.Limit > 0 && len(out) >= o.cfg.Limit {
			break
		}
		if len(o.extractor.Extract(rec.Summary)) == 0 {
			continue
		}
		if !o.cfg.Reprocess && !labels.NeedsProcessing(rec) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// processOne isolates the batch from anything a single recall can throw at
// it: pipeline errors and panics both become an error result entry.
func (o *Orchestrator) processOne(ctx context.Context, runID string, rec labels.Recall) (result RecallResult) {
	result = RecallResult{RecallID: rec.ID}
	defer func() {
		if r := recover(); r != nil {
			labels.TotalRecallErrors.Inc()
			result.Status = pipeline.StatusError
			result.Error = fmt.Sprintf("panic: %v", r)
			o.logger.Error("recall processing panicked",
				zap.String("run_id", runID),
				zap.String("recall_id", rec.ID),
				zap.Any("panic", r),
			)
		}
	}()

	res, err := o.pipe.Process(ctx, rec)
	if err != nil {
		labels.TotalRecallErrors.Inc()
		result.Status = pipeline.StatusError
		result.Error = err.Error()
		o.logger.Error("recall processing failed",
			zap.String("run_id", runID),
			zap.String("recall_id", rec.ID),
			zap.Error(err),
		)
		return result
	}

	result.Status = res.Status
	result.ArtifactCount = res.ArtifactCount
	result.ImageCount = res.ImageCount

	if o.publisher != nil && res.Status == pipeline.StatusProcessed {
		event := notify.ProcessedEvent{
			RunID:       runID,
			RecallID:    rec.ID,
			ImageCount:  res.ImageCount,
			HasErrors:   res.HasErrors,
			ProcessedAt: res.ProcessedAt,
		}
		// The metadata update already committed; a lost event is only a
		// delayed notification, never a lost artifact.
		if err := o.publisher.PublishProcessed(ctx, event); err != nil {
			o.logger.Warn("completion event publish failed",
				zap.String("recall_id", rec.ID),
				zap.Error(err),
			)
		}
	}
	return result
}

func (o *Orchestrator) logSummary(stats RunStats) {
	o.logger.Info("batch run complete",
		zap.String("run_id", stats.RunID),
		zap.Int("scanned", stats.Scanned),
		zap.Int("candidates", stats.Candidates),
		zap.Int("processed", stats.Processed),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("no_labels", stats.NoLabels),
		zap.Int("errored", stats.Errored),
		zap.Int("artifacts_stored", stats.ArtifactsStored),
		zap.Int("images_stored", stats.ImagesStored),
	)
}
