package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recallwatch/labelworker/internal/config"
	"github.com/recallwatch/labelworker/internal/extract"
	"github.com/recallwatch/labelworker/internal/fetch"
	"github.com/recallwatch/labelworker/internal/job"
	"github.com/recallwatch/labelworker/internal/labels"
	"github.com/recallwatch/labelworker/internal/logging"
	"github.com/recallwatch/labelworker/internal/normalizer"
	"github.com/recallwatch/labelworker/internal/notify"
	"github.com/recallwatch/labelworker/internal/pipeline"
	"github.com/recallwatch/labelworker/internal/render"
	"github.com/recallwatch/labelworker/internal/scratch"
	"github.com/recallwatch/labelworker/internal/storage"
	storepg "github.com/recallwatch/labelworker/internal/store/postgres"
)

// newProcessCmd creates and configures the 'process' subcommand, which runs
// one batch of recall label processing and exits.
func newProcessCmd() *cobra.Command {
	var (
		limit     int
		reprocess bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Runs one batch of recall label processing",
		Long: `Scans the most recent recalls for label document links and processes the
ones that still need images. The command always exits zero: per-recall
failures are recorded on the recall and reported in the logs, so a scheduler
never retries the whole batch because one document was broken.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			runProcess(cmd.Context(), limit, reprocess)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 3, "maximum recalls to process in this run (0 = no limit)")
	cmd.Flags().BoolVar(&reprocess, "reprocess", false, "reprocess recalls that already have images")

	return cmd
}

// runProcess wires the batch together and runs it. All failures are logged
// rather than returned: a scheduled batch must never flap the scheduler.
func runProcess(ctx context.Context, limit int, reprocess bool) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fallbackLogger().Error("configuration load failed", zap.Error(err))
		return
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fallbackLogger().Error("logger initialization failed", zap.Error(err))
		return
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	caps := detectCapabilities(cfg, logger)

	recalls, err := storepg.NewRecallStore(ctx, storepg.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: int32(cfg.DB.MaxConns),
		MinConns: int32(cfg.DB.MinConns),
	})
	if err != nil {
		logger.Error("recall store initialization failed", zap.Error(err))
		return
	}
	defer recalls.Close()

	objects, closeObjects, err := buildObjectStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("object store initialization failed", zap.Error(err))
		return
	}
	defer closeObjects()
	if err := objects.EnsureBucket(ctx); err != nil {
		logger.Error("bucket check failed", zap.Error(err))
		return
	}

	publisher, closePublisher := buildPublisher(ctx, cfg, logger)
	defer closePublisher()

	scratchDir, err := scratch.New(cfg.Job.ScratchDir)
	if err != nil {
		logger.Error("scratch directory creation failed", zap.Error(err))
		return
	}

	extractor := extract.New(cfg.Extract.Origin)
	fetcher := fetch.New(fetch.Config{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     cfg.HTTPTimeout(),
		MaxAttempts: cfg.HTTP.MaxAttempts,
		RetryDelay:  cfg.RetryDelay(),
	}, logger)

	var renderer pipeline.PageRenderer
	if caps.RenderPDF {
		renderer = render.NewRenderer(render.NewFitzEngine(float64(cfg.Render.DPI)), logger)
	}
	normalize := normalizer.New(normalizer.Config{
		Enabled:  caps.OptimizeImages,
		MaxWidth: cfg.Imaging.MaxWidth,
		Quality:  cfg.Imaging.Quality,
	}, logger)

	pipe := pipeline.New(
		extractor,
		fetcher,
		renderer,
		normalize,
		objects,
		recalls,
		scratchDir,
		caps,
		pipeline.SystemClock{},
		pipeline.Config{StoragePrefix: cfg.Storage.Prefix},
		logger,
	)

	orchestrator := job.New(recalls, pipe, extractor, publisher, scratchDir, job.Config{
		Limit:     limit,
		Window:    cfg.Job.Window,
		Reprocess: reprocess,
		Delay:     cfg.RecallDelay(),
	}, logger)

	stats := orchestrator.Run(ctx)
	if stats.Errored > 0 {
		logger.Warn("batch finished with recall errors",
			zap.String("run_id", stats.RunID),
			zap.Int("errored", stats.Errored),
		)
	}
}

// detectCapabilities probes optional subsystems once at startup; a failed
// probe degrades the run instead of failing it.
func detectCapabilities(cfg config.Config, logger *zap.Logger) labels.Capabilities {
	caps := labels.Capabilities{
		RenderPDF:      cfg.Render.Enabled,
		OptimizeImages: cfg.Imaging.Enabled,
	}
	if caps.RenderPDF {
		if err := render.Probe(); err != nil {
			logger.Warn("pdf rendering unavailable, original pdfs will be stored instead", zap.Error(err))
			caps.RenderPDF = false
		}
	}
	return caps
}

func buildObjectStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.ObjectStore, func(), error) {
	switch cfg.Storage.Backend {
	case "local":
		store, err := storage.NewLocalStore(cfg.Storage.LocalDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "gcs":
		store, err := storage.NewGCSStore(ctx, cfg.Storage.GCSBucket, cfg.Storage.ProjectID, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if cerr := store.Close(); cerr != nil {
				logger.Warn("failed to close gcs client", zap.Error(cerr))
			}
		}
		return store, closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// buildPublisher returns a nil Publisher when no topic is configured; the
// orchestrator treats nil as notifications-disabled.
func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (notify.Publisher, func()) {
	if cfg.PubSub.TopicName == "" {
		return nil, func() {}
	}
	pub, err := notify.NewPubSub(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName, logger)
	if err != nil {
		logger.Warn("completion events disabled", zap.Error(err))
		return nil, func() {}
	}
	return pub, func() {
		if cerr := pub.Close(); cerr != nil {
			logger.Warn("failed to close pubsub publisher", zap.Error(cerr))
		}
	}
}

func fallbackLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
