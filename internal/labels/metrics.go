package labels

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalDocumentsFetched counts source documents downloaded to scratch.
	TotalDocumentsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labelworker_documents_fetched_total",
		Help: "The total number of label documents downloaded.",
	})
	// TotalFetchErrors counts downloads that failed after all retries.
	TotalFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labelworker_fetch_errors_total",
		Help: "The total number of label document downloads that failed.",
	})
	// TotalPagesRendered counts PDF pages rasterized to images.
	TotalPagesRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labelworker_pages_rendered_total",
		Help: "The total number of PDF pages rendered to images.",
	})
	// TotalRenderFailures counts pages that failed to render.
	TotalRenderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labelworker_render_failures_total",
		Help: "The total number of PDF pages that failed to render.",
	})
	// TotalArtifactsUploaded counts artifacts persisted to the object store.
	TotalArtifactsUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labelworker_artifacts_uploaded_total",
		Help: "The total number of artifacts uploaded to the object store.",
	})
	// TotalRecallsProcessed counts recalls whose pipeline run completed.
	TotalRecallsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labelworker_recalls_processed_total",
		Help: "The total number of recalls processed.",
	})
	// TotalRecallErrors counts recalls aborted by an unexpected failure.
	TotalRecallErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labelworker_recall_errors_total",
		Help: "The total number of recalls that failed with an unexpected error.",
	})
)
