// Package store defines the narrow interface consumed from the recall
// metadata store. The store itself (ingestion, query API, front end) is an
// external collaborator; this system only reads summaries and writes image
// outcomes.
package store

import (
	"context"
	"errors"

	"github.com/recallwatch/labelworker/internal/labels"
)

// ErrNotFound is returned when a recall id does not exist.
var ErrNotFound = errors.New("recall not found")

// RecallStore is the metadata-store surface used by the batch job.
type RecallStore interface {
	// GetRecallsNeedingImages returns a bounded window of the most recent
	// recalls as processing candidates. The precise eligibility predicate is
	// applied by the caller so a reprocess run can disable it.
	GetRecallsNeedingImages(ctx context.Context, limit int) ([]labels.Recall, error)
	// UpdateRecallImages atomically replaces the recall's image-processing
	// outcome fields.
	UpdateRecallImages(ctx context.Context, id string, update labels.ImageUpdate) error
}
