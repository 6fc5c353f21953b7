package labels

// ProcessingState summarizes a recall's prior image-processing outcome. It is
// derived from the persisted artifact list, never stored.
type ProcessingState string

// Processing states, from never-touched to fully satisfied.
const (
	// Unprocessed means no run has written an outcome yet.
	Unprocessed ProcessingState = "unprocessed"
	// ProcessedWithImages means at least one true image artifact (a direct
	// image or a rendered PDF page) was stored. This is the only state that
	// counts as satisfactorily processed.
	ProcessedWithImages ProcessingState = "processed_with_images"
	// ProcessedWithoutImages means a run completed but stored only raw PDF
	// fallbacks; the recall is retried until pages render.
	ProcessedWithoutImages ProcessingState = "processed_without_images"
	// ProcessedWithErrorsOnly means every document failed.
	ProcessedWithErrorsOnly ProcessingState = "processed_with_errors_only"
)

// StateOf computes the recall's processing state from its persisted fields.
func StateOf(r Recall) ProcessingState {
	if r.ImagesProcessedAt == nil || len(r.ProcessedImages) == 0 {
		return Unprocessed
	}
	hasImage := false
	hasSuccess := false
	for _, a := range r.ProcessedImages {
		switch a.Type {
		case ArtifactImage, ArtifactPDFPage:
			hasImage = true
			hasSuccess = true
		case ArtifactPDF:
			hasSuccess = true
		case ArtifactError:
		}
	}
	switch {
	case hasImage && r.TotalImageCount > 0:
		return ProcessedWithImages
	case hasSuccess:
		return ProcessedWithoutImages
	default:
		return ProcessedWithErrorsOnly
	}
}

// NeedsProcessing is the eligibility predicate: reprocess unless a prior run
// produced at least one rendered or direct image. The asymmetry is
// intentional; a stored raw PDF or a list of pure errors is not good enough.
func NeedsProcessing(r Recall) bool {
	return StateOf(r) != ProcessedWithImages
}
