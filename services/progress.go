package services

// StepLabel bildet einen Fortschrittswert auf den angezeigten Arbeitsschritt ab.
// Die Buckets sind Teil der öffentlichen API und dürfen sich nicht ändern.
func StepLabel(progress int) string {
	switch {
	case progress >= 100:
		return "Complete"
	case progress >= 95:
		return "Saving results"
	case progress >= 85:
		return "Synthesizing verdict"
	case progress >= 60:
		return "Extracting evidence"
	case progress >= 55:
		return "Retrieving relevant passages"
	case progress >= 40:
		return "Indexing abstracts"
	case progress >= 30:
		return "Saving papers"
	case progress >= 25:
		return "Deduplicating papers"
	case progress >= 15:
		return "Searching literature"
	case progress >= 10:
		return "Loading claim"
	case progress >= 5:
		return "Queued"
	default:
		return "Waiting"
	}
}

// Fortschritts-Checkpoints eines Laufs.
const (
	progressRunning    = 5
	progressClaim      = 10
	progressSearching  = 15
	progressDeduped    = 25
	progressStored     = 30
	progressIndexing   = 40
	progressRetrieval  = 55
	progressExtraction = 60
	progressExtracted  = 80
	progressSynthesis  = 85
	progressSaving     = 95
	progressComplete   = 100
)

// ProgressSink empfängt Fortschrittswerte 0–100, streng nicht fallend.
type ProgressSink func(progress int)

// progressTracker ist lokal zu einem Lauf; rückläufige oder gleiche Werte werden ignoriert.
type progressTracker struct {
	current int
	persist func(progress int) error
	sink    ProgressSink
}

func (t *progressTracker) advance(progress int) error {
	if progress > 100 {
		progress = 100
	}
	if progress <= t.current {
		return nil
	}
	if t.persist != nil {
		if err := t.persist(progress); err != nil {
			return err
		}
	}
	t.current = progress
	if t.sink != nil {
		t.sink(progress)
	}
	return nil
}

// extractionProgress verteilt die Extraktion linear auf 60–80.
func extractionProgress(done, total int) int {
	if total <= 0 {
		return progressExtracted
	}
	return progressExtraction + (progressExtracted-progressExtraction)*done/total
}
