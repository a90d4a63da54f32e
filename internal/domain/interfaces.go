package domain

import "context"

// ZeroShotOptions tunes a single zero-shot classification call.
type ZeroShotOptions struct {
	// HypothesisTemplate is applied to every candidate label, e.g. "This is a {}".
	// Empty leaves the backend default in place.
	HypothesisTemplate string
	// MultiLabel scores every label independently instead of as one distribution.
	MultiLabel bool
	// LabelHints lists extra descriptive terms per label. Backends that score
	// with a real entailment model may ignore them.
	LabelHints map[string][]string
}

// ZeroShotResult is the backend answer: labels and scores order-aligned and
// sorted by descending score.
type ZeroShotResult struct {
	Labels []string
	Scores []float64
}

// ZeroShotClassifier scores free text against arbitrary candidate labels.
// Implementations must be safe for concurrent use.
type ZeroShotClassifier interface {
	Name() string
	Classify(ctx context.Context, text string, labels []string, opts ZeroShotOptions) (ZeroShotResult, error)
}

// EmployeeDirectory resolves employee reference data by ID.
type EmployeeDirectory interface {
	Lookup(ctx context.Context, id EmployeeID) (EmployeeRecord, error)
}
