// Package classifier scores predicates for the keep/drop decision.
//
// The production implementation is a small feed-forward network whose
// weights load once from a JSON artifact. Its contract is narrow on
// purpose: five structural features in, one confidence out.
package classifier

import (
	"errors"
)

// ErrUnavailable reports a missing or corrupt model artifact. Analysis
// treats this as fatal rather than degrading silently.
var ErrUnavailable = errors.New("classifier: model unavailable")

// FeatureCount is the input width of the classifier.
const FeatureCount = 5

// Classifier scores one predicate from its feature vector. The result
// is a confidence in [0,1]; higher means keep.
type Classifier interface {
	Score(features [FeatureCount]float64) (float64, error)
}

// Fixed is a stub classifier returning a constant confidence. Used in
// tests and when exercising the pipeline without a trained model.
type Fixed float64

// Score returns the fixed confidence.
func (f Fixed) Score([FeatureCount]float64) (float64, error) {
	return float64(f), nil
}
