package matching

import (
	"fmt"

	"github.com/pricewatch/catalog/pkg/models"
)

// DefaultMatchThreshold is the minimum aggregate score required to attach a
// listing to an existing product. Overridable via configuration.
const DefaultMatchThreshold = 0.82

// Score bands for accepted matches.
const (
	exactBand   = 0.90
	similarBand = 0.70
)

// Classifier turns a best aggregate score into a match type. It is a pure
// decision function over (bestScore, duplicateFlag, threshold) and holds no
// mutable state.
type Classifier struct {
	threshold float64
}

// NewClassifier validates the threshold and creates a Classifier. An
// out-of-range threshold is a configuration error: the engine must refuse to
// start rather than run with an undefined acceptance bar.
func NewClassifier(threshold float64) (*Classifier, error) {
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("match threshold must be in (0,1), got %v", threshold)
	}
	return &Classifier{threshold: threshold}, nil
}

// Threshold returns the configured acceptance threshold.
func (c *Classifier) Threshold() float64 {
	return c.threshold
}

// Classify decides the match type. The duplicate flag always wins: duplicate
// detection by (source, external id/link) runs before any text comparison and
// is never skipped.
func (c *Classifier) Classify(bestScore float64, duplicate bool) models.MatchType {
	if duplicate {
		return models.MatchTypeDuplicate
	}
	if bestScore < c.threshold {
		return models.MatchTypeNew
	}
	switch {
	case bestScore >= exactBand:
		return models.MatchTypeExact
	case bestScore >= similarBand:
		return models.MatchTypeSimilar
	default:
		return models.MatchTypePartial
	}
}
