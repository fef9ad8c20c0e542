package models

import (
	"errors"
	"fmt"
)

// MatchType classifies the outcome of a matching call.
type MatchType string

const (
	MatchTypeDuplicate MatchType = "duplicate" // same (source, external id/link) already stored
	MatchTypeExact     MatchType = "exact"     // score >= 0.90
	MatchTypeSimilar   MatchType = "similar"   // 0.70 <= score < 0.90
	MatchTypePartial   MatchType = "partial"   // 0.50 <= score < 0.70
	MatchTypeNew       MatchType = "new"       // best score below the match threshold
)

// MatchResult is the engine's output for a single matching call. It is
// constructed once per call, returned to the caller, and not retained.
type MatchResult struct {
	Product     *CanonicalProduct  `json:"product"`
	Listing     *Listing           `json:"listing,omitempty"`
	Score       float64            `json:"score"`
	MatchType   MatchType          `json:"match_type"`
	Created     bool               `json:"created"`   // true when a new product was proposed and stored
	Refreshed   bool               `json:"refreshed"` // true when a re-scrape carried changed field values
	FieldScores map[string]float64 `json:"field_scores,omitempty"`
}

// ErrStorage marks failures of the storage collaborator. Callers must not
// treat these as "no match": silently classifying as new on a storage error
// would create duplicate products.
var ErrStorage = errors.New("storage failure")

// StorageError wraps an underlying storage failure so callers can
// distinguish it from normal no-match outcomes with errors.Is.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
