package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/pricewatch/catalog/pkg/brands"
	"github.com/pricewatch/catalog/pkg/models"
)

// Weights is the field weight table for aggregate scoring. It is data, not
// code: behavior changes are edits to this table.
type Weights struct {
	Title       float64 `json:"title"`
	Brand       float64 `json:"brand"`
	Model       float64 `json:"model"`
	Category    float64 `json:"category"`
	Description float64 `json:"description"`
}

// DefaultWeights returns the standard field weight table.
func DefaultWeights() Weights {
	return Weights{
		Title:       0.40,
		Brand:       0.25,
		Model:       0.20,
		Category:    0.10,
		Description: 0.05,
	}
}

// Validate checks that the weights form a proper distribution.
func (w Weights) Validate() error {
	sum := w.Title + w.Brand + w.Model + w.Category + w.Description
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("field weights must sum to 1.0, got %v", sum)
	}
	for name, v := range map[string]float64{
		"title": w.Title, "brand": w.Brand, "model": w.Model,
		"category": w.Category, "description": w.Description,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must be >= 0, got %v", name, v)
		}
	}
	return nil
}

const (
	// Title similarity blends edit distance with token overlap.
	titleEditShare  = 0.60
	titleTokenShare = 0.40

	// brandFamilyScore is awarded when two different brand tokens resolve to
	// the same dictionary family, e.g. "sony" and "playstation".
	brandFamilyScore = 0.75

	// variantMismatchScore caps the model score when one model carries a
	// word the other lacks ("s21" vs "s21 ultra"). Distinct variants must
	// not ride a high numeric-token score into a merge.
	variantMismatchScore = 0.30

	// variantTokenSim is the edit similarity above which two model words
	// count as the same word (typo tolerance).
	variantTokenSim = 0.85

	// Key phrase extraction bounds for description comparison.
	phraseMinLen = 10
	phraseMaxLen = 100
	phraseCap    = 5
)

// Aggregator combines per-field similarity scores into one confidence score.
// Fields absent from either signal are excluded from the weighted mean, not
// scored as zero.
type Aggregator struct {
	scorer  *Scorer
	dict    *brands.Store
	weights Weights
}

// NewAggregator creates an Aggregator over a brand dictionary store.
func NewAggregator(dict *brands.Store, weights Weights) *Aggregator {
	return &Aggregator{
		scorer:  NewScorer(),
		dict:    dict,
		weights: weights,
	}
}

// Score returns the aggregate confidence for two signals, rounded to two
// decimal places for stable threshold comparison. Symmetric in its arguments.
func (a *Aggregator) Score(x, y *models.NormalizedSignal) float64 {
	score, _ := a.ScoreWithFields(x, y)
	return score
}

// ScoreWithFields returns the aggregate confidence plus the per-field scores
// that contributed to it.
func (a *Aggregator) ScoreWithFields(x, y *models.NormalizedSignal) (float64, map[string]float64) {
	if x == nil || y == nil {
		return 0.0, nil
	}

	fields := make(map[string]float64)
	var weightSum, scoreSum float64

	add := func(field string, weight, score float64) {
		fields[field] = score
		weightSum += weight
		scoreSum += score * weight
	}

	if x.Title != "" && y.Title != "" {
		add("title", a.weights.Title, a.titleScore(x.Title, y.Title))
	}
	if x.HasBrand() && y.HasBrand() {
		add("brand", a.weights.Brand, a.brandScore(x.Brand, y.Brand))
	}
	if x.Model != "" && y.Model != "" {
		add("model", a.weights.Model, a.modelScore(x.Model, y.Model))
	}
	if x.CategoryID != nil && y.CategoryID != nil {
		add("category", a.weights.Category, a.scorer.ExactMatch(*x.CategoryID, *y.CategoryID, false))
	}
	if x.Description != "" && y.Description != "" {
		add("description", a.weights.Description, a.descriptionScore(x.Description, y.Description))
	}

	if weightSum == 0 {
		return 0.0, fields
	}

	return round2(scoreSum / weightSum), fields
}

// titleScore blends Jaro-Winkler with token-set overlap on normalized titles.
func (a *Aggregator) titleScore(x, y string) float64 {
	return titleEditShare*a.scorer.JaroWinkler(x, y) + titleTokenShare*a.scorer.Jaccard(x, y)
}

// brandScore awards 1.0 for the same brand, a fixed family bonus when both
// brands resolve to the same dictionary entry, and 0.0 otherwise.
func (a *Aggregator) brandScore(x, y string) float64 {
	if strings.EqualFold(x, y) {
		return 1.0
	}
	if a.dict.Current().SameFamily(x, y) {
		return brandFamilyScore
	}
	return 0.0
}

// modelScore takes the greater of edit-distance and numeric-token similarity,
// covering both typos and model-number formatting noise. A word present on
// only one side marks the models as distinct variants and caps the score.
func (a *Aggregator) modelScore(x, y string) float64 {
	if x == y {
		return 1.0
	}
	if a.variantMismatch(x, y) {
		return variantMismatchScore
	}
	return math.Max(a.scorer.JaroWinkler(x, y), a.scorer.NumericToken(x, y))
}

// variantMismatch reports whether either model contains an alphabetic word
// with no close counterpart on the other side.
func (a *Aggregator) variantMismatch(x, y string) bool {
	xWords := strings.Fields(x)
	yWords := strings.Fields(y)
	return a.unmatchedWord(xWords, yWords) || a.unmatchedWord(yWords, xWords)
}

func (a *Aggregator) unmatchedWord(xs, ys []string) bool {
	for _, w := range xs {
		if !isAlpha(w) {
			continue
		}
		matched := false
		for _, u := range ys {
			if a.scorer.JaroWinkler(w, u) >= variantTokenSim {
				matched = true
				break
			}
		}
		if !matched {
			return true
		}
	}
	return false
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return s != ""
}

// descriptionScore compares extracted key phrases instead of raw tokens to
// keep marketplace boilerplate from dominating.
func (a *Aggregator) descriptionScore(x, y string) float64 {
	xPhrases := keyPhrases(x)
	yPhrases := keyPhrases(y)

	if len(xPhrases) == 0 && len(yPhrases) == 0 {
		return 1.0
	}
	if len(xPhrases) == 0 || len(yPhrases) == 0 {
		return 0.0
	}

	xSet := make(map[string]struct{}, len(xPhrases))
	for _, p := range xPhrases {
		xSet[p] = struct{}{}
	}
	intersection := 0
	ySet := make(map[string]struct{}, len(yPhrases))
	for _, p := range yPhrases {
		if _, dup := ySet[p]; dup {
			continue
		}
		ySet[p] = struct{}{}
		if _, ok := xSet[p]; ok {
			intersection++
		}
	}
	union := len(xSet) + len(ySet) - intersection

	return float64(intersection) / float64(union)
}

// keyPhrases splits a description on sentence punctuation and keeps up to
// phraseCap fragments between phraseMinLen and phraseMaxLen characters.
func keyPhrases(s string) []string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		switch r {
		case '.', '!', '?', ';', '\n':
			return true
		}
		return false
	})

	phrases := make([]string, 0, phraseCap)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) <= phraseMinLen || len(p) >= phraseMaxLen {
			continue
		}
		phrases = append(phrases, p)
		if len(phrases) == phraseCap {
			break
		}
	}
	return phrases
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
