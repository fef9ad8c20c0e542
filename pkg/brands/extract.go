package brands

import (
	"regexp"
	"strings"

	"github.com/pricewatch/catalog/pkg/models"
	"github.com/pricewatch/catalog/pkg/normalize"
)

// measureRe matches canonicalized measurement tokens like "256gb" or "6.1inch".
var measureRe = regexp.MustCompile(`^\d+(\.\d+)?(gb|mb|tb|ml|l|kg|g|cm|mm|inch|lb)$`)

// colorTokens are cosmetic descriptors stripped from model fragments.
var colorTokens = map[string]struct{}{
	"black": {}, "white": {}, "red": {}, "blue": {}, "green": {}, "gold": {},
	"silver": {}, "gray": {}, "grey": {}, "pink": {}, "purple": {}, "yellow": {},
	"midnight": {}, "graphite": {}, "starlight": {}, "titanium": {},
}

// Extractor isolates a brand token and model fragment from listing titles.
// Safe for concurrent use; the dictionary store may be hot-swapped.
type Extractor struct {
	store      *Store
	normalizer *normalize.Normalizer
}

// NewExtractor creates an Extractor over a dictionary store.
func NewExtractor(store *Store, normalizer *normalize.Normalizer) *Extractor {
	return &Extractor{store: store, normalizer: normalizer}
}

// Extract returns (brand, model) for a raw title. It never fails: unknown
// brands yield the "unknown" marker with the normalized title as the model.
func (e *Extractor) Extract(rawTitle string) (string, string) {
	tokens := e.normalizer.Tokens(rawTitle)
	if len(tokens) == 0 {
		return models.BrandUnknown, ""
	}

	dict := e.store.Current()

	for _, entry := range dict.Entries() {
		canonicalWords := strings.Fields(entry.Canonical)
		canonicalAt := findSequence(tokens, canonicalWords)

		aliasAt := -1
		for _, alias := range entry.Aliases {
			if at := findSequence(tokens, strings.Fields(alias)); at >= 0 {
				aliasAt = at
				break
			}
		}

		switch {
		case aliasAt >= 0 && canonicalAt > aliasAt:
			// Trailing manufacturer name ("iPhone 13 Pro Max Apple"): the
			// text preceding the canonical name is the model fragment.
			return entry.Canonical, modelFragment(tokens[:canonicalAt])
		case canonicalAt >= 0:
			model := removeAt(tokens, canonicalAt, len(canonicalWords))
			return entry.Canonical, modelFragment(model)
		case aliasAt >= 0:
			// Alias matched and the canonical name is absent, so the alias
			// stays part of the model ("iphone 13" under "apple").
			return entry.Canonical, modelFragment(tokens)
		}
	}

	// No dictionary hit. The "unknown" marker must never leak into the model.
	model := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == models.BrandUnknown {
			continue
		}
		model = append(model, t)
	}
	return models.BrandUnknown, strings.Join(model, " ")
}

// modelFragment strips capacity and color descriptors, preserving word order.
func modelFragment(tokens []string) string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if measureRe.MatchString(t) {
			continue
		}
		if _, cosmetic := colorTokens[t]; cosmetic {
			continue
		}
		out = append(out, t)
	}
	return strings.Join(out, " ")
}

// findSequence returns the index where seq begins in tokens, or -1.
func findSequence(tokens, seq []string) int {
	if len(seq) == 0 || len(seq) > len(tokens) {
		return -1
	}
	for i := 0; i+len(seq) <= len(tokens); i++ {
		matched := true
		for j, w := range seq {
			if tokens[i+j] != w {
				matched = false
				break
			}
		}
		if matched {
			return i
		}
	}
	return -1
}

// removeAt drops count tokens starting at idx.
func removeAt(tokens []string, idx, count int) []string {
	out := make([]string, 0, len(tokens)-count)
	out = append(out, tokens[:idx]...)
	out = append(out, tokens[idx+count:]...)
	return out
}
