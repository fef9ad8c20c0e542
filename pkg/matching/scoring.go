package matching

import (
	"regexp"
	"strconv"
	"strings"
)

// Scorer provides the pairwise string comparison algorithms used by the
// aggregate scorer. Every method is total and returns a value in [0, 1].
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// ExactMatch returns 1.0 for exact match, 0.0 otherwise
func (s *Scorer) ExactMatch(a, b string, caseSensitive bool) float64 {
	if !caseSensitive {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	if a == b {
		return 1.0
	}
	return 0.0
}

// JaroWinkler calculates the Jaro-Winkler similarity between two strings
// Returns a value between 0.0 (no similarity) and 1.0 (exact match)
func (s *Scorer) JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}

	jaro := s.Jaro(a, b)

	// Winkler modification: boost for common prefix
	prefixLen := 0
	maxPrefix := 4
	for i := 0; i < len(a) && i < len(b) && i < maxPrefix; i++ {
		if a[i] == b[i] {
			prefixLen++
		} else {
			break
		}
	}

	// Winkler scaling factor is typically 0.1
	scalingFactor := 0.1
	return jaro + float64(prefixLen)*scalingFactor*(1.0-jaro)
}

// Jaro calculates the Jaro similarity between two strings
func (s *Scorer) Jaro(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	// Maximum distance for character matching
	matchDist := max(len(a), len(b))/2 - 1
	if matchDist < 0 {
		matchDist = 0
	}

	aMatches := make([]bool, len(a))
	bMatches := make([]bool, len(b))

	matches := 0
	transpositions := 0

	// Find matches
	for i := 0; i < len(a); i++ {
		start := max(0, i-matchDist)
		end := min(len(b), i+matchDist+1)

		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	// Count transpositions
	k := 0
	for i := 0; i < len(a); i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2

	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3
}

// Levenshtein calculates the Levenshtein distance between two strings
// Returns a similarity score between 0.0 and 1.0
func (s *Scorer) Levenshtein(a, b string) float64 {
	distance := s.LevenshteinDistance(a, b)
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// LevenshteinDistance calculates the edit distance between two strings
func (s *Scorer) LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Create two rows for dynamic programming
	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}

// Jaccard calculates intersection-over-union of whitespace-split token sets.
// Two empty strings are identical (1.0); empty versus non-empty is 0.0.
func (s *Scorer) Jaccard(a, b string) float64 {
	aTokens := strings.Fields(a)
	bTokens := strings.Fields(b)

	if len(aTokens) == 0 && len(bTokens) == 0 {
		return 1.0
	}
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0.0
	}

	aSet := make(map[string]struct{}, len(aTokens))
	for _, t := range aTokens {
		aSet[t] = struct{}{}
	}
	bSet := make(map[string]struct{}, len(bTokens))
	for _, t := range bTokens {
		bSet[t] = struct{}{}
	}

	intersection := 0
	for t := range aSet {
		if _, ok := bSet[t]; ok {
			intersection++
		}
	}
	union := len(aSet) + len(bSet) - intersection

	return float64(intersection) / float64(union)
}

var integerRe = regexp.MustCompile(`\d+`)

// NumericToken compares the first integer substring of each input: equal
// numbers score 1.0, otherwise 1 - |a-b|/max(a,b) clamped at 0. Inputs
// without a numeric token score 0.0. Tolerates formatting noise like
// "(21)" versus "21".
func (s *Scorer) NumericToken(a, b string) float64 {
	aNum, aOK := firstInteger(a)
	bNum, bOK := firstInteger(b)
	if !aOK || !bOK {
		return 0.0
	}
	if aNum == bNum {
		return 1.0
	}

	maxVal := max(aNum, bNum)
	diff := aNum - bNum
	if diff < 0 {
		diff = -diff
	}
	score := 1.0 - float64(diff)/float64(maxVal)
	if score < 0 {
		return 0.0
	}
	return score
}

// firstInteger extracts the first run of digits from a string.
func firstInteger(s string) (int, bool) {
	m := integerRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		// Digit runs longer than an int are treated as no numeric token.
		return 0, false
	}
	return n, true
}

// WeightedScore calculates a weighted average of scores
func (s *Scorer) WeightedScore(scores map[string]float64, weights map[string]float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}

	var totalWeight float64
	var weightedSum float64

	for field, score := range scores {
		weight := 1.0 // Default weight
		if w, ok := weights[field]; ok {
			weight = w
		}
		weightedSum += score * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return 0.0
	}

	return weightedSum / totalWeight
}
