// Package normalize turns raw marketplace listing text into a canonical form
// used by matching. Normalization is total: any input, including empty or
// pathologically long text, yields a string without error.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLength bounds normalizer output so downstream scoring stays cheap.
// Truncation is silent and token-aligned, never mid-token.
const MaxLength = 500

var (
	numberRe     = regexp.MustCompile(`^\d+(\.\d+)?$`)
	integerRe    = regexp.MustCompile(`^\d+$`)
	numberUnitRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)([a-z]+)$`)
)

// unitAliases maps every recognized unit spelling to its canonical token.
var unitAliases = map[string]string{
	"gb": "gb", "gigabyte": "gb", "gigabytes": "gb",
	"mb": "mb", "megabyte": "mb", "megabytes": "mb",
	"tb": "tb", "terabyte": "tb", "terabytes": "tb",
	"ml": "ml", "milliliter": "ml", "milliliters": "ml", "millilitre": "ml", "millilitres": "ml",
	"l": "l", "liter": "l", "liters": "l", "litre": "l", "litres": "l",
	"kg": "kg", "kilogram": "kg", "kilograms": "kg",
	"g": "g", "gram": "g", "grams": "g",
	"cm": "cm", "centimeter": "cm", "centimeters": "cm", "centimetre": "cm", "centimetres": "cm",
	"mm": "mm", "millimeter": "mm", "millimeters": "mm", "millimetre": "mm", "millimetres": "mm",
	"inch": "inch", "inches": "inch", "in": "inch",
	"lb": "lb", "lbs": "lb", "pound": "lb", "pounds": "lb",
}

// defaultStopwords holds articles, conjunctions, and marketing filler.
var defaultStopwords = []string{
	"a", "an", "the", "and", "or", "for", "with", "of", "in", "on", "by", "to", "at",
	"new", "premium", "original", "genuine", "official", "authentic", "quality",
	"best", "top", "sale", "cheap", "free", "hot", "deal", "offer", "brand",
}

// lineTokens are words that read as marketing filler on some catalogs but as
// product-line identifiers on others ("macbook pro", "s21 ultra").
var lineTokens = []string{"pro", "max", "ultra", "plus"}

// Normalizer applies the canonical text pipeline. The zero value is not
// usable; construct with New. A Normalizer is immutable and safe for
// concurrent use.
type Normalizer struct {
	stopwords map[string]struct{}
	maxLen    int
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithStripLineTokens treats "pro", "max", "ultra" and "plus" as stopwords.
// Stripping them merges product lines ("macbook pro" vs "macbook"); keeping
// them splits listings that use the words as marketing filler. Which loss is
// cheaper depends on the catalog, so it is a deployment choice; the default
// keeps them so distinct variants stay distinct.
func WithStripLineTokens() Option {
	return func(n *Normalizer) {
		for _, t := range lineTokens {
			n.stopwords[t] = struct{}{}
		}
	}
}

// WithStopwords replaces the stopword list entirely.
func WithStopwords(words []string) Option {
	return func(n *Normalizer) {
		n.stopwords = make(map[string]struct{}, len(words))
		for _, w := range words {
			n.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// New creates a Normalizer with the default stopword set.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		stopwords: make(map[string]struct{}, len(defaultStopwords)),
		maxLen:    MaxLength,
	}
	for _, w := range defaultStopwords {
		n.stopwords[w] = struct{}{}
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize lowercases, strips punctuation, removes stopwords, canonicalizes
// unit tokens, and truncates. Idempotent: Normalize(Normalize(s)) == Normalize(s).
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}

	tokens := n.Tokens(text)
	if len(tokens) == 0 {
		return ""
	}

	var b strings.Builder
	for _, tok := range tokens {
		need := len(tok)
		if b.Len() > 0 {
			need++
		}
		if b.Len()+need > n.maxLen {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(tok)
	}

	if b.Len() == 0 {
		// The first token alone exceeds the limit; hard-cut it on a rune
		// boundary rather than dropping the input.
		tok := tokens[0]
		cut := n.maxLen
		for cut > 0 && !utf8.RuneStart(tok[cut]) {
			cut--
		}
		return tok[:cut]
	}
	return b.String()
}

// Tokens returns the normalized token stream for text.
func (n *Normalizer) Tokens(text string) []string {
	cleaned := stripPunctuation(strings.ToLower(text))

	raw := strings.Fields(cleaned)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if _, stop := n.stopwords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}

	return mergeUnits(tokens)
}

// Keywords returns the distinct normalized tokens longer than two characters,
// preserving first-seen order. Used for candidate retrieval filters.
func (n *Normalizer) Keywords(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range n.Tokens(text) {
		if len(tok) <= 2 {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// stripPunctuation replaces every non-alphanumeric rune with a space, except
// a decimal point between two digits ("6.1" survives, "end." does not).
func stripPunctuation(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' && i > 0 && i+1 < len(runes) &&
			unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// mergeUnits rewrites measurements to <number><canonical-unit> with no
// internal space: "256 GB" -> "256gb", "6.1 inch" -> "6.1inch", and the
// split decimal "6 1 inch" -> "6.1inch".
func mergeUnits(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		// attached unit: "256gb", "500ml"
		if m := numberUnitRe.FindStringSubmatch(tok); m != nil {
			if unit, ok := unitAliases[m[2]]; ok {
				out = append(out, m[1]+unit)
				continue
			}
		}

		// split decimal before a unit: "6 1 inch" was "6.1 inch" once. The
		// fraction is a single digit; a longer second number is a standalone
		// value ("13 256 gb").
		if integerRe.MatchString(tok) && i+2 < len(tokens) &&
			len(tokens[i+1]) == 1 && integerRe.MatchString(tokens[i+1]) {
			if unit, ok := unitAliases[tokens[i+2]]; ok {
				out = append(out, tok+"."+tokens[i+1]+unit)
				i += 2
				continue
			}
		}

		// "256" "gb"
		if numberRe.MatchString(tok) && i+1 < len(tokens) {
			if unit, ok := unitAliases[tokens[i+1]]; ok {
				out = append(out, tok+unit)
				i++
				continue
			}
		}

		out = append(out, tok)
	}
	return out
}
