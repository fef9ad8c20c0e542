package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizer_Normalize(t *testing.T) {
	n := New()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases and strips punctuation",
			input:    "Apple iPhone 13 Pro!!!",
			expected: "apple iphone 13 pro",
		},
		{
			name:     "removes marketing stopwords",
			input:    "BRAND NEW Samsung Galaxy S21 - Best Deal",
			expected: "samsung galaxy s21",
		},
		{
			name:     "keeps product line tokens by default",
			input:    "Samsung Galaxy S21 Ultra",
			expected: "samsung galaxy s21 ultra",
		},
		{
			name:     "merges detached storage unit",
			input:    "iPhone 13 256 GB",
			expected: "iphone 13 256gb",
		},
		{
			name:     "canonicalizes attached unit spelling",
			input:    "Water Bottle 500 milliliters",
			expected: "water bottle 500ml",
		},
		{
			name:     "preserves decimal measurements",
			input:    "Laptop 15.6 inch Display",
			expected: "laptop 15.6inch display",
		},
		{
			name:     "rejoins a split decimal before a unit",
			input:    "6 1 inch",
			expected: "6.1inch",
		},
		{
			name:     "rejoins a split decimal mid-title",
			input:    "Phone 6 1 inch display",
			expected: "phone 6.1inch display",
		},
		{
			name:     "multi-digit second number is not a fraction",
			input:    "iPhone 13 256 GB",
			expected: "iphone 13 256gb",
		},
		{
			name:     "does not merge a number into a following measure",
			input:    "iPhone 13 256GB",
			expected: "iphone 13 256gb",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "only stopwords and punctuation",
			input:    "the best -- new!",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Normalize(tt.input))
		})
	}
}

func TestNormalizer_Idempotent(t *testing.T) {
	n := New()

	inputs := []string{
		"Apple iPhone 13 Pro Max 256GB - Graphite",
		"Samsung Galaxy S21 Ultra 5G (128 GB)",
		"Laptop 15.6 inch, 8 GB RAM / 512 GB SSD",
		"Water Bottle 1.5 liters",
		"Phone 6 1 inch display",
		"PlayStation 5 Console!!!",
		strings.Repeat("very long marketplace title with many words ", 30),
	}

	for _, input := range inputs {
		once := n.Normalize(input)
		assert.Equal(t, once, n.Normalize(once), "input: %q", input)
	}
}

func TestNormalizer_Truncation(t *testing.T) {
	n := New()

	long := strings.Repeat("keyboard mechanical switches ", 40)
	out := n.Normalize(long)

	assert.LessOrEqual(t, len(out), MaxLength)
	// Token aligned: the output never ends mid-word.
	assert.False(t, strings.HasSuffix(out, " "))
	for _, tok := range strings.Fields(out) {
		assert.Contains(t, []string{"keyboard", "mechanical", "switches"}, tok)
	}

	t.Run("single token longer than the limit is hard-cut", func(t *testing.T) {
		out := n.Normalize(strings.Repeat("x", MaxLength+100))
		assert.Equal(t, strings.Repeat("x", MaxLength), out)
	})
}

func TestNormalizer_WithStripLineTokens(t *testing.T) {
	def := New()
	stripped := New(WithStripLineTokens())

	assert.Equal(t, "macbook pro", def.Normalize("MacBook Pro"))
	assert.Equal(t, "macbook", stripped.Normalize("MacBook Pro"))
}

func TestNormalizer_WithStopwords(t *testing.T) {
	n := New(WithStopwords([]string{"refurbished"}))

	// The default list is replaced entirely.
	assert.Equal(t, "the new phone", n.Normalize("The NEW Refurbished Phone"))
}

func TestNormalizer_Keywords(t *testing.T) {
	n := New()

	t.Run("drops short tokens and duplicates", func(t *testing.T) {
		got := n.Keywords("Apple iPhone 13 Apple Case")
		assert.Equal(t, []string{"apple", "iphone", "case"}, got)
	})

	t.Run("merged units count as one keyword", func(t *testing.T) {
		got := n.Keywords("SSD 512 GB portable")
		assert.Equal(t, []string{"ssd", "512gb", "portable"}, got)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, n.Keywords(""))
	})
}
