package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		data := map[string]any{"title": "iPhone 13", "price": 999.0}
		assert.Equal(t, Generate(data), Generate(data))
	})

	t.Run("independent of key insertion order", func(t *testing.T) {
		a := map[string]any{"title": "iPhone 13", "price": 999.0, "source": "amazon"}
		b := map[string]any{"source": "amazon", "price": 999.0, "title": "iPhone 13"}
		assert.Equal(t, Generate(a), Generate(b))
	})

	t.Run("changed value changes the fingerprint", func(t *testing.T) {
		a := map[string]any{"title": "iPhone 13", "price": 999.0}
		b := map[string]any{"title": "iPhone 13", "price": 949.0}
		assert.NotEqual(t, Generate(a), Generate(b))
	})

	t.Run("nested maps and arrays", func(t *testing.T) {
		a := map[string]any{
			"seller": map[string]any{"name": "shop", "verified": true},
			"tags":   []any{"phone", "apple"},
		}
		b := map[string]any{
			"tags":   []any{"phone", "apple"},
			"seller": map[string]any{"verified": true, "name": "shop"},
		}
		assert.Equal(t, Generate(a), Generate(b))
	})

	t.Run("array order matters", func(t *testing.T) {
		a := map[string]any{"tags": []any{"phone", "apple"}}
		b := map[string]any{"tags": []any{"apple", "phone"}}
		assert.NotEqual(t, Generate(a), Generate(b))
	})

	t.Run("empty map is stable", func(t *testing.T) {
		assert.Equal(t, Generate(map[string]any{}), Generate(map[string]any{}))
	})
}

func TestHasChanged(t *testing.T) {
	fp := Generate(map[string]any{"title": "iPhone 13"})
	assert.False(t, HasChanged(fp, fp))
	assert.True(t, HasChanged(fp, Generate(map[string]any{"title": "iPhone 14"})))
}
