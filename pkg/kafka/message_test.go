package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewatch/catalog/pkg/models"
)

func scrapeValue(t *testing.T, msg ScrapeMessage) []byte {
	t.Helper()
	value, err := json.Marshal(msg)
	require.NoError(t, err)
	return value
}

func TestIncomingMessage_GetSource(t *testing.T) {
	t.Run("prefers the parsed listing source", func(t *testing.T) {
		m := &IncomingMessage{
			Value: scrapeValue(t, ScrapeMessage{
				Type:    "listing.scraped",
				Listing: models.ListingInput{Title: "iPhone 13", Source: "amazon"},
			}),
			Headers: map[string]string{"source": "header-source"},
		}
		require.NoError(t, m.ParseScrapeMessage())
		assert.Equal(t, "amazon", m.GetSource())
	})

	t.Run("falls back to the header before parsing", func(t *testing.T) {
		m := &IncomingMessage{Headers: map[string]string{"source": "ebay"}}
		assert.Equal(t, "ebay", m.GetSource())
	})
}

func TestIncomingMessage_GetRunID(t *testing.T) {
	m := &IncomingMessage{
		Value: scrapeValue(t, ScrapeMessage{
			Type:    "listing.scraped",
			RunID:   "run-42",
			Listing: models.ListingInput{Title: "iPhone 13", Source: "amazon"},
		}),
	}

	assert.Empty(t, m.GetRunID())
	require.NoError(t, m.ParseScrapeMessage())
	assert.Equal(t, "run-42", m.GetRunID())
}

func TestIncomingMessage_IsRunCompleted(t *testing.T) {
	t.Run("by header", func(t *testing.T) {
		m := &IncomingMessage{Headers: map[string]string{"type": "run.completed"}}
		assert.True(t, m.IsRunCompleted())
	})

	t.Run("by body", func(t *testing.T) {
		value, err := json.Marshal(RunCompletedMessage{Type: "run.completed", Source: "amazon"})
		require.NoError(t, err)
		assert.True(t, (&IncomingMessage{Value: value}).IsRunCompleted())
	})

	t.Run("listing envelope is not a run completion", func(t *testing.T) {
		m := &IncomingMessage{
			Value: scrapeValue(t, ScrapeMessage{
				Type:    "listing.scraped",
				Listing: models.ListingInput{Title: "iPhone 13", Source: "amazon"},
			}),
		}
		assert.False(t, m.IsRunCompleted())
	})
}
