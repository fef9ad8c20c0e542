package kafka

import (
	"encoding/json"
	"time"

	"github.com/pricewatch/catalog/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	ScrapeMessage *ScrapeMessage
}

// ScrapeMessage is the envelope scrapers publish for each captured listing.
type ScrapeMessage struct {
	Type      string              `json:"type"` // "listing.scraped"
	RunID     string              `json:"run_id,omitempty"`
	ScrapedAt time.Time           `json:"scraped_at"`
	Listing   models.ListingInput `json:"listing"`
}

// ParseScrapeMessage parses the message value as a scraped listing envelope
func (m *IncomingMessage) ParseScrapeMessage() error {
	var msg ScrapeMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return err
	}
	m.ScrapeMessage = &msg
	return nil
}

// GetSource returns the marketplace platform this message came from
func (m *IncomingMessage) GetSource() string {
	if m.ScrapeMessage != nil && m.ScrapeMessage.Listing.Source != "" {
		return m.ScrapeMessage.Listing.Source
	}
	// Fallback to header
	return m.Headers["source"]
}

// GetRunID returns the scrape run that produced this message
func (m *IncomingMessage) GetRunID() string {
	if m.ScrapeMessage != nil {
		return m.ScrapeMessage.RunID
	}
	return ""
}

// RunCompletedMessage represents a run.completed event from a scraper
type RunCompletedMessage struct {
	Type      string    `json:"type"` // "run.completed"
	Source    string    `json:"source"`
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"` // "success", "partial", "failed"
	Timestamp time.Time `json:"timestamp"`
	Stats     RunStats  `json:"stats,omitempty"`
}

// RunStats contains statistics about the scrape run
type RunStats struct {
	PagesCrawled    int   `json:"pages_crawled"`
	ListingsEmitted int   `json:"listings_emitted"`
	Failures        int   `json:"failures"`
	DurationMs      int64 `json:"duration_ms"`
}

// IsRunCompleted checks if the message is a run.completed event
func (m *IncomingMessage) IsRunCompleted() bool {
	// Check header first
	if msgType := m.Headers["type"]; msgType == "run.completed" {
		return true
	}

	var evt RunCompletedMessage
	if err := json.Unmarshal(m.Value, &evt); err == nil {
		return evt.Type == "run.completed"
	}

	return false
}

// ParseRunCompleted parses the message as a run.completed event
func (m *IncomingMessage) ParseRunCompleted() (*RunCompletedMessage, error) {
	var evt RunCompletedMessage
	if err := json.Unmarshal(m.Value, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}
