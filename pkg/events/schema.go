package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of event
type EventType string

const (
	// Product events
	EventTypeProductCreated EventType = "product.created"

	// Listing events
	EventTypeListingMatched   EventType = "listing.matched"
	EventTypeListingDuplicate EventType = "listing.duplicate"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// ProductCreatedEvent is emitted when a new canonical product is created
type ProductCreatedEvent struct {
	BaseEvent
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	Brand     string `json:"brand,omitempty"`
	Model     string `json:"model,omitempty"`
	Source    string `json:"source"`
	ListingID string `json:"listing_id"`
}

// ListingMatchedEvent is emitted when a listing is attached to an existing product
type ListingMatchedEvent struct {
	BaseEvent
	ProductID string             `json:"product_id"`
	ListingID string             `json:"listing_id"`
	Source    string             `json:"source"`
	Score     float64            `json:"score"`
	MatchType string             `json:"match_type"`
	Fields    map[string]float64 `json:"field_scores,omitempty"`
}

// ListingDuplicateEvent is emitted when a re-scrape hits an already stored listing
type ListingDuplicateEvent struct {
	BaseEvent
	ProductID string `json:"product_id"`
	ListingID string `json:"listing_id"`
	Source    string `json:"source"`
	Changed   bool   `json:"changed"` // true when the re-scrape carried new field values
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		EventType:     eventType,
		SchemaVersion: SchemaVersion,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.New().String(),
	}
}
