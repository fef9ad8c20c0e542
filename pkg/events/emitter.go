// Package events handles event emission for catalog lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/pricewatch/catalog/internal/platform/tracing"
	"github.com/pricewatch/catalog/pkg/kafka"
	"github.com/pricewatch/catalog/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter handles event emission for the catalog
type Emitter struct {
	producer *kafka.Producer
	logger   *zap.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger *zap.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitMatchResult emits the event matching a processed listing: product.created
// when a new canonical product was minted, listing.duplicate for re-scrapes,
// listing.matched otherwise.
func (e *Emitter) EmitMatchResult(ctx context.Context, result *models.MatchResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMatchResult")
	defer span.End()

	if result.Created {
		return e.emitProductCreated(ctx, result)
	}
	if result.MatchType == models.MatchTypeDuplicate {
		return e.emitListingDuplicate(ctx, result)
	}
	return e.emitListingMatched(ctx, result)
}

func (e *Emitter) emitProductCreated(ctx context.Context, result *models.MatchResult) error {
	payload := ProductCreatedEvent{
		BaseEvent: NewBaseEvent(EventTypeProductCreated),
		ProductID: result.Product.ID,
		Title:     result.Product.Title,
		Brand:     result.Product.Brand,
		Model:     result.Product.Model,
		Source:    result.Listing.Source,
		ListingID: result.Listing.ID,
	}

	if err := e.publish(ctx, string(EventTypeProductCreated), result, payload); err != nil {
		e.logger.Error("Failed to emit product.created event", zap.Error(err))
		return err
	}
	return nil
}

func (e *Emitter) emitListingMatched(ctx context.Context, result *models.MatchResult) error {
	payload := ListingMatchedEvent{
		BaseEvent: NewBaseEvent(EventTypeListingMatched),
		ProductID: result.Product.ID,
		ListingID: result.Listing.ID,
		Source:    result.Listing.Source,
		Score:     result.Score,
		MatchType: string(result.MatchType),
		Fields:    result.FieldScores,
	}

	if err := e.publish(ctx, string(EventTypeListingMatched), result, payload); err != nil {
		e.logger.Error("Failed to emit listing.matched event", zap.Error(err))
		return err
	}
	return nil
}

func (e *Emitter) emitListingDuplicate(ctx context.Context, result *models.MatchResult) error {
	payload := ListingDuplicateEvent{
		BaseEvent: NewBaseEvent(EventTypeListingDuplicate),
		ProductID: result.Product.ID,
		ListingID: result.Listing.ID,
		Source:    result.Listing.Source,
		Changed:   result.Refreshed,
	}

	if err := e.publish(ctx, string(EventTypeListingDuplicate), result, payload); err != nil {
		e.logger.Error("Failed to emit listing.duplicate event", zap.Error(err))
		return err
	}
	return nil
}

func (e *Emitter) publish(ctx context.Context, eventType string, result *models.MatchResult, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return e.producer.PublishCatalogEvent(ctx, &kafka.CatalogEvent{
		EventType: eventType,
		ProductID: result.Product.ID,
		ListingID: result.Listing.ID,
		Source:    result.Listing.Source,
		Score:     result.Score,
		MatchType: string(result.MatchType),
		Data:      data,
	})
}
