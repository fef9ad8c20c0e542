// Package processor handles incoming scraped-listing messages. This is the
// ingestion layer: each message is validated, resolved through the match
// engine, and acknowledged only after storage succeeded.
package processor

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pricewatch/catalog/internal/platform/tracing"
	"github.com/pricewatch/catalog/pkg/events"
	"github.com/pricewatch/catalog/pkg/kafka"
	"github.com/pricewatch/catalog/pkg/matching"
	"github.com/pricewatch/catalog/pkg/models"
)

// Processor handles message processing for listing ingestion
type Processor struct {
	logger   *zap.Logger
	engine   *matching.Engine
	emitter  *events.Emitter
	validate *validator.Validate
}

// NewProcessor creates a new message processor for ingestion. The emitter is
// optional; without one, match results are only persisted.
func NewProcessor(logger *zap.Logger, engine *matching.Engine, emitter *events.Emitter) *Processor {
	return &Processor{
		logger:   logger,
		engine:   engine,
		emitter:  emitter,
		validate: validator.New(),
	}
}

// ProcessMessage handles an incoming Kafka message
func (p *Processor) ProcessMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.ProcessMessage")
	defer span.End()

	log := p.logger.With(
		zap.String("key", msg.Key),
		zap.String("topic", msg.Topic),
		zap.Int64("offset", msg.Offset),
	)

	if msg.IsRunCompleted() {
		return p.handleRunCompleted(ctx, msg)
	}

	if msg.ScrapeMessage == nil {
		if err := msg.ParseScrapeMessage(); err != nil {
			log.Error("Failed to parse scrape message", zap.Error(err))
			return nil // Skip message, don't retry
		}
	}

	log = log.With(
		zap.String("source", msg.GetSource()),
		zap.String("run_id", msg.GetRunID()),
	)

	return p.processListing(ctx, msg.ScrapeMessage.Listing, log)
}

// processListing resolves one scraped listing against the catalog. Malformed
// inputs are skipped with a warning; storage failures are returned so the
// consumer does not commit the offset.
func (p *Processor) processListing(ctx context.Context, input models.ListingInput, log *zap.Logger) error {
	ctx, span := tracing.StartSpan(ctx, "processor.processListing")
	defer span.End()

	if err := p.validate.Struct(input); err != nil {
		log.Warn("Skipping listing: failed validation",
			zap.String("source", input.Source),
			zap.String("external_id", input.ExternalID),
			zap.Error(err),
		)
		return nil
	}

	result, err := p.engine.FindOrCreateMatch(ctx, input)
	if err != nil {
		if errors.Is(err, models.ErrStorage) {
			log.Error("Storage failure while matching listing", zap.Error(err))
			return err
		}
		log.Error("Failed to match listing", zap.Error(err))
		return err
	}

	log.Info("Listing processed",
		zap.String("product_id", result.Product.ID),
		zap.String("match_type", string(result.MatchType)),
		zap.Float64("score", result.Score),
		zap.Bool("created", result.Created),
	)

	if p.emitter != nil {
		if err := p.emitter.EmitMatchResult(ctx, result); err != nil {
			// The listing is stored; a failed emit is not worth a redelivery
			// that would reprocess it.
			log.Warn("Failed to emit match event", zap.Error(err))
		}
	}

	return nil
}

// handleRunCompleted handles run.completed events from scrapers
func (p *Processor) handleRunCompleted(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.handleRunCompleted")
	defer span.End()

	evt, err := msg.ParseRunCompleted()
	if err != nil {
		p.logger.Error("Failed to parse run.completed event", zap.Error(err))
		return nil
	}

	p.logger.Info("Scrape run completed",
		zap.String("source", evt.Source),
		zap.String("run_id", evt.RunID),
		zap.String("status", evt.Status),
		zap.Int("listings_emitted", evt.Stats.ListingsEmitted),
		zap.Int("failures", evt.Stats.Failures),
	)

	return nil
}
