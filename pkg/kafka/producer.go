package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/pricewatch/catalog/internal/platform/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger *zap.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	requiredAcks := kafka.RequiredAcks(cfg.RequiredAcks)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           requiredAcks,
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// CatalogEvent represents an event about a product or listing
type CatalogEvent struct {
	EventType string          `json:"event_type"` // product.created, listing.matched, listing.duplicate
	ProductID string          `json:"product_id"`
	ListingID string          `json:"listing_id,omitempty"`
	Source    string          `json:"source,omitempty"`
	Score     float64         `json:"score,omitempty"`
	MatchType string          `json:"match_type,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// PublishCatalogEvent publishes a catalog event to Kafka
func (p *Producer) PublishCatalogEvent(ctx context.Context, event *CatalogEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishCatalogEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.ProductID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "source", Value: []byte(event.Source)},
			{Key: "schema_version", Value: []byte("1.0")},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish catalog event", zap.Error(err))
		return err
	}

	p.logger.Debug("Published catalog event",
		zap.String("event_type", event.EventType),
		zap.String("product_id", event.ProductID),
		zap.String("listing_id", event.ListingID),
	)

	return nil
}
