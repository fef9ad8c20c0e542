// Package config loads service configuration from the environment. Invalid
// configuration fails Load, so a misconfigured service never starts.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppName    string `envconfig:"APP_NAME" default:"catalog-api"`
	Port       int    `envconfig:"PORT" default:"3002"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	PrettyLogs bool   `envconfig:"PRETTY_LOGS" default:"false"`

	HttpServerWriteTimeoutSeconds int `envconfig:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" default:"10"`
	HttpServerReadTimeoutSeconds  int `envconfig:"HTTP_SERVER_READ_TIMEOUT_SECONDS" default:"10"`
	HttpServerIdleTimeoutSeconds  int `envconfig:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" default:"10"`

	// PostgreSQL
	DatabaseHost                string        `envconfig:"DB_HOST" default:"localhost"`
	DatabasePort                string        `envconfig:"DB_PORT" default:"5432"`
	DatabaseUserName            string        `envconfig:"DB_USER_NAME" default:""`
	DatabasePassword            string        `envconfig:"DB_PASSWORD" default:""`
	DatabaseName                string        `envconfig:"DB_NAME" default:"catalog"`
	DatabaseSSLMode             string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DatabaseMaxOpenConns        int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	DatabaseMaxIdleConns        int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	DatabaseConnMaxLifetime     time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"10s"`
	DatabaseMigrationFolderPath string        `envconfig:"DB_MIGRATION_FOLDER_PATH" default:"db/pg"`

	// Kafka consumer (scraper output - ingestion)
	KafkaBrokers         []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaInputTopic      string   `envconfig:"KAFKA_INPUT_TOPIC" default:"scraped-listings"`
	KafkaConsumerGroup   string   `envconfig:"KAFKA_CONSUMER_GROUP" default:"catalog-consumer"`
	KafkaConsumerEnabled bool     `envconfig:"KAFKA_CONSUMER_ENABLED" default:"true"`

	// Kafka producer settings
	KafkaOutputTopic  string `envconfig:"KAFKA_OUTPUT_TOPIC" default:"catalog-events"`
	KafkaBatchSize    int    `envconfig:"KAFKA_BATCH_SIZE" default:"100"`
	KafkaBatchTimeout int    `envconfig:"KAFKA_BATCH_TIMEOUT_MS" default:"100"`
	KafkaRequiredAcks int    `envconfig:"KAFKA_REQUIRED_ACKS" default:"1"`
	KafkaCompression  string `envconfig:"KAFKA_COMPRESSION" default:"snappy"`

	// Matching
	MatchThreshold   float64 `envconfig:"MATCH_THRESHOLD" default:"0.82"`
	MaxCandidates    int     `envconfig:"MAX_CANDIDATES" default:"20"`
	ClusterExpansion int     `envconfig:"CLUSTER_EXPANSION" default:"10"`
	StripLineTokens  bool    `envconfig:"STRIP_LINE_TOKENS" default:"false"`
	BrandDictPath    string  `envconfig:"BRAND_DICT_PATH" default:""`
}

// Load reads configuration from the environment, applying a local .env file
// when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configuration the matching engine would refuse anyway,
// surfacing the failure at startup.
func (c Config) Validate() error {
	if c.MatchThreshold <= 0 || c.MatchThreshold >= 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be between 0 and 1 exclusive, got %v", c.MatchThreshold)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("MAX_CANDIDATES must be positive, got %d", c.MaxCandidates)
	}
	if c.ClusterExpansion <= 0 {
		return fmt.Errorf("CLUSTER_EXPANSION must be positive, got %d", c.ClusterExpansion)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	return nil
}
