package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/pricewatch/catalog/config"
	listingrepo "github.com/pricewatch/catalog/internal/repositories/listing"
	productrepo "github.com/pricewatch/catalog/internal/repositories/product"

	"github.com/pricewatch/catalog/internal/platform/database"
	"github.com/pricewatch/catalog/internal/platform/logging"
	"github.com/pricewatch/catalog/internal/platform/tracing"
	"github.com/pricewatch/catalog/pkg/brands"
	"github.com/pricewatch/catalog/pkg/events"
	"github.com/pricewatch/catalog/pkg/grouping"
	"github.com/pricewatch/catalog/pkg/kafka"
	"github.com/pricewatch/catalog/pkg/matching"
	"github.com/pricewatch/catalog/pkg/normalize"
	"github.com/pricewatch/catalog/pkg/processor"
	groupsroutes "github.com/pricewatch/catalog/pkg/routes/groups"
	"github.com/pricewatch/catalog/pkg/routes/health"
	matchroutes "github.com/pricewatch/catalog/pkg/routes/match"
	"github.com/pricewatch/catalog/pkg/routes/validation"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Service failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := tracing.Init()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	db, err := database.Connect(ctx, database.Config{
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		User:            cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(db, cfg.DatabaseMigrationFolderPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	products := productrepo.NewRepository(db, logger)
	listings := listingrepo.NewRepository(db, logger)

	entries := brands.DefaultEntries()
	if cfg.BrandDictPath != "" {
		if entries, err = brands.LoadEntries(cfg.BrandDictPath); err != nil {
			return fmt.Errorf("failed to load brand dictionary: %w", err)
		}
	}
	dict := brands.NewStore(brands.NewDictionary(entries))
	var normOpts []normalize.Option
	if cfg.StripLineTokens {
		normOpts = append(normOpts, normalize.WithStripLineTokens())
	}
	normalizer := normalize.New(normOpts...)

	engine, err := matching.NewEngine(logger, products, listings, dict, normalizer, matching.DefaultWeights(), matching.Config{
		MatchThreshold:   cfg.MatchThreshold,
		MaxCandidates:    cfg.MaxCandidates,
		ClusterExpansion: cfg.ClusterExpansion,
	})
	if err != nil {
		return fmt.Errorf("failed to build matching engine: %w", err)
	}

	pipeline := grouping.New(logger, engine, products, listings)

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer func() { _ = producer.Close() }()

	emitter := events.NewEmitter(producer, logger)
	proc := processor.NewProcessor(logger, engine, emitter)

	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaInputTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
		}, logger, proc.ProcessMessage)
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start consumer: %w", err)
		}
		defer func() { _ = consumer.Stop() }()
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))

	var consumerHealth interface{ Health() bool }
	if consumer != nil {
		consumerHealth = consumer
	}
	checker := health.NewChecker(db, consumerHealth, version)
	checker.RegisterRoutes(e)
	matchroutes.NewHandler(engine, logger).RegisterRoutes(e)
	groupsroutes.NewHandler(pipeline, logger).RegisterRoutes(e)

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			zap.String("app", cfg.AppName),
			zap.Int("port", cfg.Port),
			zap.Float64("match_threshold", cfg.MatchThreshold),
		)
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	checker.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
