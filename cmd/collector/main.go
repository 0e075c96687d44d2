package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"alert-collector/internal/config"
	"alert-collector/internal/consumer"
	"alert-collector/internal/dedupe"
	"alert-collector/internal/metrics"
	"alert-collector/internal/processor"
	"alert-collector/internal/producer"
	"alert-collector/internal/state"
	"alert-collector/internal/transformer"
)

func main() {
	// Parse command-line flags
	cfg := &config.Config{}
	flag.StringVar(&cfg.QueueURL, "queue-url", "", "SQS queue URL to poll for inbound alerts")
	flag.StringVar(&cfg.QueueARN, "queue-arn", "", "SQS queue ARN (stamped on envelopes as the event source)")
	flag.StringVar(&cfg.AWSRegion, "aws-region", "us-east-1", "AWS region of the alert queue")
	flag.IntVar(&cfg.MaxReceiveCount, "max-receive-count", 3, "Delivery attempts before a corrupted message is dead-lettered")
	flag.StringVar(&cfg.KafkaBrokers, "kafka-brokers", "localhost:9092", "Kafka broker addresses (comma-separated)")
	flag.StringVar(&cfg.NormalizedTopic, "normalized-topic", "alerts.normalized", "Kafka topic for normalized alert events")
	flag.StringVar(&cfg.DeadLetterTopic, "deadletter-topic", "alerts.deadletter", "Kafka topic for dead-lettered messages")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", "", "PostgreSQL connection string for alert state (empty disables state tracking)")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", "", "Redis address for dedupe and metrics (empty disables both)")
	flag.IntVar(&cfg.Workers, "workers", 10, "Number of concurrent message processing workers")
	flag.DurationVar(&cfg.DedupeTTL, "dedupe-ttl", 30*time.Minute, "TTL for duplicate suppression entries")
	flag.StringVar(&cfg.DefaultTeam, "default-team", "unknown", "Team assigned when an alert carries no enrichment")
	flag.StringVar(&cfg.DefaultPriority, "default-priority", "P0", "Priority assigned when an alert carries no enrichment")
	flag.Parse()

	// Set up structured logging
	// Allow DEBUG level via environment variable for troubleshooting
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "DEBUG" || os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("Starting collector service",
		"queue_url", cfg.QueueURL,
		"aws_region", cfg.AWSRegion,
		"kafka_brokers", cfg.KafkaBrokers,
		"normalized_topic", cfg.NormalizedTopic,
		"deadletter_topic", cfg.DeadLetterTopic,
		"workers", cfg.Workers,
		"state_tracking", cfg.PostgresDSN != "",
		"dedupe", cfg.RedisAddr != "",
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	// Initialize SQS consumer
	slog.Info("Connecting to SQS", "queue_url", cfg.QueueURL)
	sqsConsumer, err := consumer.New(ctx, cfg.QueueURL, cfg.QueueARN, cfg.AWSRegion)
	if err != nil {
		slog.Error("Failed to create SQS consumer", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producers
	slog.Info("Connecting to Kafka producer", "topic", cfg.NormalizedTopic)
	normalizedProducer, err := producer.NewProducer(cfg.KafkaBrokers, cfg.NormalizedTopic)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "error", err)
		slog.Info("Tip: Start Kafka with 'docker compose up -d kafka'")
		os.Exit(1)
	}
	defer normalizedProducer.Close()

	deadLetterProducer, err := producer.NewDeadLetterProducer(cfg.KafkaBrokers, cfg.DeadLetterTopic)
	if err != nil {
		slog.Error("Failed to create dead-letter producer", "error", err)
		os.Exit(1)
	}
	defer deadLetterProducer.Close()

	// Initialize alert state store (optional)
	var stateStore *state.Store
	if cfg.PostgresDSN != "" {
		slog.Info("Connecting to PostgreSQL database")
		stateStore, err = state.NewStore(cfg.PostgresDSN)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			slog.Info("Tip: Start Postgres with 'docker compose up -d postgres' or ensure Postgres is running")
			os.Exit(1)
		}
		defer stateStore.Close()
		slog.Info("Successfully connected to PostgreSQL database")
	} else {
		slog.Warn("State tracking disabled, every firing alert is published as CREATE")
	}

	// Initialize Redis-backed dedupe and metrics (optional)
	var dedupeCache *dedupe.Cache
	var recorder metrics.Recorder = metrics.NewNoOp()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			slog.Info("Tip: Start Redis with 'docker compose up -d redis'")
			os.Exit(1)
		}
		defer redisClient.Close()

		dedupeCache = dedupe.NewCache(redisClient, cfg.DedupeTTL)

		collector := metrics.NewCollector("collector", redisClient)
		collector.Start(ctx)
		defer collector.Stop()
		recorder = collector
	} else {
		slog.Warn("Redis disabled, duplicate suppression and metrics reporting are off")
	}

	// Build the normalization pipeline
	registry := transformer.NewRegistry(transformer.Defaults{
		Team:     cfg.DefaultTeam,
		Priority: cfg.DefaultPriority,
	})
	proc := processor.New(registry)

	// Main processing loop
	slog.Info("Starting alert processing loop")
	deps := &processorDeps{
		consumer:   sqsConsumer,
		processor:  proc,
		normalized: normalizedProducer,
		deadLetter: deadLetterProducer,
		state:      stateStore,
		dedupe:     dedupeCache,
		metrics:    recorder,
		maxReceive: cfg.MaxReceiveCount,
	}
	if err := processAlerts(ctx, deps, cfg.Workers); err != nil {
		slog.Error("Alert processing failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Collector service stopped")
}
