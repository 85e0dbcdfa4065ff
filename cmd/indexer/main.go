package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	reset := flag.Bool("reset", false, "drop all stored data before starting")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer worker", "storage", cfg.Storage.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	ix, err := engine.Open(ctx, cfg, engine.WithMetrics(m))
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer ix.Close()

	if err := ix.Initialize(ctx, *reset || cfg.Index.ResetOnStart); err != nil {
		slog.Error("failed to initialize index", "error", err)
		os.Exit(1)
	}

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, ix.Health())
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(sctx)
		}()
	}

	retry := resilience.FixedRetry(cfg.Retry.MaxAttempts, cfg.Retry.Delay)
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, retry)
	defer producer.Close()

	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.DocumentIngest,
		consumer.HandleMessage(ix, producer),
		retry,
	)
	defer kafkaConsumer.Close()

	indexConsumer := consumer.New(kafkaConsumer)

	slog.Info("indexer worker ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)

	if err := indexConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("indexer worker stopped")
}
