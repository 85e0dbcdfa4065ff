// Command ingestion publishes files to the document ingest topic for the
// indexer worker. Directories are walked recursively.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml] [-inline] <file|dir>...
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	inline := flag.Bool("inline", false, "send file content in the event instead of the path only")
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: ingestion [-config path] [-inline] <file|dir>...")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest,
		resilience.FixedRetry(cfg.Retry.MaxAttempts, cfg.Retry.Delay))
	defer producer.Close()
	pub := publisher.New(producer, *inline)

	published, failed := 0, 0
	enc := json.NewEncoder(os.Stdout)
	for _, root := range flag.Args() {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !d.Type().IsRegular() {
				return nil
			}
			ev, err := pub.PublishFile(ctx, path)
			if err != nil {
				slog.Error("failed to publish file", "path", path, "error", err)
				failed++
				return nil
			}
			published++
			ev.Content = ""
			return enc.Encode(ev)
		})
		if err != nil {
			slog.Error("walk aborted", "root", root, "error", err)
			failed++
		}
	}

	slog.Info("ingestion finished",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"published", published,
		"failed", failed,
	)
	if failed > 0 {
		os.Exit(1)
	}
}
