package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/logger"
)

const usage = `usage: searcher [-config path] [-reset] <command> [args]

commands:
  search [-limit n] <query>   run a query and print ranked hits
  add <file>...               index files
  open <path>                 record that a document was opened
  rate <path> <0-100>         rate a document
  top [-n n]                  print the most frequent queries
  stop <word>...              add stop words
  whitelist <word>...         add whitelist words
`

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	reset := flag.Bool("reset", false, "drop all stored data before running")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
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

	ix, err := engine.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer ix.Close()

	if err := ix.Initialize(ctx, *reset || cfg.Index.ResetOnStart); err != nil {
		slog.Error("failed to initialize index", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, ix, flag.Arg(0), flag.Args()[1:]); err != nil {
		slog.Error("command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, ix *engine.Index, command string, args []string) error {
	switch command {
	case "search":
		fs := flag.NewFlagSet("search", flag.ExitOnError)
		limit := fs.Int("limit", 10, "maximum number of hits")
		fs.Parse(args)
		result, err := ix.Search(ctx, strings.Join(fs.Args(), " "), *limit)
		if err != nil {
			return err
		}
		if !result.Ranked {
			fmt.Fprintf(os.Stderr, "results are unranked (%s); they are ranked once a document has been opened\n", result.UnrankedReason)
		}
		return emit(result)
	case "add":
		return add(ctx, ix, args)
	case "open":
		if len(args) != 1 {
			return errors.New("open takes one path")
		}
		doc, err := lookup(ctx, ix, args[0])
		if err != nil {
			return err
		}
		if err := ix.RecordOpen(ctx, doc); err != nil {
			return err
		}
		return ix.Commit(ctx)
	case "rate":
		if len(args) != 2 {
			return errors.New("rate takes a path and a rating")
		}
		rating, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("parsing rating: %w", err)
		}
		doc, err := lookup(ctx, ix, args[0])
		if err != nil {
			return err
		}
		if err := ix.Corpus().Rate(ctx, doc, rating); err != nil {
			return err
		}
		return ix.Commit(ctx)
	case "top":
		fs := flag.NewFlagSet("top", flag.ExitOnError)
		n := fs.Int("n", 20, "number of queries")
		fs.Parse(args)
		top, err := ix.TopQueries(ctx, *n)
		if err != nil {
			return err
		}
		return emit(top)
	case "stop":
		return addWords(ctx, ix, model.StopWord, args)
	case "whitelist":
		return addWords(ctx, ix, model.WhiteListWord, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

type added struct {
	Path       string `json:"path"`
	DocID      uint32 `json:"doc_id,omitempty"`
	Outcome    string `json:"outcome"`
	TokenCount int    `json:"token_count"`
	Error      string `json:"error,omitempty"`
}

func add(ctx context.Context, ix *engine.Index, files []string) error {
	out := make([]added, 0, len(files))
	for _, f := range files {
		path, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", f, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		res := ix.Add(ctx, corpus.AddRequest{
			Checksum:   corpus.Checksum(data),
			Path:       path,
			RawData:    data,
			ModifiedAt: info.ModTime(),
			Commit:     true,
		})
		a := added{Path: path, Outcome: res.Outcome.String()}
		if res.Document != nil {
			a.DocID = res.Document.ID
			a.TokenCount = res.Document.TokenCount
		}
		if res.Err != nil {
			a.Error = res.Err.Error()
		}
		out = append(out, a)
	}
	return emit(out)
}

func addWords(ctx context.Context, ix *engine.Index, kind model.WordKind, words []string) error {
	for _, w := range words {
		if err := ix.Words().Add(ctx, kind, w); err != nil {
			return fmt.Errorf("adding %q: %w", w, err)
		}
	}
	if err := ix.Commit(ctx); err != nil {
		return err
	}
	return ix.RefreshWords(ctx)
}

func lookup(ctx context.Context, ix *engine.Index, p string) (*model.Document, error) {
	path, err := filepath.Abs(p)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", p, err)
	}
	doc, err := ix.Corpus().ByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%s is not indexed", path)
	}
	return doc, nil
}

func emit(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
