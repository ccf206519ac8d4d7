package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/maintenance"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/sentiment"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage/backend"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/visualize"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/redis"
	"github.com/joho/godotenv"
)

var errUsage = errors.New("usage error")

// records is a CLI tool for inspecting and pruning the stored datasets.
//
// Usage:
//
//	records list   [-dataset articles|prices] [-fields url,sentiment]
//	records delete [-dataset articles|prices] -key <natural key>
//	records clear  [-dataset articles|prices] -yes
//	records plot   [-dataset articles|prices]
//	records flush-cache
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// Diagnostics go to stderr so list output stays parseable.
	slog.SetDefault(logger.New(os.Stderr, cfg.Logging.Level, "text"))

	connector, err := backend.New(cfg)
	if err != nil {
		slog.Error("failed to set up storage", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = newApp(cfg, connector, os.Stdout, os.Stderr).run(ctx, flag.Args())
	stop()

	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			printUsage(os.Stderr)
		} else {
			slog.Error("command failed", "error", err)
		}
		os.Exit(1)
	}
}

type app struct {
	cfg      *config.Config
	services map[string]*maintenance.Service
	out      io.Writer
	errOut   io.Writer
}

func newApp(cfg *config.Config, connector storage.Connector, out, errOut io.Writer) *app {
	return &app{
		cfg: cfg,
		services: map[string]*maintenance.Service{
			"articles": maintenance.ForKind(connector, cfg.Storage.NewsCollection, record.KindArticle),
			"prices":   maintenance.ForKind(connector, cfg.Storage.StockCollection, record.KindPriceBar),
		},
		out:    out,
		errOut: errOut,
	}
}

// run dispatches args[0] to its subcommand.
func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given", errUsage)
	}
	switch args[0] {
	case "list":
		return a.list(ctx, args[1:])
	case "delete":
		return a.delete(ctx, args[1:])
	case "clear":
		return a.clear(ctx, args[1:])
	case "plot":
		return a.plot(ctx, args[1:])
	case "flush-cache":
		return a.flushCache(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func (a *app) flagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs, fs.String("dataset", "articles", "dataset: articles or prices")
}

func (a *app) pick(name string) (*maintenance.Service, error) {
	svc, ok := a.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown dataset %q (want articles or prices)", errUsage, name)
	}
	return svc, nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs, dataset := a.flagSet("list")
	fields := fs.String("fields", "", "comma-separated fields to show (default: all)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	svc, err := a.pick(*dataset)
	if err != nil {
		return err
	}

	var projection []string
	if *fields != "" {
		projection = splitFields(*fields)
	}
	docs, err := svc.FetchAll(ctx, projection...)
	if err != nil {
		return fmt.Errorf("listing records: %w", err)
	}
	enc := json.NewEncoder(a.out)
	for _, d := range docs {
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}
	fmt.Fprintf(a.errOut, "%d records\n", len(docs))
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	fs, dataset := a.flagSet("delete")
	key := fs.String("key", "", "natural key (article url or bar date)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *key == "" {
		return fmt.Errorf("%w: -key is required", errUsage)
	}
	svc, err := a.pick(*dataset)
	if err != nil {
		return err
	}

	removed, err := svc.DeleteByKey(ctx, *key)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	if !removed {
		fmt.Fprintf(a.out, "no record with key %s\n", *key)
		return nil
	}
	fmt.Fprintf(a.out, "deleted %s\n", *key)
	return nil
}

func (a *app) clear(ctx context.Context, args []string) error {
	fs, dataset := a.flagSet("clear")
	yes := fs.Bool("yes", false, "confirm removal of every record in the dataset")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if !*yes {
		return fmt.Errorf("%w: clear removes every record; pass -yes to confirm", errUsage)
	}
	svc, err := a.pick(*dataset)
	if err != nil {
		return err
	}

	n, err := svc.Clear(ctx)
	if err != nil {
		return fmt.Errorf("clearing dataset: %w", err)
	}
	fmt.Fprintf(a.out, "deleted %d records\n", n)
	return nil
}

func (a *app) plot(ctx context.Context, args []string) error {
	fs, dataset := a.flagSet("plot")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	svc, err := a.pick(*dataset)
	if err != nil {
		return err
	}

	var (
		title  string
		points []visualize.Point
	)
	if *dataset == "prices" {
		docs, err := svc.FetchAll(ctx, record.PriceBarKeyField, "close")
		if err != nil {
			return fmt.Errorf("loading prices: %w", err)
		}
		title, points = "Closing Price Over Time", visualize.CloseSeries(docs)
	} else {
		docs, err := svc.FetchAll(ctx, "publishedAt", record.SentimentField)
		if err != nil {
			return fmt.Errorf("loading articles: %w", err)
		}
		title, points = "Sentiment Score Over Time", visualize.SentimentSeries(docs)
	}
	if err := visualize.Render(a.out, title, points); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return nil
}

// flushCache drops memoised sentiment scores so the next ingest recomputes
// them. Stored documents keep their scores.
func (a *app) flushCache(ctx context.Context) error {
	rdb, err := redis.NewClient(ctx, a.cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to redis at %s: %w", a.cfg.Redis.Addr, err)
	}
	defer rdb.Close()

	n, err := rdb.FlushByPattern(ctx, sentiment.CacheKeyPattern)
	if err != nil {
		return fmt.Errorf("flushing sentiment cache after %d keys: %w", n, err)
	}
	fmt.Fprintf(a.out, "deleted %d cached scores\n", n)
	return nil
}

func splitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage:
  records [-config path] list   [-dataset articles|prices] [-fields a,b]
  records [-config path] delete [-dataset articles|prices] -key <key>
  records [-config path] clear  [-dataset articles|prices] -yes
  records [-config path] plot   [-dataset articles|prices]
  records [-config path] flush-cache`)
}
