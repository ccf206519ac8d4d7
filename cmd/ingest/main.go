// Command ingest fetches news articles and a daily stock price series and
// stores them, scoring article sentiment on the way.
//
// With ingest.interval set (and -once unset) it keeps running: one cycle per
// interval, plus the records HTTP API and a Prometheus metrics server.
//
// Usage:
//
//	go run ./cmd/ingest [-config configs/development.yaml] [-sentiment=false] [-once]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/api"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/ingestion/events"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/ingestion/runner"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/maintenance"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/sentiment"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage/backend"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	withSentiment := flag.Bool("sentiment", true, "score article sentiment (overrides ingest.sentiment)")
	once := flag.Bool("once", false, "run a single cycle even if ingest.interval is set")
	flag.Parse()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "sentiment" {
			cfg.Ingest.Sentiment = *withSentiment
		}
	})
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *once); err != nil {
		slog.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, once bool) error {
	connector, err := backend.New(cfg)
	if err != nil {
		return err
	}
	slog.Info("starting ingest",
		"driver", cfg.Storage.Driver,
		"news_collection", cfg.Storage.NewsCollection,
		"stock_collection", cfg.Storage.StockCollection,
		"sentiment", cfg.Ingest.Sentiment,
		"interval", cfg.Ingest.Interval,
	)

	m := metrics.New(prometheus.DefaultRegisterer)
	checker := health.NewChecker()
	checker.Register("storage", health.PingCheck(func(ctx context.Context) error {
		return storage.With(ctx, connector, func(s storage.Store) error { return s.Ping(ctx) })
	}, health.StatusDown))

	opts := []ingestion.Option{ingestion.WithMetrics(m)}

	if cfg.Ingest.Sentiment {
		var scorer sentiment.Scorer = sentiment.NewVaderScorer()
		if cfg.Redis.Enabled {
			rdb, err := redis.NewClient(ctx, cfg.Redis)
			if err != nil {
				slog.Warn("sentiment cache unavailable, scoring without it", "error", err)
			} else {
				defer rdb.Close()
				scorer = sentiment.NewCachedScorer(scorer, rdb, cfg.Redis.CacheTTL, m)
				checker.Register("redis", health.PingCheck(rdb.Ping, health.StatusDegraded))
				slog.Info("sentiment cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
			}
		}
		opts = append(opts, ingestion.WithScorer(scorer))
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RecordIngested)
		defer producer.Close()
		opts = append(opts, ingestion.WithNotifier(events.NewKafkaNotifier(producer, m)))
		slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.RecordIngested)
	}

	newsPipe, err := ingestion.New(ingestion.Config{
		Collection: cfg.Storage.NewsCollection,
		Kind:       record.KindArticle,
		Policy:     record.DefaultPolicy(record.KindArticle),
	}, connector, opts...)
	if err != nil {
		return err
	}
	pricePipe, err := ingestion.New(ingestion.Config{
		Collection: cfg.Storage.StockCollection,
		Kind:       record.KindPriceBar,
		Policy:     record.DefaultPolicy(record.KindPriceBar),
	}, connector, opts...)
	if err != nil {
		return err
	}

	r := runner.New(runner.Config{
		NewsQuery:    cfg.Ingest.NewsQuery,
		NewsPageSize: cfg.Ingest.NewsPageSize,
		Symbol:       cfg.Ingest.Symbol,
		Sentiment:    cfg.Ingest.Sentiment,
	},
		source.NewNewsAPIClient(cfg.Sources.NewsAPIURL, cfg.Sources.NewsAPIKey, cfg.Sources.HTTPTimeout),
		source.NewAlphaVantageClient(cfg.Sources.AlphaVantageURL, cfg.Sources.StocksAPIKey, cfg.Sources.HTTPTimeout),
		newsPipe, pricePipe,
	)

	if once || cfg.Ingest.Interval == 0 {
		report, err := r.RunOnce(ctx)
		logCycle(report)
		return err
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	handler := api.NewHandler(map[string]api.Dataset{
		api.DatasetArticles: {
			Service: maintenance.ForKind(connector, cfg.Storage.NewsCollection, record.KindArticle),
			Kind:    record.KindArticle,
		},
		api.DatasetPrices: {
			Service: maintenance.ForKind(connector, cfg.Storage.StockCollection, record.KindPriceBar),
			Kind:    record.KindPriceBar,
		},
	})
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler, checker, m, cfg.Server.WriteTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		slog.Info("records api listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	err = r.Run(ctx, cfg.Ingest.Interval)

	slog.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		slog.Error("server shutdown error", "error", serr)
	}
	slog.Info("ingest stopped")
	return err
}

func logCycle(report *runner.CycleReport) {
	if report == nil {
		return
	}
	for _, rep := range []*ingestion.Report{report.News, report.Prices} {
		if rep == nil {
			continue
		}
		fmt.Printf("%s: inserted=%d updated=%d unchanged=%d failed=%d\n",
			rep.Collection, rep.Inserted, rep.Updated, rep.Unchanged, rep.Failed())
	}
}
