// Package runner drives ingestion cycles: fetch news, ingest it with
// sentiment, fetch the daily price series, ingest it. A cycle runs once or
// on a fixed interval until the context ends.
package runner

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/tracing"
)

type NewsFetcher interface {
	Fetch(ctx context.Context, query string, pageSize int) ([]*record.Article, error)
}

type PriceFetcher interface {
	FetchDaily(ctx context.Context, symbol string) ([]*record.PriceBar, error)
}

// Ingester is satisfied by *ingestion.Pipeline.
type Ingester interface {
	Ingest(ctx context.Context, records []record.Record, enrich bool) (*ingestion.Report, error)
}

// Config says what a cycle fetches.
type Config struct {
	NewsQuery    string
	NewsPageSize int
	Symbol       string
	Sentiment    bool
}

type Runner struct {
	cfg        Config
	news       NewsFetcher
	prices     PriceFetcher
	newsSink   Ingester
	pricesSink Ingester
	logger     *slog.Logger
}

func New(cfg Config, news NewsFetcher, prices PriceFetcher, newsSink, pricesSink Ingester) *Runner {
	return &Runner{
		cfg:        cfg,
		news:       news,
		prices:     prices,
		newsSink:   newsSink,
		pricesSink: pricesSink,
		logger:     slog.Default().With("component", "runner"),
	}
}

// CycleReport collects the outcome of one cycle. A nil report means the
// stage did not reach ingestion.
type CycleReport struct {
	RunID  string
	News   *ingestion.Report
	Prices *ingestion.Report
}

// RunOnce runs one cycle. The price stage runs even if the news stage
// failed; the returned error joins the failures of both.
func (r *Runner) RunOnce(ctx context.Context) (*CycleReport, error) {
	runID := newRunID()
	ctx = logger.WithRunID(ctx, runID)
	ctx, span := tracing.Start(ctx, "cycle", runID)
	defer func() {
		span.End()
		span.Log(logger.FromContext(ctx).With("component", "runner"))
	}()

	report := &CycleReport{RunID: runID}
	var errs []error

	if articles, err := r.news.Fetch(ctx, r.cfg.NewsQuery, r.cfg.NewsPageSize); err != nil {
		errs = append(errs, fmt.Errorf("fetching news: %w", err))
	} else {
		recs := make([]record.Record, len(articles))
		for i, a := range articles {
			recs[i] = a
		}
		rep, err := r.newsSink.Ingest(ctx, recs, r.cfg.Sentiment)
		report.News = rep
		if err != nil {
			errs = append(errs, fmt.Errorf("ingesting news: %w", err))
		}
	}
	if ctx.Err() != nil {
		return report, errors.Join(append(errs, ctx.Err())...)
	}

	if bars, err := r.prices.FetchDaily(ctx, r.cfg.Symbol); err != nil {
		errs = append(errs, fmt.Errorf("fetching %s prices: %w", r.cfg.Symbol, err))
	} else {
		recs := make([]record.Record, len(bars))
		for i, b := range bars {
			recs[i] = b
		}
		rep, err := r.pricesSink.Ingest(ctx, recs, false)
		report.Prices = rep
		if err != nil {
			errs = append(errs, fmt.Errorf("ingesting prices: %w", err))
		}
	}
	return report, errors.Join(errs...)
}

// Run runs a cycle immediately and then every interval until ctx ends. A
// failed cycle is logged and the next one still runs.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		report, err := r.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Error("ingestion cycle failed", "run_id", report.RunID, "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}

func newRunID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
