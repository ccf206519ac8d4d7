package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/sentiment"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage"
	apperrors "github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/tracing"
)

// Pipeline ingests batches into a single collection.
type Pipeline struct {
	cfg       Config
	keyField  string
	connector storage.Connector
	scorer    sentiment.Scorer
	notifier  Notifier
	metrics   *metrics.Metrics
}

type Option func(*Pipeline)

// WithScorer sets the scorer used when a batch asks for enrichment.
func WithScorer(s sentiment.Scorer) Option {
	return func(p *Pipeline) { p.scorer = s }
}

func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func New(cfg Config, connector storage.Connector, opts ...Option) (*Pipeline, error) {
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, fmt.Errorf("%w: collection name is empty", apperrors.ErrInvalidInput)
	}
	if cfg.Kind != record.KindArticle && cfg.Kind != record.KindPriceBar {
		return nil, fmt.Errorf("%w: unknown record kind %q", apperrors.ErrInvalidInput, cfg.Kind)
	}
	p := &Pipeline{
		cfg:       cfg,
		keyField:  record.KeyField(cfg.Kind),
		connector: connector,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Ingest writes records to the collection in order and reports what
// happened to each.
//
// A record that already exists is left alone under InsertOnly and
// overwritten field by field under Merge, so running the same batch twice
// creates nothing the second time. A record that cannot be validated,
// scored or written is logged, counted and listed in Report.Failures; the
// rest of the batch still goes through. Within one batch the first record
// carrying a key wins under InsertOnly.
//
// The returned error is reserved for faults that stop the whole batch:
// the store being unreachable, the unique index failing, or ctx ending.
// The report then covers the records handled before the fault.
func (p *Pipeline) Ingest(ctx context.Context, records []record.Record, enrich bool) (*Report, error) {
	report := &Report{Collection: p.cfg.Collection}
	if enrich && p.scorer == nil {
		return report, fmt.Errorf("%w: enrichment requested but no scorer configured", apperrors.ErrInvalidInput)
	}

	start := time.Now()
	ctx, span := tracing.Start(ctx, "ingest."+p.cfg.Collection, "")
	log := logger.FromContext(ctx).With(
		"component", "ingestion",
		"collection", p.cfg.Collection,
		"policy", p.cfg.Policy.String(),
	)

	err := storage.With(ctx, p.connector, func(s storage.Store) error {
		if err := s.EnsureUniqueIndex(ctx, p.cfg.Collection, p.keyField); err != nil {
			return apperrors.Storage("ensure unique index", err)
		}
		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.ingestOne(ctx, s, rec, enrich, report, log)
		}
		return nil
	})
	if err != nil && !errors.Is(err, apperrors.ErrStorageOperation) && ctx.Err() == nil {
		err = apperrors.Storage("connect", err)
	}

	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.BatchDuration.WithLabelValues(p.cfg.Collection).Observe(elapsed.Seconds())
	}
	span.SetAttr("records", len(records))
	span.SetAttr("inserted", report.Inserted)
	span.SetAttr("updated", report.Updated)
	span.SetAttr("unchanged", report.Unchanged)
	span.SetAttr("failed", report.Failed())
	span.End()

	if err != nil {
		log.Error("batch aborted", "error", err, "inserted", report.Inserted, "failed", report.Failed())
		return report, err
	}
	log.Info("batch ingested",
		"records", len(records),
		"inserted", report.Inserted,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"failed", report.Failed(),
		"duration_ms", elapsed.Milliseconds(),
	)
	return report, nil
}

func (p *Pipeline) ingestOne(ctx context.Context, s storage.Store, rec record.Record, enrich bool, report *Report, log *slog.Logger) {
	if err := validator.Validate(rec, p.cfg.Kind); err != nil {
		key := ""
		if rec != nil {
			key, _ = rec.NaturalKey()
		}
		p.fail(report, log, key, err)
		return
	}
	key, _ := rec.NaturalKey()

	if enrich {
		if err := p.enrich(ctx, rec); err != nil {
			p.fail(report, log, key, err)
			return
		}
	}

	doc := rec.Document()
	switch p.cfg.Policy {
	case record.Merge:
		outcome, err := s.Upsert(ctx, p.cfg.Collection, p.keyField, key, doc)
		if err != nil {
			p.fail(report, log, key, apperrors.Storage("upsert", err))
			return
		}
		p.count(report, outcome)
		if outcome == storage.OutcomeInserted {
			p.notify(ctx, log, key, doc)
		}
	default:
		created, err := s.InsertIfAbsent(ctx, p.cfg.Collection, p.keyField, key, doc)
		if err != nil {
			p.fail(report, log, key, apperrors.Storage("insert", err))
			return
		}
		if !created {
			p.count(report, storage.OutcomeUnchanged)
			log.Debug("record already stored", "key", key)
			return
		}
		p.count(report, storage.OutcomeInserted)
		p.notify(ctx, log, key, doc)
	}
}

// enrich scores rec's body, if it has one, and attaches the score.
func (p *Pipeline) enrich(ctx context.Context, rec record.Record) error {
	e, ok := rec.(record.Enrichable)
	if !ok || strings.TrimSpace(e.Body()) == "" {
		return nil
	}
	start := time.Now()
	score, err := p.scorer.Score(ctx, e.Body())
	if p.metrics != nil {
		p.metrics.EnrichmentDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrEnrichment, err)
	}
	if !sentiment.ValidScore(score) {
		return fmt.Errorf("%w: score %v outside [-1, 1]", apperrors.ErrEnrichment, score)
	}
	e.SetSentiment(score)
	return nil
}

func (p *Pipeline) count(report *Report, outcome storage.Outcome) {
	switch outcome {
	case storage.OutcomeInserted:
		report.Inserted++
	case storage.OutcomeUpdated:
		report.Updated++
	case storage.OutcomeUnchanged:
		report.Unchanged++
	}
	if p.metrics != nil {
		p.metrics.RecordsIngestedTotal.WithLabelValues(p.cfg.Collection, outcome.String()).Inc()
	}
}

func (p *Pipeline) fail(report *Report, log *slog.Logger, key string, err error) {
	rerr := &apperrors.RecordError{Collection: p.cfg.Collection, Key: key, Err: err}
	report.Failures = append(report.Failures, rerr)
	reason := apperrors.Reason(err)
	if p.metrics != nil {
		p.metrics.RecordFailuresTotal.WithLabelValues(p.cfg.Collection, reason).Inc()
	}
	log.Warn("record skipped", "key", key, "reason", reason, "error", err)
}

// notify tells the notifier about a new document. Its failure does not undo
// or fail the write.
func (p *Pipeline) notify(ctx context.Context, log *slog.Logger, key string, doc record.Document) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.RecordIngested(ctx, p.cfg.Collection, key, doc); err != nil {
		log.Warn("failed to publish ingest event", "key", key, "error", err)
	}
}
