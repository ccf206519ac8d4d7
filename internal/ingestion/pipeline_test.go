package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage/memstore"
	apperrors "github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const (
	newsColl   = "news"
	stocksColl = "stocks"
)

func strp(s string) *string { return &s }

func int64p(v int64) *int64 { return &v }

func article(url, content string) *record.Article {
	a := &record.Article{URL: url, Title: "t " + url, PublishedAt: "2024-01-01T00:00:00Z"}
	if content != "" {
		a.Content = strp(content)
	}
	return a
}

// keywordScorer scores "great" as 0.8 and "bad" as -0.6, and fails on
// "explode".
type keywordScorer struct {
	mu    sync.Mutex
	calls []string
}

func (s *keywordScorer) Score(ctx context.Context, text string) (float64, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()
	switch text {
	case "great news":
		return 0.8, nil
	case "bad news":
		return -0.6, nil
	case "explode":
		return 0, errors.New("scorer crashed")
	case "overflow":
		return 3, nil
	default:
		return 0, nil
	}
}

type recordingNotifier struct {
	keys []string
	err  error
}

func (n *recordingNotifier) RecordIngested(ctx context.Context, collection, key string, doc record.Document) error {
	n.keys = append(n.keys, key)
	return n.err
}

// faultyConnector wraps a memstore, failing writes for selected keys.
type faultyConnector struct {
	db          *memstore.DB
	failKeys    map[string]bool
	failIndex   bool
	failConnect bool
}

func (c *faultyConnector) Connect(ctx context.Context) (storage.Store, error) {
	if c.failConnect {
		return nil, errors.New("connection refused")
	}
	s, err := c.db.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyStore{Store: s, c: c}, nil
}

type faultyStore struct {
	storage.Store
	c *faultyConnector
}

func (s *faultyStore) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	if s.c.failIndex {
		return errors.New("index build failed")
	}
	return s.Store.EnsureUniqueIndex(ctx, collection, field)
}

func (s *faultyStore) InsertIfAbsent(ctx context.Context, collection, keyField, key string, doc record.Document) (bool, error) {
	if s.c.failKeys[key] {
		return false, errors.New("write timeout")
	}
	return s.Store.InsertIfAbsent(ctx, collection, keyField, key, doc)
}

func (s *faultyStore) Upsert(ctx context.Context, collection, keyField, key string, doc record.Document) (storage.Outcome, error) {
	if s.c.failKeys[key] {
		return 0, errors.New("write timeout")
	}
	return s.Store.Upsert(ctx, collection, keyField, key, doc)
}

func newsPipeline(t *testing.T, c storage.Connector, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(Config{Collection: newsColl, Kind: record.KindArticle, Policy: record.InsertOnly}, c, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func stocksPipeline(t *testing.T, c storage.Connector, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(Config{Collection: stocksColl, Kind: record.KindPriceBar, Policy: record.Merge}, c, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func findAll(t *testing.T, db *memstore.DB, coll string) []record.Document {
	t.Helper()
	var docs []record.Document
	err := storage.With(context.Background(), db, func(s storage.Store) error {
		var err error
		docs, err = s.FindAll(context.Background(), coll, nil)
		return err
	})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	return docs
}

func TestNewRejectsBadConfig(t *testing.T) {
	db := memstore.New()
	if _, err := New(Config{Kind: record.KindArticle}, db); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty collection: err = %v", err)
	}
	if _, err := New(Config{Collection: "x", Kind: "tweet"}, db); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("unknown kind: err = %v", err)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	db := memstore.New()
	p := newsPipeline(t, db, WithScorer(&keywordScorer{}))
	batch := func() []record.Record {
		return []record.Record{article("a", "great news"), article("b", ""), article("c", "bad news")}
	}

	first, err := p.Ingest(context.Background(), batch(), true)
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	if first.Inserted != 3 {
		t.Errorf("first inserted = %d, want 3", first.Inserted)
	}
	before := findAll(t, db, newsColl)

	second, err := p.Ingest(context.Background(), batch(), true)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if second.Inserted != 0 || second.Unchanged != 3 {
		t.Errorf("second report = %+v, want 0 inserted, 3 unchanged", second)
	}
	after := findAll(t, db, newsColl)
	if len(after) != len(before) {
		t.Fatalf("collection grew from %d to %d", len(before), len(after))
	}
	for i := range before {
		if before[i]["url"] != after[i]["url"] || before[i][record.SentimentField] != after[i][record.SentimentField] {
			t.Errorf("document %d changed: %v -> %v", i, before[i], after[i])
		}
	}
}

func TestIngestInsertOnlyKeepsStoredSentiment(t *testing.T) {
	db := memstore.New()
	p := newsPipeline(t, db, WithScorer(&keywordScorer{}))

	// Stored once without enrichment.
	if _, err := p.Ingest(context.Background(), []record.Record{article("a", "great news")}, false); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	report, err := p.Ingest(context.Background(), []record.Record{article("a", "great news")}, true)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Inserted != 0 {
		t.Errorf("inserted = %d", report.Inserted)
	}
	docs := findAll(t, db, newsColl)
	if len(docs) != 1 {
		t.Fatalf("docs = %d", len(docs))
	}
	if _, ok := docs[0][record.SentimentField]; ok {
		t.Errorf("re-ingest added sentiment to stored document: %v", docs[0])
	}
}

func TestIngestFirstOccurrenceWins(t *testing.T) {
	db := memstore.New()
	p := newsPipeline(t, db, WithScorer(&keywordScorer{}))

	first := article("a", "great news")
	first.PublishedAt = "2024-01-01"
	second := article("a", "bad news")
	second.PublishedAt = "2024-01-02"

	report, err := p.Ingest(context.Background(), []record.Record{first, second}, true)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Inserted != 1 {
		t.Errorf("inserted = %d, want 1", report.Inserted)
	}
	docs := findAll(t, db, newsColl)
	if len(docs) != 1 {
		t.Fatalf("docs = %d, want 1", len(docs))
	}
	if docs[0][record.SentimentField] != 0.8 {
		t.Errorf("sentiment = %v, want 0.8 from the first occurrence", docs[0][record.SentimentField])
	}
	if docs[0]["publishedAt"] != "2024-01-01" {
		t.Errorf("publishedAt = %v", docs[0]["publishedAt"])
	}
}

func TestIngestPartialFailureIsolation(t *testing.T) {
	db := memstore.New()
	c := &faultyConnector{db: db, failKeys: map[string]bool{"b": true}}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p := newsPipeline(t, c, WithMetrics(m))

	report, err := p.Ingest(context.Background(), []record.Record{article("a", ""), article("b", ""), article("c", "")}, false)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Inserted != 2 {
		t.Errorf("inserted = %d, want 2", report.Inserted)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(report.Failures))
	}
	f := report.Failures[0]
	if f.Key != "b" || f.Collection != newsColl || !errors.Is(f, apperrors.ErrStorageOperation) {
		t.Errorf("failure = %+v", f)
	}
	if n := db.Len(newsColl); n != 2 {
		t.Errorf("stored = %d, want 2", n)
	}
	if v := testutil.ToFloat64(m.RecordFailuresTotal.WithLabelValues(newsColl, "storage")); v != 1 {
		t.Errorf("storage failures metric = %v", v)
	}
	if v := testutil.ToFloat64(m.RecordsIngestedTotal.WithLabelValues(newsColl, "inserted")); v != 2 {
		t.Errorf("inserted metric = %v", v)
	}
}

func TestIngestSkipsMissingKey(t *testing.T) {
	db := memstore.New()
	p := newsPipeline(t, db)

	report, err := p.Ingest(context.Background(), []record.Record{article("", ""), article("x", "")}, false)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Inserted != 1 || len(report.Failures) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if !errors.Is(report.Failures[0], apperrors.ErrMissingKey) {
		t.Errorf("failure = %v, want ErrMissingKey", report.Failures[0])
	}
	if db.Len(newsColl) != 1 {
		t.Errorf("stored = %d", db.Len(newsColl))
	}
}

func TestIngestRejectsWrongKind(t *testing.T) {
	db := memstore.New()
	p := newsPipeline(t, db)

	report, _ := p.Ingest(context.Background(), []record.Record{&record.PriceBar{Date: "2024-01-02"}}, false)
	if len(report.Failures) != 1 || !errors.Is(report.Failures[0], apperrors.ErrInvalidRecord) {
		t.Fatalf("failures = %v", report.Failures)
	}
}

func TestIngestEnrichmentFailures(t *testing.T) {
	db := memstore.New()
	p := newsPipeline(t, db, WithScorer(&keywordScorer{}))

	report, err := p.Ingest(context.Background(), []record.Record{
		article("a", "explode"),
		article("b", "overflow"),
		article("c", "great news"),
	}, true)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Inserted != 1 || len(report.Failures) != 2 {
		t.Fatalf("report = %+v", report)
	}
	for _, f := range report.Failures {
		if !errors.Is(f, apperrors.ErrEnrichment) {
			t.Errorf("failure %v is not an enrichment error", f)
		}
	}
	if db.Len(newsColl) != 1 {
		t.Errorf("records with failed enrichment must not be stored")
	}
}

func TestIngestSkipsScoringBlankBody(t *testing.T) {
	db := memstore.New()
	scorer := &keywordScorer{}
	p := newsPipeline(t, db, WithScorer(scorer))

	if _, err := p.Ingest(context.Background(), []record.Record{article("a", ""), article("b", "   ")}, true); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(scorer.calls) != 0 {
		t.Errorf("scorer called for blank bodies: %q", scorer.calls)
	}
	for _, d := range findAll(t, db, newsColl) {
		if _, ok := d[record.SentimentField]; ok {
			t.Errorf("blank-body article got sentiment: %v", d)
		}
	}
}

func TestIngestEnrichWithoutScorer(t *testing.T) {
	p := newsPipeline(t, memstore.New())
	if _, err := p.Ingest(context.Background(), []record.Record{article("a", "x")}, true); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestIngestMergePolicy(t *testing.T) {
	db := memstore.New()
	p := stocksPipeline(t, db)
	ctx := context.Background()

	bar := func(date string, close float64) *record.PriceBar {
		return &record.PriceBar{Date: date, Open: 1, High: 2, Low: 0.5, Close: close, Volume: int64p(100)}
	}

	r1, err := p.Ingest(ctx, []record.Record{bar("2024-01-02", 1.5), bar("2024-01-03", 1.6)}, false)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if r1.Inserted != 2 {
		t.Errorf("first report = %+v", r1)
	}

	r2, err := p.Ingest(ctx, []record.Record{bar("2024-01-02", 1.5), bar("2024-01-03", 1.9)}, false)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if r2.Inserted != 0 || r2.Unchanged != 1 || r2.Updated != 1 {
		t.Errorf("second report = %+v, want 1 unchanged, 1 updated", r2)
	}
	for _, d := range findAll(t, db, stocksColl) {
		if d["date"] == "2024-01-03" && d["close"] != 1.9 {
			t.Errorf("close not merged: %v", d)
		}
	}
	if db.Len(stocksColl) != 2 {
		t.Errorf("stored = %d, want 2", db.Len(stocksColl))
	}
}

func TestIngestReleasesHandle(t *testing.T) {
	tests := []struct {
		name string
		c    func(db *memstore.DB) storage.Connector
	}{
		{"success", func(db *memstore.DB) storage.Connector { return db }},
		{"record failures", func(db *memstore.DB) storage.Connector {
			return &faultyConnector{db: db, failKeys: map[string]bool{"a": true}}
		}},
		{"index failure", func(db *memstore.DB) storage.Connector {
			return &faultyConnector{db: db, failIndex: true}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := memstore.New()
			p := newsPipeline(t, tt.c(db))
			p.Ingest(context.Background(), []record.Record{article("a", "")}, false)
			if n := db.OpenHandles(); n != 0 {
				t.Errorf("open handles = %d after Ingest", n)
			}
		})
	}
}

func TestIngestReleasesHandleOnPanic(t *testing.T) {
	db := memstore.New()
	p := newsPipeline(t, db, WithScorer(panicScorer{}))

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		p.Ingest(context.Background(), []record.Record{article("a", "boom")}, true)
	}()
	if n := db.OpenHandles(); n != 0 {
		t.Errorf("open handles = %d after panic", n)
	}
}

type panicScorer struct{}

func (panicScorer) Score(context.Context, string) (float64, error) { panic("scorer bug") }

func TestIngestAbortsOnIndexOrConnectFailure(t *testing.T) {
	for _, c := range []*faultyConnector{
		{db: memstore.New(), failIndex: true},
		{db: memstore.New(), failConnect: true},
	} {
		p := newsPipeline(t, c)
		report, err := p.Ingest(context.Background(), []record.Record{article("a", "")}, false)
		if !errors.Is(err, apperrors.ErrStorageOperation) {
			t.Errorf("err = %v, want ErrStorageOperation", err)
		}
		if report == nil || report.Inserted != 0 {
			t.Errorf("report = %+v", report)
		}
		if c.db.Len(newsColl) != 0 {
			t.Error("nothing should be written")
		}
	}
}

func TestIngestStopsOnCancelledContext(t *testing.T) {
	db := memstore.New()
	p := newsPipeline(t, db)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Ingest(ctx, []record.Record{article("a", "")}, false)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if db.OpenHandles() != 0 {
		t.Error("handle leaked")
	}
}

func TestIngestNotifiesOnlyInserts(t *testing.T) {
	db := memstore.New()
	n := &recordingNotifier{}
	p := newsPipeline(t, db, WithNotifier(n))

	p.Ingest(context.Background(), []record.Record{article("a", ""), article("b", "")}, false)
	p.Ingest(context.Background(), []record.Record{article("a", ""), article("c", "")}, false)

	want := []string{"a", "b", "c"}
	if len(n.keys) != len(want) {
		t.Fatalf("notified %v, want %v", n.keys, want)
	}
	for i := range want {
		if n.keys[i] != want[i] {
			t.Errorf("notified %v, want %v", n.keys, want)
		}
	}
}

func TestIngestNotifierFailureDoesNotFailRecord(t *testing.T) {
	db := memstore.New()
	p := newsPipeline(t, db, WithNotifier(&recordingNotifier{err: errors.New("broker down")}))

	report, err := p.Ingest(context.Background(), []record.Record{article("a", "")}, false)
	if err != nil || report.Inserted != 1 || len(report.Failures) != 0 {
		t.Errorf("report = %+v, err = %v", report, err)
	}
}
