// Package storage defines the document-store contract used by the ingestion
// pipeline and the maintenance operations. Backends live in sub-packages.
package storage

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
)

// Outcome is the result of a merge upsert.
type Outcome int

const (
	OutcomeInserted Outcome = iota
	OutcomeUpdated
	OutcomeUnchanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Filter selects documents whose fields equal the given values. An empty
// filter matches every document.
type Filter map[string]any

// Store is an open handle on the document store. Handles are not shared
// between top-level operations; each one is closed by its opener.
type Store interface {
	// EnsureUniqueIndex creates a uniqueness constraint on field. Calling it
	// again is a no-op.
	EnsureUniqueIndex(ctx context.Context, collection, field string) error
	// InsertIfAbsent stores doc unless a document with keyField == key
	// exists, in which case the stored document is left as is. It reports
	// whether a document was created.
	InsertIfAbsent(ctx context.Context, collection, keyField, key string, doc record.Document) (bool, error)
	// Upsert stores doc if absent, otherwise overwrites the stored document's
	// fields with doc's.
	Upsert(ctx context.Context, collection, keyField, key string, doc record.Document) (Outcome, error)
	DeleteOne(ctx context.Context, collection string, filter Filter) (bool, error)
	DeleteMany(ctx context.Context, collection string, filter Filter) (int64, error)
	// FindAll returns matching documents restricted to projection (all
	// fields when empty). Order is unspecified.
	FindAll(ctx context.Context, collection string, filter Filter, projection ...string) ([]record.Document, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Connector opens store handles.
type Connector interface {
	Connect(ctx context.Context) (Store, error)
}

// With opens a store, runs fn and closes the store on every exit path,
// panics included. A close failure is logged and does not mask fn's result.
func With(ctx context.Context, c Connector, fn func(Store) error) error {
	store, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(context.WithoutCancel(ctx)); cerr != nil {
			slog.Default().With("component", "storage").Error("failed to close store", "error", cerr)
		}
	}()
	return fn(store)
}
