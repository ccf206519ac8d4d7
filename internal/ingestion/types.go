// Package ingestion runs batches of records through enrichment and
// deduplicating upserts into one collection of the document store.
package ingestion

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/errors"
)

// Config binds a pipeline to one collection.
type Config struct {
	Collection string
	Kind       record.Kind
	Policy     record.Policy
}

// Report summarises one Ingest call. Inserted counts documents that did not
// exist before; the other counters only move under the Merge policy, except
// Unchanged, which also counts insert-only records whose key was present.
type Report struct {
	Collection string                   `json:"collection"`
	Inserted   int                      `json:"inserted"`
	Updated    int                      `json:"updated"`
	Unchanged  int                      `json:"unchanged"`
	Failures   []*apperrors.RecordError `json:"-"`
}

// Failed returns the number of records that were not stored.
func (r *Report) Failed() int {
	return len(r.Failures)
}

// Notifier is told about every document an Ingest call creates.
type Notifier interface {
	RecordIngested(ctx context.Context, collection, key string, doc record.Document) error
}
