// Package maintenance reads and prunes one collection. Unlike batch
// ingestion, every storage failure here is returned to the caller.
package maintenance

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage"
	apperrors "github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/errors"
)

type Service struct {
	connector  storage.Connector
	collection string
	keyField   string
	logger     *slog.Logger
}

// New returns a Service for collection, whose documents are keyed by
// keyField.
func New(connector storage.Connector, collection, keyField string) *Service {
	return &Service{
		connector:  connector,
		collection: collection,
		keyField:   keyField,
		logger:     slog.Default().With("component", "maintenance", "collection", collection),
	}
}

// ForKind is New with the key field of kind.
func ForKind(connector storage.Connector, collection string, kind record.Kind) *Service {
	return New(connector, collection, record.KeyField(kind))
}

func (s *Service) Collection() string { return s.collection }

// FetchAll returns every document, restricted to projection when given.
// Order is unspecified.
func (s *Service) FetchAll(ctx context.Context, projection ...string) ([]record.Document, error) {
	var docs []record.Document
	err := storage.With(ctx, s.connector, func(st storage.Store) error {
		var err error
		docs, err = st.FindAll(ctx, s.collection, nil, projection...)
		return err
	})
	if err != nil {
		return nil, apperrors.Storage("fetch all "+s.collection, err)
	}
	return docs, nil
}

// DeleteByKey removes the document with the given natural key. It reports
// false, without error, when there is none.
func (s *Service) DeleteByKey(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, apperrors.New(apperrors.ErrInvalidInput, 400, "key must not be empty")
	}
	var removed bool
	err := storage.With(ctx, s.connector, func(st storage.Store) error {
		var err error
		removed, err = st.DeleteOne(ctx, s.collection, storage.Filter{s.keyField: key})
		return err
	})
	if err != nil {
		return false, apperrors.Storage("delete "+s.collection, err)
	}
	if removed {
		s.logger.Info("document deleted", "key", key)
	} else {
		s.logger.Info("no document to delete", "key", key)
	}
	return removed, nil
}

// Clear removes every document and returns how many there were.
func (s *Service) Clear(ctx context.Context) (int64, error) {
	var n int64
	err := storage.With(ctx, s.connector, func(st storage.Store) error {
		var err error
		n, err = st.DeleteMany(ctx, s.collection, nil)
		return err
	})
	if err != nil {
		return 0, apperrors.Storage("clear "+s.collection, err)
	}
	s.logger.Info("collection cleared", "deleted", n)
	return n, nil
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return storage.With(ctx, s.connector, func(st storage.Store) error {
		return st.Ping(ctx)
	})
}
