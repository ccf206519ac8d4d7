// Package pgstore implements storage.Store on PostgreSQL, keeping each
// collection as a table of JSONB documents.
//
// A collection named "news" with natural key "url" becomes:
//
//	CREATE TABLE news (
//	    id         BIGSERIAL PRIMARY KEY,
//	    doc        JSONB NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//	CREATE UNIQUE INDEX news_url_key ON news ((doc->>'url'));
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/postgres"
	"github.com/lib/pq"
)

// Connector opens a fresh connection pool per Connect call.
type Connector struct {
	cfg config.PostgresConfig
}

func NewConnector(cfg config.PostgresConfig) *Connector {
	return &Connector{cfg: cfg}
}

func (c *Connector) Connect(ctx context.Context) (storage.Store, error) {
	db, err := postgres.New(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, tables: make(map[string]bool)}, nil
}

// Store is a storage.Store backed by one connection pool.
type Store struct {
	db     *postgres.Client
	tables map[string]bool
}

func (s *Store) ensureTable(ctx context.Context, exec func(ctx context.Context, query string, args ...any) (sql.Result, error), collection string) error {
	if s.tables[collection] {
		return nil
	}
	_, err := exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id         BIGSERIAL PRIMARY KEY,
		doc        JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, pq.QuoteIdentifier(collection)))
	if err != nil {
		return fmt.Errorf("creating table %s: %w", collection, err)
	}
	s.tables[collection] = true
	return nil
}

func (s *Store) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureTable(ctx, tx.ExecContext, collection); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf(
			`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)`,
			pq.QuoteIdentifier(collection+"_"+field+"_key"),
			pq.QuoteIdentifier(collection),
			keyExpr(field),
		))
		if err != nil {
			return fmt.Errorf("creating unique index on %s.%s: %w", collection, field, err)
		}
		return nil
	})
}

func (s *Store) InsertIfAbsent(ctx context.Context, collection, keyField, key string, doc record.Document) (bool, error) {
	data, err := encode(withKey(doc, keyField, key))
	if err != nil {
		return false, err
	}
	var id int64
	err = s.db.DB.QueryRowContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (doc) VALUES ($1::jsonb)
		ON CONFLICT (%s) DO NOTHING
		RETURNING id`,
		pq.QuoteIdentifier(collection), keyExpr(keyField),
	), data).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Upsert(ctx context.Context, collection, keyField, key string, doc record.Document) (storage.Outcome, error) {
	data, err := encode(withKey(doc, keyField, key))
	if err != nil {
		return 0, err
	}
	var inserted bool
	err = s.db.DB.QueryRowContext(ctx, fmt.Sprintf(
		`INSERT INTO %[1]s AS cur (doc) VALUES ($1::jsonb)
		ON CONFLICT (%[2]s) DO UPDATE
			SET doc = cur.doc || EXCLUDED.doc, updated_at = NOW()
			WHERE cur.doc IS DISTINCT FROM cur.doc || EXCLUDED.doc
		RETURNING (xmax = 0)`,
		pq.QuoteIdentifier(collection), keyExpr(keyField),
	), data).Scan(&inserted)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.OutcomeUnchanged, nil
	}
	if err != nil {
		return 0, err
	}
	if inserted {
		return storage.OutcomeInserted, nil
	}
	return storage.OutcomeUpdated, nil
}

func (s *Store) DeleteOne(ctx context.Context, collection string, filter storage.Filter) (bool, error) {
	if err := s.ensureTable(ctx, s.db.DB.ExecContext, collection); err != nil {
		return false, err
	}
	data, err := encodeFilter(filter)
	if err != nil {
		return false, err
	}
	table := pq.QuoteIdentifier(collection)
	res, err := s.db.DB.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %[1]s WHERE id = (SELECT id FROM %[1]s WHERE doc @> $1::jsonb LIMIT 1)`, table,
	), data)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) DeleteMany(ctx context.Context, collection string, filter storage.Filter) (int64, error) {
	if err := s.ensureTable(ctx, s.db.DB.ExecContext, collection); err != nil {
		return 0, err
	}
	data, err := encodeFilter(filter)
	if err != nil {
		return 0, err
	}
	res, err := s.db.DB.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE doc @> $1::jsonb`, pq.QuoteIdentifier(collection),
	), data)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) FindAll(ctx context.Context, collection string, filter storage.Filter, projection ...string) ([]record.Document, error) {
	if err := s.ensureTable(ctx, s.db.DB.ExecContext, collection); err != nil {
		return nil, err
	}
	data, err := encodeFilter(filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.DB.QueryContext(ctx, fmt.Sprintf(
		`SELECT doc FROM %s WHERE doc @> $1::jsonb ORDER BY id`, pq.QuoteIdentifier(collection),
	), data)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []record.Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", collection, err)
		}
		var doc record.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decoding %s document: %w", collection, err)
		}
		docs = append(docs, doc.Project(projection...))
	}
	return docs, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.DB.PingContext(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

// keyExpr is the indexed expression for a natural key field. It must match
// between the unique index and ON CONFLICT for the index to be inferred.
func keyExpr(field string) string {
	return fmt.Sprintf("(doc->>%s)", pq.QuoteLiteral(field))
}

func withKey(doc record.Document, keyField, key string) record.Document {
	out := doc.Without()
	out[keyField] = key
	return out
}

func encode(doc record.Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}
	return string(data), nil
}

func encodeFilter(filter storage.Filter) (string, error) {
	if len(filter) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("encoding filter: %w", err)
	}
	return string(data), nil
}
