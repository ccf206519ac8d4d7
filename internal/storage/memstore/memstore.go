// Package memstore is an in-process document store. It backs the "memory"
// storage driver for dry runs and the pipeline's tests.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage"
)

var errClosed = errors.New("memstore: use of closed store")

type collection struct {
	docs   []record.Document
	unique map[string]bool
}

// DB holds every collection. It is a storage.Connector; all handles it
// opens see the same data.
type DB struct {
	mu          sync.Mutex
	collections map[string]*collection
	opened      atomic.Int64
	closed      atomic.Int64
}

func New() *DB {
	return &DB{collections: make(map[string]*collection)}
}

func (db *DB) Connect(ctx context.Context) (storage.Store, error) {
	db.opened.Add(1)
	return &handle{db: db}, nil
}

// OpenHandles reports how many handles are open.
func (db *DB) OpenHandles() int64 {
	return db.opened.Load() - db.closed.Load()
}

// Len reports the number of documents in a collection.
func (db *DB) Len(name string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	if c, ok := db.collections[name]; ok {
		return len(c.docs)
	}
	return 0
}

func (db *DB) coll(name string) *collection {
	c, ok := db.collections[name]
	if !ok {
		c = &collection{unique: make(map[string]bool)}
		db.collections[name] = c
	}
	return c
}

type handle struct {
	db     *DB
	closed atomic.Bool
}

func (h *handle) check(ctx context.Context) error {
	if h.closed.Load() {
		return errClosed
	}
	return ctx.Err()
}

func (h *handle) EnsureUniqueIndex(ctx context.Context, name, field string) error {
	if err := h.check(ctx); err != nil {
		return err
	}
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	c := h.db.coll(name)
	if c.unique[field] {
		return nil
	}
	seen := make(map[any]bool, len(c.docs))
	for _, d := range c.docs {
		v, ok := d[field]
		if !ok {
			continue
		}
		if seen[v] {
			return fmt.Errorf("memstore: cannot index %s.%s: duplicate value %v", name, field, v)
		}
		seen[v] = true
	}
	c.unique[field] = true
	return nil
}

func (h *handle) InsertIfAbsent(ctx context.Context, name, keyField, key string, doc record.Document) (bool, error) {
	if err := h.check(ctx); err != nil {
		return false, err
	}
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	c := h.db.coll(name)
	if c.find(keyField, key) >= 0 {
		return false, nil
	}
	stored := clone(doc)
	stored[keyField] = key
	if err := c.checkUnique(stored, -1); err != nil {
		return false, err
	}
	c.docs = append(c.docs, stored)
	return true, nil
}

func (h *handle) Upsert(ctx context.Context, name, keyField, key string, doc record.Document) (storage.Outcome, error) {
	if err := h.check(ctx); err != nil {
		return 0, err
	}
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	c := h.db.coll(name)
	idx := c.find(keyField, key)
	if idx < 0 {
		stored := clone(doc)
		stored[keyField] = key
		if err := c.checkUnique(stored, -1); err != nil {
			return 0, err
		}
		c.docs = append(c.docs, stored)
		return storage.OutcomeInserted, nil
	}
	merged := clone(c.docs[idx])
	for k, v := range doc.Without(keyField) {
		merged[k] = cloneValue(v)
	}
	if reflect.DeepEqual(merged, c.docs[idx]) {
		return storage.OutcomeUnchanged, nil
	}
	if err := c.checkUnique(merged, idx); err != nil {
		return 0, err
	}
	c.docs[idx] = merged
	return storage.OutcomeUpdated, nil
}

func (h *handle) DeleteOne(ctx context.Context, name string, filter storage.Filter) (bool, error) {
	if err := h.check(ctx); err != nil {
		return false, err
	}
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	c := h.db.coll(name)
	for i, d := range c.docs {
		if matches(d, filter) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (h *handle) DeleteMany(ctx context.Context, name string, filter storage.Filter) (int64, error) {
	if err := h.check(ctx); err != nil {
		return 0, err
	}
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	c := h.db.coll(name)
	kept := c.docs[:0]
	var deleted int64
	for _, d := range c.docs {
		if matches(d, filter) {
			deleted++
			continue
		}
		kept = append(kept, d)
	}
	c.docs = kept
	return deleted, nil
}

func (h *handle) FindAll(ctx context.Context, name string, filter storage.Filter, projection ...string) ([]record.Document, error) {
	if err := h.check(ctx); err != nil {
		return nil, err
	}
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	c := h.db.coll(name)
	out := make([]record.Document, 0, len(c.docs))
	for _, d := range c.docs {
		if matches(d, filter) {
			out = append(out, clone(d).Project(projection...))
		}
	}
	return out, nil
}

func (h *handle) Ping(ctx context.Context) error {
	return h.check(ctx)
}

func (h *handle) Close(ctx context.Context) error {
	if h.closed.Swap(true) {
		return errClosed
	}
	h.db.closed.Add(1)
	return nil
}

func (c *collection) find(field, value string) int {
	for i, d := range c.docs {
		if v, ok := d[field]; ok && v == value {
			return i
		}
	}
	return -1
}

// checkUnique rejects doc if it collides with another document (other than
// the one at skip) on a uniquely indexed field.
func (c *collection) checkUnique(doc record.Document, skip int) error {
	for field := range c.unique {
		v, ok := doc[field]
		if !ok {
			continue
		}
		for i, d := range c.docs {
			if i != skip && reflect.DeepEqual(d[field], v) {
				return fmt.Errorf("memstore: duplicate key %s=%v", field, v)
			}
		}
	}
	return nil
}

func matches(doc record.Document, filter storage.Filter) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func clone(doc record.Document) record.Document {
	out := make(record.Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	if m, ok := v.(map[string]any); ok {
		return maps.Clone(m)
	}
	return v
}
