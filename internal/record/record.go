// Package record defines the two kinds of ingestible records, news articles
// and daily price bars, and the document shape they are stored as.
package record

import "fmt"

// Kind identifies a record variant.
type Kind string

const (
	KindArticle  Kind = "article"
	KindPriceBar Kind = "price_bar"
)

// Natural key fields per kind.
const (
	ArticleKeyField  = "url"
	PriceBarKeyField = "date"
)

// SentimentField is the document field holding an article's sentiment score.
const SentimentField = "sentiment"

// Document is the stored form of a record: field name to value.
type Document map[string]any

// Record is a unit of ingestible data.
type Record interface {
	Kind() Kind
	// NaturalKey returns the value identifying the record within its
	// collection, and false when the record does not carry one.
	NaturalKey() (string, bool)
	Document() Document
}

// Enrichable is implemented by records whose text can be scored.
type Enrichable interface {
	Body() string
	SetSentiment(score float64)
}

// Policy decides what happens when a record's key is already stored.
type Policy int

const (
	// InsertOnly creates the document if absent and otherwise leaves the
	// stored document untouched.
	InsertOnly Policy = iota
	// Merge creates the document if absent and otherwise overwrites its
	// non-key fields.
	Merge
)

func (p Policy) String() string {
	switch p {
	case InsertOnly:
		return "insert_only"
	case Merge:
		return "merge"
	default:
		return "unknown"
	}
}

// KeyField returns the natural key field for kind.
func KeyField(kind Kind) string {
	switch kind {
	case KindArticle:
		return ArticleKeyField
	case KindPriceBar:
		return PriceBarKeyField
	default:
		panic(fmt.Sprintf("record: unknown kind %q", kind))
	}
}

// DefaultPolicy returns the upsert policy a kind is ingested with. Articles
// are insert-only so a stored sentiment score is never clobbered; price bars
// are merged so corrected quotes replace stale ones.
func DefaultPolicy(kind Kind) Policy {
	if kind == KindPriceBar {
		return Merge
	}
	return InsertOnly
}

// Key returns doc's value for field as a string, if present.
func (d Document) Key(field string) (string, bool) {
	v, ok := d[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// Float returns doc's value for field as a float64, accepting the numeric
// types the storage drivers decode into.
func (d Document) Float(field string) (float64, bool) {
	switch v := d[field].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Without returns a copy of doc without the given fields.
func (d Document) Without(fields ...string) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// Project returns a copy of doc restricted to fields. With no fields the
// whole document is copied.
func (d Document) Project(fields ...string) Document {
	if len(fields) == 0 {
		return d.Without()
	}
	out := make(Document, len(fields))
	for _, f := range fields {
		if v, ok := d[f]; ok {
			out[f] = v
		}
	}
	return out
}
