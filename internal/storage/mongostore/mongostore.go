// Package mongostore implements storage.Store on MongoDB. Insert-only
// ingestion is an upsert with $setOnInsert; merge ingestion adds $set.
package mongostore

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/config"
	pkgmongo "github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connector opens a fresh MongoDB client per Connect call.
type Connector struct {
	cfg config.MongoConfig
}

func NewConnector(cfg config.MongoConfig) *Connector {
	return &Connector{cfg: cfg}
}

func (c *Connector) Connect(ctx context.Context) (storage.Store, error) {
	client, err := pkgmongo.New(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	return &Store{client: client}, nil
}

// Store is a storage.Store backed by one MongoDB client.
type Store struct {
	client *pkgmongo.Client
}

func (s *Store) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	_, err := s.client.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("creating unique index on %s.%s: %w", collection, field, err)
	}
	return nil
}

func (s *Store) InsertIfAbsent(ctx context.Context, collection, keyField, key string, doc record.Document) (bool, error) {
	res, err := s.client.Collection(collection).UpdateOne(ctx,
		bson.D{{Key: keyField, Value: key}},
		bson.D{{Key: "$setOnInsert", Value: toBSON(doc)}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		// A concurrent ingester won the race for this key.
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (s *Store) Upsert(ctx context.Context, collection, keyField, key string, doc record.Document) (storage.Outcome, error) {
	update := bson.D{{Key: "$setOnInsert", Value: bson.M{keyField: key}}}
	if fields := doc.Without(keyField); len(fields) > 0 {
		update = append(update, bson.E{Key: "$set", Value: toBSON(fields)})
	}
	res, err := s.client.Collection(collection).UpdateOne(ctx,
		bson.D{{Key: keyField, Value: key}},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return 0, err
	}
	switch {
	case res.UpsertedCount > 0:
		return storage.OutcomeInserted, nil
	case res.ModifiedCount > 0:
		return storage.OutcomeUpdated, nil
	default:
		return storage.OutcomeUnchanged, nil
	}
}

func (s *Store) DeleteOne(ctx context.Context, collection string, filter storage.Filter) (bool, error) {
	res, err := s.client.Collection(collection).DeleteOne(ctx, toFilter(filter))
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) DeleteMany(ctx context.Context, collection string, filter storage.Filter) (int64, error) {
	res, err := s.client.Collection(collection).DeleteMany(ctx, toFilter(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) FindAll(ctx context.Context, collection string, filter storage.Filter, projection ...string) ([]record.Document, error) {
	opts := options.Find()
	if len(projection) > 0 {
		proj := make(bson.D, 0, len(projection))
		for _, f := range projection {
			proj = append(proj, bson.E{Key: f, Value: 1})
		}
		opts.SetProjection(proj)
	}
	cursor, err := s.client.Collection(collection).Find(ctx, toFilter(filter), opts)
	if err != nil {
		return nil, err
	}
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decoding %s documents: %w", collection, err)
	}
	docs := make([]record.Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, fromBSON(m))
	}
	return docs, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func toBSON(doc record.Document) bson.M {
	m := make(bson.M, len(doc))
	for k, v := range doc {
		m[k] = v
	}
	return m
}

func toFilter(filter storage.Filter) bson.M {
	m := make(bson.M, len(filter))
	for k, v := range filter {
		m[k] = v
	}
	return m
}

// fromBSON converts a decoded document, turning nested bson.M values into
// plain maps so callers never see driver types other than ObjectID.
func fromBSON(m bson.M) record.Document {
	doc := make(record.Document, len(m))
	for k, v := range m {
		switch nested := v.(type) {
		case bson.M:
			doc[k] = map[string]any(fromBSON(nested))
		case bson.D:
			m := make(bson.M, len(nested))
			for _, e := range nested {
				m[e.Key] = e.Value
			}
			doc[k] = map[string]any(fromBSON(m))
		default:
			doc[k] = v
		}
	}
	return doc
}
