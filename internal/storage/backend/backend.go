// Package backend selects the storage.Connector named by configuration.
package backend

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage/memstore"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage/mongostore"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage/pgstore"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/config"
)

// New returns a connector for cfg.Storage.Driver. No connection is opened
// until the connector is used.
func New(cfg *config.Config) (storage.Connector, error) {
	switch cfg.Storage.Driver {
	case config.DriverMongo:
		return mongostore.NewConnector(cfg.Mongo), nil
	case config.DriverPostgres:
		return pgstore.NewConnector(cfg.Postgres), nil
	case config.DriverMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
