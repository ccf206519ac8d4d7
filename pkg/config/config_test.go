package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != DriverMongo {
		t.Errorf("driver = %q, want %q", cfg.Storage.Driver, DriverMongo)
	}
	if cfg.Storage.NewsCollection != "news" || cfg.Storage.StockCollection != "stocks" {
		t.Errorf("unexpected collections: %+v", cfg.Storage)
	}
	if !cfg.Ingest.Sentiment {
		t.Error("sentiment should be enabled by default")
	}
	if cfg.Ingest.Interval != 0 {
		t.Errorf("interval = %v, want 0 (single run)", cfg.Ingest.Interval)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: postgres
  newsCollection: articles
  stockCollection: daily_bars
postgres:
  host: db.internal
  port: 6543
ingest:
  sentiment: false
  interval: 15m
  symbol: MSFT
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != DriverPostgres {
		t.Errorf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Storage.NewsCollection != "articles" {
		t.Errorf("news collection = %q", cfg.Storage.NewsCollection)
	}
	if cfg.Postgres.Host != "db.internal" || cfg.Postgres.Port != 6543 {
		t.Errorf("postgres = %+v", cfg.Postgres)
	}
	if cfg.Postgres.User != "market_sentiment" {
		t.Errorf("unset postgres user should keep default, got %q", cfg.Postgres.User)
	}
	if cfg.Ingest.Sentiment {
		t.Error("sentiment should be disabled")
	}
	if cfg.Ingest.Interval != 15*time.Minute {
		t.Errorf("interval = %v", cfg.Ingest.Interval)
	}
	if cfg.Ingest.Symbol != "MSFT" {
		t.Errorf("symbol = %q", cfg.Ingest.Symbol)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://mongo.internal:27017")
	t.Setenv("DB_NAME", "prod_db")
	t.Setenv("NEWS_COLLECTION_NAME", "headlines")
	t.Setenv("STOCK_COLLECTION_NAME", "aapl_daily")
	t.Setenv("NEWS_API_KEY", "news-key")
	t.Setenv("STOCKS_API_KEY", "stocks-key")
	t.Setenv("MSP_INGEST_SENTIMENT", "false")
	t.Setenv("MSP_REDIS_ADDR", "redis.internal:6379")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mongo.URI != "mongodb://mongo.internal:27017" {
		t.Errorf("mongo uri = %q", cfg.Mongo.URI)
	}
	if cfg.Mongo.Database != "prod_db" {
		t.Errorf("database = %q", cfg.Mongo.Database)
	}
	if cfg.Storage.NewsCollection != "headlines" || cfg.Storage.StockCollection != "aapl_daily" {
		t.Errorf("collections = %+v", cfg.Storage)
	}
	if cfg.Sources.NewsAPIKey != "news-key" || cfg.Sources.StocksAPIKey != "stocks-key" {
		t.Errorf("sources = %+v", cfg.Sources)
	}
	if cfg.Ingest.Sentiment {
		t.Error("MSP_INGEST_SENTIMENT=false should disable sentiment")
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown driver", "storage:\n  driver: cassandra\n", "invalid storage driver"},
		{"empty news collection", "storage:\n  newsCollection: \"\"\n", "newsCollection"},
		{"same collections", "storage:\n  newsCollection: data\n  stockCollection: data\n", "must differ"},
		{"negative interval", "ingest:\n  interval: -1m\n", "interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
