// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Storage, Mongo, Postgres, Redis, Kafka, Sources, Ingest, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers understood by the storage layer.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Sources  SourcesConfig  `yaml:"sources"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings for the read/maintenance API.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StorageConfig selects the document store backend and names the
// per-entity collections.
type StorageConfig struct {
	Driver          string `yaml:"driver"`
	NewsCollection  string `yaml:"newsCollection"`
	StockCollection string `yaml:"stockCollection"`
}

// MongoConfig holds MongoDB connection parameters.
type MongoConfig struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection parameters for the sentiment cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings for ingest events.
type KafkaConfig struct {
	Enabled bool        `yaml:"enabled"`
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	RecordIngested string `yaml:"recordIngested"`
}

// SourcesConfig holds the remote API endpoints and keys.
type SourcesConfig struct {
	NewsAPIKey      string        `yaml:"newsApiKey"`
	NewsAPIURL      string        `yaml:"newsApiUrl"`
	StocksAPIKey    string        `yaml:"stocksApiKey"`
	AlphaVantageURL string        `yaml:"alphaVantageUrl"`
	HTTPTimeout     time.Duration `yaml:"httpTimeout"`
}

// IngestConfig controls what each ingestion cycle fetches and whether
// articles are scored for sentiment.
type IngestConfig struct {
	Sentiment    bool          `yaml:"sentiment"`
	Interval     time.Duration `yaml:"interval"`
	NewsQuery    string        `yaml:"newsQuery"`
	NewsPageSize int           `yaml:"newsPageSize"`
	Symbol       string        `yaml:"symbol"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration that no component can run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMongo, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("invalid storage driver %q (want %s, %s or %s)",
			c.Storage.Driver, DriverMongo, DriverPostgres, DriverMemory)
	}
	if strings.TrimSpace(c.Storage.NewsCollection) == "" {
		return fmt.Errorf("storage.newsCollection must not be empty")
	}
	if strings.TrimSpace(c.Storage.StockCollection) == "" {
		return fmt.Errorf("storage.stockCollection must not be empty")
	}
	if c.Storage.NewsCollection == c.Storage.StockCollection {
		return fmt.Errorf("news and stock collections must differ, both are %q", c.Storage.NewsCollection)
	}
	if c.Storage.Driver == DriverMongo && c.Mongo.Database == "" {
		return fmt.Errorf("mongo.database must not be empty")
	}
	if c.Ingest.Interval < 0 {
		return fmt.Errorf("ingest.interval must not be negative")
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Driver:          DriverMongo,
			NewsCollection:  "news",
			StockCollection: "stocks",
		},
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "market_sentiment",
			ConnectTimeout: 10 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "market_sentiment",
			User:            "market_sentiment",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 24 * time.Hour,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				RecordIngested: "record-ingested",
			},
		},
		Sources: SourcesConfig{
			NewsAPIURL:      "https://newsapi.org",
			AlphaVantageURL: "https://www.alphavantage.co",
			HTTPTimeout:     30 * time.Second,
		},
		Ingest: IngestConfig{
			Sentiment:    true,
			NewsQuery:    "Apple",
			NewsPageSize: 20,
			Symbol:       "AAPL",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads the plain deployment variables
// (MONGO_URI, DB_NAME, ...) and MSP_* variables, and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Mongo.Database = v
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("NEWS_COLLECTION_NAME"); v != "" {
		cfg.Storage.NewsCollection = v
	}
	if v := os.Getenv("STOCK_COLLECTION_NAME"); v != "" {
		cfg.Storage.StockCollection = v
	}
	if v := os.Getenv("NEWS_API_KEY"); v != "" {
		cfg.Sources.NewsAPIKey = v
	}
	if v := os.Getenv("STOCKS_API_KEY"); v != "" {
		cfg.Sources.StocksAPIKey = v
	}
	if v := os.Getenv("MSP_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("MSP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MSP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("MSP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("MSP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("MSP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("MSP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("MSP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("MSP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("MSP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("MSP_INGEST_SENTIMENT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Ingest.Sentiment = b
		}
	}
	if v := os.Getenv("MSP_INGEST_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Ingest.Interval = d
		}
	}
	if v := os.Getenv("MSP_INGEST_SYMBOL"); v != "" {
		cfg.Ingest.Symbol = v
	}
	if v := os.Getenv("MSP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MSP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
