package backend

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage/memstore"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage/mongostore"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/storage/pgstore"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/config"
)

func TestNewSelectsDriver(t *testing.T) {
	tests := []struct {
		driver string
		check  func(any) bool
	}{
		{config.DriverMongo, func(c any) bool { _, ok := c.(*mongostore.Connector); return ok }},
		{config.DriverPostgres, func(c any) bool { _, ok := c.(*pgstore.Connector); return ok }},
		{config.DriverMemory, func(c any) bool { _, ok := c.(*memstore.DB); return ok }},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			cfg := &config.Config{Storage: config.StorageConfig{Driver: tt.driver}}
			c, err := New(cfg)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !tt.check(c) {
				t.Errorf("driver %s produced %T", tt.driver, c)
			}
		})
	}
}

func TestNewUnknownDriver(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Driver: "cassandra"}}
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
