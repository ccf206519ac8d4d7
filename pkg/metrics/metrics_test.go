package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersWithGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordsIngestedTotal.WithLabelValues("news", "inserted").Add(3)
	if got := testutil.ToFloat64(m.RecordsIngestedTotal.WithLabelValues("news", "inserted")); got != 3 {
		t.Errorf("records_ingested_total = %v, want 3", got)
	}

	// A second registry accepts a second set of collectors.
	New(prometheus.NewRegistry())
}

func TestHandlerServesOwnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SentimentCacheHits.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "sentiment_cache_hits_total 1") {
		t.Errorf("scrape output missing cache hits:\n%s", body)
	}
}
