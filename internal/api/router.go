package api

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/middleware"
)

// NewRouter builds the HTTP handler.
//
// Route table:
//
//	GET    /api/v1/{dataset}/records          → list documents
//	GET    /api/v1/{dataset}/series           → chart series
//	DELETE /api/v1/{dataset}/records?key=K    → delete by natural key
//	DELETE /api/v1/{dataset}/records?all=true → clear the collection
//	GET    /health/live                       → liveness
//	GET    /health/ready                      → readiness
//
// dataset is "articles" or "prices".
func NewRouter(h *Handler, checker *health.Checker, m *metrics.Metrics, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mux.HandleFunc("GET /api/v1/{dataset}/records", h.ListRecords)
	mux.HandleFunc("GET /api/v1/{dataset}/series", h.Series)
	mux.HandleFunc("DELETE /api/v1/{dataset}/records", h.DeleteRecords)

	var chain http.Handler = mux
	chain = pkgmw.Timeout(timeout)(chain)
	if m != nil {
		chain = pkgmw.Metrics(m)(chain)
	}
	return chain
}
