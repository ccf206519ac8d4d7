// Package api serves the stored datasets over HTTP: listing, charting data,
// deleting by key and clearing.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/maintenance"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/visualize"
	apperrors "github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/logger"
)

// Dataset names used in URLs.
const (
	DatasetArticles = "articles"
	DatasetPrices   = "prices"
)

// Dataset is one collection exposed by the API.
type Dataset struct {
	Service *maintenance.Service
	Kind    record.Kind
}

type Handler struct {
	datasets map[string]Dataset
	logger   *slog.Logger
}

func NewHandler(datasets map[string]Dataset) *Handler {
	return &Handler{
		datasets: datasets,
		logger:   slog.Default().With("component", "api"),
	}
}

type seriesPoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

func (h *Handler) dataset(w http.ResponseWriter, r *http.Request) (Dataset, bool) {
	name := r.PathValue("dataset")
	ds, ok := h.datasets[name]
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown dataset "+name)
	}
	return ds, ok
}

// ListRecords returns every document. ?fields=a,b restricts the fields.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w, r)
	if !ok {
		return
	}
	var projection []string
	if f := strings.TrimSpace(r.URL.Query().Get("fields")); f != "" {
		for _, field := range strings.Split(f, ",") {
			if field = strings.TrimSpace(field); field != "" {
				projection = append(projection, field)
			}
		}
	}
	docs, err := ds.Service.FetchAll(r.Context(), projection...)
	if err != nil {
		h.fail(w, r, "listing records", err)
		return
	}
	if docs == nil {
		docs = []record.Document{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"collection": ds.Service.Collection(),
		"count":      len(docs),
		"records":    docs,
	})
}

// Series returns the dataset's chart series: sentiment over time for
// articles, closing price for prices.
func (h *Handler) Series(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w, r)
	if !ok {
		return
	}
	var points []visualize.Point
	switch ds.Kind {
	case record.KindArticle:
		docs, err := ds.Service.FetchAll(r.Context(), "publishedAt", record.SentimentField)
		if err != nil {
			h.fail(w, r, "loading series", err)
			return
		}
		points = visualize.SentimentSeries(docs)
	default:
		docs, err := ds.Service.FetchAll(r.Context(), record.PriceBarKeyField, "close")
		if err != nil {
			h.fail(w, r, "loading series", err)
			return
		}
		points = visualize.CloseSeries(docs)
	}
	out := make([]seriesPoint, len(points))
	for i, p := range points {
		out[i] = seriesPoint{Time: p.Time.UTC().Format("2006-01-02T15:04:05Z07:00"), Value: p.Value}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"points": out})
}

// DeleteRecords deletes by natural key (?key=) or, with ?all=true, clears
// the collection. Keys travel in the query because article keys are URLs.
func (h *Handler) DeleteRecords(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	switch {
	case q.Has("key"):
		key := q.Get("key")
		removed, err := ds.Service.DeleteByKey(r.Context(), key)
		if err != nil {
			h.fail(w, r, "deleting record", err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{"key": key, "removed": removed})
	case q.Get("all") == "true":
		n, err := ds.Service.Clear(r.Context())
		if err != nil {
			h.fail(w, r, "clearing collection", err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
	default:
		h.writeError(w, http.StatusBadRequest, "pass key=<natural key> or all=true")
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := apperrors.HTTPStatusCode(err)
	logger.FromContext(r.Context()).Error(op+" failed",
		"component", "api",
		"dataset", r.PathValue("dataset"),
		"error", err,
		"status_code", status,
	)
	msg := op + " failed"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	h.writeError(w, status, msg)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
