package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/errors"
)

// AlphaVantageClient reads daily price series from Alpha Vantage.
type AlphaVantageClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewAlphaVantageClient(baseURL, apiKey string, timeout time.Duration) *AlphaVantageClient {
	return &AlphaVantageClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: newHTTPClient(timeout),
		logger:     slog.Default().With("component", "alphavantage"),
	}
}

type avDailyResponse struct {
	TimeSeries   map[string]avBar `json:"Time Series (Daily)"`
	ErrorMessage string           `json:"Error Message"`
	Note         string           `json:"Note"`
	Information  string           `json:"Information"`
}

type avBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// FetchDaily returns the compact (about 100 trading days) daily series for
// symbol, oldest first. Bars with unparseable numbers are skipped.
func (c *AlphaVantageClient) FetchDaily(ctx context.Context, symbol string) ([]*record.PriceBar, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: stocks api key is not configured", apperrors.ErrInvalidInput)
	}
	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", symbol)
	q.Set("outputsize", "compact")
	q.Set("apikey", c.apiKey)

	resp, err := get(ctx, c.httpClient, c.baseURL, "/query", q)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw avDailyResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decoding alphavantage response: %w", apperrors.ErrUpstream, err)
	}
	switch {
	case raw.ErrorMessage != "":
		return nil, fmt.Errorf("%w: alphavantage: %s", apperrors.ErrUpstream, raw.ErrorMessage)
	case raw.TimeSeries == nil && raw.Note != "":
		return nil, fmt.Errorf("%w: alphavantage: %s", apperrors.ErrUpstream, raw.Note)
	case raw.TimeSeries == nil && raw.Information != "":
		return nil, fmt.Errorf("%w: alphavantage: %s", apperrors.ErrUpstream, raw.Information)
	case raw.TimeSeries == nil:
		return nil, fmt.Errorf("%w: alphavantage: response has no daily time series", apperrors.ErrUpstream)
	}

	bars := make([]*record.PriceBar, 0, len(raw.TimeSeries))
	for date, b := range raw.TimeSeries {
		bar, err := parseBar(date, b)
		if err != nil {
			c.logger.Warn("skipping malformed bar", "symbol", symbol, "date", date, "error", err)
			continue
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date })
	c.logger.Info("fetched daily bars", "symbol", symbol, "count", len(bars))
	return bars, nil
}

func parseBar(date string, b avBar) (*record.PriceBar, error) {
	bar := &record.PriceBar{Date: date}
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", b.Open, &bar.Open},
		{"high", b.High, &bar.High},
		{"low", b.Low, &bar.Low},
		{"close", b.Close, &bar.Close},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%s: %q is not a finite number", f.name, f.raw)
		}
		*f.dst = v
	}
	if s := strings.TrimSpace(b.Volume); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("volume: %w", err)
		}
		bar.Volume = &v
	}
	return bar, nil
}
