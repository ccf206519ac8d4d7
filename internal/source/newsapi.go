package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/errors"
)

// NewsAPIClient searches newsapi.org's /v2/everything endpoint.
type NewsAPIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewNewsAPIClient(baseURL, apiKey string, timeout time.Duration) *NewsAPIClient {
	return &NewsAPIClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: newHTTPClient(timeout),
		logger:     slog.Default().With("component", "newsapi"),
	}
}

type newsAPIResponse struct {
	Status       string            `json:"status"`
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	TotalResults int               `json:"totalResults"`
	Articles     []*record.Article `json:"articles"`
}

// Fetch returns up to pageSize articles matching query, as delivered.
func (c *NewsAPIClient) Fetch(ctx context.Context, query string, pageSize int) ([]*record.Article, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: news api key is not configured", apperrors.ErrInvalidInput)
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("apiKey", c.apiKey)

	resp, err := get(ctx, c.httpClient, c.baseURL, "/v2/everything", q)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decoding newsapi response: %w", apperrors.ErrUpstream, err)
	}
	if raw.Status == "error" {
		return nil, fmt.Errorf("%w: newsapi %s: %s", apperrors.ErrUpstream, raw.Code, raw.Message)
	}

	articles := make([]*record.Article, 0, len(raw.Articles))
	for _, a := range raw.Articles {
		if a != nil {
			articles = append(articles, a)
		}
	}
	c.logger.Info("fetched articles", "query", query, "count", len(articles), "total_results", raw.TotalResults)
	return articles, nil
}
