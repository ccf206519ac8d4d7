// Package source fetches raw records from the news and stock price APIs.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/errors"
)

const maxErrorBody = 512

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// get issues a GET to base+path with query and returns the response for a
// 2xx status. Any other status becomes an ErrUpstream error carrying the
// start of the body.
func get(ctx context.Context, client *http.Client, base, path string, query url.Values) (*http.Response, error) {
	endpoint := strings.TrimRight(base, "/") + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrUpstream, path, redact(err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %s returned %d: %s", apperrors.ErrUpstream, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

// redact strips the query string, and the API key in it, from URL errors.
func redact(err error) error {
	if uerr, ok := err.(*url.Error); ok {
		if u, perr := url.Parse(uerr.URL); perr == nil {
			u.RawQuery = ""
			return &url.Error{Op: uerr.Op, URL: u.String(), Err: uerr.Err}
		}
	}
	return err
}
