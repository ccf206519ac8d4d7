// Command loadtest drives concurrent GET traffic against the read API of a
// running ingest service and prints per-endpoint latency and status codes.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Paths       []string
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the ingest service API")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	paths := flag.String("paths", strings.Join(defaultPaths, ","), "comma-separated request paths")
	flag.Parse()

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Paths:       splitPaths(*paths),
	}
	if cfg.Concurrency < 1 || len(cfg.Paths) == 0 {
		fmt.Fprintln(os.Stderr, "loadtest: need at least one worker and one path")
		os.Exit(2)
	}

	fmt.Println("=== Market Sentiment API Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Paths:       %d\n", len(cfg.Paths))
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()
	stats := run(ctx, cfg, newClient(cfg.Concurrency))

	if !printReport(os.Stdout, cfg, stats) {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

var defaultPaths = []string{
	"/api/v1/articles/records",
	"/api/v1/articles/records?fields=url,sentiment",
	"/api/v1/articles/series",
	"/api/v1/prices/records",
	"/api/v1/prices/series",
	"/health/ready",
}

func splitPaths(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newClient(concurrency int) *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// run starts cfg.Concurrency workers that cycle through cfg.Paths until
// ctx ends. Workers start at different offsets so every path gets traffic.
func run(ctx context.Context, cfg Config, client *http.Client) map[string]*Stats {
	stats := make(map[string]*Stats, len(cfg.Paths))
	for _, p := range cfg.Paths {
		stats[p] = NewStats()
	}

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				path := cfg.Paths[next%len(cfg.Paths)]
				next++
				status, d, err := hit(ctx, client, cfg.BaseURL+path)
				if ctx.Err() != nil {
					return
				}
				stats[path].Record(d, status, err)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func hit(ctx context.Context, client *http.Client, rawURL string) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, 0, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, time.Since(start), err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, time.Since(start), nil
}

// printReport writes one row per path and reports whether any request
// completed.
func printReport(w io.Writer, cfg Config, stats map[string]*Stats) bool {
	width := runewidth.StringWidth("PATH")
	for _, p := range cfg.Paths {
		width = max(width, runewidth.StringWidth(p))
	}

	fmt.Fprintf(w, "%s  %8s %8s %10s %10s %10s %10s  %s\n",
		runewidth.FillRight("PATH", width), "REQS", "ERRORS", "AVG", "P50", "P95", "P99", "CODES")
	var total int64
	for _, p := range cfg.Paths {
		s := stats[p].Summary()
		total += s.Total
		fmt.Fprintf(w, "%s  %8d %8d %10s %10s %10s %10s  %s\n",
			runewidth.FillRight(p, width), s.Total, s.Errors,
			round(s.Avg), round(s.P50), round(s.P95), round(s.P99), formatCodes(s.Codes))
	}
	if total > 0 {
		fmt.Fprintf(w, "\nRequests/sec: %.2f\n", float64(total)/cfg.Duration.Seconds())
	}
	return total > 0
}

func round(d time.Duration) time.Duration {
	return d.Round(10 * time.Microsecond)
}

func formatCodes(codes map[int]int64) string {
	keys := make([]int, 0, len(codes))
	for k := range codes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%d:%d", k, codes[k])
	}
	return strings.Join(parts, " ")
}
