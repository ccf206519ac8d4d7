package visualize

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
)

func TestSentimentSeriesSortsAndSkips(t *testing.T) {
	docs := []record.Document{
		{"publishedAt": "2024-01-03T10:00:00Z", "sentiment": 0.5},
		{"publishedAt": "2024-01-01T10:00:00Z", "sentiment": -0.2},
		{"publishedAt": "2024-01-02T10:00:00Z"},
		{"sentiment": 0.9},
		{"publishedAt": "yesterday", "sentiment": 0.1},
		{"publishedAt": "2024-01-02", "sentiment": int32(0)},
	}
	points := SentimentSeries(docs)
	if len(points) != 3 {
		t.Fatalf("points = %d, want 3", len(points))
	}
	want := []float64{-0.2, 0, 0.5}
	for i, p := range points {
		if p.Value != want[i] {
			t.Errorf("point %d = %v, want %v", i, p.Value, want[i])
		}
		if i > 0 && p.Time.Before(points[i-1].Time) {
			t.Errorf("points not sorted at %d", i)
		}
	}
}

func TestCloseSeries(t *testing.T) {
	docs := []record.Document{
		{"date": "2024-01-03", "close": 184.25},
		{"date": "2024-01-02", "close": 185.64},
	}
	points := CloseSeries(docs)
	if len(points) != 2 || points[0].Value != 185.64 {
		t.Fatalf("points = %+v", points)
	}
	if !points[0].Time.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("time = %v", points[0].Time)
	}
}

func TestCloseSeriesSkipsNonFinite(t *testing.T) {
	docs := []record.Document{
		{"date": "2024-01-02", "close": math.NaN()},
		{"date": "2024-01-03", "close": math.Inf(1)},
		{"date": "2024-01-04", "close": 186.0},
	}
	points := CloseSeries(docs)
	if len(points) != 1 || points[0].Value != 186.0 {
		t.Fatalf("points = %+v, want only the finite close", points)
	}
}

func TestRenderNonFinitePoint(t *testing.T) {
	points := []Point{
		{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Value: math.NaN()},
		{Time: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Value: math.Inf(-1)},
		{Time: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), Value: 2},
	}
	var buf bytes.Buffer
	if err := Render(&buf, "Closing Price Over Time", points); err != nil {
		t.Fatalf("Render: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("lines = %d:\n%s", len(lines), buf.String())
	}
	if strings.Contains(lines[2], "#") || strings.Contains(lines[3], "#") {
		t.Errorf("non-finite rows drew a bar:\n%s", buf.String())
	}
	if !strings.HasSuffix(lines[4], strings.Repeat("#", barWidth+1)) {
		t.Errorf("finite row should span the chart: %q", lines[4])
	}
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, "Sentiment", nil); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "(no data)") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRenderRows(t *testing.T) {
	points := []Point{
		{Time: time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC), Value: -1},
		{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Value: 1},
	}
	var buf bytes.Buffer
	if err := Render(&buf, "Sentiment Score Over Time", points); err != nil {
		t.Fatalf("Render: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d:\n%s", len(lines), buf.String())
	}
	if lines[1] != strings.Repeat("=", len("Sentiment Score Over Time")) {
		t.Errorf("underline = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "2024-01-01 09:30") || !strings.Contains(lines[2], "-1.0000") {
		t.Errorf("row = %q", lines[2])
	}
	// Labels are padded to the same width, so values line up.
	if strings.Index(lines[2], "1.0000") != strings.Index(lines[3], "1.0000") {
		t.Errorf("columns misaligned:\n%s\n%s", lines[2], lines[3])
	}
	if !strings.Contains(lines[2], "|") || !strings.Contains(lines[3], "#") {
		t.Errorf("bars missing:\n%s", buf.String())
	}
}

func TestRenderWideTitle(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, "株価", []Point{{Time: time.Now(), Value: 1}})
	lines := strings.Split(buf.String(), "\n")
	if lines[1] != "====" {
		t.Errorf("underline for double-width title = %q, want 4 columns", lines[1])
	}
}
