// Package visualize turns stored documents into time series and draws them
// as text charts.
package visualize

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
	"github.com/mattn/go-runewidth"
)

// barWidth is the number of columns the value range is scaled to.
const barWidth = 40

// Point is one observation in a series.
type Point struct {
	Time  time.Time
	Value float64
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// series extracts (timeField, valueField) pairs, skipping documents that
// lack either, whose time does not parse or whose value is not finite, and
// sorts them by time.
func series(docs []record.Document, timeField, valueField string) []Point {
	points := make([]Point, 0, len(docs))
	for _, d := range docs {
		raw, ok := d.Key(timeField)
		if !ok {
			continue
		}
		t, ok := parseTime(raw)
		if !ok {
			continue
		}
		v, ok := d.Float(valueField)
		if !ok || !finite(v) {
			continue
		}
		points = append(points, Point{Time: t, Value: v})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points
}

// SentimentSeries returns article sentiment by publication time.
func SentimentSeries(docs []record.Document) []Point {
	return series(docs, "publishedAt", record.SentimentField)
}

// CloseSeries returns daily closing prices by date.
func CloseSeries(docs []record.Document) []Point {
	return series(docs, record.PriceBarKeyField, "close")
}

// Render draws points as a horizontal bar chart, one row per point. When the
// values straddle zero, a '|' marks the zero column and bars grow from it.
// A point whose value is not finite gets a row without a bar.
func Render(w io.Writer, title string, points []Point) error {
	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", runewidth.StringWidth(title)) + "\n")
	if len(points) == 0 {
		b.WriteString("(no data)\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	labels := make([]string, len(points))
	values := make([]string, len(points))
	labelWidth, valueWidth := 0, 0
	lo, hi := 0.0, 0.0
	for i, p := range points {
		labels[i] = label(p.Time)
		values[i] = fmt.Sprintf("%.4f", p.Value)
		labelWidth = max(labelWidth, runewidth.StringWidth(labels[i]))
		valueWidth = max(valueWidth, runewidth.StringWidth(values[i]))
		if finite(p.Value) {
			lo = math.Min(lo, p.Value)
			hi = math.Max(hi, p.Value)
		}
	}
	if hi == lo {
		hi = lo + 1
	}
	zero := scale(0, lo, hi)

	for i, p := range points {
		row := runewidth.FillRight(labels[i], labelWidth) + "  " + runewidth.FillLeft(values[i], valueWidth)
		if finite(p.Value) {
			row += "  " + bar(scale(p.Value, lo, hi), zero, lo < 0)
		}
		b.WriteString(row + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func label(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04")
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func scale(v, lo, hi float64) int {
	return int(math.Round((v - lo) / (hi - lo) * barWidth))
}

func bar(col, zero int, axis bool) string {
	row := []rune(strings.Repeat(" ", barWidth+1))
	from, to := min(col, zero), max(col, zero)
	for i := from; i <= to && i <= barWidth; i++ {
		row[i] = '#'
	}
	if axis {
		row[zero] = '|'
	}
	return strings.TrimRight(string(row), " ")
}
