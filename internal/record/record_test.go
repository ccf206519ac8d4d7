package record

import (
	"reflect"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestArticleDocumentOmitsNilFields(t *testing.T) {
	a := &Article{
		Source:      &ArticleSource{Name: "Reuters"},
		Title:       "Markets rally",
		URL:         " https://example.com/a ",
		PublishedAt: "2024-01-01T10:00:00Z",
		Content:     strPtr("great news"),
	}
	doc := a.Document()

	if doc["url"] != "https://example.com/a" {
		t.Errorf("url not trimmed: %q", doc["url"])
	}
	for _, field := range []string{"author", "description", "urlToImage", SentimentField} {
		if _, ok := doc[field]; ok {
			t.Errorf("field %q should be omitted", field)
		}
	}
	src, ok := doc["source"].(map[string]any)
	if !ok || src["name"] != "Reuters" {
		t.Errorf("source = %v", doc["source"])
	}
	if _, ok := src["id"]; ok {
		t.Error("nil source id should be omitted")
	}
}

func TestArticleSentiment(t *testing.T) {
	a := &Article{URL: "u", Content: strPtr("text")}
	if a.Body() != "text" {
		t.Errorf("Body = %q", a.Body())
	}
	a.SetSentiment(0.42)
	if got := a.Document()[SentimentField]; got != 0.42 {
		t.Errorf("sentiment = %v", got)
	}
	if (&Article{}).Body() != "" {
		t.Error("nil content should give empty body")
	}
	if b := (&Article{Description: strPtr("summary only")}).Body(); b != "" {
		t.Errorf("description leaked into body: %q", b)
	}
}

func TestNaturalKey(t *testing.T) {
	tests := []struct {
		name   string
		rec    Record
		want   string
		wantOK bool
	}{
		{"article", &Article{URL: "https://x"}, "https://x", true},
		{"article blank", &Article{URL: "   "}, "", false},
		{"price bar", &PriceBar{Date: "2024-03-01"}, "2024-03-01", true},
		{"price bar missing", &PriceBar{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.rec.NaturalKey()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("NaturalKey() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPriceBarDocument(t *testing.T) {
	vol := int64(1200)
	doc := (&PriceBar{Date: "2024-03-01", Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: &vol}).Document()
	want := Document{"date": "2024-03-01", "open": 1.0, "high": 2.0, "low": 0.5, "close": 1.5, "volume": int64(1200)}
	if !reflect.DeepEqual(doc, want) {
		t.Errorf("Document() = %v, want %v", doc, want)
	}
	if _, ok := (&PriceBar{Date: "d"}).Document()["volume"]; ok {
		t.Error("nil volume should be omitted")
	}
}

func TestKeyFieldAndPolicy(t *testing.T) {
	if KeyField(KindArticle) != "url" || KeyField(KindPriceBar) != "date" {
		t.Error("unexpected key fields")
	}
	if DefaultPolicy(KindArticle) != InsertOnly {
		t.Error("articles must be insert-only")
	}
	if DefaultPolicy(KindPriceBar) != Merge {
		t.Error("price bars must merge")
	}
}

func TestDocumentHelpers(t *testing.T) {
	doc := Document{"url": "u", "sentiment": 0.5, "count": int32(3), "title": "t"}

	if k, ok := doc.Key("url"); !ok || k != "u" {
		t.Errorf("Key(url) = %q, %v", k, ok)
	}
	if _, ok := doc.Key("missing"); ok {
		t.Error("Key(missing) should be false")
	}
	if f, ok := doc.Float("count"); !ok || f != 3 {
		t.Errorf("Float(count) = %v, %v", f, ok)
	}
	if _, ok := doc.Float("title"); ok {
		t.Error("Float(title) should be false")
	}

	without := doc.Without("url")
	if _, ok := without["url"]; ok {
		t.Error("Without kept url")
	}
	if _, ok := doc["url"]; !ok {
		t.Error("Without mutated the original")
	}

	proj := doc.Project("url", "sentiment", "nope")
	if len(proj) != 2 {
		t.Errorf("Project = %v", proj)
	}
	if len(doc.Project()) != len(doc) {
		t.Error("empty projection should copy everything")
	}
}
