package record

import "strings"

// ArticleSource names the outlet an article was published by.
type ArticleSource struct {
	ID   *string `json:"id"`
	Name string  `json:"name"`
}

// Article is a news article as delivered by the news API. Optional fields
// are nil when the API did not supply them.
type Article struct {
	Source      *ArticleSource `json:"source"`
	Author      *string        `json:"author"`
	Title       string         `json:"title"`
	Description *string        `json:"description"`
	URL         string         `json:"url"`
	URLToImage  *string        `json:"urlToImage"`
	PublishedAt string         `json:"publishedAt"`
	Content     *string        `json:"content"`
	Sentiment   *float64       `json:"sentiment,omitempty"`
}

func (a *Article) Kind() Kind { return KindArticle }

func (a *Article) NaturalKey() (string, bool) {
	key := strings.TrimSpace(a.URL)
	return key, key != ""
}

// Body is the text scored for sentiment.
func (a *Article) Body() string {
	if a.Content == nil {
		return ""
	}
	return *a.Content
}

func (a *Article) SetSentiment(score float64) {
	a.Sentiment = &score
}

func (a *Article) Document() Document {
	doc := Document{
		"title":       a.Title,
		"url":         strings.TrimSpace(a.URL),
		"publishedAt": a.PublishedAt,
	}
	if a.Source != nil {
		src := map[string]any{"name": a.Source.Name}
		if a.Source.ID != nil {
			src["id"] = *a.Source.ID
		}
		doc["source"] = src
	}
	setString(doc, "author", a.Author)
	setString(doc, "description", a.Description)
	setString(doc, "urlToImage", a.URLToImage)
	setString(doc, "content", a.Content)
	if a.Sentiment != nil {
		doc[SentimentField] = *a.Sentiment
	}
	return doc
}

func setString(doc Document, field string, v *string) {
	if v != nil {
		doc[field] = *v
	}
}
