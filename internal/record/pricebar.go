package record

import "strings"

// PriceBar is one trading day of a stock's price series.
type PriceBar struct {
	Date   string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume *int64
}

func (p *PriceBar) Kind() Kind { return KindPriceBar }

func (p *PriceBar) NaturalKey() (string, bool) {
	key := strings.TrimSpace(p.Date)
	return key, key != ""
}

func (p *PriceBar) Document() Document {
	doc := Document{
		"date":  strings.TrimSpace(p.Date),
		"open":  p.Open,
		"high":  p.High,
		"low":   p.Low,
		"close": p.Close,
	}
	if p.Volume != nil {
		doc["volume"] = *p.Volume
	}
	return doc
}
