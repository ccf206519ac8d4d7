// Package sentiment scores article text. Scores are VADER compound polarity
// in [-1, 1]: negative below zero, positive above.
package sentiment

import (
	"context"
	"fmt"
	"math"

	"github.com/jonreiter/govader"
)

// Scorer maps text to a sentiment score in [-1, 1].
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// ValidScore reports whether score is a usable sentiment value.
func ValidScore(score float64) bool {
	return !math.IsNaN(score) && score >= -1 && score <= 1
}

// VaderScorer scores text with the VADER lexicon. It is deterministic and
// needs no network access.
type VaderScorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVaderScorer loads the VADER lexicon.
func NewVaderScorer() *VaderScorer {
	return &VaderScorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *VaderScorer) Score(ctx context.Context, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	compound := v.analyzer.PolarityScores(text).Compound
	if !ValidScore(compound) {
		return 0, fmt.Errorf("vader compound score %v out of range", compound)
	}
	return compound, nil
}
