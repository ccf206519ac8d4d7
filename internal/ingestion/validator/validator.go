// Package validator checks records before they are written. It catches
// records no store should hold: a missing natural key, a price bar whose
// date is not YYYY-MM-DD or whose prices are negative or not finite.
package validator

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/errors"
)

const (
	maxKeyLength = 2048
	dateLayout   = "2006-01-02"
)

// ValidationError holds per-field validation failure messages. It wraps
// ErrInvalidRecord.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidRecord
}

// Validate checks rec against the kind its collection holds. A record
// without a natural key yields ErrMissingKey; anything else wrong yields a
// *ValidationError.
func Validate(rec record.Record, kind record.Kind) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", apperrors.ErrInvalidRecord)
	}
	if rec.Kind() != kind {
		return fmt.Errorf("%w: %s record in a %s collection", apperrors.ErrInvalidRecord, rec.Kind(), kind)
	}
	key, ok := rec.NaturalKey()
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrMissingKey, record.KeyField(kind))
	}

	errs := make(map[string]string)
	if len(key) > maxKeyLength {
		errs[record.KeyField(kind)] = fmt.Sprintf("must be at most %d characters", maxKeyLength)
	}
	if bar, ok := rec.(*record.PriceBar); ok {
		validatePriceBar(bar, errs)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validatePriceBar(bar *record.PriceBar, errs map[string]string) {
	if _, err := time.Parse(dateLayout, strings.TrimSpace(bar.Date)); err != nil {
		errs["date"] = "must be a YYYY-MM-DD date"
	}
	prices := map[string]float64{"open": bar.Open, "high": bar.High, "low": bar.Low, "close": bar.Close}
	for field, v := range prices {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			errs[field] = "must be a finite number"
		case v < 0:
			errs[field] = "must not be negative"
		}
	}
	if bar.Volume != nil && *bar.Volume < 0 {
		errs["volume"] = "must not be negative"
	}
}
