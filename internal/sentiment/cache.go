package sentiment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Market-Sentiment-Pipeline/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "sentiment:"

// CacheKeyPattern matches every memoised score.
const CacheKeyPattern = cacheKeyPrefix + "*"

// Cache is the key-value store scores are memoised in. *redis.Client
// satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// CachedScorer memoises another Scorer's results. Identical texts scored
// concurrently are computed once. A cache fault never fails scoring; the
// score is computed directly instead.
type CachedScorer struct {
	next    Scorer
	cache   Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
}

// NewCachedScorer wraps next. m may be nil.
func NewCachedScorer(next Scorer, cache Cache, ttl time.Duration, m *metrics.Metrics) *CachedScorer {
	return &CachedScorer{
		next:    next,
		cache:   cache,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "sentiment-cache"),
	}
}

func (c *CachedScorer) Score(ctx context.Context, text string) (float64, error) {
	key := CacheKey(text)

	if cached, err := c.cache.Get(ctx, key); err == nil {
		if score, perr := strconv.ParseFloat(cached, 64); perr == nil && ValidScore(score) {
			c.hit()
			return score, nil
		}
		c.logger.Warn("discarding malformed cached score", "key", key, "value", cached)
	} else if !redis.IsNilError(err) {
		c.logger.Warn("sentiment cache read failed", "key", key, "error", err)
	}
	c.miss()

	v, err, _ := c.group.Do(key, func() (any, error) {
		score, err := c.next.Score(ctx, text)
		if err != nil {
			return 0.0, err
		}
		if err := c.cache.Set(ctx, key, strconv.FormatFloat(score, 'f', -1, 64), c.ttl); err != nil {
			c.logger.Warn("sentiment cache write failed", "key", key, "error", err)
		}
		return score, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (c *CachedScorer) hit() {
	if c.metrics != nil {
		c.metrics.SentimentCacheHits.Inc()
	}
}

func (c *CachedScorer) miss() {
	if c.metrics != nil {
		c.metrics.SentimentCacheMisses.Inc()
	}
}

// CacheKey is the cache key for text: a prefix and the hex SHA-256 digest.
func CacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
