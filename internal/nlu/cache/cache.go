// Package cache keeps parse results in Redis, keyed by model fingerprint,
// input, filters and reference instant.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"nlu-engine/internal/common/errors"
	"nlu-engine/internal/common/logger"
	"nlu-engine/internal/common/metrics"
	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/engine"
)

// Parser is the part of the engine the cache fronts.
type Parser interface {
	Parse(q engine.Query) (models.ParseResult, error)
}

// Lookup results reported to nlu_cache_requests_total.
const (
	resultHit    = "hit"
	resultMiss   = "miss"
	resultError  = "error"
	resultBypass = "bypass"
)

const defaultTTL = 10 * time.Minute

// Cache is safe for concurrent use. Concurrent misses on the same key share
// one parse.
type Cache struct {
	client      redis.Cmdable
	parser      Parser
	fingerprint string
	prefix      string
	ttl         time.Duration
	group       singleflight.Group
	logger      logger.Logger
}

// New fronts parser with client. fingerprint must change whenever the model
// does so stale entries are never read back.
func New(client redis.Cmdable, parser Parser, fingerprint, prefix string, ttl time.Duration, log logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{
		client:      client,
		parser:      parser,
		fingerprint: fingerprint,
		prefix:      prefix,
		ttl:         ttl,
		logger:      log.Named("cache"),
	}
}

// Ping reports whether Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return errors.NewCacheUnavailableError(err)
	}
	return nil
}

// Key derives the cache key of q.
func (c *Cache) Key(q engine.Query) string {
	whitelist := slices.Clone(q.Whitelist)
	blacklist := slices.Clone(q.Blacklist)
	slices.Sort(whitelist)
	slices.Sort(blacklist)

	payload, _ := json.Marshal(struct {
		Model     string   `json:"m"`
		Text      string   `json:"t"`
		Whitelist []string `json:"w"`
		Blacklist []string `json:"b"`
		Reference string   `json:"r"`
	}{c.fingerprint, q.Text, whitelist, blacklist, q.Reference.Format(time.RFC3339Nano)})
	sum := sha256.Sum256(payload)
	return c.prefix + hex.EncodeToString(sum[:])
}

// Parse serves q from Redis when possible. Queries without a reference
// instant depend on the clock and always go to the parser. Redis failures
// degrade to an uncached parse.
func (c *Cache) Parse(ctx context.Context, q engine.Query) (models.ParseResult, error) {
	if q.Reference.IsZero() {
		metrics.CacheRequests.WithLabelValues(resultBypass).Inc()
		return c.parser.Parse(q)
	}

	key := c.Key(q)
	if result, ok := c.get(ctx, key); ok {
		return result, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := c.parser.Parse(q)
		if err != nil {
			return models.ParseResult{}, err
		}
		c.set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return models.ParseResult{}, err
	}
	return v.(models.ParseResult), nil
}

func (c *Cache) get(ctx context.Context, key string) (models.ParseResult, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case stderrors.Is(err, redis.Nil):
		metrics.CacheRequests.WithLabelValues(resultMiss).Inc()
		return models.ParseResult{}, false
	case err != nil:
		metrics.CacheRequests.WithLabelValues(resultError).Inc()
		c.logger.Warn("Cache read failed", map[string]interface{}{"error": err.Error()})
		return models.ParseResult{}, false
	}

	var result models.ParseResult
	if err := json.Unmarshal(data, &result); err != nil {
		metrics.CacheRequests.WithLabelValues(resultError).Inc()
		c.logger.Warn("Discarding undecodable cache entry", map[string]interface{}{"key": key, "error": err.Error()})
		return models.ParseResult{}, false
	}
	metrics.CacheRequests.WithLabelValues(resultHit).Inc()
	return result, true
}

func (c *Cache) set(ctx context.Context, key string, result models.ParseResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("Cannot encode parse result", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
