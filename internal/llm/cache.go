package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/nkch1k/REAssistant/internal/dispatch"
)

// CacheConfig configures the optional classification cache.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// DefaultCacheConfig returns the disabled-by-default cache settings.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Addr:       "localhost:6379",
		TTLSeconds: 900,
	}
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

// ClassificationCache stores classifier outputs keyed by normalized query
// text, saving repeat LLM calls. Redis failures degrade to cache misses;
// the cache never blocks a query.
type ClassificationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewClassificationCache connects to redis. Returns nil when disabled,
// which callers treat as "no cache".
func NewClassificationCache(config CacheConfig) *ClassificationCache {
	if !config.Enabled {
		return nil
	}
	return &ClassificationCache{
		client: redis.NewClient(&redis.Options{Addr: config.Addr, DB: config.DB}),
		ttl:    config.TTL(),
	}
}

func cacheKey(query string) string {
	return "reassistant:classify:" + strings.ToLower(strings.TrimSpace(query))
}

// Get returns a cached classification and whether it was present.
func (c *ClassificationCache) Get(ctx context.Context, query string) (dispatch.Classification, bool) {
	if c == nil {
		return dispatch.Classification{}, false
	}
	raw, err := c.client.Get(ctx, cacheKey(query)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Msg("classification cache read failed")
		}
		return dispatch.Classification{}, false
	}
	var parsed dispatch.Classification
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return dispatch.Classification{}, false
	}
	return parsed, true
}

// Put stores a classification with the configured TTL.
func (c *ClassificationCache) Put(ctx context.Context, query string, classification dispatch.Classification) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(classification)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(query), raw, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Msg("classification cache write failed")
	}
}
