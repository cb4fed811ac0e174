package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tourbook/pkg/logger"
	"tourbook/pkg/model"
)

// Query identifies one page of eligible guides.
type Query struct {
	Governorate string
	Languages   []string
	Ascending   bool
	Limit       int
	Offset      int64
}

// Key is independent of language order.
func (q Query) Key() string {
	langs := append([]string(nil), q.Languages...)
	slices.Sort(langs)
	order := "desc"
	if q.Ascending {
		order = "asc"
	}
	return fmt.Sprintf("guides:eligible:%s:%s:%s:%d:%d",
		strings.ToLower(q.Governorate), strings.ToLower(strings.Join(langs, ",")), order, q.Limit, q.Offset)
}

type Page struct {
	Guides []*model.Guide `json:"guides"`
	Total  int64          `json:"total"`
}

// GuideCache stores pages of eligible guides. Misses and backend failures
// both report ok=false; the caller falls back to the database.
type GuideCache interface {
	Get(ctx context.Context, q Query) (Page, bool)
	Set(ctx context.Context, q Query, page Page)
}

type redisGuideCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewRedisGuideCache(client *redis.Client, ttl time.Duration, log *logger.Logger) GuideCache {
	return &redisGuideCache{client: client, ttl: ttl, log: log}
}

func (c *redisGuideCache) Get(ctx context.Context, q Query) (Page, bool) {
	data, err := c.client.Get(ctx, q.Key()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("Guide cache read failed", "key", q.Key(), "error", err)
		}
		return Page{}, false
	}

	var page Page
	if err := json.Unmarshal(data, &page); err != nil {
		c.log.Warn("Guide cache entry corrupt", "key", q.Key(), "error", err)
		return Page{}, false
	}
	return page, true
}

func (c *redisGuideCache) Set(ctx context.Context, q Query, page Page) {
	data, err := json.Marshal(page)
	if err != nil {
		c.log.Warn("Guide cache encode failed", "key", q.Key(), "error", err)
		return
	}
	if err := c.client.Set(ctx, q.Key(), data, c.ttl).Err(); err != nil {
		c.log.Warn("Guide cache write failed", "key", q.Key(), "error", err)
	}
}

type noopGuideCache struct{}

// NewNoopGuideCache is used when the cache is disabled.
func NewNoopGuideCache() GuideCache { return noopGuideCache{} }

func (noopGuideCache) Get(context.Context, Query) (Page, bool) { return Page{}, false }
func (noopGuideCache) Set(context.Context, Query, Page)        {}

// New picks the Redis cache when enabled and connected.
func New(enabled bool, client *redis.Client, ttl time.Duration, log *logger.Logger) GuideCache {
	if !enabled || client == nil {
		return NewNoopGuideCache()
	}
	return NewRedisGuideCache(client, ttl, log)
}
