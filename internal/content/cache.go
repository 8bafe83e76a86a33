package content

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/victornm/docquiz/internal/errors"
)

const defaultCacheTTL = 10 * time.Minute

type Source interface {
	Excerpt(ctx context.Context, documentRef string) (string, error)
}

type CacheConfig struct {
	Source Source
	Redis  redis.UniversalClient
	Prefix string
	TTL    time.Duration
}

// Cache keeps excerpts in Redis. Concurrent misses for one document share a single
// load, and a Redis failure falls through to the source.
type Cache struct {
	src    Source
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration

	group singleflight.Group
}

func NewCache(c CacheConfig) *Cache {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return &Cache{
		src:    c.Source,
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    ttl,
	}
}

func (c *Cache) Excerpt(ctx context.Context, documentRef string) (string, error) {
	key := c.key(documentRef)

	text, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		return text, nil
	case !stderrors.Is(err, redis.Nil):
		slog.WarnContext(ctx, "content: read excerpt cache failed", "document", documentRef, "error", err)
	}

	v, err, _ := c.group.Do(documentRef, func() (any, error) {
		text, err := c.src.Excerpt(ctx, documentRef)
		if err != nil {
			return "", err
		}

		if err := c.redis.Set(ctx, key, text, c.ttl).Err(); err != nil {
			slog.WarnContext(ctx, "content: write excerpt cache failed", "document", documentRef, "error", err)
		}
		return text, nil
	})
	if err != nil {
		if errors.IsUpstream(err) {
			return "", err
		}
		return "", errors.Upstream(fmt.Errorf("load excerpt: %w", err))
	}

	return v.(string), nil
}

func (c *Cache) key(documentRef string) string {
	return fmt.Sprintf("%s:excerpt:%s", c.prefix, documentRef)
}
