package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alfredai/landing-leads/pkg/logging"
)

const geoCachePrefix = "geo:country:"

// CachedLocator memoizes country answers in Redis. Redis failures fall
// through to the wrapped locator.
type CachedLocator struct {
	next   GeoLocator
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedLocator wraps next. A nil redis client returns next unchanged.
func NewCachedLocator(next GeoLocator, client *redis.Client, ttl time.Duration, logger *logging.Logger) GeoLocator {
	if client == nil {
		return next
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedLocator{next: next, redis: client, ttl: ttl, logger: logger}
}

// Country checks the cache before asking the wrapped locator.
func (c *CachedLocator) Country(ctx context.Context, ip string) (string, error) {
	ip, ok := CanonicalIP(ip)
	if !ok {
		return "", ErrInvalidIP
	}
	key := geoCachePrefix + ip

	cached, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("geo cache read failed", "error", err, "key", key)
	}

	country, err := c.next.Country(ctx, ip)
	if err != nil || country == "" {
		return country, err
	}

	if err := c.redis.Set(ctx, key, country, c.ttl).Err(); err != nil {
		c.logger.Warn("geo cache write failed", "error", err, "key", key)
	}
	return country, nil
}
