package offers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/partstrade/trade-service/internal/normalize"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	offerKeyPrefix  = "offers:"
	defaultCacheTTL = 10 * time.Minute
)

// Cache stores raw search results.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type redisCache struct {
	client *redis.Client
}

// NewRedisCache wraps a redis client.
func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return payload, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// NewRedisClient connects to url and pings it.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// CachedSource caches GetOffers of another Source. Concurrent misses for
// the same part share one upstream call. Basket calls are never cached.
type CachedSource struct {
	Source
	cache Cache
	ttl   time.Duration
	group singleflight.Group
	log   zerolog.Logger
}

// NewCachedSource wraps src. A zero ttl uses the default.
func NewCachedSource(src Source, cache Cache, ttl time.Duration, logger zerolog.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedSource{
		Source: src,
		cache:  cache,
		ttl:    ttl,
		log:    logger.With().Str("component", "offer-cache").Logger(),
	}
}

func (c *CachedSource) GetOffers(ctx context.Context, oem, brand string, withoutCross bool) ([]types.MarketplaceOffer, error) {
	key := offerKey(oem, brand, withoutCross)

	if payload, ok, err := c.cache.Get(ctx, key); err != nil {
		// a broken cache must not stop restocking
		c.log.Warn().Err(err).Str("key", key).Msg("Offer cache read failed")
	} else if ok {
		var cached []types.MarketplaceOffer
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		found, err := c.Source.GetOffers(ctx, oem, brand, withoutCross)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(found); err == nil {
			if err := c.cache.Set(ctx, key, payload, c.ttl); err != nil {
				c.log.Warn().Err(err).Str("key", key).Msg("Offer cache write failed")
			}
		}
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.MarketplaceOffer), nil
}

func offerKey(oem, brand string, withoutCross bool) string {
	cross := "cross"
	if withoutCross {
		cross = "exact"
	}
	return offerKeyPrefix + normalize.Brand(brand) + ":" + normalize.OEM(oem) + ":" + cross
}
