package routing

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
)

const keyPrefixRoute = "route"

// ErrCacheMiss is returned by a Store when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Store is the key/value backend of a CachedClient.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// HitRecorder counts cache hits and misses.
type HitRecorder interface {
	CacheHit()
	CacheMiss()
}

// RedisStore implements Store on top of go-redis.
type RedisStore struct {
	client *redis.Client
}

// ConnectRedis creates a RedisStore and checks the connection.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: rdb}, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// CachedClient memoizes successful routes by their exact coordinate list.
// Failures are never cached and cache errors never fail a request.
type CachedClient struct {
	next    Client
	store   Store
	ttl     time.Duration
	profile string
	log     logrus.FieldLogger
	hits    HitRecorder
}

// NewCachedClient wraps next. hits may be nil.
func NewCachedClient(next Client, store Store, ttl time.Duration, profile string, log logrus.FieldLogger, hits HitRecorder) *CachedClient {
	return &CachedClient{next: next, store: store, ttl: ttl, profile: profile, log: log, hits: hits}
}

// Route implements Client.
func (c *CachedClient) Route(ctx context.Context, coords []orb.Point) (*Route, error) {
	key := CacheKey(c.profile, coords)

	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var cached Route
		jsonErr := json.Unmarshal(data, &cached)
		if jsonErr == nil {
			c.recordHit()
			return &cached, nil
		}
		c.log.WithError(jsonErr).WithField("key", key).Warn("Discarding undecodable cached route")
	case !errors.Is(err, ErrCacheMiss):
		c.log.WithError(err).Warn("Route cache read failed")
	}
	c.recordMiss()

	route, err := c.next.Route(ctx, coords)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(route); err == nil {
		if err := c.store.Set(ctx, key, payload, c.ttl); err != nil {
			c.log.WithError(err).Warn("Failed to cache route")
		}
	}
	return route, nil
}

func (c *CachedClient) recordHit() {
	if c.hits != nil {
		c.hits.CacheHit()
	}
}

func (c *CachedClient) recordMiss() {
	if c.hits != nil {
		c.hits.CacheMiss()
	}
}

// CacheKey derives the cache key for a coordinate list.
func CacheKey(profile string, coords []orb.Point) string {
	sum := sha1.Sum([]byte(profile + "|" + EncodeCoordinates(coords)))
	return fmt.Sprintf("%s:%s", keyPrefixRoute, hex.EncodeToString(sum[:]))
}
