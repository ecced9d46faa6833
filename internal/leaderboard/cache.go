package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	cachePrefix     = "keyrace:leaderboard"
	cacheVersionKey = cachePrefix + ":version"
)

// CachedStore serves Top listings from Redis. Every Submit bumps a version
// counter embedded in the listing keys, so stale listings are never read and
// simply expire.
type CachedStore struct {
	next Store
	rdb  *redis.Client
	ttl  time.Duration
	log  zerolog.Logger
}

// NewCachedStore wraps next with a Redis read-through cache.
func NewCachedStore(next Store, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedStore {
	return &CachedStore{next: next, rdb: rdb, ttl: ttl, log: log}
}

// Submit stores the score and invalidates cached listings.
func (c *CachedStore) Submit(ctx context.Context, score Score) (Entry, error) {
	entry, err := c.next.Submit(ctx, score)
	if err != nil {
		return Entry{}, err
	}
	if err := c.rdb.Incr(ctx, cacheVersionKey).Err(); err != nil {
		c.log.Warn().Err(err).Msg("failed to invalidate leaderboard cache")
	}
	return entry, nil
}

// Top returns a cached listing when present, otherwise reads through.
// Redis failures degrade to the underlying store.
func (c *CachedStore) Top(ctx context.Context, q Query) ([]Entry, error) {
	q = q.Normalize()
	key, err := c.key(ctx, q)
	if err != nil {
		c.log.Warn().Err(err).Msg("leaderboard cache unavailable")
		return c.next.Top(ctx, q)
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entries []Entry
		if jerr := json.Unmarshal(data, &entries); jerr == nil {
			return entries, nil
		}
		c.log.Warn().Str("key", key).Msg("discarding corrupt leaderboard cache entry")
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Msg("failed to read leaderboard cache")
	}

	entries, err := c.next.Top(ctx, q)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(entries); err == nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Msg("failed to write leaderboard cache")
		}
	}
	return entries, nil
}

func (c *CachedStore) key(ctx context.Context, q Query) (string, error) {
	version, err := c.rdb.Get(ctx, cacheVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	mode := string(q.Mode)
	if mode == "" {
		mode = "all"
	}
	return fmt.Sprintf("%s:v%d:%s:%d", cachePrefix, version, mode, q.Limit), nil
}

// NewRedisClient parses url and verifies the server is reachable.
func NewRedisClient(ctx context.Context, url string, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	log.Info().Str("addr", opt.Addr).Int("db", opt.DB).Msg("redis connected")
	return rdb, nil
}
