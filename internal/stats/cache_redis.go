package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultCacheTTL = 30 * time.Second

// CachedStore serves leaderboards from redis and falls through to the
// wrapped Store on a miss or when redis is unavailable.
type CachedStore struct {
	Store
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
	log   *zap.Logger
}

func NewCachedStore(inner Store, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedStore{Store: inner, rdb: rdb, ttl: ttl, log: log}
}

func (c *CachedStore) keyBoard(category string, limit int) string {
	return fmt.Sprintf("leaderboard:%s:%d", category, limit)
}

func (c *CachedStore) Leaderboard(ctx context.Context, category string, limit int) ([]Entry, error) {
	if !ValidCategory(category) {
		return []Entry{}, nil
	}
	key := c.keyBoard(category, limit)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rows []Entry
		if err := json.Unmarshal(raw, &rows); err == nil {
			return rows, nil
		}
		c.log.Warn("leaderboard_cache_corrupt", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("leaderboard_cache_get", zap.String("key", key), zap.Error(err))
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		rows, err := c.Store.Leaderboard(ctx, category, limit)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(rows); err == nil {
			if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				c.log.Warn("leaderboard_cache_set", zap.String("key", key), zap.Error(err))
			}
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Entry), nil
}

// SaveStat drops cached pages of the category on a record, and every page
// when an existing user's name or photo changed.
func (c *CachedStore) SaveStat(ctx context.Context, in StatInput) (bool, error) {
	prev, perr := c.Store.Profile(ctx, in.UserID)
	record, err := c.Store.SaveStat(ctx, in)
	if err != nil {
		return record, err
	}

	renamed := perr != nil || (prev != nil && (prev.Username != in.Username || prev.PhotoURL != in.PhotoURL))
	pattern := ""
	switch {
	case renamed:
		pattern = "leaderboard:*"
	case record:
		pattern = "leaderboard:" + in.Category + ":*"
	default:
		return record, nil
	}
	if err := c.invalidate(ctx, pattern); err != nil {
		c.log.Warn("leaderboard_cache_invalidate", zap.String("pattern", pattern), zap.Error(err))
	}
	return record, nil
}

func (c *CachedStore) invalidate(ctx context.Context, pattern string) error {
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
