package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
	"github.com/jupiterclapton/socialgraph/internal/core/ports"
)

const (
	fieldFollowing = "following"
	fieldFollowers = "followers"
)

// RedisStatsCache garde les compteurs d'un user dans un hash "follow:stats:{user}".
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration // borne la dérive si une invalidation est perdue
}

var _ ports.StatsCache = (*RedisStatsCache)(nil)

func NewRedisStatsCache(client *redis.Client, ttl time.Duration) *RedisStatsCache {
	return &RedisStatsCache{client: client, ttl: ttl}
}

func statsKey(userID string) string {
	return fmt.Sprintf("follow:stats:%s", userID)
}

func (c *RedisStatsCache) Get(ctx context.Context, userID string) (*domain.FollowStats, bool, error) {
	values, err := c.client.HGetAll(ctx, statsKey(userID)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(values) == 0 {
		return nil, false, nil
	}

	following, err1 := strconv.Atoi(values[fieldFollowing])
	followers, err2 := strconv.Atoi(values[fieldFollowers])
	if err1 != nil || err2 != nil {
		// Hash corrompu ou incomplet : on le traite comme un miss
		return nil, false, nil
	}
	return &domain.FollowStats{FollowingCount: following, FollowersCount: followers}, true, nil
}

func (c *RedisStatsCache) Set(ctx context.Context, userID string, stats domain.FollowStats) error {
	key := statsKey(userID)

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, fieldFollowing, stats.FollowingCount, fieldFollowers, stats.FollowersCount)
	pipe.Expire(ctx, key, c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisStatsCache) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = statsKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}
