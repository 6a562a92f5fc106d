package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/collab-core/pkg/logger"
)

// FollowerCache 书籍关注者 ID 列表的 redis 缓存，加速发布时的收件人展开。
// 缓存仅是读路径加速，任何 redis 故障都降级回数据库
type FollowerCache struct {
	cache *redis.Client
	ttl   time.Duration
}

func NewFollowerCache(client *redis.Client, ttl time.Duration) *FollowerCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &FollowerCache{cache: client, ttl: ttl}
}

func followerKey(bookID string) string {
	return fmt.Sprintf("followers:index:%s", bookID)
}

// Get 命中返回完整关注者列表。空列表不入缓存，统一按未命中处理
func (c *FollowerCache) Get(ctx context.Context, bookID string) ([]string, bool) {
	ids, err := c.cache.LRange(ctx, followerKey(bookID), 0, -1).Result()
	if err != nil || len(ids) == 0 {
		return nil, false
	}
	return ids, true
}

// Put 整表重建：Del + RPush + Expire 经 pipeline 一次往返
func (c *FollowerCache) Put(ctx context.Context, bookID string, ids []string) {
	if len(ids) == 0 {
		return
	}
	key := followerKey(bookID)
	vals := make([]interface{}, len(ids))
	for i, id := range ids {
		vals[i] = id
	}
	pipe := c.cache.Pipeline()
	pipe.Del(ctx, key)
	pipe.RPush(ctx, key, vals...)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("follower cache rebuild failed", zap.String("book", bookID), zap.Error(err))
	}
}

// Invalidate 关注关系变更后删除缓存，下次读取回源重建
func (c *FollowerCache) Invalidate(ctx context.Context, bookID string) {
	if err := c.cache.Del(ctx, followerKey(bookID)).Err(); err != nil {
		logger.Warn("follower cache invalidate failed", zap.String("book", bookID), zap.Error(err))
	}
}
