package biz

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/sentinel-advisor/internal/pkg/rag/textutil"
	"github.com/kart-io/sentinel-advisor/pkg/utils/errors"
	"github.com/kart-io/sentinel-advisor/pkg/utils/json"
)

// AnswerCacheConfig 建议缓存配置。
type AnswerCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// AnswerCache 投资建议缓存。键包含索引代数，重新导入后旧答案自然失效。
type AnswerCache struct {
	redis  goredis.Cmdable
	config *AnswerCacheConfig
}

// NewAnswerCache 创建建议缓存实例。redis 为 nil 时缓存不生效。
func NewAnswerCache(redis goredis.Cmdable, config *AnswerCacheConfig) *AnswerCache {
	if config == nil {
		config = &AnswerCacheConfig{
			Enabled:   false,
			TTL:       10 * time.Minute,
			KeyPrefix: "advisor:answer:",
		}
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "advisor:answer:"
	}
	return &AnswerCache{redis: redis, config: config}
}

func (c *AnswerCache) enabled() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

// generateCacheKey 基于索引代数与查询文本生成缓存键（SHA256）。
func (c *AnswerCache) generateCacheKey(generation uint64, query string) string {
	return c.config.KeyPrefix + strconv.FormatUint(generation, 10) + ":" + textutil.HashString(query)
}

// Get 从缓存获取建议，未命中时返回 nil, nil。
func (c *AnswerCache) Get(ctx context.Context, generation uint64, query string) (*RecommendResult, error) {
	if !c.enabled() {
		return nil, nil
	}

	key := c.generateCacheKey(generation, query)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if stderrors.Is(err, goredis.Nil) {
			logger.Debugw("answer cache miss", "key", key)
			return nil, nil
		}
		logger.Warnw("failed to get from answer cache", "error", err.Error(), "key", key)
		return nil, err
	}

	var result RecommendResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("failed to unmarshal cached answer", "error", err.Error(), "key", key)
		// 删除损坏的缓存
		_ = c.redis.Del(ctx, key).Err()
		return nil, err
	}

	logger.Debugw("answer cache hit", "key", key, "answer_length", len(result.Recommendation))
	return &result, nil
}

// Set 写入缓存。
func (c *AnswerCache) Set(ctx context.Context, generation uint64, query string, result *RecommendResult) error {
	if !c.enabled() || result == nil {
		return nil
	}

	key := c.generateCacheKey(generation, query)
	data, err := json.Marshal(result)
	if err != nil {
		logger.Warnw("failed to marshal answer for caching", "error", err.Error())
		return err
	}
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set answer cache", "error", err.Error(), "key", key)
		return err
	}
	return nil
}

// Clear 清除全部建议缓存，返回删除的键数量。
// 扫描失败时返回 ErrCacheFailed。
func (c *AnswerCache) Clear(ctx context.Context) (int, error) {
	if !c.enabled() {
		return 0, nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, errors.ErrCacheFailed.WithCause(err)
	}

	logger.Infow("cleared answer cache", "deleted_count", deleted)
	return deleted, nil
}

// Stats 获取缓存统计信息。
func (c *AnswerCache) Stats(ctx context.Context) (map[string]any, error) {
	if !c.enabled() {
		return map[string]any{"enabled": false}, nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()
	keyCount := 0
	for iter.Next(ctx) {
		keyCount++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return map[string]any{
		"enabled":    true,
		"key_count":  keyCount,
		"ttl":        c.config.TTL.String(),
		"key_prefix": c.config.KeyPrefix,
	}, nil
}
