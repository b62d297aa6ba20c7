package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// AttemptRepository 记录任务的失败次数，用于限制 Kafka 消息的重试。
type AttemptRepository interface {
	Incr(ctx context.Context, taskKey string) (int64, error)
	Reset(ctx context.Context, taskKey string) error
}

type redisAttemptRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewAttemptRepository 创建一个新的 AttemptRepository 实例。
func NewAttemptRepository(redisClient *redis.Client) AttemptRepository {
	return &redisAttemptRepository{redisClient: redisClient, ttl: 24 * time.Hour}
}

func attemptsKey(taskKey string) string {
	return fmt.Sprintf("kafka:attempts:%s", taskKey)
}

// Incr 失败次数加一并返回当前值，计数在 24 小时后过期。
func (r *redisAttemptRepository) Incr(ctx context.Context, taskKey string) (int64, error) {
	key := attemptsKey(taskKey)
	attempts, err := r.redisClient.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to incr attempts: %w", err)
	}
	_ = r.redisClient.Expire(ctx, key, r.ttl).Err()
	return attempts, nil
}

// Reset 清理失败计数。
func (r *redisAttemptRepository) Reset(ctx context.Context, taskKey string) error {
	return r.redisClient.Del(ctx, attemptsKey(taskKey)).Err()
}
