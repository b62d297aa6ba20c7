package database

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"hierarchy-go/pkg/log"
)

var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接，供实体缓存和 Kafka 重试计数使用。
func InitRedis(addr, password string, db int) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := RDB.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Info("Redis client connected successfully")
}
