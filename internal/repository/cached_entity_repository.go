package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"

	"hierarchy-go/internal/model"
	"hierarchy-go/pkg/log"
	"hierarchy-go/pkg/metrics"
)

// cachedEntityRepository 在 EntityRepository 之上用 Redis 缓存按 ID 的读取。
// 上级链的逐级 Load 是最频繁的查询，缓存命中可以省掉大部分数据库往返。
type cachedEntityRepository struct {
	EntityRepository
	rdb    *redis.Client
	ttl    time.Duration
	flight singleflight.Group

	// mu 串行化回填与失效；epoch 每次失效加一，回源期间发生过失效的结果不回填。
	mu    sync.Mutex
	epoch uint64
}

// NewCachedEntityRepository 创建带 Redis 缓存的 EntityRepository。
func NewCachedEntityRepository(inner EntityRepository, rdb *redis.Client, ttl time.Duration) EntityRepository {
	return &cachedEntityRepository{EntityRepository: inner, rdb: rdb, ttl: ttl}
}

func entityCacheKey(id string) string {
	return fmt.Sprintf("entity:%s", id)
}

// FindByID 先查 Redis，未命中时回源数据库并写回缓存。Redis 异常时直接回源。
// 同一 ID 的并发未命中只回源一次，每个调用方拿到各自的副本。
// 共享的回源不随单个调用方的 ctx 取消。
func (r *cachedEntityRepository) FindByID(ctx context.Context, id string) (*model.Entity, error) {
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.flight.Do(id, func() (interface{}, error) {
		return r.load(shared, id)
	})
	if err != nil {
		return nil, err
	}
	entity := *v.(*model.Entity)
	return &entity, nil
}

func (r *cachedEntityRepository) load(ctx context.Context, id string) (*model.Entity, error) {
	key := entityCacheKey(id)
	data, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entity model.Entity
		if jsonErr := json.Unmarshal(data, &entity); jsonErr == nil {
			metrics.EntityCacheTotal.WithLabelValues("hit").Inc()
			return &entity, nil
		}
		_ = r.rdb.Del(ctx, key).Err()
		metrics.EntityCacheTotal.WithLabelValues("error").Inc()
	case err == redis.Nil:
		metrics.EntityCacheTotal.WithLabelValues("miss").Inc()
	default:
		metrics.EntityCacheTotal.WithLabelValues("error").Inc()
		log.Warnf("读取实体缓存失败, id=%s, err=%v", id, err)
	}

	r.mu.Lock()
	start := r.epoch
	r.mu.Unlock()

	entity, err := r.EntityRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.fill(ctx, key, entity, start)
	return entity, nil
}

// fill 回填缓存。从 start 起发生过失效时，读到的行可能已过期，不回填。
func (r *cachedEntityRepository) fill(ctx context.Context, key string, entity *model.Entity, start uint64) {
	data, err := json.Marshal(entity)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.epoch != start {
		metrics.EntityCacheTotal.WithLabelValues("stale").Inc()
		return
	}
	if err := r.rdb.Set(ctx, key, data, r.ttl).Err(); err != nil {
		log.Warnf("写入实体缓存失败, id=%s, err=%v", entity.ID, err)
	}
}

// Load 实现 hierarchy.Store，走缓存。
func (r *cachedEntityRepository) Load(ctx context.Context, id string) (*model.Entity, error) {
	return r.FindByID(ctx, id)
}

// Save 写库成功后使缓存失效。
func (r *cachedEntityRepository) Save(ctx context.Context, entity *model.Entity) error {
	if err := r.EntityRepository.Save(ctx, entity); err != nil {
		return err
	}
	r.evict(ctx, entity.ID)
	return nil
}

// Delete 删除成功后使缓存失效。
func (r *cachedEntityRepository) Delete(ctx context.Context, id string) error {
	if err := r.EntityRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.evict(ctx, id)
	return nil
}

func (r *cachedEntityRepository) evict(ctx context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	r.flight.Forget(id)
	if err := r.rdb.Del(ctx, entityCacheKey(id)).Err(); err != nil {
		log.Warnf("删除实体缓存失败, id=%s, err=%v", id, err)
	}
}
