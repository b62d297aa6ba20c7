// Package repository 包含了所有与数据库交互的逻辑。
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"hierarchy-go/internal/model"
	"hierarchy-go/pkg/hierarchy"
)

// EntityRepository 接口定义了层级实体的数据操作方法。
// 它同时实现 hierarchy.SortableStore，供遍历和排序键计算使用。
type EntityRepository interface {
	hierarchy.SortableStore[*model.Entity]

	Create(ctx context.Context, entity *model.Entity) error
	FindByID(ctx context.Context, id string) (*model.Entity, error)
	FindChildren(ctx context.Context, parentIDs ...string) ([]*model.Entity, error)
	FindRoots(ctx context.Context, bundle string) ([]*model.Entity, error)
	FindAll(ctx context.Context, bundle string) ([]*model.Entity, error)
	FindBySortKeyPrefix(ctx context.Context, bundle, prefix string) ([]*model.Entity, error)
	CountChildren(ctx context.Context, id string) (int64, error)
	Delete(ctx context.Context, id string) error
}

type entityRepository struct {
	db *gorm.DB
}

// NewEntityRepository 创建一个新的 EntityRepository 实例。
func NewEntityRepository(db *gorm.DB) EntityRepository {
	return &entityRepository{db: db}
}

// ordered 统一的排序：先按排序键，键相同（截断冲突）时按 ID。
func ordered(db *gorm.DB) *gorm.DB {
	return db.Order("sort_key ASC").Order("id ASC")
}

// Create 在数据库中插入一个新的实体记录。
func (r *entityRepository) Create(ctx context.Context, entity *model.Entity) error {
	return r.db.WithContext(ctx).Create(entity).Error
}

// FindByID 根据 ID 查找实体，不存在时返回包装了 hierarchy.ErrNotFound 的错误。
func (r *entityRepository) FindByID(ctx context.Context, id string) (*model.Entity, error) {
	var entity model.Entity
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("entity %s: %w", id, hierarchy.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// FindChildren 返回上级 ID 属于 parentIDs 的全部直接下级，一次查询。
func (r *entityRepository) FindChildren(ctx context.Context, parentIDs ...string) ([]*model.Entity, error) {
	entities := make([]*model.Entity, 0)
	if len(parentIDs) == 0 {
		return entities, nil
	}
	err := ordered(r.db.WithContext(ctx).Where("parent_id IN ?", parentIDs)).Find(&entities).Error
	return entities, err
}

// FindRoots 返回指定 bundle 下的所有顶级实体。
func (r *entityRepository) FindRoots(ctx context.Context, bundle string) ([]*model.Entity, error) {
	entities := make([]*model.Entity, 0)
	err := ordered(r.db.WithContext(ctx).Where("bundle = ? AND parent_id IS NULL", bundle)).Find(&entities).Error
	return entities, err
}

// FindAll 按排序键返回实体列表，bundle 为空时返回全部。
func (r *entityRepository) FindAll(ctx context.Context, bundle string) ([]*model.Entity, error) {
	entities := make([]*model.Entity, 0)
	db := r.db.WithContext(ctx)
	if bundle != "" {
		db = db.Where("bundle = ?", bundle)
	}
	err := ordered(db).Find(&entities).Error
	return entities, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FindBySortKeyPrefix 返回排序键以 prefix 开头的实体，可以一次取出整棵子树。
func (r *entityRepository) FindBySortKeyPrefix(ctx context.Context, bundle, prefix string) ([]*model.Entity, error) {
	entities := make([]*model.Entity, 0)
	db := r.db.WithContext(ctx).Where("sort_key LIKE ?", likeEscaper.Replace(prefix)+"%")
	if bundle != "" {
		db = db.Where("bundle = ?", bundle)
	}
	err := ordered(db).Find(&entities).Error
	return entities, err
}

// CountChildren 统计直接下级的数量。
func (r *entityRepository) CountChildren(ctx context.Context, id string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Entity{}).Where("parent_id = ?", id).Count(&total).Error
	return total, err
}

// Save 更新数据库中一个已存在的实体记录。
func (r *entityRepository) Save(ctx context.Context, entity *model.Entity) error {
	return r.db.WithContext(ctx).Save(entity).Error
}

// Delete 根据 ID 删除一个实体记录。
func (r *entityRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Entity{}, "id = ?", id).Error
}

// Load 实现 hierarchy.Store。
func (r *entityRepository) Load(ctx context.Context, id string) (*model.Entity, error) {
	return r.FindByID(ctx, id)
}

// Inferiors 实现 hierarchy.Store。
func (r *entityRepository) Inferiors(ctx context.Context, superiorIDs ...string) ([]*model.Entity, error) {
	return r.FindChildren(ctx, superiorIDs...)
}
