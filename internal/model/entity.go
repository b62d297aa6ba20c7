// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"fmt"
	"time"
)

// Entity 对应于数据库中的 'entities' 表。
// 它是一个层级实体：可以通过 ParentID 引用同一 Bundle 下的另一个实体作为上级。
type Entity struct {
	// ID 是实体的唯一标识符（UUID），作为主键。
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`
	// Bundle 是实体的子类型，层级关系只在同一 Bundle 内成立。
	Bundle string `gorm:"type:varchar(64);not null;index" json:"bundle"`
	// Label 是实体的显示名称。
	Label string `gorm:"type:varchar(255);not null" json:"label"`
	// Code 是可选的业务编码。
	Code string `gorm:"type:varchar(64)" json:"code"`
	// Weight 用于在同级之间手动调整顺序，越小越靠前。
	Weight int `gorm:"not null;default:0" json:"weight"`
	// ParentID 指向上级实体的 ID。使用指针以接受 NULL 值，表示顶级实体。
	ParentID *string `gorm:"type:varchar(36);index" json:"parentId"`
	// SortKey 是层级排序键，按字符串排序即得到先序遍历顺序。
	// 列使用二进制排序规则，数据库的 ORDER BY / LIKE 与 Go 的字符串比较一致。
	SortKey string `gorm:"type:varchar(768) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin;index" json:"sortKey"`
	// CreatedAt 由 GORM 自动管理，记录创建时间。
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	// UpdatedAt 由 GORM 自动管理，记录最后更新时间。
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// SortKeyMaxLength 是 sort_key 列的宽度（字符数）。utf8mb4 下 768 字符正好是 InnoDB 3072 字节的索引上限。
const SortKeyMaxLength = 768

// TableName 指定了此模型在数据库中对应的表名。
func (Entity) TableName() string {
	return "entities"
}

// NodeID 返回实体 ID。
func (e *Entity) NodeID() string {
	return e.ID
}

// SuperiorID 返回上级实体的 ID，顶级实体返回空字符串。
func (e *Entity) SuperiorID() string {
	if e.ParentID == nil {
		return ""
	}
	return *e.ParentID
}

// SetSuperiorID 设置上级实体，空字符串表示顶级实体。
func (e *Entity) SetSuperiorID(id string) {
	if id == "" {
		e.ParentID = nil
		return
	}
	e.ParentID = &id
}

// GetSortKey 返回当前的排序键。
func (e *Entity) GetSortKey() string {
	return e.SortKey
}

// SetSortKey 设置排序键。
func (e *Entity) SetSortKey(key string) {
	e.SortKey = key
}

// WeightWidth 是 weight 作为基础字段时补零后的宽度。
const WeightWidth = 6

// BaseValue 返回可用作排序键基础字段的值。
func (e *Entity) BaseValue(field string) string {
	switch field {
	case "label":
		return e.Label
	case "code":
		return e.Code
	case "weight":
		return fmt.Sprintf("%0*d", WeightWidth, e.Weight)
	case "bundle":
		return e.Bundle
	case "id":
		return e.ID
	default:
		return ""
	}
}

// EntityNode 表示实体树中的一个节点。
type EntityNode struct {
	ID       string        `json:"id"`
	Bundle   string        `json:"bundle"`
	Label    string        `json:"label"`
	Code     string        `json:"code"`
	Weight   int           `json:"weight"`
	ParentID *string       `json:"parentId"`
	SortKey  string        `json:"sortKey"`
	Children []*EntityNode `json:"children"`
}

// NewEntityNode 用实体创建一个没有子节点的树节点。
func NewEntityNode(e *Entity) *EntityNode {
	return &EntityNode{
		ID:       e.ID,
		Bundle:   e.Bundle,
		Label:    e.Label,
		Code:     e.Code,
		Weight:   e.Weight,
		ParentID: e.ParentID,
		SortKey:  e.SortKey,
		Children: []*EntityNode{},
	}
}
