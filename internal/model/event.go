package model

import "time"

// EntityEventType 表示实体变更事件的类型。
type EntityEventType string

const (
	EntityCreated EntityEventType = "created"
	EntityUpdated EntityEventType = "updated"
	EntityDeleted EntityEventType = "deleted"
	EntityRekeyed EntityEventType = "rekeyed"
)

// EntityEvent 代表一次实体变更，通过 WebSocket 推送给订阅者。
type EntityEvent struct {
	Type      EntityEventType `json:"type"`
	EntityID  string          `json:"entityId"`
	Bundle    string          `json:"bundle"`
	ParentID  *string         `json:"parentId"`
	SortKey   string          `json:"sortKey"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEntityEvent 根据实体当前状态创建事件。
func NewEntityEvent(t EntityEventType, e *Entity) EntityEvent {
	return EntityEvent{
		Type:      t,
		EntityID:  e.ID,
		Bundle:    e.Bundle,
		ParentID:  e.ParentID,
		SortKey:   e.SortKey,
		Timestamp: time.Now(),
	}
}
