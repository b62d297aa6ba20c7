package service

import (
	"sync"

	"hierarchy-go/internal/model"
	"hierarchy-go/pkg/log"
)

// EventHub 在进程内把实体变更事件分发给所有订阅者（WebSocket 连接）。
// 订阅者消费过慢时丢弃事件，不阻塞写操作。
type EventHub struct {
	mu     sync.RWMutex
	subs   map[chan model.EntityEvent]struct{}
	buffer int
}

// NewEventHub 创建一个 EventHub，buffer 是每个订阅者的缓冲大小。
func NewEventHub(buffer int) *EventHub {
	if buffer <= 0 {
		buffer = 16
	}
	return &EventHub{subs: make(map[chan model.EntityEvent]struct{}), buffer: buffer}
}

// Subscribe 注册一个订阅者，返回事件通道和取消函数。取消后通道会被关闭。
func (h *EventHub) Subscribe() (<-chan model.EntityEvent, func()) {
	ch := make(chan model.EntityEvent, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish 向所有订阅者发送事件。
func (h *EventHub) Publish(event model.EntityEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
			log.Debugf("订阅者缓冲已满，丢弃事件: type=%s, entityId=%s", event.Type, event.EntityID)
		}
	}
}

// Subscribers 返回当前订阅者数量。
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
