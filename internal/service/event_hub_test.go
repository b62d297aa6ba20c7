package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hierarchy-go/internal/model"
)

func TestEventHub_FanOut(t *testing.T) {
	hub := NewEventHub(4)
	a, cancelA := hub.Subscribe()
	b, cancelB := hub.Subscribe()
	defer cancelA()
	defer cancelB()
	require.Equal(t, 2, hub.Subscribers())

	hub.Publish(model.NewEntityEvent(model.EntityCreated, &model.Entity{ID: "e1", Bundle: "region"}))

	for _, ch := range []<-chan model.EntityEvent{a, b} {
		ev := <-ch
		assert.Equal(t, model.EntityCreated, ev.Type)
		assert.Equal(t, "e1", ev.EntityID)
	}
}

func TestEventHub_CancelClosesChannel(t *testing.T) {
	hub := NewEventHub(1)
	ch, cancel := hub.Subscribe()

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.Subscribers())

	// 没有订阅者时发布不应阻塞
	hub.Publish(model.EntityEvent{Type: model.EntityDeleted})
}

func TestEventHub_DropsWhenBufferFull(t *testing.T) {
	hub := NewEventHub(1)
	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Publish(model.EntityEvent{Type: model.EntityCreated, EntityID: "first"})
	hub.Publish(model.EntityEvent{Type: model.EntityCreated, EntityID: "second"})

	ev := <-ch
	assert.Equal(t, "first", ev.EntityID)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %s", extra.EntityID)
	default:
	}
}
