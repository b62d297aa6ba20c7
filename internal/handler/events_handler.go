package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"hierarchy-go/internal/model"
	"hierarchy-go/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

const writeWait = 10 * time.Second

// EventSubscriber 提供实体变更事件的订阅，service.EventHub 满足该接口。
type EventSubscriber interface {
	Subscribe() (<-chan model.EntityEvent, func())
}

// EventsHandler 通过 WebSocket 推送实体变更事件。
type EventsHandler struct {
	hub EventSubscriber
}

// NewEventsHandler 创建一个新的 EventsHandler。
func NewEventsHandler(hub EventSubscriber) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Handle 处理一个传入的 WebSocket 连接，可用 ?bundle= 只接收某个 bundle 的事件。
func (h *EventsHandler) Handle(c *gin.Context) {
	bundle := c.Query("bundle")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	events, cancel := h.hub.Subscribe()
	defer cancel()
	log.Infof("事件订阅已建立, bundle: %q, remote: %s", bundle, conn.RemoteAddr())

	// 客户端不发送业务消息，读循环只用于感知连接关闭
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			log.Infof("事件订阅已断开, remote: %s", conn.RemoteAddr())
			return
		case <-c.Request.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if bundle != "" && ev.Bundle != bundle {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Warnf("推送事件失败: %v", err)
				return
			}
		}
	}
}
