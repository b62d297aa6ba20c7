package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 汇总了注册路由所需的全部处理器。
type Handlers struct {
	Entity *EntityHandler
	Search *SearchHandler
	Export *ExportHandler
	Events *EventsHandler
}

// RegisterRoutes 在 /api/v1 下注册所有路由，并在 /metrics 暴露 Prometheus 指标。
func RegisterRoutes(r gin.IRouter, h Handlers) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := r.Group("/api/v1")
	{
		entities := apiV1.Group("/entities")
		{
			entities.POST("", h.Entity.Create)
			entities.GET("", h.Entity.List)
			entities.GET("/tree", h.Entity.Tree)
			entities.GET("/:id", h.Entity.Get)
			entities.PUT("/:id", h.Entity.Update)
			entities.DELETE("/:id", h.Entity.Delete)

			// 层级关系
			entities.GET("/:id/superior", h.Entity.Superior)
			entities.GET("/:id/superiors", h.Entity.Superiors)
			entities.GET("/:id/inferiors", h.Entity.Inferiors)
			entities.GET("/:id/siblings", h.Entity.Siblings)
			entities.GET("/:id/subtree", h.Entity.Subtree)
			entities.POST("/:id/rekey", h.Entity.Rekey)
		}

		if h.Search != nil {
			apiV1.GET("/search", h.Search.Search)
		}
		if h.Export != nil {
			apiV1.POST("/exports", h.Export.Export)
		}
		if h.Events != nil {
			apiV1.GET("/events", h.Events.Handle)
		}
	}
}
