package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hierarchy-go/pkg/metrics"
)

// Metrics 记录请求数和耗时。route 使用注册时的路由模板，避免实体 ID 造成标签爆炸。
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
