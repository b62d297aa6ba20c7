// Package metrics 定义了服务的 Prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal 按方法、路由和状态码统计请求数。
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hierarchy_http_requests_total",
		Help: "Total HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hierarchy_http_request_duration_seconds",
		Help:    "HTTP request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// EntityCacheTotal 统计实体缓存的读取结果。
	// Labels: "hit", "miss", "error", "stale"
	EntityCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hierarchy_entity_cache_total",
		Help: "Entity cache lookups by result",
	}, []string{"result"})

	// RekeyTasksTotal 统计后台重排任务的处理结果。
	// Labels: "success", "skipped", "error"
	RekeyTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hierarchy_rekey_tasks_total",
		Help: "Rekey tasks processed by result",
	}, []string{"result"})

	RekeySavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hierarchy_rekey_saved_total",
		Help: "Entities whose sort key was rewritten by a rekey",
	})

	// SortKeyCollisionsTotal 统计同级之间的排序键冲突。
	SortKeyCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hierarchy_sort_key_collisions_total",
		Help: "Sibling sort key collisions detected on write",
	})
)
