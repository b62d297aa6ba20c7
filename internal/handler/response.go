// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hierarchy-go/internal/service"
	"hierarchy-go/pkg/hierarchy"
	"hierarchy-go/pkg/log"
)

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

func respondFail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"code": status, "message": message, "data": nil})
}

// statusOf 把业务错误映射为 HTTP 状态码。
func statusOf(err error) int {
	switch {
	case errors.Is(err, hierarchy.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, hierarchy.ErrCycle),
		errors.Is(err, hierarchy.ErrDepthExceeded),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidParent):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrHasInferiors):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError 记录日志并按错误类型返回响应。5xx 不把内部错误暴露给调用方。
func respondError(c *gin.Context, op string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error(op+" failed", err)
		respondFail(c, status, "服务器内部错误")
		return
	}
	log.Warnf("%s rejected: %v", op, err)
	respondFail(c, status, err.Error())
}

// queryInt 读取整数查询参数，缺省时返回 def。
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		respondFail(c, http.StatusBadRequest, "无效的参数 "+name)
		return 0, false
	}
	return v, true
}
