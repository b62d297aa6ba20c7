package handler

import (
	"github.com/gin-gonic/gin"

	"hierarchy-go/internal/service"
	"hierarchy-go/pkg/log"
)

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// Search 按 label/code 搜索实体。
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	bundle := c.Query("bundle")
	size, ok := queryInt(c, "size", 20)
	if !ok {
		return
	}
	log.Infof("[SearchHandler] 收到搜索请求, q: %s, bundle: %s, size: %d", query, bundle, size)

	results, err := h.searchService.Search(c.Request.Context(), query, bundle, size)
	if err != nil {
		respondError(c, "Search", err)
		return
	}
	log.Infof("[SearchHandler] 搜索成功, q: '%s', 返回 %d 条结果", query, len(results))
	respondOK(c, results)
}
