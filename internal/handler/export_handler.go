package handler

import (
	"github.com/gin-gonic/gin"

	"hierarchy-go/internal/service"
)

// ExportHandler 负责把实体树导出到对象存储。
type ExportHandler struct {
	exportService service.ExportService
}

// NewExportHandler 创建一个新的 ExportHandler 实例。
func NewExportHandler(exportService service.ExportService) *ExportHandler {
	return &ExportHandler{exportService: exportService}
}

// Export 导出指定 bundle 的实体树并返回下载链接。
func (h *ExportHandler) Export(c *gin.Context) {
	result, err := h.exportService.Export(c.Request.Context(), c.Query("bundle"))
	if err != nil {
		respondError(c, "Export", err)
		return
	}
	respondOK(c, result)
}
