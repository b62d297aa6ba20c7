package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hierarchy-go/internal/model"
	"hierarchy-go/internal/service"
	"hierarchy-go/pkg/log"
)

// EntityHandler 负责处理层级实体相关的 API 请求。
type EntityHandler struct {
	entityService service.EntityService
}

// NewEntityHandler 创建一个新的 EntityHandler 实例。
func NewEntityHandler(entityService service.EntityService) *EntityHandler {
	return &EntityHandler{entityService: entityService}
}

// CreateEntityRequest 定义了创建实体 API 的请求体结构。
type CreateEntityRequest struct {
	Bundle   string `json:"bundle" binding:"required"`
	Label    string `json:"label" binding:"required"`
	Code     string `json:"code"`
	Weight   int    `json:"weight"`
	ParentID string `json:"parentId"`
}

// UpdateEntityRequest 定义了更新实体 API 的请求体结构。parentId 为空表示移动为顶级实体。
type UpdateEntityRequest struct {
	Label    string `json:"label" binding:"required"`
	Code     string `json:"code"`
	Weight   int    `json:"weight"`
	ParentID string `json:"parentId"`
}

// Create 处理创建实体的请求。
func (h *EntityHandler) Create(c *gin.Context) {
	var req CreateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Create: Invalid request payload, error: %v", err)
		respondFail(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	entity, err := h.entityService.Create(c.Request.Context(), service.CreateEntityRequest{
		Bundle:   req.Bundle,
		Label:    req.Label,
		Code:     req.Code,
		Weight:   req.Weight,
		ParentID: req.ParentID,
	})
	if err != nil {
		respondError(c, "Create", err)
		return
	}
	respondOK(c, entity)
}

// List 返回按排序键排列的实体列表。
func (h *EntityHandler) List(c *gin.Context) {
	entities, err := h.entityService.List(c.Request.Context(), c.Query("bundle"))
	if err != nil {
		respondError(c, "List", err)
		return
	}
	respondOK(c, entities)
}

// Tree 返回实体树。
func (h *EntityHandler) Tree(c *gin.Context) {
	tree, err := h.entityService.Tree(c.Request.Context(), c.Query("bundle"))
	if err != nil {
		respondError(c, "Tree", err)
		return
	}
	respondOK(c, tree)
}

// Get 返回单个实体。
func (h *EntityHandler) Get(c *gin.Context) {
	entity, err := h.entityService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Get", err)
		return
	}
	respondOK(c, entity)
}

// Update 处理更新实体的请求。
func (h *EntityHandler) Update(c *gin.Context) {
	var req UpdateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Update: Invalid request payload, error: %v", err)
		respondFail(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	entity, err := h.entityService.Update(c.Request.Context(), c.Param("id"), service.UpdateEntityRequest{
		Label:    req.Label,
		Code:     req.Code,
		Weight:   req.Weight,
		ParentID: req.ParentID,
	})
	if err != nil {
		respondError(c, "Update", err)
		return
	}
	respondOK(c, entity)
}

// Delete 删除实体，cascade=true 时连同下级一起删除。
func (h *EntityHandler) Delete(c *gin.Context) {
	cascade, _ := strconv.ParseBool(c.DefaultQuery("cascade", "false"))
	if err := h.entityService.Delete(c.Request.Context(), c.Param("id"), cascade); err != nil {
		respondError(c, "Delete", err)
		return
	}
	respondOK(c, nil)
}

// Superior 返回直接上级，顶级实体的 data 为 null。
func (h *EntityHandler) Superior(c *gin.Context) {
	sup, err := h.entityService.Superior(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Superior", err)
		return
	}
	if sup == nil {
		respondOK(c, nil)
		return
	}
	respondOK(c, sup)
}

// Superiors 返回上级链，depth 为 0 或缺省时一直到顶级实体。
func (h *EntityHandler) Superiors(c *gin.Context) {
	depth, ok := queryInt(c, "depth", 0)
	if !ok {
		return
	}
	h.respondList(c, "Superiors", func() ([]*model.Entity, error) {
		return h.entityService.Superiors(c.Request.Context(), c.Param("id"), depth)
	})
}

// Inferiors 返回下级集合，depth 为 0 或缺省时返回整棵子树。
func (h *EntityHandler) Inferiors(c *gin.Context) {
	depth, ok := queryInt(c, "depth", 0)
	if !ok {
		return
	}
	h.respondList(c, "Inferiors", func() ([]*model.Entity, error) {
		return h.entityService.Inferiors(c.Request.Context(), c.Param("id"), depth)
	})
}

// Siblings 返回同级实体。
func (h *EntityHandler) Siblings(c *gin.Context) {
	h.respondList(c, "Siblings", func() ([]*model.Entity, error) {
		return h.entityService.Siblings(c.Request.Context(), c.Param("id"))
	})
}

// Subtree 返回实体及其全部下级，按先序排列。
func (h *EntityHandler) Subtree(c *gin.Context) {
	h.respondList(c, "Subtree", func() ([]*model.Entity, error) {
		return h.entityService.Subtree(c.Request.Context(), c.Param("id"))
	})
}

// Rekey 同步重排实体子树的排序键。
func (h *EntityHandler) Rekey(c *gin.Context) {
	id := c.Param("id")
	saved, err := h.entityService.Rekey(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Rekey", err)
		return
	}
	log.Infof("Rekey: entity '%s' subtree rekeyed, saved %d", id, saved)
	respondOK(c, gin.H{"saved": saved})
}

func (h *EntityHandler) respondList(c *gin.Context, op string, load func() ([]*model.Entity, error)) {
	entities, err := load()
	if err != nil {
		respondError(c, op, err)
		return
	}
	respondOK(c, entities)
}
