// Package model 定义了与数据库表对应的 Go 结构体。
package model

// SearchResultDTO 定义了返回给前端的搜索结果结构。
type SearchResultDTO struct {
	ID       string  `json:"id"`
	Bundle   string  `json:"bundle"`
	Label    string  `json:"label"`
	Code     string  `json:"code"`
	ParentID string  `json:"parentId"`
	SortKey  string  `json:"sortKey"`
	Depth    int     `json:"depth"`
	Score    float64 `json:"score"`
}

// EsEntityDocument 定义了存储在 Elasticsearch 中的实体文档结构。
type EsEntityDocument struct {
	ID       string `json:"id"`
	Bundle   string `json:"bundle"`
	Label    string `json:"label"`
	Code     string `json:"code"`
	ParentID string `json:"parent_id"`
	SortKey  string `json:"sort_key"`
	// Depth 是实体在层级中的深度，顶级实体为 0。
	Depth int `json:"depth"`
}

// NewEsEntityDocument 把实体转换成索引文档。
func NewEsEntityDocument(e *Entity, depth int) EsEntityDocument {
	return EsEntityDocument{
		ID:       e.ID,
		Bundle:   e.Bundle,
		Label:    e.Label,
		Code:     e.Code,
		ParentID: e.SuperiorID(),
		SortKey:  e.SortKey,
		Depth:    depth,
	}
}
