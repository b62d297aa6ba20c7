package service

import (
	"context"
	"fmt"
	"strings"

	"hierarchy-go/internal/model"
)

// EntitySearcher 执行实体搜索。
type EntitySearcher interface {
	Search(ctx context.Context, query, bundle string, size int) ([]model.SearchResultDTO, error)
}

// SearchService 定义了搜索服务的接口。
type SearchService interface {
	Search(ctx context.Context, query, bundle string, size int) ([]model.SearchResultDTO, error)
}

type searchService struct {
	searcher EntitySearcher
}

// NewSearchService 创建一个新的搜索服务实例。
func NewSearchService(searcher EntitySearcher) SearchService {
	return &searchService{searcher: searcher}
}

// MaxSearchSize 是单次搜索返回结果数的上限。
const MaxSearchSize = 100

// Search 按 label/code 搜索实体，结果按排序键排列。
func (s *searchService) Search(ctx context.Context, query, bundle string, size int) ([]model.SearchResultDTO, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if size <= 0 || size > MaxSearchSize {
		size = 20
	}
	results, err := s.searcher.Search(ctx, query, bundle, size)
	if err != nil {
		return nil, fmt.Errorf("search entities: %w", err)
	}
	return results, nil
}
