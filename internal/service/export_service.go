package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hierarchy-go/internal/model"
	"hierarchy-go/pkg/log"
)

// ObjectStorage 保存导出文件并生成下载链接。
type ObjectStorage interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// TreeSnapshot 是导出文件的内容。
type TreeSnapshot struct {
	Bundle     string              `json:"bundle"`
	ExportedAt model.LocalTime     `json:"exportedAt"`
	Count      int                 `json:"count"`
	Tree       []*model.EntityNode `json:"tree"`
}

// ExportResult 是一次导出的结果。
type ExportResult struct {
	ObjectName  string `json:"objectName"`
	DownloadURL string `json:"downloadUrl"`
	Count       int    `json:"count"`
}

// ExportService 把实体树导出到对象存储。
type ExportService interface {
	Export(ctx context.Context, bundle string) (*ExportResult, error)
}

type exportService struct {
	entities EntityService
	storage  ObjectStorage
	expiry   time.Duration
	now      func() time.Time
}

// NewExportService 创建一个新的 ExportService 实例。
func NewExportService(entities EntityService, storage ObjectStorage, expiry time.Duration) ExportService {
	return &exportService{entities: entities, storage: storage, expiry: expiry, now: time.Now}
}

// Export 序列化指定 bundle（为空时为全部）的实体树，上传后返回预签名下载链接。
func (s *exportService) Export(ctx context.Context, bundle string) (*ExportResult, error) {
	tree, err := s.entities.Tree(ctx, bundle)
	if err != nil {
		return nil, err
	}
	now := s.now()
	snapshot := TreeSnapshot{
		Bundle:     bundle,
		ExportedAt: model.LocalTime(now),
		Count:      countNodes(tree),
		Tree:       tree,
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	scope := bundle
	if scope == "" {
		scope = "all"
	}
	objectName := fmt.Sprintf("exports/%s/%s-%s.json", scope, now.Format("20060102T150405"), uuid.NewString()[:8])
	if err := s.storage.Put(ctx, objectName, data, "application/json"); err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}
	url, err := s.storage.PresignedURL(ctx, objectName, s.expiry)
	if err != nil {
		return nil, fmt.Errorf("presign snapshot: %w", err)
	}
	log.Infof("实体树已导出: object=%s, count=%d", objectName, snapshot.Count)
	return &ExportResult{ObjectName: objectName, DownloadURL: url, Count: snapshot.Count}, nil
}

func countNodes(nodes []*model.EntityNode) int {
	total := 0
	for _, n := range nodes {
		total += 1 + countNodes(n.Children)
	}
	return total
}
