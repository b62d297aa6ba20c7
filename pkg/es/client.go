// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"hierarchy-go/internal/config"
	"hierarchy-go/internal/model"
	"hierarchy-go/pkg/log"
)

var ESClient *elasticsearch.Client

// entityMapping 是实体索引的映射。sort_key 使用 keyword 以便按字符串排序和前缀查询。
const entityMapping = `{
	"mappings": {
		"properties": {
			"id":        { "type": "keyword" },
			"bundle":    { "type": "keyword" },
			"label":     { "type": "text", "fields": { "raw": { "type": "keyword" } } },
			"code":      { "type": "keyword" },
			"parent_id": { "type": "keyword" },
			"sort_key":  { "type": "keyword" },
			"depth":     { "type": "integer" }
		}
	}
}`

// InitES 初始化 Elasticsearch 客户端
func InitES(esCfg config.ElasticsearchConfig) error {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(esCfg.IndexName)
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func createIndexIfNotExists(indexName string) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(entityMapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// EntityIndex 是实体在 Elasticsearch 中的索引。
type EntityIndex struct {
	client    *elasticsearch.Client
	indexName string
}

// NewEntityIndex 创建一个 EntityIndex。
func NewEntityIndex(client *elasticsearch.Client, indexName string) *EntityIndex {
	return &EntityIndex{client: client, indexName: indexName}
}

// Index 写入或覆盖单个实体文档。
func (x *EntityIndex) Index(ctx context.Context, doc model.EsEntityDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      x.indexName,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("索引实体到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index entity")
	}
	return nil
}

// Delete 删除实体文档，文档不存在不视为错误。
func (x *EntityIndex) Delete(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{Index: x.indexName, DocumentID: id, Refresh: "true"}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to delete entity %s: %s", id, res.String())
	}
	return nil
}

// Search 按 label/code 搜索实体，结果按排序键排列。
func (x *EntityIndex) Search(ctx context.Context, query, bundle string, size int) ([]model.SearchResultDTO, error) {
	body, err := json.Marshal(buildSearchQuery(query, bundle, size))
	if err != nil {
		return nil, err
	}
	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.indexName),
		x.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s", res.String())
	}
	return decodeSearchResponse(res.Body)
}

func buildSearchQuery(query, bundle string, size int) map[string]interface{} {
	if size <= 0 {
		size = 20
	}
	boolQuery := map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  query,
					"fields": []string{"label^2", "code"},
				},
			},
		},
	}
	if bundle != "" {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"bundle": bundle}},
		}
	}
	return map[string]interface{}{
		"size":  size,
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []interface{}{
			map[string]interface{}{"sort_key": "asc"},
			map[string]interface{}{"id": "asc"},
		},
		"track_scores": true,
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64                `json:"_score"`
			Source model.EsEntityDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func decodeSearchResponse(r io.Reader) ([]model.SearchResultDTO, error) {
	var resp searchResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	results := make([]model.SearchResultDTO, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		results = append(results, model.SearchResultDTO{
			ID:       hit.Source.ID,
			Bundle:   hit.Source.Bundle,
			Label:    hit.Source.Label,
			Code:     hit.Source.Code,
			ParentID: hit.Source.ParentID,
			SortKey:  hit.Source.SortKey,
			Depth:    hit.Source.Depth,
			Score:    hit.Score,
		})
	}
	return results, nil
}
