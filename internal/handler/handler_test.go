package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hierarchy-go/internal/model"
	"hierarchy-go/internal/service"
	"hierarchy-go/pkg/hierarchy"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockEntityService 是 service.EntityService 的手写 mock，记录调用参数并返回预设结果。
type mockEntityService struct {
	entity   *model.Entity
	entities []*model.Entity
	tree     []*model.EntityNode
	saved    int
	err      error

	lastID      string
	lastDepth   int
	lastCascade bool
	lastBundle  string
	lastCreate  service.CreateEntityRequest
	lastUpdate  service.UpdateEntityRequest
}

func (m *mockEntityService) Create(_ context.Context, req service.CreateEntityRequest) (*model.Entity, error) {
	m.lastCreate = req
	return m.entity, m.err
}

func (m *mockEntityService) Get(_ context.Context, id string) (*model.Entity, error) {
	m.lastID = id
	return m.entity, m.err
}

func (m *mockEntityService) List(_ context.Context, bundle string) ([]*model.Entity, error) {
	m.lastBundle = bundle
	return m.entities, m.err
}

func (m *mockEntityService) Tree(_ context.Context, bundle string) ([]*model.EntityNode, error) {
	m.lastBundle = bundle
	return m.tree, m.err
}

func (m *mockEntityService) Update(_ context.Context, id string, req service.UpdateEntityRequest) (*model.Entity, error) {
	m.lastID = id
	m.lastUpdate = req
	return m.entity, m.err
}

func (m *mockEntityService) Delete(_ context.Context, id string, cascade bool) error {
	m.lastID = id
	m.lastCascade = cascade
	return m.err
}

func (m *mockEntityService) Superior(_ context.Context, id string) (*model.Entity, error) {
	m.lastID = id
	return m.entity, m.err
}

func (m *mockEntityService) Superiors(_ context.Context, id string, depth int) ([]*model.Entity, error) {
	m.lastID, m.lastDepth = id, depth
	return m.entities, m.err
}

func (m *mockEntityService) Inferiors(_ context.Context, id string, depth int) ([]*model.Entity, error) {
	m.lastID, m.lastDepth = id, depth
	return m.entities, m.err
}

func (m *mockEntityService) Siblings(_ context.Context, id string) ([]*model.Entity, error) {
	m.lastID = id
	return m.entities, m.err
}

func (m *mockEntityService) Subtree(_ context.Context, id string) ([]*model.Entity, error) {
	m.lastID = id
	return m.entities, m.err
}

func (m *mockEntityService) Rekey(_ context.Context, id string) (int, error) {
	m.lastID = id
	return m.saved, m.err
}

type mockSearchService struct {
	results []model.SearchResultDTO
	err     error
	size    int
}

func (m *mockSearchService) Search(_ context.Context, _, _ string, size int) ([]model.SearchResultDTO, error) {
	m.size = size
	return m.results, m.err
}

type mockExportService struct {
	result *service.ExportResult
	err    error
	bundle string
}

func (m *mockExportService) Export(_ context.Context, bundle string) (*service.ExportResult, error) {
	m.bundle = bundle
	return m.result, m.err
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(entities service.EntityService, search service.SearchService, export service.ExportService) *gin.Engine {
	r := gin.New()
	RegisterRoutes(r, Handlers{
		Entity: NewEntityHandler(entities),
		Search: NewSearchHandler(search),
		Export: NewExportHandler(export),
	})
	return r
}

func doRequest(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func strPtr(s string) *string { return &s }

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("entity x: %w", hierarchy.ErrNotFound), http.StatusNotFound},
		{hierarchy.ErrCycle, http.StatusBadRequest},
		{hierarchy.ErrDepthExceeded, http.StatusBadRequest},
		{fmt.Errorf("%w: label", service.ErrInvalidInput), http.StatusBadRequest},
		{service.ErrInvalidParent, http.StatusBadRequest},
		{service.ErrHasInferiors, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}

func TestEntityHandler_Create(t *testing.T) {
	svc := &mockEntityService{entity: &model.Entity{ID: "e1", Bundle: "region", Label: "France", SortKey: "FRANCE!"}}
	r := newTestRouter(svc, nil, nil)

	w, env := doRequest(t, r, http.MethodPost, "/api/v1/entities", gin.H{
		"bundle": "region", "label": "France", "weight": 2, "parentId": "eu",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, env.Code)
	assert.Equal(t, service.CreateEntityRequest{Bundle: "region", Label: "France", Weight: 2, ParentID: "eu"}, svc.lastCreate)

	var got model.Entity
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "FRANCE!", got.SortKey)
}

func TestEntityHandler_CreateInvalidPayload(t *testing.T) {
	r := newTestRouter(&mockEntityService{}, nil, nil)

	w, env := doRequest(t, r, http.MethodPost, "/api/v1/entities", gin.H{"bundle": "region"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, http.StatusBadRequest, env.Code)
}

func TestEntityHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		err    error
		want   int
	}{
		{"get missing", http.MethodGet, "/api/v1/entities/x", nil, hierarchy.ErrNotFound, http.StatusNotFound},
		{"reparent cycle", http.MethodPut, "/api/v1/entities/x", gin.H{"label": "x", "parentId": "y"}, hierarchy.ErrCycle, http.StatusBadRequest},
		{"delete with inferiors", http.MethodDelete, "/api/v1/entities/x", nil, service.ErrHasInferiors, http.StatusConflict},
		{"rekey failure", http.MethodPost, "/api/v1/entities/x/rekey", nil, errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&mockEntityService{err: tt.err}, nil, nil)
			w, env := doRequest(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.want, env.Code)
			assert.Equal(t, "null", string(env.Data))
		})
	}
}

func TestEntityHandler_InternalErrorIsNotLeaked(t *testing.T) {
	r := newTestRouter(&mockEntityService{err: errors.New("dial tcp 10.0.0.1:3306")}, nil, nil)
	_, env := doRequest(t, r, http.MethodGet, "/api/v1/entities", nil)
	assert.NotContains(t, env.Message, "10.0.0.1")
}

func TestEntityHandler_Update(t *testing.T) {
	svc := &mockEntityService{entity: &model.Entity{ID: "fr"}}
	r := newTestRouter(svc, nil, nil)

	w, _ := doRequest(t, r, http.MethodPut, "/api/v1/entities/fr", gin.H{"label": "Gaul", "code": "FR"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fr", svc.lastID)
	assert.Equal(t, service.UpdateEntityRequest{Label: "Gaul", Code: "FR"}, svc.lastUpdate)
}

func TestEntityHandler_Delete(t *testing.T) {
	svc := &mockEntityService{}
	r := newTestRouter(svc, nil, nil)

	w, _ := doRequest(t, r, http.MethodDelete, "/api/v1/entities/eu?cascade=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "eu", svc.lastID)
	assert.True(t, svc.lastCascade)
}

func TestEntityHandler_Traversal(t *testing.T) {
	list := []*model.Entity{{ID: "fr", ParentID: strPtr("eu")}, {ID: "de", ParentID: strPtr("eu")}}

	t.Run("superiors with depth", func(t *testing.T) {
		svc := &mockEntityService{entities: list}
		w, env := doRequest(t, newTestRouter(svc, nil, nil), http.MethodGet, "/api/v1/entities/paris/superiors?depth=2", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "paris", svc.lastID)
		assert.Equal(t, 2, svc.lastDepth)

		var got []model.Entity
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Len(t, got, 2)
	})

	t.Run("inferiors default depth", func(t *testing.T) {
		svc := &mockEntityService{entities: list}
		w, _ := doRequest(t, newTestRouter(svc, nil, nil), http.MethodGet, "/api/v1/entities/eu/inferiors", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0, svc.lastDepth)
	})

	t.Run("invalid depth", func(t *testing.T) {
		svc := &mockEntityService{}
		w, _ := doRequest(t, newTestRouter(svc, nil, nil), http.MethodGet, "/api/v1/entities/eu/inferiors?depth=abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, svc.lastID)
	})

	t.Run("siblings", func(t *testing.T) {
		svc := &mockEntityService{entities: list[1:]}
		w, _ := doRequest(t, newTestRouter(svc, nil, nil), http.MethodGet, "/api/v1/entities/fr/siblings", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "fr", svc.lastID)
	})

	t.Run("subtree", func(t *testing.T) {
		svc := &mockEntityService{entities: list}
		w, _ := doRequest(t, newTestRouter(svc, nil, nil), http.MethodGet, "/api/v1/entities/eu/subtree", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "eu", svc.lastID)
	})

	t.Run("superior of root", func(t *testing.T) {
		svc := &mockEntityService{}
		w, env := doRequest(t, newTestRouter(svc, nil, nil), http.MethodGet, "/api/v1/entities/eu/superior", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "null", string(env.Data))
	})
}

func TestEntityHandler_TreeAndRekey(t *testing.T) {
	svc := &mockEntityService{
		tree:  []*model.EntityNode{{ID: "eu", Children: []*model.EntityNode{{ID: "fr", Children: []*model.EntityNode{}}}}},
		saved: 4,
	}
	r := newTestRouter(svc, nil, nil)

	w, env := doRequest(t, r, http.MethodGet, "/api/v1/entities/tree?bundle=region", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "region", svc.lastBundle)
	var tree []model.EntityNode
	require.NoError(t, json.Unmarshal(env.Data, &tree))
	require.Len(t, tree, 1)
	assert.Equal(t, "fr", tree[0].Children[0].ID)

	w, env = doRequest(t, r, http.MethodPost, "/api/v1/entities/eu/rekey", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"saved":4}`, string(env.Data))
}

func TestSearchHandler(t *testing.T) {
	search := &mockSearchService{results: []model.SearchResultDTO{{ID: "fr", Label: "France"}}}
	r := newTestRouter(&mockEntityService{}, search, nil)

	w, env := doRequest(t, r, http.MethodGet, "/api/v1/search?q=fra&bundle=region&size=5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, search.size)
	var got []model.SearchResultDTO
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "France", got[0].Label)

	search.err = fmt.Errorf("%w: query is required", service.ErrInvalidInput)
	w, _ = doRequest(t, r, http.MethodGet, "/api/v1/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandler(t *testing.T) {
	export := &mockExportService{result: &service.ExportResult{ObjectName: "exports/region/x.json", DownloadURL: "http://minio/x", Count: 3}}
	r := newTestRouter(&mockEntityService{}, nil, export)

	w, env := doRequest(t, r, http.MethodPost, "/api/v1/exports?bundle=region", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "region", export.bundle)
	var got service.ExportResult
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, 3, got.Count)
}
