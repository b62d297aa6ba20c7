package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"hierarchy-go/internal/model"
	"hierarchy-go/pkg/hierarchy"
	"hierarchy-go/pkg/tasks"
)

// memEntityRepo 是 repository.EntityRepository 的内存实现，读写都复制实体。
type memEntityRepo struct {
	mu       sync.Mutex
	entities map[string]model.Entity
	saves    int
}

func newMemEntityRepo() *memEntityRepo {
	return &memEntityRepo{entities: make(map[string]model.Entity)}
}

func (r *memEntityRepo) put(e *model.Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[e.ID] = *e
}

func (r *memEntityRepo) get(id string) model.Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entities[id]
}

func (r *memEntityRepo) Create(_ context.Context, e *model.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[e.ID]; ok {
		return fmt.Errorf("duplicate id %s", e.ID)
	}
	r.entities[e.ID] = *e
	return nil
}

func (r *memEntityRepo) FindByID(_ context.Context, id string) (*model.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", id, hierarchy.ErrNotFound)
	}
	return &e, nil
}

func (r *memEntityRepo) filter(keep func(model.Entity) bool) []*model.Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Entity, 0)
	for _, e := range r.entities {
		if keep(e) {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortKey != out[j].SortKey {
			return out[i].SortKey < out[j].SortKey
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *memEntityRepo) FindChildren(_ context.Context, parentIDs ...string) ([]*model.Entity, error) {
	want := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		want[id] = true
	}
	return r.filter(func(e model.Entity) bool { return e.ParentID != nil && want[*e.ParentID] }), nil
}

func (r *memEntityRepo) FindRoots(_ context.Context, bundle string) ([]*model.Entity, error) {
	return r.filter(func(e model.Entity) bool { return e.Bundle == bundle && e.ParentID == nil }), nil
}

func (r *memEntityRepo) FindAll(_ context.Context, bundle string) ([]*model.Entity, error) {
	return r.filter(func(e model.Entity) bool { return bundle == "" || e.Bundle == bundle }), nil
}

func (r *memEntityRepo) FindBySortKeyPrefix(_ context.Context, bundle, prefix string) ([]*model.Entity, error) {
	return r.filter(func(e model.Entity) bool {
		return (bundle == "" || e.Bundle == bundle) && strings.HasPrefix(e.SortKey, prefix)
	}), nil
}

func (r *memEntityRepo) CountChildren(ctx context.Context, id string) (int64, error) {
	children, _ := r.FindChildren(ctx, id)
	return int64(len(children)), nil
}

func (r *memEntityRepo) Save(_ context.Context, e *model.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.entities[e.ID] = *e
	return nil
}

func (r *memEntityRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entities, id)
	return nil
}

func (r *memEntityRepo) Load(ctx context.Context, id string) (*model.Entity, error) {
	return r.FindByID(ctx, id)
}

func (r *memEntityRepo) Inferiors(ctx context.Context, superiorIDs ...string) ([]*model.Entity, error) {
	return r.FindChildren(ctx, superiorIDs...)
}

type fakePublisher struct {
	tasks []tasks.RekeyTask
	err   error
}

func (p *fakePublisher) PublishRekey(_ context.Context, task tasks.RekeyTask) error {
	if p.err != nil {
		return p.err
	}
	p.tasks = append(p.tasks, task)
	return nil
}

type fakeIndexer struct {
	docs    map[string]model.EsEntityDocument
	deleted []string
	err     error
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{docs: make(map[string]model.EsEntityDocument)}
}

func (x *fakeIndexer) Index(_ context.Context, doc model.EsEntityDocument) error {
	if x.err != nil {
		return x.err
	}
	x.docs[doc.ID] = doc
	return nil
}

func (x *fakeIndexer) Delete(_ context.Context, id string) error {
	x.deleted = append(x.deleted, id)
	delete(x.docs, id)
	return nil
}

type recordedEvents struct {
	events []model.EntityEvent
}

func (r *recordedEvents) Publish(event model.EntityEvent) {
	r.events = append(r.events, event)
}

func (r *recordedEvents) types() []model.EntityEventType {
	out := make([]model.EntityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeStorage struct {
	objects map[string][]byte
	putErr  error
}

func (s *fakeStorage) Put(_ context.Context, objectName string, data []byte, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[objectName] = data
	return nil
}

func (s *fakeStorage) PresignedURL(_ context.Context, objectName string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://minio.local/%s?expires=%d", objectName, int(expiry.Seconds())), nil
}

type fakeSearcher struct {
	results   []model.SearchResultDTO
	err       error
	lastQuery string
	lastSize  int
}

func (s *fakeSearcher) Search(_ context.Context, query, _ string, size int) ([]model.SearchResultDTO, error) {
	s.lastQuery = query
	s.lastSize = size
	return s.results, s.err
}

var errUnavailable = errors.New("unavailable")
