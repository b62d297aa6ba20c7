// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"hierarchy-go/internal/model"
	"hierarchy-go/internal/repository"
	"hierarchy-go/pkg/hierarchy"
	"hierarchy-go/pkg/log"
	"hierarchy-go/pkg/metrics"
	"hierarchy-go/pkg/tasks"
)

var (
	// ErrInvalidInput 表示请求参数不合法。
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidParent 表示指定的上级不存在或不属于同一个 bundle。
	ErrInvalidParent = errors.New("invalid parent")
	// ErrHasInferiors 表示实体仍有下级，不能直接删除。
	ErrHasInferiors = errors.New("entity has inferiors")
)

// CreateEntityRequest 是创建实体的参数。
type CreateEntityRequest struct {
	Bundle   string
	Label    string
	Code     string
	Weight   int
	ParentID string
}

// UpdateEntityRequest 是更新实体的参数，ParentID 为空表示移动为顶级实体。
type UpdateEntityRequest struct {
	Label    string
	Code     string
	Weight   int
	ParentID string
}

// TaskPublisher 把子树的索引刷新交给后台处理。
type TaskPublisher interface {
	PublishRekey(ctx context.Context, task tasks.RekeyTask) error
}

// EntityIndexer 维护实体的搜索索引。
type EntityIndexer interface {
	Index(ctx context.Context, doc model.EsEntityDocument) error
	Delete(ctx context.Context, id string) error
}

// EventPublisher 广播实体变更事件。
type EventPublisher interface {
	Publish(event model.EntityEvent)
}

// EntityService 接口定义了层级实体相关的业务操作。
type EntityService interface {
	Create(ctx context.Context, req CreateEntityRequest) (*model.Entity, error)
	Get(ctx context.Context, id string) (*model.Entity, error)
	List(ctx context.Context, bundle string) ([]*model.Entity, error)
	Tree(ctx context.Context, bundle string) ([]*model.EntityNode, error)
	Update(ctx context.Context, id string, req UpdateEntityRequest) (*model.Entity, error)
	Delete(ctx context.Context, id string, cascade bool) error

	Superior(ctx context.Context, id string) (*model.Entity, error)
	Superiors(ctx context.Context, id string, depth int) ([]*model.Entity, error)
	Inferiors(ctx context.Context, id string, depth int) ([]*model.Entity, error)
	Siblings(ctx context.Context, id string) ([]*model.Entity, error)
	Subtree(ctx context.Context, id string) ([]*model.Entity, error)
	Rekey(ctx context.Context, id string) (int, error)
}

type entityService struct {
	repo      repository.EntityRepository
	walker    *hierarchy.Walker[*model.Entity]
	keyer     *hierarchy.Keyer[*model.Entity]
	publisher TaskPublisher
	indexer   EntityIndexer
	events    EventPublisher
}

// NewEntityService 创建一个新的 EntityService 实例。
func NewEntityService(
	repo repository.EntityRepository,
	keyCfg hierarchy.KeyConfig,
	maxDepth int,
	publisher TaskPublisher,
	indexer EntityIndexer,
	events EventPublisher,
) (EntityService, error) {
	keyer, err := hierarchy.NewKeyer[*model.Entity](repo, keyCfg, maxDepth)
	if err != nil {
		return nil, err
	}
	return &entityService{
		repo:      repo,
		walker:    hierarchy.NewWalker[*model.Entity](repo, maxDepth),
		keyer:     keyer,
		publisher: publisher,
		indexer:   indexer,
		events:    events,
	}, nil
}

// Create 创建实体并计算其排序键。上级尚无排序键时会先补齐上级。
func (s *entityService) Create(ctx context.Context, req CreateEntityRequest) (*model.Entity, error) {
	req.Bundle = strings.TrimSpace(req.Bundle)
	req.Label = strings.TrimSpace(req.Label)
	if req.Bundle == "" || req.Label == "" {
		return nil, fmt.Errorf("%w: bundle and label are required", ErrInvalidInput)
	}
	if req.Weight < 0 {
		return nil, fmt.Errorf("%w: weight must not be negative", ErrInvalidInput)
	}

	entity := &model.Entity{
		ID:     uuid.NewString(),
		Bundle: req.Bundle,
		Label:  req.Label,
		Code:   req.Code,
		Weight: req.Weight,
	}
	if req.ParentID != "" {
		if err := s.checkParent(ctx, entity.Bundle, req.ParentID); err != nil {
			return nil, err
		}
		entity.SetSuperiorID(req.ParentID)
	}

	if _, err := s.keyer.Apply(ctx, entity); err != nil {
		return nil, fmt.Errorf("compute sort key: %w", err)
	}
	if err := s.repo.Create(ctx, entity); err != nil {
		return nil, err
	}
	s.warnOnCollision(ctx, entity)
	s.index(ctx, entity)
	s.events.Publish(model.NewEntityEvent(model.EntityCreated, entity))
	log.Infow("实体已创建", "entityId", entity.ID, "bundle", entity.Bundle, "sortKey", entity.SortKey)
	return entity, nil
}

// checkParent 确认上级存在且与实体属于同一个 bundle。
func (s *entityService) checkParent(ctx context.Context, bundle, parentID string) error {
	parent, err := s.repo.FindByID(ctx, parentID)
	if errors.Is(err, hierarchy.ErrNotFound) {
		return fmt.Errorf("%w: parent %s not found", ErrInvalidParent, parentID)
	}
	if err != nil {
		return err
	}
	if parent.Bundle != bundle {
		return fmt.Errorf("%w: parent %s belongs to bundle %s", ErrInvalidParent, parentID, parent.Bundle)
	}
	return nil
}

// Get 按 ID 返回实体。
func (s *entityService) Get(ctx context.Context, id string) (*model.Entity, error) {
	return s.repo.FindByID(ctx, id)
}

// List 按排序键返回实体列表。
func (s *entityService) List(ctx context.Context, bundle string) ([]*model.Entity, error) {
	return s.repo.FindAll(ctx, bundle)
}

// Tree 把实体组织成森林。实体已按排序键排列，因此子节点按同样的顺序追加。
// 上级不在结果中的实体作为顶级节点返回。
func (s *entityService) Tree(ctx context.Context, bundle string) ([]*model.EntityNode, error) {
	entities, err := s.repo.FindAll(ctx, bundle)
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*model.EntityNode, len(entities))
	for _, e := range entities {
		nodes[e.ID] = model.NewEntityNode(e)
	}

	tree := make([]*model.EntityNode, 0)
	for _, e := range entities {
		node := nodes[e.ID]
		if parent, ok := nodes[e.SuperiorID()]; ok && e.SuperiorID() != "" {
			parent.Children = append(parent.Children, node)
		} else {
			tree = append(tree, node)
		}
	}
	return tree, nil
}

// Update 更新实体。上级或排序基础字段变化时在请求内重排自身及整棵子树的排序键，
// 子树的搜索索引刷新交给后台任务；任务发送失败时同步刷新。
func (s *entityService) Update(ctx context.Context, id string, req UpdateEntityRequest) (*model.Entity, error) {
	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" {
		return nil, fmt.Errorf("%w: label is required", ErrInvalidInput)
	}
	if req.Weight < 0 {
		return nil, fmt.Errorf("%w: weight must not be negative", ErrInvalidInput)
	}

	entity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	parentChanged := req.ParentID != entity.SuperiorID()
	if parentChanged && req.ParentID != "" {
		if err := s.checkParent(ctx, entity.Bundle, req.ParentID); err != nil {
			return nil, err
		}
		if err := s.walker.ValidateSuperior(ctx, entity, req.ParentID); err != nil {
			return nil, err
		}
	}

	before := s.baseValues(entity)
	entity.Label = req.Label
	entity.Code = req.Code
	entity.Weight = req.Weight
	entity.SetSuperiorID(req.ParentID)

	keyChanged := false
	if parentChanged || before != s.baseValues(entity) {
		if keyChanged, err = s.keyer.Apply(ctx, entity); err != nil {
			return nil, fmt.Errorf("compute sort key: %w", err)
		}
	}
	if err := s.repo.Save(ctx, entity); err != nil {
		return nil, err
	}

	if keyChanged {
		s.warnOnCollision(ctx, entity)
		reason := "base_field"
		if parentChanged {
			reason = "reparent"
		}
		if err := s.rekeyInferiors(ctx, entity, reason); err != nil {
			return nil, err
		}
	}
	s.index(ctx, entity)
	s.events.Publish(model.NewEntityEvent(model.EntityUpdated, entity))
	return entity, nil
}

func (s *entityService) baseValues(e *model.Entity) string {
	var b strings.Builder
	for _, field := range s.keyer.Config().BaseFields {
		b.WriteString(e.BaseValue(field))
		b.WriteByte(0)
	}
	return b.String()
}

// rekeyInferiors 同步重排已保存实体的全部下级，再发送子树索引刷新任务。
func (s *entityService) rekeyInferiors(ctx context.Context, e *model.Entity, reason string) error {
	count, err := s.repo.CountChildren(ctx, e.ID)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	saved, err := s.keyer.Rekey(ctx, e)
	if err != nil {
		return fmt.Errorf("rekey inferiors of %s: %w", e.ID, err)
	}
	log.Infow("下级排序键已重排", "entityId", e.ID, "reason", reason, "saved", saved)

	task := tasks.RekeyTask{EntityID: e.ID, Bundle: e.Bundle, Reason: reason}
	if err := s.publisher.PublishRekey(ctx, task); err != nil {
		log.Warnf("发送索引刷新任务失败，改为同步刷新: EntityID=%s, err=%v", e.ID, err)
		if _, err := s.indexInferiors(ctx, e); err != nil {
			log.Warnf("刷新下级索引失败: EntityID=%s, err=%v", e.ID, err)
		}
	}
	return nil
}

// indexInferiors 刷新 e 全部下级的搜索索引，返回刷新的数量。
func (s *entityService) indexInferiors(ctx context.Context, e *model.Entity) (int, error) {
	inferiors, err := s.walker.Inferiors(ctx, e, 0)
	if err != nil {
		return 0, err
	}
	for _, inf := range inferiors {
		s.index(ctx, inf)
	}
	return len(inferiors), nil
}

// Delete 删除实体。存在下级时需要 cascade，此时由深到浅删除整棵子树。
func (s *entityService) Delete(ctx context.Context, id string, cascade bool) error {
	entity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	inferiors, err := s.walker.Inferiors(ctx, entity, 0)
	if err != nil {
		return err
	}
	if len(inferiors) > 0 && !cascade {
		return fmt.Errorf("%w: %s has %d inferiors", ErrHasInferiors, id, len(inferiors))
	}

	// Inferiors 按层级广度优先排列，倒序即先删最深的下级。
	for i := len(inferiors) - 1; i >= 0; i-- {
		if err := s.remove(ctx, inferiors[i]); err != nil {
			return err
		}
	}
	return s.remove(ctx, entity)
}

func (s *entityService) remove(ctx context.Context, e *model.Entity) error {
	if err := s.repo.Delete(ctx, e.ID); err != nil {
		return fmt.Errorf("delete %s: %w", e.ID, err)
	}
	if err := s.indexer.Delete(ctx, e.ID); err != nil {
		log.Warnf("删除实体索引失败: EntityID=%s, err=%v", e.ID, err)
	}
	s.events.Publish(model.NewEntityEvent(model.EntityDeleted, e))
	return nil
}

// Superior 返回直接上级，顶级实体返回 nil。
func (s *entityService) Superior(ctx context.Context, id string) (*model.Entity, error) {
	entity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sup, ok, err := s.walker.Superior(ctx, entity)
	if err != nil || !ok {
		return nil, err
	}
	return sup, nil
}

// Superiors 返回上级链，离实体最近的在前。
func (s *entityService) Superiors(ctx context.Context, id string, depth int) ([]*model.Entity, error) {
	entity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.walker.Superiors(ctx, entity, depth)
}

// Inferiors 返回下级集合，按排序键（即先序遍历）排列。
func (s *entityService) Inferiors(ctx context.Context, id string, depth int) ([]*model.Entity, error) {
	entity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	inferiors, err := s.walker.Inferiors(ctx, entity, depth)
	if err != nil {
		return nil, err
	}
	sortBySortKey(inferiors)
	return inferiors, nil
}

// Siblings 返回同级实体，按排序键排列。
func (s *entityService) Siblings(ctx context.Context, id string) ([]*model.Entity, error) {
	entity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	siblings, err := s.walker.Siblings(ctx, entity)
	if err != nil {
		return nil, err
	}
	sortBySortKey(siblings)
	return siblings, nil
}

// Subtree 用一次排序键前缀查询返回实体及其全部下级，按先序排列，实体本身在第一位。
// 截断冲突会让前缀命中别的子树，因此只保留上级已被收录的实体。
func (s *entityService) Subtree(ctx context.Context, id string) ([]*model.Entity, error) {
	entity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity.SortKey == "" {
		return nil, fmt.Errorf("%w: %s has no sort key yet", ErrInvalidInput, id)
	}
	candidates, err := s.repo.FindBySortKeyPrefix(ctx, entity.Bundle, entity.SortKey+s.keyer.Config().Delimiter)
	if err != nil {
		return nil, err
	}

	included := map[string]struct{}{entity.ID: {}}
	out := []*model.Entity{entity}
	for _, c := range candidates {
		if _, ok := included[c.SuperiorID()]; !ok {
			continue
		}
		included[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

// Rekey 同步重排实体及其子树的排序键，并刷新整棵子树的索引。
func (s *entityService) Rekey(ctx context.Context, id string) (int, error) {
	entity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}
	saved, err := s.keyer.Rekey(ctx, entity)
	if err != nil {
		return saved, fmt.Errorf("rekey %s: %w", id, err)
	}

	s.index(ctx, entity)
	indexed, err := s.indexInferiors(ctx, entity)
	if err != nil {
		return saved, err
	}
	s.events.Publish(model.NewEntityEvent(model.EntityRekeyed, entity))
	log.Infow("子树排序键已重排", "entityId", id, "saved", saved, "subtree", indexed+1)
	return saved, nil
}

// warnOnCollision 在同级中出现相同排序键时记录告警（基础字段截断后前缀相同）。
func (s *entityService) warnOnCollision(ctx context.Context, e *model.Entity) {
	var peers []*model.Entity
	var err error
	if e.SuperiorID() == "" {
		peers, err = s.repo.FindRoots(ctx, e.Bundle)
	} else {
		peers, err = s.walker.Siblings(ctx, e)
	}
	if err != nil {
		log.Warnf("检查排序键冲突失败: EntityID=%s, err=%v", e.ID, err)
		return
	}
	for _, p := range peers {
		if p.ID != e.ID && p.SortKey == e.SortKey {
			log.Warnw("排序键冲突", "entityId", e.ID, "otherId", p.ID, "sortKey", e.SortKey)
			metrics.SortKeyCollisionsTotal.Inc()
		}
	}
}

// index 刷新实体的搜索索引，失败只记录日志。
func (s *entityService) index(ctx context.Context, e *model.Entity) {
	superiors, err := s.walker.Superiors(ctx, e, 0)
	if err != nil {
		log.Warnf("计算实体深度失败: EntityID=%s, err=%v", e.ID, err)
		return
	}
	if err := s.indexer.Index(ctx, model.NewEsEntityDocument(e, len(superiors))); err != nil {
		log.Warnf("索引实体失败: EntityID=%s, err=%v", e.ID, err)
	}
}

func sortBySortKey(entities []*model.Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].SortKey != entities[j].SortKey {
			return entities[i].SortKey < entities[j].SortKey
		}
		return entities[i].ID < entities[j].ID
	})
}
