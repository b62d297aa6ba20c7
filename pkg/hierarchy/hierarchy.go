// Package hierarchy 实现层级实体（上级/下级）的遍历以及层级排序键的生成。
//
// 包本身不持有任何数据，所有查询都通过调用方提供的 Store 完成。
package hierarchy

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound 由 Store 在实体不存在时返回（可被包装）。
	ErrNotFound = errors.New("hierarchy: entity not found")
	// ErrCycle 表示上下级关系中出现了环。
	ErrCycle = errors.New("hierarchy: cycle detected")
	// ErrDepthExceeded 表示遍历超过了 MaxDepth。
	ErrDepthExceeded = errors.New("hierarchy: max depth exceeded")
	// ErrInvalidConfig 表示排序键配置不合法。
	ErrInvalidConfig = errors.New("hierarchy: invalid sort key config")
)

// DefaultMaxDepth 是未指定时的最大遍历深度。
const DefaultMaxDepth = 64

// Node 是一个可以引用同类型上级实体的节点。
type Node interface {
	NodeID() string
	// SuperiorID 返回上级实体的 ID，顶级实体返回空字符串。
	SuperiorID() string
}

// Store 是层级数据的外部存储。
type Store[N Node] interface {
	// Load 按 ID 加载实体，不存在时返回包装了 ErrNotFound 的错误。
	Load(ctx context.Context, id string) (N, error)
	// Inferiors 返回上级 ID 属于 superiorIDs 的所有直接下级。
	Inferiors(ctx context.Context, superiorIDs ...string) ([]N, error)
}

// Walker 在 Store 之上提供上级链、下级集合和同级查询。
type Walker[N Node] struct {
	store    Store[N]
	maxDepth int
}

// NewWalker 创建一个 Walker。maxDepth <= 0 时使用 DefaultMaxDepth。
func NewWalker[N Node](store Store[N], maxDepth int) *Walker[N] {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Walker[N]{store: store, maxDepth: maxDepth}
}

// MaxDepth 返回遍历深度上限。
func (w *Walker[N]) MaxDepth() int {
	return w.maxDepth
}

// Superior 加载 n 的直接上级。顶级实体返回 ok=false。
func (w *Walker[N]) Superior(ctx context.Context, n N) (N, bool, error) {
	var zero N
	id := n.SuperiorID()
	if id == "" {
		return zero, false, nil
	}
	if id == n.NodeID() {
		return zero, false, fmt.Errorf("%w: %s references itself", ErrCycle, id)
	}
	sup, err := w.store.Load(ctx, id)
	if err != nil {
		return zero, false, fmt.Errorf("load superior %s: %w", id, err)
	}
	return sup, true, nil
}

// Superiors 返回最近的 depth 个上级，离 n 最近的在前。
// depth <= 0 表示一直走到顶级实体。到达顶级实体时返回的数量可能少于 depth。
func (w *Walker[N]) Superiors(ctx context.Context, n N, depth int) ([]N, error) {
	seen := map[string]struct{}{n.NodeID(): {}}
	out := make([]N, 0)
	cur := n
	for depth <= 0 || len(out) < depth {
		sup, ok, err := w.Superior(ctx, cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if _, dup := seen[sup.NodeID()]; dup {
			return nil, fmt.Errorf("%w: %s revisited above %s", ErrCycle, sup.NodeID(), n.NodeID())
		}
		if len(out) >= w.maxDepth {
			return nil, fmt.Errorf("%w: more than %d superiors above %s", ErrDepthExceeded, w.maxDepth, n.NodeID())
		}
		seen[sup.NodeID()] = struct{}{}
		out = append(out, sup)
		cur = sup
	}
	return out, nil
}

// Children 返回 n 的直接下级。
func (w *Walker[N]) Children(ctx context.Context, n N) ([]N, error) {
	children, err := w.store.Inferiors(ctx, n.NodeID())
	if err != nil {
		return nil, fmt.Errorf("load inferiors of %s: %w", n.NodeID(), err)
	}
	return children, nil
}

// Inferiors 返回 n 的全部下级（不含 n 本身），按层级广度优先排列。
// 每一层只发起一次批量查询。depth <= 0 表示不限层数。
func (w *Walker[N]) Inferiors(ctx context.Context, n N, depth int) ([]N, error) {
	seen := map[string]struct{}{n.NodeID(): {}}
	frontier := []string{n.NodeID()}
	out := make([]N, 0)
	for level := 1; len(frontier) > 0; level++ {
		if depth > 0 && level > depth {
			break
		}
		if level > w.maxDepth {
			return nil, fmt.Errorf("%w: more than %d levels below %s", ErrDepthExceeded, w.maxDepth, n.NodeID())
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		children, err := w.store.Inferiors(ctx, frontier...)
		if err != nil {
			return nil, fmt.Errorf("load inferiors at level %d: %w", level, err)
		}
		next := make([]string, 0, len(children))
		for _, c := range children {
			id := c.NodeID()
			if _, dup := seen[id]; dup {
				return nil, fmt.Errorf("%w: %s revisited below %s", ErrCycle, id, n.NodeID())
			}
			seen[id] = struct{}{}
			out = append(out, c)
			next = append(next, id)
		}
		frontier = next
	}
	return out, nil
}

// Siblings 返回与 n 共享同一上级的其他实体。顶级实体返回空列表。
func (w *Walker[N]) Siblings(ctx context.Context, n N) ([]N, error) {
	out := make([]N, 0)
	supID := n.SuperiorID()
	if supID == "" {
		return out, nil
	}
	all, err := w.store.Inferiors(ctx, supID)
	if err != nil {
		return nil, fmt.Errorf("load siblings of %s: %w", n.NodeID(), err)
	}
	for _, s := range all {
		if s.NodeID() != n.NodeID() {
			out = append(out, s)
		}
	}
	return out, nil
}

// ValidateSuperior 检查把 n 的上级改为 superiorID 是否会形成环：
// superiorID 不能是 n 自身，也不能是 n 的任何下级。空的 superiorID 总是合法。
func (w *Walker[N]) ValidateSuperior(ctx context.Context, n N, superiorID string) error {
	if superiorID == "" {
		return nil
	}
	id := n.NodeID()
	if superiorID == id {
		return fmt.Errorf("%w: %s cannot be its own superior", ErrCycle, id)
	}
	cur, err := w.store.Load(ctx, superiorID)
	if err != nil {
		return fmt.Errorf("load superior %s: %w", superiorID, err)
	}
	seen := map[string]struct{}{superiorID: {}}
	for steps := 0; ; steps++ {
		next := cur.SuperiorID()
		if next == "" {
			return nil
		}
		if next == id {
			return fmt.Errorf("%w: %s is below %s", ErrCycle, superiorID, id)
		}
		if _, dup := seen[next]; dup {
			return fmt.Errorf("%w: existing chain above %s loops at %s", ErrCycle, superiorID, next)
		}
		if steps >= w.maxDepth {
			return fmt.Errorf("%w: chain above %s", ErrDepthExceeded, superiorID)
		}
		seen[next] = struct{}{}
		if cur, err = w.store.Load(ctx, next); err != nil {
			return fmt.Errorf("load superior %s: %w", next, err)
		}
	}
}
