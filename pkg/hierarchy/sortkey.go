package hierarchy

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Sortable 是带有层级排序键的节点。
type Sortable interface {
	Node
	GetSortKey() string
	SetSortKey(key string)
	// BaseValue 返回名为 field 的基础字段的字符串值。
	BaseValue(field string) string
}

// SortableStore 在 Store 的基础上增加持久化能力。
type SortableStore[N Sortable] interface {
	Store[N]
	Save(ctx context.Context, n N) error
}

// KeyConfig 描述排序键的组成方式。
type KeyConfig struct {
	// BaseFields 依次拼接成每个节点的本地键来源。
	BaseFields []string
	// ChunkSize 是从基础字段中保留的最大字符数。
	ChunkSize int
	// Fill 是右侧填充字符，必须是单个字符。基础字段中不大于 Fill 的字符（如空格）会被替换为 Fill。
	Fill string
	// Delimiter 连接上级排序键与本地键。
	Delimiter string
}

// DefaultKeyConfig 返回默认的排序键配置。
func DefaultKeyConfig() KeyConfig {
	return KeyConfig{
		BaseFields: []string{"label"},
		ChunkSize:  12,
		Fill:       "!",
		Delimiter:  "/",
	}
}

// Validate 检查配置是否可用。
func (c KeyConfig) Validate() error {
	if len(c.BaseFields) == 0 {
		return fmt.Errorf("%w: no base fields", ErrInvalidConfig)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size %d", ErrInvalidConfig, c.ChunkSize)
	}
	if utf8.RuneCountInString(c.Fill) != 1 {
		return fmt.Errorf("%w: fill %q must be a single character", ErrInvalidConfig, c.Fill)
	}
	return nil
}

// KeyLength 返回 depth 层节点的完整排序键长度（字符数）。
func (c KeyConfig) KeyLength(depth int) int {
	if depth <= 0 {
		return 0
	}
	return depth*(c.ChunkSize+1) + (depth-1)*utf8.RuneCountInString(c.Delimiter)
}

// Keyer 为 Sortable 节点计算层级排序键。
//
// 每个节点的完整排序键 = 上级排序键 + Delimiter + 本地键，顶级节点只有本地键。
// 本地键宽度固定为 ChunkSize+1，因此按字符串排序即得到先序遍历顺序，
// 同级节点按基础字段排序。超过 ChunkSize 的内容会被截断，前缀相同的节点可能得到相同的键。
type Keyer[N Sortable] struct {
	store  SortableStore[N]
	walker *Walker[N]
	cfg    KeyConfig
	fill   rune
}

// NewKeyer 创建一个 Keyer。
func NewKeyer[N Sortable](store SortableStore[N], cfg KeyConfig, maxDepth int) (*Keyer[N], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fill, _ := utf8.DecodeRuneInString(cfg.Fill)
	return &Keyer[N]{
		store:  store,
		walker: NewWalker[N](store, maxDepth),
		cfg:    cfg,
		fill:   fill,
	}, nil
}

// Config 返回 Keyer 使用的配置。
func (k *Keyer[N]) Config() KeyConfig {
	return k.cfg
}

// LocalKey 计算节点自身的本地键：截断到 ChunkSize、转大写，再用 Fill 右填充到 ChunkSize+1。
// 不大于 Fill 的字符替换为 Fill，这样较短的值总排在以它为前缀的值之前（"NEW" < "NEW YORK"）。
func (k *Keyer[N]) LocalKey(n N) string {
	var b strings.Builder
	for _, field := range k.cfg.BaseFields {
		b.WriteString(n.BaseValue(field))
	}
	runes := []rune(strings.ToUpper(b.String()))
	if len(runes) > k.cfg.ChunkSize {
		runes = runes[:k.cfg.ChunkSize]
	}
	for i, r := range runes {
		if r <= k.fill {
			runes[i] = k.fill
		}
	}
	for len(runes) < k.cfg.ChunkSize+1 {
		runes = append(runes, k.fill)
	}
	return string(runes)
}

// Compute 计算 n 的完整排序键，但不修改 n。
// 如果上级尚未设置排序键，会先递归计算并保存上级。
func (k *Keyer[N]) Compute(ctx context.Context, n N) (string, error) {
	return k.compute(ctx, n, make(map[string]struct{}))
}

func (k *Keyer[N]) compute(ctx context.Context, n N, seen map[string]struct{}) (string, error) {
	id := n.NodeID()
	if _, dup := seen[id]; dup {
		return "", fmt.Errorf("%w: %s revisited while computing sort key", ErrCycle, id)
	}
	if len(seen) >= k.walker.MaxDepth() {
		return "", fmt.Errorf("%w: sort key chain above %s", ErrDepthExceeded, id)
	}
	seen[id] = struct{}{}

	local := k.LocalKey(n)
	sup, ok, err := k.walker.Superior(ctx, n)
	if err != nil {
		return "", err
	}
	if !ok {
		return local, nil
	}

	supKey := sup.GetSortKey()
	if supKey == "" {
		if supKey, err = k.compute(ctx, sup, seen); err != nil {
			return "", err
		}
		sup.SetSortKey(supKey)
		if err := k.store.Save(ctx, sup); err != nil {
			return "", fmt.Errorf("save superior %s: %w", sup.NodeID(), err)
		}
	}
	return supKey + k.cfg.Delimiter + local, nil
}

// Apply 计算并设置 n 的排序键（不保存 n），返回键是否发生了变化。
func (k *Keyer[N]) Apply(ctx context.Context, n N) (bool, error) {
	key, err := k.Compute(ctx, n)
	if err != nil {
		return false, err
	}
	changed := key != n.GetSortKey()
	n.SetSortKey(key)
	return changed, nil
}

// Rekey 重新计算 root 及其全部下级的排序键，逐层批量加载，只保存键发生变化的节点。
// 返回保存的节点数。中途失败时已保存的节点保持新键。
func (k *Keyer[N]) Rekey(ctx context.Context, root N) (int, error) {
	saved := 0
	changed, err := k.Apply(ctx, root)
	if err != nil {
		return 0, err
	}
	if changed {
		if err := k.store.Save(ctx, root); err != nil {
			return 0, fmt.Errorf("save %s: %w", root.NodeID(), err)
		}
		saved++
	}

	keys := map[string]string{root.NodeID(): root.GetSortKey()}
	frontier := []string{root.NodeID()}
	for level := 1; len(frontier) > 0; level++ {
		if level > k.walker.MaxDepth() {
			return saved, fmt.Errorf("%w: more than %d levels below %s", ErrDepthExceeded, k.walker.MaxDepth(), root.NodeID())
		}
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		children, err := k.store.Inferiors(ctx, frontier...)
		if err != nil {
			return saved, fmt.Errorf("load inferiors at level %d: %w", level, err)
		}
		next := make([]string, 0, len(children))
		for _, c := range children {
			id := c.NodeID()
			if _, dup := keys[id]; dup {
				return saved, fmt.Errorf("%w: %s revisited below %s", ErrCycle, id, root.NodeID())
			}
			key := keys[c.SuperiorID()] + k.cfg.Delimiter + k.LocalKey(c)
			if key != c.GetSortKey() {
				c.SetSortKey(key)
				if err := k.store.Save(ctx, c); err != nil {
					return saved, fmt.Errorf("save %s: %w", id, err)
				}
				saved++
			}
			keys[id] = key
			next = append(next, id)
		}
		frontier = next
	}
	return saved, nil
}
