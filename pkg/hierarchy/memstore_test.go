package hierarchy_test

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"hierarchy-go/pkg/hierarchy"
)

type testNode struct {
	id     string
	parent string
	label  string
	weight int
	key    string
}

func (n *testNode) NodeID() string        { return n.id }
func (n *testNode) SuperiorID() string    { return n.parent }
func (n *testNode) GetSortKey() string    { return n.key }
func (n *testNode) SetSortKey(key string) { n.key = key }

func (n *testNode) BaseValue(field string) string {
	switch field {
	case "label":
		return n.label
	case "weight":
		return fmt.Sprintf("%03d", n.weight)
	default:
		return ""
	}
}

// memStore 是一个按 ID 保存节点的内存 Store，记录查询与保存次数。
type memStore struct {
	nodes         map[string]*testNode
	inferiorCalls int
	saves         []string
	failSave      map[string]error
}

func newMemStore(nodes ...*testNode) *memStore {
	s := &memStore{nodes: make(map[string]*testNode), failSave: make(map[string]error)}
	for _, n := range nodes {
		s.nodes[n.id] = n
	}
	return s
}

func (s *memStore) Load(_ context.Context, id string) (*testNode, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, hierarchy.ErrNotFound)
	}
	return n, nil
}

func (s *memStore) Inferiors(_ context.Context, superiorIDs ...string) ([]*testNode, error) {
	s.inferiorCalls++
	want := make(map[string]struct{}, len(superiorIDs))
	for _, id := range superiorIDs {
		want[id] = struct{}{}
	}
	var out []*testNode
	for _, n := range s.nodes {
		if _, ok := want[n.parent]; ok && n.parent != "" {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out, nil
}

func (s *memStore) Save(_ context.Context, n *testNode) error {
	if err, ok := s.failSave[n.id]; ok {
		return err
	}
	s.saves = append(s.saves, n.id)
	s.nodes[n.id] = n
	return nil
}

var errBoom = errors.New("boom")

func ids(nodes []*testNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.id)
	}
	return out
}

// sampleTree builds:
//
//	a
//	├── b
//	│   ├── d
//	│   └── e
//	│       └── g
//	└── c
//	    └── f
//	h
func sampleTree() *memStore {
	return newMemStore(
		&testNode{id: "a", label: "alpha"},
		&testNode{id: "b", parent: "a", label: "beta"},
		&testNode{id: "c", parent: "a", label: "gamma"},
		&testNode{id: "d", parent: "b", label: "delta"},
		&testNode{id: "e", parent: "b", label: "epsilon"},
		&testNode{id: "f", parent: "c", label: "zeta"},
		&testNode{id: "g", parent: "e", label: "eta"},
		&testNode{id: "h", label: "theta"},
	)
}
