// Package tables records the genealogy of a forward simulation as node, edge and
// mutation tables, and simplifies them down to the history of a sample.
//
// Node times are birth generations counted forward, so a parent is always older
// (smaller time) than its children.
package tables

import (
	"errors"
	"fmt"
	"sort"
)

var ErrNotIndexed = errors.New("edge tables are not indexed")

type Node struct {
	Time int64 `json:"time"`
}

// Edge says Child inherited [Left, Right) from Parent.
type Edge struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Parent int32   `json:"parent"`
	Child  int32   `json:"child"`
}

// Mutation places a mutation on the genome of Node.
type Mutation struct {
	Node     int32   `json:"node"`
	Position float64 `json:"position"`
	Origin   uint32  `json:"origin"`
	Effect   float64 `json:"effect"`
}

type TableCollection struct {
	GenomeLength float64
	Nodes        []Node
	Edges        []Edge
	Mutations    []Mutation

	insertionOrder []int32
	removalOrder   []int32
	indexed        bool
}

func NewTableCollection(genomeLength float64) *TableCollection {
	return &TableCollection{GenomeLength: genomeLength}
}

func (tc *TableCollection) AddNode(time int64) int32 {
	tc.Nodes = append(tc.Nodes, Node{Time: time})
	return int32(len(tc.Nodes) - 1)
}

func (tc *TableCollection) AddEdge(left, right float64, parent, child int32) {
	tc.Edges = append(tc.Edges, Edge{Left: left, Right: right, Parent: parent, Child: child})
	tc.indexed = false
}

func (tc *TableCollection) AddMutation(m Mutation) {
	tc.Mutations = append(tc.Mutations, m)
}

func (tc *TableCollection) Indexed() bool {
	return tc.indexed
}

// CheckIntegrity validates table references, intervals and time ordering.
func (tc *TableCollection) CheckIntegrity() error {
	n := int32(len(tc.Nodes))
	for i, e := range tc.Edges {
		if e.Parent < 0 || e.Parent >= n || e.Child < 0 || e.Child >= n {
			return fmt.Errorf("edge %d references missing node", i)
		}
		if e.Left < 0 || e.Right > tc.GenomeLength || e.Left >= e.Right {
			return fmt.Errorf("edge %d has bad interval [%g, %g)", i, e.Left, e.Right)
		}
		if tc.Nodes[e.Parent].Time >= tc.Nodes[e.Child].Time {
			return fmt.Errorf("edge %d parent %d is not older than child %d", i, e.Parent, e.Child)
		}
	}
	for i, m := range tc.Mutations {
		if m.Node < 0 || m.Node >= n {
			return fmt.Errorf("mutation %d references missing node %d", i, m.Node)
		}
		if m.Position < 0 || m.Position >= tc.GenomeLength {
			return fmt.Errorf("mutation %d position %g outside genome", i, m.Position)
		}
	}
	return nil
}

// SortEdges orders edges youngest parent first, then by parent, child and left.
func (tc *TableCollection) SortEdges() {
	sort.SliceStable(tc.Edges, func(i, j int) bool {
		a, b := tc.Edges[i], tc.Edges[j]
		ta, tb := tc.Nodes[a.Parent].Time, tc.Nodes[b.Parent].Time
		if ta != tb {
			return ta > tb
		}
		if a.Parent != b.Parent {
			return a.Parent < b.Parent
		}
		if a.Child != b.Child {
			return a.Child < b.Child
		}
		return a.Left < b.Left
	})
	tc.indexed = false
}

// BuildIndex computes the edge insertion and removal orders used to walk the
// trees along the genome.
func (tc *TableCollection) BuildIndex() error {
	if err := tc.CheckIntegrity(); err != nil {
		return err
	}
	m := len(tc.Edges)
	in := make([]int32, m)
	out := make([]int32, m)
	for i := range in {
		in[i] = int32(i)
		out[i] = int32(i)
	}
	sort.Slice(in, func(i, j int) bool {
		a, b := tc.Edges[in[i]], tc.Edges[in[j]]
		if a.Left != b.Left {
			return a.Left < b.Left
		}
		return tc.Nodes[a.Parent].Time > tc.Nodes[b.Parent].Time
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := tc.Edges[out[i]], tc.Edges[out[j]]
		if a.Right != b.Right {
			return a.Right < b.Right
		}
		return tc.Nodes[a.Parent].Time < tc.Nodes[b.Parent].Time
	})
	tc.insertionOrder = in
	tc.removalOrder = out
	tc.indexed = true
	return nil
}

// Interval is a half-open genomic span.
type Interval struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// TreeIntervals returns the span of every marginal tree, left to right.
func (tc *TableCollection) TreeIntervals() ([]Interval, error) {
	if !tc.indexed {
		return nil, ErrNotIndexed
	}
	edges := tc.Edges
	m := len(edges)
	in, out := tc.insertionOrder, tc.removalOrder

	var intervals []Interval
	j, k := 0, 0
	x := 0.0
	for x < tc.GenomeLength {
		for k < m && edges[out[k]].Right == x {
			k++
		}
		for j < m && edges[in[j]].Left == x {
			j++
		}
		right := tc.GenomeLength
		if j < m && edges[in[j]].Left < right {
			right = edges[in[j]].Left
		}
		if k < m && edges[out[k]].Right < right {
			right = edges[out[k]].Right
		}
		intervals = append(intervals, Interval{Left: x, Right: right})
		x = right
	}
	return intervals, nil
}

// TreesIn counts marginal trees overlapping [left, right).
func (tc *TableCollection) TreesIn(left, right float64) (int, error) {
	intervals, err := tc.TreeIntervals()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, iv := range intervals {
		if iv.Left < right && iv.Right > left {
			count++
		}
	}
	return count, nil
}

// Tree is the marginal genealogy at one position.
type Tree struct {
	Parent []int32
}

func (tc *TableCollection) TreeAt(pos float64) Tree {
	parent := make([]int32, len(tc.Nodes))
	for i := range parent {
		parent[i] = -1
	}
	for _, e := range tc.Edges {
		if e.Left <= pos && pos < e.Right {
			parent[e.Child] = e.Parent
		}
	}
	return Tree{Parent: parent}
}

// MRCA returns the most recent common ancestor of a and b, or -1 when their
// lineages have not met.
func (t Tree) MRCA(a, b int32) int32 {
	seen := make(map[int32]struct{})
	for u := a; u != -1; u = t.Parent[u] {
		seen[u] = struct{}{}
	}
	for u := b; u != -1; u = t.Parent[u] {
		if _, ok := seen[u]; ok {
			return u
		}
	}
	return -1
}
