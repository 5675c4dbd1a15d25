package tables

import (
	"fmt"
	"sort"
)

type segment struct {
	left  float64
	right float64
	node  int32
}

// Simplify reduces the tables to the history of samples. Samples become nodes
// 0..len(samples)-1 in the given order. The returned slice maps each input node
// to its output node, or -1 when it was dropped.
func (tc *TableCollection) Simplify(samples []int32) ([]int32, error) {
	if err := tc.CheckIntegrity(); err != nil {
		return nil, err
	}
	tc.SortEdges()

	n := len(tc.Nodes)
	idmap := make([]int32, n)
	for i := range idmap {
		idmap[i] = -1
	}
	isSample := make([]bool, n)
	ancestry := make([][]segment, n)
	nodes := make([]Node, 0, len(samples))
	for _, s := range samples {
		if s < 0 || int(s) >= n {
			return nil, fmt.Errorf("sample %d is not a node", s)
		}
		if isSample[s] {
			return nil, fmt.Errorf("duplicate sample %d", s)
		}
		isSample[s] = true
		idmap[s] = int32(len(nodes))
		nodes = append(nodes, tc.Nodes[s])
		ancestry[s] = []segment{{left: 0, right: tc.GenomeLength, node: idmap[s]}}
	}

	s := &simplifier{
		genomeLength: tc.GenomeLength,
		isSample:     isSample,
		idmap:        idmap,
		ancestry:     ancestry,
		nodes:        nodes,
		inputNodes:   tc.Nodes,
	}
	for start := 0; start < len(tc.Edges); {
		parent := tc.Edges[start].Parent
		end := start
		s.queue = s.queue[:0]
		for end < len(tc.Edges) && tc.Edges[end].Parent == parent {
			e := tc.Edges[end]
			for _, x := range s.ancestry[e.Child] {
				if x.right > e.Left && e.Right > x.left {
					s.queue = append(s.queue, segment{
						left:  max(x.left, e.Left),
						right: min(x.right, e.Right),
						node:  x.node,
					})
				}
			}
			end++
		}
		s.mergeLabeledAncestors(parent)
		start = end
	}

	mutations := tc.Mutations[:0]
	for _, m := range tc.Mutations {
		for _, x := range s.ancestry[m.Node] {
			if x.left <= m.Position && m.Position < x.right {
				m.Node = x.node
				mutations = append(mutations, m)
				break
			}
		}
	}

	tc.Nodes = s.nodes
	tc.Edges = s.edges
	tc.Mutations = mutations
	tc.indexed = false
	tc.insertionOrder = nil
	tc.removalOrder = nil
	return idmap, nil
}

type simplifier struct {
	genomeLength float64
	isSample     []bool
	idmap        []int32
	ancestry     [][]segment
	inputNodes   []Node

	nodes   []Node
	edges   []Edge
	queue   []segment
	pending []Edge
}

func (s *simplifier) mergeLabeledAncestors(parent int32) {
	sample := s.isSample[parent]
	if sample {
		s.queue = append(s.queue, s.ancestry[parent]...)
	}
	out := s.idmap[parent]
	var merged []segment
	s.pending = s.pending[:0]

	forEachOverlap(s.queue, s.genomeLength, func(left, right float64, x []segment) {
		var node int32
		switch {
		case len(x) == 1 && !sample:
			node = x[0].node
		default:
			if out == -1 {
				out = int32(len(s.nodes))
				s.nodes = append(s.nodes, s.inputNodes[parent])
				s.idmap[parent] = out
			}
			for _, seg := range x {
				if seg.node != out {
					s.pending = append(s.pending, Edge{Left: left, Right: right, Parent: out, Child: seg.node})
				}
			}
			node = out
		}
		merged = appendSegment(merged, left, right, node)
	})

	s.ancestry[parent] = merged
	s.flushEdges()
}

// flushEdges squashes contiguous pending edges per child and emits them.
func (s *simplifier) flushEdges() {
	if len(s.pending) == 0 {
		return
	}
	sort.Slice(s.pending, func(i, j int) bool {
		a, b := s.pending[i], s.pending[j]
		if a.Child != b.Child {
			return a.Child < b.Child
		}
		return a.Left < b.Left
	})
	last := s.pending[0]
	for _, e := range s.pending[1:] {
		if e.Child == last.Child && e.Left == last.Right {
			last.Right = e.Right
			continue
		}
		s.edges = append(s.edges, last)
		last = e
	}
	s.edges = append(s.edges, last)
}

func appendSegment(segs []segment, left, right float64, node int32) []segment {
	if n := len(segs); n > 0 && segs[n-1].node == node && segs[n-1].right == left {
		segs[n-1].right = right
		return segs
	}
	return append(segs, segment{left: left, right: right, node: node})
}

// forEachOverlap sweeps segs left to right and calls fn for every maximal
// interval over which the set of overlapping segments is constant.
func forEachOverlap(segs []segment, genomeLength float64, fn func(left, right float64, x []segment)) {
	n := len(segs)
	if n == 0 {
		return
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].left < segs[j].left })

	var x []segment
	j := 0
	right := segs[0].left
	for j < n {
		left := right
		x = dropEnded(x, left)
		if len(x) == 0 {
			left = segs[j].left
		}
		for j < n && segs[j].left == left {
			x = append(x, segs[j])
			j++
		}
		right = minRight(x)
		next := genomeLength
		if j < n {
			next = segs[j].left
		}
		if next < right {
			right = next
		}
		fn(left, right, x)
	}
	for len(x) > 0 {
		left := right
		x = dropEnded(x, left)
		if len(x) == 0 {
			break
		}
		right = minRight(x)
		fn(left, right, x)
	}
}

func dropEnded(x []segment, left float64) []segment {
	k := 0
	for _, seg := range x {
		if seg.right > left {
			x[k] = seg
			k++
		}
	}
	return x[:k]
}

func minRight(x []segment) float64 {
	r := x[0].right
	for _, seg := range x[1:] {
		if seg.right < r {
			r = seg.right
		}
	}
	return r
}
