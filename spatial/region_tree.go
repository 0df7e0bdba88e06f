package spatial

import (
	"fmt"
	"io"
	"strings"
)

// MaxChildren is the largest number of direct children a tree node may hold.
const MaxChildren = 5

// RegionTree is a bounding volume tree mapping 2D regions to values. Each node stores one
// value with its own region, and its bounds enclose that region and every descendant's
// bounds. Nodes are never removed.
//
// The root is a value-less sentinel, so an empty tree returns no results.
type RegionTree[V any] struct {
	root node[V]
	size int
}

type node[V any] struct {
	region   Region
	bounds   Region
	value    V
	id       int
	hasValue bool
	children []*node[V]
}

// NewRegionTree returns an empty tree.
func NewRegionTree[V any]() *RegionTree[V] {
	return &RegionTree[V]{}
}

// Len returns the number of inserted values.
func (t *RegionTree[V]) Len() int {
	return t.size
}

// Bounds returns the region enclosing every inserted value. It is false for an empty tree.
func (t *RegionTree[V]) Bounds() (Region, bool) {
	if t.size == 0 {
		return Region{}, false
	}
	return t.root.bounds, true
}

// Insert adds value with the given bounds. The id must be unique within the tree and is used
// to break ties between equally good subtrees, so insertion order does not leak into the shape
// of the tree when ids are assigned deterministically.
func (t *RegionTree[V]) Insert(value V, bounds Region, id int) {
	t.root.insert(&node[V]{region: bounds, bounds: bounds, value: value, id: id, hasValue: true})
	t.size++
}

// Find returns every value whose region intersects query. No ordering is guaranteed.
func (t *RegionTree[V]) Find(query Region) []V {
	if t.size == 0 {
		return nil
	}
	return t.root.find(query, nil)
}

// Walk visits every value-carrying node depth first, with the root's children at depth 1.
// Returning false from fn stops the walk below that node.
func (t *RegionTree[V]) Walk(fn func(id int, bounds Region, children, depth int) bool) {
	for _, child := range t.root.children {
		child.walk(1, fn)
	}
}

// Depth returns the length of the longest root-to-leaf path, not counting the sentinel root.
func (t *RegionTree[V]) Depth() int {
	depth := 0
	t.Walk(func(_ int, _ Region, _, d int) bool {
		if d > depth {
			depth = d
		}
		return true
	})
	return depth
}

// RootChildren returns the number of direct children of the root.
func (t *RegionTree[V]) RootChildren() int {
	return len(t.root.children)
}

// Print writes an indented description of the tree to w.
func (t *RegionTree[V]) Print(w io.Writer) {
	t.Walk(func(id int, bounds Region, children, depth int) bool {
		fmt.Fprintf(w, "%s%d %s children=%d\n", strings.Repeat("  ", depth-1), id, bounds, children)
		return true
	})
}

func (t *RegionTree[V]) String() string {
	var sb strings.Builder
	t.Print(&sb)
	return sb.String()
}

func (n *node[V]) insert(child *node[V]) {
	if len(n.children) < MaxChildren {
		n.children = append(n.children, child)
	} else {
		n.leastEnlargement(child.bounds).insert(child)
	}
	n.recomputeBounds()
}

// leastEnlargement picks the child whose bounds grow the least in area to cover bounds.
// Ties go to the lowest child id.
func (n *node[V]) leastEnlargement(bounds Region) *node[V] {
	best := n.children[0]
	bestCost := enlargement(best.bounds, bounds)
	for _, c := range n.children[1:] {
		cost := enlargement(c.bounds, bounds)
		if cost < bestCost || (cost == bestCost && c.id < best.id) {
			best, bestCost = c, cost
		}
	}
	return best
}

func (n *node[V]) recomputeBounds() {
	first := true
	if n.hasValue {
		n.bounds = n.region
		first = false
	}
	for _, c := range n.children {
		if first {
			n.bounds = c.bounds
			first = false
			continue
		}
		n.bounds = Enclosing(n.bounds, c.bounds)
	}
}

func (n *node[V]) find(query Region, result []V) []V {
	if !n.bounds.Intersects(query) {
		return result
	}
	if n.hasValue && n.region.Intersects(query) {
		result = append(result, n.value)
	}
	for _, c := range n.children {
		if c.bounds.Intersects(query) {
			result = c.find(query, result)
		}
	}
	return result
}

func (n *node[V]) walk(depth int, fn func(id int, bounds Region, children, depth int) bool) {
	if !fn(n.id, n.bounds, len(n.children), depth) {
		return
	}
	for _, c := range n.children {
		c.walk(depth+1, fn)
	}
}

func enlargement(existing, additional Region) float64 {
	return Enclosing(existing, additional).Area() - existing.Area()
}
