package spatial

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestEmptyTree(t *testing.T) {
	tree := NewRegionTree[int]()
	test.That(t, tree.Find(NewRegion(r2.Point{}, 1e9, 1e9)), test.ShouldBeEmpty)
	_, ok := tree.Bounds()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, tree.Depth(), test.ShouldEqual, 0)
}

func TestSixthInsertRecurses(t *testing.T) {
	tree := NewRegionTree[string]()
	names := []string{"a", "b", "c", "d", "e", "f"}
	for i, name := range names {
		tree.Insert(name, NewRegion(r2.Point{X: float64(i * 10), Y: 0}, 2, 2), i)
	}

	test.That(t, tree.RootChildren(), test.ShouldEqual, MaxChildren)
	test.That(t, tree.Len(), test.ShouldEqual, 6)
	test.That(t, tree.Depth(), test.ShouldEqual, 2)

	// "f" at x=50 is cheapest to absorb into "e" at x=40
	test.That(t, tree.root.children[4].id, test.ShouldEqual, 4)
	test.That(t, len(tree.root.children[4].children), test.ShouldEqual, 1)
	test.That(t, tree.root.children[4].bounds.Max().X, test.ShouldEqual, 51)

	test.That(t, tree.Find(NewPointRegion(r2.Point{X: 50, Y: 0})), test.ShouldResemble, []string{"f"})
	found := tree.Find(NewRegion(r2.Point{X: 45, Y: 0}, 12, 1))
	sort.Strings(found)
	test.That(t, found, test.ShouldResemble, []string{"e", "f"})
}

func TestLeastEnlargementTieBreak(t *testing.T) {
	tree := NewRegionTree[int]()
	// ids deliberately out of insertion order
	ids := []int{7, 3, 9, 1, 5}
	for i, id := range ids {
		tree.Insert(id, NewRegion(r2.Point{X: float64(i * 10)}, 2, 2), id)
	}
	// a region covering every child enlarges each of them by the same amount
	tree.Insert(100, NewRegion(r2.Point{X: 20}, 100, 100), 100)
	for _, c := range tree.root.children {
		if c.id == 1 {
			test.That(t, len(c.children), test.ShouldEqual, 1)
		} else {
			test.That(t, len(c.children), test.ShouldEqual, 0)
		}
	}
}

func randomRegion(rng *rand.Rand) Region {
	center := r2.Point{X: rng.Float64()*1000 - 500, Y: rng.Float64()*1000 - 500}
	return NewRegion(center, rng.Float64()*20, rng.Float64()*20)
}

func encloses(outer, inner Region) bool {
	const eps = 1e-9
	return outer.Min().X <= inner.Min().X+eps && outer.Min().Y <= inner.Min().Y+eps &&
		outer.Max().X+eps >= inner.Max().X && outer.Max().Y+eps >= inner.Max().Y
}

func TestTreeInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tree := NewRegionTree[int]()
	regions := make([]Region, 500)
	for i := range regions {
		regions[i] = randomRegion(rng)
		tree.Insert(i, regions[i], i)
	}
	test.That(t, tree.Len(), test.ShouldEqual, len(regions))

	t.Run("fan-out bound", func(t *testing.T) {
		tree.Walk(func(_ int, _ Region, children, _ int) bool {
			test.That(t, children, test.ShouldBeLessThanOrEqualTo, MaxChildren)
			return true
		})
		test.That(t, tree.RootChildren(), test.ShouldBeLessThanOrEqualTo, MaxChildren)
	})

	t.Run("bounds enclose own region and children", func(t *testing.T) {
		var check func(n *node[int])
		check = func(n *node[int]) {
			if n.hasValue {
				test.That(t, encloses(n.bounds, n.region), test.ShouldBeTrue)
			}
			for _, c := range n.children {
				test.That(t, encloses(n.bounds, c.bounds), test.ShouldBeTrue)
				check(c)
			}
		}
		check(&tree.root)
	})

	t.Run("unique ids", func(t *testing.T) {
		seen := map[int]bool{}
		tree.Walk(func(id int, _ Region, _, _ int) bool {
			test.That(t, seen[id], test.ShouldBeFalse)
			seen[id] = true
			return true
		})
		test.That(t, len(seen), test.ShouldEqual, len(regions))
	})

	t.Run("find matches brute force", func(t *testing.T) {
		for q := 0; q < 100; q++ {
			query := NewRegion(r2.Point{X: rng.Float64()*1000 - 500, Y: rng.Float64()*1000 - 500},
				rng.Float64()*200, rng.Float64()*200)
			var want []int
			for i, r := range regions {
				if r.Intersects(query) {
					want = append(want, i)
				}
			}
			got := tree.Find(query)
			sort.Ints(got)
			if len(want) == 0 {
				test.That(t, got, test.ShouldBeEmpty)
				continue
			}
			test.That(t, got, test.ShouldResemble, want)
		}
	})

	t.Run("disjoint query finds nothing", func(t *testing.T) {
		bounds, ok := tree.Bounds()
		test.That(t, ok, test.ShouldBeTrue)
		far := NewRegion(r2.Point{X: bounds.Max().X + 100, Y: 0}, 10, 10)
		test.That(t, tree.Find(far), test.ShouldBeEmpty)
	})
}

func TestPrint(t *testing.T) {
	tree := NewRegionTree[int]()
	tree.Insert(1, NewPointRegion(r2.Point{X: 1, Y: 2}), 1)
	test.That(t, tree.String(), test.ShouldContainSubstring, "1 Region(center=(1, 2)")
}
