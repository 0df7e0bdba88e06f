package spatial

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestRegion(t *testing.T) {
	a := NewRegion(r2.Point{X: 0, Y: 0}, 4, 2)
	test.That(t, a.HalfWidth, test.ShouldEqual, 2)
	test.That(t, a.HalfHeight, test.ShouldEqual, 1)
	test.That(t, a.Area(), test.ShouldEqual, 8)

	t.Run("negative sizes clamp to zero", func(t *testing.T) {
		r := NewRegion(r2.Point{X: 1, Y: 1}, -3, -1)
		test.That(t, r.HalfWidth, test.ShouldEqual, 0)
		test.That(t, r.HalfHeight, test.ShouldEqual, 0)
		test.That(t, r.Contains(r2.Point{X: 1, Y: 1}), test.ShouldBeTrue)
	})

	t.Run("contains is inclusive", func(t *testing.T) {
		test.That(t, a.Contains(r2.Point{X: 2, Y: 1}), test.ShouldBeTrue)
		test.That(t, a.Contains(r2.Point{X: 2.001, Y: 0}), test.ShouldBeFalse)
	})

	t.Run("intersects", func(t *testing.T) {
		touching := NewRegion(r2.Point{X: 3, Y: 0}, 2, 2)
		apart := NewRegion(r2.Point{X: 10, Y: 0}, 2, 2)
		test.That(t, a.Intersects(touching), test.ShouldBeTrue)
		test.That(t, touching.Intersects(a), test.ShouldBeTrue)
		test.That(t, a.Intersects(apart), test.ShouldBeFalse)
		test.That(t, a.Intersects(NewPointRegion(r2.Point{X: 0.5, Y: 0.5})), test.ShouldBeTrue)
	})

	t.Run("enclosing", func(t *testing.T) {
		b := NewPointRegion(r2.Point{X: 6, Y: -3})
		e := Enclosing(a, b)
		test.That(t, e.Min(), test.ShouldResemble, r2.Point{X: -2, Y: -3})
		test.That(t, e.Max(), test.ShouldResemble, r2.Point{X: 6, Y: 1})
		test.That(t, e.Contains(b.Center), test.ShouldBeTrue)
		test.That(t, Enclosing(b, a), test.ShouldResemble, e)
	})
}
