// Package spatial provides the 2D ground-plane index used to look up landmarks by location.
package spatial

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Region is an axis-aligned rectangle described by its center and half extents.
// Boundaries are inclusive: regions that only touch along an edge intersect.
type Region struct {
	Center     r2.Point
	HalfWidth  float64
	HalfHeight float64
}

// NewRegion returns a region centered on center with the given full width and height.
// Negative sizes are clamped to zero.
func NewRegion(center r2.Point, width, height float64) Region {
	return Region{
		Center:     center,
		HalfWidth:  math.Max(width, 0) / 2,
		HalfHeight: math.Max(height, 0) / 2,
	}
}

// NewPointRegion returns a zero-extent region at p.
func NewPointRegion(p r2.Point) Region {
	return Region{Center: p}
}

// RegionFromRect converts an r2.Rect. An empty rect maps to a point region at the origin.
func RegionFromRect(rect r2.Rect) Region {
	if rect.IsEmpty() {
		return Region{}
	}
	half := rect.Size().Mul(0.5)
	return Region{Center: rect.Center(), HalfWidth: half.X, HalfHeight: half.Y}
}

// Rect returns the region as an r2.Rect.
func (r Region) Rect() r2.Rect {
	return r2.RectFromCenterSize(r.Center, r2.Point{X: 2 * r.HalfWidth, Y: 2 * r.HalfHeight})
}

// Min returns the lower-left corner.
func (r Region) Min() r2.Point {
	return r2.Point{X: r.Center.X - r.HalfWidth, Y: r.Center.Y - r.HalfHeight}
}

// Max returns the upper-right corner.
func (r Region) Max() r2.Point {
	return r2.Point{X: r.Center.X + r.HalfWidth, Y: r.Center.Y + r.HalfHeight}
}

// Area returns the area covered by the region.
func (r Region) Area() float64 {
	return 4 * r.HalfWidth * r.HalfHeight
}

// Intersects reports whether the two regions overlap or touch.
func (r Region) Intersects(other Region) bool {
	return r.Rect().Intersects(other.Rect())
}

// Contains reports whether p lies inside the region or on its boundary.
func (r Region) Contains(p r2.Point) bool {
	return r.Rect().ContainsPoint(p)
}

// Enclosing returns the smallest region containing both a and b.
func Enclosing(a, b Region) Region {
	return RegionFromRect(a.Rect().Union(b.Rect()))
}

func (r Region) String() string {
	return fmt.Sprintf("Region(center=(%g, %g), half=(%g, %g))", r.Center.X, r.Center.Y, r.HalfWidth, r.HalfHeight)
}
