// Package geom holds the coordinate data carried by geometry components.
// It does no spatial computation beyond what validation needs.
package geom

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Point is a single planar coordinate.
type Point = v2.Vec

// Pt is shorthand for building a Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Ring is an ordered sequence of points. A valid polygon ring is closed:
// its first and last points are equal.
type Ring []Point

// SpatialReference identifies the coordinate system of a geometry.
type SpatialReference struct {
	WKID int `json:"wkid"`
}

// Extent is an axis-aligned envelope supplied alongside a geometry.
type Extent struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

// RingEqual reports whether two rings hold the same points in the same order.
func RingEqual(a, b Ring) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// RingsEqual compares ring arrays ring-for-ring, point-for-point.
// A nil array equals an empty one.
func RingsEqual(a, b []Ring) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !RingEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// CloneRings returns a deep copy that shares no backing arrays with rings.
func CloneRings(rings []Ring) []Ring {
	out := make([]Ring, len(rings))
	for i, r := range rings {
		out[i] = append(Ring(nil), r...)
	}
	return out
}

// Closed reports whether r has at least one point and ends where it starts.
func (r Ring) Closed() bool {
	return len(r) > 0 && r[0] == r[len(r)-1]
}

// Bounds returns the bounding box of every point in rings. ok is false when
// there are no points.
func Bounds(rings []Ring) (box sdf.Box2, ok bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, r := range rings {
		for _, p := range r {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
			ok = true
		}
	}
	if !ok {
		return sdf.Box2{}, false
	}
	return sdf.Box2{Min: v2.Vec{X: minX, Y: minY}, Max: v2.Vec{X: maxX, Y: maxY}}, true
}

// Degenerate reports whether r encloses no area: fewer than four points
// (three distinct plus the closing point) or a zero-width bounding box.
func (r Ring) Degenerate() bool {
	if len(r) < 4 {
		return true
	}
	box, _ := Bounds([]Ring{r})
	return box.Max.X == box.Min.X || box.Max.Y == box.Min.Y
}
