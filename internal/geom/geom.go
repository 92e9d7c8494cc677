// Package geom holds the 2D primitives shared by the compositing surface:
// points, axis-aligned rectangles, affine matrices and projective quads.
package geom

import "math"

// Point is a position in surface pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

func (p Point) Add(q Point) Point    { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point    { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) Mul(s float64) Point  { return Point{p.X * s, p.Y * s} }
func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }
func (p Point) Near(q Point, tol float64) bool {
	return math.Abs(p.X-q.X) <= tol && math.Abs(p.Y-q.Y) <= tol
}

// Rect is an axis-aligned rectangle. Min is inclusive, Max exclusive for
// pixel purposes, but containment tests treat both edges as inside.
type Rect struct {
	Min, Max Point
}

// XYWH builds a Rect from a top-left corner and a size.
func XYWH(x, y, w, h float64) Rect {
	return Rect{Min: Point{x, y}, Max: Point{x + w, y + h}}
}

// Bounds returns the smallest Rect holding every point. Zero points give
// the zero Rect.
func Bounds(pts ...Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	r := Rect{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		r.Min.X = math.Min(r.Min.X, p.X)
		r.Min.Y = math.Min(r.Min.Y, p.Y)
		r.Max.X = math.Max(r.Max.X, p.X)
		r.Max.Y = math.Max(r.Max.Y, p.Y)
	}
	return r
}

func (r Rect) W() float64 { return r.Max.X - r.Min.X }
func (r Rect) H() float64 { return r.Max.Y - r.Min.Y }

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{(r.Min.X + r.Max.X) / 2, (r.Min.Y + r.Max.Y) / 2}
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.W() <= 0 || r.H() <= 0 }

// Quad returns the corners of r in Quad order.
func (r Rect) Quad() Quad {
	return Quad{
		TopLeft:     r.Min,
		TopRight:    {r.Max.X, r.Min.Y},
		BottomRight: r.Max,
		BottomLeft:  {r.Min.X, r.Max.Y},
	}
}

// Corner indices of a Quad, clockwise from the top-left.
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
)

// Quad is four independently positioned corners.
type Quad [4]Point

// Bounds returns the axis-aligned bounding box of the quad.
func (q Quad) Bounds() Rect { return Bounds(q[:]...) }

// Translate moves every corner by (dx, dy).
func (q Quad) Translate(dx, dy float64) Quad {
	for i := range q {
		q[i].X += dx
		q[i].Y += dy
	}
	return q
}
