package composite

import (
	"image"
	"math"

	"PatternBoard/internal/geom"
)

// State is the transform state of an element. Entering Warped bakes any
// affine transform first, so an element is never in both.
type State int

const (
	Affine State = iota
	Warped
)

func (s State) String() string {
	if s == Warped {
		return "warped"
	}
	return "affine"
}

// Element is a raster placed on the compositing surface. X, Y, Width and
// Height describe the unscaled box; Rotation (degrees), Scale and Flip are
// applied about the box centre.
type Element struct {
	ID  string `json:"id"`
	Key string `json:"key"`

	Source        string `json:"source"`
	NaturalWidth  int    `json:"naturalWidth"`
	NaturalHeight int    `json:"naturalHeight"`

	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Rotation float64 `json:"rotation"`
	Scale    float64 `json:"scale"`
	Flip     float64 `json:"flip"` // 1 or -1, mirrors horizontally

	Warp *geom.Quad `json:"warp,omitempty"`

	Placeholder bool        `json:"placeholder,omitempty"`
	Image       *image.RGBA `json:"-"`
}

// Transform is an affine adjustment requested when an element is placed.
type Transform struct {
	Rotation float64
	Scale    float64
	Flip     bool
}

func (e *Element) State() State {
	if e.Warp != nil {
		return Warped
	}
	return Affine
}

func (e *Element) Box() geom.Rect {
	return geom.XYWH(e.X, e.Y, e.Width, e.Height)
}

// Identity reports whether rotation, scale and flip leave the box as is.
func (e *Element) Identity() bool {
	return e.Rotation == 0 && e.Scale == 1 && e.Flip == 1
}

func (e *Element) resetTransform() {
	e.Rotation, e.Scale, e.Flip = 0, 1, 1
}

// Matrix maps unscaled box coordinates to surface coordinates.
func (e *Element) Matrix() geom.Matrix {
	if e.Warp != nil {
		return geom.Identity()
	}
	c := e.Box().Center()
	return geom.Translate(c.X, c.Y).
		Multiply(geom.Rotate(e.Rotation * math.Pi / 180)).
		Multiply(geom.Scale(e.Scale*e.Flip, e.Scale)).
		Multiply(geom.Translate(-c.X, -c.Y))
}

// sourceMatrix maps source pixels to surface coordinates.
func (e *Element) sourceMatrix() geom.Matrix {
	b := e.Image.Bounds()
	return e.Matrix().
		Multiply(geom.Translate(e.X, e.Y)).
		Multiply(geom.Scale(e.Width/float64(b.Dx()), e.Height/float64(b.Dy()))).
		Multiply(geom.Translate(-float64(b.Min.X), -float64(b.Min.Y)))
}

// Corners returns the element's visual outline on the surface.
func (e *Element) Corners() geom.Quad {
	if e.Warp != nil {
		return *e.Warp
	}
	q := e.Box().Quad()
	m := e.Matrix()
	for i := range q {
		q[i] = m.Apply(q[i])
	}
	return q
}

// VisualBounds is the axis-aligned box around the rotated, scaled corners.
func (e *Element) VisualBounds() geom.Rect {
	return e.Corners().Bounds()
}

// Hit reports whether p selects the element: inside the warp quad when
// warped, otherwise inside the visual bounds.
func (e *Element) Hit(p geom.Point) bool {
	if e.Warp != nil {
		return quadContains(*e.Warp, p)
	}
	return e.VisualBounds().Contains(p)
}

func quadContains(q geom.Quad, p geom.Point) bool {
	inside := false
	j := len(q) - 1
	for i := range q {
		a, b := q[i], q[j]
		if (a.Y > p.Y) != (b.Y > p.Y) && p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
		j = i
	}
	return inside
}
