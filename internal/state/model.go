package state

import (
	"image"
	"slices"

	"github.com/google/uuid"
)

// Point is a stroke sample. Pressure is zero when the input device reports
// none and the outline simulates it from velocity.
type Point struct {
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
	Pressure float32 `json:"pressure,omitempty"`
}

type Kind string

const (
	KindInk   Kind = "ink"
	KindErase Kind = "erase"
	KindImage Kind = "image"
)

// Element is one entry of a drawing surface's ordered element list. Stroke
// fields are used by ink and erase elements, the rest by image elements.
type Element struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`

	Points      []Point `json:"points,omitempty"`
	Breaks      []int   `json:"breaks,omitempty"` // indices into Points where a new run starts
	Color       string  `json:"color,omitempty"`
	StrokeWidth float32 `json:"strokeWidth,omitempty"`

	X             float32 `json:"x,omitempty"`
	Y             float32 `json:"y,omitempty"`
	Width         float32 `json:"width,omitempty"`
	Height        float32 `json:"height,omitempty"`
	Rotation      float32 `json:"rotation,omitempty"`
	Source        string  `json:"source,omitempty"`
	NaturalWidth  int     `json:"naturalWidth,omitempty"`
	NaturalHeight int     `json:"naturalHeight,omitempty"`

	// Image is the decoded source. It is never mutated once set, so clones
	// share it.
	Image image.Image `json:"-"`
}

// NewID returns a fresh element identifier.
func NewID() string {
	return uuid.NewString()
}

// IsStroke reports whether e is an ink or erase stroke.
func (e Element) IsStroke() bool {
	return e.Kind == KindInk || e.Kind == KindErase
}

// Clone returns a copy of e that shares no mutable slices with it.
func (e Element) Clone() Element {
	e.Points = slices.Clone(e.Points)
	e.Breaks = slices.Clone(e.Breaks)
	return e
}

// Runs splits the stroke's points at its breaks. Every run is non-empty.
func (e Element) Runs() [][]Point {
	runs := make([][]Point, 0, len(e.Breaks)+1)
	start := 0
	for _, b := range e.Breaks {
		if b > start && b <= len(e.Points) {
			runs = append(runs, e.Points[start:b])
			start = b
		}
	}
	if start < len(e.Points) {
		runs = append(runs, e.Points[start:])
	}
	return runs
}

// Bounds returns the element's axis-aligned extent in surface pixels,
// ignoring stroke width and rotation.
func (e Element) Bounds() (minX, minY, maxX, maxY float32) {
	if !e.IsStroke() {
		return e.X, e.Y, e.X + e.Width, e.Y + e.Height
	}
	if len(e.Points) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = e.Points[0].X, e.Points[0].Y
	maxX, maxY = minX, minY
	for _, p := range e.Points[1:] {
		minX, minY = min(minX, p.X), min(minY, p.Y)
		maxX, maxY = max(maxX, p.X), max(maxY, p.Y)
	}
	return minX, minY, maxX, maxY
}

// CloneAll deep-copies an element list.
func CloneAll(elems []Element) []Element {
	if elems == nil {
		return nil
	}
	out := make([]Element, len(elems))
	for i, e := range elems {
		out[i] = e.Clone()
	}
	return out
}
