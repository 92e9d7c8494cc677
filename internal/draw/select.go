package draw

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"PatternBoard/internal/state"
)

const (
	// handleSize is the side of the square resize handles at image corners.
	handleSize = 8
	// rotateOffset places the rotate handle above the top edge.
	rotateOffset = 20
	rotateRadius = 6
	// minImageEdge is the smallest width or height a resize can leave.
	minImageEdge = 20
)

// HandleColor paints the selection handles of a picked image.
var HandleColor = color.RGBA{0x21, 0x96, 0xf3, 0xff}

type selectGesture int

const (
	selectNone selectGesture = iota
	selectMove
	selectResize
	selectRotate
)

// Image corners in handle order.
const (
	cornerTopLeft = iota
	cornerTopRight
	cornerBottomLeft
	cornerBottomRight
)

func corners(el state.Element) [4]state.Point {
	return [4]state.Point{
		cornerTopLeft:     {X: el.X, Y: el.Y},
		cornerTopRight:    {X: el.X + el.Width, Y: el.Y},
		cornerBottomLeft:  {X: el.X, Y: el.Y + el.Height},
		cornerBottomRight: {X: el.X + el.Width, Y: el.Y + el.Height},
	}
}

func rotateHandle(el state.Element) state.Point {
	return state.Point{X: el.X + el.Width/2, Y: el.Y - rotateOffset}
}

func centre(el state.Element) (float32, float32) {
	return el.X + el.Width/2, el.Y + el.Height/2
}

// pick starts a select-tool gesture. Handles of the selected image win
// over image bodies, which are tested from the top down.
func (e *Engine) pick(x, y float32) {
	e.gesture, e.dragged = selectNone, false
	e.dragLast = state.Point{X: x, Y: y}

	if i := e.index(e.selected); i >= 0 {
		el := e.elements[i]
		if h := rotateHandle(el); math32.Hypot(x-h.X, y-h.Y) <= rotateRadius {
			cx, cy := centre(el)
			e.gesture = selectRotate
			e.rotOffset = math32.Atan2(y-cy, x-cx) - el.Rotation*math32.Pi/180
			return
		}
		for c, p := range corners(el) {
			if math32.Abs(x-p.X) <= handleSize/2 && math32.Abs(y-p.Y) <= handleSize/2 {
				e.gesture, e.corner = selectResize, c
				e.startBox = el
				return
			}
		}
	}

	e.selected = ""
	for i := len(e.elements) - 1; i >= 0; i-- {
		el := e.elements[i]
		if el.Kind != state.KindImage {
			continue
		}
		if x >= el.X && x <= el.X+el.Width && y >= el.Y && y <= el.Y+el.Height {
			e.selected = el.ID
			e.gesture = selectMove
			return
		}
	}
}

// drag continues the select-tool gesture. The first movement records an
// undo snapshot, so one gesture is one undo step.
func (e *Engine) drag(x, y float32) {
	if e.gesture == selectNone {
		return
	}
	i := e.index(e.selected)
	if i < 0 {
		e.gesture = selectNone
		return
	}
	if !e.dragged {
		e.record()
		e.dragged = true
	}
	el := &e.elements[i]
	switch e.gesture {
	case selectMove:
		el.X += x - e.dragLast.X
		el.Y += y - e.dragLast.Y
	case selectResize:
		resizeImage(el, e.startBox, e.corner, x, y)
	case selectRotate:
		cx, cy := centre(*el)
		el.Rotation = (math32.Atan2(y-cy, x-cx) - e.rotOffset) * 180 / math32.Pi
	}
	e.dragLast = state.Point{X: x, Y: y}
}

// resizeImage moves corner c of the box to (x, y) while the opposite corner
// of start stays fixed.
func resizeImage(el *state.Element, start state.Element, c int, x, y float32) {
	left := c == cornerTopLeft || c == cornerBottomLeft
	top := c == cornerTopLeft || c == cornerTopRight

	ax, ay := start.X, start.Y
	if left {
		ax = start.X + start.Width
	}
	if top {
		ay = start.Y + start.Height
	}
	var w, h float32
	if left {
		w = max(ax-x, minImageEdge)
	} else {
		w = max(x-ax, minImageEdge)
	}
	if top {
		h = max(ay-y, minImageEdge)
	} else {
		h = max(y-ay, minImageEdge)
	}

	el.X, el.Y = ax, ay
	if left {
		el.X = ax - w
	}
	if top {
		el.Y = ay - h
	}
	el.Width, el.Height = w, h
}

// drawHandles marks the selected image's corners and rotate handle.
func drawHandles(dst *image.RGBA, el state.Element) {
	col := image.NewUniform(HandleColor)
	for _, p := range corners(el) {
		r := image.Rect(
			int(math32.Floor(p.X-handleSize/2+0.5)), int(math32.Floor(p.Y-handleSize/2+0.5)),
			int(math32.Floor(p.X+handleSize/2+0.5)), int(math32.Floor(p.Y+handleSize/2+0.5)),
		)
		xdraw.Draw(dst, r, col, image.Point{}, xdraw.Over)
	}

	h := rotateHandle(el)
	r := image.Rect(
		int(math32.Floor(h.X-rotateRadius)), int(math32.Floor(h.Y-rotateRadius)),
		int(math32.Ceil(h.X+rotateRadius)), int(math32.Ceil(h.Y+rotateRadius)),
	)
	if !r.In(dst.Bounds()) {
		return
	}
	z := vector.NewRasterizer(r.Dx(), r.Dy())
	addDisc(z, vec2{h.X - float32(r.Min.X), h.Y - float32(r.Min.Y)}, rotateRadius)
	z.Draw(dst, r, col, image.Point{})
}
