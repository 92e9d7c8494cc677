// Package draw implements the clipped freehand drawing surface: strokes are
// accepted only inside a pattern piece's region, images can be placed and
// moved, and every mutation is undoable.
package draw

import (
	"image"
	"log/slog"
	"slices"

	"PatternBoard/internal/applog"
	"PatternBoard/internal/config"
	"PatternBoard/internal/pattern"
	"PatternBoard/internal/state"
)

type Tool int

const (
	ToolInk Tool = iota
	ToolErase
	ToolSelect
)

func (t Tool) String() string {
	switch t {
	case ToolInk:
		return "ink"
	case ToolErase:
		return "erase"
	case ToolSelect:
		return "select"
	}
	return "unknown"
}

// RegionFill is the colour the pattern piece is painted with beneath the
// drawing layer.
const RegionFill = "#f4f4f4"

// Engine owns one drawing surface. It is driven from a single goroutine.
type Engine struct {
	width, height int
	freehand      config.Freehand

	tool        Tool
	color       string
	strokeWidth float32

	region   pattern.ClipRegion
	elements []state.Element
	history  *state.History

	active  int // index of the stroke being drawn, or -1
	outside bool

	selected  string
	gesture   selectGesture
	dragged   bool
	dragLast  state.Point
	corner    int
	startBox  state.Element
	rotOffset float32

	bus *state.Bus
	log *slog.Logger
}

// NewEngine returns an empty surface sized and styled by cfg. bus may be nil.
func NewEngine(cfg config.Drawing, bus *state.Bus) *Engine {
	return &Engine{
		width:       cfg.Width,
		height:      cfg.Height,
		freehand:    cfg.Freehand,
		color:       cfg.Color,
		strokeWidth: cfg.StrokeWidth,
		history:     state.NewHistory(cfg.HistoryLimit),
		active:      -1,
		bus:         bus,
		log:         applog.Component("draw"),
	}
}

func (e *Engine) Size() (w, h int)           { return e.width, e.height }
func (e *Engine) Tool() Tool                 { return e.tool }
func (e *Engine) Color() string              { return e.color }
func (e *Engine) StrokeWidth() float32       { return e.strokeWidth }
func (e *Engine) Freehand() config.Freehand  { return e.freehand }
func (e *Engine) Region() pattern.ClipRegion { return e.region }
func (e *Engine) History() *state.History    { return e.history }
func (e *Engine) Selected() string           { return e.selected }
func (e *Engine) Drawing() bool              { return e.active >= 0 }

// SetTool switches the active tool and ends any gesture in progress.
func (e *Engine) SetTool(t Tool) {
	e.PointerUp()
	e.tool = t
	if t != ToolSelect {
		e.selected = ""
	}
}

func (e *Engine) SetColor(c string) { e.color = c }

func (e *Engine) SetStrokeWidth(w float32) {
	if w > 0 {
		e.strokeWidth = w
	}
}

// Elements returns a deep copy of the element list.
func (e *Engine) Elements() []state.Element {
	return state.CloneAll(e.elements)
}

// SetRegion replaces the clip region. The element list and both history
// stacks are reset, since strokes belong to the previous piece.
func (e *Engine) SetRegion(r pattern.ClipRegion) {
	e.region = r
	e.elements = nil
	e.history.Reset()
	e.active, e.outside = -1, false
	e.selected, e.gesture = "", selectNone
	e.log.Info("region set", "bounds", r.Bounds, "circle", r.Circle)
	e.publish(state.EventRegionChanged, "")
}

// Load replaces the element list with previously saved elements and clears
// the history.
func (e *Engine) Load(elems []state.Element) {
	e.elements = state.CloneAll(elems)
	e.history.Reset()
	e.active, e.selected, e.gesture = -1, "", selectNone
	e.publish(state.EventSceneReset, "")
}

// PointerDown starts a stroke. With the select tool it grabs a resize or
// rotate handle of the selected image, or picks the topmost image under
// the pointer. Strokes never start outside the region.
func (e *Engine) PointerDown(x, y float32) {
	e.PointerDownPressure(x, y, 0)
}

// PointerDownPressure is PointerDown with a device pressure in (0, 1].
func (e *Engine) PointerDownPressure(x, y, pressure float32) {
	if e.tool == ToolSelect {
		e.pick(x, y)
		return
	}
	if e.region.Empty() || !e.region.Contains(x, y) {
		return
	}
	e.record()

	kind := state.KindInk
	col := e.color
	if e.tool == ToolErase {
		kind, col = state.KindErase, ""
	}
	el := state.Element{
		ID:          state.NewID(),
		Kind:        kind,
		Points:      []state.Point{{X: x, Y: y, Pressure: pressure}},
		Color:       col,
		StrokeWidth: e.strokeWidth,
	}
	e.elements = append(e.elements, el)
	e.active, e.outside = len(e.elements)-1, false
	e.publish(state.EventElementAdded, el.ID)
}

// PointerMove extends the active stroke. Samples outside the region are
// dropped without ending the stroke; the first sample back inside starts a
// new run so the stroke shows a gap.
func (e *Engine) PointerMove(x, y float32) {
	e.PointerMovePressure(x, y, 0)
}

func (e *Engine) PointerMovePressure(x, y, pressure float32) {
	if e.tool == ToolSelect {
		e.drag(x, y)
		return
	}
	if e.active < 0 {
		return
	}
	if !e.region.Contains(x, y) {
		e.outside = true
		return
	}
	el := &e.elements[e.active]
	if e.outside {
		el.Breaks = append(el.Breaks, len(el.Points))
		e.outside = false
	}
	el.Points = append(el.Points, state.Point{X: x, Y: y, Pressure: pressure})
}

// PointerUp ends the current gesture.
func (e *Engine) PointerUp() {
	if e.active >= 0 {
		e.publish(state.EventElementChanged, e.elements[e.active].ID)
	}
	if e.gesture != selectNone && e.dragged {
		e.publish(state.EventElementChanged, e.selected)
	}
	e.active, e.outside, e.gesture = -1, false, selectNone
}

func (e *Engine) index(id string) int {
	return slices.IndexFunc(e.elements, func(el state.Element) bool { return el.ID == id })
}

// DeleteSelected removes the image picked with the select tool.
func (e *Engine) DeleteSelected() bool {
	i := e.index(e.selected)
	if i < 0 {
		return false
	}
	e.record()
	id := e.selected
	e.elements = slices.Delete(e.elements, i, i+1)
	e.selected, e.gesture = "", selectNone
	e.publish(state.EventElementRemoved, id)
	return true
}

// PlaceImage adds img centred on the surface, fitted inside a square of
// 80% of a sixth of the shorter surface side. Placement ignores the
// region.
func (e *Engine) PlaceImage(img image.Image, source string) state.Element {
	b := img.Bounds()
	nw, nh := b.Dx(), b.Dy()
	limit := float32(min(e.width, e.height)) / 6 * 0.8
	w, h := limit, limit
	if nw > 0 && nh > 0 {
		s := min(limit/float32(nw), limit/float32(nh))
		w, h = float32(nw)*s, float32(nh)*s
	}
	el := state.Element{
		ID:            state.NewID(),
		Kind:          state.KindImage,
		X:             (float32(e.width) - w) / 2,
		Y:             (float32(e.height) - h) / 2,
		Width:         w,
		Height:        h,
		Source:        source,
		NaturalWidth:  nw,
		NaturalHeight: nh,
		Image:         img,
	}
	e.record()
	e.elements = append(e.elements, el)
	e.publish(state.EventElementAdded, el.ID)
	return el
}

// Clear removes every element. It can be undone.
func (e *Engine) Clear() {
	if len(e.elements) == 0 {
		return
	}
	e.record()
	e.elements = nil
	e.active, e.selected, e.gesture = -1, "", selectNone
	e.publish(state.EventSceneReset, "")
}

// Undo restores the previous snapshot. It reports false when there is
// nothing to undo.
func (e *Engine) Undo() bool {
	elems, ok := e.history.Undo(e.elements)
	if !ok {
		return false
	}
	e.elements = elems
	e.active, e.gesture = -1, selectNone
	e.publish(state.EventSceneReset, "")
	return true
}

func (e *Engine) Redo() bool {
	elems, ok := e.history.Redo(e.elements)
	if !ok {
		return false
	}
	e.elements = elems
	e.active, e.gesture = -1, selectNone
	e.publish(state.EventSceneReset, "")
	return true
}

func (e *Engine) record() {
	e.history.Record(e.elements)
}

// RenderLayer draws only the element layer on a transparent surface.
func (e *Engine) RenderLayer() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, e.width, e.height))
	RenderElements(dst, e.elements, e.freehand)
	return dst
}

// Render draws the region background with the element layer on top, plus
// the handles of the image picked with the select tool.
func (e *Engine) Render() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, e.width, e.height))
	if !e.region.Empty() {
		fillMask(dst, e.region.Mask(e.width, e.height), ParseColor(RegionFill))
	}
	layer := e.RenderLayer()
	overlay(dst, layer)
	if i := e.index(e.selected); i >= 0 && e.tool == ToolSelect {
		drawHandles(dst, e.elements[i])
	}
	return dst
}

func (e *Engine) publish(t state.EventType, id string) {
	e.bus.Publish(state.Event{Type: t, Surface: state.SurfaceDraw, ElementID: id})
}
