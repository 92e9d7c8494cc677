// Package composite implements the compositing surface: raster elements
// that can be dragged, resized, rotated, scaled, flipped and
// perspective-warped over a background.
package composite

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"slices"

	"github.com/anthonynsimon/bild/transform"

	"PatternBoard/internal/applog"
	"PatternBoard/internal/asset"
	"PatternBoard/internal/config"
	"PatternBoard/internal/geom"
	"PatternBoard/internal/state"
	"PatternBoard/internal/store"
)

// Mode selects how pointer gestures on the selected element are read.
type Mode int

const (
	Normal Mode = iota
	Warp
)

// Gesture is the pointer interaction in progress.
type Gesture int

const (
	GestureNone Gesture = iota
	GestureDrag
	GestureResize
	GestureWarp
)

// Modifier is a keyboard modifier held during a pointer press.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
)

const (
	// initialEdge is the longest edge of a freshly placed element.
	initialEdge = 120
	// placeholderEdge sizes the box shown for sources that fail to decode.
	placeholderEdge = 100
	// bakePrefix namespaces baked rasters in the store.
	bakePrefix = "bake/"
)

// PlaceholderColor fills elements whose source could not be decoded.
var PlaceholderColor = color.RGBA{0xff, 0x44, 0x44, 0xff}

// Engine owns one compositing surface. It is driven from a single
// goroutine; only Place and the mode switches block on I/O.
type Engine struct {
	cfg        config.Composite
	fetch      asset.Fetcher
	store      store.Store
	background image.Image

	elements []*Element
	selected string
	mode     Mode

	gesture  Gesture
	corner   int
	last     geom.Point
	start    geom.Point
	startBox geom.Rect

	bus *state.Bus
	log *slog.Logger
}

// NewEngine returns an empty surface. Baked rasters are written to s when it
// is non-nil so they can be fetched again later; bus may be nil.
func NewEngine(cfg config.Composite, f asset.Fetcher, s store.Store, bus *state.Bus) *Engine {
	return &Engine{
		cfg:   cfg,
		fetch: f,
		store: s,
		bus:   bus,
		log:   applog.Component("composite"),
	}
}

func (e *Engine) Size() (w, h int) { return e.cfg.Width, e.cfg.Height }
func (e *Engine) Mode() Mode       { return e.mode }
func (e *Engine) Gesture() Gesture { return e.gesture }

// SetBackground sets the raster drawn beneath every element, stretched to
// the surface.
func (e *Engine) SetBackground(img image.Image) {
	if img == nil {
		e.background = nil
		return
	}
	e.background = transform.Resize(img, e.cfg.Width, e.cfg.Height, transform.Linear)
}

// Elements returns copies of the elements in paint order.
func (e *Engine) Elements() []Element {
	out := make([]Element, len(e.elements))
	for i, el := range e.elements {
		out[i] = *el
		if el.Warp != nil {
			q := *el.Warp
			out[i].Warp = &q
		}
	}
	return out
}

// Selected returns the selected element, or nil.
func (e *Engine) Selected() *Element {
	return e.find(e.selected)
}

func (e *Engine) find(id string) *Element {
	if id == "" {
		return nil
	}
	for _, el := range e.elements {
		if el.ID == id {
			return el
		}
	}
	return nil
}

// Select makes id the selected element. An unknown id clears the selection.
func (e *Engine) Select(id string) {
	if e.find(id) == nil {
		id = ""
	}
	e.selected = id
}

// Place adds the image at src under key and selects it. A key already on
// the surface is only re-selected. Sources that cannot be loaded become a
// red placeholder box. A non-nil t is baked into the raster. In warp mode
// the new element starts warped with its box corners as handles.
func (e *Engine) Place(ctx context.Context, src, key string, t *Transform) (Element, error) {
	if err := ctx.Err(); err != nil {
		return Element{}, err
	}
	for _, el := range e.elements {
		if el.Key == key {
			e.selected = el.ID
			return *el, nil
		}
	}

	el := &Element{ID: state.NewID(), Key: key, Source: src}
	el.resetTransform()
	img, err := asset.LoadImage(ctx, e.fetch, src)
	if err != nil {
		if ctx.Err() != nil {
			return Element{}, ctx.Err()
		}
		e.log.Warn("placing placeholder", "source", src, "err", err)
		img = asset.Placeholder(placeholderEdge, placeholderEdge, PlaceholderColor)
		el.Placeholder = true
		el.Width, el.Height = placeholderEdge, placeholderEdge
	} else {
		el.Width, el.Height = e.initialSize(img.Bounds().Dx(), img.Bounds().Dy())
	}
	el.Image = img
	el.NaturalWidth, el.NaturalHeight = img.Bounds().Dx(), img.Bounds().Dy()
	el.X = (float64(e.cfg.Width) - el.Width) / 2
	el.Y = (float64(e.cfg.Height) - el.Height) / 2

	if t != nil {
		el.Rotation, el.Scale = t.Rotation, t.Scale
		if el.Scale <= 0 {
			el.Scale = 1
		}
		if t.Flip {
			el.Flip = -1
		}
		if !el.Identity() {
			if err := e.bake(ctx, el, false); err != nil {
				return Element{}, err
			}
		}
	}

	if e.mode == Warp {
		q := el.Box().Quad()
		el.Warp = &q
	}

	e.elements = append(e.elements, el)
	e.selected = el.ID
	e.log.Info("element placed", "id", el.ID, "key", key, "size", [2]float64{el.Width, el.Height})
	e.publish(state.EventElementAdded, el.ID)
	return *el, nil
}

// initialSize fits the longest edge to initialEdge, then grows the box so
// neither edge is below MinEdge and clamps both to MaxEdge.
func (e *Engine) initialSize(w, h int) (float64, float64) {
	if w <= 0 || h <= 0 {
		return placeholderEdge, placeholderEdge
	}
	s := initialEdge / math.Max(float64(w), float64(h))
	fw, fh := float64(w)*s, float64(h)*s
	if short := math.Min(fw, fh); short < e.cfg.MinEdge {
		fw, fh = fw*e.cfg.MinEdge/short, fh*e.cfg.MinEdge/short
	}
	return clamp(fw, e.cfg.MinEdge, e.cfg.MaxEdge), clamp(fh, e.cfg.MinEdge, e.cfg.MaxEdge)
}

// bake flattens the element's affine transform, or its warp when warped is
// set, into a new raster and persists it.
func (e *Engine) bake(ctx context.Context, el *Element, warped bool) error {
	if warped {
		bakeWarp(el, e.cfg.Supersample, e.cfg.MaxBakeEdge)
	} else {
		bakeAffine(el, e.cfg.Supersample, e.cfg.MaxBakeEdge)
	}
	el.Placeholder = false
	if e.store == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, el.Image); err != nil {
		return err
	}
	key := bakePrefix + state.NewID()
	if err := e.store.Save(ctx, key, buf.Bytes()); err != nil {
		return err
	}
	el.Source = asset.SchemeStore + key
	e.log.Debug("raster baked", "id", el.ID, "ref", el.Source, "pixels", [2]int{el.NaturalWidth, el.NaturalHeight})
	return nil
}

// SetMode switches between normal and warp editing. Entering warp mode
// bakes every transformed element and gives each its box corners as warp
// handles; leaving it resamples every warped element into a flat raster.
func (e *Engine) SetMode(ctx context.Context, m Mode) error {
	if m == e.mode {
		return nil
	}
	e.gesture = GestureNone
	for _, el := range e.elements {
		switch {
		case m == Warp && el.Warp == nil:
			if !el.Identity() {
				if err := e.bake(ctx, el, false); err != nil {
					return err
				}
			}
			q := el.Box().Quad()
			el.Warp = &q
		case m == Normal && el.Warp != nil:
			if err := e.bake(ctx, el, true); err != nil {
				return err
			}
		}
	}
	e.mode = m
	e.log.Info("mode changed", "warp", m == Warp, "elements", len(e.elements))
	e.publish(state.EventSceneReset, "")
	return nil
}

// PointerDown hit-tests in priority order: a warp corner of the selected
// element, a resize handle of the selected element, then the body of any
// element from the top down. A miss clears the selection.
func (e *Engine) PointerDown(x, y float64, mods Modifier) {
	p := geom.Pt(x, y)
	tol := e.cfg.HandleTolerance
	e.start, e.last = p, p

	if sel := e.Selected(); sel != nil {
		if e.mode == Warp && sel.Warp != nil {
			for i, c := range sel.Warp {
				if c.Near(p, tol) {
					e.gesture, e.corner = GestureWarp, i
					return
				}
			}
		}
		if e.mode == Normal && sel.Warp == nil {
			for i, c := range sel.VisualBounds().Quad() {
				if c.Near(p, tol) {
					e.gesture, e.corner = GestureResize, i
					e.startBox = sel.Box()
					return
				}
			}
		}
	}

	for i := len(e.elements) - 1; i >= 0; i-- {
		if e.elements[i].Hit(p) {
			e.selected = e.elements[i].ID
			e.gesture = GestureDrag
			return
		}
	}
	e.selected = ""
	e.gesture = GestureNone
}

// PointerMove continues the gesture started by PointerDown.
func (e *Engine) PointerMove(x, y float64, mods Modifier) {
	sel := e.Selected()
	if sel == nil || e.gesture == GestureNone {
		return
	}
	p := geom.Pt(x, y)
	w, h := float64(e.cfg.Width), float64(e.cfg.Height)

	switch e.gesture {
	case GestureDrag:
		d := p.Sub(e.last)
		nx := clamp(sel.X+d.X, 0, w-sel.Width)
		ny := clamp(sel.Y+d.Y, 0, h-sel.Height)
		dx, dy := nx-sel.X, ny-sel.Y
		sel.X, sel.Y = nx, ny
		if sel.Warp != nil {
			q := sel.Warp.Translate(dx, dy)
			sel.Warp = &q
		}
	case GestureWarp:
		sel.Warp[e.corner] = geom.Pt(clamp(p.X, 0, w), clamp(p.Y, 0, h))
	case GestureResize:
		e.resize(sel, p, mods&ModShift != 0)
	}
	e.last = p
}

// resize moves the grabbed corner of the unscaled box while the opposite
// corner stays put. The box is kept on the surface.
func (e *Engine) resize(el *Element, p geom.Point, uniform bool) {
	s := el.Scale
	if s == 0 {
		s = 1
	}
	d := p.Sub(e.start).Mul(1 / s)
	sb := e.startBox
	left := e.corner == geom.TopLeft || e.corner == geom.BottomLeft
	top := e.corner == geom.TopLeft || e.corner == geom.TopRight

	nw, nh := sb.W()+d.X, sb.H()+d.Y
	if left {
		nw = sb.W() - d.X
	}
	if top {
		nh = sb.H() - d.Y
	}
	if uniform {
		r := (nw/sb.W() + nh/sb.H()) / 2
		r = math.Max(r, math.Max(e.cfg.MinResize/sb.W(), e.cfg.MinResize/sb.H()))
		nw, nh = sb.W()*r, sb.H()*r
	} else {
		nw = math.Max(nw, e.cfg.MinResize)
		nh = math.Max(nh, e.cfg.MinResize)
	}

	x, y := sb.Min.X, sb.Min.Y
	if left {
		x = sb.Max.X - nw
	}
	if top {
		y = sb.Max.Y - nh
	}
	w, h := float64(e.cfg.Width), float64(e.cfg.Height)
	x = clamp(x, 0, w-nw)
	y = clamp(y, 0, h-nh)
	el.X, el.Y = x, y
	el.Width, el.Height = math.Min(nw, w-x), math.Min(nh, h-y)
}

// PointerUp ends the gesture.
func (e *Engine) PointerUp() {
	if e.gesture != GestureNone && e.selected != "" {
		e.publish(state.EventElementChanged, e.selected)
	}
	e.gesture = GestureNone
}

// SetRotation sets the selected element's rotation in degrees. Warped
// elements keep an identity transform, so it reports false for them.
func (e *Engine) SetRotation(deg float64) bool {
	return e.adjust(func(el *Element) { el.Rotation = math.Mod(deg, 360) })
}

// SetScale sets the selected element's uniform scale factor.
func (e *Engine) SetScale(s float64) bool {
	if s <= 0 {
		return false
	}
	return e.adjust(func(el *Element) { el.Scale = s })
}

// SetFlip mirrors the selected element horizontally.
func (e *Engine) SetFlip(flipped bool) bool {
	return e.adjust(func(el *Element) {
		el.Flip = 1
		if flipped {
			el.Flip = -1
		}
	})
}

func (e *Engine) adjust(fn func(*Element)) bool {
	sel := e.Selected()
	if sel == nil || sel.Warp != nil {
		return false
	}
	fn(sel)
	e.publish(state.EventElementChanged, sel.ID)
	return true
}

// Delete removes the element with the given id.
func (e *Engine) Delete(id string) bool {
	i := slices.IndexFunc(e.elements, func(el *Element) bool { return el.ID == id })
	if i < 0 {
		return false
	}
	e.elements = slices.Delete(e.elements, i, i+1)
	if e.selected == id {
		e.selected = ""
		e.gesture = GestureNone
	}
	e.publish(state.EventElementRemoved, id)
	return true
}

// Clear removes every element and returns to normal mode.
func (e *Engine) Clear() {
	e.elements = nil
	e.selected = ""
	e.gesture = GestureNone
	e.mode = Normal
	e.publish(state.EventSceneReset, "")
}

// Load replaces the surface contents with els, which must already carry
// decoded images. Warp corners put the surface in warp mode.
func (e *Engine) Load(els []Element) {
	e.elements = nil
	e.mode = Normal
	for _, el := range els {
		if el.Warp != nil {
			q := *el.Warp
			el.Warp = &q
			e.mode = Warp
		}
		if el.Scale == 0 {
			el.Scale = 1
		}
		if el.Flip == 0 {
			el.Flip = 1
		}
		e.elements = append(e.elements, &el)
	}
	e.selected, e.gesture = "", GestureNone
	e.publish(state.EventSceneReset, "")
}

func (e *Engine) publish(t state.EventType, id string) {
	e.bus.Publish(state.Event{Type: t, Surface: state.SurfaceComposite, ElementID: id})
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
