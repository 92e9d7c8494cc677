package ui

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"PatternBoard/internal/composite"
)

// CompositeBoard shows the compositing surface with its selection overlay.
type CompositeBoard struct {
	widget.BaseWidget
	engine  *composite.Engine
	view    surfaceView
	mods    composite.Modifier
	pressed bool

	// OnSelect runs after a press with the new selection, possibly nil.
	OnSelect func(*composite.Element)
	OnChange func()
}

var _ fyne.Widget = (*CompositeBoard)(nil)
var _ fyne.Draggable = (*CompositeBoard)(nil)
var _ desktop.Mouseable = (*CompositeBoard)(nil)

func NewCompositeBoard(e *composite.Engine) *CompositeBoard {
	w, h := e.Size()
	b := &CompositeBoard{engine: e, view: surfaceView{w: w, h: h}}
	b.ExtendBaseWidget(b)
	return b
}

func (b *CompositeBoard) Engine() *composite.Engine { return b.engine }

func (b *CompositeBoard) point(p fyne.Position) (float64, float64) {
	x, y := b.view.toSurface(b.Size(), p)
	return float64(x), float64(y)
}

func (b *CompositeBoard) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	b.mods = 0
	if ev.Modifier&fyne.KeyModifierShift != 0 {
		b.mods |= composite.ModShift
	}
	x, y := b.point(ev.Position)
	b.engine.PointerDown(x, y, b.mods)
	b.pressed = true
	b.Refresh()
	if b.OnSelect != nil {
		b.OnSelect(b.engine.Selected())
	}
}

func (b *CompositeBoard) Dragged(ev *fyne.DragEvent) {
	if !b.pressed {
		return
	}
	x, y := b.point(ev.Position)
	b.engine.PointerMove(x, y, b.mods)
	b.Refresh()
}

func (b *CompositeBoard) MouseUp(*desktop.MouseEvent) { b.release() }
func (b *CompositeBoard) DragEnd()                    { b.release() }

func (b *CompositeBoard) release() {
	if !b.pressed {
		return
	}
	b.pressed = false
	b.engine.PointerUp()
	b.Refresh()
	if b.OnChange != nil {
		b.OnChange()
	}
}

func (b *CompositeBoard) MouseIn(*desktop.MouseEvent)    {}
func (b *CompositeBoard) MouseOut()                      {}
func (b *CompositeBoard) MouseMoved(*desktop.MouseEvent) {}

func (b *CompositeBoard) CreateRenderer() fyne.WidgetRenderer {
	return newSurfaceRenderer(b.view, func() image.Image { return b.engine.Render(true) })
}
