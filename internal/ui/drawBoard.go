package ui

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"PatternBoard/internal/draw"
)

// DrawBoard shows a drawing engine's surface and feeds it pointer input.
type DrawBoard struct {
	widget.BaseWidget
	engine  *draw.Engine
	view    surfaceView
	pressed bool

	// OnChange runs after every completed gesture.
	OnChange func()
}

var _ fyne.Widget = (*DrawBoard)(nil)
var _ fyne.Draggable = (*DrawBoard)(nil)
var _ desktop.Mouseable = (*DrawBoard)(nil)

func NewDrawBoard(e *draw.Engine) *DrawBoard {
	w, h := e.Size()
	b := &DrawBoard{engine: e, view: surfaceView{w: w, h: h}}
	b.ExtendBaseWidget(b)
	return b
}

func (b *DrawBoard) Engine() *draw.Engine { return b.engine }

func (b *DrawBoard) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	x, y := b.view.toSurface(b.Size(), ev.Position)
	b.engine.PointerDown(x, y)
	b.pressed = true
	b.Refresh()
}

func (b *DrawBoard) Dragged(ev *fyne.DragEvent) {
	if !b.pressed {
		return
	}
	x, y := b.view.toSurface(b.Size(), ev.Position)
	b.engine.PointerMove(x, y)
	b.Refresh()
}

func (b *DrawBoard) MouseUp(*desktop.MouseEvent) { b.release() }
func (b *DrawBoard) DragEnd()                    { b.release() }

func (b *DrawBoard) release() {
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

func (b *DrawBoard) MouseIn(*desktop.MouseEvent)    {}
func (b *DrawBoard) MouseOut()                      {}
func (b *DrawBoard) MouseMoved(*desktop.MouseEvent) {}

func (b *DrawBoard) CreateRenderer() fyne.WidgetRenderer {
	return newSurfaceRenderer(b.view, func() image.Image { return b.engine.Render() })
}
