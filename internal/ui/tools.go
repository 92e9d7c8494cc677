package ui

import (
	"context"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"PatternBoard/internal/composite"
	"PatternBoard/internal/draw"
)

var palette = []string{"#000000", "#F5A623", "#D0021B", "#4A90E2", "#7ED321", "#9013FE"}

type colorSwatch struct {
	widget.BaseWidget
	Color    string
	OnTapped func(string)
}

func newColorSwatch(c string, tapped func(string)) *colorSwatch {
	s := &colorSwatch{Color: c, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(draw.ParseColor(s.Color))
	rect.SetMinSize(fyne.NewSize(28, 28))

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

func (s *colorSwatch) Tapped(_ *fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped(s.Color)
	}
}

func (w *Workspace) newDrawToolbar() fyne.CanvasObject {
	e := w.draw.Engine()
	tb := widget.NewToolbar(
		widget.NewToolbarAction(theme.DocumentCreateIcon(), func() { w.setTool(draw.ToolInk) }),
		widget.NewToolbarAction(theme.ContentRemoveIcon(), func() { w.setTool(draw.ToolErase) }),
		widget.NewToolbarAction(theme.ViewFullScreenIcon(), func() { w.setTool(draw.ToolSelect) }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentUndoIcon(), w.undo),
		widget.NewToolbarAction(theme.ContentRedoIcon(), w.redo),
		widget.NewToolbarAction(theme.DeleteIcon(), w.deleteSelected),
		widget.NewToolbarAction(theme.ContentClearIcon(), func() {
			e.Clear()
			w.draw.Refresh()
		}),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.FileImageIcon(), w.placeDrawingImage),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), w.saveDrawing),
	)

	colors := container.NewHBox()
	for _, c := range palette {
		colors.Add(newColorSwatch(c, func(c string) {
			e.SetColor(c)
			w.setTool(draw.ToolInk)
		}))
	}

	size := widget.NewSlider(1, 50)
	size.SetValue(float64(e.StrokeWidth()))
	size.OnChanged = func(v float64) { e.SetStrokeWidth(float32(v)) }
	sizeBox := container.New(layout.NewGridWrapLayout(fyne.NewSize(150, 35)), size)

	return container.NewHBox(
		widget.NewLabel("Tool:"),
		tb,
		widget.NewSeparator(),
		widget.NewLabel("Color:"),
		colors,
		widget.NewSeparator(),
		widget.NewLabel("Size:"),
		sizeBox,
		layout.NewSpacer(),
	)
}

func (w *Workspace) newCompositeToolbar() fyne.CanvasObject {
	e := w.comp.Engine()
	tb := widget.NewToolbar(
		widget.NewToolbarAction(theme.FileImageIcon(), w.placeCompositeImage),
		widget.NewToolbarAction(theme.DeleteIcon(), w.deleteSelected),
		widget.NewToolbarAction(theme.ContentClearIcon(), func() {
			e.Clear()
			w.comp.Refresh()
			w.syncTransform(nil)
		}),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), w.saveComposite),
	)

	w.rotation = widget.NewSlider(-180, 180)
	w.rotation.OnChanged = func(v float64) { w.adjust(func() bool { return e.SetRotation(v) }) }
	w.scale = widget.NewSlider(0.1, 4)
	w.scale.Step = 0.05
	w.scale.SetValue(1)
	w.scale.OnChanged = func(v float64) { w.adjust(func() bool { return e.SetScale(v) }) }
	w.flip = widget.NewCheck("Flip", func(on bool) { w.adjust(func() bool { return e.SetFlip(on) }) })
	w.warp = widget.NewCheck("Warp", func(on bool) {
		m := composite.Normal
		if on {
			m = composite.Warp
		}
		if err := e.SetMode(context.Background(), m); err != nil {
			w.setStatus("Mode change failed: " + err.Error())
		}
		w.comp.Refresh()
		w.syncTransform(e.Selected())
	})
	w.syncTransform(nil)

	wrap := func(o fyne.CanvasObject) fyne.CanvasObject {
		return container.New(layout.NewGridWrapLayout(fyne.NewSize(140, 35)), o)
	}
	return container.NewHBox(
		tb,
		widget.NewSeparator(),
		widget.NewLabel("Rotate:"),
		wrap(w.rotation),
		widget.NewLabel("Scale:"),
		wrap(w.scale),
		w.flip,
		widget.NewSeparator(),
		w.warp,
		layout.NewSpacer(),
	)
}

// syncTransform shows el's transform in the controls without feeding the
// values back to the engine. Warped or absent selections disable them.
func (w *Workspace) syncTransform(el *composite.Element) {
	if w.rotation == nil {
		return
	}
	w.syncing = true
	defer func() { w.syncing = false }()
	controls := []fyne.Disableable{w.rotation, w.scale, w.flip}
	if el == nil || el.State() == composite.Warped {
		for _, c := range controls {
			c.Disable()
		}
		return
	}
	for _, c := range controls {
		c.Enable()
	}
	w.rotation.SetValue(el.Rotation)
	w.scale.SetValue(el.Scale)
	w.flip.SetChecked(el.Flip < 0)
}

func (w *Workspace) adjust(fn func() bool) {
	if w.syncing {
		return
	}
	if fn() {
		w.comp.Refresh()
	}
}

func (w *Workspace) setTool(t draw.Tool) {
	w.draw.Engine().SetTool(t)
	w.setStatus("Tool: " + t.String())
}
