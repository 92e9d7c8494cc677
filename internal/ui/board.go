package ui

import (
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

// surfaceView places a fixed-size surface inside a widget, scaled to fit
// and centred.
type surfaceView struct {
	w, h int
}

func (v surfaceView) fit(size fyne.Size) (fyne.Position, fyne.Size, float32) {
	if v.w <= 0 || v.h <= 0 || size.Width <= 0 || size.Height <= 0 {
		return fyne.NewPos(0, 0), fyne.NewSize(0, 0), 1
	}
	s := min(size.Width/float32(v.w), size.Height/float32(v.h))
	fitted := fyne.NewSize(float32(v.w)*s, float32(v.h)*s)
	return fyne.NewPos((size.Width-fitted.Width)/2, (size.Height-fitted.Height)/2), fitted, s
}

// toSurface converts a widget position to surface coordinates.
func (v surfaceView) toSurface(size fyne.Size, p fyne.Position) (float32, float32) {
	origin, _, s := v.fit(size)
	return (p.X - origin.X) / s, (p.Y - origin.Y) / s
}

var boardBackground = color.NRGBA{R: 245, G: 246, B: 248, A: 255}

type surfaceRenderer struct {
	view       surfaceView
	background *canvas.Rectangle
	raster     *canvas.Raster
}

func newSurfaceRenderer(view surfaceView, frame func() image.Image) *surfaceRenderer {
	r := &surfaceRenderer{
		view:       view,
		background: canvas.NewRectangle(boardBackground),
		raster:     canvas.NewRaster(func(int, int) image.Image { return frame() }),
	}
	r.raster.ScaleMode = canvas.ImageScaleSmooth
	return r
}

func (r *surfaceRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)
	pos, fitted, _ := r.view.fit(size)
	r.raster.Move(pos)
	r.raster.Resize(fitted)
}

func (r *surfaceRenderer) MinSize() fyne.Size           { return fyne.NewSize(300, 300) }
func (r *surfaceRenderer) Refresh()                     { r.raster.Refresh() }
func (r *surfaceRenderer) Objects() []fyne.CanvasObject { return []fyne.CanvasObject{r.background, r.raster} }
func (r *surfaceRenderer) Destroy()                     {}
