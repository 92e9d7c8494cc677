package composite

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"PatternBoard/internal/geom"
)

// Selection outline colours, by gesture.
var (
	DragColor     = color.RGBA{0x00, 0xff, 0x00, 0xff}
	WarpColor     = color.RGBA{0xff, 0x00, 0xff, 0xff}
	SelectedColor = color.RGBA{0x00, 0x88, 0xff, 0xff}
)

const (
	outlineWidth = 2
	handleSize   = 8
)

// RenderLayer draws the elements alone on a transparent surface.
func (e *Engine) RenderLayer() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, e.cfg.Width, e.cfg.Height))
	for _, el := range e.elements {
		drawElement(dst, el)
	}
	return dst
}

// Render draws the background, the elements and, when overlay is set, the
// selection outline with its handles.
func (e *Engine) Render(overlay bool) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, e.cfg.Width, e.cfg.Height))
	if e.background != nil {
		xdraw.Draw(dst, dst.Bounds(), e.background, e.background.Bounds().Min, xdraw.Src)
	}
	for _, el := range e.elements {
		drawElement(dst, el)
	}
	if sel := e.Selected(); overlay && sel != nil {
		e.drawSelection(dst, sel)
	}
	return dst
}

func drawElement(dst *image.RGBA, el *Element) {
	if el.Image == nil || el.Width <= 0 || el.Height <= 0 {
		return
	}
	if el.Warp != nil {
		area := el.Warp.Bounds()
		r := image.Rect(int(area.Min.X)-1, int(area.Min.Y)-1, int(area.Max.X)+2, int(area.Max.Y)+2)
		warpInto(dst, r, geom.Identity(), el.Image, *el.Warp)
		return
	}
	xdraw.BiLinear.Transform(dst, el.sourceMatrix().Aff3(), el.Image, el.Image.Bounds(), xdraw.Over, nil)
}

func (e *Engine) drawSelection(dst *image.RGBA, sel *Element) {
	col := SelectedColor
	switch {
	case e.gesture == GestureDrag:
		col = DragColor
	case e.mode == Warp:
		col = WarpColor
	}

	z := vector.NewRasterizer(dst.Bounds().Dx(), dst.Bounds().Dy())
	q := sel.Corners()
	for i := range q {
		addSegment(z, q[i], q[(i+1)%len(q)], outlineWidth)
	}
	handles := sel.VisualBounds().Quad()
	if sel.Warp != nil {
		handles = *sel.Warp
	}
	for _, c := range handles {
		addSquare(z, c, handleSize)
	}
	z.Draw(dst, dst.Bounds(), image.NewUniform(col), image.Point{})
}

// addSegment adds a thick line from a to b as a filled quadrilateral
// wound the same way as addSquare, so overlaps do not cancel.
func addSegment(z *vector.Rasterizer, a, b geom.Point, width float64) {
	d := b.Sub(a)
	l := a.Dist(b)
	if l == 0 {
		return
	}
	n := geom.Pt(-d.Y/l, d.X/l).Mul(width / 2)
	p0, p1, p2, p3 := a.Sub(n), b.Sub(n), b.Add(n), a.Add(n)
	z.MoveTo(float32(p0.X), float32(p0.Y))
	z.LineTo(float32(p1.X), float32(p1.Y))
	z.LineTo(float32(p2.X), float32(p2.Y))
	z.LineTo(float32(p3.X), float32(p3.Y))
	z.ClosePath()
}

func addSquare(z *vector.Rasterizer, c geom.Point, size float64) {
	h := float32(size / 2)
	x, y := float32(c.X), float32(c.Y)
	z.MoveTo(x-h, y-h)
	z.LineTo(x+h, y-h)
	z.LineTo(x+h, y+h)
	z.LineTo(x-h, y+h)
	z.ClosePath()
}

// DrawElements composites els onto dst in list order, without background
// or overlay.
func DrawElements(dst *image.RGBA, els []Element) {
	for i := range els {
		drawElement(dst, &els[i])
	}
}
