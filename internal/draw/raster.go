package draw

import (
	"image"
	"image/color"
	"math"

	"github.com/chewxy/math32"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"PatternBoard/internal/config"
	"PatternBoard/internal/geom"
	"PatternBoard/internal/state"
)

// kappa places cubic control points so four curves approximate a circle.
const kappa = 0.5522847498307936

// RenderElements composites elems in list order onto dst. Ink strokes are
// painted over what is below, erase strokes clear it, images are drawn
// into their boxes.
func RenderElements(dst *image.RGBA, elems []state.Element, fh config.Freehand) {
	for _, e := range elems {
		switch e.Kind {
		case state.KindInk:
			mask, r := strokeMask(e, fh, dst.Bounds())
			if mask == nil {
				continue
			}
			col := image.NewUniform(ParseColor(e.Color))
			xdraw.DrawMask(dst, r, col, image.Point{}, mask, r.Min, xdraw.Over)
		case state.KindErase:
			mask, r := strokeMask(e, fh, dst.Bounds())
			if mask == nil {
				continue
			}
			clearMasked(dst, mask, r)
		case state.KindImage:
			drawImage(dst, e)
		}
	}
}

// strokeMask rasterizes every run of a stroke into one coverage mask
// limited to clip. It returns a nil mask when nothing is covered.
func strokeMask(e state.Element, fh config.Freehand, clip image.Rectangle) (*image.Alpha, image.Rectangle) {
	if len(e.Points) == 0 || e.StrokeWidth <= 0 {
		return nil, image.Rectangle{}
	}
	minX, minY, maxX, maxY := e.Bounds()
	pad := e.StrokeWidth + 2
	r := image.Rect(
		int(math32.Floor(minX-pad)), int(math32.Floor(minY-pad)),
		int(math32.Ceil(maxX+pad)), int(math32.Ceil(maxY+pad)),
	).Intersect(clip)
	if r.Empty() {
		return nil, image.Rectangle{}
	}

	z := vector.NewRasterizer(r.Dx(), r.Dy())
	z.DrawOp = xdraw.Src
	origin := vec2{float32(r.Min.X), float32(r.Min.Y)}
	for _, run := range e.Runs() {
		if poly := strokeOutline(run, e.StrokeWidth, fh); poly != nil {
			addPolygon(z, poly, origin)
			continue
		}
		addDisc(z, vec2{run[0].X, run[0].Y}.sub(origin), e.StrokeWidth/2)
	}
	mask := image.NewAlpha(r)
	z.Draw(mask, r, image.Opaque, image.Point{})
	return mask, r
}

func addPolygon(z *vector.Rasterizer, poly []vec2, origin vec2) {
	p := poly[0].sub(origin)
	z.MoveTo(p.x, p.y)
	for _, q := range poly[1:] {
		q = q.sub(origin)
		z.LineTo(q.x, q.y)
	}
	z.ClosePath()
}

func addDisc(z *vector.Rasterizer, c vec2, r float32) {
	k := r * kappa
	z.MoveTo(c.x+r, c.y)
	z.CubeTo(c.x+r, c.y+k, c.x+k, c.y+r, c.x, c.y+r)
	z.CubeTo(c.x-k, c.y+r, c.x-r, c.y+k, c.x-r, c.y)
	z.CubeTo(c.x-r, c.y-k, c.x-k, c.y-r, c.x, c.y-r)
	z.CubeTo(c.x+k, c.y-r, c.x+r, c.y-k, c.x+r, c.y)
	z.ClosePath()
}

// clearMasked removes coverage from dst where mask is set, the way a
// destination-out composite does.
func clearMasked(dst *image.RGBA, mask *image.Alpha, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		mi := mask.PixOffset(r.Min.X, y)
		di := dst.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x, mi, di = x+1, mi+1, di+4 {
			a := mask.Pix[mi]
			if a == 0 {
				continue
			}
			keep := 255 - uint32(a)
			for c := 0; c < 4; c++ {
				dst.Pix[di+c] = uint8(uint32(dst.Pix[di+c]) * keep / 255)
			}
		}
	}
}

// ImageTransform maps an image element's source pixels into surface space:
// the source is stretched over the element box, then rotated by Rotation
// degrees around the box centre.
func ImageTransform(e state.Element, srcW, srcH int) geom.Matrix {
	box := geom.XYWH(float64(e.X), float64(e.Y), float64(e.Width), float64(e.Height))
	c := box.Center()
	m := geom.Translate(box.Min.X, box.Min.Y).
		Multiply(geom.Scale(box.W()/float64(srcW), box.H()/float64(srcH)))
	if e.Rotation != 0 {
		rot := geom.Translate(c.X, c.Y).
			Multiply(geom.Rotate(float64(e.Rotation) * math.Pi / 180)).
			Multiply(geom.Translate(-c.X, -c.Y))
		m = rot.Multiply(m)
	}
	return m
}

func drawImage(dst *image.RGBA, e state.Element) {
	if e.Image == nil || e.Width <= 0 || e.Height <= 0 {
		return
	}
	sb := e.Image.Bounds()
	if sb.Empty() {
		return
	}
	m := ImageTransform(e, sb.Dx(), sb.Dy()).
		Multiply(geom.Translate(-float64(sb.Min.X), -float64(sb.Min.Y)))
	xdraw.BiLinear.Transform(dst, m.Aff3(), e.Image, sb, xdraw.Over, nil)
}

// fillMask paints col through mask over the whole of dst.
func fillMask(dst *image.RGBA, mask *image.Alpha, col color.Color) {
	xdraw.DrawMask(dst, dst.Bounds(), image.NewUniform(col), image.Point{}, mask, dst.Bounds().Min, xdraw.Over)
}

func overlay(dst, src *image.RGBA) {
	xdraw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, xdraw.Over)
}
