package composite

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"PatternBoard/internal/geom"
)

// bakeScale picks the supersampling factor for a raster covering r,
// lowered when the result would exceed maxEdge pixels on a side.
func bakeScale(r geom.Rect, supersample, maxEdge int) float64 {
	ss := float64(max(supersample, 1))
	if longest := math.Max(r.W(), r.H()); maxEdge > 0 && longest*ss > float64(maxEdge) {
		ss = math.Max(float64(maxEdge)/longest, 1/longest)
	}
	return ss
}

// rasterSize rounds up, ignoring float noise from rotated corners.
func rasterSize(r geom.Rect, ss float64) (int, int) {
	return max(1, int(math.Ceil(r.W()*ss-1e-6))), max(1, int(math.Ceil(r.H()*ss-1e-6)))
}

// bakeAffine renders the element with its rotation, scale and flip into a
// new supersampled raster covering its visual bounds. The element's box
// becomes those bounds and its transform resets to identity.
func bakeAffine(e *Element, supersample, maxEdge int) {
	vb := e.VisualBounds()
	ss := bakeScale(vb, supersample, maxEdge)
	w, h := rasterSize(vb, ss)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	m := geom.Scale(float64(w)/vb.W(), float64(h)/vb.H()).
		Multiply(geom.Translate(-vb.Min.X, -vb.Min.Y)).
		Multiply(e.sourceMatrix())
	xdraw.BiLinear.Transform(dst, m.Aff3(), e.Image, e.Image.Bounds(), xdraw.Over, nil)

	e.Image = dst
	e.X, e.Y, e.Width, e.Height = vb.Min.X, vb.Min.Y, vb.W(), vb.H()
	e.NaturalWidth, e.NaturalHeight = w, h
	e.resetTransform()
}

// bakeWarp resamples a warped element into a supersampled raster of its
// quad's bounding box and leaves it unwarped.
func bakeWarp(e *Element, supersample, maxEdge int) {
	qb := e.Warp.Bounds()
	ss := bakeScale(qb, supersample, maxEdge)
	w, h := rasterSize(qb, ss)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	toSurface := geom.Translate(qb.Min.X, qb.Min.Y).
		Multiply(geom.Scale(qb.W()/float64(w), qb.H()/float64(h)))
	warpInto(dst, dst.Bounds(), toSurface, e.Image, *e.Warp)

	e.Image = dst
	e.X, e.Y, e.Width, e.Height = qb.Min.X, qb.Min.Y, qb.W(), qb.H()
	e.NaturalWidth, e.NaturalHeight = w, h
	e.Warp = nil
	e.resetTransform()
}

// warpInto draws src mapped projectively onto quad. Each pixel of area in
// dst is mapped to the surface by toSurface, then back into src through
// the inverse homography and sampled bilinearly.
func warpInto(dst *image.RGBA, area image.Rectangle, toSurface geom.Matrix, src *image.RGBA, quad geom.Quad) {
	sb := src.Bounds()
	h, ok := geom.RectToQuad(geom.XYWH(0, 0, float64(sb.Dx()), float64(sb.Dy())), quad)
	if !ok {
		return
	}
	inv, ok := h.Invert()
	if !ok {
		return
	}
	area = area.Intersect(dst.Bounds())
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			p := toSurface.Apply(geom.Pt(float64(x)+0.5, float64(y)+0.5))
			s, ok := inv.Apply(p)
			if !ok {
				continue
			}
			r, g, b, a := sampleBilinear(src, s.X, s.Y)
			if a == 0 {
				continue
			}
			i := dst.PixOffset(x, y)
			k := 1 - a/255
			dst.Pix[i+0] = uint8(r + float64(dst.Pix[i+0])*k + 0.5)
			dst.Pix[i+1] = uint8(g + float64(dst.Pix[i+1])*k + 0.5)
			dst.Pix[i+2] = uint8(b + float64(dst.Pix[i+2])*k + 0.5)
			dst.Pix[i+3] = uint8(a + float64(dst.Pix[i+3])*k + 0.5)
		}
	}
}

// sampleBilinear returns the premultiplied colour of src at (x, y) in
// src-relative pixel coordinates, where pixel centres sit at +0.5. Texels
// outside src count as transparent, which antialiases the edges.
func sampleBilinear(src *image.RGBA, x, y float64) (r, g, b, a float64) {
	sb := src.Bounds()
	fx, fy := x-0.5, y-0.5
	x0, y0 := math.Floor(fx), math.Floor(fy)
	tx, ty := fx-x0, fy-y0
	ix, iy := int(x0), int(y0)
	if ix < -1 || iy < -1 || ix >= sb.Dx() || iy >= sb.Dy() {
		return 0, 0, 0, 0
	}
	for _, t := range [4]struct {
		dx, dy int
		w      float64
	}{
		{0, 0, (1 - tx) * (1 - ty)},
		{1, 0, tx * (1 - ty)},
		{0, 1, (1 - tx) * ty},
		{1, 1, tx * ty},
	} {
		px, py := ix+t.dx, iy+t.dy
		if t.w == 0 || px < 0 || py < 0 || px >= sb.Dx() || py >= sb.Dy() {
			continue
		}
		i := src.PixOffset(sb.Min.X+px, sb.Min.Y+py)
		r += float64(src.Pix[i+0]) * t.w
		g += float64(src.Pix[i+1]) * t.w
		b += float64(src.Pix[i+2]) * t.w
		a += float64(src.Pix[i+3]) * t.w
	}
	return r, g, b, a
}
