package pattern

import (
	"bytes"
	"image"
	"slices"

	"github.com/chewxy/math32"
	"honnef.co/go/curve"

	"PatternBoard/internal/applog"
)

// circleTolerance is the relative radius spread under which a single loop
// is treated as a circle.
const circleTolerance = 0.02

// ClipRegion is an outline scaled into drawing-surface coordinates. The
// zero value contains nothing.
type ClipRegion struct {
	Subpaths [][]Point
	Bounds   image.Rectangle

	// Circle marks the containment shortcut: a point is inside when its
	// distance from Center is at most Radius.
	Circle bool
	Center Point
	Radius float32

	minX, minY, maxX, maxY float32
}

// Empty reports whether the region can contain no point.
func (r ClipRegion) Empty() bool {
	return len(r.Subpaths) == 0
}

// surfaceTolerance is the largest distance, in surface pixels, between an
// extracted outline and its source curves.
const surfaceTolerance = 0.1

// Extract scales the outline uniformly so it fits a w×h surface anchored at
// the origin. Curves are flattened after scaling.
func Extract(o Outline, w, h float32) ClipRegion {
	path := o.Path()
	if len(path) == 0 || w <= 0 || h <= 0 {
		return ClipRegion{}
	}
	bbox := path.BoundingBox()
	bw, bh := float32(bbox.Width()), float32(bbox.Height())
	if bw <= 0 && bh <= 0 {
		return ClipRegion{}
	}

	var scale float32
	switch {
	case bw <= 0:
		scale = h / bh
	case bh <= 0:
		scale = w / bw
	default:
		scale = min(w/bw, h/bh)
	}
	aff := curve.Translate(curve.Vec(-bbox.X0, -bbox.Y0)).ThenScale(float64(scale), float64(scale))
	loops := flatten(path.Transform(aff), surfaceTolerance)
	if len(loops) == 0 {
		return ClipRegion{}
	}

	r := ClipRegion{Subpaths: loops}
	r.minX, r.minY = math32.Inf(1), math32.Inf(1)
	r.maxX, r.maxY = math32.Inf(-1), math32.Inf(-1)
	var (
		sumX, sumY float32
		n          int
	)
	for _, loop := range loops {
		for _, q := range loop {
			r.minX, r.minY = min(r.minX, q.X), min(r.minY, q.Y)
			r.maxX, r.maxY = max(r.maxX, q.X), max(r.maxY, q.Y)
			sumX += q.X
			sumY += q.Y
			n++
		}
	}
	r.Bounds = image.Rect(
		int(math32.Floor(r.minX)), int(math32.Floor(r.minY)),
		int(math32.Ceil(r.maxX)), int(math32.Ceil(r.maxY)),
	)

	if len(r.Subpaths) == 1 {
		r.Center = Point{sumX / float32(n), sumY / float32(n)}
		var total float32
		for _, p := range r.Subpaths[0] {
			total += math32.Hypot(p.X-r.Center.X, p.Y-r.Center.Y)
		}
		r.Radius = total / float32(n)
		r.Circle = o.Ellipse || isRound(r.Subpaths[0], r.Center, r.Radius)
	}
	return r
}

// ExtractBytes parses SVG markup and extracts its region. Unparsable input
// yields an empty region and is logged rather than returned.
func ExtractBytes(svg []byte, w, h float32) ClipRegion {
	o, err := ParseOutline(bytes.NewReader(svg))
	if err != nil {
		applog.Component("pattern").Warn("outline extraction failed", "err", err)
		return ClipRegion{}
	}
	return Extract(o, w, h)
}

func isRound(loop []Point, c Point, radius float32) bool {
	if len(loop) < 8 || radius <= 0 {
		return false
	}
	for _, p := range loop {
		d := math32.Hypot(p.X-c.X, p.Y-c.Y)
		if math32.Abs(d-radius) > radius*circleTolerance {
			return false
		}
	}
	return true
}

// Contains reports whether (x, y) lies inside the region using the
// even-odd rule across all subpaths.
func (r ClipRegion) Contains(x, y float32) bool {
	if r.Empty() {
		return false
	}
	if r.Circle {
		return math32.Hypot(x-r.Center.X, y-r.Center.Y) <= r.Radius
	}
	if x < r.minX || x > r.maxX || y < r.minY || y > r.maxY {
		return false
	}
	inside := false
	for _, sp := range r.Subpaths {
		j := len(sp) - 1
		for i := range sp {
			a, b := sp[i], sp[j]
			if (a.Y > y) != (b.Y > y) && x < (b.X-a.X)*(y-a.Y)/(b.Y-a.Y)+a.X {
				inside = !inside
			}
			j = i
		}
	}
	return inside
}

// Mask rasterizes the region into a w×h alpha mask, one sample per pixel
// centre. It agrees with Contains.
func (r ClipRegion) Mask(w, h int) *image.Alpha {
	m := image.NewAlpha(image.Rect(0, 0, w, h))
	if r.Empty() {
		return m
	}
	if r.Circle {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if r.Contains(float32(x)+0.5, float32(y)+0.5) {
					m.Pix[y*m.Stride+x] = 0xff
				}
			}
		}
		return m
	}

	var xs []float32
	for y := max(0, r.Bounds.Min.Y); y < min(h, r.Bounds.Max.Y); y++ {
		cy := float32(y) + 0.5
		xs = xs[:0]
		for _, sp := range r.Subpaths {
			j := len(sp) - 1
			for i := range sp {
				a, b := sp[i], sp[j]
				if (a.Y > cy) != (b.Y > cy) {
					xs = append(xs, (b.X-a.X)*(cy-a.Y)/(b.Y-a.Y)+a.X)
				}
				j = i
			}
		}
		slices.Sort(xs)
		row := m.Pix[y*m.Stride : y*m.Stride+w]
		for k := 0; k+1 < len(xs); k += 2 {
			// pixel centres strictly left of the right crossing
			x0 := max(0, int(math32.Ceil(xs[k]-0.5)))
			x1 := min(w, int(math32.Ceil(xs[k+1]-0.5)))
			for x := x0; x < x1; x++ {
				row[x] = 0xff
			}
		}
	}
	return m
}
