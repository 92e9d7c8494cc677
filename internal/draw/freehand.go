package draw

import (
	"github.com/chewxy/math32"

	"PatternBoard/internal/config"
	"PatternBoard/internal/state"
)

// rateOfPressureChange controls how quickly simulated pressure follows
// pointer speed.
const rateOfPressureChange = 0.275

// capSteps is the number of vertices on each round stroke cap.
const capSteps = 13

type vec2 struct{ x, y float32 }

func (a vec2) add(b vec2) vec2      { return vec2{a.x + b.x, a.y + b.y} }
func (a vec2) sub(b vec2) vec2      { return vec2{a.x - b.x, a.y - b.y} }
func (a vec2) mul(s float32) vec2   { return vec2{a.x * s, a.y * s} }
func (a vec2) dot(b vec2) float32   { return a.x*b.x + a.y*b.y }
func (a vec2) per() vec2            { return vec2{a.y, -a.x} }
func (a vec2) dist(b vec2) float32  { return math32.Hypot(a.x-b.x, a.y-b.y) }
func (a vec2) dist2(b vec2) float32 { return a.sub(b).dot(a.sub(b)) }

func (a vec2) unit() vec2 {
	l := math32.Hypot(a.x, a.y)
	if l == 0 {
		return vec2{}
	}
	return vec2{a.x / l, a.y / l}
}

func (a vec2) lerp(b vec2, t float32) vec2 {
	return vec2{a.x + (b.x-a.x)*t, a.y + (b.y-a.y)*t}
}

func (a vec2) rotate(angle float32) vec2 {
	sin, cos := math32.Sincos(angle)
	return vec2{a.x*cos - a.y*sin, a.x*sin + a.y*cos}
}

type strokePoint struct {
	p        vec2
	pressure float32
	// back points from this sample towards the previous one.
	back    vec2
	dist    float32
	running float32
}

// streamline smooths raw samples by pulling each one towards its
// predecessor. The final sample is kept exact so the stroke ends under
// the pointer.
func streamline(pts []state.Point, amount float32) []strokePoint {
	t := 0.15 + (1-amount)*0.85
	out := make([]strokePoint, 0, len(pts))
	out = append(out, strokePoint{p: vec2{pts[0].X, pts[0].Y}, pressure: pressureOf(pts[0])})
	for i, in := range pts[1:] {
		prev := out[len(out)-1]
		q := vec2{in.X, in.Y}
		if i < len(pts)-2 {
			q = prev.p.lerp(q, t)
		}
		if q == prev.p {
			continue
		}
		d := q.dist(prev.p)
		out = append(out, strokePoint{
			p:        q,
			pressure: pressureOf(in),
			back:     prev.p.sub(q).unit(),
			dist:     d,
			running:  prev.running + d,
		})
	}
	if len(out) > 1 {
		out[0].back = out[1].back
	}
	return out
}

func pressureOf(p state.Point) float32 {
	if p.Pressure > 0 {
		return min(p.Pressure, 1)
	}
	return 0.5
}

// strokeOutline returns a closed polygon tracing a variable-width stroke
// of nominal diameter size through pts. It returns nil when the samples
// collapse to a single position, which the caller renders as a disc.
func strokeOutline(pts []state.Point, size float32, fh config.Freehand) []vec2 {
	if len(pts) < 2 || size <= 0 {
		return nil
	}
	sp := streamline(pts, fh.Streamline)
	if len(sp) < 2 {
		return nil
	}

	minDist := (size * fh.Smoothing) * (size * fh.Smoothing)
	radiusAt := func(pressure float32) float32 {
		return max(0.01, size*(0.5-fh.Thinning*(0.5-pressure)))
	}

	prevPressure := sp[0].pressure
	if fh.SimulatePressure {
		acc := sp[0].pressure
		for _, s := range sp[:min(len(sp), 10)] {
			sim := min(1, s.dist/size)
			rp := min(1, 1-sim)
			p := min(1, acc+(rp-acc)*(sim*rateOfPressureChange))
			acc = (acc + p) / 2
		}
		prevPressure = acc
	}

	var (
		left, right  []vec2
		firstRadius  float32
		lastRadius   float32
		prevL, prevR vec2
	)
	for i, s := range sp {
		pressure := s.pressure
		if fh.SimulatePressure {
			sim := min(1, s.dist/size)
			rp := min(1, 1-sim)
			pressure = min(1, prevPressure+(rp-prevPressure)*(sim*rateOfPressureChange))
		}
		prevPressure = pressure
		radius := radiusAt(pressure)
		if i == 0 {
			firstRadius = radius
		}
		lastRadius = radius

		next := s.back
		dpr := float32(1)
		if i < len(sp)-1 {
			next = sp[i+1].back
			dpr = s.back.dot(next)
		}
		offset := next.lerp(s.back, dpr).unit().per().mul(radius)
		tl, tr := s.p.sub(offset), s.p.add(offset)
		if i <= 1 || prevL.dist2(tl) > minDist {
			left = append(left, tl)
			prevL = tl
		}
		if i <= 1 || prevR.dist2(tr) > minDist {
			right = append(right, tr)
			prevR = tr
		}
	}

	first, last := sp[0], sp[len(sp)-1]
	poly := make([]vec2, 0, len(left)+len(right)+2*capSteps)
	poly = append(poly, left...)
	poly = append(poly, roundCap(last.p, left[len(left)-1], last.back.mul(-1), lastRadius)...)
	for i := len(right) - 1; i >= 0; i-- {
		poly = append(poly, right[i])
	}
	poly = append(poly, roundCap(first.p, right[0], first.back, firstRadius)...)
	return poly
}

// roundCap returns the arc around center that starts beside from and
// bulges towards dir.
func roundCap(center, from, dir vec2, radius float32) []vec2 {
	start := from.sub(center).unit().mul(radius)
	sign := float32(1)
	if start.rotate(math32.Pi/2).dot(dir) < 0 {
		sign = -1
	}
	pts := make([]vec2, 0, capSteps)
	for k := 1; k <= capSteps; k++ {
		a := sign * math32.Pi * float32(k) / float32(capSteps+1)
		pts = append(pts, center.add(start.rotate(a)))
	}
	return pts
}
