package geom

import "math"

// Homography is a projective transform stored row-major as a 3x3 matrix.
//
//	x' = (H0*x + H1*y + H2) / (H6*x + H7*y + H8)
//	y' = (H3*x + H4*y + H5) / (H6*x + H7*y + H8)
type Homography [9]float64

// squareToQuad maps the unit square (0,0),(1,0),(1,1),(0,1) onto q.
// Heckbert, "Fundamentals of Texture Mapping and Image Warping", 1989.
func squareToQuad(q Quad) (Homography, bool) {
	x0, y0 := q[TopLeft].X, q[TopLeft].Y
	x1, y1 := q[TopRight].X, q[TopRight].Y
	x2, y2 := q[BottomRight].X, q[BottomRight].Y
	x3, y3 := q[BottomLeft].X, q[BottomLeft].Y

	sx := x0 - x1 + x2 - x3
	sy := y0 - y1 + y2 - y3

	var g, h float64
	if math.Abs(sx) > 1e-12 || math.Abs(sy) > 1e-12 {
		dx1, dx2 := x1-x2, x3-x2
		dy1, dy2 := y1-y2, y3-y2
		den := dx1*dy2 - dx2*dy1
		if math.Abs(den) < 1e-12 {
			return Homography{}, false
		}
		g = (sx*dy2 - dx2*sy) / den
		h = (dx1*sy - sx*dy1) / den
	}
	return Homography{
		x1 - x0 + g*x1, x3 - x0 + h*x3, x0,
		y1 - y0 + g*y1, y3 - y0 + h*y3, y0,
		g, h, 1,
	}, true
}

// RectToQuad returns the projective map taking the corners of r onto the
// corners of q. It fails for an empty r or a degenerate q.
func RectToQuad(r Rect, q Quad) (Homography, bool) {
	if r.Empty() {
		return Homography{}, false
	}
	s, ok := squareToQuad(q)
	if !ok {
		return Homography{}, false
	}
	norm := Homography{
		1 / r.W(), 0, -r.Min.X / r.W(),
		0, 1 / r.H(), -r.Min.Y / r.H(),
		0, 0, 1,
	}
	return s.Multiply(norm), true
}

// Multiply returns h * o: o is applied first.
func (h Homography) Multiply(o Homography) Homography {
	var r Homography
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i*3+j] = h[i*3]*o[j] + h[i*3+1]*o[3+j] + h[i*3+2]*o[6+j]
		}
	}
	return r
}

// Invert returns the inverse map, or false when h is singular.
func (h Homography) Invert() (Homography, bool) {
	a, b, c := h[0], h[1], h[2]
	d, e, f := h[3], h[4], h[5]
	g, k, l := h[6], h[7], h[8]

	A := e*l - f*k
	B := -(d*l - f*g)
	C := d*k - e*g
	det := a*A + b*B + c*C
	if math.Abs(det) < 1e-12 {
		return Homography{}, false
	}
	inv := 1 / det
	return Homography{
		A * inv, -(b*l - c*k) * inv, (b*f - c*e) * inv,
		B * inv, (a*l - c*g) * inv, -(a*f - c*d) * inv,
		C * inv, -(a*k - b*g) * inv, (a*e - b*d) * inv,
	}, true
}

// Apply maps p. It returns false when p maps to or behind the horizon.
func (h Homography) Apply(p Point) (Point, bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if w <= 1e-12 {
		return Point{}, false
	}
	return Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}, true
}
