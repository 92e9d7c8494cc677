package pattern

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"
	"github.com/tdewolff/parse/v2/strconv"
	"honnef.co/go/curve"
)

var argCount = map[byte]int{
	'M': 2, 'L': 2, 'H': 1, 'V': 1,
	'C': 6, 'S': 4, 'Q': 4, 'T': 2,
	'A': 7, 'Z': 0,
}

func isCommand(c byte) bool {
	return strings.IndexByte("MmLlHhVvCcSsQqTtAaZz", c) >= 0
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// parsePathData reads SVG path data into a Bezier path. Elliptical arcs
// contribute only their end point.
func parsePathData(d string) (curve.BezPath, error) {
	b := []byte(d)
	i := skipSep(b)
	if i >= len(b) {
		return nil, nil
	}
	if !isCommand(b[i]) {
		return nil, &ParseError{Offset: i, Msg: "path data must start with a command"}
	}

	var (
		pb  pathBuilder
		f   [7]float64
		cmd byte
	)
	for {
		i += skipSep(b[i:])
		if i >= len(b) {
			break
		}
		switch {
		case isCommand(b[i]):
			cmd = b[i]
			i++
		case isLetter(b[i]):
			return nil, &ParseError{Offset: i, Msg: fmt.Sprintf("unknown command %q", b[i])}
		case cmd == 'Z' || cmd == 'z':
			return nil, &ParseError{Offset: i, Msg: "coordinates after closepath"}
		}

		upper := cmd &^ 0x20
		for j := 0; j < argCount[upper]; j++ {
			i += skipSep(b[i:])
			if upper == 'A' && (j == 3 || j == 4) {
				if i < len(b) && (b[i] == '0' || b[i] == '1') {
					f[j] = float64(b[i] - '0')
					i++
					continue
				}
				return nil, &ParseError{Offset: i, Msg: "arc flags must be 0 or 1"}
			}
			num, n := strconv.ParseFloat(b[i:])
			if n == 0 {
				return nil, &ParseError{Offset: i, Msg: fmt.Sprintf("expected %d numbers after %q", argCount[upper], cmd)}
			}
			f[j] = num
			i += n
		}
		pb.apply(cmd, f)

		// coordinate pairs following a moveto are implicit linetos
		switch cmd {
		case 'M':
			cmd = 'L'
		case 'm':
			cmd = 'l'
		}
	}
	return pb.path, nil
}

type pathBuilder struct {
	path  curve.BezPath
	open  bool
	pos   curve.Point
	start curve.Point
	ctrl  curve.Point
	last  byte
}

func (pb *pathBuilder) apply(cmd byte, f [7]float64) {
	rel := cmd >= 'a'
	at := func(x, y float64) curve.Point {
		if rel {
			return curve.Pt(pb.pos.X+x, pb.pos.Y+y)
		}
		return curve.Pt(x, y)
	}

	upper := cmd &^ 0x20
	if upper != 'M' && upper != 'Z' && !pb.open {
		// drawing after a closepath starts a new subpath at its start
		pb.path.MoveTo(pb.pos)
		pb.open = true
	}
	switch upper {
	case 'M':
		p := at(f[0], f[1])
		pb.path.MoveTo(p)
		pb.open = true
		pb.pos, pb.start = p, p
	case 'L':
		pb.lineTo(at(f[0], f[1]))
	case 'H':
		x := f[0]
		if rel {
			x += pb.pos.X
		}
		pb.lineTo(curve.Pt(x, pb.pos.Y))
	case 'V':
		y := f[0]
		if rel {
			y += pb.pos.Y
		}
		pb.lineTo(curve.Pt(pb.pos.X, y))
	case 'C':
		pb.cubicTo(at(f[0], f[1]), at(f[2], f[3]), at(f[4], f[5]))
	case 'S':
		c1 := pb.pos
		if pb.last == 'C' || pb.last == 'S' {
			c1 = curve.Pt(2*pb.pos.X-pb.ctrl.X, 2*pb.pos.Y-pb.ctrl.Y)
		}
		pb.cubicTo(c1, at(f[0], f[1]), at(f[2], f[3]))
	case 'Q':
		pb.quadTo(at(f[0], f[1]), at(f[2], f[3]))
	case 'T':
		c := pb.pos
		if pb.last == 'Q' || pb.last == 'T' {
			c = curve.Pt(2*pb.pos.X-pb.ctrl.X, 2*pb.pos.Y-pb.ctrl.Y)
		}
		pb.quadTo(c, at(f[0], f[1]))
	case 'A':
		pb.lineTo(at(f[5], f[6]))
	case 'Z':
		if pb.open {
			pb.path.ClosePath()
			pb.open = false
		}
		pb.pos = pb.start
	}
	pb.last = upper
}

func (pb *pathBuilder) lineTo(p curve.Point) {
	pb.path.LineTo(p)
	pb.pos = p
}

func (pb *pathBuilder) cubicTo(c1, c2, end curve.Point) {
	pb.path.CubicTo(c1, c2, end)
	pb.pos, pb.ctrl = end, c2
}

func (pb *pathBuilder) quadTo(c, end curve.Point) {
	pb.path.QuadTo(c, end)
	pb.pos, pb.ctrl = end, c
}

// polyPath turns vertex loops into a path of closed polygons.
func polyPath(loops [][]Point) curve.BezPath {
	var p curve.BezPath
	for _, loop := range loops {
		if len(loop) == 0 {
			continue
		}
		p.MoveTo(curve.Pt(float64(loop[0].X), float64(loop[0].Y)))
		for _, v := range loop[1:] {
			p.LineTo(curve.Pt(float64(v.X), float64(v.Y)))
		}
		p.ClosePath()
	}
	return p
}

// flatten approximates p with line segments no further than tolerance from
// the curves and splits the result into closed vertex loops. Loops with
// fewer than three distinct vertices enclose nothing and are dropped.
func flatten(p curve.BezPath, tolerance float64) [][]Point {
	var (
		loops [][]Point
		cur   []Point
	)
	flush := func() {
		if n := len(cur); n > 1 && samePoint(cur[0], cur[n-1]) {
			cur = cur[:n-1]
		}
		if len(cur) >= 3 {
			loops = append(loops, cur)
		}
		cur = nil
	}
	for el := range p.Flatten(tolerance) {
		switch el.Kind {
		case curve.MoveToKind:
			flush()
			cur = append(cur, Point{float32(el.P0.X), float32(el.P0.Y)})
		case curve.LineToKind:
			cur = append(cur, Point{float32(el.P0.X), float32(el.P0.Y)})
		case curve.ClosePathKind:
			flush()
		}
	}
	flush()
	return loops
}

func samePoint(a, b Point) bool {
	eps := 1e-6 * max(1, math32.Abs(a.X), math32.Abs(a.Y))
	return math32.Abs(a.X-b.X) <= eps && math32.Abs(a.Y-b.Y) <= eps
}
