// Package pattern turns garment-piece outlines into clip regions that gate
// where freehand drawing is allowed.
package pattern

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/tdewolff/parse/v2/strconv"
	"golang.org/x/net/html/charset"
	"honnef.co/go/curve"
)

// ErrGeometryParse is wrapped by every outline parsing failure.
var ErrGeometryParse = errors.New("pattern: unparsable outline")

// ParseError locates a failure inside path data or markup.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pattern: %s at offset %d", e.Msg, e.Offset)
}

func (e *ParseError) Unwrap() error { return ErrGeometryParse }

// Point is an outline vertex.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Outline is the raw geometry read from a vector resource, in the
// resource's own coordinate space.
type Outline struct {
	// Subpaths is the geometry flattened at the resource's own scale.
	Subpaths [][]Point
	// Ellipse is set when the geometry came from a single <circle> or a
	// near-circular <ellipse> element.
	Ellipse bool

	// path keeps the curves so Extract can flatten them at surface scale.
	path curve.BezPath
}

// Path returns the outline as a Bezier path. Outlines built from vertex
// loops alone yield closed polygons.
func (o Outline) Path() curve.BezPath {
	if len(o.path) > 0 {
		return o.path
	}
	return polyPath(o.Subpaths)
}

// sourceTolerance is the flattening tolerance of Outline.Subpaths relative
// to the larger side of the outline's bounding box.
const sourceTolerance = 1.0 / 1024

// minTolerance keeps flattening finite for degenerate geometry.
const minTolerance = 1e-6

// ParseOutline reads SVG markup and collects the geometry of every path,
// polygon, polyline, rect, circle and ellipse element.
func ParseOutline(r io.Reader) (Outline, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var (
		out    Outline
		rounds int
		shapes int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Outline{}, fmt.Errorf("%w: %v", ErrGeometryParse, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		var p curve.BezPath
		switch se.Name.Local {
		case "path":
			p, err = parsePathData(attr(se, "d"))
		case "polygon", "polyline":
			var pts []Point
			pts, err = parsePoints(attr(se, "points"))
			if len(pts) >= 3 {
				p = polyPath([][]Point{pts})
			}
		case "rect":
			x, y := number(attr(se, "x")), number(attr(se, "y"))
			w, h := number(attr(se, "width")), number(attr(se, "height"))
			if w > 0 && h > 0 {
				p = curve.Rect{X0: x, Y0: y, X1: x + w, Y1: y + h}.Path(0)
			}
		case "circle":
			r := number(attr(se, "r"))
			p = ellipse(number(attr(se, "cx")), number(attr(se, "cy")), r, r)
			if p != nil {
				rounds++
			}
		case "ellipse":
			rx, ry := number(attr(se, "rx")), number(attr(se, "ry"))
			p = ellipse(number(attr(se, "cx")), number(attr(se, "cy")), rx, ry)
			if p != nil && math.Abs(rx-ry) <= max(rx, ry)*circleTolerance {
				rounds++
			}
		default:
			continue
		}
		if err != nil {
			return Outline{}, err
		}
		if loops := flatten(p, relTolerance(p)); len(loops) > 0 {
			shapes++
			out.path = append(out.path, p...)
			out.Subpaths = append(out.Subpaths, loops...)
		}
	}
	if len(out.Subpaths) == 0 {
		return Outline{}, fmt.Errorf("%w: no geometry", ErrGeometryParse)
	}
	out.Ellipse = shapes == 1 && rounds == 1 && len(out.Subpaths) == 1
	return out, nil
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// number parses a leading number, ignoring any unit suffix. Missing or
// malformed values read as zero, as SVG does for lengths.
func number(s string) float64 {
	b := []byte(s)
	i := skipSep(b)
	f, n := strconv.ParseFloat(b[i:])
	if n == 0 {
		return 0
	}
	return f
}

// relTolerance scales sourceTolerance to the extent of p.
func relTolerance(p curve.BezPath) float64 {
	if len(p) == 0 {
		return minTolerance
	}
	bbox := p.BoundingBox()
	return max(bbox.Width()*sourceTolerance, bbox.Height()*sourceTolerance, minTolerance)
}

func ellipse(cx, cy, rx, ry float64) curve.BezPath {
	if rx <= 0 || ry <= 0 {
		return nil
	}
	e := curve.NewEllipse(curve.Pt(cx, cy), curve.Vec(rx, ry), 0)
	p := curve.BezPath(slices.Collect(e.PathElements(max(rx, ry) * sourceTolerance)))
	p.ClosePath()
	return p
}

func parsePoints(s string) ([]Point, error) {
	b := []byte(s)
	var (
		pts []Point
		xy  [2]float64
		k   int
	)
	for i := skipSep(b); i < len(b); i += skipSep(b[i:]) {
		f, n := strconv.ParseFloat(b[i:])
		if n == 0 {
			return nil, &ParseError{Offset: i, Msg: fmt.Sprintf("bad points list near %q", b[i])}
		}
		i += n
		xy[k] = f
		k++
		if k == 2 {
			pts = append(pts, Point{float32(xy[0]), float32(xy[1])})
			k = 0
		}
	}
	if k != 0 {
		return nil, &ParseError{Offset: len(b), Msg: "odd number of coordinates"}
	}
	return pts, nil
}

func skipSep(b []byte) int {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == ',' || b[i] == '\n' || b[i] == '\r' || b[i] == '\t') {
		i++
	}
	return i
}
