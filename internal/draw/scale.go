package draw

import "PatternBoard/internal/state"

// ScaleElements returns a copy of elems resized by independent horizontal
// and vertical factors. Stroke widths grow by the larger factor so lines
// keep their weight on the dominant axis.
func ScaleElements(elems []state.Element, fx, fy float32) []state.Element {
	out := state.CloneAll(elems)
	sw := max(fx, fy)
	for i := range out {
		e := &out[i]
		for j := range e.Points {
			e.Points[j].X *= fx
			e.Points[j].Y *= fy
		}
		e.StrokeWidth *= sw
		e.X *= fx
		e.Y *= fy
		e.Width *= fx
		e.Height *= fy
	}
	return out
}
