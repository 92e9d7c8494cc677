package composite

// ScaleElements returns copies of els with every position, size and warp
// corner scaled by fx horizontally and fy vertically.
func ScaleElements(els []Element, fx, fy float64) []Element {
	out := make([]Element, len(els))
	for i, el := range els {
		el.X *= fx
		el.Y *= fy
		el.Width *= fx
		el.Height *= fy
		if el.Warp != nil {
			q := *el.Warp
			for j := range q {
				q[j].X *= fx
				q[j].Y *= fy
			}
			el.Warp = &q
		}
		out[i] = el
	}
	return out
}
