package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPoint(t *testing.T, want, got Point, tol float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tol, "x")
	assert.InDelta(t, want.Y, got.Y, tol, "y")
}

func TestMatrixApply(t *testing.T) {
	tests := []struct {
		name string
		m    Matrix
		in   Point
		want Point
	}{
		{"identity", Identity(), Pt(3, 4), Pt(3, 4)},
		{"translate", Translate(10, -5), Pt(1, 1), Pt(11, -4)},
		{"scale", Scale(2, 3), Pt(1, 1), Pt(2, 3)},
		{"rotate 90", Rotate(math.Pi / 2), Pt(1, 0), Pt(0, 1)},
		{"scale then translate", Translate(5, 5).Multiply(Scale(2, 2)), Pt(1, 2), Pt(7, 9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertPoint(t, tt.want, tt.m.Apply(tt.in), 1e-9)
		})
	}
}

func TestMatrixInvert(t *testing.T) {
	m := Translate(12, 7).Multiply(Rotate(0.7)).Multiply(Scale(1.5, -2))
	inv, ok := m.Invert()
	require.True(t, ok)
	p := Pt(42, -17)
	assertPoint(t, p, inv.Apply(m.Apply(p)), 1e-9)

	_, ok = Scale(0, 1).Invert()
	assert.False(t, ok)
}

func TestBounds(t *testing.T) {
	r := Bounds(Pt(3, 9), Pt(-1, 4), Pt(7, 2))
	assert.Equal(t, Rect{Min: Pt(-1, 2), Max: Pt(7, 9)}, r)
	assert.Equal(t, 8.0, r.W())
	assert.Equal(t, 7.0, r.H())
	assert.True(t, r.Contains(Pt(7, 9)))
	assert.False(t, r.Contains(Pt(7.1, 9)))
	assert.Equal(t, Rect{}, Bounds())
}

func TestRectToQuadMapsCorners(t *testing.T) {
	r := XYWH(0, 0, 200, 100)
	q := Quad{Pt(10, 20), Pt(250, 5), Pt(300, 180), Pt(-10, 140)}
	h, ok := RectToQuad(r, q)
	require.True(t, ok)

	src := r.Quad()
	for i := range src {
		got, ok := h.Apply(src[i])
		require.True(t, ok)
		assertPoint(t, q[i], got, 1e-6)
	}

	inv, ok := h.Invert()
	require.True(t, ok)
	mid, ok := h.Apply(Pt(80, 30))
	require.True(t, ok)
	back, ok := inv.Apply(mid)
	require.True(t, ok)
	assertPoint(t, Pt(80, 30), back, 1e-6)
}

func TestRectToQuadAffineCase(t *testing.T) {
	r := XYWH(0, 0, 10, 10)
	q := XYWH(100, 50, 20, 40).Quad()
	h, ok := RectToQuad(r, q)
	require.True(t, ok)
	assert.InDelta(t, 0, h[6], 1e-12)
	assert.InDelta(t, 0, h[7], 1e-12)
	got, ok := h.Apply(Pt(5, 5))
	require.True(t, ok)
	assertPoint(t, Pt(110, 70), got, 1e-9)
}

func TestRectToQuadDegenerate(t *testing.T) {
	_, ok := RectToQuad(Rect{}, XYWH(0, 0, 1, 1).Quad())
	assert.False(t, ok)

	collapsed := Quad{Pt(0, 0), Pt(0, 0), Pt(0, 0), Pt(0, 0)}
	h, ok := RectToQuad(XYWH(0, 0, 1, 1), collapsed)
	if ok {
		_, ok = h.Invert()
	}
	assert.False(t, ok)
}

func TestQuadTranslate(t *testing.T) {
	q := XYWH(0, 0, 2, 2).Quad().Translate(5, -1)
	assert.Equal(t, XYWH(5, -1, 2, 2), q.Bounds())
}
