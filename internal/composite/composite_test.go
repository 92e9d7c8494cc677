package composite

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PatternBoard/internal/asset"
	"PatternBoard/internal/config"
	"PatternBoard/internal/geom"
	"PatternBoard/internal/store"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 2), uint8(y * 2), 0x80, 0xff})
		}
	}
	return img
}

func newTestEngine(t *testing.T) (*Engine, *store.MemStore) {
	t.Helper()
	s := store.NewMemStore()
	return NewEngine(config.Default().Composite, asset.NewLoader(s, ""), s, nil), s
}

func saveImage(t *testing.T, s store.Store, key string, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, s.Save(t.Context(), key, buf.Bytes()))
	return asset.SchemeStore + key
}

// square puts a single 100×100 gradient element at (250, 250).
func square(t *testing.T, e *Engine) {
	t.Helper()
	e.Load([]Element{{ID: "a", Key: "a", X: 250, Y: 250, Width: 100, Height: 100, Image: gradient(100, 100)}})
}

func colorNear(t *testing.T, want, got color.RGBA, tol int, msgAndArgs ...any) {
	t.Helper()
	d := func(a, b uint8) int {
		if a > b {
			return int(a - b)
		}
		return int(b - a)
	}
	if d(want.R, got.R) > tol || d(want.G, got.G) > tol || d(want.B, got.B) > tol || d(want.A, got.A) > tol {
		assert.Fail(t, fmt.Sprintf("colour mismatch: want %v got %v", want, got), msgAndArgs...)
	}
}

func TestDragScenario(t *testing.T) {
	e, _ := newTestEngine(t)
	square(t, e)

	e.PointerDown(300, 300, 0)
	require.NotNil(t, e.Selected())
	assert.Equal(t, GestureDrag, e.Gesture())
	e.PointerMove(350, 280, 0)
	e.PointerUp()

	el := e.Elements()[0]
	assert.Equal(t, 300.0, el.X)
	assert.Equal(t, 230.0, el.Y)
	assert.Equal(t, 100.0, el.Width)
	assert.Equal(t, GestureNone, e.Gesture())
}

func TestDragClampsToSurface(t *testing.T) {
	e, _ := newTestEngine(t)
	square(t, e)
	e.PointerDown(300, 300, 0)
	e.PointerMove(900, -400, 0)
	el := e.Elements()[0]
	assert.Equal(t, 500.0, el.X)
	assert.Equal(t, 0.0, el.Y)
}

func TestPlaceSizingAndIdempotence(t *testing.T) {
	e, s := newTestEngine(t)
	tests := []struct {
		key        string
		w, h       int
		wantW, wtH float64
	}{
		{"wide", 200, 100, 120, 60},
		{"tall", 30, 60, 60, 120},
		{"sliver", 1000, 10, 1000, 40},
	}
	for _, tt := range tests {
		ref := saveImage(t, s, "img/"+tt.key, gradient(tt.w, tt.h))
		el, err := e.Place(t.Context(), ref, tt.key, nil)
		require.NoError(t, err)
		assert.InDelta(t, tt.wantW, el.Width, 1e-9, tt.key)
		assert.InDelta(t, tt.wtH, el.Height, 1e-9, tt.key)
		assert.InDelta(t, (600-tt.wantW)/2, el.X, 1e-9, tt.key)
		assert.Equal(t, el.ID, e.Selected().ID)
		assert.Equal(t, Affine, el.State())
	}

	first := e.Elements()[0]
	e.Select("")
	again, err := e.Place(t.Context(), "store:whatever", "wide", nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.ID, e.Selected().ID)
	assert.Len(t, e.Elements(), 3)
}

func TestPlaceFailureShowsPlaceholder(t *testing.T) {
	e, _ := newTestEngine(t)
	el, err := e.Place(t.Context(), "store:missing", "broken", nil)
	require.NoError(t, err)
	assert.True(t, el.Placeholder)
	assert.Equal(t, 100.0, el.Width)
	assert.Equal(t, 100.0, el.Height)

	img := e.Render(false)
	assert.Equal(t, PlaceholderColor, img.RGBAAt(300, 300))
}

func TestPlaceWithTransformBakes(t *testing.T) {
	e, s := newTestEngine(t)
	ref := saveImage(t, s, "img/a", gradient(200, 100))
	el, err := e.Place(t.Context(), ref, "a", &Transform{Rotation: 90, Scale: 1})
	require.NoError(t, err)

	assert.True(t, el.Identity())
	assert.InDelta(t, 60, el.Width, 1e-6)
	assert.InDelta(t, 120, el.Height, 1e-6)
	assert.True(t, strings.HasPrefix(el.Source, asset.SchemeStore+bakePrefix))
	assert.Equal(t, 8*60, el.NaturalWidth)

	// the baked raster can be fetched again
	img, err := asset.LoadImage(t.Context(), asset.NewLoader(s, ""), el.Source)
	require.NoError(t, err)
	assert.Equal(t, el.NaturalHeight, img.Bounds().Dy())
}

func TestRotationSwapsVisualBounds(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Load([]Element{{ID: "a", X: 100, Y: 100, Width: 200, Height: 100, Image: gradient(20, 10)}})
	e.Select("a")
	require.True(t, e.SetRotation(90))

	vb := e.Selected().VisualBounds()
	assert.InDelta(t, 100, vb.W(), 1e-9)
	assert.InDelta(t, 200, vb.H(), 1e-9)
	assert.InDelta(t, 200, vb.Center().X, 1e-9)
	assert.InDelta(t, 150, vb.Center().Y, 1e-9)

	require.True(t, e.SetScale(2))
	vb = e.Selected().VisualBounds()
	assert.InDelta(t, 200, vb.W(), 1e-9)
	assert.InDelta(t, 400, vb.H(), 1e-9)
	assert.False(t, e.SetScale(0))

	require.True(t, e.SetFlip(true))
	assert.Equal(t, -1.0, e.Selected().Flip)
}

func TestFlipMirrorsRendering(t *testing.T) {
	e, _ := newTestEngine(t)
	square(t, e)
	before := e.RenderLayer().RGBAAt(255, 300)
	e.Select("a")
	e.SetFlip(true)
	after := e.RenderLayer().RGBAAt(344, 300)
	assert.Equal(t, before, after)
}

func TestIdentityBakePreservesPixels(t *testing.T) {
	e, _ := newTestEngine(t)
	square(t, e)
	before := e.RenderLayer()

	el := e.elements[0]
	bakeAffine(el, 8, 4096)
	assert.Equal(t, 800, el.Image.Bounds().Dx())
	assert.Equal(t, geom.XYWH(250, 250, 100, 100), el.Box())
	after := e.RenderLayer()

	for y := 253; y < 347; y += 3 {
		for x := 253; x < 347; x += 3 {
			colorNear(t, before.RGBAAt(x, y), after.RGBAAt(x, y), 3, "pixel (%d,%d)", x, y)
		}
	}
}

func TestBakeScaleRespectsMaxEdge(t *testing.T) {
	assert.Equal(t, 8.0, bakeScale(geom.XYWH(0, 0, 100, 50), 8, 4096))
	assert.Equal(t, 4.0, bakeScale(geom.XYWH(0, 0, 1000, 50), 8, 4000))
}

func TestWarpRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	square(t, e)
	before := e.RenderLayer()

	require.NoError(t, e.SetMode(t.Context(), Warp))
	el := e.Elements()[0]
	require.Equal(t, Warped, el.State())
	assert.Equal(t, geom.XYWH(250, 250, 100, 100).Quad(), *el.Warp)

	warped := e.RenderLayer()
	colorNear(t, before.RGBAAt(300, 300), warped.RGBAAt(300, 300), 2)

	require.NoError(t, e.SetMode(t.Context(), Normal))
	el = e.Elements()[0]
	assert.Equal(t, Affine, el.State())
	assert.InDelta(t, 250, el.X, 1)
	assert.InDelta(t, 250, el.Y, 1)
	assert.InDelta(t, 100, el.Width, 1)
	assert.InDelta(t, 100, el.Height, 1)
	assert.True(t, el.Identity())

	after := e.RenderLayer()
	for _, p := range []image.Point{{260, 260}, {300, 300}, {340, 330}} {
		colorNear(t, before.RGBAAt(p.X, p.Y), after.RGBAAt(p.X, p.Y), 4, "pixel %v", p)
	}
}

func TestEnteringWarpBakesTransform(t *testing.T) {
	e, _ := newTestEngine(t)
	square(t, e)
	e.Select("a")
	e.SetRotation(45)
	vb := e.Selected().VisualBounds()

	require.NoError(t, e.SetMode(t.Context(), Warp))
	el := e.Selected()
	assert.True(t, el.Identity())
	assert.InDelta(t, vb.W(), el.Width, 1e-9)
	assert.True(t, strings.HasPrefix(el.Source, asset.SchemeStore))
	assert.False(t, e.SetRotation(10), "warped elements keep identity")
}

func TestWarpCornerDragIsClamped(t *testing.T) {
	e, _ := newTestEngine(t)
	square(t, e)
	require.NoError(t, e.SetMode(t.Context(), Warp))

	e.PointerDown(300, 300, 0)
	e.PointerUp()
	e.PointerDown(251, 249, 0)
	require.Equal(t, GestureWarp, e.Gesture())
	e.PointerMove(-10, 240, 0)
	e.PointerUp()

	q := *e.Selected().Warp
	assert.Equal(t, geom.Pt(0, 240), q[geom.TopLeft])
	assert.Equal(t, geom.Pt(350, 250), q[geom.TopRight], "other corners stay")

	// dragging the body moves every corner rigidly
	e.PointerDown(300, 320, 0)
	require.Equal(t, GestureDrag, e.Gesture())
	e.PointerMove(310, 330, 0)
	q = *e.Selected().Warp
	assert.Equal(t, geom.Pt(10, 250), q[geom.TopLeft])
	assert.Equal(t, geom.Pt(360, 260), q[geom.TopRight])
}

func TestResizeAnchorsOppositeCorner(t *testing.T) {
	tests := []struct {
		name     string
		from, to geom.Point
		mods     Modifier
		want     geom.Rect
	}{
		{"bottom right", geom.Pt(350, 350), geom.Pt(370, 360), 0, geom.XYWH(250, 250, 120, 110)},
		{"shift averages", geom.Pt(350, 350), geom.Pt(370, 360), ModShift, geom.XYWH(250, 250, 115, 115)},
		{"top left", geom.Pt(250, 250), geom.Pt(300, 280), 0, geom.XYWH(300, 280, 50, 70)},
		{"minimum edge", geom.Pt(250, 250), geom.Pt(400, 400), 0, geom.XYWH(330, 330, 20, 20)},
		{"kept on surface", geom.Pt(350, 350), geom.Pt(700, 400), 0, geom.XYWH(150, 250, 450, 150)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			square(t, e)
			e.Select("a")
			e.PointerDown(tt.from.X, tt.from.Y, tt.mods)
			require.Equal(t, GestureResize, e.Gesture())
			e.PointerMove(tt.to.X, tt.to.Y, tt.mods)
			e.PointerUp()
			got := e.Selected().Box()
			assert.InDelta(t, tt.want.Min.X, got.Min.X, 1e-9)
			assert.InDelta(t, tt.want.Min.Y, got.Min.Y, 1e-9)
			assert.InDelta(t, tt.want.W(), got.W(), 1e-9)
			assert.InDelta(t, tt.want.H(), got.H(), 1e-9)
			assert.True(t, e.Selected().Identity())
		})
	}
}

func TestUniformResizeFloorKeepsAspect(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Load([]Element{{ID: "a", X: 100, Y: 100, Width: 200, Height: 100, Image: gradient(20, 10)}})
	e.Select("a")
	e.PointerDown(300, 200, ModShift)
	require.Equal(t, GestureResize, e.Gesture())
	e.PointerMove(110, 110, ModShift)
	e.PointerUp()

	got := e.Selected().Box()
	assert.InDelta(t, 40, got.W(), 1e-9)
	assert.InDelta(t, 20, got.H(), 1e-9)
	assert.InDelta(t, 100, got.Min.X, 1e-9)
	assert.InDelta(t, 100, got.Min.Y, 1e-9)
}

func TestHitUsesVisualBounds(t *testing.T) {
	e, _ := newTestEngine(t)
	square(t, e)
	e.Select("a")
	require.True(t, e.SetRotation(45))
	vb := e.Selected().VisualBounds()
	assert.InDelta(t, 300-50*math.Sqrt2, vb.Min.X, 1e-9)

	e.Select("")
	// outside the rotated square but inside its axis-aligned bounds
	e.PointerDown(235, 235, 0)
	require.NotNil(t, e.Selected())
	assert.Equal(t, "a", e.Selected().ID)
	assert.Equal(t, GestureDrag, e.Gesture())
}

func TestPlaceInWarpModeIsWarpable(t *testing.T) {
	e, s := newTestEngine(t)
	require.NoError(t, e.SetMode(t.Context(), Warp))
	ref := saveImage(t, s, "img/a", gradient(200, 100))
	el, err := e.Place(t.Context(), ref, "a", &Transform{Rotation: 30, Scale: 1})
	require.NoError(t, err)

	require.Equal(t, Warped, el.State())
	assert.True(t, el.Identity())
	assert.Equal(t, el.Box().Quad(), *el.Warp)
	assert.False(t, e.SetRotation(10))

	tl := el.Warp[geom.TopLeft]
	e.PointerDown(tl.X, tl.Y, 0)
	require.Equal(t, GestureWarp, e.Gesture())
	e.PointerMove(tl.X-5, tl.Y-5, 0)
	e.PointerUp()
	assert.Equal(t, geom.Pt(tl.X-5, tl.Y-5), e.Selected().Warp[geom.TopLeft])
}

func TestHitTesting(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Load([]Element{
		{ID: "bottom", X: 100, Y: 100, Width: 100, Height: 100, Image: gradient(4, 4)},
		{ID: "top", X: 150, Y: 150, Width: 100, Height: 100, Image: gradient(4, 4)},
	})

	e.PointerDown(175, 175, 0)
	assert.Equal(t, "top", e.Selected().ID)
	e.PointerUp()

	e.PointerDown(110, 110, 0)
	assert.Equal(t, "bottom", e.Selected().ID)
	e.PointerUp()

	e.PointerDown(175, 175, 0)
	require.Equal(t, "top", e.Selected().ID)
	e.PointerUp()

	// resize handles are only live on the selected element
	e.PointerDown(97, 97, 0)
	assert.Nil(t, e.Selected())
	assert.Equal(t, GestureNone, e.Gesture())

	e.PointerDown(500, 500, 0)
	assert.Nil(t, e.Selected())
}

func TestSelectionOutlineColours(t *testing.T) {
	e, _ := newTestEngine(t)
	square(t, e)
	e.Select("a")
	assert.Equal(t, SelectedColor, e.Render(true).RGBAAt(300, 249))
	assert.NotEqual(t, SelectedColor, e.Render(false).RGBAAt(300, 249))

	e.PointerDown(300, 300, 0)
	assert.Equal(t, DragColor, e.Render(true).RGBAAt(300, 249))
	e.PointerUp()

	require.NoError(t, e.SetMode(t.Context(), Warp))
	assert.Equal(t, WarpColor, e.Render(true).RGBAAt(300, 249))
}

func TestDeleteAndClear(t *testing.T) {
	e, _ := newTestEngine(t)
	square(t, e)
	e.Select("a")
	assert.False(t, e.Delete("nope"))
	assert.True(t, e.Delete("a"))
	assert.Nil(t, e.Selected())
	assert.Empty(t, e.Elements())

	square(t, e)
	require.NoError(t, e.SetMode(t.Context(), Warp))
	e.Clear()
	assert.Empty(t, e.Elements())
	assert.Equal(t, Normal, e.Mode())
}

func TestBackgroundIsStretched(t *testing.T) {
	e, _ := newTestEngine(t)
	bg := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(bg.Pix); i += 4 {
		copy(bg.Pix[i:], []uint8{0x10, 0x20, 0x30, 0xff})
	}
	e.SetBackground(bg)
	img := e.Render(false)
	colorNear(t, color.RGBA{0x10, 0x20, 0x30, 0xff}, img.RGBAAt(599, 599), 1)
	colorNear(t, color.RGBA{0x10, 0x20, 0x30, 0xff}, img.RGBAAt(0, 0), 1)
}

func TestQuadContains(t *testing.T) {
	q := geom.Quad{geom.Pt(0, 0), geom.Pt(10, 0), geom.Pt(8, 10), geom.Pt(2, 10)}
	assert.True(t, quadContains(q, geom.Pt(5, 5)))
	assert.False(t, quadContains(q, geom.Pt(0.5, 9)))
}

func TestScaleElements(t *testing.T) {
	q := geom.XYWH(10, 10, 20, 20).Quad()
	in := []Element{{X: 10, Y: 10, Width: 20, Height: 20, Warp: &q}}
	out := ScaleElements(in, 2, 3)
	assert.Equal(t, geom.XYWH(20, 30, 40, 60), out[0].Box())
	assert.Equal(t, geom.Pt(60, 90), out[0].Warp[geom.BottomRight])
	assert.Equal(t, geom.Pt(30, 30), in[0].Warp[geom.BottomRight], "input untouched")
}
