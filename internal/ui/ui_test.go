package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PatternBoard/internal/asset"
	"PatternBoard/internal/composite"
	"PatternBoard/internal/config"
	"PatternBoard/internal/draw"
	"PatternBoard/internal/export"
	"PatternBoard/internal/history"
	"PatternBoard/internal/pattern"
	"PatternBoard/internal/state"
	"PatternBoard/internal/store"
)

func press(x, y float32) *desktop.MouseEvent {
	return &desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}, Button: desktop.MouseButtonPrimary}
}

func dragTo(x, y float32) *fyne.DragEvent {
	return &fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}}
}

func testSession(t *testing.T) *Session {
	t.Helper()
	cfg := config.Default()
	cfg.Drawing.Width, cfg.Drawing.Height = 200, 200
	cfg.Composite.Width, cfg.Composite.Height = 200, 200

	s := store.NewMemStore()
	assets := asset.NewLoader(s, "")
	bus := state.NewBus()
	de := draw.NewEngine(cfg.Drawing, bus)
	square := pattern.Outline{Subpaths: [][]pattern.Point{{{X: 0, Y: 0}, {X: 200, Y: 0}, {X: 200, Y: 200}, {X: 0, Y: 200}}}}
	de.SetRegion(pattern.Extract(square, 200, 200))

	return &Session{
		Project:   "proj",
		Pattern:   "front-bodice",
		Draw:      de,
		Composite: composite.NewEngine(cfg.Composite, assets, s, bus),
		Pipeline:  history.NewPipeline(s, assets, cfg.Drawing.Freehand, cfg.Storage.HistoryLimit, bus),
		Assets:    assets,
		Bus:       bus,
		DPI:       300,
	}
}

func tile(w, h int, c color.RGBA) *image.RGBA {
	return asset.Placeholder(w, h, c)
}

func TestSurfaceViewFit(t *testing.T) {
	v := surfaceView{w: 200, h: 200}

	pos, size, s := v.fit(fyne.NewSize(400, 200))
	assert.Equal(t, fyne.NewPos(100, 0), pos)
	assert.Equal(t, fyne.NewSize(200, 200), size)
	assert.Equal(t, float32(1), s)

	x, y := v.toSurface(fyne.NewSize(400, 200), fyne.NewPos(150, 50))
	assert.Equal(t, [2]float32{50, 50}, [2]float32{x, y})

	x, y = v.toSurface(fyne.NewSize(100, 100), fyne.NewPos(50, 25))
	assert.Equal(t, [2]float32{100, 50}, [2]float32{x, y})
}

func TestDrawBoardStroke(t *testing.T) {
	test.NewTempApp(t)
	s := testSession(t)
	b := NewDrawBoard(s.Draw)
	b.Resize(fyne.NewSize(200, 200))
	changes := 0
	b.OnChange = func() { changes++ }

	b.MouseDown(press(20, 20))
	b.Dragged(dragTo(60, 60))
	b.Dragged(dragTo(100, 80))
	b.MouseUp(press(100, 80))
	b.DragEnd()

	elems := s.Draw.Elements()
	require.Len(t, elems, 1)
	assert.Equal(t, state.KindInk, elems[0].Kind)
	assert.Len(t, elems[0].Points, 3)
	assert.Equal(t, state.Point{X: 60, Y: 60}, elems[0].Points[1])
	assert.Equal(t, 1, changes)
	assert.False(t, s.Draw.Drawing())
}

func TestDrawBoardIgnoresSecondaryButton(t *testing.T) {
	test.NewTempApp(t)
	s := testSession(t)
	b := NewDrawBoard(s.Draw)
	b.Resize(fyne.NewSize(200, 200))

	ev := press(20, 20)
	ev.Button = desktop.MouseButtonSecondary
	b.MouseDown(ev)
	b.Dragged(dragTo(40, 40))
	b.MouseUp(ev)

	assert.Empty(t, s.Draw.Elements())
}

func TestCompositeBoardDrag(t *testing.T) {
	test.NewTempApp(t)
	s := testSession(t)
	s.Composite.Load([]composite.Element{{ID: "a", Key: "a", X: 50, Y: 50, Width: 40, Height: 40, Image: tile(4, 4, color.RGBA{R: 0xff, A: 0xff})}})
	b := NewCompositeBoard(s.Composite)
	b.Resize(fyne.NewSize(400, 400))
	var selected *composite.Element
	b.OnSelect = func(el *composite.Element) { selected = el }

	// The 200×200 surface is shown at twice its size.
	b.MouseDown(press(140, 140))
	require.NotNil(t, selected)
	assert.Equal(t, "a", selected.ID)
	b.Dragged(dragTo(180, 160))
	b.MouseUp(press(180, 160))

	el := s.Composite.Elements()[0]
	assert.InDelta(t, 70, el.X, 1e-9)
	assert.InDelta(t, 60, el.Y, 1e-9)
	assert.Equal(t, composite.GestureNone, s.Composite.Gesture())
}

func TestWorkspaceSaveAndReopen(t *testing.T) {
	a := test.NewTempApp(t)
	s := testSession(t)
	w := NewWorkspace(s, a.NewWindow("test"))
	w.async = func(fn func()) { fn() }

	s.Draw.PointerDown(30, 30)
	s.Draw.PointerMove(90, 60)
	s.Draw.PointerMove(150, 120)
	s.Draw.PointerUp()
	w.saveDrawing()

	list, err := s.Pipeline.List(t.Context(), "proj")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "front-bodice", list[0].Key)
	assert.Len(t, w.history.entries, 1, "saving refreshes the history list")
	assert.Equal(t, "Saving drawing done", w.status.Text)

	s.Draw.Clear()
	require.Empty(t, s.Draw.Elements())
	art, err := s.Pipeline.Load(t.Context(), "proj", "front-bodice")
	require.NoError(t, err)
	require.NoError(t, w.openArtwork(t.Context(), art))
	assert.Len(t, s.Draw.Elements(), 1)
	assert.Equal(t, 0, w.tabs.SelectedIndex())
}

func TestWorkspaceSaveEmptySurface(t *testing.T) {
	a := test.NewTempApp(t)
	s := testSession(t)
	w := NewWorkspace(s, a.NewWindow("test"))
	w.async = func(fn func()) { fn() }

	w.saveComposite()
	assert.Equal(t, "Nothing to save yet", w.status.Text)
}

func TestWorkspaceCompositeRoundTrip(t *testing.T) {
	a := test.NewTempApp(t)
	s := testSession(t)
	w := NewWorkspace(s, a.NewWindow("test"))
	w.async = func(fn func()) { fn() }

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, tile(10, 10, color.RGBA{B: 0xff, A: 0xff})))
	src := asset.DataURI("image/png", buf.Bytes())
	_, err := s.Composite.Place(t.Context(), src, "swatch", nil)
	require.NoError(t, err)
	w.saveComposite()

	s.Composite.Clear()
	art, err := s.Pipeline.Load(t.Context(), "proj", "composite-front-bodice")
	require.NoError(t, err)
	require.NoError(t, w.openArtwork(t.Context(), art))
	require.Len(t, s.Composite.Elements(), 1)
	assert.Equal(t, "swatch", s.Composite.Elements()[0].Key)
	assert.Equal(t, 1, w.tabs.SelectedIndex())

	var out bytes.Buffer
	require.NoError(t, w.exportArtwork(t.Context(), art, "swatch.png", &out, export.Options{DPI: 192}))
	img, err := png.Decode(&out)
	require.NoError(t, err)
	assert.Equal(t, 240, img.Bounds().Dx(), "120px element at twice the screen resolution")
}

func TestDeleteSelectedFollowsTab(t *testing.T) {
	a := test.NewTempApp(t)
	s := testSession(t)
	w := NewWorkspace(s, a.NewWindow("test"))
	s.Composite.Load([]composite.Element{{ID: "a", Key: "a", X: 10, Y: 10, Width: 40, Height: 40, Image: tile(4, 4, color.RGBA{A: 0xff})}})
	s.Composite.Select("a")

	w.tabs.SelectIndex(1)
	w.deleteSelected()
	assert.Empty(t, s.Composite.Elements())
}

func TestRemoteArtworkShowsPreview(t *testing.T) {
	a := test.NewTempApp(t)
	s := testSession(t)
	w := NewWorkspace(s, a.NewWindow("test"))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, tile(64, 48, color.RGBA{G: 0xff, A: 0xff})))
	s.Bus.Deliver(state.Event{
		Type:    state.EventArtworkSaved,
		Data:    map[string]string{"key": "sleeve", "kind": "drawing"},
		Preview: buf.Bytes(),
		Lamport: 3,
		Site:    "peer",
	})

	require.Len(t, w.history.remote, 1)
	assert.Equal(t, "sleeve  (drawing, artwork_saved)", w.history.remote[0].title)
	assert.Equal(t, image.Rect(0, 0, 64, 48), w.history.remote[0].image.Bounds())
	assert.Same(t, w.history.remote[0].image, w.history.preview.Image)
	assert.Empty(t, w.history.entries, "peer artwork is not in the local store")
	assert.Equal(t, "Remote artwork_saved", w.status.Text)

	s.Bus.Deliver(state.Event{Type: state.EventArtworkSaved, Data: map[string]string{"key": "cuff"}, Lamport: 4, Site: "peer"})
	assert.Len(t, w.history.remote, 1, "events without a preview are not listed")
}
