package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"PatternBoard/internal/applog"
	"PatternBoard/internal/asset"
	"PatternBoard/internal/composite"
	"PatternBoard/internal/draw"
	"PatternBoard/internal/history"
	"PatternBoard/internal/state"
)

// Session is everything the window works on.
type Session struct {
	Project   string
	Pattern   string
	Draw      *draw.Engine
	Composite *composite.Engine
	Pipeline  *history.Pipeline
	Assets    asset.Fetcher
	Bus       *state.Bus
	// DPI is the default print resolution offered on export.
	DPI      int
	ShareURL string
}

func (s *Session) drawingKey() string   { return s.Pattern }
func (s *Session) compositeKey() string { return "composite-" + s.Pattern }

// Workspace is the tabbed window content: the two surfaces and the saved
// history.
type Workspace struct {
	session *Session
	window  fyne.Window
	log     *slog.Logger

	draw    *DrawBoard
	comp    *CompositeBoard
	tabs    *container.AppTabs
	status  *widget.Label
	history *historyPanel

	rotation *widget.Slider
	scale    *widget.Slider
	flip     *widget.Check
	warp     *widget.Check
	syncing  bool

	// async runs slow work off the UI goroutine.
	async func(func())
}

// NewWorkspace builds the window content for s.
func NewWorkspace(s *Session, win fyne.Window) *Workspace {
	w := &Workspace{
		session: s,
		window:  win,
		log:     applog.Component("ui"),
		draw:    NewDrawBoard(s.Draw),
		comp:    NewCompositeBoard(s.Composite),
		status:  widget.NewLabel("Ready"),
		async:   func(fn func()) { go fn() },
	}
	w.comp.OnSelect = w.syncTransform
	w.history = newHistoryPanel(w)

	drawTab := container.NewBorder(w.newDrawToolbar(), nil, nil, nil, w.draw)
	compTab := container.NewBorder(w.newCompositeToolbar(), nil, nil, nil, w.comp)
	w.tabs = container.NewAppTabs(
		container.NewTabItem("Draw", drawTab),
		container.NewTabItem("Composite", compTab),
		container.NewTabItem("History", w.history.content),
	)
	w.tabs.OnSelected = func(t *container.TabItem) {
		if t.Text == "History" {
			w.history.reload()
		}
	}

	if s.Bus == nil {
		return w
	}
	s.Bus.Subscribe(func(e state.Event) {
		if e.Site == s.Bus.Site() {
			switch e.Type {
			case state.EventArtworkSaved, state.EventArtworkDeleted:
				fyne.Do(w.history.reload)
			}
			return
		}
		fyne.Do(func() {
			switch e.Type {
			case state.EventArtworkSaved, state.EventExported:
				w.history.addRemote(e)
			}
			w.status.SetText(fmt.Sprintf("Remote %s", e.Type))
		})
	})
	return w
}

// Content returns the root canvas object.
func (w *Workspace) Content() fyne.CanvasObject {
	footer := container.NewHBox(w.status)
	if w.session.ShareURL != "" {
		footer.Add(widget.NewLabel("Relay: " + w.session.ShareURL))
	}
	return container.NewBorder(nil, footer, nil, nil, w.tabs)
}

func (w *Workspace) setStatus(text string) {
	fyne.Do(func() { w.status.SetText(text) })
}

func (w *Workspace) onComposite() bool {
	return w.tabs != nil && w.tabs.Selected() != nil && w.tabs.Selected().Text == "Composite"
}

func (w *Workspace) undo() {
	if w.draw.Engine().Undo() {
		w.draw.Refresh()
	}
}

func (w *Workspace) redo() {
	if w.draw.Engine().Redo() {
		w.draw.Refresh()
	}
}

func (w *Workspace) deleteSelected() {
	if w.onComposite() {
		if sel := w.comp.Engine().Selected(); sel != nil && w.comp.Engine().Delete(sel.ID) {
			w.comp.Refresh()
			w.syncTransform(nil)
		}
		return
	}
	if w.draw.Engine().DeleteSelected() {
		w.draw.Refresh()
	}
}

// saveDrawing captures the drawing layer now and stores it in the
// background.
func (w *Workspace) saveDrawing() {
	e := w.draw.Engine()
	surface, elems := e.RenderLayer(), e.Elements()
	s := w.session
	w.background("Saving drawing", func(ctx context.Context) error {
		_, err := s.Pipeline.SaveDrawing(ctx, s.Project, s.drawingKey(), s.Pattern, surface, elems)
		return err
	})
}

func (w *Workspace) saveComposite() {
	e := w.comp.Engine()
	surface, elems := e.RenderLayer(), e.Elements()
	s := w.session
	w.background("Saving composite", func(ctx context.Context) error {
		_, err := s.Pipeline.SaveComposite(ctx, s.Project, s.compositeKey(), s.Pattern, surface, elems)
		return err
	})
}

func (w *Workspace) background(what string, fn func(ctx context.Context) error) {
	if w.session.Pipeline.Busy() {
		w.setStatus("Busy, try again shortly")
		return
	}
	w.setStatus(what + "...")
	w.async(func() {
		err := fn(context.Background())
		switch {
		case errors.Is(err, history.ErrNoContent):
			w.setStatus("Nothing to save yet")
		case err != nil:
			w.log.Error(what+" failed", "err", err)
			w.setStatus(what + " failed: " + err.Error())
		default:
			w.setStatus(what + " done")
		}
	})
}

func (w *Workspace) openImage(then func(ref, name string)) {
	d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil || r == nil {
			return
		}
		r.Close()
		then(r.URI().Path(), r.URI().Name())
	}, w.window)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff"}))
	d.Show()
}

func (w *Workspace) placeDrawingImage() {
	w.openImage(func(ref, _ string) {
		img, err := asset.LoadImage(context.Background(), w.session.Assets, ref)
		if err != nil {
			w.setStatus("Could not load image: " + err.Error())
			return
		}
		w.draw.Engine().PlaceImage(img, ref)
		w.draw.Refresh()
	})
}

func (w *Workspace) placeCompositeImage() {
	w.openImage(func(ref, name string) {
		el, err := w.comp.Engine().Place(context.Background(), ref, name, nil)
		if err != nil {
			w.setStatus("Could not place image: " + err.Error())
			return
		}
		w.comp.Refresh()
		w.syncTransform(&el)
	})
}

func (w *Workspace) installShortcuts(c fyne.Canvas) {
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { w.undo() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault | fyne.KeyModifierShift}, func(fyne.Shortcut) { w.redo() })
	c.SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyDelete, fyne.KeyBackspace:
			w.deleteSelected()
		}
	})
}

// RunApp opens the main window and blocks until it is closed.
func RunApp(s *Session) {
	a := app.NewWithID("com.patternboard.app")
	win := a.NewWindow("PatternBoard")
	win.Resize(fyne.NewSize(1280, 860))

	w := NewWorkspace(s, win)
	w.installShortcuts(win.Canvas())
	win.SetContent(w.Content())
	win.ShowAndRun()
}
