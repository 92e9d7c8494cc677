package ui

import (
	"context"
	"fmt"
	"image"
	"io"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"PatternBoard/internal/asset"
	"PatternBoard/internal/export"
	"PatternBoard/internal/history"
	"PatternBoard/internal/state"
)

// baseDPI is the resolution surfaces are drawn at on screen.
const baseDPI = 96

// maxRemote caps how many peer previews the panel keeps.
const maxRemote = 10

type remoteArtwork struct {
	title string
	image image.Image
}

// historyPanel lists saved artwork and reopens or exports it.
type historyPanel struct {
	ws       *Workspace
	entries  []history.Entry
	selected int
	list     *widget.List
	content  fyne.CanvasObject

	remote     []remoteArtwork
	remoteList *widget.List
	preview    *canvas.Image
}

func newHistoryPanel(ws *Workspace) *historyPanel {
	h := &historyPanel{ws: ws, selected: -1}
	h.list = widget.NewList(
		func() int { return len(h.entries) },
		func() fyne.CanvasObject { return widget.NewLabel("artwork") },
		func(id widget.ListItemID, o fyne.CanvasObject) {
			e := h.entries[id]
			o.(*widget.Label).SetText(fmt.Sprintf("%s  (%s, %s)", e.Key, e.Kind, e.Timestamp.Format("2006-01-02 15:04")))
		},
	)
	h.list.OnSelected = func(id widget.ListItemID) { h.selected = id }
	h.list.OnUnselected = func(widget.ListItemID) { h.selected = -1 }

	buttons := container.NewHBox(
		widget.NewButton("Open", h.open),
		widget.NewButton("Export...", h.export),
		widget.NewButton("Delete", h.remove),
	)
	local := container.NewBorder(nil, buttons, nil, nil, h.list)

	h.preview = canvas.NewImageFromImage(nil)
	h.preview.FillMode = canvas.ImageFillContain
	h.preview.SetMinSize(fyne.NewSize(160, 120))
	h.remoteList = widget.NewList(
		func() int { return len(h.remote) },
		func() fyne.CanvasObject { return widget.NewLabel("artwork") },
		func(id widget.ListItemID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(h.remote[id].title)
		},
	)
	h.remoteList.OnSelected = func(id widget.ListItemID) {
		h.preview.Image = h.remote[id].image
		h.preview.Refresh()
	}
	peers := container.NewBorder(widget.NewLabel("From peers"), nil, nil, h.preview, h.remoteList)

	split := container.NewVSplit(local, peers)
	split.Offset = 0.7
	h.content = split
	return h
}

// addRemote shows the preview a peer attached to a saved or exported event.
// Events without a decodable preview are ignored.
func (h *historyPanel) addRemote(e state.Event) bool {
	if len(e.Preview) == 0 {
		return false
	}
	img, err := asset.Decode(e.Preview)
	if err != nil {
		h.ws.setStatus("Bad preview from peer: " + err.Error())
		return false
	}
	title := fmt.Sprintf("%s  (%s, %s)", e.Data["key"], e.Data["kind"], e.Type)
	h.remote = append([]remoteArtwork{{title: title, image: img}}, h.remote...)
	if len(h.remote) > maxRemote {
		h.remote = h.remote[:maxRemote]
	}
	h.preview.Image = img
	h.preview.Refresh()
	h.remoteList.UnselectAll()
	h.remoteList.Refresh()
	return true
}

func (h *historyPanel) reload() {
	list, err := h.ws.session.Pipeline.List(context.Background(), h.ws.session.Project)
	if err != nil {
		h.ws.setStatus("Could not read history: " + err.Error())
		return
	}
	h.entries = list
	h.selected = -1
	h.list.UnselectAll()
	h.list.Refresh()
}

func (h *historyPanel) current() (history.Artwork, bool) {
	if h.selected < 0 || h.selected >= len(h.entries) {
		return history.Artwork{}, false
	}
	s := h.ws.session
	art, err := s.Pipeline.Load(context.Background(), s.Project, h.entries[h.selected].Key)
	if err != nil {
		h.ws.setStatus("Could not open artwork: " + err.Error())
		return history.Artwork{}, false
	}
	return art, true
}

// open loads the selected artwork back onto its surface.
func (h *historyPanel) open() {
	art, ok := h.current()
	if !ok {
		return
	}
	if err := h.ws.openArtwork(context.Background(), art); err != nil {
		h.ws.setStatus("Could not open artwork: " + err.Error())
	}
}

func (w *Workspace) openArtwork(ctx context.Context, art history.Artwork) error {
	p := w.session.Pipeline
	switch art.Kind {
	case history.KindDrawing:
		elems, err := p.Drawing(ctx, art)
		if err != nil {
			return err
		}
		w.draw.Engine().Load(elems)
		w.draw.Refresh()
		w.tabs.SelectIndex(0)
	case history.KindComposite:
		elems, err := p.Composite(ctx, art)
		if err != nil {
			return err
		}
		w.comp.Engine().Load(elems)
		w.comp.Refresh()
		w.syncTransform(nil)
		w.tabs.SelectIndex(1)
	default:
		return fmt.Errorf("unknown artwork kind %q", art.Kind)
	}
	w.setStatus("Opened " + art.Key)
	return nil
}

func (h *historyPanel) remove() {
	if h.selected < 0 || h.selected >= len(h.entries) {
		return
	}
	s := h.ws.session
	key := h.entries[h.selected].Key
	if err := s.Pipeline.Delete(context.Background(), s.Project, key); err != nil {
		h.ws.setStatus("Delete failed: " + err.Error())
		return
	}
	h.reload()
}

// export asks for a destination and resolution, then renders the selected
// artwork at that resolution and writes it.
func (h *historyPanel) export() {
	art, ok := h.current()
	if !ok {
		return
	}
	dpi := widget.NewSelect([]string{"150", "300", "600"}, nil)
	dpi.SetSelected(strconv.Itoa(h.ws.session.DPI))
	tile := widget.NewCheck("Tile PDF on A4", nil)
	form := dialog.NewForm("Export "+art.Key, "Choose file...", "Cancel", []*widget.FormItem{
		widget.NewFormItem("DPI", dpi),
		widget.NewFormItem("", tile),
	}, func(confirm bool) {
		if !confirm {
			return
		}
		d, _ := strconv.Atoi(dpi.Selected)
		h.chooseDestination(art, export.Options{DPI: d, Tile: tile.Checked})
	}, h.ws.window)
	form.Show()
}

func (h *historyPanel) chooseDestination(art history.Artwork, opts export.Options) {
	d := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		h.ws.background("Exporting "+art.Key, func(ctx context.Context) error {
			defer wc.Close()
			return h.ws.exportArtwork(ctx, art, wc.URI().Name(), wc, opts)
		})
	}, h.ws.window)
	d.SetFileName(art.Key + ".png")
	d.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".tif", ".tiff", ".pdf"}))
	d.Show()
}

// exportArtwork renders art at opts.DPI relative to the on-screen
// resolution and encodes it in the format name's extension selects.
func (w *Workspace) exportArtwork(ctx context.Context, art history.Artwork, name string, dst io.Writer, opts export.Options) error {
	format, err := export.FormatOf(name)
	if err != nil {
		return err
	}
	img, err := w.render(ctx, art, opts.DPI)
	if err != nil {
		return err
	}
	return export.Write(dst, format, img, opts)
}

func (w *Workspace) render(ctx context.Context, art history.Artwork, dpi int) (image.Image, error) {
	if dpi <= 0 {
		dpi = baseDPI
	}
	scale := float64(dpi) / baseDPI
	ow, oh := int(float64(art.OriginalWidth)*scale+0.5), int(float64(art.OriginalHeight)*scale+0.5)
	return w.session.Pipeline.Export(ctx, art, ow, oh)
}
