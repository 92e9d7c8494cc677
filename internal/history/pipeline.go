package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/anthonynsimon/bild/transform"

	"PatternBoard/internal/applog"
	"PatternBoard/internal/asset"
	"PatternBoard/internal/composite"
	"PatternBoard/internal/config"
	"PatternBoard/internal/draw"
	"PatternBoard/internal/state"
	"PatternBoard/internal/store"
)

type Kind string

// PreviewEdge bounds the longest side of previews attached to events.
const PreviewEdge = 256

const (
	KindDrawing   Kind = "drawing"
	KindComposite Kind = "composite"
)

// Artwork is the persisted form of one finished surface.
type Artwork struct {
	Key              string          `json:"key"`
	Project          string          `json:"project"`
	PatternReference string          `json:"patternReference"`
	Kind             Kind            `json:"kind"`
	Elements         json.RawMessage `json:"elements"`
	Thumbnail        string          `json:"thumbnail"`
	OriginalWidth    int             `json:"originalWidth"`
	OriginalHeight   int             `json:"originalHeight"`
	Timestamp        time.Time       `json:"timestamp"`
}

// Entry is one line of a project's history list.
type Entry struct {
	Key              string    `json:"key"`
	PatternReference string    `json:"patternReference"`
	Kind             Kind      `json:"kind"`
	Thumbnail        string    `json:"thumbnail"`
	Timestamp        time.Time `json:"timestamp"`
}

// Pipeline saves, lists, loads and exports artwork through a store.
// Save and Export refuse to run concurrently with each other; hosts poll
// Busy to disable their controls.
type Pipeline struct {
	store    store.Store
	fetch    asset.Fetcher
	freehand config.Freehand
	limit    int
	busy     atomic.Bool
	bus      *state.Bus
	log      *slog.Logger
	now      func() time.Time
}

// NewPipeline returns a pipeline keeping at most limit entries per project.
func NewPipeline(s store.Store, f asset.Fetcher, fh config.Freehand, limit int, bus *state.Bus) *Pipeline {
	return &Pipeline{
		store:    s,
		fetch:    f,
		freehand: fh,
		limit:    max(limit, 1),
		bus:      bus,
		log:      applog.Component("history"),
		now:      time.Now,
	}
}

// Busy reports whether a save or export is running.
func (p *Pipeline) Busy() bool {
	return p.busy.Load()
}

func (p *Pipeline) enter() error {
	if !p.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (p *Pipeline) leave() { p.busy.Store(false) }

func artworkKey(project, key string) string { return "artwork/" + project + "/" + key }
func listKey(project string) string         { return "history/" + project }
func thumbKey(project, key string) string {
	return "thumb/" + project + "/" + key + "/" + state.NewID()
}

// SaveDrawing captures a drawing surface and stores it with its elements.
func (p *Pipeline) SaveDrawing(ctx context.Context, project, key, patternRef string, surface *image.RGBA, elems []state.Element) (Artwork, error) {
	data, err := SerializeDrawing(elems)
	if err != nil {
		return Artwork{}, err
	}
	return p.save(ctx, project, key, patternRef, KindDrawing, surface, data)
}

// SaveComposite captures a compositing surface and stores it with its
// elements.
func (p *Pipeline) SaveComposite(ctx context.Context, project, key, patternRef string, surface *image.RGBA, elems []composite.Element) (Artwork, error) {
	data, err := SerializeComposite(elems)
	if err != nil {
		return Artwork{}, err
	}
	return p.save(ctx, project, key, patternRef, KindComposite, surface, data)
}

func (p *Pipeline) save(ctx context.Context, project, key, patternRef string, kind Kind, surface *image.RGBA, elems json.RawMessage) (Artwork, error) {
	if err := p.enter(); err != nil {
		return Artwork{}, err
	}
	defer p.leave()

	crop, err := Capture(surface)
	if err != nil {
		return Artwork{}, err
	}
	thumb, err := encodePNG(crop.Image)
	if err != nil {
		return Artwork{}, fmt.Errorf("encode thumbnail: %w", err)
	}
	tk := thumbKey(project, key)
	if err := p.store.Save(ctx, tk, thumb); err != nil {
		return Artwork{}, fmt.Errorf("save thumbnail: %w", err)
	}

	art := Artwork{
		Key:              key,
		Project:          project,
		PatternReference: patternRef,
		Kind:             kind,
		Elements:         elems,
		Thumbnail:        asset.SchemeStore + tk,
		OriginalWidth:    crop.OriginalWidth,
		OriginalHeight:   crop.OriginalHeight,
		Timestamp:        p.now(),
	}
	raw, err := json.Marshal(art)
	if err != nil {
		return Artwork{}, fmt.Errorf("encode artwork: %w", err)
	}
	if err := p.store.Save(ctx, artworkKey(project, key), raw); err != nil {
		return Artwork{}, fmt.Errorf("save artwork: %w", err)
	}
	if err := p.record(ctx, art); err != nil {
		return Artwork{}, err
	}

	p.log.Info("artwork saved", "project", project, "key", key, "kind", kind, "crop", crop.Image.Bounds().Size())
	p.bus.Publish(state.Event{
		Type:    state.EventArtworkSaved,
		Data:    map[string]string{"project": project, "key": key, "kind": string(kind), "pattern": patternRef},
		Preview: p.preview(crop.Image),
	})
	return art, nil
}

// record puts art at the head of the project list, replacing any entry
// with the same key and evicting entries past the limit. Replaced and
// evicted thumbnails are deleted.
func (p *Pipeline) record(ctx context.Context, art Artwork) error {
	list, err := p.List(ctx, art.Project)
	if err != nil {
		return err
	}
	var stale []Entry
	list = slices.DeleteFunc(list, func(e Entry) bool {
		if e.Key == art.Key {
			stale = append(stale, e)
			return true
		}
		return false
	})
	list = slices.Insert(list, 0, Entry{
		Key:              art.Key,
		PatternReference: art.PatternReference,
		Kind:             art.Kind,
		Thumbnail:        art.Thumbnail,
		Timestamp:        art.Timestamp,
	})
	if len(list) > p.limit {
		for _, e := range list[p.limit:] {
			stale = append(stale, e)
			if err := p.store.Delete(ctx, artworkKey(art.Project, e.Key)); err != nil {
				return fmt.Errorf("evict artwork: %w", err)
			}
		}
		list = list[:p.limit]
	}

	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := p.store.Save(ctx, listKey(art.Project), raw); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	for _, e := range stale {
		p.deleteThumb(ctx, e.Thumbnail)
	}
	return nil
}

func (p *Pipeline) deleteThumb(ctx context.Context, ref string) {
	if len(ref) <= len(asset.SchemeStore) {
		return
	}
	if err := p.store.Delete(ctx, ref[len(asset.SchemeStore):]); err != nil {
		p.log.Warn("thumbnail not removed", "ref", ref, "err", err)
	}
}

// List returns the project's entries, most recent first.
func (p *Pipeline) List(ctx context.Context, project string) ([]Entry, error) {
	raw, err := p.store.Load(ctx, listKey(project))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	var list []Entry
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return list, nil
}

// Load returns the stored artwork for key.
func (p *Pipeline) Load(ctx context.Context, project, key string) (Artwork, error) {
	raw, err := p.store.Load(ctx, artworkKey(project, key))
	if err != nil {
		return Artwork{}, fmt.Errorf("load artwork %s/%s: %w", project, key, err)
	}
	var art Artwork
	if err := json.Unmarshal(raw, &art); err != nil {
		return Artwork{}, fmt.Errorf("decode artwork: %w", err)
	}
	return art, nil
}

// Delete removes the artwork, its thumbnail and its list entry.
func (p *Pipeline) Delete(ctx context.Context, project, key string) error {
	list, err := p.List(ctx, project)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(list, func(e Entry) bool { return e.Key == key })
	if i >= 0 {
		p.deleteThumb(ctx, list[i].Thumbnail)
		list = slices.Delete(list, i, i+1)
		raw, err := json.Marshal(list)
		if err != nil {
			return fmt.Errorf("encode history: %w", err)
		}
		if err := p.store.Save(ctx, listKey(project), raw); err != nil {
			return fmt.Errorf("save history: %w", err)
		}
	}
	if err := p.store.Delete(ctx, artworkKey(project, key)); err != nil {
		return fmt.Errorf("delete artwork: %w", err)
	}
	p.bus.Publish(state.Event{Type: state.EventArtworkDeleted, Data: map[string]string{"project": project, "key": key}})
	return nil
}

// Drawing reloads a drawing artwork's elements, dropping those whose
// images are gone.
func (p *Pipeline) Drawing(ctx context.Context, art Artwork) ([]state.Element, error) {
	if art.Kind != KindDrawing {
		return nil, fmt.Errorf("artwork %s is %s, not a drawing", art.Key, art.Kind)
	}
	return DeserializeDrawing(ctx, p.fetch, art.Elements)
}

// Composite reloads a composite artwork's elements.
func (p *Pipeline) Composite(ctx context.Context, art Artwork) ([]composite.Element, error) {
	if art.Kind != KindComposite {
		return nil, fmt.Errorf("artwork %s is %s, not a composite", art.Key, art.Kind)
	}
	return DeserializeComposite(ctx, p.fetch, art.Elements)
}

// Export redraws art on a w×h surface and crops the result. Positions and
// sizes scale per axis; stroke widths by the larger factor. Any image that
// fails to reload aborts the export.
func (p *Pipeline) Export(ctx context.Context, art Artwork, w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: target %dx%d", ErrDegenerateExport, w, h)
	}
	if art.OriginalWidth <= 0 || art.OriginalHeight <= 0 {
		return nil, fmt.Errorf("%w: original surface %dx%d", ErrDegenerateExport, art.OriginalWidth, art.OriginalHeight)
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	fx := float64(w) / float64(art.OriginalWidth)
	fy := float64(h) / float64(art.OriginalHeight)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	switch art.Kind {
	case KindDrawing:
		elems, err := decodeDrawing(ctx, p.fetch, art.Elements, true)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", art.Key, err)
		}
		draw.RenderElements(dst, draw.ScaleElements(elems, float32(fx), float32(fy)), p.freehand)
	case KindComposite:
		elems, err := decodeComposite(ctx, p.fetch, art.Elements, true)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", art.Key, err)
		}
		composite.DrawElements(dst, composite.ScaleElements(elems, fx, fy))
	default:
		return nil, fmt.Errorf("export %s: unknown kind %q", art.Key, art.Kind)
	}

	crop, err := Capture(dst)
	if errors.Is(err, ErrNoContent) {
		return nil, fmt.Errorf("%w: nothing visible", ErrDegenerateExport)
	}
	if err != nil {
		return nil, err
	}
	p.log.Info("artwork exported", "key", art.Key, "size", [2]int{w, h}, "crop", crop.Image.Bounds().Size())
	p.bus.Publish(state.Event{
		Type:    state.EventExported,
		Data:    map[string]string{"project": art.Project, "key": art.Key, "kind": string(art.Kind), "size": fmt.Sprintf("%dx%d", w, h)},
		Preview: p.preview(crop.Image),
	})
	return crop.Image, nil
}

// preview encodes img as a PNG no larger than PreviewEdge on either side.
// It returns nil when nobody listens or encoding fails.
func (p *Pipeline) preview(img *image.RGBA) []byte {
	if p.bus == nil {
		return nil
	}
	b := img.Bounds()
	if long := max(b.Dx(), b.Dy()); long > PreviewEdge {
		w := max(1, b.Dx()*PreviewEdge/long)
		h := max(1, b.Dy()*PreviewEdge/long)
		img = transform.Resize(img, w, h, transform.Linear)
	}
	data, err := encodePNG(img)
	if err != nil {
		p.log.Warn("preview encoding failed", "err", err)
		return nil
	}
	return data
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
