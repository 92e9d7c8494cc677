package history

import (
	"context"
	"encoding/json"
	"fmt"
	"image"

	"github.com/jinzhu/copier"
	"golang.org/x/sync/errgroup"

	"PatternBoard/internal/applog"
	"PatternBoard/internal/asset"
	"PatternBoard/internal/composite"
	"PatternBoard/internal/geom"
	"PatternBoard/internal/state"
)

// reloadLimit bounds concurrent image decodes during a reload.
const reloadLimit = 4

// drawingRecord is the persisted form of a drawing element. Images are kept
// as a source reference and their natural size.
type drawingRecord struct {
	ID            string        `json:"id"`
	Kind          state.Kind    `json:"kind"`
	Points        []state.Point `json:"points,omitempty"`
	Breaks        []int         `json:"breaks,omitempty"`
	Color         string        `json:"color,omitempty"`
	StrokeWidth   float32       `json:"strokeWidth,omitempty"`
	X             float32       `json:"x,omitempty"`
	Y             float32       `json:"y,omitempty"`
	Width         float32       `json:"width,omitempty"`
	Height        float32       `json:"height,omitempty"`
	Rotation      float32       `json:"rotation,omitempty"`
	Source        string        `json:"source,omitempty"`
	NaturalWidth  int           `json:"naturalWidth,omitempty"`
	NaturalHeight int           `json:"naturalHeight,omitempty"`
}

type compositeRecord struct {
	ID            string     `json:"id"`
	Key           string     `json:"key"`
	Source        string     `json:"source"`
	NaturalWidth  int        `json:"naturalWidth"`
	NaturalHeight int        `json:"naturalHeight"`
	X             float64    `json:"x"`
	Y             float64    `json:"y"`
	Width         float64    `json:"width"`
	Height        float64    `json:"height"`
	Rotation      float64    `json:"rotation"`
	Scale         float64    `json:"scale"`
	Flip          float64    `json:"flip"`
	Warp          *geom.Quad `json:"warp,omitempty"`
	Placeholder   bool       `json:"placeholder,omitempty"`
}

func toRecords[R, E any](elems []E) ([]R, error) {
	recs := make([]R, 0, len(elems))
	if err := copier.CopyWithOption(&recs, &elems, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("copy elements: %w", err)
	}
	return recs, nil
}

// SerializeDrawing encodes a drawing element list.
func SerializeDrawing(elems []state.Element) (json.RawMessage, error) {
	recs, err := toRecords[drawingRecord](elems)
	if err != nil {
		return nil, err
	}
	return json.Marshal(recs)
}

// SerializeComposite encodes a composite element list.
func SerializeComposite(elems []composite.Element) (json.RawMessage, error) {
	recs, err := toRecords[compositeRecord](elems)
	if err != nil {
		return nil, err
	}
	return json.Marshal(recs)
}

// DeserializeDrawing decodes elements and reloads their images. Elements
// whose image cannot be reloaded are dropped and logged.
func DeserializeDrawing(ctx context.Context, f asset.Fetcher, data json.RawMessage) ([]state.Element, error) {
	return decodeDrawing(ctx, f, data, false)
}

// DeserializeComposite is DeserializeDrawing for the compositing surface.
func DeserializeComposite(ctx context.Context, f asset.Fetcher, data json.RawMessage) ([]composite.Element, error) {
	return decodeComposite(ctx, f, data, false)
}

func decodeDrawing(ctx context.Context, f asset.Fetcher, data json.RawMessage, strict bool) ([]state.Element, error) {
	var recs []drawingRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode drawing: %w", err)
	}
	elems := make([]state.Element, 0, len(recs))
	if err := copier.CopyWithOption(&elems, &recs, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("copy drawing: %w", err)
	}
	sources := make([]string, len(elems))
	for i, e := range elems {
		if e.Kind == state.KindImage {
			sources[i] = e.Source
		}
	}
	imgs, err := reload(ctx, f, sources, strict)
	if err != nil {
		return nil, err
	}
	out := elems[:0]
	for i, e := range elems {
		if e.Kind == state.KindImage {
			if imgs[i] == nil {
				continue
			}
			e.Image = imgs[i]
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeComposite(ctx context.Context, f asset.Fetcher, data json.RawMessage, strict bool) ([]composite.Element, error) {
	var recs []compositeRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode composite: %w", err)
	}
	elems := make([]composite.Element, 0, len(recs))
	if err := copier.CopyWithOption(&elems, &recs, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("copy composite: %w", err)
	}
	sources := make([]string, len(elems))
	for i, e := range elems {
		if !e.Placeholder {
			sources[i] = e.Source
		}
	}
	imgs, err := reload(ctx, f, sources, strict)
	if err != nil {
		return nil, err
	}
	out := elems[:0]
	for i, e := range elems {
		switch {
		case e.Placeholder:
			e.Image = asset.Placeholder(max(e.NaturalWidth, 1), max(e.NaturalHeight, 1), composite.PlaceholderColor)
		case imgs[i] == nil:
			continue
		default:
			e.Image = imgs[i]
		}
		out = append(out, e)
	}
	return out, nil
}

// reload decodes every non-empty source concurrently. Results are indexed
// like sources. A failed source leaves a nil entry, or aborts the reload
// when strict is set.
func reload(ctx context.Context, f asset.Fetcher, sources []string, strict bool) ([]*image.RGBA, error) {
	imgs := make([]*image.RGBA, len(sources))
	errs := make([]error, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reloadLimit)
	for i, src := range sources {
		if src == "" {
			continue
		}
		g.Go(func() error {
			img, err := asset.LoadImage(gctx, f, src)
			if err != nil {
				errs[i] = err
				if strict {
					return err
				}
				return nil
			}
			imgs[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reload images: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := applog.Component("history")
	for i, err := range errs {
		if err != nil {
			log.Warn("dropping element with unloadable image", "source", sources[i], "err", err)
		}
	}
	return imgs, nil
}
