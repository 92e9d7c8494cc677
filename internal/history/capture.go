// Package history persists finished artwork and regenerates it at any
// output resolution.
package history

import (
	"errors"
	"image"
	"image/draw"
)

var (
	// ErrNoContent is returned when a surface has no visible pixel.
	ErrNoContent = errors.New("history: surface has no visible content")
	// ErrDegenerateExport is returned for non-positive export sizes and for
	// exports that render nothing.
	ErrDegenerateExport = errors.New("history: degenerate export")
	// ErrBusy is returned when a save or export is already running.
	ErrBusy = errors.New("history: pipeline busy")
)

// Crop is a surface trimmed to its visible pixels. OriginalWidth and
// OriginalHeight give the surface size before cropping, which export uses
// to place elements in the original coordinate space.
type Crop struct {
	Image          *image.RGBA
	Offset         image.Point
	OriginalWidth  int
	OriginalHeight int
}

// Capture crops img to the tight bounding box of its non-transparent
// pixels.
func Capture(img *image.RGBA) (Crop, error) {
	b := img.Bounds()
	box := alphaBounds(img)
	if box.Empty() {
		return Crop{}, ErrNoContent
	}
	out := image.NewRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
	draw.Draw(out, out.Bounds(), img, box.Min, draw.Src)
	return Crop{
		Image:          out,
		Offset:         box.Min.Sub(b.Min),
		OriginalWidth:  b.Dx(),
		OriginalHeight: b.Dy(),
	}, nil
}

func alphaBounds(img *image.RGBA) image.Rectangle {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X-1, y)+4]
		for x := 0; x < b.Dx(); x++ {
			if row[x*4+3] == 0 {
				continue
			}
			minX, maxX = min(minX, b.Min.X+x), max(maxX, b.Min.X+x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
