package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/jung-kurt/gofpdf"
)

// A4 page size in millimetres.
const (
	a4Width  = 210.0
	a4Height = 297.0
)

var errEmpty = errors.New("export: empty image")

var pngImage = gofpdf.ImageOptions{ImageType: "PNG"}

func newDoc(w, h float64) *gofpdf.Fpdf {
	p := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: w, Ht: h},
	})
	p.SetMargins(0, 0, 0)
	p.SetAutoPageBreak(false, 0)
	p.SetCreator("PatternBoard", false)
	p.SetTitle("Pattern Export", false)
	return p
}

func register(p *gofpdf.Fpdf, name string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, flatten(img)); err != nil {
		return fmt.Errorf("encode page image: %w", err)
	}
	p.RegisterImageOptionsReader(name, pngImage, &buf)
	return p.Error()
}

// PageSize returns the physical size in millimetres of an image printed at
// dpi.
func PageSize(img image.Image, dpi int) (float64, float64) {
	b := img.Bounds()
	return float64(b.Dx()) * mmPerInch / float64(dpi), float64(b.Dy()) * mmPerInch / float64(dpi)
}

// PDF writes img as a single page exactly the size of the print.
func PDF(w io.Writer, img image.Image, dpi int) error {
	pw, ph := PageSize(img, dpi)
	if pw <= 0 || ph <= 0 {
		return errEmpty
	}
	p := newDoc(pw, ph)
	p.AddPage()
	if err := register(p, "artwork", img); err != nil {
		return err
	}
	p.ImageOptions("artwork", 0, 0, pw, ph, false, pngImage, 0, "")
	if err := p.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// Tiles returns how many A4 columns and rows a print of w×h millimetres
// spans.
func Tiles(w, h float64) (cols, rows int) {
	return int(math.Ceil(w / a4Width)), int(math.Ceil(h / a4Height))
}

// TiledPDF splits a print over A4 pages, left to right then top to bottom.
// Each page carries the slice of the image that falls on it at full scale.
func TiledPDF(w io.Writer, img image.Image, dpi int) error {
	pw, ph := PageSize(img, dpi)
	if pw <= 0 || ph <= 0 {
		return errEmpty
	}
	flat := flatten(img)
	b := flat.Bounds()
	pxW := a4Width / mmPerInch * float64(dpi)
	pxH := a4Height / mmPerInch * float64(dpi)

	p := newDoc(a4Width, a4Height)
	cols, rows := Tiles(pw, ph)
	for row := range rows {
		for col := range cols {
			r := image.Rect(
				int(math.Round(float64(col)*pxW)), int(math.Round(float64(row)*pxH)),
				int(math.Round(float64(col+1)*pxW)), int(math.Round(float64(row+1)*pxH)),
			).Intersect(b)
			if r.Empty() {
				continue
			}
			name := fmt.Sprintf("tile-%d-%d", row, col)
			p.AddPage()
			if err := register(p, name, flat.SubImage(r)); err != nil {
				return err
			}
			tw := float64(r.Dx()) * mmPerInch / float64(dpi)
			th := float64(r.Dy()) * mmPerInch / float64(dpi)
			p.ImageOptions(name, 0, 0, tw, th, false, pngImage, 0, "")
		}
	}
	if err := p.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
