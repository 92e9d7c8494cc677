// Package asset resolves image and outline references into bytes and
// decoded images.
package asset

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"os"
	"strings"

	"github.com/anthonynsimon/bild/clone"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"PatternBoard/internal/store"
)

// ErrImageLoad is wrapped by every fetch or decode failure.
var ErrImageLoad = errors.New("asset: image load failed")

// Reference schemes understood by Loader.
const (
	SchemeStore = "store:"
	SchemeFile  = "file:"
	SchemeData  = "data:"
)

// Fetcher resolves a reference to raw bytes.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Loader resolves store:, file: and data: references, and bare file paths.
type Loader struct {
	store store.Store
	root  string
}

// NewLoader returns a Loader reading store: references from s (which may be
// nil) and resolving relative paths against root.
func NewLoader(s store.Store, root string) *Loader {
	return &Loader{store: s, root: root}
}

func (l *Loader) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case strings.HasPrefix(ref, SchemeStore):
		if l.store == nil {
			return nil, fmt.Errorf("%w: no store for %q", ErrImageLoad, ref)
		}
		data, err := l.store.Load(ctx, strings.TrimPrefix(ref, SchemeStore))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrImageLoad, err)
		}
		return data, nil
	case strings.HasPrefix(ref, SchemeData):
		return decodeDataURI(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return nil, fmt.Errorf("%w: remote reference %q not supported", ErrImageLoad, ref)
	}

	path := strings.TrimPrefix(ref, SchemeFile)
	if u, err := url.PathUnescape(path); err == nil {
		path = u
	}
	if l.root != "" && !strings.HasPrefix(path, "/") {
		path = l.root + "/" + path
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageLoad, err)
	}
	return data, nil
}

func decodeDataURI(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, SchemeData), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data URI", ErrImageLoad)
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrImageLoad, err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageLoad, err)
	}
	return []byte(s), nil
}

// DataURI encodes data as a base64 data URI of the given MIME type.
func DataURI(mime string, data []byte) string {
	return SchemeData + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Decode sniffs data and decodes it into an RGBA image.
func Decode(data []byte) (*image.RGBA, error) {
	if !filetype.IsImage(data) {
		kind, _ := filetype.Match(data)
		return nil, fmt.Errorf("%w: unsupported content %q", ErrImageLoad, kind.MIME.Value)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageLoad, err)
	}
	return clone.AsRGBA(img), nil
}

// LoadImage fetches and decodes ref.
func LoadImage(ctx context.Context, f Fetcher, ref string) (*image.RGBA, error) {
	data, err := f.Fetch(ctx, ref)
	if err != nil {
		if !errors.Is(err, ErrImageLoad) {
			err = fmt.Errorf("%w: %v", ErrImageLoad, err)
		}
		return nil, err
	}
	return Decode(data)
}

// Placeholder returns a w×h image filled with c, used where a source
// could not be decoded.
func Placeholder(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	r, g, b, a := c.RGBA()
	px := [4]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
	for i := 0; i < len(img.Pix); i += 4 {
		copy(img.Pix[i:i+4], px[:])
	}
	return img
}
