package asset

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PatternBoard/internal/store"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, Placeholder(w, h, c)))
	return buf.Bytes()
}

func TestLoaderSchemes(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()
	data := pngBytes(t, 3, 2, color.RGBA{0, 0, 0xff, 0xff})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blue one.png"), data, 0o644))

	s := store.NewMemStore()
	require.NoError(t, s.Save(ctx, "bake/1", data))
	l := NewLoader(s, dir)

	for _, ref := range []string{
		"file:blue%20one.png",
		"blue one.png",
		filepath.Join(dir, "blue one.png"),
		"store:bake/1",
		DataURI("image/png", data),
	} {
		img, err := LoadImage(ctx, l, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds(), ref)
		assert.Equal(t, color.RGBA{0, 0, 0xff, 0xff}, img.RGBAAt(1, 1), ref)
	}
}

func TestLoaderFailures(t *testing.T) {
	ctx := t.Context()
	l := NewLoader(store.NewMemStore(), t.TempDir())
	for _, ref := range []string{"missing.png", "store:nope", "data:image/png;base64,!!!", "data:nocomma", "https://example.com/a.png"} {
		_, err := LoadImage(ctx, l, ref)
		assert.ErrorIs(t, err, ErrImageLoad, ref)
	}
	_, err := NewLoader(nil, "").Fetch(ctx, "store:x")
	assert.ErrorIs(t, err, ErrImageLoad)
}

func TestDecodeRejectsNonImages(t *testing.T) {
	_, err := Decode([]byte("<svg></svg>"))
	assert.ErrorIs(t, err, ErrImageLoad)

	// a PNG signature with a truncated body is sniffed as an image but
	// fails to decode
	_, err = Decode(pngBytes(t, 2, 2, color.White)[:20])
	assert.ErrorIs(t, err, ErrImageLoad)
}

func TestPlainDataURI(t *testing.T) {
	data, err := NewLoader(nil, "").Fetch(t.Context(), "data:image/svg+xml,%3Csvg%3E")
	require.NoError(t, err)
	assert.Equal(t, "<svg>", string(data))
}

func TestPlaceholder(t *testing.T) {
	img := Placeholder(4, 4, color.RGBA{0xff, 0x44, 0x44, 0xff})
	assert.Equal(t, color.RGBA{0xff, 0x44, 0x44, 0xff}, img.RGBAAt(3, 3))
}
