package svgraster

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/benoitkugler/svgvariants/svgtree"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const square = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10">
<rect x="0" y="0" width="10" height="10" fill="#ff0000"/>
</svg>`

func assertRed(t *testing.T, img *image.RGBA, x, y int) {
	t.Helper()
	c := img.RGBAAt(x, y)
	assert.InDelta(t, 255, int(c.R), 2)
	assert.InDelta(t, 0, int(c.G), 2)
	assert.InDelta(t, 0, int(c.B), 2)
	assert.InDelta(t, 255, int(c.A), 2)
}

func TestRasterize(t *testing.T) {
	img, err := Rasterize(strings.NewReader(square), Options{Width: 20})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 20), img.Bounds())
	assertRed(t, img, 10, 10)

	img, err = Rasterize(strings.NewReader(square), Options{})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), img.Bounds())
}

func TestRasterizeSupersample(t *testing.T) {
	img, err := Rasterize(strings.NewReader(square), Options{Width: 16, Supersample: 3})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())
	assertRed(t, img, 8, 8)
}

func TestRasterizeAspectRatio(t *testing.T) {
	src := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 100"><circle cx="100" cy="50" r="20"/></svg>`
	img, err := Rasterize(strings.NewReader(src), Options{Width: 40})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), img.Bounds())
}

func TestRasterizeEmpty(t *testing.T) {
	_, err := Rasterize(strings.NewReader(`<svg xmlns="http://www.w3.org/2000/svg"/>`), Options{Width: 10})
	assert.ErrorIs(t, err, errEmptyViewBox)
}

func TestRasterizeDocument(t *testing.T) {
	doc, err := svgtree.Parse(strings.NewReader(square))
	require.NoError(t, err)
	img, err := RasterizeDocument(doc, Options{Width: 10})
	require.NoError(t, err)
	assertRed(t, img, 5, 5)
}

func TestRasterizeDocumentPercents(t *testing.T) {
	doc, err := svgtree.Parse(strings.NewReader(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 20 10">
<rect width="100%" height="100%" fill="#ff0000"/>
</svg>`))
	require.NoError(t, err)

	img, err := RasterizeDocument(doc, Options{Width: 20})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 10), img.Bounds())
	assertRed(t, img, 1, 1)
	assertRed(t, img, 18, 8)

	w, _ := doc.Root.Children[0].AttrValue("", "width")
	assert.Equal(t, "100%", w)

	resolved := resolvePercents(doc)
	w, _ = resolved.Root.Children[0].AttrValue("", "width")
	h, _ := resolved.Root.Children[0].AttrValue("", "height")
	assert.Equal(t, "20", w)
	assert.Equal(t, "10", h)
}

type failingFS struct {
	billy.Filesystem
}

func (failingFS) MkdirAll(string, os.FileMode) error { return os.ErrPermission }

func TestWritePNG(t *testing.T) {
	img, err := Rasterize(strings.NewReader(square), Options{Width: 4})
	require.NoError(t, err)

	fs := memfs.New()
	require.NoError(t, WritePNG(fs, "thumbs/square_var0.png", img))
	content, err := util.ReadFile(fs, "thumbs/square_var0.png")
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	err = WritePNG(failingFS{fs}, "thumbs/other.png", img)
	var writeErr *svgtree.WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.True(t, errors.Is(err, os.ErrPermission))
}
