// Renders SVG documents to PNG previews, by wrapping
// oksvg and rasterx.
package svgraster

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/benoitkugler/svgvariants/svgtree"
	"github.com/go-git/go-billy/v5"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
)

var errEmptyViewBox = errors.New("svgraster: document has an empty view box")

// Options controls the output size.
type Options struct {
	// Width of the output, in pixels. The height follows the
	// view box aspect ratio. If zero, the view box width is used.
	Width int
	// Supersample renders at Supersample times the output size,
	// then scales down. Values below 2 disable it.
	Supersample int
}

// Rasterize parses the SVG content of `r` and draws it into a new image.
// Unsupported elements are ignored.
func Rasterize(r io.Reader, opts Options) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(r, oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, err
	}
	vb := icon.ViewBox
	if vb.W <= 0 || vb.H <= 0 {
		return nil, errEmptyViewBox
	}

	w := opts.Width
	if w <= 0 {
		w = int(math.Ceil(vb.W))
	}
	h := int(math.Round(float64(w) * vb.H / vb.W))
	if h < 1 {
		h = 1
	}
	ss := opts.Supersample
	if ss < 1 {
		ss = 1
	}

	sw, sh := w*ss, h*ss
	canvas := image.NewRGBA(image.Rect(0, 0, sw, sh))
	icon.SetTarget(0, 0, float64(sw), float64(sh))
	scanner := rasterx.NewScannerGV(sw, sh, canvas, canvas.Bounds())
	icon.Draw(rasterx.NewDasher(sw, sh, scanner), 1.0)
	if ss == 1 {
		return canvas, nil
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(out, out.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)
	return out, nil
}

// RasterizeDocument is a convenience wrapper serializing `doc`
// before calling Rasterize. `doc` is not modified.
func RasterizeDocument(doc *svgtree.Document, opts Options) (*image.RGBA, error) {
	doc = resolvePercents(doc)
	var b bytes.Buffer
	if err := svgtree.Encode(&b, doc); err != nil {
		return nil, err
	}
	return Rasterize(&b, opts)
}

// resolvePercents returns a copy of `doc` where the percentage
// lengths of rectangles, rejected by oksvg, are replaced by
// values relative to the root view box.
func resolvePercents(doc *svgtree.Document) *svgtree.Document {
	vb, ok := viewBox(doc.Root)
	if !ok {
		return doc
	}
	out := doc.Clone()
	out.Root.Walk(func(n *svgtree.Node) bool {
		if !n.IsElement("rect") {
			return true
		}
		for _, attr := range [...]struct {
			name   string
			origin float64
			size   float64
		}{
			{"x", vb[0], vb[2]},
			{"y", vb[1], vb[3]},
			{"width", 0, vb[2]},
			{"height", 0, vb[3]},
		} {
			v, has := n.AttrValue("", attr.name)
			if !has || !strings.HasSuffix(strings.TrimSpace(v), "%") {
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
			if err != nil {
				continue
			}
			n.SetAttr("", attr.name, strconv.FormatFloat(attr.origin+f*attr.size/100, 'f', -1, 64))
		}
		return true
	})
	return out
}

// viewBox returns min-x, min-y, width, height
func viewBox(root *svgtree.Node) ([4]float64, bool) {
	var out [4]float64
	v, ok := root.AttrValue("", "viewBox")
	if !ok {
		return out, false
	}
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' })
	if len(fields) != 4 {
		return out, false
	}
	for i, f := range fields {
		var err error
		if out[i], err = strconv.ParseFloat(f, 64); err != nil {
			return out, false
		}
	}
	return out, true
}

// WritePNG encodes `img` to the given path,
// creating the parent directories.
func WritePNG(fs billy.Filesystem, path string, img image.Image) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &svgtree.WriteError{Path: path, Err: err}
	}
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &svgtree.WriteError{Path: path, Err: err}
	}
	err = png.Encode(f, img)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &svgtree.WriteError{Path: path, Err: err}
	}
	return nil
}
