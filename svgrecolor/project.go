package svgrecolor

import (
	"encoding/xml"
	"image/color"
	"strings"

	"github.com/benoitkugler/svgvariants/svgtree"
)

var (
	black = color.RGBA{A: 0xff}
	red   = color.RGBA{R: 0xff, A: 0xff}
)

// BackgroundID is the id of the rectangle added by Project.
const BackgroundID = "background"

// Project returns a recolored copy of `doc`, leaving `doc` untouched:
//   - a background rectangle is inserted behind everything else
//   - unfilled shapes with a black stroke become filled boards, without stroke
//   - unfilled shapes with a red stroke get the engraving color and stroke width
//
// Paints are read from the style attribute, then from presentation attributes,
// and are updated where they are defined.
func Project(doc *svgtree.Document, p Palette) *svgtree.Document {
	out := doc.Clone()
	out.Root.Walk(func(n *svgtree.Node) bool {
		if n.Kind == svgtree.ElementNode {
			recolor(n, p)
		}
		return true
	})
	bg := svgtree.NewElement(xml.Name{Space: out.Root.Name.Space, Local: "rect"},
		xml.Attr{Name: xml.Name{Local: "width"}, Value: "100%"},
		xml.Attr{Name: xml.Name{Local: "height"}, Value: "100%"},
		xml.Attr{Name: xml.Name{Local: "fill"}, Value: p.Background},
		xml.Attr{Name: xml.Name{Local: "style"}, Value: "opacity:1"},
		xml.Attr{Name: xml.Name{Local: "id"}, Value: BackgroundID},
	)
	out.Root.InsertChild(0, bg)
	return out
}

// paints gives access to the presentation properties
// of an element, merging its style and attributes
type paints struct {
	node     *svgtree.Node
	st       style
	hasStyle bool
	modified bool
}

func newPaints(n *svgtree.Node) *paints {
	s, ok := n.AttrValue("", "style")
	return &paints{node: n, st: parseStyle(s), hasStyle: ok}
}

func (pt *paints) get(key string) string {
	if v, ok := pt.st.get(key); ok {
		return v
	}
	v, _ := pt.node.AttrValue("", key)
	return v
}

func (pt *paints) set(key, value string) {
	pt.modified = true
	if _, ok := pt.st.get(key); ok || pt.hasStyle {
		pt.st = pt.st.set(key, value)
		return
	}
	pt.node.SetAttr("", key, value)
}

func (pt *paints) commit() {
	if pt.modified && pt.hasStyle {
		pt.node.SetAttr("", "style", pt.st.String())
	}
}

func recolor(n *svgtree.Node, p Palette) {
	pt := newPaints(n)
	if !strings.EqualFold(pt.get("fill"), "none") {
		return
	}
	switch stroke := pt.get("stroke"); {
	case isColor(stroke, black):
		pt.set("fill", p.Board)
		pt.set("stroke", "none")
	case isColor(stroke, red):
		pt.set("stroke", p.Engrave)
		pt.set("stroke-width", p.StrokeWidth)
	}
	pt.commit()
}
