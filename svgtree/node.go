// Provides an ordered, lossless tree representation of SVG documents,
// which can be parsed, mutated in place and written back in a
// canonical, diffable form.
package svgtree

import "encoding/xml"

// Well known namespaces.
const (
	SVGNamespace      = "http://www.w3.org/2000/svg"
	InkscapeNamespace = "http://www.inkscape.org/namespaces/inkscape"
	SodipodiNamespace = "http://sodipodi.sourceforge.net/DTD/sodipodi-0.dtd"
	XLinkNamespace    = "http://www.w3.org/1999/xlink"
	XMLNamespace      = "http://www.w3.org/XML/1998/namespace"
)

// Kind is the type of a Node.
type Kind uint8

const (
	ElementNode Kind = iota
	TextNode
	CommentNode
	ProcInstNode
	DirectiveNode
)

// Node is one node of a document tree.
// For elements, Name and Attr are used; for the other kinds,
// the raw content is stored in Data (and the target of a
// processing instruction in Name.Local).
type Node struct {
	Kind     Kind
	Name     xml.Name
	Attr     []xml.Attr
	Data     string
	Children []*Node

	parent *Node
}

// NewElement returns a detached element.
func NewElement(name xml.Name, attrs ...xml.Attr) *Node {
	return &Node{Kind: ElementNode, Name: name, Attr: attrs}
}

// NewComment returns a detached comment node.
func NewComment(text string) *Node {
	return &Node{Kind: CommentNode, Data: text}
}

// Parent returns the parent element, or nil for
// a detached node or a document root.
func (n *Node) Parent() *Node { return n.parent }

// IsElement returns true if n is an element named `local`
// in the SVG namespace (or without namespace).
func (n *Node) IsElement(local string) bool {
	return n.Kind == ElementNode && n.Name.Local == local &&
		(n.Name.Space == SVGNamespace || n.Name.Space == "")
}

// AttrValue returns the value of the attribute identified
// by its namespace URL and local name.
func (n *Node) AttrValue(space, local string) (string, bool) {
	for _, a := range n.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr updates the attribute in place, or appends it.
func (n *Node) SetAttr(space, local, value string) {
	for i, a := range n.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			n.Attr[i].Value = value
			return
		}
	}
	n.Attr = append(n.Attr, xml.Attr{Name: xml.Name{Space: space, Local: local}, Value: value})
}

// RemoveAttr deletes the attribute, if present.
func (n *Node) RemoveAttr(space, local string) {
	for i, a := range n.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// ID returns the (non namespaced) id attribute.
func (n *Node) ID() string {
	id, _ := n.AttrValue("", "id")
	return id
}

// Index returns the position of n in its parent children,
// or -1 if n is detached.
func (n *Node) Index() int {
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

func (n *Node) adopt(child *Node) {
	if child.parent != nil {
		panic("svgtree: node is already attached to a parent")
	}
	child.parent = n
}

// AppendChild adds `child` as last child of n.
// It panics if `child` is already attached.
func (n *Node) AppendChild(child *Node) {
	n.adopt(child)
	n.Children = append(n.Children, child)
}

// InsertChild inserts `child` at position `i` of n children,
// with 0 <= i <= len(n.Children).
// It panics if `child` is already attached.
func (n *Node) InsertChild(i int, child *Node) {
	if i < 0 || i > len(n.Children) {
		panic("svgtree: child index out of range")
	}
	n.adopt(child)
	n.Children = append(n.Children, nil)
	copy(n.Children[i+1:], n.Children[i:])
	n.Children[i] = child
}

// Detach removes n from its parent and returns the former parent
// and position, so that the node may be re-inserted later.
// Detaching a detached node is a no-op returning (nil, -1).
func (n *Node) Detach() (parent *Node, index int) {
	index = n.Index()
	if index == -1 {
		return nil, -1
	}
	parent = n.parent
	parent.Children = append(parent.Children[:index], parent.Children[index+1:]...)
	n.parent = nil
	return parent, index
}

// Clone returns a deep, detached copy of n.
func (n *Node) Clone() *Node {
	out := &Node{Kind: n.Kind, Name: n.Name, Data: n.Data}
	if n.Attr != nil {
		out.Attr = append([]xml.Attr(nil), n.Attr...)
	}
	if len(n.Children) != 0 {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			cc := c.Clone()
			cc.parent = out
			out.Children[i] = cc
		}
	}
	return out
}

// Walk visits n and its descendants in document order (pre-order).
// When `fn` returns false, the children of the current node are skipped.
// The tree must not be mutated during the walk.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// hasText returns true if one of the direct children is character data.
func (n *Node) hasText() bool {
	for _, c := range n.Children {
		if c.Kind == TextNode {
			return true
		}
	}
	return false
}
