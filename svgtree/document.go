package svgtree

// Document is a parsed file: the root element, plus
// the top level nodes found before and after it.
type Document struct {
	Prolog []*Node // comments, directives and processing instructions before the root
	Root   *Node
	Epilog []*Node // trailing comments and processing instructions
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{Root: d.Root.Clone()}
	for _, n := range d.Prolog {
		out.Prolog = append(out.Prolog, n.Clone())
	}
	for _, n := range d.Epilog {
		out.Epilog = append(out.Epilog, n.Clone())
	}
	return out
}

// ElementByID returns the first element with the given id, or nil.
func (d *Document) ElementByID(id string) *Node {
	var found *Node
	d.Root.Walk(func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.Kind == ElementNode && n.ID() == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// IDs returns the number of occurrences of each element id.
func (d *Document) IDs() map[string]int {
	out := make(map[string]int)
	d.Root.Walk(func(n *Node) bool {
		if n.Kind == ElementNode {
			if id := n.ID(); id != "" {
				out[id]++
			}
		}
		return true
	})
	return out
}
