package svgtree

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
)

const (
	header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
	indent = "  "
)

// preferred prefixes, used when a namespace is not declared
// anywhere in the document
var wellKnownPrefixes = map[string]string{
	SVGNamespace:      "svg",
	InkscapeNamespace: "inkscape",
	SodipodiNamespace: "sodipodi",
	XLinkNamespace:    "xlink",
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#13;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
		"\t", "&#9;", "\n", "&#10;", "\r", "&#13;")
)

// WriteFile serializes `doc` to `path`, creating the parent
// directories if needed. Any failure is returned as a *WriteError.
func WriteFile(fs billy.Filesystem, path string, doc *Document) error {
	if err := checkComments(doc); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	err = Encode(f, doc)
	if errC := f.Close(); err == nil {
		err = errC
	}
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// Encode writes the canonical form of `doc`: an XML declaration,
// the prolog nodes, the root element indented by two spaces and the epilog.
// Elements holding character data are written inline, so that text
// content is reproduced exactly.
func Encode(w io.Writer, doc *Document) error {
	if err := checkComments(doc); err != nil {
		return err
	}
	enc := encoder{w: bufio.NewWriter(w), known: collectPrefixes(doc.Root)}
	enc.w.WriteString(header)
	for _, n := range doc.Prolog {
		enc.node(n, &scope{}, 0, false)
		enc.w.WriteByte('\n')
	}
	enc.node(doc.Root, &scope{}, 0, false)
	enc.w.WriteByte('\n')
	for _, n := range doc.Epilog {
		enc.node(n, &scope{}, 0, false)
		enc.w.WriteByte('\n')
	}
	return enc.w.Flush()
}

// ErrInvalidComment is returned when a comment can't be written
// as well formed XML.
var ErrInvalidComment = errors.New(`comment contains "--" or ends with "-"`)

func checkComments(doc *Document) error {
	var bad *Node
	check := func(n *Node) bool {
		if bad == nil && n.Kind == CommentNode &&
			(strings.Contains(n.Data, "--") || strings.HasSuffix(n.Data, "-")) {
			bad = n
		}
		return bad == nil
	}
	for _, n := range doc.Prolog {
		check(n)
	}
	doc.Root.Walk(check)
	for _, n := range doc.Epilog {
		check(n)
	}
	if bad != nil {
		return fmt.Errorf("%w: %q", ErrInvalidComment, bad.Data)
	}
	return nil
}

// scope is the namespace context of an element
type scope struct {
	def      string            // default namespace
	prefixes map[string]string // URL -> prefix
	preserve bool              // xml:space="preserve" is active
}

func (s *scope) child() *scope {
	out := &scope{def: s.def, preserve: s.preserve, prefixes: make(map[string]string, len(s.prefixes))}
	for k, v := range s.prefixes {
		out.prefixes[k] = v
	}
	return out
}

func (s *scope) prefixUsed(prefix string) bool {
	for _, p := range s.prefixes {
		if p == prefix {
			return true
		}
	}
	return false
}

type encoder struct {
	w     *bufio.Writer // errors are reported by Flush
	known map[string]string
}

// collectPrefixes returns the first prefix declared for each namespace.
func collectPrefixes(root *Node) map[string]string {
	out := make(map[string]string)
	root.Walk(func(n *Node) bool {
		for _, a := range n.Attr {
			if a.Name.Space == "xmlns" {
				if _, has := out[a.Value]; !has {
					out[a.Value] = a.Name.Local
				}
			}
		}
		return true
	})
	return out
}

// declare finds a prefix for `space`, not conflicting with `sc`,
// registers it and returns the matching declaration.
func (enc *encoder) declare(sc *scope, space string) (string, xml.Attr) {
	prefix, ok := enc.known[space]
	if !ok {
		prefix, ok = wellKnownPrefixes[space]
	}
	if !ok || sc.prefixUsed(prefix) {
		for i := 0; ; i++ {
			prefix = fmt.Sprintf("ns%d", i)
			if !sc.prefixUsed(prefix) {
				break
			}
		}
	}
	sc.prefixes[space] = prefix
	return prefix, xml.Attr{Name: xml.Name{Space: "xmlns", Local: prefix}, Value: space}
}

// enter builds the scope of `n` and resolves its qualified name,
// returning the namespace declarations to add.
func (enc *encoder) enter(n *Node, parent *scope) (*scope, string, []xml.Attr) {
	sc := parent.child()
	for _, a := range n.Attr {
		switch {
		case a.Name.Space == "xmlns":
			sc.prefixes[a.Value] = a.Name.Local
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			sc.def = a.Value
		case a.Name.Space == XMLNamespace && a.Name.Local == "space":
			sc.preserve = a.Value == "preserve"
		}
	}

	var extra []xml.Attr
	space, local := n.Name.Space, n.Name.Local
	var name string
	switch {
	case space == sc.def:
		name = local
	case space == "":
		sc.def = ""
		extra = append(extra, xml.Attr{Name: xml.Name{Local: "xmlns"}})
		name = local
	case sc.prefixes[space] != "":
		name = sc.prefixes[space] + ":" + local
	case !strings.Contains(space, ":"):
		name = space + ":" + local // undeclared prefix, kept as found
	default:
		sc.def = space
		extra = append(extra, xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: space})
		name = local
	}
	return sc, name, extra
}

// attrName returns the qualified name of `a`, possibly adding
// a declaration to `extra`.
func (enc *encoder) attrName(sc *scope, a xml.Name, extra *[]xml.Attr) string {
	switch {
	case a.Space == "":
		return a.Local
	case a.Space == "xmlns":
		return "xmlns:" + a.Local
	case a.Space == XMLNamespace:
		return "xml:" + a.Local
	case sc.prefixes[a.Space] != "":
		return sc.prefixes[a.Space] + ":" + a.Local
	case !strings.Contains(a.Space, ":"):
		return a.Space + ":" + a.Local
	}
	prefix, decl := enc.declare(sc, a.Space)
	*extra = append(*extra, decl)
	return prefix + ":" + a.Local
}

func (enc *encoder) indent(depth int) {
	for i := 0; i < depth; i++ {
		enc.w.WriteString(indent)
	}
}

// node writes `n`; when `inline` is false, it starts with
// the indentation but does not end with a newline.
func (enc *encoder) node(n *Node, parent *scope, depth int, inline bool) {
	switch n.Kind {
	case TextNode:
		textEscaper.WriteString(enc.w, n.Data)
		return
	case CommentNode:
		if !inline {
			enc.indent(depth)
		}
		enc.w.WriteString("<!--" + n.Data + "-->")
		return
	case ProcInstNode:
		if !inline {
			enc.indent(depth)
		}
		if n.Data == "" {
			enc.w.WriteString("<?" + n.Name.Local + "?>")
		} else {
			enc.w.WriteString("<?" + n.Name.Local + " " + n.Data + "?>")
		}
		return
	case DirectiveNode:
		if !inline {
			enc.indent(depth)
		}
		enc.w.WriteString("<!" + n.Data + ">")
		return
	}

	sc, name, extra := enc.enter(n, parent)
	if !inline {
		enc.indent(depth)
	}
	enc.w.WriteString("<" + name)
	var attrs []string
	for _, a := range n.Attr {
		attrs = append(attrs, enc.attrName(sc, a.Name, &extra)+`="`+attrEscaper.Replace(a.Value)+`"`)
	}
	for _, a := range extra {
		enc.w.WriteString(" " + enc.attrName(sc, a.Name, nil) + `="` + attrEscaper.Replace(a.Value) + `"`)
	}
	for _, a := range attrs {
		enc.w.WriteString(" " + a)
	}
	if len(n.Children) == 0 {
		enc.w.WriteString("/>")
		return
	}
	enc.w.WriteByte('>')
	if inline || sc.preserve || textElements[n.Name.Local] || n.hasText() {
		for _, c := range n.Children {
			enc.node(c, sc, depth+1, true)
		}
	} else {
		for _, c := range n.Children {
			enc.w.WriteByte('\n')
			enc.node(c, sc, depth+1, false)
		}
		enc.w.WriteByte('\n')
		enc.indent(depth)
	}
	enc.w.WriteString("</" + name + ">")
}
