package svgtree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/go-git/go-billy/v5"
	"golang.org/x/net/html/charset"
)

var (
	errNoRoot        = errors.New("no root element")
	errManyRoots     = errors.New("more than one root element")
	errTextOutOfRoot = errors.New("character data outside of the root element")
)

// textElements hold character data where whitespace is significant.
var textElements = map[string]bool{
	"text":     true,
	"tspan":    true,
	"textPath": true,
	"flowRoot": true,
	"flowPara": true,
	"flowSpan": true,
	"title":    true,
	"desc":     true,
	"style":    true,
	"script":   true,
}

// Load reads and parses the named file.
// Decoding failures are reported as *ParseError.
func Load(fs billy.Basic, path string) (*Document, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := Parse(f)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return doc, nil
}

// Parse reads a whole document from `r`.
// Whitespace only character data is discarded, except inside
// text elements or under xml:space="preserve".
func Parse(r io.Reader) (*Document, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel
	decoder.Entity = xml.HTMLEntity

	var (
		doc      Document
		stack    []*Node
		preserve []bool // xml:space state, parallel to stack
	)
	// place a non element node at the current position
	place := func(n *Node) {
		switch {
		case len(stack) != 0:
			stack[len(stack)-1].AppendChild(n)
		case doc.Root == nil:
			doc.Prolog = append(doc.Prolog, n)
		default:
			doc.Epilog = append(doc.Epilog, n)
		}
	}
	for {
		t, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch tok := t.(type) {
		case xml.StartElement:
			el := NewElement(tok.Name, append([]xml.Attr(nil), tok.Attr...)...)
			keep := len(preserve) != 0 && preserve[len(preserve)-1]
			if v, ok := el.AttrValue(XMLNamespace, "space"); ok {
				keep = v == "preserve"
			}
			if len(stack) == 0 {
				if doc.Root != nil {
					return nil, errManyRoots
				}
				doc.Root = el
			} else {
				stack[len(stack)-1].AppendChild(el)
			}
			stack = append(stack, el)
			preserve = append(preserve, keep)
		case xml.EndElement:
			el := stack[len(stack)-1]
			if !preserve[len(preserve)-1] {
				pruneWhitespace(el)
			}
			stack = stack[:len(stack)-1]
			preserve = preserve[:len(preserve)-1]
		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(tok)) != 0 {
					return nil, errTextOutOfRoot
				}
				continue
			}
			parent := stack[len(stack)-1]
			if L := len(parent.Children); L != 0 && parent.Children[L-1].Kind == TextNode {
				parent.Children[L-1].Data += string(tok) // CDATA sections come as separate tokens
				continue
			}
			parent.AppendChild(&Node{Kind: TextNode, Data: string(tok)})
		case xml.Comment:
			place(NewComment(string(tok)))
		case xml.ProcInst:
			if tok.Target == "xml" {
				continue // the declaration is written by the encoder
			}
			place(&Node{Kind: ProcInstNode, Name: xml.Name{Local: tok.Target}, Data: string(tok.Inst)})
		case xml.Directive:
			place(&Node{Kind: DirectiveNode, Data: string(tok)})
		}
	}
	if doc.Root == nil {
		return nil, errNoRoot
	}
	return &doc, nil
}

// pruneWhitespace removes the formatting whitespace between
// the children of `el`, unless `el` holds meaningful text.
func pruneWhitespace(el *Node) {
	if textElements[el.Name.Local] {
		return
	}
	for _, c := range el.Children {
		if c.Kind == TextNode && strings.TrimSpace(c.Data) != "" {
			return
		}
	}
	kept := el.Children[:0]
	for _, c := range el.Children {
		if c.Kind == TextNode {
			c.parent = nil
			continue
		}
		kept = append(kept, c)
	}
	el.Children = kept
}
