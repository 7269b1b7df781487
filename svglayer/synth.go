package svglayer

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/benoitkugler/svgvariants/svgtree"
)

// ErrLayerAttached is returned when a variation is requested
// while another optional layer is attached to the base.
var ErrLayerAttached = errors.New("svglayer: an optional layer is already attached")

// Variation identifies one generated document.
type Variation struct {
	Index int    // 0 for the base variation
	Name  string // <base>_var<Index>
	Layer *Layer // nil for the base variation
}

// VariationName returns the name of the variation `index` of the source `base`.
func VariationName(base string, index int) string {
	return base + "_var" + strconv.Itoa(index)
}

// VariationError wraps the failure of one emitted variation.
type VariationError struct {
	Variation Variation
	Err       error
}

func (e *VariationError) Error() string {
	return fmt.Sprintf("variation %s: %v", e.Variation.Name, e.Err)
}

func (e *VariationError) Unwrap() error { return e.Err }

// Outcome sums up a call to Emit.
type Outcome struct {
	Attempted int
	Succeeded int
	Failed    []*VariationError
}

type detached struct {
	layer  Layer
	parent *svgtree.Node
	index  int
}

// Base is a document stripped of its removed layers, whose optional
// layers are held aside so that they can be attached one at a time.
type Base struct {
	doc      *svgtree.Document
	toggles  []detached
	attached int // index of the attached variation, 0 for none
}

// Prepare mutates `doc` in place: removed layers are detached for good,
// then optional layers are detached, in document order.
// `cls` must be the classification of `doc`.
func Prepare(doc *svgtree.Document, cls Classification) *Base {
	b := &Base{doc: doc}
	for _, l := range cls.Layers {
		if l.Class == AlwaysRemove {
			l.Node.Detach()
		}
	}
	for _, l := range cls.Layers {
		if l.Class != Toggle {
			continue
		}
		parent, index := l.Node.Detach()
		b.toggles = append(b.toggles, detached{layer: l, parent: parent, index: index})
	}
	return b
}

// Len returns the number of variations: the base one plus
// one per optional layer.
func (b *Base) Len() int { return 1 + len(b.toggles) }

// Document returns the underlying document, which holds
// the attached layer, if any.
func (b *Base) Document() *svgtree.Document { return b.doc }

// Layers returns the optional layers, in document order.
func (b *Base) Layers() []Layer {
	out := make([]Layer, len(b.toggles))
	for i, t := range b.toggles {
		out[i] = t.layer
	}
	return out
}

// Variation returns the description of variation `i`,
// with 0 <= i < b.Len().
func (b *Base) Variation(base string, i int) Variation {
	v := Variation{Index: i, Name: VariationName(base, i)}
	if i > 0 {
		v.Layer = &b.toggles[i-1].layer
	}
	return v
}

func (b *Base) checkIndex(i int) error {
	if i < 0 || i >= b.Len() {
		return fmt.Errorf("svglayer: variation index %d out of range [0, %d)", i, b.Len())
	}
	return nil
}

// With exposes variation `i` to `fn`: the optional layer i (if i > 0)
// is attached as first child of the root, so that it renders behind
// every other element, and detached when `fn` returns, even on panic.
// The document must not be retained after `fn` returns.
func (b *Base) With(i int, fn func(doc *svgtree.Document) error) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	if b.attached != 0 {
		return ErrLayerAttached
	}
	if i == 0 {
		return fn(b.doc)
	}

	node := b.toggles[i-1].layer.Node
	b.doc.Root.InsertChild(0, node)
	b.attached = i
	defer func() {
		node.Detach()
		b.attached = 0
	}()
	return fn(b.doc)
}

// Emit calls `emit` for every variation, in order. A failing
// variation is recorded and does not stop the next ones.
func (b *Base) Emit(base string, emit func(v Variation, doc *svgtree.Document) error) Outcome {
	var out Outcome
	for i := 0; i < b.Len(); i++ {
		v := b.Variation(base, i)
		out.Attempted++
		err := b.With(i, func(doc *svgtree.Document) error { return emit(v, doc) })
		if err != nil {
			out.Failed = append(out.Failed, &VariationError{Variation: v, Err: err})
			continue
		}
		out.Succeeded++
	}
	return out
}

// Materialize returns a detached copy of variation `i`,
// equal to the document With(i, ...) exposes.
// The base is not modified.
func (b *Base) Materialize(i int) (*svgtree.Document, error) {
	if err := b.checkIndex(i); err != nil {
		return nil, err
	}
	if b.attached != 0 {
		return nil, ErrLayerAttached
	}
	doc := b.doc.Clone()
	if i > 0 {
		doc.Root.InsertChild(0, b.toggles[i-1].layer.Node.Clone())
	}
	return doc, nil
}

// Restore puts every optional layer back at its original position,
// returning the source document without its removed layers.
// The base is empty afterwards.
func (b *Base) Restore() *svgtree.Document {
	// reverse order, so that recorded indices are valid again
	for i := len(b.toggles) - 1; i >= 0; i-- {
		t := b.toggles[i]
		t.parent.InsertChild(t.index, t.layer.Node)
	}
	b.toggles = nil
	return b.doc
}
