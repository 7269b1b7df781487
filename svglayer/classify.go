// Finds the authoring layers of a template and recombines them
// into variations: a base document without optional layers, and one
// document per optional layer.
package svglayer

import (
	"fmt"
	"strings"

	"github.com/benoitkugler/svgvariants/svgtree"
)

// Class is the role of a layer, derived from its label.
type Class uint8

const (
	AlwaysKeep   Class = iota // plain content, present in every variation
	Toggle                    // optional layer, shown alone in its own variation
	AlwaysRemove              // authoring scaffolding, never written
)

func (c Class) String() string {
	switch c {
	case AlwaysKeep:
		return "keep"
	case Toggle:
		return "toggle"
	case AlwaysRemove:
		return "remove"
	default:
		return fmt.Sprintf("Class(%d)", c)
	}
}

// MissingIDPolicy decides what happens to an optional
// layer without id, which can't be identified in a variation.
type MissingIDPolicy uint8

const (
	// KeepMissingID leaves the layer in place, in every variation.
	KeepMissingID MissingIDPolicy = iota
	// RemoveMissingID drops the layer from every variation.
	RemoveMissingID
)

// ParseMissingIDPolicy accepts "keep" or "remove".
func ParseMissingIDPolicy(s string) (MissingIDPolicy, error) {
	switch s {
	case "keep", "":
		return KeepMissingID, nil
	case "remove":
		return RemoveMissingID, nil
	default:
		return 0, fmt.Errorf("invalid missing id policy %q (expected keep or remove)", s)
	}
}

func (p MissingIDPolicy) String() string {
	if p == RemoveMissingID {
		return "remove"
	}
	return "keep"
}

// Rules map layer labels to classes.
type Rules struct {
	TogglePrefix string
	RemovePrefix string
	MissingID    MissingIDPolicy
}

// DefaultRules matches the labels used in the templates:
// "Engrave..." layers are optional and "-..." layers are removed.
var DefaultRules = Rules{TogglePrefix: "Engrave", RemovePrefix: "-"}

// Validate checks that the prefixes are usable.
func (r Rules) Validate() error {
	if r.TogglePrefix == "" || r.RemovePrefix == "" {
		return fmt.Errorf("layer prefixes must not be empty")
	}
	if strings.HasPrefix(r.TogglePrefix, r.RemovePrefix) || strings.HasPrefix(r.RemovePrefix, r.TogglePrefix) {
		return fmt.Errorf("layer prefixes %q and %q overlap", r.TogglePrefix, r.RemovePrefix)
	}
	return nil
}

// classOf is the pure label -> class function.
func (r Rules) classOf(label string) Class {
	switch {
	case strings.HasPrefix(label, r.RemovePrefix):
		return AlwaysRemove
	case strings.HasPrefix(label, r.TogglePrefix):
		return Toggle
	default:
		return AlwaysKeep
	}
}

// Layer is a labeled group, with its class resolved.
type Layer struct {
	Node  *svgtree.Node
	Label string
	ID    string
	Class Class
}

// IssueCode identifies a non fatal classification problem.
type IssueCode uint8

const (
	IssueMissingID   IssueCode = iota // optional layer without id
	IssueNestedToggle                 // optional layer inside another optional layer
	IssueDuplicateID                  // optional layer whose id is not unique
)

// Issue is a non fatal problem found while classifying.
type Issue struct {
	Code  IssueCode
	Label string
	ID    string
}

func (is Issue) String() string {
	switch is.Code {
	case IssueMissingID:
		return fmt.Sprintf("optional layer %q has no id: it is not extracted and stays in every variation", is.Label)
	case IssueNestedToggle:
		return fmt.Sprintf("optional layer %q (id %q) is nested in another optional layer: it is kept inside its parent", is.Label, is.ID)
	case IssueDuplicateID:
		return fmt.Sprintf("optional layer %q uses the id %q which is not unique in the document", is.Label, is.ID)
	default:
		return fmt.Sprintf("layer %q: issue %d", is.Label, is.Code)
	}
}

// Classification is the result of Classify.
type Classification struct {
	Layers []Layer // in document order
	Issues []Issue
}

func (c Classification) filter(class Class) []Layer {
	var out []Layer
	for _, l := range c.Layers {
		if l.Class == class {
			out = append(out, l)
		}
	}
	return out
}

// Toggles returns the optional layers, in document order.
func (c Classification) Toggles() []Layer { return c.filter(Toggle) }

// Removals returns the layers excluded from every variation.
func (c Classification) Removals() []Layer { return c.filter(AlwaysRemove) }

// Kept returns the labeled layers kept in every variation.
func (c Classification) Kept() []Layer { return c.filter(AlwaysKeep) }

// LabelOf returns the inkscape:label of `n`, if `n` is a group.
func LabelOf(n *svgtree.Node) (string, bool) {
	if !n.IsElement("g") {
		return "", false
	}
	return n.AttrValue(svgtree.InkscapeNamespace, "label")
}

// Classify walks the descendants of `root` in document order and
// returns every labeled group with its class. `root` itself is never a layer.
//
// Removed layers are not explored. Optional layers are only explored
// to find removed layers, so that scaffolding is stripped from their content
// too; optional layers nested in them are reported and left in place.
// An optional layer without id is reported and handled following `rules.MissingID`.
func Classify(root *svgtree.Node, rules Rules) Classification {
	var (
		out   Classification
		ids   = make(map[string]int)
		depth int // > 0 inside an optional layer
	)
	root.Walk(func(n *svgtree.Node) bool {
		if n.Kind == svgtree.ElementNode {
			if id := n.ID(); id != "" {
				ids[id]++
			}
		}
		return true
	})

	var visit func(n *svgtree.Node)
	visit = func(n *svgtree.Node) {
		label, isLayer := LabelOf(n)
		if !isLayer {
			for _, c := range n.Children {
				visit(c)
			}
			return
		}
		layer := Layer{Node: n, Label: label, ID: n.ID(), Class: rules.classOf(label)}
		switch layer.Class {
		case AlwaysRemove:
			out.Layers = append(out.Layers, layer)
			return
		case Toggle:
			if depth > 0 {
				out.Issues = append(out.Issues, Issue{Code: IssueNestedToggle, Label: label, ID: layer.ID})
				break // explored as plain content of the enclosing layer
			}
			if layer.ID == "" {
				out.Issues = append(out.Issues, Issue{Code: IssueMissingID, Label: label})
				if rules.MissingID == RemoveMissingID {
					layer.Class = AlwaysRemove
					out.Layers = append(out.Layers, layer)
					return
				}
				layer.Class = AlwaysKeep
				out.Layers = append(out.Layers, layer)
				break
			}
			if ids[layer.ID] > 1 {
				out.Issues = append(out.Issues, Issue{Code: IssueDuplicateID, Label: label, ID: layer.ID})
			}
			out.Layers = append(out.Layers, layer)
			depth++
			for _, c := range n.Children {
				visit(c)
			}
			depth--
			return
		default:
			if depth == 0 {
				out.Layers = append(out.Layers, layer)
			}
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	for _, c := range root.Children {
		visit(c)
	}
	return out
}
