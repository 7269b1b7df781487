package svgtree

import (
	"regexp"
	"strings"
)

const (
	provenanceStart = "WARNING: AUTO-GENERATED FILE - START"
	provenanceEnd   = "WARNING: AUTO-GENERATED FILE - END"
	provenanceRule  = "============================================================================="

	toolComment = "Created with Inkscape"
)

var provenanceRe = regexp.MustCompile(`(?s)<!--\s*` + regexp.QuoteMeta(provenanceStart) +
	`.*?` + regexp.QuoteMeta(provenanceEnd) + `\s*-->\r?\n?`)

// Provenance describes where a generated file comes from.
type Provenance struct {
	Source    string // source file, as displayed to readers
	Generator string // name of the generating tool
}

// Comment returns the text of the warning comment.
func (p Provenance) Comment() string {
	return "\n" + strings.Join([]string{
		provenanceStart,
		provenanceRule,
		"Generated from " + commentSafe(p.Source) + " by " + commentSafe(p.Generator),
		"DO NOT EDIT THIS FILE DIRECTLY",
		"IT WILL BE OVERWRITTEN ON NEXT GENERATION",
		provenanceRule,
		provenanceEnd,
	}, "\n") + "\n"
}

// commentSafe breaks the "--" sequences, which may not appear in a comment.
func commentSafe(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "- -")
	}
	return s
}

// Stamp marks `doc` as generated: comments left by the authoring tool
// or by a previous generation are removed, and the provenance comment
// is inserted right before the root element.
func Stamp(doc *Document, p Provenance) {
	doc.Prolog = dropStamps(doc.Prolog)
	doc.Epilog = dropStamps(doc.Epilog)
	doc.Prolog = append(doc.Prolog, NewComment(p.Comment()))
}

func dropStamps(nodes []*Node) []*Node {
	var kept []*Node
	for _, n := range nodes {
		if n.Kind == CommentNode &&
			(strings.Contains(n.Data, toolComment) || strings.Contains(n.Data, provenanceStart)) {
			continue
		}
		kept = append(kept, n)
	}
	return kept
}

// HasProvenance returns true if the serialized document
// contains the generated file warning.
func HasProvenance(content []byte) bool {
	return provenanceRe.Match(content)
}

// Strip removes the generated file warning from a serialized document,
// leaving the rest of the content untouched.
func Strip(content []byte) []byte {
	return provenanceRe.ReplaceAll(content, nil)
}
