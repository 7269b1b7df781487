// Projects generated documents into the colors used by the
// website display: a plain background, a filled board and dark
// engraving strokes.
package svgrecolor

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// Palette defines the colors of the web display.
type Palette struct {
	Background  string // page background, drawn behind the document
	Board       string // fill of the board outlines (black strokes)
	Engrave     string // stroke of the engraving (red strokes)
	StrokeWidth string // stroke width of the engraving

	// website colors, only written in the manifest
	PageBackground string
	PageText       string
}

// DefaultPalette is the palette of the website.
var DefaultPalette = Palette{
	Background:     "#606060",
	Board:          "#e9ddaf",
	Engrave:        "#28220B",
	StrokeWidth:    "0.6",
	PageBackground: "#303030",
	PageText:       "#f5f5f5",
}

// Validate checks that every color is parsable and
// that the stroke width is a positive number.
func (p Palette) Validate() error {
	var errs []error
	for _, c := range [...]struct{ name, value string }{
		{"background", p.Background},
		{"board", p.Board},
		{"engrave", p.Engrave},
		{"page_background", p.PageBackground},
		{"page_text", p.PageText},
	} {
		if _, err := ParseColor(c.value); err != nil {
			errs = append(errs, fmt.Errorf("palette %s: %w", c.name, err))
		}
	}
	if w, err := strconv.ParseFloat(p.StrokeWidth, 64); err != nil || w <= 0 {
		errs = append(errs, fmt.Errorf("palette stroke_width: invalid width %q", p.StrokeWidth))
	}
	return errors.Join(errs...)
}

// ParseColor accepts #rgb, #rrggbb and SVG color keywords.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		switch len(hex) {
		case 3:
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		case 6:
		default:
			return color.RGBA{}, fmt.Errorf("invalid color %q", s)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("invalid color %q", s)
		}
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
	}
	if c, ok := colornames.Map[strings.ToLower(s)]; ok {
		return c, nil
	}
	return color.RGBA{}, fmt.Errorf("invalid color %q", s)
}

// isColor returns true if `value` is a paint equal to `target`.
func isColor(value string, target color.RGBA) bool {
	c, err := ParseColor(value)
	return err == nil && c == target
}
