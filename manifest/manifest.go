// Writes the summary read by the website:
// the display colors and the number of variations of each template.
package manifest

import (
	"errors"
	"fmt"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// ErrEmpty is returned by Write when the manifest has no entry.
var ErrEmpty = errors.New("manifest has no entry")

// Entry is the number of variations successfully generated for a template.
type Entry struct {
	Name  string
	Count int
}

// Colors are the website colors.
type Colors struct {
	MainBackground  string // page background
	MainText        string // page text
	ImageBackground string // background behind the template images
}

// Manifest is the content of the website configuration file.
type Manifest struct {
	Generator string
	Colors    Colors
	Entries   []Entry // in processing order
}

func (m Manifest) data() map[string]any {
	variations := make([]any, len(m.Entries))
	for i, e := range m.Entries {
		variations[i] = []any{e.Name, int64(e.Count)}
	}
	return map[string]any{
		"generator": m.Generator,
		"colors": map[string]any{
			"webMain": map[string]any{
				"backgroundColor": m.Colors.MainBackground,
				"textColor":       m.Colors.MainText,
			},
			"webImg": map[string]any{
				"backgroundColor": m.Colors.ImageBackground,
			},
		},
		"variations": variations,
	}
}

// Encode returns the JSON form of the manifest, with sorted keys
// and two spaces indentation.
func (m Manifest) Encode() []byte {
	return []byte(oj.JSON(m.data(), &ojg.Options{Indent: 2, Sort: true}) + "\n")
}

// Write encodes `m` to `file`, creating the parent directories.
// An empty manifest is not written, so that a failed run does not
// overwrite the previous file: ErrEmpty is returned instead.
func Write(fs billy.Filesystem, file string, m Manifest) error {
	if len(m.Entries) == 0 {
		return ErrEmpty
	}
	if err := fs.MkdirAll(path.Dir(file), 0o755); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := util.WriteFile(fs, file, m.Encode(), 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

var (
	variationsPath  = jp.MustParseString("$.variations[*]")
	generatorPath   = jp.MustParseString("$.generator")
	mainBgPath      = jp.MustParseString("$.colors.webMain.backgroundColor")
	mainTextPath    = jp.MustParseString("$.colors.webMain.textColor")
	imageBgPath     = jp.MustParseString("$.colors.webImg.backgroundColor")
	errInvalidEntry = errors.New("invalid variation entry")
)

// Read parses a manifest file, as written by Write.
func Read(fs billy.Basic, file string) (Manifest, error) {
	content, err := util.ReadFile(fs, file)
	if err != nil {
		return Manifest{}, err
	}
	data, err := oj.ParseString(string(content))
	if err != nil {
		return Manifest{}, fmt.Errorf("invalid manifest %s: %w", file, err)
	}
	str := func(x jp.Expr) string {
		s, _ := x.First(data).(string)
		return s
	}
	m := Manifest{
		Generator: str(generatorPath),
		Colors: Colors{
			MainBackground:  str(mainBgPath),
			MainText:        str(mainTextPath),
			ImageBackground: str(imageBgPath),
		},
	}
	for _, item := range variationsPath.Get(data) {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			return Manifest{}, fmt.Errorf("invalid manifest %s: %w", file, errInvalidEntry)
		}
		name, okName := pair[0].(string)
		count, okCount := pair[1].(int64)
		if !okName || !okCount {
			return Manifest{}, fmt.Errorf("invalid manifest %s: %w", file, errInvalidEntry)
		}
		m.Entries = append(m.Entries, Entry{Name: name, Count: int(count)})
	}
	return m, nil
}
