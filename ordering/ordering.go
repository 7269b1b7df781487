// Lists the source templates to process, in the
// order requested by the ordering file, completed by the templates
// found on disk.
package ordering

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/benoitkugler/svgvariants/diag"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg/oj"
)

// ErrSourceDirMissing is returned when the source directory
// does not exist (or is not a directory).
var ErrSourceDirMissing = errors.New("source directory not found")

// Source is one template to process.
type Source struct {
	Name string // base name, without extension
	Path string // path of the file, in the scanned filesystem
}

// Resolve scans `sourceDir` for SVG files (extension is case insensitive) and
// orders them following `orderFile`, a JSON array of base names.
// Listed names without file are dropped, files not listed are appended in
// alphabetical order. Without a usable ordering file, the alphabetical order is used.
// An empty `orderFile` disables the ordering file.
//
// Only a missing source directory is an error: every other problem
// is returned as a warning diagnostic.
func Resolve(fs billy.Filesystem, sourceDir, orderFile string) ([]Source, []diag.Diagnostic, error) {
	onDisk, diags, err := scan(fs, sourceDir)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(onDisk))
	for name := range onDisk {
		names = append(names, name)
	}
	sort.Strings(names)

	var listed []string
	if orderFile != "" {
		var ds []diag.Diagnostic
		listed, ds = readOrder(fs, orderFile)
		diags = append(diags, ds...)
	}

	var (
		out  []Source
		seen = make(map[string]bool)
	)
	for _, name := range listed {
		switch {
		case seen[name]:
			diags = append(diags, warning(diag.OrderingEntryDuplicate, orderFile,
				"'%s' is listed more than once in %s; only the first occurrence is used", name, path.Base(orderFile)))
		case onDisk[name] == "":
			diags = append(diags, warning(diag.OrderingEntryMissing, orderFile,
				"file '%s' from %s is not in the source directory (%s)", name, path.Base(orderFile), sourceDir))
		default:
			out = append(out, Source{Name: name, Path: onDisk[name]})
		}
		seen[name] = true
	}
	for _, name := range names {
		if seen[name] {
			continue
		}
		if listed != nil {
			diags = append(diags, warning(diag.OrderingEntryUnlisted, onDisk[name],
				"file '%s' was not in %s; appending it to the end of the processing list", path.Base(onDisk[name]), path.Base(orderFile)))
		}
		out = append(out, Source{Name: name, Path: onDisk[name]})
	}
	return out, diags, nil
}

func warning(kind diag.Kind, file, format string, args ...any) diag.Diagnostic {
	return diag.Diagnostic{Kind: kind, Severity: diag.Warning, File: file, Message: fmt.Sprintf(format, args...)}
}

// scan returns the SVG files of `dir`, indexed by base name
func scan(fs billy.Filesystem, dir string) (map[string]string, []diag.Diagnostic, error) {
	fi, err := fs.Stat(dir)
	if err != nil || !fi.IsDir() {
		if err == nil || errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrSourceDirMissing, dir)
		}
		return nil, nil, fmt.Errorf("reading source directory: %w", err)
	}
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading source directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var (
		out   = make(map[string]string)
		diags []diag.Diagnostic
	)
	for _, entry := range entries {
		ext := path.Ext(entry.Name())
		if entry.IsDir() || !strings.EqualFold(ext, ".svg") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		file := fs.Join(dir, entry.Name())
		if prev, has := out[name]; has {
			diags = append(diags, warning(diag.OrderingEntryDuplicate, file,
				"'%s' and '%s' share the base name '%s'; only the first is used", prev, file, name))
			continue
		}
		out[name] = file
	}
	return out, diags, nil
}

// readOrder returns nil if the ordering file is missing or invalid.
func readOrder(fs billy.Filesystem, orderFile string) ([]string, []diag.Diagnostic) {
	content, err := util.ReadFile(fs, orderFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, []diag.Diagnostic{warning(diag.OrderingArtifactMissing, orderFile,
			"%s not found; using the alphabetical order of the source directory", path.Base(orderFile))}
	}
	if err != nil {
		return nil, []diag.Diagnostic{warning(diag.OrderingArtifactMalformed, orderFile,
			"could not read %s (%s); using the alphabetical order of the source directory", path.Base(orderFile), err)}
	}
	parsed, err := oj.ParseString(string(content))
	if err != nil {
		return nil, []diag.Diagnostic{warning(diag.OrderingArtifactMalformed, orderFile,
			"could not decode %s (%s); using the alphabetical order of the source directory", path.Base(orderFile), err)}
	}
	list, ok := parsed.([]any)
	if !ok {
		return nil, []diag.Diagnostic{warning(diag.OrderingArtifactMalformed, orderFile,
			"%s does not contain a list; using the alphabetical order of the source directory", path.Base(orderFile))}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		switch item := item.(type) {
		case string:
			out = append(out, item)
		case nil:
		default:
			out = append(out, fmt.Sprint(item))
		}
	}
	return out, nil
}
