package generate

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benoitkugler/svgvariants/config"
	"github.com/benoitkugler/svgvariants/diag"
	"github.com/benoitkugler/svgvariants/manifest"
	"github.com/benoitkugler/svgvariants/svgraster"
	"github.com/benoitkugler/svgvariants/svgrecolor"
	"github.com/benoitkugler/svgvariants/svgtree"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	opts, err := OptionsFromConfig(config.Default())
	require.NoError(t, err)
	return opts
}

// newProject returns a filesystem with the test templates
// in the default source directory.
func newProject(t *testing.T, order string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for _, name := range []string{"sign.svg", "plain.svg"} {
		content, err := os.ReadFile(filepath.Join("testdata", name))
		require.NoError(t, err)
		require.NoError(t, util.WriteFile(fs, "source_templates/"+name, content, 0o644))
	}
	if order != "" {
		require.NoError(t, util.WriteFile(fs, "source_templates/order.json", []byte(order), 0o644))
	}
	return fs
}

func readString(t *testing.T, fs billy.Filesystem, name string) string {
	t.Helper()
	content, err := util.ReadFile(fs, name)
	require.NoError(t, err)
	return string(content)
}

func kinds(report Report) map[diag.Kind]int {
	out := make(map[diag.Kind]int)
	for _, d := range report.Diagnostics {
		out[d.Kind]++
	}
	return out
}

func TestRun(t *testing.T) {
	fs := newProject(t, `["sign", "plain"]`)
	g := New(fs, testOptions(t), nil)
	report, err := g.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Failed, report.Diagnostics)
	assert.False(t, report.Aborted)
	assert.True(t, report.ManifestWritten)
	assert.Equal(t, 2, report.Sources)
	assert.Equal(t, 4, report.Variations)
	assert.Equal(t, []manifest.Entry{{Name: "sign", Count: 3}, {Name: "plain", Count: 1}}, report.Entries)

	for _, dir := range []string{"website/downloadables", "website/displayables"} {
		for _, name := range []string{"sign_var0.svg", "sign_var1.svg", "sign_var2.svg", "plain_var0.svg"} {
			_, err := fs.Stat(dir + "/" + name)
			assert.NoError(t, err, name)
		}
		_, err := fs.Stat(dir + "/sign_var3.svg")
		assert.Error(t, err)
	}

	var0 := readString(t, fs, "website/downloadables/sign_var0.svg")
	assert.Contains(t, var0, "Generated from source_templates/sign.svg by svgvariants")
	assert.NotContains(t, var0, "Created with Inkscape")
	assert.NotContains(t, var0, "guide-line")
	assert.NotContains(t, var0, `id="eng1"`)
	assert.NotContains(t, var0, `id="eng2"`)
	assert.NotContains(t, var0, `id="background"`)
	assert.Contains(t, var0, `id="board"`)

	var1 := readString(t, fs, "website/downloadables/sign_var1.svg")
	assert.Contains(t, var1, `id="eng1"`)
	assert.NotContains(t, var1, `id="eng2"`)
	var2 := readString(t, fs, "website/downloadables/sign_var2.svg")
	assert.Contains(t, var2, `id="eng2"`)
	assert.NotContains(t, var2, `id="eng1"`)
	assert.Contains(t, var2, "stroke:#FF0000")

	display := readString(t, fs, "website/displayables/sign_var2.svg")
	assert.Contains(t, display, `id="background"`)
	assert.Contains(t, display, "stroke:"+svgrecolor.DefaultPalette.Engrave)
	assert.NotContains(t, display, "#FF0000")

	m, err := manifest.Read(fs, "website/generated/config.json")
	require.NoError(t, err)
	assert.Equal(t, report.Entries, m.Entries)
	assert.Equal(t, "svgvariants", m.Generator)
	assert.Equal(t, svgrecolor.DefaultPalette.Background, m.Colors.ImageBackground)
	assert.Equal(t, svgrecolor.DefaultPalette.PageBackground, m.Colors.MainBackground)

	assert.Equal(t, 4.0, testutil.ToFloat64(g.metrics.variations.WithLabelValues("ok")))
	assert.Equal(t, 4.0, testutil.ToFloat64(g.metrics.artifacts.WithLabelValues("displayable")))
	assert.Equal(t, 2.0, testutil.ToFloat64(g.metrics.sources.WithLabelValues("ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(g.metrics.diagnostics.WithLabelValues("error")))
}

func TestRunIdempotent(t *testing.T) {
	fs := newProject(t, `["sign", "plain"]`)
	_, err := New(fs, testOptions(t), nil).Run(context.Background())
	require.NoError(t, err)
	first := readString(t, fs, "website/displayables/sign_var1.svg")

	_, err = New(fs, testOptions(t), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, readString(t, fs, "website/displayables/sign_var1.svg"))
	assert.Equal(t, 1, strings.Count(first, "AUTO-GENERATED FILE - START"))
}

func TestRunOrderFallback(t *testing.T) {
	fs := newProject(t, "")
	report, err := New(fs, testOptions(t), nil).Run(context.Background())
	require.NoError(t, err)

	// alphabetical order
	assert.Equal(t, []manifest.Entry{{Name: "plain", Count: 1}, {Name: "sign", Count: 3}}, report.Entries)
	assert.Equal(t, 1, kinds(report)[diag.OrderingArtifactMissing])
	assert.False(t, report.Failed)
}

func TestRunInvalidSource(t *testing.T) {
	fs := newProject(t, `["broken", "sign", "plain"]`)
	require.NoError(t, util.WriteFile(fs, "source_templates/broken.svg", []byte("<svg><g></svg>"), 0o644))

	report, err := New(fs, testOptions(t), nil).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Failed)
	assert.False(t, report.Aborted)
	assert.Equal(t, 1, kinds(report)[diag.StructuralParseError])
	assert.Equal(t, 1, kinds(report)[diag.NoVariations])
	assert.Equal(t, []manifest.Entry{{Name: "sign", Count: 3}, {Name: "plain", Count: 1}}, report.Entries)
}

// failingFS refuses to open one file for writing.
type failingFS struct {
	billy.Filesystem
	refused string
}

func (fs failingFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	if filename == fs.refused && flag&os.O_WRONLY != 0 {
		return nil, os.ErrPermission
	}
	return fs.Filesystem.OpenFile(filename, flag, perm)
}

func TestRunWriteFailure(t *testing.T) {
	fs := failingFS{Filesystem: newProject(t, `["sign", "plain"]`), refused: "website/downloadables/sign_var1.svg"}
	g := New(fs, testOptions(t), nil)
	report, err := g.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Failed)
	assert.False(t, report.Aborted)
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, []manifest.Entry{{Name: "sign", Count: 2}, {Name: "plain", Count: 1}}, report.Entries)

	var failure diag.Diagnostic
	for _, d := range report.Diagnostics {
		if d.Kind == diag.SerializationFailure {
			failure = d
		}
	}
	assert.Equal(t, diag.Error, failure.Severity)
	assert.Equal(t, "website/downloadables/sign_var1.svg", failure.File)

	// the displayable of a failed variation is not written
	_, err = fs.Stat("website/displayables/sign_var1.svg")
	assert.Error(t, err)
	_, err = fs.Stat("website/displayables/sign_var2.svg")
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(g.metrics.variations.WithLabelValues("failed")))
}

func TestRunDisplayableFailure(t *testing.T) {
	fs := failingFS{Filesystem: newProject(t, `["sign", "plain"]`), refused: "website/displayables/sign_var1.svg"}
	g := New(fs, testOptions(t), nil)
	report, err := g.Run(context.Background())
	require.NoError(t, err)

	// the variation is still available for download
	assert.True(t, report.Failed)
	assert.Equal(t, 0, report.Failures)
	assert.Equal(t, []manifest.Entry{{Name: "sign", Count: 3}, {Name: "plain", Count: 1}}, report.Entries)
	_, err = fs.Stat("website/downloadables/sign_var1.svg")
	assert.NoError(t, err)

	var failures []diag.Diagnostic
	for _, d := range report.Diagnostics {
		if d.Kind == diag.SerializationFailure {
			failures = append(failures, d)
		}
	}
	require.Len(t, failures, 1)
	assert.Equal(t, "website/displayables/sign_var1.svg", failures[0].File)
	assert.Equal(t, 3.0, testutil.ToFloat64(g.metrics.artifacts.WithLabelValues("displayable")))
}

func TestRunDashedName(t *testing.T) {
	fs := newProject(t, "")
	content := readString(t, fs, "source_templates/sign.svg")
	require.NoError(t, util.WriteFile(fs, "source_templates/door--sign.svg", []byte(content), 0o644))

	report, err := New(fs, testOptions(t), nil).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Failed, report.Diagnostics)
	for _, dir := range []string{"website/downloadables", "website/displayables"} {
		doc, err := svgtree.Load(fs, dir+"/door--sign_var1.svg")
		require.NoError(t, err)
		assert.NotNil(t, doc.ElementByID("eng1"))
	}
}

func TestRunLabeledRoot(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "source_templates/a.svg", []byte(`<g xmlns="http://www.w3.org/2000/svg" xmlns:inkscape="http://www.inkscape.org/namespaces/inkscape" inkscape:label="Engrave-all" id="e"><rect id="r"/></g>`), 0o644))
	content, err := os.ReadFile(filepath.Join("testdata", "plain.svg"))
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(fs, "source_templates/b.svg", content, 0o644))

	report, err := New(fs, testOptions(t), nil).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Aborted)
	assert.Equal(t, []manifest.Entry{{Name: "a", Count: 1}, {Name: "b", Count: 1}}, report.Entries)
	assert.True(t, report.ManifestWritten)
}

// panickingFS simulates a programming error while processing one source.
type panickingFS struct {
	billy.Filesystem
	file string
}

func (fs panickingFS) Stat(filename string) (os.FileInfo, error) {
	if filename == fs.file {
		panic("unexpected state")
	}
	return fs.Filesystem.Stat(filename)
}

func TestRunAbort(t *testing.T) {
	fs := panickingFS{Filesystem: newProject(t, `["sign", "plain"]`), file: "source_templates/plain.svg"}
	report, err := New(fs, testOptions(t), nil).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Aborted)
	assert.True(t, report.Failed)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, kinds(report)[diag.UnexpectedFailure])
	assert.Equal(t, []manifest.Entry{{Name: "sign", Count: 3}}, report.Entries)
	assert.True(t, report.ManifestWritten)

	// the other order: nothing is produced
	fs = panickingFS{Filesystem: newProject(t, `["plain", "sign"]`), file: "source_templates/plain.svg"}
	report, err = New(fs, testOptions(t), nil).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Aborted)
	assert.Equal(t, 1, report.Processed)
	assert.Empty(t, report.Entries)
	assert.False(t, report.ManifestWritten)
}

func TestRunCanceled(t *testing.T) {
	fs := newProject(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := New(fs, testOptions(t), nil).Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Aborted)
	assert.Equal(t, 0, report.Processed)
	assert.True(t, report.Failed)
}

func TestRunMissingSourceDir(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "website/generated/config.json", []byte("{}"), 0o644))

	report, err := New(fs, testOptions(t), nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, report.Failed)
	assert.Equal(t, 1, kinds(report)[diag.SourceDirectoryMissing])
	// previous manifest is kept
	assert.Equal(t, "{}", readString(t, fs, "website/generated/config.json"))
}

func TestRunNoVariations(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("source_templates", 0o755))
	require.NoError(t, util.WriteFile(fs, "source_templates/notes.txt", []byte("x"), 0o644))
	require.NoError(t, util.WriteFile(fs, "website/generated/config.json", []byte("{}"), 0o644))

	report, err := New(fs, testOptions(t), nil).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Failed)
	assert.False(t, report.ManifestWritten)
	assert.Equal(t, "{}", readString(t, fs, "website/generated/config.json"))
}

func TestRunIssues(t *testing.T) {
	fs := memfs.New()
	src := `<svg xmlns="http://www.w3.org/2000/svg" xmlns:inkscape="http://www.inkscape.org/namespaces/inkscape" viewBox="0 0 10 10">
  <g inkscape:label="Engrave-a"><rect width="1" height="1" /></g>
  <g inkscape:label="Engrave-b" id="b">
    <g inkscape:label="Engrave-c" id="c"><rect width="1" height="1" /></g>
  </g>
</svg>`
	require.NoError(t, util.WriteFile(fs, "source_templates/issues.svg", []byte(src), 0o644))

	report, err := New(fs, testOptions(t), nil).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Failed)
	k := kinds(report)
	assert.Equal(t, 1, k[diag.LayerMissingIdentifier])
	assert.Equal(t, 1, k[diag.NestedOptionalLayer])
	assert.Equal(t, []manifest.Entry{{Name: "issues", Count: 2}}, report.Entries)
}

func TestRunThumbnails(t *testing.T) {
	fs := newProject(t, `["sign", "plain"]`)
	opts := testOptions(t)
	opts.Thumbnails = &Thumbnails{Dir: "website/thumbnails", Options: svgraster.Options{Width: 50}}
	g := New(fs, opts, nil)
	report, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Failed, report.Diagnostics)

	content, err := util.ReadFile(fs, "website/thumbnails/sign_var1.png")
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 25, cfg.Height)
	assert.Equal(t, 4.0, testutil.ToFloat64(g.metrics.artifacts.WithLabelValues("thumbnail")))
}

func TestMetricsTextfile(t *testing.T) {
	fs := newProject(t, `["sign", "plain"]`)
	opts := testOptions(t)
	opts.MetricsFile = filepath.Join(t.TempDir(), "svgvariants.prom")
	g := New(fs, opts, nil)
	_, err := g.Run(context.Background())
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(g.Registry(), "svgvariants_variations_total", "svgvariants_run_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n) // no failed variation series

	content, err := os.ReadFile(opts.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `svgvariants_variations_total{result="ok"} 4`)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Thumbnails.Enabled = true
	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	require.NotNil(t, opts.Thumbnails)
	assert.Equal(t, cfg.Thumbnails.Width, opts.Thumbnails.Width)

	cfg.Layers.MissingID = "drop"
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)
}
