// Runs the whole pipeline: for each source template,
// in order, every variation is written as a downloadable file and as
// a recolored displayable file, then the website manifest is updated.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/benoitkugler/svgvariants/config"
	"github.com/benoitkugler/svgvariants/diag"
	"github.com/benoitkugler/svgvariants/logging"
	"github.com/benoitkugler/svgvariants/manifest"
	"github.com/benoitkugler/svgvariants/ordering"
	"github.com/benoitkugler/svgvariants/svglayer"
	"github.com/benoitkugler/svgvariants/svgraster"
	"github.com/benoitkugler/svgvariants/svgrecolor"
	"github.com/benoitkugler/svgvariants/svgtree"
)

// Options are the resolved settings of a run.
type Options struct {
	SourceDir       string
	OrderFile       string
	DownloadableDir string
	DisplayableDir  string
	ManifestPath    string
	MetricsFile     string // on the OS filesystem, empty to disable
	Generator       string

	Rules      svglayer.Rules
	Palette    svgrecolor.Palette
	Thumbnails *Thumbnails // nil to disable
}

// Thumbnails configures the PNG previews.
type Thumbnails struct {
	Dir string
	svgraster.Options
}

// OptionsFromConfig validates `cfg` and converts it.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return Options{}, err
	}
	opts := Options{
		SourceDir:       cfg.SourceDir,
		OrderFile:       cfg.OrderFile,
		DownloadableDir: cfg.DownloadableDir,
		DisplayableDir:  cfg.DisplayableDir,
		ManifestPath:    cfg.ManifestPath,
		MetricsFile:     cfg.MetricsFile,
		Generator:       cfg.Generator,
		Rules:           rules,
		Palette:         cfg.Palette,
	}
	if cfg.Thumbnails.Enabled {
		opts.Thumbnails = &Thumbnails{
			Dir:     cfg.Thumbnails.Dir,
			Options: svgraster.Options{Width: cfg.Thumbnails.Width, Supersample: cfg.Thumbnails.Supersample},
		}
	}
	return opts, nil
}

// Report sums up a run.
type Report struct {
	Sources         int // number of sources found
	Processed       int // number of sources processed (less than Sources if aborted)
	Entries         []manifest.Entry
	Variations      int // successful variations
	Failures        int // failed variations
	Aborted         bool
	ManifestWritten bool
	Diagnostics     []diag.Diagnostic
	Failed          bool // at least one error was reported
}

// Generator runs the pipeline over a filesystem.
// A Generator is not safe for concurrent use.
type Generator struct {
	fs      billy.Filesystem
	opts    Options
	logger  *slog.Logger
	diags   *diag.Collector
	metrics *metrics
}

// New returns a generator reading and writing `fs`.
// `logger` may be nil to discard logs.
func New(fs billy.Filesystem, opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.Generator == "" {
		opts.Generator = "svgvariants"
	}
	return &Generator{fs: fs, opts: opts, logger: logger, metrics: newMetrics()}
}

// Registry exposes the run statistics.
func (g *Generator) Registry() *prometheus.Registry { return g.metrics.registry }

// Run processes every source. Problems are reported as diagnostics;
// an error is only returned if the run could not start.
func (g *Generator) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	g.diags = diag.NewCollector(g.logger)
	var report Report

	sources, ds, err := ordering.Resolve(g.fs, g.opts.SourceDir, g.opts.OrderFile)
	if err != nil {
		kind := diag.UnexpectedFailure
		if errors.Is(err, ordering.ErrSourceDirMissing) {
			kind = diag.SourceDirectoryMissing
		}
		g.diags.Errorf(kind, g.opts.SourceDir, "%s", err)
		return g.finish(report, start), err
	}
	for _, d := range ds {
		g.diags.Report(d)
	}
	report.Sources = len(sources)
	if len(sources) == 0 {
		g.diags.Errorf(diag.NoVariations, g.opts.SourceDir, "no files found to process in %s", g.opts.SourceDir)
		return g.finish(report, start), nil
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			g.diags.Reportf(diag.UnexpectedFailure, diag.Critical, "", "run canceled: %s; halting further file processing", err)
			report.Aborted = true
			break
		}
		report.Processed++
		outcome, err := g.safeProcess(src)
		report.Variations += outcome.Succeeded
		report.Failures += len(outcome.Failed)
		if err != nil {
			g.diags.Reportf(diag.UnexpectedFailure, diag.Critical, src.Path,
				"an unexpected error occurred while processing %s: %s; halting further file processing", src.Name, err)
			g.metrics.sources.WithLabelValues("failed").Inc()
			report.Aborted = true
			break
		}
		if outcome.Succeeded > 0 {
			report.Entries = append(report.Entries, manifest.Entry{Name: src.Name, Count: outcome.Succeeded})
			g.diags.Infof(src.Path, "Generated %d variation(s) for %s.", outcome.Succeeded, src.Name)
			g.metrics.sources.WithLabelValues("ok").Inc()
		} else {
			g.diags.Warnf(diag.NoVariations, src.Path, "no variations successfully generated for %s", src.Name)
			g.metrics.sources.WithLabelValues("empty").Inc()
		}
	}

	if report.Variations == 0 {
		g.diags.Errorf(diag.NoVariations, g.opts.SourceDir,
			"no variations were successfully generated for any of the %d input file(s)", len(sources))
	}
	report.ManifestWritten = g.writeManifest(report.Entries)
	return g.finish(report, start), nil
}

func (g *Generator) finish(report Report, start time.Time) Report {
	g.metrics.duration.Set(time.Since(start).Seconds())
	g.metrics.observeDiagnostics(g.diags)
	if g.opts.MetricsFile != "" {
		if err := g.metrics.writeTextfile(g.opts.MetricsFile); err != nil {
			g.diags.Warnf(diag.MetricsFailure, g.opts.MetricsFile, "writing metrics: %s", err)
		}
	}
	report.Diagnostics = g.diags.Diagnostics()
	report.Failed = g.diags.Failed()
	return report
}

func (g *Generator) writeManifest(entries []manifest.Entry) bool {
	m := manifest.Manifest{
		Generator: g.opts.Generator,
		Colors: manifest.Colors{
			MainBackground:  g.opts.Palette.PageBackground,
			MainText:        g.opts.Palette.PageText,
			ImageBackground: g.opts.Palette.Background,
		},
		Entries: entries,
	}
	err := manifest.Write(g.fs, g.opts.ManifestPath, m)
	switch {
	case errors.Is(err, manifest.ErrEmpty):
		g.diags.Warnf(diag.NoVariations, g.opts.ManifestPath, "no successful variations to write to %s; keeping the previous file", path.Base(g.opts.ManifestPath))
		return false
	case err != nil:
		g.diags.Errorf(diag.ManifestFailure, g.opts.ManifestPath, "%s", err)
		return false
	}
	g.diags.Infof(g.opts.ManifestPath, "Manifest written.")
	return true
}

// safeProcess turns a panic into an error
func (g *Generator) safeProcess(src ordering.Source) (outcome svglayer.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return g.process(src), nil
}

func (g *Generator) process(src ordering.Source) svglayer.Outcome {
	if _, err := g.fs.Stat(src.Path); err != nil {
		g.diags.Errorf(diag.SourceNotFound, src.Path, "source template file not found: %s", err)
		return svglayer.Outcome{}
	}
	doc, err := svgtree.Load(g.fs, src.Path)
	if err != nil {
		var perr *svgtree.ParseError
		if errors.As(err, &perr) {
			g.diags.Errorf(diag.StructuralParseError, src.Path, "failed to parse source SVG: %s", perr.Err)
		} else {
			g.diags.Errorf(diag.SourceNotFound, src.Path, "failed to read source SVG: %s", err)
		}
		return svglayer.Outcome{}
	}

	svgtree.Stamp(doc, svgtree.Provenance{
		Source:    path.Join(filepath.Base(g.opts.SourceDir), filepath.Base(src.Path)),
		Generator: g.opts.Generator,
	})

	cls := svglayer.Classify(doc.Root, g.opts.Rules)
	for _, issue := range cls.Issues {
		g.diags.Warnf(issueKind(issue.Code), src.Path, "%s", issue)
	}
	base := svglayer.Prepare(doc, cls)
	g.logger.Debug("Source classified.", "source", src.Name,
		"optional", len(cls.Toggles()), "removed", len(cls.Removals()))

	outcome := base.Emit(src.Name, g.emit)
	for _, failure := range outcome.Failed {
		g.diags.Errorf(diag.SerializationFailure, failedFile(failure), "failed to write variation %s: %s", failure.Variation.Name, failure.Err)
		g.metrics.variations.WithLabelValues("failed").Inc()
	}
	g.metrics.variations.WithLabelValues("ok").Add(float64(outcome.Succeeded))
	return outcome
}

func issueKind(code svglayer.IssueCode) diag.Kind {
	switch code {
	case svglayer.IssueMissingID:
		return diag.LayerMissingIdentifier
	case svglayer.IssueNestedToggle:
		return diag.NestedOptionalLayer
	default:
		return diag.DuplicateIdentifier
	}
}

func failedFile(err *svglayer.VariationError) string {
	return failedPath(err, err.Variation.Name)
}

// failedPath returns the path of the file which could not be written
func failedPath(err error, fallback string) string {
	var werr *svgtree.WriteError
	if errors.As(err, &werr) {
		return werr.Path
	}
	return fallback
}

// emit writes the files of one variation. The variation fails only if
// its downloadable file can't be written; the displayable file and the
// thumbnail are reported on their own.
func (g *Generator) emit(v svglayer.Variation, doc *svgtree.Document) error {
	file := v.Name + ".svg"
	if err := svgtree.WriteFile(g.fs, filepath.Join(g.opts.DownloadableDir, file), doc); err != nil {
		return err
	}
	g.metrics.artifacts.WithLabelValues("downloadable").Inc()
	g.logger.Debug("Created downloadable.", "name", file)

	display := svgrecolor.Project(doc, g.opts.Palette)
	if err := svgtree.WriteFile(g.fs, filepath.Join(g.opts.DisplayableDir, file), display); err != nil {
		g.diags.Errorf(diag.SerializationFailure, failedPath(err, file), "failed to write web version of %s: %s", v.Name, err)
		return nil
	}
	g.metrics.artifacts.WithLabelValues("displayable").Inc()
	g.logger.Debug("Created displayable.", "name", file)

	if th := g.opts.Thumbnails; th != nil {
		thumb := filepath.Join(th.Dir, v.Name+".png")
		img, err := svgraster.RasterizeDocument(display, th.Options)
		if err == nil {
			err = svgraster.WritePNG(g.fs, thumb, img)
		}
		if err != nil {
			g.diags.Errorf(diag.SerializationFailure, thumb, "failed to write thumbnail: %s", err)
			return nil
		}
		g.metrics.artifacts.WithLabelValues("thumbnail").Inc()
	}
	return nil
}
