// Loads the generator settings from an optional HCL file.
//
// Every setting has a default reproducing the historical repository layout,
// so that running the tool without configuration file just works.
// Values may reference environment variables through the `env` object:
//
//	publish {
//	  bucket = env.ASSET_BUCKET
//	}
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/benoitkugler/svgvariants/svglayer"
	"github.com/benoitkugler/svgvariants/svgrecolor"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "svgvariants.hcl"

// Config holds every setting of a generation run.
type Config struct {
	SourceDir       string
	OrderFile       string // empty to disable the ordering file
	DownloadableDir string
	DisplayableDir  string
	ManifestPath    string
	MetricsFile     string // empty to disable
	Generator       string // name written in the provenance comment and the manifest

	Layers     Layers
	Palette    svgrecolor.Palette
	Thumbnails Thumbnails
	Publish    Publish
}

type Layers struct {
	TogglePrefix string
	RemovePrefix string
	MissingID    string // "keep" or "remove"
}

type Thumbnails struct {
	Enabled     bool
	Dir         string
	Width       int
	Supersample int
}

// Publish configures the upload of the generated files to an S3 bucket.
type Publish struct {
	Bucket    string
	Region    string
	Endpoint  string // custom endpoint, for S3 compatible stores
	Prefix    string // key prefix
	PathStyle bool
}

// Default returns the settings used without configuration file.
func Default() Config {
	return Config{
		SourceDir:       "source_templates",
		OrderFile:       "source_templates/order.json",
		DownloadableDir: "website/downloadables",
		DisplayableDir:  "website/displayables",
		ManifestPath:    "website/generated/config.json",
		Generator:       "svgvariants",
		Layers: Layers{
			TogglePrefix: svglayer.DefaultRules.TogglePrefix,
			RemovePrefix: svglayer.DefaultRules.RemovePrefix,
			MissingID:    svglayer.DefaultRules.MissingID.String(),
		},
		Palette: svgrecolor.DefaultPalette,
		Thumbnails: Thumbnails{
			Dir:         "website/thumbnails",
			Width:       256,
			Supersample: 2,
		},
		Publish: Publish{Region: "us-east-1"},
	}
}

// hclFile is the decoding target. Every attribute is optional:
// empty values keep the defaults.
type hclFile struct {
	SourceDir       string  `hcl:"source_dir,optional"`
	OrderFile       *string `hcl:"order_file,optional"` // "" disables it
	DownloadableDir string  `hcl:"downloadable_dir,optional"`
	DisplayableDir  string  `hcl:"displayable_dir,optional"`
	ManifestPath    string  `hcl:"manifest_path,optional"`
	MetricsFile     string  `hcl:"metrics_file,optional"`
	Generator       string  `hcl:"generator,optional"`

	Layers     *hclLayers     `hcl:"layers,block"`
	Palette    *hclPalette    `hcl:"palette,block"`
	Thumbnails *hclThumbnails `hcl:"thumbnails,block"`
	Publish    *hclPublish    `hcl:"publish,block"`
}

type hclLayers struct {
	TogglePrefix string `hcl:"toggle_prefix,optional"`
	RemovePrefix string `hcl:"remove_prefix,optional"`
	MissingID    string `hcl:"missing_id,optional"`
}

type hclPalette struct {
	Background     string `hcl:"background,optional"`
	Board          string `hcl:"board,optional"`
	Engrave        string `hcl:"engrave,optional"`
	StrokeWidth    string `hcl:"stroke_width,optional"`
	PageBackground string `hcl:"page_background,optional"`
	PageText       string `hcl:"page_text,optional"`
}

type hclThumbnails struct {
	Enabled     bool   `hcl:"enabled,optional"`
	Dir         string `hcl:"dir,optional"`
	Width       int    `hcl:"width,optional"`
	Supersample int    `hcl:"supersample,optional"`
}

type hclPublish struct {
	Bucket    string `hcl:"bucket,optional"`
	Region    string `hcl:"region,optional"`
	Endpoint  string `hcl:"endpoint,optional"`
	Prefix    string `hcl:"prefix,optional"`
	PathStyle bool   `hcl:"path_style,optional"`
}

func set[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

func (f hclFile) apply(c *Config) {
	set(&c.SourceDir, f.SourceDir)
	if f.OrderFile != nil {
		c.OrderFile = *f.OrderFile
	}
	set(&c.DownloadableDir, f.DownloadableDir)
	set(&c.DisplayableDir, f.DisplayableDir)
	set(&c.ManifestPath, f.ManifestPath)
	set(&c.MetricsFile, f.MetricsFile)
	set(&c.Generator, f.Generator)
	if l := f.Layers; l != nil {
		set(&c.Layers.TogglePrefix, l.TogglePrefix)
		set(&c.Layers.RemovePrefix, l.RemovePrefix)
		set(&c.Layers.MissingID, l.MissingID)
	}
	if p := f.Palette; p != nil {
		set(&c.Palette.Background, p.Background)
		set(&c.Palette.Board, p.Board)
		set(&c.Palette.Engrave, p.Engrave)
		set(&c.Palette.StrokeWidth, p.StrokeWidth)
		set(&c.Palette.PageBackground, p.PageBackground)
		set(&c.Palette.PageText, p.PageText)
	}
	if th := f.Thumbnails; th != nil {
		c.Thumbnails.Enabled = th.Enabled
		set(&c.Thumbnails.Dir, th.Dir)
		set(&c.Thumbnails.Width, th.Width)
		set(&c.Thumbnails.Supersample, th.Supersample)
	}
	if p := f.Publish; p != nil {
		set(&c.Publish.Bucket, p.Bucket)
		set(&c.Publish.Region, p.Region)
		set(&c.Publish.Endpoint, p.Endpoint)
		set(&c.Publish.Prefix, p.Prefix)
		c.Publish.PathStyle = p.PathStyle
	}
}

// Environ returns the process environment, as expected by Parse.
func Environ() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}

func evalContext(env map[string]string) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(env))
	for k, v := range env {
		vars[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{Variables: map[string]cty.Value{
		"env": cty.ObjectVal(vars),
	}}
}

// Parse decodes the HCL content `src` over the defaults.
// Paths are returned as written.
func Parse(src []byte, filename string, env map[string]string) (Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	var parsed hclFile
	diags = gohcl.DecodeBody(file.Body, evalContext(env), &parsed)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	c := Default()
	parsed.apply(&c)
	return c, nil
}

// Load reads and parses the given file, then resolves the relative paths
// against the directory of the file.
// If `optional` is true, a missing file is not an error and the defaults are returned.
func Load(fs billy.Basic, filename string, env map[string]string, optional bool) (Config, error) {
	src, err := util.ReadFile(fs, filename)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("reading configuration: %w", err)
	}
	c, err := Parse(src, filename, env)
	if err != nil {
		return Config{}, err
	}
	c.ResolvePaths(filepath.Dir(filename))
	return c, nil
}

// ResolvePaths makes the relative paths of `c` relative to `base` instead.
func (c *Config) ResolvePaths(base string) {
	if base == "" || base == "." {
		return
	}
	for _, p := range []*string{
		&c.SourceDir, &c.OrderFile, &c.DownloadableDir, &c.DisplayableDir,
		&c.ManifestPath, &c.MetricsFile, &c.Thumbnails.Dir,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// Rules returns the layer classification rules.
func (c Config) Rules() (svglayer.Rules, error) {
	policy, err := svglayer.ParseMissingIDPolicy(c.Layers.MissingID)
	if err != nil {
		return svglayer.Rules{}, err
	}
	rules := svglayer.Rules{
		TogglePrefix: c.Layers.TogglePrefix,
		RemovePrefix: c.Layers.RemovePrefix,
		MissingID:    policy,
	}
	return rules, rules.Validate()
}

// Validate checks the generation settings. The publish
// settings are checked by ValidatePublish.
func (c Config) Validate() error {
	var errs []error
	if c.SourceDir == "" {
		errs = append(errs, errors.New("source_dir must not be empty"))
	}
	if c.DownloadableDir == "" || c.DisplayableDir == "" {
		errs = append(errs, errors.New("output directories must not be empty"))
	}
	if c.ManifestPath == "" {
		errs = append(errs, errors.New("manifest_path must not be empty"))
	}
	if _, err := c.Rules(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Palette.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Thumbnails.Enabled {
		if c.Thumbnails.Dir == "" {
			errs = append(errs, errors.New("thumbnails: dir must not be empty"))
		}
		if c.Thumbnails.Width <= 0 || c.Thumbnails.Supersample < 0 {
			errs = append(errs, fmt.Errorf("thumbnails: invalid size (width %d, supersample %d)", c.Thumbnails.Width, c.Thumbnails.Supersample))
		}
	}
	return errors.Join(errs...)
}

// ValidatePublish checks the settings required to upload.
func (c Config) ValidatePublish() error {
	if c.Publish.Bucket == "" {
		return errors.New("publish: bucket must not be empty")
	}
	if c.Publish.Region == "" {
		return errors.New("publish: region must not be empty")
	}
	return nil
}
