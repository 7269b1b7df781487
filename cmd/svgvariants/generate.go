package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benoitkugler/svgvariants/diag"
	"github.com/benoitkugler/svgvariants/generate"
)

func (a *app) generateCommand() *cobra.Command {
	var (
		sourceDir, orderFile, downloadableDir string
		displayableDir, manifestPath          string
		metricsFile, missingID                string
		thumbnails                            bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate every variation, the displayable versions and the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			overrides := []struct {
				flag  string
				value string
				dst   *string
			}{
				{"source-dir", sourceDir, &cfg.SourceDir},
				{"order-file", orderFile, &cfg.OrderFile},
				{"downloadable-dir", downloadableDir, &cfg.DownloadableDir},
				{"displayable-dir", displayableDir, &cfg.DisplayableDir},
				{"manifest", manifestPath, &cfg.ManifestPath},
				{"metrics-file", metricsFile, &cfg.MetricsFile},
			}
			for _, o := range overrides {
				if cmd.Flags().Changed(o.flag) {
					*o.dst = a.env.abs(o.value)
				}
			}
			if cmd.Flags().Changed("missing-id") {
				cfg.Layers.MissingID = missingID
			}
			if cmd.Flags().Changed("thumbnails") {
				cfg.Thumbnails.Enabled = thumbnails
			}

			opts, err := generate.OptionsFromConfig(cfg)
			if err != nil {
				return usageError(fmt.Errorf("invalid configuration: %w", err))
			}
			report, err := generate.New(a.env.fs, opts, a.logger).Run(cmd.Context())
			if err != nil {
				return &ExitError{Code: 1, Message: err.Error()}
			}
			fmt.Fprintf(a.env.stdout, "Generated %d variation(s) from %d source(s).\n", report.Variations, len(report.Entries))
			if report.Failed {
				errs := 0
				for _, d := range report.Diagnostics {
					if d.Severity >= diag.Error {
						errs++
					}
				}
				return &ExitError{Code: 1, Message: fmt.Sprintf("generation finished with %d error(s)", errs)}
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&sourceDir, "source-dir", "", "Directory of the source templates")
	flags.StringVar(&orderFile, "order-file", "", "JSON list giving the processing order (empty to disable)")
	flags.StringVar(&downloadableDir, "downloadable-dir", "", "Output directory of the variations")
	flags.StringVar(&displayableDir, "displayable-dir", "", "Output directory of the recolored variations")
	flags.StringVar(&manifestPath, "manifest", "", "Path of the website manifest")
	flags.StringVar(&metricsFile, "metrics-file", "", "Write the run metrics to this file (Prometheus text format)")
	flags.StringVar(&missingID, "missing-id", "", "What to do with optional layers without id: keep or remove")
	flags.BoolVar(&thumbnails, "thumbnails", false, "Also render PNG thumbnails")
	return cmd
}
