package main

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/spf13/cobra"

	"github.com/benoitkugler/svgvariants/config"
	"github.com/benoitkugler/svgvariants/logging"
)

// environment is what the commands need from the process.
type environment struct {
	fs     billy.Filesystem // paths are made absolute before use
	wd     string           // absolute working directory
	vars   map[string]string
	stdout io.Writer
	stderr io.Writer
}

// abs resolves `p` against the working directory.
func (env environment) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(env.wd, p)
}

// app holds the global flags, shared by every command.
type app struct {
	env        environment
	configFile string
	logLevel   string
	logFormat  string
	logger     *slog.Logger
}

func newRootCommand(env environment) *cobra.Command {
	a := &app{env: env}
	root := &cobra.Command{
		Use:           "svgvariants",
		Short:         "Generate the variations of Inkscape templates for the website",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(a.logLevel, a.logFormat, env.stderr)
			if err != nil {
				return usageError(err)
			}
			a.logger = logger
			cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
			return nil
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError(err) })

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "Configuration file (default "+config.DefaultFile+" if present)")
	flags.StringVar(&a.logLevel, "log-level", "info", "Logging level: debug, info, warn or error")
	flags.StringVar(&a.logFormat, "log-format", logging.FormatText, "Log output format: text, json or github")

	root.AddCommand(
		a.generateCommand(),
		a.inspectCommand(),
		a.stripCommand(),
		a.publishCommand(),
	)
	return root
}

// loadConfig reads the configuration file given by --config,
// or the default one if it exists. Relative paths are made absolute.
func (a *app) loadConfig() (config.Config, error) {
	file, optional := a.configFile, false
	if file == "" {
		file, optional = config.DefaultFile, true
	}
	cfg, err := config.Load(a.env.fs, a.env.abs(file), a.env.vars, optional)
	if err != nil {
		return config.Config{}, err
	}
	cfg.ResolvePaths(a.env.wd)
	return cfg, nil
}
