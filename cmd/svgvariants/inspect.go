package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/benoitkugler/svgvariants/svglayer"
	"github.com/benoitkugler/svgvariants/svgtree"
)

func (a *app) inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Print how the layers of templates are classified",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			rules, err := cfg.Rules()
			if err != nil {
				return usageError(err)
			}
			for _, file := range args {
				doc, err := svgtree.Load(a.env.fs, a.env.abs(file))
				if err != nil {
					return err
				}
				a.printClassification(file, svglayer.Classify(doc.Root, rules))
			}
			return nil
		},
	}
}

func (a *app) printClassification(file string, cls svglayer.Classification) {
	out := a.env.stdout
	fmt.Fprintf(out, "%s: %d variation(s)\n", file, 1+len(cls.Toggles()))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, l := range cls.Layers {
		id := l.ID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", l.Class, id, l.Label)
	}
	tw.Flush()
	for _, issue := range cls.Issues {
		fmt.Fprintf(out, "  warning: %s\n", issue)
	}
}
