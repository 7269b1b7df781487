package main

import (
	"github.com/go-git/go-billy/v5/util"
	"github.com/spf13/cobra"

	"github.com/benoitkugler/svgvariants/svgtree"
)

func (a *app) stripCommand() *cobra.Command {
	var inPlace bool
	cmd := &cobra.Command{
		Use:   "strip FILE...",
		Short: "Remove the generated file warning, to edit a variation as a new template",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, file := range args {
				file = a.env.abs(file)
				content, err := util.ReadFile(a.env.fs, file)
				if err != nil {
					return err
				}
				if !svgtree.HasProvenance(content) {
					a.logger.Warn("No generated file warning found.", "file", file)
				}
				content = svgtree.Strip(content)
				if !inPlace {
					if _, err := a.env.stdout.Write(content); err != nil {
						return err
					}
					continue
				}
				if err := util.WriteFile(a.env.fs, file, content, 0o644); err != nil {
					return err
				}
				a.logger.Info("Stripped file.", "file", file)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&inPlace, "in-place", "w", false, "Rewrite the files instead of printing them")
	return cmd
}
