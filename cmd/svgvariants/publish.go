package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/benoitkugler/svgvariants/publish"
)

func (a *app) publishCommand() *cobra.Command {
	var bucket, prefix string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload the generated files to the configured S3 bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("bucket") {
				cfg.Publish.Bucket = bucket
			}
			if cmd.Flags().Changed("prefix") {
				cfg.Publish.Prefix = prefix
			}
			if err := cfg.ValidatePublish(); err != nil {
				return usageError(err)
			}

			ctx := cmd.Context()
			up, err := publish.New(ctx, publish.Config(cfg.Publish))
			if err != nil {
				return err
			}
			trees := []struct{ dir, tree string }{
				{cfg.DownloadableDir, "downloadables"},
				{cfg.DisplayableDir, "displayables"},
			}
			if cfg.Thumbnails.Enabled {
				trees = append(trees, struct{ dir, tree string }{cfg.Thumbnails.Dir, "thumbnails"})
			}
			total := 0
			for _, t := range trees {
				n, err := up.Sync(ctx, a.env.fs, t.dir, t.tree)
				total += n
				if err != nil {
					return err
				}
			}
			// the manifest goes last: the files it lists are already uploaded
			if err := up.PutFile(ctx, a.env.fs, cfg.ManifestPath, "generated/"+filepath.Base(cfg.ManifestPath)); err != nil {
				return err
			}
			total++
			fmt.Fprintf(a.env.stdout, "Uploaded %d file(s) to s3://%s/%s\n", total, cfg.Publish.Bucket, cfg.Publish.Prefix)
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "Override the configured bucket")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Override the configured key prefix")
	return cmd
}
