package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/metainfo/internal/config"
	"github.com/JaimeStill/metainfo/pkg/sidecar"
)

func newMetaCmd(opts *options) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "meta <filename>",
		Short: "Print the generation parameters recorded for an output image",
		Long: `Search the output tree top-down for the directory holding <filename> and
print the record stored for it in that directory's meta.json.

The tree defaults to the configured output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.checkOutput(); err != nil {
				return err
			}

			if root == "" {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				root = cfg.Paths.Output
			}

			filename := filepath.Base(args[0])
			store := sidecar.New(opts.logger(cmd))

			rec := store.Lookup(root, filename)
			if rec.IsZero() {
				return fmt.Errorf("no metadata recorded for %s under %s", filename, root)
			}
			return opts.writeJSON(cmd, rec)
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Output tree to search")
	return cmd
}
