package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/metainfo/internal/config"
	"github.com/JaimeStill/metainfo/internal/nodes"
	"github.com/JaimeStill/metainfo/pkg/node"
	"github.com/JaimeStill/metainfo/pkg/sidecar"
)

func newNodesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "Print the signature of every registered node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.checkOutput(); err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := opts.logger(cmd)
			reg := node.NewRegistry(logger)
			err = nodes.Register(reg, nodes.Deps{
				Folders:         cfg.Paths.Resolver(),
				Sidecar:         sidecar.New(logger),
				CompressLevel:   cfg.Save.Level(),
				DisableMetadata: cfg.Save.DisableMetadata,
				Prefix:          cfg.Save.Prefix,
				DateFormat:      cfg.Save.DateFormat,
				Logger:          logger,
			})
			if err != nil {
				return err
			}

			return opts.writeJSON(cmd, reg.Specs())
		},
	}
}
