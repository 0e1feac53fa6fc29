package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/metainfo/internal/nodes"
	"github.com/JaimeStill/metainfo/pkg/pngtext"
	"github.com/JaimeStill/metainfo/pkg/workflow"
)

func newExtractCmd(opts *options) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "extract {filename | -}",
		Short: "Print the positive and negative prompts embedded in a PNG",
		Long: `Print the positive and negative prompts recovered from the workflow graph
stored in the "prompt" text chunk of a PNG file as JSON.

With --raw, every text chunk is printed instead, keyed by keyword.
If {filename} is "-", the image is read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.checkOutput(); err != nil {
				return err
			}

			chunks, err := readChunks(cmd, args[0])
			if err != nil {
				return err
			}

			if raw {
				return opts.writeJSON(cmd, chunks.Map())
			}

			graph, ok := chunks.Get(nodes.PromptKeyword)
			if !ok {
				opts.logger(cmd).Info("no workflow embedded", "file", args[0])
			}
			return opts.writeJSON(cmd, workflow.ExtractJSON([]byte(graph)))
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print every text chunk instead of the prompts")
	return cmd
}

func readChunks(cmd *cobra.Command, name string) (pngtext.Chunks, error) {
	var r io.Reader
	if name == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	chunks, err := pngtext.Read(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return chunks, nil
}
