package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

// options are the flags shared by every subcommand.
type options struct {
	output  string
	force   bool
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "pnginfo",
		Short:         "Inspect generated images and their recorded parameters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "-", `Output file path. Use "-" for stdout`)
	root.PersistentFlags().BoolVar(&opts.force, "force", false, "Overwrite an existing output file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log diagnostics to stderr")

	root.AddCommand(
		newExtractCmd(opts),
		newMetaCmd(opts),
		newNodesCmd(opts),
	)

	return root
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// checkOutput fails before any work is done when the output file exists
// and --force is not set.
func (o *options) checkOutput() error {
	if o.output == "-" || o.force {
		return nil
	}
	if _, err := os.Stat(o.output); err == nil {
		return fmt.Errorf("output file %q exists, use --force to overwrite", o.output)
	}
	return nil
}

// write sends data to stdout or atomically replaces the output file.
func (o *options) write(cmd *cobra.Command, data []byte) error {
	if o.output == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := atomic.WriteFile(o.output, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", o.output, err)
	}
	return nil
}

func (o *options) writeJSON(cmd *cobra.Command, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return o.write(cmd, buf.Bytes())
}
