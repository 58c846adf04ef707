package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/dnsconfbridge/internal/adapter/input"
	"github.com/jmylchreest/dnsconfbridge/internal/adapter/output"
	"github.com/jmylchreest/dnsconfbridge/internal/daemon"
	"github.com/jmylchreest/dnsconfbridge/internal/message"
)

var showOpts struct {
	format   string
	template string
	noIndex  bool
}

var showCmd = &cobra.Command{
	Use:   "show [snapshot]",
	Short: "Print the update that would be sent to dnsconfd",
	Long: `Build the Update arguments for a snapshot and print them without
touching the bus.

The snapshot is read from the given file (.toml, .yaml or .yml), from
standard input when the argument is "-", or from the configured path.

Formats:
  plain     one block per server (default)
  gvariant  the call arguments as busctl/gdbus would print them
  servers   server URIs only, one per line
  json      JSON object
  yaml      YAML document`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().StringVarP(&showOpts.format, "format", "f", string(output.FormatPlain),
		fmt.Sprintf("Output format %v", output.ValidFormats()))
	showCmd.Flags().StringVar(&showOpts.template, "template", "",
		"Go template applied to each server in plain format")
	showCmd.Flags().BoolVar(&showOpts.noIndex, "no-index", false,
		"Omit server indexes in plain format")
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	src, err := snapshotSource(args)
	if err != nil {
		return err
	}

	snap, err := daemon.LoadSnapshot(ctx, src, interfaceLookup(), logger)
	if err != nil {
		return err
	}
	msg := message.Build(snap)

	format := output.FormatType(showOpts.format)
	if format == output.FormatPlain && showOpts.template == "" {
		if fs, ok := src.(*input.FileSource); ok {
			if mtime, err := fs.ModTime(); err == nil {
				fmt.Fprintf(os.Stdout, "snapshot: %s (modified %s)\n", fs.Path(), humanize.Time(mtime))
			}
		}
	}

	opts := output.DefaultFormatterOptions()
	opts.Template = showOpts.template
	opts.ShowIndex = !showOpts.noIndex
	return output.NewFormatter(format, opts).Format(os.Stdout, msg)
}
