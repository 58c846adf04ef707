package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/dnsconfbridge/internal/adapter/input"
)

var watchOpts struct {
	debounce string
}

var watchCmd = &cobra.Command{
	Use:   "watch [snapshot]",
	Short: "Keep dnsconfd in sync with a snapshot file",
	Long: `Push the snapshot file, then push it again whenever it changes.

The update is re-sent automatically when dnsconfd restarts. SIGINT or
SIGTERM cancels any outstanding update and exits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchOpts.debounce, "debounce", "",
		"Quiet period after a change before pushing (default from config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	src, err := snapshotSource(args)
	if err != nil {
		return err
	}
	fs, ok := src.(*input.FileSource)
	if !ok {
		return errors.New("watch needs a snapshot file, not standard input")
	}

	debounce := cfg.Snapshot.Debounce
	if watchOpts.debounce != "" {
		if err := debounce.UnmarshalText([]byte(watchOpts.debounce)); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := startSession(fs)
	defer func() {
		sess.cancel()
		<-sess.done
	}()

	logger.Info("watching snapshot", "path", fs.Path(), "bus", cfg.Bus.Type)
	return sess.daemon.Watch(ctx, fs.Path(), debounce.Duration())
}
