package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pushOpts struct {
	wait   time.Duration
	noWait bool
}

var pushCmd = &cobra.Command{
	Use:   "push [snapshot]",
	Short: "Send a snapshot to dnsconfd once",
	Long: `Build the Update arguments for a snapshot and send them to dnsconfd.

If dnsconfd is not on the bus yet, the update is held until it appears or
--wait expires. The exit status reflects dnsconfd's answer.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPush,
}

func init() {
	rootCmd.AddCommand(pushCmd)

	pushCmd.Flags().DurationVar(&pushOpts.wait, "wait", 30*time.Second,
		"How long to wait for dnsconfd to appear and answer")
	pushCmd.Flags().BoolVar(&pushOpts.noWait, "no-wait", false,
		"Do not wait for an answer; nothing is sent if dnsconfd is not on the bus")
}

func runPush(cmd *cobra.Command, args []string) error {
	src, err := snapshotSource(args)
	if err != nil {
		return err
	}

	sess := startSession(src)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		sess.shutdown(stopCtx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), pushOpts.wait)
	defer cancel()

	if err := sess.daemon.Push(ctx); err != nil {
		return err
	}
	if pushOpts.noWait {
		return nil
	}

	if err := sess.daemon.WaitDelivered(ctx); err != nil {
		return fmt.Errorf("update not applied: %w", err)
	}
	logger.Info("dnsconfd accepted the update")
	return nil
}
