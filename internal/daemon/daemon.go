package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/jmylchreest/dnsconfbridge/internal/adapter/input"
	"github.com/jmylchreest/dnsconfbridge/internal/config"
	"github.com/jmylchreest/dnsconfbridge/internal/dbus"
	"github.com/jmylchreest/dnsconfbridge/internal/loop"
	"github.com/jmylchreest/dnsconfbridge/internal/model"
	"github.com/jmylchreest/dnsconfbridge/internal/netinfo"
	"github.com/jmylchreest/dnsconfbridge/internal/plugin"
)

// Options configures a Daemon.
type Options struct {
	// Loop runs the plugin. Required.
	Loop *loop.Loop
	// Plugin receives the snapshots. Required; it must only be used
	// through Loop from now on.
	Plugin *plugin.Plugin
	// Source provides the snapshots. Required.
	Source input.Source
	// Lookup completes interface metadata. Optional.
	Lookup netinfo.Lookup
	Logger *slog.Logger
}

// Daemon pushes snapshots from a source to the plugin.
type Daemon struct {
	logger *slog.Logger
	loop   *loop.Loop
	plugin *plugin.Plugin
	source input.Source
	lookup netinfo.Lookup

	changed chan struct{}
}

// New creates a Daemon. It installs the plugin's pending-changed handler,
// so it must be called before the loop starts delivering plugin callbacks.
func New(opts Options) *Daemon {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Daemon{
		logger:  logger,
		loop:    opts.Loop,
		plugin:  opts.Plugin,
		source:  opts.Source,
		lookup:  opts.Lookup,
		changed: make(chan struct{}, 1),
	}
	d.plugin.SetPendingChangedHandler(d.signal)
	return d
}

func (d *Daemon) signal() {
	select {
	case d.changed <- struct{}{}:
	default:
	}
}

// Load reads a snapshot from the source, logs validation problems as
// warnings and completes missing interface metadata.
func (d *Daemon) Load(ctx context.Context) (*model.Snapshot, error) {
	return LoadSnapshot(ctx, d.source, d.lookup, d.logger)
}

// LoadSnapshot is Load without a Daemon, for callers that never talk to
// the bus. Validation problems never fail the load. lookup may be nil.
func LoadSnapshot(ctx context.Context, src input.Source, lookup netinfo.Lookup, logger *slog.Logger) (*model.Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	snap, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}

	if err := config.ValidateSnapshot(snap); err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				logger.Warn("snapshot problem", "source", src.Name(), "error", e)
			}
		} else {
			logger.Warn("snapshot problem", "source", src.Name(), "error", err)
		}
	}

	if lookup != nil {
		snap = netinfo.Fill(snap, lookup)
	}
	return snap, nil
}

// Push loads the current snapshot and hands it to the plugin.
func (d *Daemon) Push(ctx context.Context) error {
	snap, err := d.Load(ctx)
	if err != nil {
		return err
	}

	var updateErr error
	if err := d.loop.Invoke(ctx, func() {
		updateErr = d.plugin.Update(snap)
	}); err != nil {
		return fmt.Errorf("failed to reach event loop: %w", err)
	}
	return updateErr
}

// WaitDelivered blocks until the last pushed message has been answered by
// dnsconfd and returns the outcome. It keeps waiting while dnsconfd is not
// on the bus.
func (d *Daemon) WaitDelivered(ctx context.Context) error {
	for {
		var (
			done    bool
			lastErr error
			state   dbus.State
		)
		if err := d.loop.Invoke(ctx, func() {
			state = d.plugin.State()
			done = state == dbus.OwnerKnown && !d.plugin.IsUpdatePending()
			lastErr = d.plugin.LastError()
		}); err != nil {
			return fmt.Errorf("failed to reach event loop: %w", err)
		}
		if done {
			return lastErr
		}
		if state == dbus.Disconnected {
			return dbus.ErrNoTransport
		}

		select {
		case <-d.changed:
		case <-ctx.Done():
			if state == dbus.AwaitingOwner {
				return fmt.Errorf("dnsconfd did not appear on the bus: %w", ctx.Err())
			}
			return fmt.Errorf("waiting for dnsconfd: %w", ctx.Err())
		}
	}
}

// Watch pushes the current snapshot, then again whenever the file at path
// changes, until ctx is done. Push failures are logged and do not end the
// watch. The plugin is stopped before Watch returns.
func (d *Daemon) Watch(ctx context.Context, path string, debounce time.Duration) error {
	watcher := NewSnapshotWatcher(path, debounce, d.logger)
	watcher.SetChangeCallback(func() {
		d.push(ctx, "snapshot changed")
	})
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	defer watcher.Stop()

	d.push(ctx, "initial snapshot")

	<-ctx.Done()
	d.logger.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return d.Stop(stopCtx)
}

func (d *Daemon) push(ctx context.Context, reason string) {
	if err := d.Push(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		d.logger.Warn("failed to push snapshot", "reason", reason, "error", err)
		return
	}
	d.logger.Info("pushed snapshot", "reason", reason)
}

// Stop stops the plugin on the event loop.
func (d *Daemon) Stop(ctx context.Context) error {
	if err := d.loop.Invoke(ctx, d.plugin.Stop); err != nil && !errors.Is(err, loop.ErrStopped) {
		return err
	}
	return nil
}
