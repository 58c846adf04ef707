// Package plugin implements the dnsconfd DNS plugin: it turns configuration
// snapshots into Update calls and defers them while dnsconfd is not on the bus.
package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/dnsconfbridge/internal/dbus"
	"github.com/jmylchreest/dnsconfbridge/internal/message"
	"github.com/jmylchreest/dnsconfbridge/internal/model"
)

// Name is the plugin name.
const Name = "dnsconfd"

// Options configures a Plugin.
type Options struct {
	// Connect obtains the bus connection. Required.
	Connect dbus.Connector
	// ServiceName defaults to dbus.ServiceName.
	ServiceName string
	// CallTimeout defaults to dbus.DefaultCallTimeout.
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// Plugin sends the latest configuration to dnsconfd. All methods must be
// called from the event loop that delivers the bus callbacks.
type Plugin struct {
	logger     *slog.Logger
	locator    *dbus.Locator
	dispatcher *dbus.Dispatcher

	latest *message.UpdateMessage

	onPendingChanged func()
}

// New creates a Plugin.
func New(opts Options) *Plugin {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("plugin", Name)

	service := opts.ServiceName
	if service == "" {
		service = dbus.ServiceName
	}

	p := &Plugin{
		logger:     logger,
		locator:    dbus.NewLocator(service, opts.Connect, logger),
		dispatcher: dbus.NewDispatcher(opts.CallTimeout, logger),
	}
	p.locator.SetOwnerChangedHandler(p.ownerChanged)
	p.dispatcher.SetPendingChangedHandler(func(bool) { p.pendingMaybeChanged() })
	return p
}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return Name
}

// IsCaching reports that dnsconfd runs a caching resolver.
func (p *Plugin) IsCaching() bool {
	return true
}

// SetPendingChangedHandler sets the callback invoked whenever the result of
// IsUpdatePending may have changed.
func (p *Plugin) SetPendingChangedHandler(handler func()) {
	p.onPendingChanged = handler
}

// Update builds the message for snap and sends it, or keeps it until
// dnsconfd appears on the bus. It fails only when no bus connection is
// available.
func (p *Plugin) Update(snap *model.Snapshot) error {
	msg := message.Build(snap)
	if p.logger.Enabled(context.Background(), slog.LevelDebug) {
		p.logger.Debug("built dnsconfd update", "id", msg.ID, "args", msg.String())
	}
	p.latest = msg

	state, err := p.locator.EnsureConnected()
	switch {
	case err != nil:
		return fmt.Errorf("cannot talk to dnsconfd: %w", err)
	case state == dbus.AwaitingOwner:
		p.logger.Debug("dnsconfd not on the bus yet, deferring update", "id", msg.ID)
		return nil
	}

	p.dispatcher.Send(p.locator.Bus(), p.locator.Owner(), msg)
	return nil
}

// Latest returns the most recently built message, or nil.
func (p *Plugin) Latest() *message.UpdateMessage {
	return p.latest
}

// State returns the reachability of dnsconfd.
func (p *Plugin) State() dbus.State {
	return p.locator.State()
}

func (p *Plugin) ownerChanged(owner string) {
	if owner != "" && p.latest != nil {
		p.dispatcher.Send(p.locator.Bus(), owner, p.latest)
	}
	p.pendingMaybeChanged()
}

// Stop cancels all outstanding work and releases the bus connection.
// It is safe to call repeatedly.
func (p *Plugin) Stop() {
	p.dispatcher.Cancel()
	p.locator.Stop()
}

// IsUpdatePending reports whether an Update call is in flight.
func (p *Plugin) IsUpdatePending() bool {
	return p.dispatcher.IsPending()
}

// LastError returns the outcome of the most recently completed Update call.
func (p *Plugin) LastError() error {
	return p.dispatcher.LastError()
}

func (p *Plugin) pendingMaybeChanged() {
	if p.onPendingChanged != nil {
		p.onPendingChanged()
	}
}
