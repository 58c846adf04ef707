package dbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// State is the reachability of the service as seen by a Locator.
type State int

const (
	// Disconnected means no bus connection is held.
	Disconnected State = iota
	// AwaitingOwner means the locator is connected and subscribed but does
	// not know an owner yet.
	AwaitingOwner
	// OwnerKnown means the service currently has an owner.
	OwnerKnown
)

// String returns a readable state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case AwaitingOwner:
		return "awaiting-owner"
	case OwnerKnown:
		return "owner-known"
	default:
		return "unknown"
	}
}

// OwnerChangedHandler is called whenever the cached owner changes.
// owner is empty when the service left the bus.
type OwnerChangedHandler func(owner string)

// Locator tracks the owner of a well-known bus name. It holds at most one
// NameOwnerChanged subscription and issues at most one owner lookup per
// connection. Once a signal has arrived the lookup reply is ignored, since
// it may have been computed earlier. All methods must be called from the
// event loop.
type Locator struct {
	name    string
	connect Connector
	logger  *slog.Logger

	bus          Bus
	owner        string
	unsubscribe  func()
	lookupCancel context.CancelFunc
	// signalled is set once a NameOwnerChanged signal has been handled on
	// this connection. Signals are at least as fresh as the lookup reply.
	signalled bool

	onOwnerChanged OwnerChangedHandler
}

// NewLocator creates a Locator for name using connect to obtain the bus.
func NewLocator(name string, connect Connector, logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{
		name:    name,
		connect: connect,
		logger:  logger,
	}
}

// SetOwnerChangedHandler sets the callback for owner changes.
func (l *Locator) SetOwnerChangedHandler(handler OwnerChangedHandler) {
	l.onOwnerChanged = handler
}

// State returns the current state.
func (l *Locator) State() State {
	switch {
	case l.bus == nil:
		return Disconnected
	case l.owner == "":
		return AwaitingOwner
	default:
		return OwnerKnown
	}
}

// Owner returns the cached unique name of the owner, or "".
func (l *Locator) Owner() string {
	return l.owner
}

// Bus returns the connection held by the locator, or nil.
func (l *Locator) Bus() Bus {
	return l.bus
}

// Subscribed reports whether the NameOwnerChanged subscription is active.
func (l *Locator) Subscribed() bool {
	return l.unsubscribe != nil
}

// EnsureConnected connects, subscribes and starts the owner lookup as needed,
// then returns the resulting state. It returns ErrNoTransport, wrapped, when
// no connection can be obtained.
func (l *Locator) EnsureConnected() (State, error) {
	if l.bus == nil {
		if l.connect == nil {
			return Disconnected, ErrNoTransport
		}
		bus, err := l.connect()
		if err != nil {
			if !errors.Is(err, ErrNoTransport) {
				err = fmt.Errorf("%w: %w", ErrNoTransport, err)
			}
			return Disconnected, err
		}
		if bus == nil {
			return Disconnected, ErrNoTransport
		}
		l.bus = bus
	}

	if l.owner != "" {
		return OwnerKnown, nil
	}

	if l.unsubscribe == nil {
		unsubscribe, err := l.bus.WatchNameOwner(l.name, l.ownerSignalled)
		if err != nil {
			// The lookup still discovers an owner that is already present.
			l.logger.Warn("failed to subscribe to name owner changes", "name", l.name, "error", err)
		} else {
			l.unsubscribe = unsubscribe
		}
	}

	if l.lookupCancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		l.lookupCancel = cancel
		l.bus.GetNameOwner(ctx, l.name, func(owner string, err error) {
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				l.logger.Debug("failed to look up name owner", "name", l.name, "error", err)
				return
			}
			if l.signalled {
				l.logger.Debug("ignoring stale name owner lookup", "name", l.name, "owner", owner)
				return
			}
			l.nameOwnerChanged(owner)
		})
	}

	return AwaitingOwner, nil
}

func (l *Locator) ownerSignalled(owner string) {
	if l.bus == nil {
		return
	}
	l.signalled = true
	l.nameOwnerChanged(owner)
}

func (l *Locator) nameOwnerChanged(owner string) {
	if l.bus == nil || owner == l.owner {
		return
	}
	l.owner = owner

	if owner == "" {
		l.logger.Debug("D-Bus name disappeared", "name", l.name)
	} else {
		l.logger.Debug("D-Bus name got owner", "name", l.name, "owner", owner)
	}

	if l.onOwnerChanged != nil {
		l.onOwnerChanged(owner)
	}
}

// Stop cancels the lookup, removes the subscription and releases the bus.
// It is safe to call in any state.
func (l *Locator) Stop() {
	if l.lookupCancel != nil {
		l.lookupCancel()
		l.lookupCancel = nil
	}
	if l.unsubscribe != nil {
		l.unsubscribe()
		l.unsubscribe = nil
	}
	if l.bus != nil {
		if err := l.bus.Close(); err != nil {
			l.logger.Debug("failed to close bus connection", "error", err)
		}
		l.bus = nil
	}
	l.owner = ""
	l.signalled = false
}
