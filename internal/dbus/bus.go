package dbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	// ServiceName is the well-known bus name of dnsconfd.
	ServiceName = "com.redhat.dnsconfd"
	// ObjectPath is the dnsconfd manager object.
	ObjectPath = dbus.ObjectPath("/com/redhat/dnsconfd")
	// ManagerInterface is the dnsconfd manager interface.
	ManagerInterface = "com.redhat.dnsconfd.Manager"
	// UpdateMethod is the fully qualified Update method.
	UpdateMethod = ManagerInterface + ".Update"

	busInterface         = "org.freedesktop.DBus"
	busPath              = dbus.ObjectPath("/org/freedesktop/DBus")
	nameOwnerChanged     = "NameOwnerChanged"
	errNameHasNoOwner    = "org.freedesktop.DBus.Error.NameHasNoOwner"
	signalChannelBacklog = 16
)

// ErrNoTransport is returned when no bus connection can be obtained.
var ErrNoTransport = errors.New("no D-Bus connection available")

// Bus is the part of a bus connection the plugin needs. Completion callbacks
// and signal handlers are always run through the connection's poster, never
// concurrently with each other.
type Bus interface {
	// GetNameOwner resolves the unique name owning name. An unowned name
	// completes with an empty owner and no error.
	GetNameOwner(ctx context.Context, name string, done func(owner string, err error))
	// WatchNameOwner calls fn with the new owner whenever ownership of name
	// changes. The returned function removes the subscription.
	WatchNameOwner(name string, fn func(newOwner string)) (unsubscribe func(), err error)
	// Call invokes method on the object at path owned by dest.
	Call(ctx context.Context, dest string, path dbus.ObjectPath, method string, args []any, done func(body []any, err error))
	// Close releases the connection.
	Close() error
}

// Connector obtains a bus connection.
type Connector func() (Bus, error)

// Poster schedules fn on the event loop.
type Poster func(fn func())

// Conn adapts a godbus connection to Bus.
type Conn struct {
	conn   *dbus.Conn
	post   Poster
	logger *slog.Logger
	shared bool
}

// BusType selects the message bus to connect to.
type BusType string

const (
	BusSystem  BusType = "system"
	BusSession BusType = "session"
)

// NewConnector returns a Connector dialling a private connection to the
// given bus. Callbacks are delivered through post.
func NewConnector(busType BusType, post Poster, logger *slog.Logger) Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return func() (Bus, error) {
		var (
			conn *dbus.Conn
			err  error
		)
		switch busType {
		case BusSession:
			conn, err = dbus.ConnectSessionBus()
		default:
			conn, err = dbus.ConnectSystemBus()
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s bus: %w", ErrNoTransport, busType, err)
		}
		return NewConn(conn, post, logger), nil
	}
}

// NewConn wraps an established connection.
func NewConn(conn *dbus.Conn, post Poster, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{conn: conn, post: post, logger: logger}
}

// NewSharedConnector returns a Connector wrapping the connection returned by
// dial, such as godbus's process-wide SystemBus. Closing the Bus leaves that
// connection open for its other users.
func NewSharedConnector(dial func() (*dbus.Conn, error), post Poster, logger *slog.Logger) Connector {
	return func() (Bus, error) {
		conn, err := dial()
		if err != nil {
			return nil, fmt.Errorf("%w: shared bus: %w", ErrNoTransport, err)
		}
		return NewSharedConn(conn, post, logger), nil
	}
}

// NewSharedConn wraps a connection owned by someone else; Close leaves it open.
func NewSharedConn(conn *dbus.Conn, post Poster, logger *slog.Logger) *Conn {
	c := NewConn(conn, post, logger)
	c.shared = true
	return c
}

// GetNameOwner implements Bus.
func (c *Conn) GetNameOwner(ctx context.Context, name string, done func(string, error)) {
	call := c.conn.BusObject().GoWithContext(ctx, busInterface+".GetNameOwner", 0, make(chan *dbus.Call, 1), name)
	go func() {
		<-call.Done
		var owner string
		err := call.Err
		if err == nil {
			err = call.Store(&owner)
		} else if isNameHasNoOwner(err) {
			err = nil
		}
		c.post(func() { done(owner, err) })
	}()
}

func isNameHasNoOwner(err error) bool {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		return dbusErr.Name == errNameHasNoOwner
	}
	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) {
		return dbusErrPtr.Name == errNameHasNoOwner
	}
	return false
}

// WatchNameOwner implements Bus.
func (c *Conn) WatchNameOwner(name string, fn func(string)) (func(), error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchSender(busInterface),
		dbus.WithMatchObjectPath(busPath),
		dbus.WithMatchInterface(busInterface),
		dbus.WithMatchMember(nameOwnerChanged),
		dbus.WithMatchArg(0, name),
	}
	if err := c.conn.AddMatchSignal(opts...); err != nil {
		return nil, fmt.Errorf("failed to add NameOwnerChanged match: %w", err)
	}

	signals := make(chan *dbus.Signal, signalChannelBacklog)
	c.conn.Signal(signals)

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case sig, ok := <-signals:
				if !ok {
					return
				}
				newOwner, ok := parseNameOwnerChanged(sig, name)
				if !ok {
					continue
				}
				c.post(func() {
					select {
					case <-stop:
					default:
						fn(newOwner)
					}
				})
			case <-stop:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			c.conn.RemoveSignal(signals)
			if err := c.conn.RemoveMatchSignal(opts...); err != nil {
				c.logger.Debug("failed to remove NameOwnerChanged match", "error", err)
			}
		})
	}, nil
}

// parseNameOwnerChanged extracts the new owner of name from a
// NameOwnerChanged(sss) signal.
func parseNameOwnerChanged(sig *dbus.Signal, name string) (string, bool) {
	if sig == nil || sig.Name != busInterface+"."+nameOwnerChanged || len(sig.Body) != 3 {
		return "", false
	}
	var changed, oldOwner, newOwner string
	if err := dbus.Store(sig.Body, &changed, &oldOwner, &newOwner); err != nil {
		return "", false
	}
	if changed != name {
		return "", false
	}
	return newOwner, true
}

// Call implements Bus.
func (c *Conn) Call(ctx context.Context, dest string, path dbus.ObjectPath, method string, args []any, done func([]any, error)) {
	call := c.conn.Object(dest, path).GoWithContext(ctx, method, 0, make(chan *dbus.Call, 1), args...)
	go func() {
		<-call.Done
		body, err := call.Body, call.Err
		c.post(func() { done(body, err) })
	}()
}

// Close implements Bus.
func (c *Conn) Close() error {
	if c.shared {
		return nil
	}
	return c.conn.Close()
}
