// Package dbustest provides an in-memory Bus for tests. Callbacks only run
// when the test completes the corresponding operation, which mimics delivery
// on a single event loop.
package dbustest

import (
	"context"
	"errors"

	godbus "github.com/godbus/dbus/v5"
)

// Lookup is an outstanding GetNameOwner call.
type Lookup struct {
	Ctx  context.Context
	Name string
	done func(string, error)
}

// Complete delivers the lookup result.
func (l *Lookup) Complete(owner string, err error) {
	l.done(owner, err)
}

// Call is an outstanding method call.
type Call struct {
	Ctx    context.Context
	Dest   string
	Path   godbus.ObjectPath
	Method string
	Args   []any
	done   func([]any, error)
}

// Reply completes the call with a (bs) body.
func (c *Call) Reply(ok bool, status string) {
	c.done([]any{ok, status}, nil)
}

// Fail completes the call with an error.
func (c *Call) Fail(err error) {
	c.done(nil, err)
}

// ReplyBody completes the call with an arbitrary body.
func (c *Call) ReplyBody(body ...any) {
	c.done(body, nil)
}

type watch struct {
	name   string
	fn     func(string)
	active bool
}

// Bus records every operation issued on it.
type Bus struct {
	Lookups []*Lookup
	Calls   []*Call
	Closed  bool

	// WatchErr makes WatchNameOwner fail.
	WatchErr error

	watches []*watch
}

// New returns an empty fake bus.
func New() *Bus {
	return &Bus{}
}

// GetNameOwner records the lookup.
func (b *Bus) GetNameOwner(ctx context.Context, name string, done func(string, error)) {
	b.Lookups = append(b.Lookups, &Lookup{Ctx: ctx, Name: name, done: done})
}

// WatchNameOwner records the subscription.
func (b *Bus) WatchNameOwner(name string, fn func(string)) (func(), error) {
	if b.WatchErr != nil {
		return nil, b.WatchErr
	}
	w := &watch{name: name, fn: fn, active: true}
	b.watches = append(b.watches, w)
	return func() { w.active = false }, nil
}

// Call records the method call.
func (b *Bus) Call(ctx context.Context, dest string, path godbus.ObjectPath, method string, args []any, done func([]any, error)) {
	b.Calls = append(b.Calls, &Call{Ctx: ctx, Dest: dest, Path: path, Method: method, Args: args, done: done})
}

// Close marks the bus closed.
func (b *Bus) Close() error {
	b.Closed = true
	return nil
}

// Subscriptions returns the number of active subscriptions.
func (b *Bus) Subscriptions() int {
	n := 0
	for _, w := range b.watches {
		if w.active {
			n++
		}
	}
	return n
}

// Watches returns the number of subscriptions ever made.
func (b *Bus) Watches() int {
	return len(b.watches)
}

// EmitOwnerChanged delivers a NameOwnerChanged signal to active subscriptions.
func (b *Bus) EmitOwnerChanged(name, newOwner string) {
	for _, w := range b.watches {
		if w.active && w.name == name {
			w.fn(newOwner)
		}
	}
}

// LastCall returns the most recent call, or nil.
func (b *Bus) LastCall() *Call {
	if len(b.Calls) == 0 {
		return nil
	}
	return b.Calls[len(b.Calls)-1]
}

// ErrUnavailable is a convenient connect failure.
var ErrUnavailable = errors.New("bus unavailable")
