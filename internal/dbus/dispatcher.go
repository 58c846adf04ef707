package dbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/dnsconfbridge/internal/message"
)

// DefaultCallTimeout bounds a single Update call.
const DefaultCallTimeout = 20 * time.Second

// Errors recorded for completed calls.
var (
	ErrUpdateRejected  = errors.New("dnsconfd rejected the update")
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// PendingChangedHandler is called when the pending state may have changed.
type PendingChangedHandler func(pending bool)

// inflight is the token of the outstanding call.
type inflight struct {
	cancel context.CancelFunc
	msgID  string
	start  time.Time
}

// Dispatcher owns the single outstanding Update call. All methods must be
// called from the event loop.
type Dispatcher struct {
	logger  *slog.Logger
	timeout time.Duration

	current *inflight
	lastErr error

	onPendingChanged PendingChangedHandler
}

// NewDispatcher creates a Dispatcher. A zero timeout selects DefaultCallTimeout.
func NewDispatcher(timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Dispatcher{
		logger:  logger,
		timeout: timeout,
	}
}

// SetPendingChangedHandler sets the callback for pending state changes.
func (d *Dispatcher) SetPendingChangedHandler(handler PendingChangedHandler) {
	d.onPendingChanged = handler
}

// IsPending reports whether an Update call is outstanding.
func (d *Dispatcher) IsPending() bool {
	return d.current != nil
}

// LastError returns the outcome of the most recently completed call: nil
// after a successful update or while a call is pending.
func (d *Dispatcher) LastError() error {
	return d.lastErr
}

// Send cancels the outstanding call, if any, and calls Update on owner
// with msg.
func (d *Dispatcher) Send(bus Bus, owner string, msg *message.UpdateMessage) {
	d.drop()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	call := &inflight{cancel: cancel, msgID: msg.ID, start: time.Now()}
	d.current = call
	d.lastErr = nil

	d.logger.Debug("sending dnsconfd update", "id", msg.ID, "owner", owner, "servers", len(msg.Records))
	bus.Call(ctx, owner, ObjectPath, UpdateMethod, msg.Args(), func(body []any, err error) {
		d.complete(call, body, err)
	})

	d.notifyPending()
}

func (d *Dispatcher) complete(call *inflight, body []any, err error) {
	if d.current != call {
		// Superseded or cancelled.
		return
	}
	call.cancel()
	d.current = nil

	logger := d.logger.With("id", call.msgID, "elapsed", time.Since(call.start).Round(time.Millisecond))
	if err != nil {
		logger.Warn("dnsconfd update failed", "error", err)
		d.lastErr = err
	} else {
		var (
			ok     bool
			status string
		)
		if storeErr := dbus.Store(body, &ok, &status); storeErr != nil {
			logger.Warn("dnsconfd update failed: unexpected reply", "error", storeErr)
			d.lastErr = fmt.Errorf("%w: %w", ErrUnexpectedReply, storeErr)
		} else if ok {
			logger.Debug("dnsconfd update successful", "status", status)
		} else {
			logger.Warn("dnsconfd update failed", "status", status)
			d.lastErr = fmt.Errorf("%w: %s", ErrUpdateRejected, status)
		}
	}

	d.notifyPending()
}

// Cancel drops the outstanding call without waiting for it.
func (d *Dispatcher) Cancel() {
	if d.drop() {
		d.notifyPending()
	}
}

func (d *Dispatcher) drop() bool {
	if d.current == nil {
		return false
	}
	d.current.cancel()
	d.current = nil
	return true
}

func (d *Dispatcher) notifyPending() {
	if d.onPendingChanged != nil {
		d.onPendingChanged(d.IsPending())
	}
}
