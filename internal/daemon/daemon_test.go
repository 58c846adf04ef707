package daemon

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/dnsconfbridge/internal/adapter/input"
	"github.com/jmylchreest/dnsconfbridge/internal/dbus"
	"github.com/jmylchreest/dnsconfbridge/internal/dbus/dbustest"
	"github.com/jmylchreest/dnsconfbridge/internal/loop"
	"github.com/jmylchreest/dnsconfbridge/internal/netinfo"
	"github.com/jmylchreest/dnsconfbridge/internal/plugin"
)

const testSnapshot = `
interfaces:
  - family: ipv4
    ifindex: 2
    nameservers: [192.0.2.1, not-an-address]
    best_default_route: true
`

type harness struct {
	loop   *loop.Loop
	bus    *dbustest.Bus
	daemon *Daemon
}

func newHarness(t *testing.T, src input.Source) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	lp := loop.New(nil)
	bus := dbustest.New()
	p := plugin.New(plugin.Options{
		Connect: func() (dbus.Bus, error) { return bus, nil },
	})
	d := New(Options{
		Loop:   lp,
		Plugin: p,
		Source: src,
		Lookup: netinfo.StaticLookup{Links: []netinfo.Link{{Index: 2, Name: "eth0"}}},
	})
	go lp.Run(ctx)

	return &harness{loop: lp, bus: bus, daemon: d}
}

// onLoop runs fn on the event loop, like a bus callback would.
func (h *harness) onLoop(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, h.loop.Invoke(context.Background(), fn))
}

func stdin(s string) input.Source {
	return input.NewStdinSourceWithReader(strings.NewReader(s), "")
}

func TestDaemon_PushAndWait(t *testing.T) {
	h := newHarness(t, stdin(testSnapshot))
	ctx := context.Background()

	require.NoError(t, h.daemon.Push(ctx))

	waitErr := make(chan error, 1)
	go func() { waitErr <- h.daemon.WaitDelivered(ctx) }()

	var lookups []*dbustest.Lookup
	h.onLoop(t, func() { lookups = h.bus.Lookups })
	require.Len(t, lookups, 1)
	h.onLoop(t, func() { lookups[0].Complete(":1.9", nil) })

	var call *dbustest.Call
	h.onLoop(t, func() { call = h.bus.LastCall() })
	require.NotNil(t, call)
	assert.Equal(t, ":1.9", call.Dest)

	servers, ok := call.Args[0].([]map[string]godbus.Variant)
	require.True(t, ok)
	require.Len(t, servers, 1, "invalid nameserver skipped")
	assert.Equal(t, "eth0", servers[0]["interface"].Value(), "metadata completed from lookup")

	h.onLoop(t, func() { call.Reply(true, "ok") })

	select {
	case err := <-waitErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitDelivered did not return")
	}
}

func TestDaemon_WaitDeliveredRejected(t *testing.T) {
	h := newHarness(t, stdin(testSnapshot))
	ctx := context.Background()

	require.NoError(t, h.daemon.Push(ctx))
	h.onLoop(t, func() { h.bus.EmitOwnerChanged(dbus.ServiceName, ":1.2") })
	h.onLoop(t, func() { h.bus.LastCall().Reply(false, "invalid configuration") })

	err := h.daemon.WaitDelivered(ctx)
	assert.ErrorIs(t, err, dbus.ErrUpdateRejected)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestDaemon_WaitDeliveredTimeout(t *testing.T) {
	h := newHarness(t, stdin(testSnapshot))

	require.NoError(t, h.daemon.Push(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := h.daemon.WaitDelivered(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "did not appear on the bus")
}

func TestDaemon_PushWithoutTransport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lp := loop.New(nil)
	p := plugin.New(plugin.Options{
		Connect: func() (dbus.Bus, error) { return nil, errors.New("no bus socket") },
	})
	d := New(Options{Loop: lp, Plugin: p, Source: stdin(testSnapshot)})
	go lp.Run(ctx)

	err := d.Push(ctx)
	assert.ErrorIs(t, err, dbus.ErrNoTransport)
	assert.ErrorIs(t, d.WaitDelivered(ctx), dbus.ErrNoTransport)
}

func TestDaemon_PushSourceError(t *testing.T) {
	h := newHarness(t, input.NewFileSource(filepath.Join(t.TempDir(), "missing.toml")))

	err := h.daemon.Push(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
	h.onLoop(t, func() { assert.Empty(t, h.bus.Lookups) })
}

func TestDaemon_Stop(t *testing.T) {
	h := newHarness(t, stdin(testSnapshot))
	ctx := context.Background()

	require.NoError(t, h.daemon.Push(ctx))
	require.NoError(t, h.daemon.Stop(ctx))
	h.onLoop(t, func() {
		assert.True(t, h.bus.Closed)
		assert.Equal(t, 0, h.bus.Subscriptions())
	})
}

func TestDaemon_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSnapshot), 0644))

	h := newHarness(t, input.NewFileSource(path))

	ctx, cancel := context.WithCancel(context.Background())
	watchErr := make(chan error, 1)
	go func() { watchErr <- h.daemon.Watch(ctx, path, 10*time.Millisecond) }()

	lookups := func() int {
		n := 0
		_ = h.loop.Invoke(context.Background(), func() { n = len(h.bus.Lookups) })
		return n
	}
	require.Eventually(t, func() bool { return lookups() == 1 }, 5*time.Second, 10*time.Millisecond)

	h.onLoop(t, func() { h.bus.Lookups[0].Complete(":1.4", nil) })

	calls := func() int {
		n := 0
		_ = h.loop.Invoke(context.Background(), func() { n = len(h.bus.Calls) })
		return n
	}
	require.Eventually(t, func() bool { return calls() == 1 }, 5*time.Second, 10*time.Millisecond)

	updated := strings.Replace(testSnapshot, "192.0.2.1", "192.0.2.7", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0644))
	require.Eventually(t, func() bool { return calls() >= 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-watchErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return")
	}
	h.onLoop(t, func() { assert.True(t, h.bus.Closed) })
}

func TestLoadSnapshot_LogsProblems(t *testing.T) {
	var logs strings.Builder
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	snap, err := LoadSnapshot(context.Background(), stdin(testSnapshot), nil, logger)
	require.NoError(t, err)
	require.Len(t, snap.Interfaces, 1)
	assert.Empty(t, snap.Interfaces[0].InterfaceName, "no lookup, nothing filled")
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "not-an-address")
}
