package netinfo

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/dnsconfbridge/internal/model"
)

func TestFill(t *testing.T) {
	lookup := StaticLookup{Links: []Link{
		{Index: 2, Name: "eth0", Connection: Connection{ID: "Wired", UUID: "5f1c", Object: "/org/freedesktop/NetworkManager/ActiveConnection/1"}},
		{Index: 3, Name: "wlan0"},
	}}

	snap := &model.Snapshot{Interfaces: []model.InterfaceConfig{
		{Family: model.FamilyIPv4, Ifindex: 2},
		{Family: model.FamilyIPv6, InterfaceName: "wlan0"},
		{Family: model.FamilyIPv4, Ifindex: 2, InterfaceName: "custom", ConnectionID: "Mine"},
		{Family: model.FamilyIPv4, Ifindex: 9},
	}}

	filled := Fill(snap, lookup)
	require.Len(t, filled.Interfaces, 4)

	assert.Equal(t, "eth0", filled.Interfaces[0].InterfaceName)
	assert.Equal(t, "Wired", filled.Interfaces[0].ConnectionID)
	assert.Equal(t, "5f1c", filled.Interfaces[0].ConnectionUUID)
	assert.Equal(t, "/org/freedesktop/NetworkManager/ActiveConnection/1", filled.Interfaces[0].ConnectionObject)

	assert.Equal(t, 3, filled.Interfaces[1].Ifindex)
	assert.Empty(t, filled.Interfaces[1].ConnectionID)

	assert.Equal(t, "custom", filled.Interfaces[2].InterfaceName, "present values are kept")
	assert.Equal(t, "Mine", filled.Interfaces[2].ConnectionID)
	assert.Equal(t, "5f1c", filled.Interfaces[2].ConnectionUUID)

	assert.Equal(t, model.InterfaceConfig{Family: model.FamilyIPv4, Ifindex: 9}, filled.Interfaces[3])

	// The input is not modified.
	assert.Empty(t, snap.Interfaces[0].InterfaceName)
	assert.Zero(t, snap.Interfaces[1].Ifindex)
}

func TestFill_Nil(t *testing.T) {
	assert.Nil(t, Fill(nil, SystemLookup{}))

	snap := &model.Snapshot{}
	assert.Same(t, snap, Fill(snap, nil))
}

func TestStaticLookup_Fallback(t *testing.T) {
	inner := StaticLookup{Links: []Link{{Index: 7, Name: "tun0", Connection: Connection{ID: "VPN"}}}}
	outer := StaticLookup{Links: []Link{{Index: 2, Name: "eth0"}}, Next: inner}

	name, ok := outer.LinkName(7)
	assert.True(t, ok)
	assert.Equal(t, "tun0", name)

	idx, ok := outer.LinkIndex("tun0")
	assert.True(t, ok)
	assert.Equal(t, 7, idx)

	conn, ok := outer.Connection(7)
	assert.True(t, ok)
	assert.Equal(t, "VPN", conn.ID)

	_, ok = outer.Connection(2)
	assert.False(t, ok)

	_, ok = StaticLookup{}.LinkName(1)
	assert.False(t, ok)
}

func TestSystemLookup(t *testing.T) {
	var l SystemLookup

	_, ok := l.LinkName(0)
	assert.False(t, ok)
	_, ok = l.LinkIndex("")
	assert.False(t, ok)
	_, ok = l.Connection(1)
	assert.False(t, ok)

	ifaces, err := net.Interfaces()
	if err != nil || len(ifaces) == 0 {
		t.Skip("no network interfaces available")
	}
	name, ok := l.LinkName(ifaces[0].Index)
	require.True(t, ok)
	assert.Equal(t, ifaces[0].Name, name)

	idx, ok := l.LinkIndex(ifaces[0].Name)
	require.True(t, ok)
	assert.Equal(t, ifaces[0].Index, idx)
}
