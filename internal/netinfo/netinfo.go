// Package netinfo completes interface metadata that a snapshot source left
// empty, such as the interface name for an ifindex.
package netinfo

import (
	"net"

	"github.com/jmylchreest/dnsconfbridge/internal/model"
)

// Connection identifies the connection profile active on an interface.
type Connection struct {
	ID     string `toml:"id" yaml:"id"`
	UUID   string `toml:"uuid" yaml:"uuid"`
	Object string `toml:"object" yaml:"object"`
}

// Lookup resolves interface metadata.
type Lookup interface {
	// LinkName returns the name of the link with the given index.
	LinkName(ifindex int) (string, bool)
	// LinkIndex returns the index of the named link.
	LinkIndex(name string) (int, bool)
	// Connection returns the connection active on the link.
	Connection(ifindex int) (Connection, bool)
}

// SystemLookup queries the kernel for link names. It knows nothing about
// connection profiles.
type SystemLookup struct{}

// LinkName implements Lookup.
func (SystemLookup) LinkName(ifindex int) (string, bool) {
	if ifindex <= 0 {
		return "", false
	}
	iface, err := net.InterfaceByIndex(ifindex)
	if err != nil {
		return "", false
	}
	return iface.Name, true
}

// LinkIndex implements Lookup.
func (SystemLookup) LinkIndex(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return 0, false
	}
	return iface.Index, true
}

// Connection implements Lookup.
func (SystemLookup) Connection(int) (Connection, bool) {
	return Connection{}, false
}

// Fill returns a copy of snap whose interfaces have missing names, indexes
// and connection fields completed from l. Values already present are kept.
func Fill(snap *model.Snapshot, l Lookup) *model.Snapshot {
	if snap == nil || l == nil {
		return snap
	}

	out := *snap
	out.Interfaces = make([]model.InterfaceConfig, len(snap.Interfaces))
	for i, iface := range snap.Interfaces {
		if iface.Ifindex == 0 {
			if idx, ok := l.LinkIndex(iface.InterfaceName); ok {
				iface.Ifindex = idx
			}
		}
		if iface.InterfaceName == "" {
			if name, ok := l.LinkName(iface.Ifindex); ok {
				iface.InterfaceName = name
			}
		}
		if conn, ok := l.Connection(iface.Ifindex); ok {
			iface.ConnectionID = firstNonEmpty(iface.ConnectionID, conn.ID)
			iface.ConnectionUUID = firstNonEmpty(iface.ConnectionUUID, conn.UUID)
			iface.ConnectionObject = firstNonEmpty(iface.ConnectionObject, conn.Object)
		}
		out.Interfaces[i] = iface
	}
	return &out
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
