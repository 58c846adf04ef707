package netinfo

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	nmService       = "org.freedesktop.NetworkManager"
	nmPath          = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	nmGetDevice     = nmService + ".GetDeviceByIpIface"
	nmActiveConnKey = nmService + ".Device.ActiveConnection"
	nmActiveIDKey   = nmService + ".Connection.Active.Id"
	nmActiveUUIDKey = nmService + ".Connection.Active.Uuid"
)

// nmObjects is the part of the bus NetworkManagerLookup reads from.
type nmObjects interface {
	DeviceByIface(iface string) (dbus.ObjectPath, error)
	Property(path dbus.ObjectPath, property string) (dbus.Variant, error)
}

type busObjects struct {
	conn *dbus.Conn
}

func (b busObjects) DeviceByIface(iface string) (dbus.ObjectPath, error) {
	var device dbus.ObjectPath
	err := b.conn.Object(nmService, nmPath).Call(nmGetDevice, 0, iface).Store(&device)
	return device, err
}

func (b busObjects) Property(path dbus.ObjectPath, property string) (dbus.Variant, error) {
	return b.conn.Object(nmService, path).GetProperty(property)
}

// NetworkManagerLookup asks NetworkManager for the connection profile active
// on a link. Link names come from Links, which defaults to SystemLookup.
type NetworkManagerLookup struct {
	objects nmObjects
	Links   Lookup
}

// NewNetworkManagerLookup queries NetworkManager over conn, usually the
// system bus.
func NewNetworkManagerLookup(conn *dbus.Conn) *NetworkManagerLookup {
	return &NetworkManagerLookup{objects: busObjects{conn: conn}, Links: SystemLookup{}}
}

func (n *NetworkManagerLookup) links() Lookup {
	if n.Links == nil {
		return SystemLookup{}
	}
	return n.Links
}

// LinkName implements Lookup.
func (n *NetworkManagerLookup) LinkName(ifindex int) (string, bool) {
	return n.links().LinkName(ifindex)
}

// LinkIndex implements Lookup.
func (n *NetworkManagerLookup) LinkIndex(name string) (int, bool) {
	return n.links().LinkIndex(name)
}

// Connection implements Lookup. Links without an active connection, and any
// bus error, report false.
func (n *NetworkManagerLookup) Connection(ifindex int) (Connection, bool) {
	name, ok := n.LinkName(ifindex)
	if !ok || n.objects == nil {
		return Connection{}, false
	}
	conn, err := n.activeConnection(name)
	if err != nil {
		return Connection{}, false
	}
	return conn, true
}

func (n *NetworkManagerLookup) activeConnection(iface string) (Connection, error) {
	device, err := n.objects.DeviceByIface(iface)
	if err != nil {
		return Connection{}, fmt.Errorf("failed to get device for %s: %w", iface, err)
	}

	v, err := n.objects.Property(device, nmActiveConnKey)
	if err != nil {
		return Connection{}, fmt.Errorf("failed to access %s:%s: %w", device, nmActiveConnKey, err)
	}
	active, ok := v.Value().(dbus.ObjectPath)
	if !ok {
		return Connection{}, fmt.Errorf("could not assert type of %s:%s", device, nmActiveConnKey)
	}
	if !active.IsValid() || active == "/" {
		return Connection{}, fmt.Errorf("no active connection on %s", iface)
	}

	id, err := n.stringProperty(active, nmActiveIDKey)
	if err != nil {
		return Connection{}, err
	}
	uuid, err := n.stringProperty(active, nmActiveUUIDKey)
	if err != nil {
		return Connection{}, err
	}
	return Connection{ID: id, UUID: uuid, Object: string(active)}, nil
}

func (n *NetworkManagerLookup) stringProperty(path dbus.ObjectPath, property string) (string, error) {
	v, err := n.objects.Property(path, property)
	if err != nil {
		return "", fmt.Errorf("failed to access %s:%s: %w", path, property, err)
	}
	s, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("could not assert type of %s:%s", path, property)
	}
	return s, nil
}
