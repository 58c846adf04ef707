// Package message builds the arguments of com.redhat.dnsconfd.Manager.Update.
package message

import (
	"crypto/rand"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/dnsconfbridge/internal/dnsuri"
	"github.com/jmylchreest/dnsconfbridge/internal/model"
)

// Keys recognised by dnsconfd in a server dictionary.
const (
	KeyAddress          = "address"
	KeyProtocol         = "protocol"
	KeyName             = "name"
	KeyRoutingDomains   = "routing_domains"
	KeySearchDomains    = "search_domains"
	KeyCA               = "ca"
	KeyConnectionID     = "connection-id"
	KeyConnectionUUID   = "connection-uuid"
	KeyConnectionObject = "connection-object"
	KeyInterface        = "interface"
	KeyNetworks         = "networks"
)

// ProtocolTLS is the protocol value for DNS over TLS servers.
const ProtocolTLS = "dns+tls"

// Signature is the D-Bus signature of the Update arguments.
const Signature = "(aa{sv}u)"

// WireRecord is one server entry of an update.
// Empty fields are left out of the dictionary.
type WireRecord struct {
	Server         dnsuri.ServerAddress `json:"-" yaml:"-"`
	Address        string               `json:"address" yaml:"address"`
	Protocol       string               `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Name           string               `json:"name,omitempty" yaml:"name,omitempty"`
	RoutingDomains []string             `json:"routing_domains,omitempty" yaml:"routing_domains,omitempty"`
	SearchDomains  []string             `json:"search_domains,omitempty" yaml:"search_domains,omitempty"`
	CA             string               `json:"ca,omitempty" yaml:"ca,omitempty"`

	// Set for interface servers only.
	ConnectionID     string   `json:"connection_id,omitempty" yaml:"connection_id,omitempty"`
	ConnectionUUID   string   `json:"connection_uuid,omitempty" yaml:"connection_uuid,omitempty"`
	ConnectionObject string   `json:"connection_object,omitempty" yaml:"connection_object,omitempty"`
	Interface        string   `json:"interface,omitempty" yaml:"interface,omitempty"`
	Networks         []string `json:"networks,omitempty" yaml:"networks,omitempty"`
}

func newRecord(srv dnsuri.ServerAddress, routing, search []string, ca string) WireRecord {
	r := WireRecord{
		Server:         srv,
		Address:        srv.Addr.String(),
		Name:           srv.ServerName,
		RoutingDomains: routing,
		SearchDomains:  search,
		CA:             ca,
	}
	if srv.Scheme == dnsuri.SchemeTLS {
		r.Protocol = ProtocolTLS
	}
	return r
}

// Dict renders the record as an a{sv} dictionary.
func (r WireRecord) Dict() map[string]dbus.Variant {
	d := map[string]dbus.Variant{
		KeyAddress: dbus.MakeVariant(r.Server.AddrBytes()),
	}
	putString(d, KeyProtocol, r.Protocol)
	putString(d, KeyName, r.Name)
	putStrings(d, KeyRoutingDomains, r.RoutingDomains)
	putStrings(d, KeySearchDomains, r.SearchDomains)
	putString(d, KeyCA, r.CA)
	putString(d, KeyConnectionID, r.ConnectionID)
	putString(d, KeyConnectionUUID, r.ConnectionUUID)
	putString(d, KeyConnectionObject, r.ConnectionObject)
	putString(d, KeyInterface, r.Interface)
	putStrings(d, KeyNetworks, r.Networks)
	return d
}

func putString(d map[string]dbus.Variant, key, value string) {
	if value != "" {
		d[key] = dbus.MakeVariant(value)
	}
}

func putStrings(d map[string]dbus.Variant, key string, values []string) {
	if len(values) > 0 {
		d[key] = dbus.MakeVariant(values)
	}
}

// UpdateMessage is the complete argument set of one Update call.
type UpdateMessage struct {
	// ID identifies the message in logs only.
	ID          string            `json:"id" yaml:"id"`
	Records     []WireRecord      `json:"servers" yaml:"servers"`
	ResolveMode model.ResolveMode `json:"resolve_mode" yaml:"resolve_mode"`
}

// Args returns the call body: the server list and the resolve mode.
func (m *UpdateMessage) Args() []any {
	servers := make([]map[string]dbus.Variant, 0, len(m.Records))
	for _, r := range m.Records {
		servers = append(servers, r.Dict())
	}
	return []any{servers, uint32(m.ResolveMode)}
}

// String prints the arguments in GVariant text format.
func (m *UpdateMessage) String() string {
	args := m.Args()
	return "(" + dbus.MakeVariant(args[0]).String() + ", " + dbus.MakeVariant(args[1]).String() + ")"
}

func newID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return ""
	}
	return id.String()
}
