// Package model defines the configuration snapshot handed to the dnsconfd plugin.
package model

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// Family is an IP address family.
type Family int

const (
	// FamilyUnspec accepts either address family.
	FamilyUnspec Family = iota
	FamilyIPv4
	FamilyIPv6
)

// ErrInvalidFamily is returned when a family name cannot be parsed.
var ErrInvalidFamily = errors.New("family must be ipv4, ipv6 or unspec")

// String returns the configuration name of the family.
func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return "unspec"
	}
}

// Matches reports whether addr belongs to the family.
// FamilyUnspec matches every valid address.
func (f Family) Matches(addr netip.Addr) bool {
	switch f {
	case FamilyIPv4:
		return addr.Is4()
	case FamilyIPv6:
		return addr.Is6() && !addr.Is4In6()
	default:
		return addr.IsValid()
	}
}

// FamilyOf returns the family of addr.
func FamilyOf(addr netip.Addr) Family {
	if addr.Is4() || addr.Is4In6() {
		return FamilyIPv4
	}
	if addr.Is6() {
		return FamilyIPv6
	}
	return FamilyUnspec
}

// MarshalText implements encoding.TextMarshaler.
func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Family) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "ipv4", "inet", "4":
		*f = FamilyIPv4
	case "ipv6", "inet6", "6":
		*f = FamilyIPv6
	case "", "unspec":
		*f = FamilyUnspec
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFamily, text)
	}
	return nil
}

// ResolveMode controls how dnsconfd merges global and per-interface servers.
// The numeric values are part of the Update wire format.
type ResolveMode uint32

const (
	// ResolveModeBackup expresses no preference; interface servers are used
	// alongside the global ones.
	ResolveModeBackup ResolveMode = 0
	// ResolveModePrefer prefers global servers for domains they cover.
	ResolveModePrefer ResolveMode = 1
	// ResolveModeExclusive uses only the global servers.
	ResolveModeExclusive ResolveMode = 2
)

// ErrInvalidResolveMode is returned when a resolve mode name cannot be parsed.
var ErrInvalidResolveMode = errors.New("resolve mode must be backup, prefer or exclusive")

// String returns the configuration name of the mode.
func (m ResolveMode) String() string {
	switch m {
	case ResolveModeBackup:
		return "backup"
	case ResolveModePrefer:
		return "prefer"
	case ResolveModeExclusive:
		return "exclusive"
	default:
		return fmt.Sprintf("mode(%d)", uint32(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m ResolveMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ResolveMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "backup":
		*m = ResolveModeBackup
	case "prefer":
		*m = ResolveModePrefer
	case "exclusive":
		*m = ResolveModeExclusive
	default:
		return fmt.Errorf("%w: %q", ErrInvalidResolveMode, text)
	}
	return nil
}

// DefaultDomain is the name of the catch-all domain in a global policy.
const DefaultDomain = "*"

// GlobalDomain is one domain override of the global policy.
type GlobalDomain struct {
	Name    string   `toml:"name" yaml:"name" json:"name"`
	Servers []string `toml:"servers" yaml:"servers" json:"servers,omitempty"`
}

// GlobalPolicy overrides per-interface configuration system wide.
type GlobalPolicy struct {
	ResolveMode ResolveMode    `toml:"resolve_mode" yaml:"resolve_mode" json:"resolve_mode"`
	Domains     []GlobalDomain `toml:"domains" yaml:"domains" json:"domains,omitempty"`
	// Only one certificate authority is supported for all servers.
	CertificateAuthority string   `toml:"certification_authority" yaml:"certification_authority" json:"certification_authority,omitempty"`
	Searches             []string `toml:"searches" yaml:"searches" json:"searches,omitempty"`
}

// CA returns the certificate authority, or "" when none is configured.
// It is safe to call on a nil policy.
func (p *GlobalPolicy) CA() string {
	if p == nil {
		return ""
	}
	return p.CertificateAuthority
}

// Mode returns the resolve mode, or ResolveModeBackup for a nil policy.
func (p *GlobalPolicy) Mode() ResolveMode {
	if p == nil {
		return ResolveModeBackup
	}
	return p.ResolveMode
}

// DNSRoutesTable is the routing table holding DNS policy-routing fallback
// routes. Routes in it describe how to reach the servers, not what they serve.
const DNSRoutesTable = 20053

// Route is a route advertised on an interface.
type Route struct {
	Network netip.Prefix `toml:"network" yaml:"network" json:"network"`
	Table   uint32       `toml:"table" yaml:"table" json:"table,omitempty"`
}

// IsDefault reports whether the route is a default route.
func (r Route) IsDefault() bool {
	return r.Network.IsValid() && r.Network.Bits() == 0
}

// InterfaceConfig is the DNS configuration of one interface for one family.
type InterfaceConfig struct {
	Family  Family `toml:"family" yaml:"family" json:"family"`
	Ifindex int    `toml:"ifindex" yaml:"ifindex" json:"ifindex,omitempty"`

	Nameservers []string `toml:"nameservers" yaml:"nameservers" json:"nameservers,omitempty"`
	Searches    []string `toml:"searches" yaml:"searches" json:"searches,omitempty"`
	Domains     []string `toml:"domains" yaml:"domains" json:"domains,omitempty"`

	// BestDefaultRoute is set when the interface has the best default route
	// of its family.
	BestDefaultRoute bool    `toml:"best_default_route" yaml:"best_default_route" json:"best_default_route,omitempty"`
	Routes           []Route `toml:"routes" yaml:"routes" json:"routes,omitempty"`

	InterfaceName    string `toml:"interface" yaml:"interface" json:"interface,omitempty"`
	ConnectionID     string `toml:"connection_id" yaml:"connection_id" json:"connection_id,omitempty"`
	ConnectionUUID   string `toml:"connection_uuid" yaml:"connection_uuid" json:"connection_uuid,omitempty"`
	ConnectionObject string `toml:"connection_object" yaml:"connection_object" json:"connection_object,omitempty"`
}

// Snapshot is the input of one update cycle.
type Snapshot struct {
	Global     *GlobalPolicy     `toml:"global" yaml:"global" json:"global,omitempty"`
	Interfaces []InterfaceConfig `toml:"interfaces" yaml:"interfaces" json:"interfaces,omitempty"`
}
