// Package dnsuri parses nameserver strings and DNS domain entries as found in
// connection profiles, e.g. "192.0.2.1", "dns+tls://[2001:db8::1]:853#dns.example"
// or "~corp.example".
package dnsuri

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"github.com/jmylchreest/dnsconfbridge/internal/model"
)

// Scheme is the transport used to reach a nameserver.
type Scheme int

const (
	SchemePlain Scheme = iota
	SchemeTLS
)

// String returns the URI scheme name.
func (s Scheme) String() string {
	if s == SchemeTLS {
		return "dns+tls"
	}
	return "dns+udp"
}

// Parse errors.
var (
	ErrEmpty             = errors.New("empty nameserver")
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInvalidPort       = errors.New("invalid port")
	ErrInvalidServerName = errors.New("invalid server name")
	ErrFamilyMismatch    = errors.New("address family mismatch")
)

// ServerAddress is a validated nameserver.
type ServerAddress struct {
	Family model.Family
	// Addr carries no zone; see Zone.
	Addr       netip.Addr
	Zone       string
	Port       uint16
	Scheme     Scheme
	ServerName string
}

// AddrBytes returns the raw address bytes, 4 for IPv4 and 16 for IPv6.
func (s ServerAddress) AddrBytes() []byte {
	if s.Family == model.FamilyIPv4 {
		b := s.Addr.As4()
		return b[:]
	}
	b := s.Addr.As16()
	return b[:]
}

// String formats the server back into URI form.
func (s ServerAddress) String() string {
	var b strings.Builder
	host := s.Addr.String()
	if s.Zone != "" {
		host += "%" + s.Zone
	}
	if s.Scheme == SchemeTLS || s.Port != 0 {
		b.WriteString(s.Scheme.String())
		b.WriteString("://")
		if s.Family == model.FamilyIPv6 {
			host = "[" + host + "]"
		}
	}
	b.WriteString(host)
	if s.Port != 0 {
		b.WriteString(":" + strconv.Itoa(int(s.Port)))
	}
	if s.ServerName != "" {
		b.WriteString("#" + s.ServerName)
	}
	return b.String()
}

// Parse validates a nameserver string. A family other than FamilyUnspec
// rejects addresses of the other family.
func Parse(family model.Family, s string) (ServerAddress, error) {
	var srv ServerAddress

	s = strings.TrimSpace(s)
	if s == "" {
		return srv, ErrEmpty
	}

	rest := s
	schemed := false
	if scheme, after, ok := strings.Cut(s, "://"); ok {
		switch strings.ToLower(scheme) {
		case "dns+udp":
			srv.Scheme = SchemePlain
		case "dns+tls":
			srv.Scheme = SchemeTLS
		default:
			return srv, fmt.Errorf("%w %q", ErrUnsupportedScheme, scheme)
		}
		rest = after
		schemed = true
	}

	if i := strings.LastIndexByte(rest, '#'); i >= 0 {
		name := rest[i+1:]
		if !validServerName(name) {
			return srv, fmt.Errorf("%w %q", ErrInvalidServerName, name)
		}
		srv.ServerName = name
		rest = rest[:i]
	}

	host, port, err := splitHostPort(rest, schemed)
	if err != nil {
		return srv, err
	}
	srv.Port = port

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return srv, fmt.Errorf("%w %q", ErrInvalidAddress, host)
	}
	srv.Zone = addr.Zone()
	srv.Addr = addr.WithZone("").Unmap()

	if !family.Matches(srv.Addr) {
		return srv, fmt.Errorf("%w: %s is not %s", ErrFamilyMismatch, srv.Addr, family)
	}
	srv.Family = model.FamilyOf(srv.Addr)

	return srv, nil
}

// splitHostPort separates an optional port. Bare IPv6 literals are only
// accepted without a port; bracketed ones may carry one.
func splitHostPort(s string, schemed bool) (string, uint16, error) {
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return "", 0, fmt.Errorf("%w %q", ErrInvalidAddress, s)
		}
		host, tail := s[1:end], s[end+1:]
		if tail == "" {
			return host, 0, nil
		}
		if !strings.HasPrefix(tail, ":") {
			return "", 0, fmt.Errorf("%w %q", ErrInvalidAddress, s)
		}
		port, err := parsePort(tail[1:])
		return host, port, err
	}

	if schemed && strings.Count(s, ":") == 1 {
		host, p, _ := strings.Cut(s, ":")
		port, err := parsePort(p)
		return host, port, err
	}
	return s, 0, nil
}

func parsePort(s string) (uint16, error) {
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil || p == 0 {
		return 0, fmt.Errorf("%w %q", ErrInvalidPort, s)
	}
	return uint16(p), nil
}

func validServerName(name string) bool {
	if name == "" {
		return false
	}
	_, ok := dns.IsDomainName(name)
	return ok
}

// RootDomain is the routing domain matching every name.
const RootDomain = "."

// ParseDomain strips the routing-only marker "~" from a domain entry.
// The root domain ("." or "~." or a bare "~") is always routing only.
// An empty entry yields an empty domain, which callers skip.
func ParseDomain(entry string) (domain string, routingOnly bool) {
	if entry == "" {
		return "", false
	}
	domain = entry
	if strings.HasPrefix(domain, "~") {
		domain = domain[1:]
		routingOnly = true
	}
	if domain == "" || domain == RootDomain {
		return RootDomain, true
	}
	return domain, routingOnly
}

// ValidDomain reports whether entry, with its marker stripped, is a
// syntactically valid domain name.
func ValidDomain(entry string) bool {
	domain, _ := ParseDomain(entry)
	switch domain {
	case "":
		return false
	case RootDomain:
		return true
	}
	_, ok := dns.IsDomainName(domain)
	return ok
}
