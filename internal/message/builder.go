package message

import (
	"github.com/jmylchreest/dnsconfbridge/internal/dnsuri"
	"github.com/jmylchreest/dnsconfbridge/internal/model"
)

// Build turns a snapshot into an update. Global servers come first, followed
// by interface servers in snapshot order. Nameservers that do not parse are
// skipped.
func Build(snap *model.Snapshot) *UpdateMessage {
	msg := &UpdateMessage{ID: newID()}
	if snap == nil {
		return msg
	}

	if snap.Global != nil {
		msg.Records = append(msg.Records, globalRecords(snap.Global)...)
	}
	msg.Records = append(msg.Records, interfaceRecords(snap.Interfaces, snap.Global.CA())...)
	msg.ResolveMode = snap.Global.Mode()

	return msg
}

func globalRecords(policy *model.GlobalPolicy) []WireRecord {
	var records []WireRecord
	searches := nonEmpty(policy.Searches)

	for _, domain := range policy.Domains {
		if len(domain.Servers) == 0 {
			continue
		}
		routing := []string{domain.Name}
		if domain.Name == model.DefaultDomain {
			routing = []string{dnsuri.RootDomain}
		}

		for _, s := range domain.Servers {
			srv, err := dnsuri.Parse(model.FamilyUnspec, s)
			if err != nil {
				continue
			}
			records = append(records, newRecord(srv, routing, searches, policy.CertificateAuthority))
		}
	}
	return records
}

// defaultIsExplicit reports whether some interface lists "~." in its
// searches. Only searches are checked: DHCP cannot hand out a root domain,
// so it only appears when configured on purpose.
func defaultIsExplicit(ifaces []model.InterfaceConfig) bool {
	for _, iface := range ifaces {
		for _, entry := range iface.Searches {
			if domain, _ := dnsuri.ParseDomain(entry); domain == dnsuri.RootDomain {
				return true
			}
		}
	}
	return false
}

func interfaceRecords(ifaces []model.InterfaceConfig, ca string) []WireRecord {
	var records []WireRecord
	explicitDefault := defaultIsExplicit(ifaces)

	for _, iface := range ifaces {
		if len(iface.Nameservers) == 0 {
			continue
		}

		routing, search := interfaceDomains(iface, explicitDefault)
		networks := interfaceNetworks(iface)

		for _, s := range iface.Nameservers {
			srv, err := dnsuri.Parse(iface.Family, s)
			if err != nil {
				continue
			}
			r := newRecord(srv, routing, search, ca)
			r.Interface = iface.InterfaceName
			r.Networks = networks
			r.ConnectionID = iface.ConnectionID
			r.ConnectionUUID = iface.ConnectionUUID
			r.ConnectionObject = iface.ConnectionObject
			records = append(records, r)
		}
	}
	return records
}

// interfaceDomains returns the routing and search domains of an interface.
// Searches take precedence over domains.
func interfaceDomains(iface model.InterfaceConfig, explicitDefault bool) (routing, search []string) {
	entries := iface.Searches
	if len(entries) == 0 {
		entries = iface.Domains
	}

	for _, entry := range entries {
		domain, routingOnly := dnsuri.ParseDomain(entry)
		if domain == "" {
			continue
		}
		routing = append(routing, domain)
		if !routingOnly {
			search = append(search, domain)
		}
	}

	if !explicitDefault && iface.BestDefaultRoute {
		routing = append(routing, dnsuri.RootDomain)
	}
	return routing, search
}

func interfaceNetworks(iface model.InterfaceConfig) []string {
	var networks []string
	for _, route := range iface.Routes {
		if !route.Network.IsValid() || route.IsDefault() || route.Table == model.DNSRoutesTable {
			continue
		}
		if iface.Family != model.FamilyUnspec && model.FamilyOf(route.Network.Addr()) != iface.Family {
			continue
		}
		networks = append(networks, route.Network.Masked().String())
	}
	return networks
}

func nonEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
