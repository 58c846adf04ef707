package netinfo

// Link is a statically configured interface entry.
type Link struct {
	Index      int        `toml:"index" yaml:"index"`
	Name       string     `toml:"name" yaml:"name"`
	Connection Connection `toml:"connection" yaml:"connection"`
}

// StaticLookup answers from a fixed link table, falling back to Next for
// links it does not know.
type StaticLookup struct {
	Links []Link
	Next  Lookup
}

func (s StaticLookup) byIndex(ifindex int) (Link, bool) {
	for _, l := range s.Links {
		if l.Index == ifindex && ifindex > 0 {
			return l, true
		}
	}
	return Link{}, false
}

// LinkName implements Lookup.
func (s StaticLookup) LinkName(ifindex int) (string, bool) {
	if l, ok := s.byIndex(ifindex); ok && l.Name != "" {
		return l.Name, true
	}
	if s.Next != nil {
		return s.Next.LinkName(ifindex)
	}
	return "", false
}

// LinkIndex implements Lookup.
func (s StaticLookup) LinkIndex(name string) (int, bool) {
	for _, l := range s.Links {
		if l.Name == name && name != "" && l.Index > 0 {
			return l.Index, true
		}
	}
	if s.Next != nil {
		return s.Next.LinkIndex(name)
	}
	return 0, false
}

// Connection implements Lookup.
func (s StaticLookup) Connection(ifindex int) (Connection, bool) {
	if l, ok := s.byIndex(ifindex); ok && l.Connection != (Connection{}) {
		return l.Connection, true
	}
	if s.Next != nil {
		return s.Next.Connection(ifindex)
	}
	return Connection{}, false
}
