package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/dnsconfbridge/internal/dnsuri"
	"github.com/jmylchreest/dnsconfbridge/internal/model"
)

// SnapshotFormat is the encoding of a snapshot file.
type SnapshotFormat string

const (
	FormatTOML SnapshotFormat = "toml"
	FormatYAML SnapshotFormat = "yaml"
)

// ErrUnknownFormat is returned for snapshot files with an unrecognised extension.
var ErrUnknownFormat = errors.New("unknown snapshot format")

// FormatFromPath picks the snapshot format from the file extension.
func FormatFromPath(path string) (SnapshotFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q (use .toml, .yaml or .yml)", ErrUnknownFormat, filepath.Ext(path))
	}
}

// LoadSnapshot reads and decodes the snapshot file at path.
func LoadSnapshot(path string) (*model.Snapshot, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	snap, err := ParseSnapshot(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	return snap, nil
}

// ParseSnapshot decodes a snapshot in the given format.
func ParseSnapshot(data []byte, format SnapshotFormat) (*model.Snapshot, error) {
	snap := &model.Snapshot{}
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, snap); err != nil {
			return nil, err
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, snap); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return snap, nil
}

// ValidateSnapshot reports every entry that the message builder would skip
// or that dnsconfd is likely to reject. The snapshot is still usable when
// an error is returned; the result is a *multierror.Error.
func ValidateSnapshot(snap *model.Snapshot) error {
	if snap == nil {
		return nil
	}
	merr := new(multierror.Error)

	if g := snap.Global; g != nil {
		for i, d := range g.Domains {
			if d.Name != model.DefaultDomain && !dnsuri.ValidDomain(d.Name) {
				merr = multierror.Append(merr, fmt.Errorf("global domain %d: invalid name %q", i, d.Name))
			}
			if len(d.Servers) == 0 {
				merr = multierror.Append(merr, fmt.Errorf("global domain %q: no servers", d.Name))
			}
			for _, s := range d.Servers {
				if _, err := dnsuri.Parse(model.FamilyUnspec, s); err != nil {
					merr = multierror.Append(merr, fmt.Errorf("global domain %q: %w", d.Name, err))
				}
			}
		}
		for _, s := range g.Searches {
			if !dnsuri.ValidDomain(s) {
				merr = multierror.Append(merr, fmt.Errorf("global search %q: invalid domain", s))
			}
		}
	}

	for i, iface := range snap.Interfaces {
		label := interfaceLabel(i, iface)
		if iface.Family == model.FamilyUnspec {
			merr = multierror.Append(merr, fmt.Errorf("%s: family not set", label))
		}
		for _, ns := range iface.Nameservers {
			if _, err := dnsuri.Parse(iface.Family, ns); err != nil {
				merr = multierror.Append(merr, fmt.Errorf("%s: %w", label, err))
			}
		}
		for _, d := range append(append([]string(nil), iface.Searches...), iface.Domains...) {
			if !dnsuri.ValidDomain(d) {
				merr = multierror.Append(merr, fmt.Errorf("%s: invalid domain %q", label, d))
			}
		}
		for _, r := range iface.Routes {
			if !r.Network.IsValid() {
				merr = multierror.Append(merr, fmt.Errorf("%s: route without network", label))
			}
		}
	}

	return merr.ErrorOrNil()
}

func interfaceLabel(i int, iface model.InterfaceConfig) string {
	if iface.InterfaceName != "" {
		return fmt.Sprintf("interface %s/%s", iface.InterfaceName, iface.Family)
	}
	return fmt.Sprintf("interface %d/%s", i, iface.Family)
}
