// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/dnsconfbridge/internal/dbus"
	"github.com/jmylchreest/dnsconfbridge/internal/netinfo"
)

// Default configuration values.
const (
	DefaultBusType     = dbus.BusSystem
	DefaultCallTimeout = Duration(dbus.DefaultCallTimeout)
	DefaultDebounce    = Duration(250 * time.Millisecond)
	SnapshotFileName   = "snapshot.toml"
)

// Config represents the dnsconfbridge configuration.
type Config struct {
	Bus      BusConfig      `toml:"bus"`
	Dnsconfd DnsconfdConfig `toml:"dnsconfd"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Netinfo  NetinfoConfig  `toml:"netinfo"`
	// Links supplies interface names and connection profiles the snapshot
	// source does not provide.
	Links []netinfo.Link `toml:"links,omitempty"`
}

// BusConfig selects the message bus.
type BusConfig struct {
	Type string `toml:"type"` // system, session
}

// DnsconfdConfig holds settings for talking to dnsconfd.
type DnsconfdConfig struct {
	Service string   `toml:"service"` // Well-known bus name
	Timeout Duration `toml:"timeout"` // Per-call deadline
}

// SnapshotConfig locates the snapshot file.
type SnapshotConfig struct {
	Path     string   `toml:"path"`     // .toml, .yaml or .yml
	Debounce Duration `toml:"debounce"` // Quiet period before re-pushing in watch mode
}

// NetinfoConfig controls how missing interface metadata is completed.
type NetinfoConfig struct {
	// NetworkManager asks NetworkManager on the system bus for the
	// connection profile active on each link.
	NetworkManager bool `toml:"networkmanager"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Bus: BusConfig{
			Type: string(DefaultBusType),
		},
		Dnsconfd: DnsconfdConfig{
			Service: dbus.ServiceName,
			Timeout: DefaultCallTimeout,
		},
		Snapshot: SnapshotConfig{
			Path:     filepath.Join(configDir(), SnapshotFileName),
			Debounce: DefaultDebounce,
		},
	}
}

func configDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "dnsconfbridge")
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	dir := configDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.toml")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch dbus.BusType(c.Bus.Type) {
	case dbus.BusSystem, dbus.BusSession:
	default:
		return fmt.Errorf("invalid bus type %q, must be one of: %v", c.Bus.Type, ValidBusTypes())
	}
	if c.Dnsconfd.Service == "" {
		return errors.New("dnsconfd service name must not be empty")
	}
	if c.Dnsconfd.Timeout.Duration() <= 0 {
		return fmt.Errorf("dnsconfd timeout must be positive, got %s", c.Dnsconfd.Timeout.Duration())
	}
	if c.Snapshot.Debounce.Duration() < 0 {
		return fmt.Errorf("snapshot debounce must not be negative, got %s", c.Snapshot.Debounce.Duration())
	}
	return nil
}

// ValidBusTypes returns all valid bus type values.
func ValidBusTypes() []dbus.BusType {
	return []dbus.BusType{dbus.BusSystem, dbus.BusSession}
}

// Lookup returns the interface metadata lookup for this configuration.
// Configured links take precedence over the kernel's view.
func (c *Config) Lookup() netinfo.Lookup {
	return c.LookupWith(netinfo.SystemLookup{})
}

// LookupWith is Lookup with configured links consulted before next.
func (c *Config) LookupWith(next netinfo.Lookup) netinfo.Lookup {
	return netinfo.StaticLookup{Links: c.Links, Next: next}
}

// BusType returns the configured bus.
func (c *Config) BusType() dbus.BusType {
	return dbus.BusType(c.Bus.Type)
}
