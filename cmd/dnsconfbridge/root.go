package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/dnsconfbridge/internal/adapter/input"
	"github.com/jmylchreest/dnsconfbridge/internal/config"
	"github.com/jmylchreest/dnsconfbridge/internal/daemon"
	"github.com/jmylchreest/dnsconfbridge/internal/dbus"
	"github.com/jmylchreest/dnsconfbridge/internal/loop"
	"github.com/jmylchreest/dnsconfbridge/internal/netinfo"
	"github.com/jmylchreest/dnsconfbridge/internal/plugin"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
		bus        string
	}
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dnsconfbridge",
	Short: "Push DNS configuration to dnsconfd over D-Bus",
	Long: `dnsconfbridge turns a DNS configuration snapshot (global policy plus
per-interface nameservers, domains and routes) into a
com.redhat.dnsconfd.Manager.Update call.

Updates are held back while dnsconfd is not on the bus and sent as soon as
it appears; a newer snapshot always supersedes an outstanding update.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if globalOpts.bus != "" {
			cfg.Bus.Type = globalOpts.bus
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/dnsconfbridge/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.bus, "bus", "",
		"Message bus to use: system or session (default from config)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelInfo
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// snapshotSource returns the source named on the command line, or the
// configured snapshot file.
func snapshotSource(args []string) (input.Source, error) {
	if len(args) > 0 {
		return input.NewSource(args[0])
	}
	return input.NewSource(cfg.Snapshot.Path)
}

// interfaceLookup returns the metadata lookup for snapshots. It falls back
// to the kernel's view when NetworkManager is disabled or unreachable.
func interfaceLookup() netinfo.Lookup {
	if !cfg.Netinfo.NetworkManager {
		return cfg.Lookup()
	}
	conn, err := godbus.SystemBus()
	if err != nil {
		logger.Warn("NetworkManager lookup unavailable", "error", err)
		return cfg.Lookup()
	}
	nm := netinfo.NewNetworkManagerLookup(conn)
	return cfg.LookupWith(nm)
}

// connector dials the configured bus. With the NetworkManager lookup on the
// system bus, the plugin shares that lookup's connection.
func connector(post dbus.Poster) dbus.Connector {
	if cfg.Netinfo.NetworkManager && cfg.BusType() == dbus.BusSystem {
		return dbus.NewSharedConnector(godbus.SystemBus, post, logger)
	}
	return dbus.NewConnector(cfg.BusType(), post, logger)
}

// session is a running event loop with the plugin attached.
type session struct {
	daemon *daemon.Daemon
	cancel context.CancelFunc
	done   <-chan struct{}
}

// startSession wires the plugin to the configured bus and starts the loop.
func startSession(src input.Source) *session {
	lp := loop.New(logger)
	p := plugin.New(plugin.Options{
		Connect:     connector(lp.Poster()),
		ServiceName: cfg.Dnsconfd.Service,
		CallTimeout: cfg.Dnsconfd.Timeout.Duration(),
		Logger:      logger,
	})
	d := daemon.New(daemon.Options{
		Loop:   lp,
		Plugin: p,
		Source: src,
		Lookup: interfaceLookup(),
		Logger: logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go lp.Run(ctx)

	return &session{daemon: d, cancel: cancel, done: lp.Done()}
}

// shutdown stops the plugin, then the loop.
func (s *session) shutdown(ctx context.Context) {
	if err := s.daemon.Stop(ctx); err != nil {
		logger.Debug("failed to stop plugin", "error", err)
	}
	s.cancel()
	<-s.done
}
