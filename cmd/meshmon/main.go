package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/dnscache"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ymilki/paasta/internal/config"
	"github.com/ymilki/paasta/internal/envoy"
	"github.com/ymilki/paasta/internal/logging"
	"github.com/ymilki/paasta/internal/poller"
	"github.com/ymilki/paasta/internal/scheduler"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "meshmon",
	Short:   "meshmon - service-mesh backend discovery and correlation",
	Long:    `meshmon polls sidecar-proxy admin interfaces for live backends, strips casper-routed endpoints, and correlates the rest against scheduler tasks`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("meshmon %s\n", Version)
		fmt.Printf("  build time: %s\n", BuildTime)
		fmt.Printf("  git commit: %s\n", GitCommit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.AddCommand(versionCmd)
}

func runDaemon() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Component: "meshmon",
	})

	adminPort := cfg.AdminPort
	if adminPort == 0 {
		adminPort, err = envoy.DiscoverAdminPort()
		if err != nil {
			return fmt.Errorf("admin port not configured and discovery failed: %w", err)
		}
		log.Info().Int("port", adminPort).Msg("Discovered admin port from service database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver := newCachedResolver(ctx, cfg.DNSRefresh)

	var provider scheduler.TaskProvider
	if cfg.TasksFile != "" {
		fileProvider, err := scheduler.NewFileProvider(cfg.TasksFile)
		if err != nil {
			return err
		}
		defer fileProvider.Close()
		provider = fileProvider
	} else {
		log.Warn().Msg("No task inventory configured, every backend will report as taskless")
		provider = scheduler.StaticProvider{}
	}

	client := envoy.NewAdminClient(envoy.ClientConfig{
		URLFormat:      cfg.AdminURLFormat,
		Timeout:        cfg.FetchTimeout,
		ConnectRetries: cfg.ConnectRetries,
		UserAgent:      fmt.Sprintf("%s/%s", cfg.UserAgent, Version),
	})

	store := poller.NewStore()
	engine := poller.New(poller.Config{
		Hosts:       cfg.Hosts,
		AdminPort:   adminPort,
		Services:    cfg.Services,
		Interval:    cfg.PollInterval,
		Concurrency: cfg.Concurrency,
	}, client, resolver, provider, store)

	if cfg.MetricsAddr != "" {
		startOpsServer(ctx, cfg.MetricsAddr, store)
	}

	log.Info().
		Str("version", Version).
		Strs("hosts", cfg.Hosts).
		Int("admin_port", adminPort).
		Dur("interval", cfg.PollInterval).
		Msg("Starting meshmon")

	return engine.Run(ctx)
}

// newCachedResolver builds the shared DNS cache and refreshes it
// periodically so stale entries age out between sweeps.
func newCachedResolver(ctx context.Context, refresh time.Duration) *dnscache.Resolver {
	resolver := &dnscache.Resolver{}
	if refresh <= 0 {
		refresh = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				resolver.Refresh(true)
				log.Debug().Msg("DNS cache refreshed")
			case <-ctx.Done():
				return
			}
		}
	}()
	return resolver
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
