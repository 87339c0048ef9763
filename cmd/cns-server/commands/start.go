package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/feelus/cns-server/internal/logger"
	"github.com/feelus/cns-server/internal/telemetry"
	"github.com/feelus/cns-server/pkg/config"
	"github.com/feelus/cns-server/pkg/metrics"
	promMetrics "github.com/feelus/cns-server/pkg/metrics/prometheus"
	"github.com/feelus/cns-server/pkg/server"
)

var startCmd = &cobra.Command{
	Use:   "start [ip] [port] [logfile] [log_level] [verbose_level]",
	Short: "Start the game server",
	Long: `Start the game server on the configured UDP address.

Positional arguments override the configuration file: bind IP, UDP
port, log file path, file log level and console verbosity (numeric,
0-5; higher is more verbose).

Examples:
  # Start with config file / defaults
  cns-server start

  # Start on a specific address
  cns-server start 0.0.0.0 10076

  # Start logging to a file at debug verbosity
  cns-server start 0.0.0.0 10076 /var/log/cns-server.log 4

  # Start with environment variable overrides
  CNS_LOGGING_LEVEL=DEBUG cns-server start`,
	Args: cobra.MaximumNArgs(5),
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := applyStartArgs(cfg, args); err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "cns-server",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	instanceID := uuid.NewString()
	logger.Info("starting cns-server",
		"version", Version,
		"instance", instanceID,
		"log_level", cfg.Logging.Level)
	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}

	var sm metrics.ServerMetrics
	var gm metrics.GameMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		metrics.SetBuildInfo(Version, Commit, instanceID)
		sm = promMetrics.NewServerMetrics()
		gm = promMetrics.NewGameMetrics()
		go serveMetrics(cfg.Metrics.Port)
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	}

	srv := server.New(cfg, sm, gm)

	// Reload the log level on config file changes while running.
	if path := effectiveConfigPath(); path != "" {
		go func() {
			err := config.Watch(ctx, path, func(next *config.Config) {
				logger.SetLevel(next.Logging.Level)
				logger.Info("configuration reloaded", "log_level", next.Logging.Level)
			}, func(err error) {
				logger.Warn("config reload failed, keeping previous settings", "error", err)
			})
			if err != nil {
				logger.Warn("config watch unavailable", "error", err)
			}
		}()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	go runConsole(srv, cancel)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received")
		cancel()
		if err := waitShutdown(serverDone, cfg.ShutdownTimeout); err != nil {
			return err
		}

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			return err
		}
	}

	return nil
}

// applyStartArgs folds the positional CLI arguments into the loaded
// configuration.
func applyStartArgs(cfg *config.Config, args []string) error {
	if len(args) > 0 {
		cfg.Server.BindIP = args[0]
	}
	if len(args) > 1 {
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", args[1], err)
		}
		cfg.Server.Port = port
	}
	if len(args) > 2 {
		cfg.Logging.Output = args[2]
	}
	if len(args) > 3 {
		level, ok := logger.ParseLevel(args[3])
		if !ok {
			return fmt.Errorf("invalid log level %q", args[3])
		}
		cfg.Logging.Level = level.String()
	}
	if len(args) > 4 {
		level, ok := logger.ParseLevel(args[4])
		if !ok {
			return fmt.Errorf("invalid verbose level %q", args[4])
		}
		// The more verbose of the two wins for the shared handler.
		if cur, _ := logger.ParseLevel(cfg.Logging.Level); level < cur {
			cfg.Logging.Level = level.String()
		}
	}

	return config.Validate(cfg)
}

// effectiveConfigPath resolves the file the running server actually
// loaded, if any.
func effectiveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return ""
}

func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed", "error", err)
	}
}

func waitShutdown(serverDone <-chan error, timeout time.Duration) error {
	select {
	case err := <-serverDone:
		if err != nil {
			logger.Error("server shutdown error", "error", err)
			return err
		}
		logger.Info("server stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("server did not stop within %s", timeout)
	}
}
