// Package main implements the Device Control Container entry point.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/device-control/dcc/internal/announce"
	"github.com/device-control/dcc/internal/api"
	"github.com/device-control/dcc/internal/audit"
	"github.com/device-control/dcc/internal/behavior"
	"github.com/device-control/dcc/internal/config"
	"github.com/device-control/dcc/internal/coordinate"
	"github.com/device-control/dcc/internal/firmware"
	"github.com/device-control/dcc/internal/gpio"
	"github.com/device-control/dcc/internal/logging"
	"github.com/device-control/dcc/internal/registry"
	"github.com/device-control/dcc/internal/telemetry"
	"github.com/device-control/dcc/internal/update"
)

// Version is injected at build time via -ldflags.
var Version = "1.0.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "dcc",
		Short: "Device Control Container - actuator control and OTA update service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, cmd.Flags())
		},
		SilenceUsage: true,
	}

	f := rootCmd.Flags()
	f.StringVarP(&configPath, "config", "f", "", "Path to YAML config file")
	f.String("addr", "", "HTTP listen address (overrides config)")
	f.String("data-dir", "", "Firmware slot directory (overrides config)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string, flags *pflag.FlagSet) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if addr, _ := flags.GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if dataDir, _ := flags.GetString("data-dir"); dataDir != "" {
		cfg.Update.DataDir = dataDir
	}

	log := logging.New(cfg.Logging)
	defer func() { _ = log.Sync() }()
	log.Info("Starting Device Control Container", zap.String("version", Version))

	hub := telemetry.NewHub()
	defer hub.Close()

	auditLogger, err := audit.NewLogger(cfg.Logging.AuditDir)
	if err != nil {
		return fmt.Errorf("failed to initialize audit logger: %w", err)
	}
	defer auditLogger.Close()

	reg := registry.New(cfg.Behavior, cfg.Device.LedPin)

	var driver gpio.Driver
	driver, err = gpio.NewChardevDriver(cfg.Device.Chip)
	if err != nil {
		// Keep the control and update paths alive without hardware.
		log.Warn("GPIO unavailable, continuing with no-op output", zap.Error(err))
		driver = gpio.NewFake()
	}
	defer driver.Close()

	coord := coordinate.New(cfg.Timing.PollInterval, cfg.Timing.StopWaitCap)

	store, err := firmware.Open(cfg.Update.DataDir, cfg.Update.SlotCapacityBytes)
	if err != nil {
		return fmt.Errorf("failed to open firmware slot store: %w", err)
	}
	log.Info("Firmware slot store opened",
		zap.String("dir", cfg.Update.DataDir),
		zap.String("activeSlot", store.ActiveSlot().Name))

	restarter := update.NewExecRestarter(cfg.Update.RebootCommand, log)
	updater := update.NewUpdater(coord, store, restarter, cfg.Timing.SettleDelay, hub, auditLogger, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := behavior.NewRunner(driver, reg, coord, cfg.Timing.PollInterval, log)
	go runner.Run(ctx)
	log.Info("Behavior task started", zap.Int("ledPin", cfg.Device.LedPin))

	server := api.NewServer(updater, reg, hub, auditLogger, cfg.Server.ReadTimeout, cfg.Server.IdleTimeout, log)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Addr); err != nil {
			serverErr <- err
		}
	}()
	log.Info("HTTP control server started", zap.String("addr", cfg.Server.Addr))

	if mdns, err := announce.StartMDNS(cfg.Announce.Hostname, listenPort(cfg.Server.Addr), log); err != nil {
		log.Warn("mDNS advertisement unavailable", zap.Error(err))
	} else {
		defer mdns.Stop()
	}

	if cfg.Announce.MQTT.Broker != "" {
		publisher, err := announce.StartStatusPublisher(cfg.Announce.MQTT, cfg.Announce.Hostname, log)
		if err != nil {
			log.Warn("MQTT status publisher unavailable", zap.Error(err))
		} else {
			publisher.PublishState(map[string]interface{}{
				"version":    Version,
				"activeSlot": store.ActiveSlot().Name,
				"sequence":   store.ActiveSlot().Sequence,
			})
			defer publisher.Close()
		}
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case sig := <-shutdown:
		log.Info("Shutting down", zap.String("signal", sig.String()))
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Timing.ShutdownGrace)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return err
	}

	log.Info("Shutdown complete")
	return nil
}

// listenPort extracts the numeric port from a listen address,
// defaulting to 80.
func listenPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 80
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 80
	}
	return port
}
