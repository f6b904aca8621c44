// netwarden is the household network-access-control daemon. It exposes a
// uniform on/off status for named blocks and translates changes into calls
// against Pi-hole replicas (domain lists, global DNS blocking) and a UniFi
// controller (firewall rules, client blocking), announcing results over MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"gitlab.bluewillows.net/root/netwarden/internal/api"
	"gitlab.bluewillows.net/root/netwarden/internal/config"
	"gitlab.bluewillows.net/root/netwarden/internal/engine"
	"gitlab.bluewillows.net/root/netwarden/internal/health"
	"gitlab.bluewillows.net/root/netwarden/internal/metrics"
	"gitlab.bluewillows.net/root/netwarden/internal/mqtt"
	"gitlab.bluewillows.net/root/netwarden/providers/pihole"
	"gitlab.bluewillows.net/root/netwarden/providers/unifi"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-08-29"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/netwarden/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	metrics.SetBuildInfo(Version, runtime.Version())

	logger.Info("netwarden starting",
		slog.String("version", Version),
		slog.String("build_date", BuildDate),
		slog.String("go_version", runtime.Version()),
		slog.Int("blocks", len(cfg.Blocks)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := pihole.NewPool(pihole.Config{
		Replicas:      cfg.Pihole.Replicas,
		Password:      cfg.Pihole.Password,
		Timeout:       cfg.Pihole.Timeout,
		TLSSkipVerify: cfg.Pihole.TLSSkipVerify,
	}, pihole.WithPoolLogger(logger))
	defer pool.Shutdown(context.Background())

	var controller *unifi.Client
	if cfg.Unifi.Controller != "" {
		controller = unifi.NewClient(unifi.Config{
			Controller:    cfg.Unifi.Controller,
			APIKey:        cfg.Unifi.APIKey,
			Site:          cfg.Unifi.Site,
			RuleTTL:       cfg.Unifi.RuleTTL,
			Timeout:       cfg.Unifi.Timeout,
			TLSSkipVerify: cfg.Unifi.TLSSkipVerify,
		}, unifi.WithLogger(logger))
		if err := controller.Connect(ctx); err != nil {
			return fmt.Errorf("connecting to unifi controller: %w", err)
		}
		defer controller.Shutdown()
	}

	defs, err := blockDefinitions(cfg.Blocks)
	if err != nil {
		return err
	}

	engineOpts := []engine.Option{engine.WithLogger(logger)}

	var announcer *mqtt.Announcer
	if cfg.MQTT.Enabled {
		announcer, err = mqtt.NewAnnouncer(cfg.MQTT.Broker, cfg.MQTT.Port, cfg.MQTT.ClientID,
			mqtt.WithAnnouncerLogger(logger))
		if err != nil {
			return fmt.Errorf("connecting to mqtt broker: %w", err)
		}
		defer announcer.Close()
		engineOpts = append(engineOpts, engine.WithAnnouncer(announcer))
	}

	var ctrl engine.Controller
	if controller != nil {
		ctrl = controller
	}
	eng := engine.New(defs, pool, ctrl, engineOpts...)

	healthServer := health.New(cfg.Server.HealthPort, health.WithLogger(logger))
	healthServer.RegisterChecker("pihole", health.UpstreamChecker(pool))
	healthServer.RegisterDegradedChecker("pihole-replicas", health.DegradedReplicas(pool))
	if controller != nil {
		healthServer.RegisterChecker("unifi", health.UpstreamChecker(controller))
	}
	if err := healthServer.Start(); err != nil {
		return fmt.Errorf("starting health server: %w", err)
	}

	apiServer := api.NewServer(eng, cfg.Server.ListenAddr, api.WithLogger(logger))

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	logger.Info("netwarden initialized",
		slog.String("listen", cfg.Server.ListenAddr),
		slog.Int("health_port", cfg.Server.HealthPort),
		slog.Int("replicas", len(cfg.Pihole.Replicas)),
		slog.Bool("mqtt", cfg.MQTT.Enabled),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("control API server: %w", err)
		}
	}

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("control API shutdown error", slog.String("error", err.Error()))
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("netwarden shutdown complete")
	return nil
}

// blockDefinitions converts the configured blocks into engine definitions.
func blockDefinitions(blocks []config.BlockConfig) ([]engine.BlockDefinition, error) {
	defs := make([]engine.BlockDefinition, 0, len(blocks))
	for _, b := range blocks {
		def := engine.BlockDefinition{
			Name:     b.Name,
			Category: engine.Category(b.Category),
			Domains:  b.Domains,
			RuleName: b.Rule,
			MACs:     b.MACs,
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("invalid block configuration: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func setupLogger(level, format string) *slog.Logger {
	logLevel := parseLogLevel(level)

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
