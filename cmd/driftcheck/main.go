// driftcheck is a one-shot audit comparing declared state (retained MQTT
// payloads) against actual state (control API answers). It exits non-zero
// when anything drifted or could not be checked, so it can run from cron or
// CI and page on failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gitlab.bluewillows.net/root/netwarden/internal/config"
	"gitlab.bluewillows.net/root/netwarden/internal/drift"
	"gitlab.bluewillows.net/root/netwarden/internal/engine"
	"gitlab.bluewillows.net/root/netwarden/internal/mqtt"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "/etc/netwarden/config.yaml", "path to the configuration file")
	extraChecks := flag.String("extra-checks", "", "optional TOML file with additional checks")
	apiURL := flag.String("api-url", envOr("NETWARDEN_URL", "http://localhost:19000"), "control API base URL")
	broker := flag.String("mqtt-broker", "", "MQTT broker address (defaults to the configured broker)")
	port := flag.Int("mqtt-port", 0, "MQTT broker port (defaults to the configured port)")
	window := flag.Duration("window", mqtt.DefaultWindow, "retained message collection window")
	probeDomain := flag.String("probe", "", "optionally probe each replica's resolver for this domain")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		return 1
	}

	if *broker == "" {
		*broker = cfg.MQTT.Broker
	}
	if *port == 0 {
		*port = cfg.MQTT.Port
	}
	if *broker == "" {
		fmt.Fprintln(os.Stderr, "no MQTT broker configured; set mqtt.broker or -mqtt-broker")
		return 1
	}

	checks := drift.BuildChecks(blockDefinitions(cfg.Blocks))
	if *extraChecks != "" {
		extras, err := drift.LoadExtras(*extraChecks)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading extra checks: %v\n", err)
			return 1
		}
		checks = append(checks, extras...)
	}

	fmt.Printf("Running %d state checks...\n", len(checks))
	fmt.Printf("  API:    %s\n", *apiURL)
	fmt.Printf("  Broker: %s:%d\n", *broker, *port)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	runner := &drift.Runner{
		APIBase: *apiURL,
		Broker:  *broker,
		Port:    *port,
		Window:  *window,
		Logger:  logger,
	}

	summary, err := runner.Run(ctx, checks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "drift check failed: %v\n", err)
		return 1
	}

	drift.Render(os.Stdout, checks, summary)
	exitCode := summary.ExitCode()

	if *probeDomain != "" {
		if probeExit := runProbe(ctx, cfg.Pihole.Replicas, *probeDomain, logger); probeExit != 0 {
			exitCode = probeExit
		}
	}

	return exitCode
}

// runProbe asks every replica's resolver about the domain directly. The API
// answer is an OR across replicas, so this is the only place a replica that
// missed an update shows up.
func runProbe(ctx context.Context, replicas []string, domain string, logger *slog.Logger) int {
	prober := &drift.Prober{Logger: logger}
	results := prober.Probe(ctx, replicas, domain)

	fmt.Printf("\nREPLICA PROBE: %s\n", domain)

	blocked := 0
	errors := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			errors++
			fmt.Printf("  %-30s ERROR: %v\n", r.Replica, r.Err)
		case r.Blocked:
			blocked++
			fmt.Printf("  %-30s blocked (%s)\n", r.Replica, r.Answer)
		default:
			fmt.Printf("  %-30s resolving (%s)\n", r.Replica, r.Answer)
		}
	}

	if errors > 0 {
		return 1
	}
	// all blocked or none blocked is consistent; a mix means a replica
	// missed an update
	if blocked > 0 && blocked < len(results) {
		fmt.Println("  DIVERGENCE: replicas disagree")
		return 1
	}
	return 0
}

func blockDefinitions(blocks []config.BlockConfig) []engine.BlockDefinition {
	defs := make([]engine.BlockDefinition, 0, len(blocks))
	for _, b := range blocks {
		defs = append(defs, engine.BlockDefinition{
			Name:     b.Name,
			Category: engine.Category(b.Category),
			Domains:  b.Domains,
			RuleName: b.Rule,
			MACs:     b.MACs,
		})
	}
	return defs
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
