package drift

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"gitlab.bluewillows.net/root/netwarden/internal/metrics"
	"gitlab.bluewillows.net/root/netwarden/internal/mqtt"
	"gitlab.bluewillows.net/root/netwarden/internal/status"
)

// errNoRetained marks a topic the broker held nothing for. A topic with no
// retained message means the daemon never announced, which is itself a
// finding.
var errNoRetained = errors.New("no retained message")

// Runner executes a drift audit: collect every declared value from the
// broker, fetch every actual value from the API, classify.
type Runner struct {
	APIBase    string
	Broker     string
	Port       int
	Window     time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger

	// collect is swapped out in tests.
	collect func(ctx context.Context, broker string, port int, topics []string, window time.Duration, logger *slog.Logger) (map[string]string, error)
}

// Summary aggregates check outcomes.
type Summary struct {
	Matching int
	Drifts   int
	Errors   int
}

// Total is the number of checks the summary covers.
func (s Summary) Total() int {
	return s.Matching + s.Drifts + s.Errors
}

// ExitCode maps the summary onto the process exit status: clean runs exit
// zero, anything drifted or errored exits one.
func (s Summary) ExitCode() int {
	if s.Drifts > 0 || s.Errors > 0 {
		return 1
	}
	return 0
}

// Run fills in every check's declared and actual values and classifies them.
// The check slice is modified in place.
func (r *Runner) Run(ctx context.Context, checks []Check) (Summary, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collect := r.collect
	if collect == nil {
		collect = mqtt.Collect
	}
	client := r.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	topics := make([]string, 0, len(checks))
	seen := make(map[string]bool, len(checks))
	for _, c := range checks {
		if !seen[c.Topic] {
			seen[c.Topic] = true
			topics = append(topics, c.Topic)
		}
	}

	logger.Info("collecting retained state",
		slog.String("broker", fmt.Sprintf("%s:%d", r.Broker, r.Port)),
		slog.Int("topics", len(topics)))

	payloads, err := collect(ctx, r.Broker, r.Port, topics, r.Window, logger)
	if err != nil {
		return Summary{}, fmt.Errorf("collecting retained state: %w", err)
	}

	for i := range checks {
		payload, ok := payloads[checks[i].Topic]
		if !ok {
			checks[i].DeclaredErr = errNoRetained
			continue
		}
		checks[i].Declared = status.Normalize(payload)
	}

	logger.Info("fetching actual state",
		slog.String("api", r.APIBase),
		slog.Int("checks", len(checks)))

	var wg sync.WaitGroup
	for i := range checks {
		wg.Add(1)
		go func(c *Check) {
			defer wg.Done()
			c.Actual, c.ActualErr = r.fetchActual(ctx, client, c.Endpoint)
		}(&checks[i])
	}
	wg.Wait()

	var summary Summary
	for i := range checks {
		outcome := checks[i].Outcome()
		metrics.DriftChecksTotal.WithLabelValues(outcome.String()).Inc()
		switch outcome {
		case Match:
			summary.Matching++
		case Drifted:
			summary.Drifts++
		case Errored:
			summary.Errors++
		}
	}
	return summary, nil
}

// fetchActual asks the control API for one status and normalizes whatever
// shape comes back: the block endpoints answer strings, the rule endpoint a
// bare boolean.
func (r *Runner) fetchActual(ctx context.Context, client *http.Client, endpoint string) (status.Status, error) {
	url := strings.TrimRight(r.APIBase, "/") + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return status.Unknown, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return status.Unknown, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return status.Unknown, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var body struct {
		Status any `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return status.Unknown, fmt.Errorf("decoding response: %w", err)
	}
	if body.Status == nil {
		return status.Normalize("unknown"), nil
	}
	return status.Normalize(fmt.Sprint(body.Status)), nil
}
