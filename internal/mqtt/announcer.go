// Package mqtt carries the control plane's retained status topics: the
// daemon announces state changes, the drift checker collects them back.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// newClient builds a paho client. Swapped out in tests.
var newClient = func(opts *paho.ClientOptions) paho.Client {
	return paho.NewClient(opts)
}

// Announcer publishes retained status payloads so HomeKit-side automations
// observe state changes without polling the API.
type Announcer struct {
	client paho.Client
	logger *slog.Logger
}

// AnnouncerOption is a functional option for configuring the Announcer.
type AnnouncerOption func(*Announcer)

// WithAnnouncerLogger sets a custom logger.
func WithAnnouncerLogger(logger *slog.Logger) AnnouncerOption {
	return func(a *Announcer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAnnouncer connects to the broker. The connection stays up for the
// daemon's lifetime; paho reconnects on its own after broker restarts.
func NewAnnouncer(broker string, port int, clientID string, opts ...AnnouncerOption) (*Announcer, error) {
	a := &Announcer{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}

	options := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", broker, port)).
		SetClientID(clientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true)

	a.client = newClient(options)
	token := a.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connecting to broker %s:%d: timeout", broker, port)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to broker %s:%d: %w", broker, port, err)
	}

	a.logger.Info("mqtt announcer connected",
		slog.String("broker", broker),
		slog.Int("port", port))
	return a, nil
}

// Announce publishes a retained payload on the topic.
func (a *Announcer) Announce(ctx context.Context, topic, payload string) error {
	token := a.client.Publish(topic, 1, true, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publishing to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}

	a.logger.Debug("announced status",
		slog.String("topic", topic),
		slog.String("payload", payload))
	return nil
}

// Close disconnects from the broker, allowing a short drain for in-flight
// messages.
func (a *Announcer) Close() {
	a.client.Disconnect(250)
}
