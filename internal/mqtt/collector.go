package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultWindow bounds how long Collect waits for retained messages. Retained
// payloads arrive immediately after subscribing, so a short window is enough;
// anything that has not arrived by then is missing, not late.
const DefaultWindow = 5 * time.Second

// Collect subscribes to each topic and gathers the retained payloads,
// stopping early once every topic has reported. Topics that stay silent for
// the whole window are simply absent from the result; the caller decides
// whether that is an error.
func Collect(ctx context.Context, broker string, port int, topics []string, window time.Duration, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = DefaultWindow
	}

	var (
		mu       sync.Mutex
		payloads = make(map[string]string, len(topics))
	)
	complete := make(chan struct{})

	options := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", broker, port)).
		SetClientID(fmt.Sprintf("netwarden-collect-%d", time.Now().UnixNano())).
		SetConnectTimeout(connectTimeout)

	client := newClient(options)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connecting to broker %s:%d: timeout", broker, port)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to broker %s:%d: %w", broker, port, err)
	}
	defer client.Disconnect(250)

	handler := func(_ paho.Client, msg paho.Message) {
		mu.Lock()
		_, seen := payloads[msg.Topic()]
		payloads[msg.Topic()] = string(msg.Payload())
		done := len(payloads) == len(topics)
		mu.Unlock()

		if !seen && done {
			close(complete)
		}
	}

	filters := make(map[string]byte, len(topics))
	for _, t := range topics {
		filters[t] = 1
	}
	sub := client.SubscribeMultiple(filters, handler)
	if !sub.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("subscribing: timeout")
	}
	if err := sub.Error(); err != nil {
		return nil, fmt.Errorf("subscribing: %w", err)
	}

	select {
	case <-complete:
	case <-time.After(window):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	logger.Debug("retained collection finished",
		slog.Int("reported", len(payloads)),
		slog.Int("topics", len(topics)))
	result := make(map[string]string, len(payloads))
	for t, p := range payloads {
		result[t] = p
	}
	return result, nil
}
