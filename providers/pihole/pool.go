package pihole

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"gitlab.bluewillows.net/root/netwarden/pkg/httputil"
	"gitlab.bluewillows.net/root/netwarden/pkg/upstream"
)

// Pool owns one authenticated session per configured replica. Sessions are
// created lazily on first use and shared by every block that targets the
// replica: one session per address, not per block.
type Pool struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	clients map[string]*Client
	states  map[string]upstream.State
	lastErr map[string]error
}

// PoolOption is a functional option for configuring the Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets a custom logger for the pool and its clients.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPoolHTTPClient sets a custom HTTP client shared by every replica.
func WithPoolHTTPClient(client *http.Client) PoolOption {
	return func(p *Pool) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewPool creates a session pool over the configured replicas.
func NewPool(cfg Config, opts ...PoolOption) *Pool {
	p := &Pool{
		cfg:     cfg,
		logger:  slog.Default(),
		clients: make(map[string]*Client),
		states:  make(map[string]upstream.State),
		lastErr: make(map[string]error),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.httpClient == nil {
		p.httpClient = httputil.NewClient(&httputil.ClientConfig{
			Timeout:       cfg.Timeout,
			TLSSkipVerify: cfg.TLSSkipVerify,
			Logger:        p.logger,
		})
	}

	for _, addr := range cfg.Replicas {
		p.states[addr] = upstream.Disconnected
	}

	return p
}

// Addresses returns the configured replica addresses in configuration order.
func (p *Pool) Addresses() []string {
	return p.cfg.Replicas
}

// Connect establishes or validates the session for one replica. Connecting an
// already-connected replica is a no-op success.
func (p *Pool) Connect(ctx context.Context, addr string) (*Client, error) {
	if p.cfg.Password == "" {
		return nil, upstream.ErrNoCredentials
	}

	p.mu.Lock()
	client, ok := p.clients[addr]
	if !ok {
		client = NewClient(addr, p.cfg.Password,
			WithLogger(p.logger),
			WithHTTPClient(p.httpClient),
		)
		p.clients[addr] = client
	}
	p.mu.Unlock()

	if err := client.Authenticate(ctx); err != nil {
		p.setState(addr, upstream.Failed, err)
		return nil, upstream.WrapError(addr, "connect", err)
	}

	p.setState(addr, upstream.Connected, nil)
	return client, nil
}

// ApplyToAll runs op against every replica independently. Each replica's
// session is established on demand; a connect or apply failure on one replica
// never aborts the attempts on the others. Results come back in replica
// order.
func (p *Pool) ApplyToAll(ctx context.Context, operation string, op func(ctx context.Context, client *Client) error) []upstream.Result {
	return upstream.ApplyToAll(ctx, p.cfg.Replicas, func(ctx context.Context, addr string) error {
		client, err := p.Connect(ctx, addr)
		if err != nil {
			return err
		}
		if err := op(ctx, client); err != nil {
			return upstream.WrapError(addr, operation, err)
		}
		return nil
	})
}

// Ping verifies connectivity by authenticating against every replica.
// Returns the first failure, if any.
func (p *Pool) Ping(ctx context.Context) error {
	results := p.ApplyToAll(ctx, "ping", func(_ context.Context, _ *Client) error {
		return nil
	})
	return upstream.FirstError(results)
}

// States returns a snapshot of every replica's connection state.
func (p *Pool) States() map[string]upstream.State {
	p.mu.Lock()
	defer p.mu.Unlock()

	states := make(map[string]upstream.State, len(p.states))
	for addr, s := range p.states {
		states[addr] = s
	}
	return states
}

// Shutdown closes every open session. Errors during close are logged, not
// returned, and every replica resets to Disconnected.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	clients := make([]*Client, 0, len(p.clients))
	for _, c := range p.clients {
		clients = append(clients, c)
	}
	p.mu.Unlock()

	for _, c := range clients {
		if err := c.Close(ctx); err != nil {
			p.logger.Warn("closing replica session",
				slog.String("replica", c.Address()),
				slog.String("error", err.Error()))
		}
	}

	p.mu.Lock()
	for addr := range p.states {
		p.states[addr] = upstream.Disconnected
		p.lastErr[addr] = nil
	}
	p.mu.Unlock()

	p.logger.Info("pihole pool shut down", slog.Int("replicas", len(p.cfg.Replicas)))
}

func (p *Pool) setState(addr string, state upstream.State, err error) {
	p.mu.Lock()
	p.states[addr] = state
	p.lastErr[addr] = err
	p.mu.Unlock()
}
