package pihole

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitlab.bluewillows.net/root/netwarden/pkg/upstream"
)

// AddDomains puts every domain of a set on the given list, on every replica.
// One result per replica, in replica order; a replica fails if any of its
// domains could not be added.
func (p *Pool) AddDomains(ctx context.Context, kind ListKind, domains []string) []upstream.Result {
	return p.ApplyToAll(ctx, "add domains", func(ctx context.Context, c *Client) error {
		for _, d := range domains {
			if err := c.AddDomain(ctx, kind, d); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveDomains deletes every domain of a set from the given list, on every
// replica.
func (p *Pool) RemoveDomains(ctx context.Context, kind ListKind, domains []string) []upstream.Result {
	return p.ApplyToAll(ctx, "remove domains", func(ctx context.Context, c *Client) error {
		for _, d := range domains {
			if err := c.RemoveDomain(ctx, kind, d); err != nil {
				return err
			}
		}
		return nil
	})
}

// AnyDomainEnabled reports whether any domain of the set is present and
// enabled on at least one replica. Replicas are expected to converge;
// divergence between them is a drift condition, not an error here. An error
// is returned only when every replica failed to answer.
func (p *Pool) AnyDomainEnabled(ctx context.Context, kind ListKind, domains []string) (bool, error) {
	enabled := make([]bool, len(p.cfg.Replicas))
	index := make(map[string]int, len(p.cfg.Replicas))
	for i, addr := range p.cfg.Replicas {
		index[addr] = i
	}

	results := upstream.ApplyToAll(ctx, p.cfg.Replicas, func(ctx context.Context, addr string) error {
		client, err := p.Connect(ctx, addr)
		if err != nil {
			return err
		}
		for _, d := range domains {
			on, present, err := client.DomainStatus(ctx, kind, d)
			if err != nil {
				return upstream.WrapError(addr, "domain status", err)
			}
			if present && on {
				enabled[index[addr]] = true
				break
			}
		}
		return nil
	})

	if !upstream.AnySucceeded(results) {
		return false, fmt.Errorf("querying domain status: %w", upstream.FirstError(results))
	}

	for _, on := range enabled {
		if on {
			return true, nil
		}
	}
	return false, nil
}

// BlockingStatus reports whole-network DNS blocking from the first replica
// that answers. Replicas are expected to agree; the drift checker audits the
// cases where they do not.
func (p *Pool) BlockingStatus(ctx context.Context) (bool, error) {
	var firstErr error
	for _, addr := range p.cfg.Replicas {
		client, err := p.Connect(ctx, addr)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		enabled, err := client.BlockingStatus(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = upstream.WrapError(addr, "blocking status", err)
			}
			continue
		}
		return enabled, nil
	}
	if firstErr == nil {
		return false, errors.New("no replicas configured")
	}
	return false, fmt.Errorf("no replica answered blocking status: %w", firstErr)
}

// SetBlocking switches whole-network DNS blocking on every replica, with an
// optional upstream re-enable timer. Returns the acknowledged state from the
// successful replicas along with the per-replica results.
func (p *Pool) SetBlocking(ctx context.Context, enabled bool, timer time.Duration) (bool, []upstream.Result) {
	acks := make([]bool, len(p.cfg.Replicas))
	ok := make([]bool, len(p.cfg.Replicas))
	index := make(map[string]int, len(p.cfg.Replicas))
	for i, addr := range p.cfg.Replicas {
		index[addr] = i
	}

	results := upstream.ApplyToAll(ctx, p.cfg.Replicas, func(ctx context.Context, addr string) error {
		client, err := p.Connect(ctx, addr)
		if err != nil {
			return err
		}
		state, err := client.SetBlocking(ctx, enabled, timer)
		if err != nil {
			return upstream.WrapError(addr, "set blocking", err)
		}
		i := index[addr]
		acks[i] = state
		ok[i] = true
		return nil
	})

	acked := enabled
	for i, answered := range ok {
		if answered {
			acked = acks[i]
			break
		}
	}
	return acked, results
}
