package drift

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// ProbeResult is one replica's answer for the probe domain.
type ProbeResult struct {
	Replica string
	Domain  string
	Blocked bool
	Answer  string
	Err     error
}

// Prober asks each replica's resolver directly whether a domain is
// sinkholed. The API-level domain status is an OR across replicas, so a
// single replica that missed an update hides behind the others; the probe is
// the per-replica check that catches it.
type Prober struct {
	Timeout time.Duration
	Logger  *slog.Logger

	// exchange is swapped out in tests.
	exchange func(ctx context.Context, msg *dns.Msg, addr string) (*dns.Msg, error)
}

// Probe queries every replica for the domain's A record. Pi-hole sinkholes
// blocked domains to 0.0.0.0, so that answer (or NXDOMAIN, in null-blocking
// mode) counts as blocked.
func (p *Prober) Probe(ctx context.Context, replicas []string, domain string) []ProbeResult {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	exchange := p.exchange
	if exchange == nil {
		client := &dns.Client{Timeout: timeout}
		exchange = func(ctx context.Context, msg *dns.Msg, addr string) (*dns.Msg, error) {
			reply, _, err := client.ExchangeContext(ctx, msg, addr)
			return reply, err
		}
	}

	results := make([]ProbeResult, len(replicas))
	var wg sync.WaitGroup
	for i, replica := range replicas {
		wg.Add(1)
		go func(i int, replica string) {
			defer wg.Done()
			results[i] = p.probeOne(ctx, exchange, replica, domain)
		}(i, replica)
	}
	wg.Wait()

	for _, r := range results {
		logger.Debug("replica probe",
			slog.String("replica", r.Replica),
			slog.String("domain", r.Domain),
			slog.Bool("blocked", r.Blocked))
	}
	return results
}

func (p *Prober) probeOne(ctx context.Context, exchange func(context.Context, *dns.Msg, string) (*dns.Msg, error), replica, domain string) ProbeResult {
	result := ProbeResult{Replica: replica, Domain: domain}

	addr, err := resolverAddr(replica)
	if err != nil {
		result.Err = err
		return result
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeA)

	reply, err := exchange(ctx, msg, addr)
	if err != nil {
		result.Err = fmt.Errorf("querying %s: %w", addr, err)
		return result
	}

	if reply.Rcode == dns.RcodeNameError {
		result.Blocked = true
		result.Answer = "NXDOMAIN"
		return result
	}

	for _, rr := range reply.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		result.Answer = a.A.String()
		if a.A.IsUnspecified() {
			result.Blocked = true
		}
		break
	}
	return result
}

// resolverAddr maps a replica's API base URL onto its DNS listener, port 53
// on the same host.
func resolverAddr(replica string) (string, error) {
	u, err := url.Parse(replica)
	if err != nil {
		return "", fmt.Errorf("parsing replica address %q: %w", replica, err)
	}
	host := u.Hostname()
	if host == "" {
		host = replica
	}
	return net.JoinHostPort(host, "53"), nil
}
