// Package connectivity reports whether the network and the primary backend
// are reachable. The sync engine treats "fully online" as the conjunction of
// both signals.
package connectivity

import (
	"context"
	"net/http"
	"time"
)

// Mode forces the oracle's answer regardless of probing.
type Mode string

const (
	// ModeAuto probes the network and the server on each check.
	ModeAuto Mode = "auto"
	// ModeOnline reports reachable without probing.
	ModeOnline Mode = "online"
	// ModeOffline reports unreachable without probing; every mutation queues.
	ModeOffline Mode = "offline"
)

// Oracle answers reachability questions for the sync engine.
type Oracle interface {
	// IsOnline reports raw network reachability.
	IsOnline(ctx context.Context) bool
	// IsServerReachable reports whether the primary backend responds.
	IsServerReachable(ctx context.Context) bool
}

// FullyOnline is the conjunction the orchestrator keys off.
func FullyOnline(ctx context.Context, o Oracle) bool {
	return o.IsOnline(ctx) && o.IsServerReachable(ctx)
}

// HealthFunc probes the primary backend.
type HealthFunc func(ctx context.Context) error

// Checker implements Oracle by probing a well-known URL for network
// reachability and the primary store's health endpoint for server
// reachability. Server probes run through a circuit breaker so that repeated
// failures short-circuit to "unreachable" instead of paying a timeout on
// every mutation.
type Checker struct {
	mode     Mode
	probeURL string
	health   HealthFunc
	timeout  time.Duration
	client   *http.Client
	breaker  *CircuitBreaker
}

// DefaultProbeURL responds 204 with no body and is the conventional
// connectivity probe target.
const DefaultProbeURL = "http://connectivitycheck.gstatic.com/generate_204"

// NewChecker creates a Checker.
func NewChecker(mode Mode, probeURL string, health HealthFunc, timeout time.Duration) *Checker {
	if mode == "" {
		mode = ModeAuto
	}
	if probeURL == "" {
		probeURL = DefaultProbeURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Checker{
		mode:     mode,
		probeURL: probeURL,
		health:   health,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		breaker:  NewCircuitBreaker(DefaultBreakerThreshold, DefaultBreakerCooldown),
	}
}

// IsOnline reports raw network reachability.
func (c *Checker) IsOnline(ctx context.Context) bool {
	switch c.mode {
	case ModeOnline:
		return true
	case ModeOffline:
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.probeURL, nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

// IsServerReachable reports whether the primary backend responds to its
// health probe, gated by the circuit breaker.
func (c *Checker) IsServerReachable(ctx context.Context) bool {
	switch c.mode {
	case ModeOnline:
		return true
	case ModeOffline:
		return false
	}

	if c.health == nil {
		return false
	}

	if !c.breaker.Allow() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.health(ctx); err != nil {
		c.breaker.RecordFailure()
		return false
	}

	c.breaker.RecordSuccess()
	return true
}

// BreakerState exposes the current breaker state for status output.
func (c *Checker) BreakerState() CircuitState {
	return c.breaker.State()
}
