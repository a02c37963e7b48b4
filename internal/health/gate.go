// Package health implements the Rate & Health Gate: a per-provider circuit
// breaker plus cumulative success/failure counts and a moving-average
// latency, grounded on the chain
// adapter's RPCHealthTracker/SimpleHealthTracker and generalized from its
// two-counter "successes minus failures" proxy to the explicit
// closed/open/half-open state machine the engine requires.
package health

import (
	"sync"
	"time"

	"github.com/arcsign/ledgerkit/internal/logging"
)

// CircuitState is one of the three explicit breaker states.
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half-open"
)

// Stats is a defensive-copy snapshot of one provider's health, returned by
// Snapshot for metrics/debugging.
type Stats struct {
	Provider            string
	State               CircuitState
	ConsecutiveFailures int
	LastFailureAt        time.Time
	TotalCalls           int64
	SuccessfulCalls      int64
	FailedCalls          int64
	AvgResponseTimeMs    int64
}

type providerHealth struct {
	state               CircuitState
	consecutiveFailures int
	lastFailureAt       time.Time
	totalCalls          int64
	successfulCalls     int64
	failedCalls         int64
	avgResponseTimeMs   int64
	halfOpenTrialInUse  bool
}

// circuitStateCode mirrors ledgerkit_provider_circuit_state's documented
// gauge values: 0=closed, 1=half-open, 2=open.
func circuitStateCode(s CircuitState) int {
	switch s {
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return 0
	}
}

// Gate tracks circuit state and call outcomes per provider name. It never
// blocks: Allow reports availability, callers decide what to do next.
type Gate struct {
	mu                sync.Mutex
	providers         map[string]*providerHealth
	failureThreshold  int           // F_max, default 5
	coolDown          time.Duration // T_cool, default 60s
	logger            *logging.ComponentLogger

	onFailure      func(provider string)
	onStateChange  func(provider string, state int)
}

// New builds a Gate with the given F_max/T_cool thresholds.
func New(failureThreshold int, coolDown time.Duration, logger *logging.ComponentLogger) *Gate {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if coolDown <= 0 {
		coolDown = 60 * time.Second
	}
	return &Gate{
		providers:        make(map[string]*providerHealth),
		failureThreshold: failureThreshold,
		coolDown:         coolDown,
		logger:           logger,
	}
}

// SetFailureHook registers a callback invoked once per RecordFailure call,
// used to feed a provider-failure counter without this package depending
// on the metrics package.
func (g *Gate) SetFailureHook(fn func(provider string)) {
	g.onFailure = fn
}

// SetStateChangeHook registers a callback invoked whenever a provider's
// circuit transitions to a new state, used to feed a circuit-state gauge
// without this package depending on the metrics package.
func (g *Gate) SetStateChangeHook(fn func(provider string, state int)) {
	g.onStateChange = fn
}

func (g *Gate) get(provider string) *providerHealth {
	h, ok := g.providers[provider]
	if !ok {
		h = &providerHealth{state: StateClosed}
		g.providers[provider] = h
	}
	return h
}

// Allow reports whether provider may be invoked right now. A half-open
// trial is single-flight: only the first Allow call after the cool-down
// elapses gets to probe; concurrent callers are told no until that trial
// resolves via RecordSuccess/RecordFailure.
func (g *Gate) Allow(provider string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	h := g.get(provider)
	switch h.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if h.halfOpenTrialInUse {
			return false
		}
		h.halfOpenTrialInUse = true
		return true
	case StateOpen:
		if time.Since(h.lastFailureAt) >= g.coolDown {
			h.state = StateHalfOpen
			h.halfOpenTrialInUse = true
			if g.onStateChange != nil {
				g.onStateChange(provider, circuitStateCode(StateHalfOpen))
			}
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess resets consecutiveFailures to 0 and closes the circuit if
// it was half-open or open.
func (g *Gate) RecordSuccess(provider string, latencyMs int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	h := g.get(provider)
	h.totalCalls++
	h.successfulCalls++
	h.consecutiveFailures = 0
	h.halfOpenTrialInUse = false

	if h.avgResponseTimeMs == 0 {
		h.avgResponseTimeMs = latencyMs
	} else {
		h.avgResponseTimeMs = (h.avgResponseTimeMs*9 + latencyMs) / 10
	}

	prev := h.state
	h.state = StateClosed
	if prev != StateClosed {
		if g.logger != nil {
			g.logger.Info().Str("provider", provider).Str("from", string(prev)).Msg("circuit closed")
		}
		if g.onStateChange != nil {
			g.onStateChange(provider, circuitStateCode(StateClosed))
		}
	}
}

// RecordFailure increments consecutiveFailures, trips the breaker to open
// once F_max is reached (or immediately on a half-open trial's failure),
// and marks lastFailureAt for the cool-down clock.
func (g *Gate) RecordFailure(provider string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	h := g.get(provider)
	h.totalCalls++
	h.failedCalls++
	h.consecutiveFailures++
	h.lastFailureAt = time.Now()
	h.halfOpenTrialInUse = false

	if g.onFailure != nil {
		g.onFailure(provider)
	}

	wasHalfOpen := h.state == StateHalfOpen
	if wasHalfOpen || h.consecutiveFailures >= g.failureThreshold {
		prev := h.state
		h.state = StateOpen
		if prev != StateOpen {
			if g.logger != nil {
				g.logger.Warn().Str("provider", provider).Err(err).Msg("circuit opened")
			}
			if g.onStateChange != nil {
				g.onStateChange(provider, circuitStateCode(StateOpen))
			}
		}
	}
}

// Snapshot returns a defensive copy of a provider's current stats.
func (g *Gate) Snapshot(provider string) Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	h := g.get(provider)
	return Stats{
		Provider:            provider,
		State:               h.state,
		ConsecutiveFailures: h.consecutiveFailures,
		LastFailureAt:       h.lastFailureAt,
		TotalCalls:          h.totalCalls,
		SuccessfulCalls:     h.successfulCalls,
		FailedCalls:         h.failedCalls,
		AvgResponseTimeMs:   h.avgResponseTimeMs,
	}
}

// FailureRate returns FailedCalls/TotalCalls, used by PM's candidate sort.
func (s Stats) FailureRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.FailedCalls) / float64(s.TotalCalls)
}
