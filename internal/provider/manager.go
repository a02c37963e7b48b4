package provider

import (
	"context"
	"time"

	"github.com/arcsign/ledgerkit/internal/adapter"
	"github.com/arcsign/ledgerkit/internal/health"
	"github.com/arcsign/ledgerkit/internal/ledgererr"
	"github.com/arcsign/ledgerkit/internal/logging"
	"github.com/arcsign/ledgerkit/internal/ratelimit"
)

// Manager is the Provider Manager: given (source, operation) it picks a
// healthy, capability-matching provider, executes, and caches.
type Manager struct {
	registry *Registry
	gate     *health.Gate
	buckets  *ratelimit.BucketSet
	cache    *responseCache
	logger   *logging.ComponentLogger
}

// New builds a Manager backed by registry and gate, with the given cache
// TTL (spec default 30s).
func New(registry *Registry, gate *health.Gate, cacheTTL time.Duration, logger *logging.ComponentLogger) *Manager {
	return &Manager{
		registry: registry,
		gate:     gate,
		buckets:  ratelimit.NewBucketSet(),
		cache:    newResponseCache(cacheTTL),
		logger:   logger,
	}
}

// Result is what a successful Execute call returns.
type Result struct {
	Data         adapter.RawRow
	ProviderName string
}

// Execute implements the PM algorithm in full: capability filter, cache
// check, priority sort, failover loop, ALL_PROVIDERS_FAILED on exhaustion.
func (m *Manager) Execute(ctx context.Context, source string, op adapter.Operation) (Result, error) {
	candidates := m.registry.candidates(source, op, m.gate)
	if len(candidates) == 0 {
		return Result{}, ledgererr.New(ledgererr.CodeNoProviders, "no providers registered for source "+source)
	}

	// Cache check is provider-agnostic: the key already encodes which
	// provider produced it only when the caller includes it; most callers
	// omit provider from the key so any healthy provider can serve a hit.
	cacheKey := op.CacheKey(source, "")
	if cached, providerName, ok := m.cache.get(cacheKey); ok {
		return Result{Data: cached, ProviderName: providerName}, nil
	}

	var lastErr error
	for _, a := range candidates {
		name := a.Name()
		if !m.gate.Allow(name) {
			continue
		}
		rl := a.RateLimit()
		if rl.RequestsPerSecond > 0 && !m.buckets.Allow(name, rl.RequestsPerSecond, rl.Burst) {
			continue
		}

		start := time.Now()
		row, err := a.Execute(ctx, op)
		latencyMs := time.Since(start).Milliseconds()

		if err != nil {
			m.gate.RecordFailure(name, err)
			lastErr = err
			if m.logger != nil {
				m.logger.Warn().Str("provider", name).Str("source", source).Err(err).Msg("provider execute failed")
			}
			continue
		}

		m.gate.RecordSuccess(name, latencyMs)
		m.cache.set(cacheKey, name, row)
		return Result{Data: row, ProviderName: name}, nil
	}

	return Result{}, ledgererr.Wrap(ledgererr.CodeAllProvidersFailed, "", "all providers failed for "+source, false, lastErr)
}

// ExecuteStreaming drives a streaming operation, failing over to the next
// candidate only between chunks — never mid-chunk — by re-issuing the
// remaining candidates' ExecuteStreaming from the cursor the failed
// provider last advanced to.
func (m *Manager) ExecuteStreaming(ctx context.Context, source string, op adapter.Operation) (<-chan adapter.StreamResult, error) {
	candidates := m.registry.candidates(source, op, m.gate)
	if len(candidates) == 0 {
		return nil, ledgererr.New(ledgererr.CodeNoProviders, "no providers registered for source "+source)
	}

	out := make(chan adapter.StreamResult)
	go func() {
		defer close(out)

		cursor := op.Cursor
		var lastErr error
		for _, a := range candidates {
			name := a.Name()
			if !m.gate.Allow(name) {
				continue
			}

			attemptOp := op
			attemptOp.Cursor = cursor
			upstream, err := a.ExecuteStreaming(ctx, attemptOp)
			if err != nil {
				m.gate.RecordFailure(name, err)
				lastErr = err
				continue
			}

			failedMidStream := false
			for res := range upstream {
				if res.Err != nil {
					m.gate.RecordFailure(name, res.Err)
					lastErr = res.Err
					failedMidStream = true
					break
				}
				m.gate.RecordSuccess(name, 0)
				next := res.Chunk.Cursor
				cursor = &next
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
				if res.Chunk.IsComplete {
					return
				}
			}

			if !failedMidStream {
				return
			}
			// between-chunk failover: continue to next candidate with the
			// cursor as of the last successful chunk.
		}

		if lastErr != nil {
			select {
			case out <- adapter.StreamResult{Err: ledgererr.Wrap(ledgererr.CodeAllProvidersFailed, "", "all providers failed for "+source, false, lastErr)}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

// Registry exposes the underlying adapter registry for wiring adapters at
// startup.
func (m *Manager) Registry() *Registry { return m.registry }
