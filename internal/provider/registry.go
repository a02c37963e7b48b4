// Package provider implements the Provider Manager (PM): provider
// registration, health/capability-aware routing, failover, and response
// caching. Grounded on the chain adapter's ProviderRegistry, generalized
// from a single global provider-type registry keyed by chain to a
// per-source list of adapters ordered by priority.
package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/arcsign/ledgerkit/internal/adapter"
	"github.com/arcsign/ledgerkit/internal/health"
)

// registration pairs an adapter with its operator-assigned priority; lower
// priority value is tried first, matching the spec's (priority ASC, ...)
// sort.
type registration struct {
	adapter  adapter.ProviderAdapter
	priority int
}

// Registry holds every adapter registered for a source.
type Registry struct {
	mu        sync.RWMutex
	bySource  map[string][]registration
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{bySource: make(map[string][]registration)}
}

// Register adds an adapter for its declared Source() at the given
// priority. Re-registering the same adapter name for a source replaces
// the prior registration.
func (r *Registry) Register(a adapter.ProviderAdapter, priority int) error {
	if a == nil {
		return fmt.Errorf("provider adapter is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.bySource[a.Source()]
	for i, reg := range list {
		if reg.adapter.Name() == a.Name() {
			list[i] = registration{adapter: a, priority: priority}
			r.bySource[a.Source()] = list
			return nil
		}
	}
	r.bySource[a.Source()] = append(list, registration{adapter: a, priority: priority})
	return nil
}

// candidates returns, for (source, op), every registered adapter that
// capability-matches op.Type and op.TransactionType, sorted by
// (priority ASC, avgLatency ASC, failureRate ASC) per the PM algorithm.
func (r *Registry) candidates(source string, op adapter.Operation, gate *health.Gate) []adapter.ProviderAdapter {
	r.mu.RLock()
	list := append([]registration(nil), r.bySource[source]...)
	r.mu.RUnlock()

	matched := make([]registration, 0, len(list))
	for _, reg := range list {
		caps := reg.adapter.Capabilities()
		if !caps.SupportsOperation(op.Type) {
			continue
		}
		if op.TransactionType != "" && len(caps.SupportedTransactionTypes) > 0 {
			ok := false
			for _, t := range caps.SupportedTransactionTypes {
				if t == op.TransactionType {
					ok = true
					break
				}
			}
			if !ok {
				continue
			}
		}
		matched = append(matched, reg)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].priority != matched[j].priority {
			return matched[i].priority < matched[j].priority
		}
		si := gate.Snapshot(matched[i].adapter.Name())
		sj := gate.Snapshot(matched[j].adapter.Name())
		if si.AvgResponseTimeMs != sj.AvgResponseTimeMs {
			return si.AvgResponseTimeMs < sj.AvgResponseTimeMs
		}
		return si.FailureRate() < sj.FailureRate()
	})

	out := make([]adapter.ProviderAdapter, len(matched))
	for i, reg := range matched {
		out[i] = reg.adapter
	}
	return out
}

// ListSourceAdapters returns every adapter registered for source, in
// registration order, for diagnostics.
func (r *Registry) ListSourceAdapters(source string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bySource[source]))
	for _, reg := range r.bySource[source] {
		names = append(names, reg.adapter.Name())
	}
	return names
}

// Adapters returns every adapter registered for source, unsorted and
// unfiltered by capability — IMP applies the replay window of the first
// adapter in this list.
func (r *Registry) Adapters(source string) []adapter.ProviderAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]adapter.ProviderAdapter, 0, len(r.bySource[source]))
	for _, reg := range r.bySource[source] {
		out = append(out, reg.adapter)
	}
	return out
}
