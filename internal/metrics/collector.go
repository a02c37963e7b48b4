// Package metrics exposes ingestion counters/gauges/histograms over
// Prometheus, grounded on stellar-arrow-source's Collector: one struct
// holding pre-registered metric objects, a dedicated registry instead
// of the global default, and a background HTTP server for /metrics.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arcsign/ledgerkit/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the ingestion pipeline emits.
type Collector struct {
	logger *logging.ComponentLogger

	rowsImported prometheus.Counter
	rowsSkipped  prometheus.Counter
	sessionsRun  *prometheus.CounterVec // labeled by final status

	providerFailures *prometheus.CounterVec // labeled by provider
	circuitState     *prometheus.GaugeVec   // labeled by provider, 0/1/2

	streamDuration    prometheus.Histogram
	mappingDuration    prometheus.Histogram

	gapScanAddressesChecked prometheus.Counter

	registry *prometheus.Registry
}

func NewCollector(logger *logging.ComponentLogger) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		logger:   logger,
		registry: registry,

		rowsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgerkit_rows_imported_total",
			Help: "Total canonical transactions written to the canonical store",
		}),
		rowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgerkit_rows_skipped_total",
			Help: "Total raw rows quarantined or intentionally skipped by the processor",
		}),
		sessionsRun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerkit_sessions_total",
			Help: "Total import sessions finalized, by status",
		}, []string{"status"}),
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerkit_provider_failures_total",
			Help: "Total provider call failures recorded by the health gate",
		}, []string{"provider"}),
		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledgerkit_provider_circuit_state",
			Help: "Provider circuit breaker state: 0=closed, 1=half-open, 2=open",
		}, []string{"provider"}),
		streamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgerkit_stream_duration_seconds",
			Help:    "Time spent draining one IMP stream",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		mappingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgerkit_mapping_duration_seconds",
			Help:    "Time spent mapping one raw batch in PROC",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		gapScanAddressesChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgerkit_gap_scan_addresses_checked_total",
			Help: "Total addresses examined by AR's gap scan across all accounts",
		}),
	}

	registry.MustRegister(
		c.rowsImported,
		c.rowsSkipped,
		c.sessionsRun,
		c.providerFailures,
		c.circuitState,
		c.streamDuration,
		c.mappingDuration,
		c.gapScanAddressesChecked,
		prometheus.NewGoCollector(),
	)

	return c
}

func (c *Collector) RecordRowsImported(n int) { c.rowsImported.Add(float64(n)) }
func (c *Collector) RecordRowsSkipped(n int)  { c.rowsSkipped.Add(float64(n)) }

func (c *Collector) RecordSessionFinalized(status string) {
	c.sessionsRun.WithLabelValues(status).Inc()
}

func (c *Collector) RecordProviderFailure(provider string) {
	c.providerFailures.WithLabelValues(provider).Inc()
}

func (c *Collector) SetCircuitState(provider string, state int) {
	c.circuitState.WithLabelValues(provider).Set(float64(state))
}

func (c *Collector) ObserveStreamDuration(d time.Duration)   { c.streamDuration.Observe(d.Seconds()) }
func (c *Collector) ObserveMappingDuration(d time.Duration)  { c.mappingDuration.Observe(d.Seconds()) }

func (c *Collector) RecordGapScanAddressChecked() { c.gapScanAddressesChecked.Inc() }

// StartServer serves /metrics and a /healthz liveness probe on port
// until ctx is cancelled.
func (c *Collector) StartServer(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
}
