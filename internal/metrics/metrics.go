// Package metrics exposes Prometheus collectors for delivery activity. A nil
// *Registry is valid and records nothing.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

const namespace = "sprite"

type Registry struct {
	registry     *prometheus.Registry
	attempts     *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	ackLatency   prometheus.Histogram
	inFlight     prometheus.Gauge
	broadcasts   *prometheus.CounterVec
	sessionAlive *prometheus.GaugeVec
	sessionPanes *prometheus.GaugeVec
	eventDrops   *prometheus.CounterVec
}

// New builds a registry on a private prometheus.Registry so tests and
// multiple engines never collide on the global one.
func New() *Registry {
	return newRegistry(false)
}

// NewWithRuntime also registers Go runtime and process collectors, for
// long-running processes that serve /metrics.
func NewWithRuntime() *Registry {
	return newRegistry(true)
}

func newRegistry(runtime bool) *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_attempts_total",
			Help:      "Delivery attempts by outcome.",
		}, []string{"outcome"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Deliveries that reached a terminal status.",
		}, []string{"status", "priority"}),
		ackLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_ack_seconds",
			Help:      "Time from send to confirmed acknowledgement.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deliveries_in_flight",
			Help:      "Deliveries currently being attempted.",
		}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Broadcasts by aggregate result.",
		}, []string{"result"}),
		sessionAlive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_alive",
			Help:      "1 when the multiplexer session exists.",
		}, []string{"session"}),
		sessionPanes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_panes",
			Help:      "Panes observed in the session at the last health check.",
		}, []string{"session"}),
		eventDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events a slow subscriber missed.",
		}, []string{"bus"}),
	}
	r.registry.MustRegister(
		r.attempts,
		r.deliveries,
		r.ackLatency,
		r.inFlight,
		r.broadcasts,
		r.sessionAlive,
		r.sessionPanes,
		r.eventDrops,
	)
	if runtime {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// OutcomeAcked is the attempt outcome whose latency feeds the ack histogram.
const OutcomeAcked = "acked"

// ObserveAttempt counts one attempt. Latency is recorded only for acked
// attempts.
func (r *Registry) ObserveAttempt(outcome string, latency time.Duration) {
	if r == nil {
		return
	}
	outcome = label(outcome)
	r.attempts.WithLabelValues(outcome).Inc()
	if outcome == OutcomeAcked {
		r.ackLatency.Observe(latency.Seconds())
	}
}

func (r *Registry) ObserveDelivery(status, priority string) {
	if r == nil {
		return
	}
	r.deliveries.WithLabelValues(label(status), label(priority)).Inc()
}

func (r *Registry) IncInFlight() {
	if r == nil {
		return
	}
	r.inFlight.Inc()
}

func (r *Registry) DecInFlight() {
	if r == nil {
		return
	}
	r.inFlight.Dec()
}

func (r *Registry) ObserveBroadcast(result string) {
	if r == nil {
		return
	}
	r.broadcasts.WithLabelValues(label(result)).Inc()
}

func (r *Registry) SetSessionHealth(session string, alive bool, panes int) {
	if r == nil {
		return
	}
	value := 0.0
	if alive {
		value = 1
	}
	session = label(session)
	r.sessionAlive.WithLabelValues(session).Set(value)
	r.sessionPanes.WithLabelValues(session).Set(float64(panes))
}

func (r *Registry) ObserveEventDropped(bus string) {
	if r == nil {
		return
	}
	r.eventDrops.WithLabelValues(label(bus)).Inc()
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{})
}

// WriteText dumps every metric family in the Prometheus text format.
func (r *Registry) WriteText(w io.Writer) error {
	if r == nil {
		return nil
	}
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}

func label(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
