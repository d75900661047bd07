// Package metrics exposes Prometheus counters for handshake outcomes.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/MGallo-Code/botauth/internal/provider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records handshake and exchange events. A nil *Metrics is a no-op.
type Metrics struct {
	handshakes *prometheus.CounterVec
	exchanges  *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "botauth",
			Name:      "handshake_events_total",
			Help:      "Handshake state transitions by outcome and provider.",
		}, []string{"outcome", "provider"}),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "botauth",
			Name:      "provider_exchanges_total",
			Help:      "Provider token exchanges by provider and result.",
		}, []string{"provider", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "botauth",
			Name:      "provider_exchange_seconds",
			Help:      "Time spent completing a provider exchange.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}

	var err error
	if m.handshakes, err = register(reg, m.handshakes); err != nil {
		return nil, err
	}
	if m.exchanges, err = register(reg, m.exchanges); err != nil {
		return nil, err
	}
	if m.latency, err = register(reg, m.latency); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing an identical collector that is already there.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, err
}

// Handshake counts one coordinator event ("prompted", "code_issued", "succeeded", "mismatch", "exchange_failed").
func (m *Metrics) Handshake(outcome string, p provider.ID) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(outcome, string(p)).Inc()
}

// Exchange counts one provider round trip and observes its duration.
func (m *Metrics) Exchange(p provider.ID, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.exchanges.WithLabelValues(string(p), result).Inc()
	m.latency.WithLabelValues(string(p)).Observe(d.Seconds())
}

// Handler serves the exposition format for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
