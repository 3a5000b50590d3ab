package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "findmy_agent"

// Metrics holds the agent's prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RecordsRead     prometheus.Counter
	RecordsRejected *prometheus.CounterVec
	Forwarded       *prometheus.CounterVec
	Cycles          *prometheus.CounterVec
	DevicesTracked  prometheus.Gauge
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RecordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_records_read_total",
			Help:      "Number of records decoded from the location cache",
		}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_records_rejected_total",
			Help:      "Number of cache records dropped by the filter, by reason",
		}, []string{"reason"}),
		Forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forwarded_records_total",
			Help:      "Number of accepted records handed to the forwarder, by outcome",
		}, []string{"outcome"}),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Number of poll cycles, by result",
		}, []string{"result"}),
		DevicesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices_tracked",
			Help:      "Number of devices with a committed last-seen timestamp",
		}),
	}

	m.registry.MustRegister(
		m.RecordsRead,
		m.RecordsRejected,
		m.Forwarded,
		m.Cycles,
		m.DevicesTracked,
	)

	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRead counts decoded cache records.
func (m *Metrics) ObserveRead(n int) {
	if m == nil {
		return
	}
	m.RecordsRead.Add(float64(n))
}

// ObserveRejected counts filtered records for reason.
func (m *Metrics) ObserveRejected(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.RecordsRejected.WithLabelValues(reason).Add(float64(n))
}

// ObserveForwarded counts one forward outcome.
func (m *Metrics) ObserveForwarded(outcome string) {
	if m == nil {
		return
	}
	m.Forwarded.WithLabelValues(outcome).Inc()
}

// ObserveCycle counts a finished poll cycle.
func (m *Metrics) ObserveCycle(result string) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(result).Inc()
}

// SetDevicesTracked records the size of the committed device state.
func (m *Metrics) SetDevicesTracked(n int) {
	if m == nil {
		return
	}
	m.DevicesTracked.Set(float64(n))
}
