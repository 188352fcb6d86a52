package lgtv

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-lgtv/internal/rs232"
)

// Request results used as the "result" label.
const (
	resultOK    = "ok"
	resultNACK  = "nack"
	resultError = "error"
)

// Metrics holds the bridge's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	powerOn       *prometheus.GaugeVec
	volume        *prometheus.GaugeVec
	muted         *prometheus.GaugeVec
	entriesLoaded prometheus.Gauge

	requests    *prometheus.CounterVec
	validations *prometheus.CounterVec
	pollErrors  prometheus.Counter
}

// NewMetrics creates the collectors and registers them on a private registry.
func NewMetrics() *Metrics {
	entityLabels := []string{"entity_id"}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		powerOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lgtv_power_on",
			Help: "Whether the set reports power on (1=on, 0=standby)",
		}, entityLabels),
		volume: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lgtv_volume_level",
			Help: "Last reported volume (0-100)",
		}, entityLabels),
		muted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lgtv_muted",
			Help: "Whether the set reports mute (1=muted, 0=unmuted)",
		}, entityLabels),
		entriesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lgtv_entries_loaded",
			Help: "Config entries that passed validation and are running",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lgtv_requests_total",
			Help: "RS232 commands sent, by category and result (ok, nack, error)",
		}, []string{"category", "result"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lgtv_validations_total",
			Help: "Connection validations, by result (ok or form error key)",
		}, []string{"result"}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lgtv_poll_errors_total",
			Help: "Entity updates that failed during polling",
		}),
	}

	m.registry.MustRegister(
		m.powerOn, m.volume, m.muted, m.entriesLoaded,
		m.requests, m.validations, m.pollErrors,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) observeRequest(category string, ok bool, err error) {
	if m == nil {
		return
	}
	result := resultOK
	switch {
	case err != nil:
		result = resultError
	case !ok:
		result = resultNACK
	}
	m.requests.WithLabelValues(category, result).Inc()
}

func (m *Metrics) observeValidation(err error) {
	if m == nil {
		return
	}
	result := resultOK
	if err != nil {
		result = Classify(err)
	}
	m.validations.WithLabelValues(result).Inc()
}

func (m *Metrics) observePollError() {
	if m == nil {
		return
	}
	m.pollErrors.Inc()
}

func (m *Metrics) setEntriesLoaded(n int) {
	if m == nil {
		return
	}
	m.entriesLoaded.Set(float64(n))
}

func (m *Metrics) observeStatus(entityID string, s rs232.Status) {
	if m == nil {
		return
	}
	m.powerOn.WithLabelValues(entityID).Set(boolGauge(s.On))
	m.volume.WithLabelValues(entityID).Set(float64(s.Volume))
	m.muted.WithLabelValues(entityID).Set(boolGauge(s.Muted))
}

func (m *Metrics) forgetEntity(entityID string) {
	if m == nil {
		return
	}
	m.powerOn.DeleteLabelValues(entityID)
	m.volume.DeleteLabelValues(entityID)
	m.muted.DeleteLabelValues(entityID)
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
