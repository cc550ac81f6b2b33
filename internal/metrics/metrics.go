// internal/metrics/metrics.go
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tamzrod/coupler-io/internal/decode"
	"github.com/tamzrod/coupler-io/internal/status"
	"github.com/tamzrod/coupler-io/internal/transport"
)

const namespace = "couplerio"

// Metrics holds every collector the engine updates.
type Metrics struct {
	channelValue *prometheus.GaugeVec
	readings     *prometheus.CounterVec
	cycles       prometheus.Counter
	cardErrors   *prometheus.CounterVec
	linkState    prometheus.Gauge
	reconnects   prometheus.Counter
	writes       *prometheus.CounterVec
	health       prometheus.Gauge
	secondsInErr prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		channelValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_value",
			Help:      "Last decoded channel value (bool as 0/1, celsius, ohms, volts, percent, scaled).",
		}, []string{"card", "channel", "field"}),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Channel readings emitted, by state.",
		}, []string{"card", "state"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Poll cycles that read at least one card.",
		}),
		cardErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "card_read_errors_total",
			Help:      "Failed card reads.",
		}, []string{"card"}),
		linkState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_state",
			Help:      "Coupler session state (0 disconnected, 1 connecting, 2 connected, 3 reconnect pending).",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_drops_total",
			Help:      "Transitions into the disconnected state.",
		}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Write commands, by outcome.",
		}, []string{"card", "result"}),
		health: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health",
			Help:      "Engine health code (0 unknown, 1 ok, 2 error, 4 disabled).",
		}),
		secondsInErr: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "seconds_in_error",
			Help:      "Seconds spent in the current error state.",
		}),
	}

	reg.MustRegister(
		m.channelValue, m.readings, m.cycles, m.cardErrors,
		m.linkState, m.reconnects, m.writes, m.health, m.secondsInErr,
	)
	return m
}

// Reading records one channel reading.
func (m *Metrics) Reading(r decode.Reading) {
	m.readings.WithLabelValues(r.Topic, string(r.State)).Inc()

	ch := strconv.Itoa(r.Channel)
	// absent fields drop their series so no stale value is scraped
	set := func(field string, v *float64) {
		if v == nil {
			m.channelValue.DeleteLabelValues(r.Topic, ch, field)
			return
		}
		m.channelValue.WithLabelValues(r.Topic, ch, field).Set(*v)
	}

	var value *float64
	if r.Value != nil {
		v := 0.0
		if *r.Value {
			v = 1
		}
		value = &v
	}
	set("value", value)
	set("celsius", r.Celsius)
	set("resistance", r.Resistance)
	set("volts", r.Volts)
	set("percent", r.Percent)
	set("scaled", r.Scaled)
}

// Cycle records a completed poll cycle.
func (m *Metrics) Cycle(failedCards []string) {
	m.cycles.Inc()
	for _, c := range failedCards {
		m.cardErrors.WithLabelValues(c).Inc()
	}
}

// Link records a session state change.
func (m *Metrics) Link(s transport.State) {
	m.linkState.Set(float64(s))
	if s == transport.Disconnected {
		m.reconnects.Inc()
	}
}

// Write records a write command outcome.
func (m *Metrics) Write(card string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.writes.WithLabelValues(card, result).Inc()
}

// Status mirrors the health snapshot.
func (m *Metrics) Status(s status.Snapshot) {
	m.health.Set(float64(s.Health))
	m.secondsInErr.Set(float64(s.SecondsInError))
}
