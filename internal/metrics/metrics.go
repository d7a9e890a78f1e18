// Package metrics exposes Prometheus collectors for received sensor readings.
package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry     *prometheus.Registry
	messages     *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	readingValue *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensor_messages_total",
			Help: "Total messages received per connection and channel.",
		}, []string{"connection", "channel"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensor_decode_errors_total",
			Help: "Total payloads that did not decode as a reading.",
		}, []string{"connection", "channel"}),
		readingValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sensor_reading_value",
			Help: "Last reading value received per channel.",
		}, []string{"connection", "channel", "units"}),
	}

	m.registry.MustRegister(m.messages, m.decodeErrors, m.readingValue)
	return m
}

func (m *Metrics) ObserveReading(connection, channel, units string, value float64) {
	m.messages.WithLabelValues(connection, channel).Inc()
	m.readingValue.WithLabelValues(connection, channel, units).Set(value)
}

func (m *Metrics) ObserveDecodeError(connection, channel string) {
	m.messages.WithLabelValues(connection, channel).Inc()
	m.decodeErrors.WithLabelValues(connection, channel).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Router serves /metrics and /healthz
func (m *Metrics) Router() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	return r
}
