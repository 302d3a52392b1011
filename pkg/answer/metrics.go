package answer

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded for every POST /chat.
const (
	OutcomeAnswered = "answered"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "answerer_failed"
)

// Metrics holds the answering service's Prometheus collectors. Each Server
// registers into its own registry so several can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ChatsTotal      *prometheus.CounterVec
	AnswerDuration  prometheus.Histogram
	HistoryLength   prometheus.Histogram
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "supportchat",
				Subsystem: "answer",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "supportchat",
				Subsystem: "answer",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"method", "path"},
		),
		ChatsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "supportchat",
				Subsystem: "answer",
				Name:      "chats_total",
				Help:      "Chat exchanges by outcome",
			},
			[]string{"outcome"},
		),
		AnswerDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "supportchat",
				Subsystem: "answer",
				Name:      "answerer_duration_seconds",
				Help:      "Time spent waiting for the answerer",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		HistoryLength: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "supportchat",
				Subsystem: "answer",
				Name:      "history_length",
				Help:      "Number of history entries carried by each chat request",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordRequest(method, path string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) RecordChat(outcome string) {
	m.ChatsTotal.WithLabelValues(outcome).Inc()
}
