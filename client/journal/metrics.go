package journal

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts exchanges in Prometheus.
type Metrics struct {
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewMetrics registers the client counters with reg. A nil reg selects
// prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "connector_client",
				Name:      "requests_total",
				Help:      "HTTP exchanges completed, by method and status code.",
			},
			[]string{"method", "code"},
		),
		failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "connector_client",
				Name:      "request_failures_total",
				Help:      "HTTP exchanges that ended in an error, by method and status code (0 when none was received).",
			},
			[]string{"method", "code"},
		),
	}
}

// AddSuccess increments requests_total.
func (m *Metrics) AddSuccess(req *http.Request, resp *http.Response) {
	m.requests.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()
}

// AddFailure increments request_failures_total.
func (m *Metrics) AddFailure(req *http.Request, err error) {
	m.failures.WithLabelValues(req.Method, strconv.Itoa(statusCode(err))).Inc()
}
