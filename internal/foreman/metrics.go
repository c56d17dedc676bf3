package foreman

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registration outcomes recorded in hostenroll_registrations_total.
const (
	resultRegistered = "registered"
	resultFailed     = "failed"
)

// Metrics records controller traffic and registration outcomes.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	registrations   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostenroll_foreman_requests_total",
				Help: "Total number of requests sent to the Foreman API.",
			},
			[]string{"method", "resource", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hostenroll_foreman_request_duration_seconds",
				Help:    "Foreman API request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "resource"},
		),
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostenroll_registrations_total",
				Help: "Host registration attempts by result.",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.registrations)
	return m
}

// observeRequest records one controller round trip. status 0 means the
// request never produced a response.
func (m *Metrics) observeRequest(method, resource string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	collection := resourceLabel(resource)
	m.requestsTotal.WithLabelValues(method, collection, label).Inc()
	m.requestDuration.WithLabelValues(method, collection).Observe(d.Seconds())
}

func (m *Metrics) observeRegistration(result string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(result).Inc()
}

// resourceLabel keeps label cardinality bounded: "hosts/web01" -> "hosts".
func resourceLabel(resource string) string {
	resource = strings.TrimLeft(resource, "/")
	if i := strings.IndexByte(resource, '/'); i >= 0 {
		return resource[:i]
	}
	return resource
}
