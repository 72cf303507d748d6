package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	Logins    *prometheus.CounterVec
	Refreshes *prometheus.CounterVec
	Logouts   *prometheus.CounterVec
	Purged    prometheus.Counter
}

// New registers the auth counters on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_refresh_total",
			Help: "Refresh attempts by result.",
		}, []string{"result"}),
		Logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logout_total",
			Help: "Logout calls by whether a session was revoked.",
		}, []string{"revoked"}),
		Purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_sessions_purged_total",
			Help: "Expired refresh sessions deleted by maintenance.",
		}),
	}
	reg.MustRegister(
		m.Logins, m.Refreshes, m.Logouts, m.Purged,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
