// Package metrics exposes client-side counters for Prometheus.
//
// All recording methods are safe on a nil *Metrics, so components can take
// one optionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "assettrack"

type Metrics struct {
	registry *prometheus.Registry

	logins          prometheus.Counter
	logouts         prometheus.Counter
	expiries        prometheus.Counter
	redirects       prometheus.Counter
	authenticated   prometheus.Gauge
	searches        prometheus.Counter
	staleResponses  prometheus.Counter
	searchErrors    prometheus.Counter
	saves           *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New builds a private registry with Go runtime collectors and the client
// counters registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "auth", Name: "logins_total",
			Help: "Successful logins.",
		}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "auth", Name: "logouts_total",
			Help: "Explicit logouts.",
		}),
		expiries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "auth", Name: "session_expiries_total",
			Help: "Sessions ended by an unauthorized response.",
		}),
		redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "auth", Name: "login_redirects_total",
			Help: "Redirects of unauthenticated users to the login page.",
		}),
		authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "auth", Name: "authenticated_contexts",
			Help: "Browsing contexts currently authenticated.",
		}),
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "dispatched_total",
			Help: "Search requests sent to the backend.",
		}),
		staleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "stale_responses_total",
			Help: "Search responses dropped because a newer request superseded them.",
		}),
		searchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "errors_total",
			Help: "Search requests that failed.",
		}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "saves_total",
			Help: "Save attempts by outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "api", Name: "request_duration_seconds",
			Help:    "REST request latency by endpoint and status class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.logins, m.logouts, m.expiries, m.redirects, m.authenticated,
		m.searches, m.staleResponses, m.searchErrors, m.saves, m.requestDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Login() {
	if m != nil {
		m.logins.Inc()
	}
}

func (m *Metrics) Logout() {
	if m != nil {
		m.logouts.Inc()
	}
}

func (m *Metrics) SessionExpired() {
	if m != nil {
		m.expiries.Inc()
	}
}

func (m *Metrics) LoginRedirect() {
	if m != nil {
		m.redirects.Inc()
	}
}

// AuthChanged moves the authenticated gauge by +1 or -1.
func (m *Metrics) AuthChanged(authenticated bool) {
	if m == nil {
		return
	}
	if authenticated {
		m.authenticated.Inc()
	} else {
		m.authenticated.Dec()
	}
}

func (m *Metrics) SearchDispatched() {
	if m != nil {
		m.searches.Inc()
	}
}

func (m *Metrics) StaleResponse() {
	if m != nil {
		m.staleResponses.Inc()
	}
}

func (m *Metrics) SearchFailed() {
	if m != nil {
		m.searchErrors.Inc()
	}
}

// Save records a save attempt; outcome is "ok", "invalid" or "error".
func (m *Metrics) Save(outcome string) {
	if m != nil {
		m.saves.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveRequest(endpoint, status string, seconds float64) {
	if m != nil {
		m.requestDuration.WithLabelValues(endpoint, status).Observe(seconds)
	}
}
