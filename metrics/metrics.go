// Package metrics exposes reporteer's Prometheus collectors and the server
// that serves them.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Startup step outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// AttestationStatusUnavailable is reported while no report is published.
const AttestationStatusUnavailable = "unavailable"

var attestationStatuses = []string{AttestationStatusUnavailable, "generated", "verified"}

type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server

	StartupSteps         *prometheus.CounterVec
	FingerprintAvailable prometheus.Gauge
	AttestationStatus    *prometheus.GaugeVec
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

// New registers all collectors under namespace on a private registry. The
// returned server listens on addr once ListenAndServe is called.
func New(namespace, addr string) (*MetricsServer, error) {
	m := &MetricsServer{
		registry: prometheus.NewRegistry(),
		StartupSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "startup_steps_total",
			Help:      "Startup and refresh steps by outcome.",
		}, []string{"step", "outcome"}),
		FingerprintAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fingerprint_available",
			Help:      "1 if the derived key fingerprint was computed, 0 if the sentinel is served.",
		}),
		AttestationStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "attestation_status",
			Help:      "Currently published attestation report status (one-hot).",
		}, []string{"status"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	for _, c := range []prometheus.Collector{
		m.StartupSteps,
		m.FingerprintAvailable,
		m.AttestationStatus,
		m.HTTPRequests,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	m.SetAttestationStatus(AttestationStatusUnavailable)

	m.srv = &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsServer) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
	return mux
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

// RecordStartupStep counts one execution of step. Safe on a nil receiver.
func (m *MetricsServer) RecordStartupStep(step, outcome string) {
	if m == nil {
		return
	}
	m.StartupSteps.WithLabelValues(step, outcome).Inc()
}

// SetFingerprintAvailable is safe on a nil receiver.
func (m *MetricsServer) SetFingerprintAvailable(available bool) {
	if m == nil {
		return
	}
	if available {
		m.FingerprintAvailable.Set(1)
	} else {
		m.FingerprintAvailable.Set(0)
	}
}

// SetAttestationStatus marks status as the published one. Safe on a nil receiver.
func (m *MetricsServer) SetAttestationStatus(status string) {
	if m == nil {
		return
	}
	for _, s := range attestationStatuses {
		m.AttestationStatus.WithLabelValues(s).Set(0)
	}
	m.AttestationStatus.WithLabelValues(status).Set(1)
}

// Middleware counts requests by chi route pattern. Requests that match no
// route are counted as "unmatched".
func (m *MetricsServer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
