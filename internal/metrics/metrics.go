// Package metrics provides Prometheus metrics for gobengali.
//
// Features:
//   - Counters for analysis outcomes, accepts, rejects, quota denials
//   - Counters for transliteration sources, view syncs, suppressed changes
//   - Histograms for analysis and collaborator request latency
//   - Gauges over the live quota usage
//   - Optional HTTP endpoint for scraping
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gobengali/internal/quota"
)

// Namespace prefixes every metric name.
const Namespace = "gobengali"

// DurationBuckets cover an interactive request, from 10ms to a timeout.
var DurationBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics holds the editor's collectors. It satisfies the controller's
// recorder and the service client's observer.
type Metrics struct {
	registry *prometheus.Registry

	AnalysesTotal        *prometheus.CounterVec
	AnalysisDuration     *prometheus.HistogramVec
	AnalysesSkippedTotal *prometheus.CounterVec
	AcceptsTotal         prometheus.Counter
	RejectsTotal         prometheus.Counter
	QuotaDenialsTotal    prometheus.Counter
	SuggestionsTotal     *prometheus.CounterVec
	SyncPushesTotal      prometheus.Counter
	ChangesSuppressed    prometheus.Counter
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry. The registry also
// carries the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegisterer(reg, reg)
}

// NewWithRegisterer creates the collectors on registerer. registry backs
// Handler and may be nil when the caller serves metrics itself.
func NewWithRegisterer(registerer prometheus.Registerer, registry *prometheus.Registry) *Metrics {
	f := promauto.With(registerer)

	return &Metrics{
		registry: registry,

		AnalysesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "analyses_total",
				Help:      "Finished analyses by outcome",
			},
			[]string{"outcome"},
		),
		AnalysisDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Analysis latency from request to result in seconds",
				Buckets:   DurationBuckets,
			},
			[]string{"outcome"},
		),
		AnalysesSkippedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "analyses_skipped_total",
				Help:      "Analyses not sent to the service by reason",
			},
			[]string{"reason"},
		),
		AcceptsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "accepts_total",
			Help:      "Corrections applied to the buffer",
		}),
		RejectsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rejects_total",
			Help:      "Corrections dismissed without changing the buffer",
		}),
		QuotaDenialsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "quota_denials_total",
			Help:      "Accepts refused because the daily limit was reached",
		}),
		SuggestionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "transliteration_suggestions_total",
				Help:      "Transliteration lookups by the source that answered",
			},
			[]string{"source"},
		),
		SyncPushesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "view_sync_pushes_total",
			Help:      "Buffer contents pushed to the editor view",
		}),
		ChangesSuppressed: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "view_changes_suppressed_total",
			Help:      "Editor change events absorbed by the sync cooldown",
		}),
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "service_requests_total",
				Help:      "Collaborator requests by operation and status",
			},
			[]string{"op", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "service_request_duration_seconds",
				Help:      "Collaborator request latency in seconds",
				Buckets:   DurationBuckets,
			},
			[]string{"op"},
		),
	}
}

// Registry returns the registry backing Handler, or nil.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// AnalysisFinished records a delivered analysis result.
func (m *Metrics) AnalysisFinished(outcome string, latency time.Duration) {
	m.AnalysesTotal.WithLabelValues(outcome).Inc()
	m.AnalysisDuration.WithLabelValues(outcome).Observe(latency.Seconds())
}

// AnalysisSkipped records an analysis held back before the request.
func (m *Metrics) AnalysisSkipped(reason string) {
	m.AnalysesSkippedTotal.WithLabelValues(reason).Inc()
}

// Accepted records n applied corrections.
func (m *Metrics) Accepted(n int) {
	if n > 0 {
		m.AcceptsTotal.Add(float64(n))
	}
}

// Rejected records n dismissed corrections.
func (m *Metrics) Rejected(n int) {
	if n > 0 {
		m.RejectsTotal.Add(float64(n))
	}
}

func (m *Metrics) QuotaDenied()            { m.QuotaDenialsTotal.Inc() }
func (m *Metrics) Suggested(source string) { m.SuggestionsTotal.WithLabelValues(source).Inc() }
func (m *Metrics) SyncPushed()             { m.SyncPushesTotal.Inc() }
func (m *Metrics) ChangeSuppressed()       { m.ChangesSuppressed.Inc() }

// ObserveRequest records one collaborator call.
func (m *Metrics) ObserveRequest(op string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(op, status).Inc()
	m.RequestDuration.WithLabelValues(op).Observe(d.Seconds())
}

// WatchQuota exports the tracker's usage as gauges read at scrape time.
func (m *Metrics) WatchQuota(registerer prometheus.Registerer, t *quota.Tracker) {
	if registerer == nil {
		registerer = m.registry
	}
	f := promauto.With(registerer)
	gauge := func(name, help string, value func(quota.Usage) float64) {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "quota",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(t.Usage()) })
	}
	gauge("words_used", "Words analyzed today", func(u quota.Usage) float64 { return float64(u.WordsUsed) })
	gauge("words_limit", "Daily word limit of the free tier", func(u quota.Usage) float64 { return float64(u.WordsLimit) })
	gauge("accepts_used", "Corrections accepted today", func(u quota.Usage) float64 { return float64(u.AcceptsUsed) })
	gauge("accepts_limit", "Daily accept limit of the free tier", func(u quota.Usage) float64 { return float64(u.AcceptsLimit) })
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server exposes /metrics on a listen address.
type Server struct {
	srv *http.Server
	mux *http.ServeMux
	ln  net.Listener
	log *slog.Logger
}

// Serve starts an HTTP server for m on addr and returns once it is listening.
func (m *Metrics) Serve(addr string, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		mux: mux,
		ln:  ln,
		log: log.With("component", "metrics"),
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server stopped", "error", err)
		}
	}()
	s.log.Info("serving metrics", "addr", ln.Addr().String())
	return s, nil
}

// Handle adds a route next to /metrics, e.g. a health endpoint.
func (s *Server) Handle(pattern string, h http.Handler) { s.mux.Handle(pattern, h) }

// Addr returns the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
