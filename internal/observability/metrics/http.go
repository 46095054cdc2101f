package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

const namespace = "hub"

var authStates = []domain.SessionState{
	domain.SessionNone,
	domain.SessionAuthenticating,
	domain.SessionAuthenticated,
	domain.SessionRevoked,
	domain.SessionExpired,
}

// HTTPServerMetrics covers the local API and the dashboard refresh pipeline.
// It satisfies ports.RefreshObserver.
type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	fetchTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	cyclesTotal   *prometheus.CounterVec
	staleDrops    *prometheus.CounterVec
	checklistPct  prometheus.Gauge
	checklistDone prometheus.Gauge
	authState     *prometheus.GaugeVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		},
	)
	fetchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "source_fetch_total",
			Help:      "Data source fetches by source and outcome.",
		},
		[]string{"service", "source", "outcome"},
	)
	fetchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "source_fetch_duration_seconds",
			Help:      "Data source fetch duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"service", "source"},
	)
	cyclesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "refresh_cycles_total",
			Help:      "Completed refresh cycles by mode.",
		},
		[]string{"service", "mode"},
	)
	staleDrops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "stale_results_dropped_total",
			Help:      "Source results discarded because a newer cycle already applied.",
		},
		[]string{"service", "source"},
	)
	checklistPct := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "checklist",
			Name:        "completion_percent",
			Help:        "Rounded checklist completion percentage.",
			ConstLabels: constLabels,
		},
	)
	checklistDone := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "checklist",
			Name:        "completed_items",
			Help:        "Number of completed checklist items.",
			ConstLabels: constLabels,
		},
	)
	authState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "auth",
			Name:        "session_state",
			Help:        "1 for the current session state, 0 otherwise.",
			ConstLabels: constLabels,
		},
		[]string{"state"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		fetchTotal,
		fetchDuration,
		cyclesTotal,
		staleDrops,
		checklistPct,
		checklistDone,
		authState,
	)

	return &HTTPServerMetrics{
		registry:        registry,
		service:         service,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		fetchTotal:      fetchTotal,
		fetchDuration:   fetchDuration,
		cyclesTotal:     cyclesTotal,
		staleDrops:      staleDrops,
		checklistPct:    checklistPct,
		checklistDone:   checklistDone,
		authState:       authState,
	}
}

func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds ids out of the path so label cardinality stays bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/checklist/"):
		parts := strings.Split(strings.TrimPrefix(path, "/v1/checklist/"), "/")
		switch {
		case len(parts) == 1:
			return "/v1/checklist/{id}"
		case len(parts) == 2:
			return "/v1/checklist/{id}/" + parts[1]
		default:
			return "/v1/checklist/{id}/" + parts[1] + "/{index}"
		}
	case strings.HasPrefix(path, "/v1/blobs/"):
		return "/v1/blobs/{ref}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) ObserveFetch(source domain.SourceName, outcome string, elapsed time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.fetchTotal.WithLabelValues(m.service, string(source), outcome).Inc()
	if elapsed > 0 {
		m.fetchDuration.WithLabelValues(m.service, string(source)).Observe(elapsed.Seconds())
	}
}

func (m *HTTPServerMetrics) ObserveCycle(live bool) {
	mode := "mock"
	if live {
		mode = "live"
	}
	m.cyclesTotal.WithLabelValues(m.service, mode).Inc()
}

func (m *HTTPServerMetrics) ObserveStaleDrop(source domain.SourceName) {
	m.staleDrops.WithLabelValues(m.service, string(source)).Inc()
}

func (m *HTTPServerMetrics) SetProgress(snapshot domain.ProgressSnapshot) {
	m.checklistPct.Set(float64(snapshot.Percentage))
	m.checklistDone.Set(float64(snapshot.Completed))
}

func (m *HTTPServerMetrics) SetAuthState(state domain.SessionState) {
	for _, s := range authStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.authState.WithLabelValues(string(s)).Set(v)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
