package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics tracks the periodic jobs: auto-save, live refresh and page audit.
type JobMetrics struct {
	service string

	runTotal    *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	inFlight    prometheus.Gauge
	lastSuccess *prometheus.GaugeVec
}

func NewJobMetrics(service string, registerer prometheus.Registerer) *JobMetrics {
	runTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Total scheduled job runs by status.",
		},
		[]string{"service", "job", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "run_duration_seconds",
			Help:      "Scheduled job duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "job"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "in_flight",
			Help:      "Number of running scheduled jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	lastSuccess := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		},
		[]string{"service", "job"},
	)

	registerer.MustRegister(runTotal, runDuration, inFlight, lastSuccess)

	return &JobMetrics{
		service:     service,
		runTotal:    runTotal,
		runDuration: runDuration,
		inFlight:    inFlight,
		lastSuccess: lastSuccess,
	}
}

// Wrap instruments a scheduled job.
func (m *JobMetrics) Wrap(name string, job func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		m.inFlight.Inc()
		start := time.Now()
		err := job(ctx)
		m.inFlight.Dec()

		status := "success"
		if err != nil {
			status = "error"
		} else {
			m.lastSuccess.WithLabelValues(m.service, name).Set(float64(time.Now().Unix()))
		}
		m.runTotal.WithLabelValues(m.service, name, status).Inc()
		m.runDuration.WithLabelValues(m.service, name).Observe(time.Since(start).Seconds())
		return err
	}
}
