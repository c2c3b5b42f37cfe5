package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "intelliwatt_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestRows     *prometheus.CounterVec
	ingestDropped  *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	estimateTotal   *prometheus.CounterVec
	estimateLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total raw reading ingest requests by source and result",
			},
			[]string{"source", "result"},
		)
		ingestRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_rows_total",
				Help: "Total raw reading rows accepted by source",
			},
			[]string{"source"},
		)
		ingestDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_rows_dropped_total",
				Help: "Total raw reading rows dropped by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		estimateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "estimate_total",
				Help: "Total plan cost estimates by status",
			},
			[]string{"status"},
		)
		estimateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "estimate_latency_seconds",
				Help:    "Plan cost estimate latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total estimate export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Estimate export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestRows,
			ingestDropped,
			ingestLatency,
			estimateTotal,
			estimateLatency,
			exportTotal,
			exportLatency,
		)
	})
}

func resultLabel(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// ObserveIngest records one ingest request.
func ObserveIngest(source string, accepted int, dropped map[string]int, err error, elapsed time.Duration) {
	if ingestRequests == nil {
		return
	}
	result := resultLabel(err)
	ingestRequests.WithLabelValues(source, result).Inc()
	ingestLatency.WithLabelValues(result).Observe(elapsed.Seconds())
	if err != nil {
		return
	}
	ingestRows.WithLabelValues(source).Add(float64(accepted))
	for reason, count := range dropped {
		ingestDropped.WithLabelValues(reason).Add(float64(count))
	}
}

// ObserveEstimate records one plan cost estimate.
func ObserveEstimate(status string, elapsed time.Duration) {
	if estimateTotal == nil {
		return
	}
	estimateTotal.WithLabelValues(status).Inc()
	estimateLatency.WithLabelValues(status).Observe(elapsed.Seconds())
}

// ObserveExport records one estimate export.
func ObserveExport(format string, err error, elapsed time.Duration) {
	if exportTotal == nil {
		return
	}
	result := resultLabel(err)
	exportTotal.WithLabelValues(format, result).Inc()
	exportLatency.WithLabelValues(format, result).Observe(elapsed.Seconds())
}
