package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_monitoring_reports_total",
		Help: "Report jobs by terminal status.",
	}, []string{"status"})
	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "store_monitoring_report_duration_seconds",
		Help:    "Duration of a full report generation.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
	StoresComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_monitoring_stores_computed_total",
		Help: "Stores whose uptime was computed successfully.",
	})
	StoreFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_monitoring_store_failures_total",
		Help: "Stores excluded from a report because their computation failed.",
	})
	ObservationsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_monitoring_observations_ingested_total",
		Help: "Status observations inserted, by ingestion source.",
	}, []string{"source"})
	ObservationsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_monitoring_observations_rejected_total",
		Help: "Malformed status observations skipped, by ingestion source.",
	}, []string{"source"})
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_monitoring_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
)
