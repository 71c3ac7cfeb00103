// Package metrics holds the process-wide Prometheus collectors scraped
// at GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engine",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "engine",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	ActiveStreams = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "engine",
		Name:      "active_streams",
		Help:      "Number of streams currently tracked by the registry, by status.",
	}, []string{"status"})

	AdmissionSlotsInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "engine",
		Name:      "admission_slots_in_use",
		Help:      "Number of concurrent-stream admission slots currently held.",
	})

	AdmissionRejectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "engine",
		Name:      "admission_rejections_total",
		Help:      "Total number of stream creation requests rejected by admission control.",
	})

	PeersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "engine",
		Name:      "peers_connected",
		Help:      "Total number of peers connected across all active torrents.",
	})

	DownloadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "engine",
		Name:      "download_speed_bytes",
		Help:      "Current aggregate download speed in bytes per second.",
	})

	UploadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "engine",
		Name:      "upload_speed_bytes",
		Help:      "Current aggregate upload speed in bytes per second.",
	})

	HLSActiveJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "engine",
		Name:      "hls_active_jobs",
		Help:      "Number of currently active HLS packaging jobs.",
	})

	HLSJobStartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "engine",
		Name:      "hls_job_starts_total",
		Help:      "Total number of HLS packaging jobs started.",
	})

	HLSJobFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engine",
		Name:      "hls_job_failures_total",
		Help:      "Total number of HLS packaging job failures by kind.",
	}, []string{"kind"})

	HLSEncodeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "engine",
		Name:      "hls_encode_duration_seconds",
		Help:      "Duration of FFmpeg packaging jobs in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
	})

	HLSAutoRestartsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engine",
		Name:      "hls_auto_restarts_total",
		Help:      "Total number of HLS packaging auto-restarts by reason.",
	}, []string{"reason"})

	JanitorSweepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "engine",
		Name:      "janitor_sweeps_total",
		Help:      "Total number of janitor sweep cycles run.",
	})

	JanitorReclaimedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "engine",
		Name:      "janitor_reclaimed_streams_total",
		Help:      "Total number of abandoned streams reclaimed by the janitor.",
	})
)

// Register registers every collector against reg. Call once at
// startup, before the HTTP server begins serving /metrics.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ActiveStreams,
		AdmissionSlotsInUse,
		AdmissionRejectionsTotal,
		PeersConnected,
		DownloadSpeedBytes,
		UploadSpeedBytes,
		HLSActiveJobs,
		HLSJobStartsTotal,
		HLSJobFailuresTotal,
		HLSEncodeDuration,
		HLSAutoRestartsTotal,
		JanitorSweepsTotal,
		JanitorReclaimedTotal,
	)
}
