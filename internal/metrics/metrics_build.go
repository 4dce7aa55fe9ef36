package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embuild_build_failed_total",
			Help: "Number of times a build has failed, by lifecycle stage",
		},
		[]string{"stage"},
	)

	BuildCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "embuild_build_count_total",
			Help: "Total number of builds",
		},
	)

	BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "embuild_build_duration_seconds",
			Help:    "Build duration in seconds",
			Buckets: []float64{0.1, 0.2, 0.5, 1, 1.5, 2, 5, 10, 30, 60},
		},
	)

	LastBuildEnd = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "embuild_last_build_end_timestamp",
			Help: "Unix timestamp of when the last build ended",
		},
	)

	FilesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "embuild_files_written_total",
			Help: "Number of output files written",
		},
	)
)
