package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toonreel_jobs_processed_total",
		Help: "Total number of render jobs processed, by outcome",
	}, []string{"status"})

	JobStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "toonreel_job_stage_duration_seconds",
		Help:    "Duration of render pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesSegmentedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "toonreel_frames_segmented_total",
		Help: "Total number of frames produced by image segmentation",
	})

	NarrationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "toonreel_narration_failures_total",
		Help: "Narration syntheses that fell back to the default duration",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "toonreel_active_workers",
		Help: "Number of currently active workers processing render jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toonreel_retry_total",
		Help: "Total number of job retries",
	}, []string{"attempt"})
)
