package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framepipe_runs_total",
		Help: "Total number of pipeline runs, by final status",
	}, []string{"status"})

	RunStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framepipe_run_stage_duration_seconds",
		Help:    "Duration of run stages (download, open, pipeline, total)",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framepipe_frames_decoded_total",
		Help: "Total number of frames decoded and rescaled",
	})

	FramesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framepipe_frames_processed_total",
		Help: "Frames handed to a processor, by processor and outcome",
	}, []string{"processor", "outcome"})

	FrameStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framepipe_frame_stage_duration_seconds",
		Help:    "Per-frame processing time by processor and stage (raster, filter, write)",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"processor", "stage"})

	ChunksCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framepipe_chunks_completed_total",
		Help: "Total number of frame chunks completed",
	})

	ChunksArchivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framepipe_chunks_archived_total",
		Help: "Total number of chunk archives uploaded to object storage",
	})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framepipe_active_runs",
		Help: "Number of pipeline runs currently in progress",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framepipe_retry_total",
		Help: "Total number of worker retries",
	}, []string{"attempt"})
)
