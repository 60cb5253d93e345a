package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicecoach_pipeline_runs_total",
			Help: "Completed pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "voicecoach_stage_duration_seconds",
			Help: "Duration of individual pipeline stages",
		},
		[]string{"stage"},
	)

	PersonaSwitches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voicecoach_persona_switches_total",
			Help: "Successful persona switches",
		},
	)

	ActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voicecoach_active_runs",
			Help: "Pipeline runs currently holding a user lock",
		},
	)

	CorruptMemoryRecoveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voicecoach_corrupt_memory_recoveries_total",
			Help: "Stored dialogue memories dropped because they failed to decode",
		},
	)
)
