// Package metrics holds the Prometheus collectors for the pipeline and the
// job queue. All methods are safe to call on a nil receiver so components can
// run without metrics in tests and in the CLI.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "transcriber"

// Pipeline tracks transcription pipeline runs.
type Pipeline struct {
	runs      *prometheus.CounterVec
	segments  prometheus.Counter
	fallbacks *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewPipeline registers the pipeline collectors on reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	f := promauto.With(reg)
	return &Pipeline{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by path (single_shot, segmented) and outcome.",
		}, []string{"path", "outcome"}),
		segments: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_segments_total",
			Help:      "Segments transcribed successfully.",
		}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_fallbacks_total",
			Help:      "Duration probe strategies that failed, by strategy.",
		}, []string{"strategy"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Wall time of pipeline runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		}, []string{"path"}),
	}
}

// ObserveRun records one finished run.
func (m *Pipeline) ObserveRun(path string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.runs.WithLabelValues(path, outcome).Inc()
	m.duration.WithLabelValues(path).Observe(elapsed.Seconds())
}

func (m *Pipeline) SegmentTranscribed() {
	if m == nil {
		return
	}
	m.segments.Inc()
}

// ProbeFallback matches audio.WithFallbackHook.
func (m *Pipeline) ProbeFallback(strategy string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(strategy).Inc()
}

// Queue tracks the worker pool.
type Queue struct {
	jobs  *prometheus.CounterVec
	depth prometheus.Gauge
	busy  prometheus.Gauge
}

// NewQueue registers the queue collectors on reg.
func NewQueue(reg prometheus.Registerer) *Queue {
	f := promauto.With(reg)
	return &Queue{
		jobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Jobs by source and final status.",
		}, []string{"source", "status"}),
		depth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting for a worker.",
		}),
		busy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_busy",
			Help:      "Workers currently processing a job.",
		}),
	}
}

func (m *Queue) Enqueued() {
	if m == nil {
		return
	}
	m.depth.Inc()
}

func (m *Queue) Started() {
	if m == nil {
		return
	}
	m.depth.Dec()
	m.busy.Inc()
}

func (m *Queue) Finished(source, status string) {
	if m == nil {
		return
	}
	m.busy.Dec()
	m.jobs.WithLabelValues(source, status).Inc()
}
