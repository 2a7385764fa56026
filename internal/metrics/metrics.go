package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "orgsync"

// Recorder collects per-run sync metrics on a private registry. A nil
// *Recorder is valid and records nothing.
//
// Available metrics are...
//   - orgsync_repositories_listed
//     A Gauge with the number of repositories returned by the last listing.
//   - orgsync_sync_operations_total - (tags: action,success)
//     A Counter incremented once per repository with the action taken
//     (fetch|update, or none when the run was canceled before the repository
//     got a turn) and its result (success=true|false).
//   - orgsync_sync_duration_seconds - (tags: action)
//     A Histogram of git invocation durations. Repositories that never ran
//     git are not observed.
//   - orgsync_last_run_timestamp_seconds
//     A Gauge with the completion time of the last run.
type Recorder struct {
	registry *prometheus.Registry

	reposListed  prometheus.Gauge
	syncCount    *prometheus.CounterVec
	syncLatency  *prometheus.HistogramVec
	lastRunStamp prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		reposListed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "repositories_listed",
			Help:      "Number of repositories returned by the organization listing",
		}),
		syncCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_operations_total",
			Help:      "Count of repository sync operations",
		},
			[]string{
				// fetch, update or none
				"action",
				// whether the git invocation succeeded
				"success",
			},
		),
		syncLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of repository sync operations",
			Buckets:   []float64{0.5, 1, 5, 10, 20, 30, 60, 90, 120, 150, 300},
		},
			[]string{"action"},
		),
		lastRunStamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Timestamp of the last completed run",
		}),
	}

	r.registry.MustRegister(
		r.reposListed,
		r.syncCount,
		r.syncLatency,
		r.lastRunStamp,
	)
	return r
}

// Registry exposes the underlying registry for export or inspection.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) SetReposListed(n int) {
	if r == nil {
		return
	}
	r.reposListed.Set(float64(n))
}

// RecordSync records one terminal repository outcome.
func (r *Recorder) RecordSync(action string, success bool, took time.Duration) {
	if r == nil {
		return
	}
	r.syncCount.With(prometheus.Labels{
		"action":  action,
		"success": strconv.FormatBool(success),
	}).Inc()
	r.syncLatency.WithLabelValues(action).Observe(took.Seconds())
}

// ActionNotStarted labels repositories whose task ended before running git.
const ActionNotStarted = "none"

// RecordNotStarted counts a repository that never got to run git.
func (r *Recorder) RecordNotStarted() {
	if r == nil {
		return
	}
	r.syncCount.With(prometheus.Labels{
		"action":  ActionNotStarted,
		"success": "false",
	}).Inc()
}

func (r *Recorder) MarkRunComplete(at time.Time) {
	if r == nil {
		return
	}
	r.lastRunStamp.Set(float64(at.Unix()))
}

// WriteTextfile writes all metrics to path in the Prometheus text format, for
// pickup by the node-exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
