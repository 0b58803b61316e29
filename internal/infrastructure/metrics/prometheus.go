// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reelpipe"

var (
	// JobsTotal tracks terminal pipeline outcomes.
	// Labels:
	//   - status: done, failed
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of completed transcode jobs",
		},
		[]string{"status"},
	)

	// StageDurationSeconds tracks how long each pipeline stage takes.
	// Labels:
	//   - stage: fetch, probe, transcode, publish
	StageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		},
		[]string{"stage"},
	)

	// PreviewRetriesTotal counts previews that needed the reduced second pass.
	PreviewRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preview_retries_total",
			Help:      "Total number of preview encodes retried at reduced dimensions",
		},
	)

	// PublishedBytesTotal counts bytes uploaded to object storage.
	PublishedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_bytes_total",
			Help:      "Total bytes of artifacts uploaded to object storage",
		},
	)
)

// Job status label values.
const (
	JobStatusDone   = "done"
	JobStatusFailed = "failed"
)

// Stage label values.
const (
	StageFetch     = "fetch"
	StageProbe     = "probe"
	StageTranscode = "transcode"
	StagePublish   = "publish"
)
