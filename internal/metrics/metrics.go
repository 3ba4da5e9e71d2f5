// Package metrics provides Prometheus metrics for the image slot pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TranscodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgslot",
			Name:      "transcode_total",
			Help:      "Total number of transcode operations",
		},
		[]string{"disposition", "status"},
	)

	TranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imgslot",
			Name:      "transcode_duration_seconds",
			Help:      "Duration of decode, resize and encode in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"disposition"},
	)

	OutputBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "imgslot",
			Name:      "output_bytes",
			Help:      "Estimated size of encoded output",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 2, 10),
		},
	)

	UploadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgslot",
			Name:      "upload_total",
			Help:      "Total number of slot writes",
		},
		[]string{"origin", "status"},
	)

	ReconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgslot",
			Name:      "reconcile_total",
			Help:      "Re-reads of the authoritative slot state",
		},
		[]string{"trigger", "status"},
	)
)

func RecordTranscode(disposition, status string, started time.Time) {
	TranscodeTotal.WithLabelValues(disposition, status).Inc()
	TranscodeDuration.WithLabelValues(disposition).Observe(time.Since(started).Seconds())
}

func RecordOutput(size int) {
	OutputBytes.Observe(float64(size))
}

func RecordUpload(origin, status string) {
	UploadTotal.WithLabelValues(origin, status).Inc()
}

func RecordReconcile(trigger, status string) {
	ReconcileTotal.WithLabelValues(trigger, status).Inc()
}
