package writequeue

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connector_storage",
			Name:      "writes_enqueued_total",
			Help:      "Writes accepted into the write queue.",
		},
		[]string{"shard"},
	)

	queueFullTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connector_storage",
			Name:      "write_queue_full_total",
			Help:      "Writes rejected because their shard stayed full.",
		},
		[]string{"shard"},
	)

	failuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connector_storage",
			Name:      "write_failures_total",
			Help:      "Writes that failed after their last attempt.",
		},
		[]string{"shard"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "connector_storage",
			Name:      "write_duration_seconds",
			Help:      "Duration of single write attempts.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"shard"},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "connector_storage",
			Name:      "write_queue_depth",
			Help:      "Writes waiting in a shard.",
		},
		[]string{"shard"},
	)
)

func labelFor(shard int) string { return strconv.Itoa(shard) }
