package indexer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clawboard",
		Subsystem: "indexer",
		Name:      "sync_batches_total",
		Help:      "Count of sync batches by outcome.",
	}, []string{"status"})
	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "clawboard",
		Subsystem: "indexer",
		Name:      "sync_duration_seconds",
		Help:      "Duration of sync batches.",
		Buckets:   prometheus.DefBuckets,
	})
	eventsAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clawboard",
		Subsystem: "indexer",
		Name:      "events_applied_total",
		Help:      "Count of decoded events applied to the snapshot.",
	})
	logsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clawboard",
		Subsystem: "indexer",
		Name:      "logs_skipped_total",
		Help:      "Count of logs skipped during sync, by reason.",
	}, []string{"reason"})
	lastSyncedBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "clawboard",
		Subsystem: "indexer",
		Name:      "last_synced_block",
		Help:      "Highest block whose events are applied and persisted.",
	})
)

func observeSync(err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	syncBatchesTotal.WithLabelValues(status).Inc()
	syncDuration.Observe(time.Since(started).Seconds())
}
