package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons for LinesDropped
const (
	DropUnrouted  = "unrouted"
	DropMalformed = "malformed"
)

// Flush triggers for Flushes
const (
	TriggerSize     = "size"
	TriggerShutdown = "shutdown"
	TriggerFeedEnd  = "feed_end"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	LinesReceived     prometheus.Counter
	RecordsParsed     prometheus.Counter
	LinesDropped      *prometheus.CounterVec
	Flushes           *prometheus.CounterVec
	FlushDuration     prometheus.Histogram
	BatchSize         prometheus.Histogram
	OperationsWritten prometheus.Counter
	ItemFailures      prometheus.Counter
	StoreErrors       prometheus.Counter
}

// NewMetrics creates the ingest metrics and registers them with reg.
// A nil reg registers with the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		LinesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_lines_received_total",
			Help:      "The total number of lines read from the feed",
		}),
		RecordsParsed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_parsed_total",
			Help:      "The total number of lines parsed into telemetry records",
		}),
		LinesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_lines_dropped_total",
			Help:      "The total number of feed lines dropped",
		}, []string{"reason"}),
		Flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "The total number of batch flushes",
		}, []string{"trigger"}),
		FlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Time taken to submit a batch to the store",
			Buckets:   prometheus.DefBuckets,
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_batch_size",
			Help:      "Number of records per flushed batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		OperationsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_written_total",
			Help:      "The total number of upserts accepted by the store",
		}),
		ItemFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "The total number of upserts rejected by the store",
		}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "The total number of bulk calls that failed as a whole",
		}),
	}
}
