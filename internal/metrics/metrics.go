// Package metrics exposes Prometheus counters for shard loading and
// batch encoding.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vpnspectra"

// Metrics holds every collector of the pipeline. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	shardLoads        *prometheus.CounterVec
	packets           *prometheus.CounterVec
	loadSeconds       prometheus.Histogram
	batchRows         prometheus.Counter
	degenerateColumns prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		shardLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shard_loads_total",
			Help:      "Number of shard files loaded, by status",
		}, []string{"status"}),
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "Number of packet-entries read from shard files, by outcome",
		}, []string{"outcome"}),
		loadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shard_load_seconds",
			Help:      "Time spent reading and parsing one shard file",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		batchRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoded_rows_total",
			Help:      "Number of feature rows emitted by the encoder",
		}),
		degenerateColumns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degenerate_columns_total",
			Help:      "Number of zero-range feature columns replaced by the substitute value",
		}),
	}
	reg.MustRegister(m.shardLoads, m.packets, m.loadSeconds, m.batchRows, m.degenerateColumns)
	return m
}

// ShardLoaded records a successful shard load.
func (m *Metrics) ShardLoaded(parsed, filtered int, took time.Duration) {
	if m == nil {
		return
	}
	m.shardLoads.WithLabelValues("ok").Inc()
	m.packets.WithLabelValues("parsed").Add(float64(parsed))
	m.packets.WithLabelValues("filtered").Add(float64(filtered))
	m.loadSeconds.Observe(took.Seconds())
}

// ShardFailed records a failed shard load.
func (m *Metrics) ShardFailed(took time.Duration) {
	if m == nil {
		return
	}
	m.shardLoads.WithLabelValues("failed").Inc()
	m.loadSeconds.Observe(took.Seconds())
}

// BatchEncoded records one encoded batch.
func (m *Metrics) BatchEncoded(rows, degenerate int) {
	if m == nil {
		return
	}
	m.batchRows.Add(float64(rows))
	m.degenerateColumns.Add(float64(degenerate))
}
