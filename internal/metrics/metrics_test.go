package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	prom_testutil "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestShardMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New(reg)

	m.ShardLoaded(10, 2, 5*time.Millisecond)
	m.ShardLoaded(4, 0, time.Millisecond)
	m.ShardFailed(time.Millisecond)

	if got := prom_testutil.ToFloat64(m.shardLoads.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok loads = %v, want 2", got)
	}
	if got := prom_testutil.ToFloat64(m.shardLoads.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed loads = %v, want 1", got)
	}
	if got := prom_testutil.ToFloat64(m.packets.WithLabelValues("parsed")); got != 14 {
		t.Errorf("parsed packets = %v, want 14", got)
	}
	if got := prom_testutil.ToFloat64(m.packets.WithLabelValues("filtered")); got != 2 {
		t.Errorf("filtered packets = %v, want 2", got)
	}
	if got := prom_testutil.CollectAndCount(reg, "vpnspectra_shard_load_seconds"); got != 1 {
		t.Errorf("Expected one load histogram, got %d", got)
	}
}

func TestBatchMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New(reg)

	m.BatchEncoded(100, 3)
	m.BatchEncoded(50, 0)

	if got := prom_testutil.ToFloat64(m.batchRows); got != 150 {
		t.Errorf("rows = %v, want 150", got)
	}
	if got := prom_testutil.ToFloat64(m.degenerateColumns); got != 3 {
		t.Errorf("degenerate columns = %v, want 3", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ShardLoaded(1, 1, time.Second)
	m.ShardFailed(time.Second)
	m.BatchEncoded(1, 1)
}
