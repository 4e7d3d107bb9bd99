package aggregator

import (
	"VPNSpectra/internal/catalog"
	"VPNSpectra/internal/metrics"
	"VPNSpectra/internal/model"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	prom_testutil "github.com/prometheus/client_golang/prometheus/testutil"
)

const udpShard = `[{"ip_proto":"udp","port_dst":443,"port_src":51000,"x_packets":[
	{"bytes":"120","ip_header_len":"20","packets":"1","timestamp_start":"2024-01-01 00:00:00.000","timestamp_end":"2024-01-01 00:00:00.050"},
	{"bytes":"-90","packets":"1","timestamp_start":"2024-01-01 00:00:00.000","timestamp_end":"2024-01-01 00:00:00.050"}
]}]`

const brokenShard = `[{"ip_proto":"tcp","port_dst":22,"port_src":50111,"x_packets":[
	{"bytes":"-60","ip_header_len":"20","packets":"1","timestamp_start":"2024-01-01 00:00:00.000","timestamp_end":"2024-01-01 00:00:00.010"}
]}]`

func writeShard(t *testing.T, root string, enc model.Encryption, cat model.DataCategory, content string) {
	t.Helper()
	path := catalog.PathFor(root, enc, cat)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create shard directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write shard: %v", err)
	}
}

func TestLoad_EncryptionSelector(t *testing.T) {
	root := t.TempDir()
	for _, cat := range model.DataCategories {
		writeShard(t, root, model.VPN(model.WireGuard), cat, udpShard)
	}

	agg := New(root, 3, nil)
	results := agg.Load(catalog.Encryption(model.VPN(model.WireGuard)))
	if len(results) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(results))
	}

	shards, err := Collect(results, PolicyAbort)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	var cats []int
	for _, s := range shards {
		if s.Encryption != model.VPN(model.WireGuard) {
			t.Errorf("Shard labelled %s, want VPN(WireGuard)", s.Encryption)
		}
		if s.PacketCount() != 1 {
			t.Errorf("Expected 1 packet after filtering, got %d", s.PacketCount())
		}
		if s.Source != catalog.PathFor(root, s.Encryption, s.Category) {
			t.Errorf("Unexpected source %q", s.Source)
		}
		cats = append(cats, s.Category.Index())
	}
	sort.Ints(cats)
	for i, c := range cats {
		if c != i {
			t.Fatalf("Expected one shard per category, got %v", cats)
		}
	}
}

func TestLoad_FailuresStayPerShard(t *testing.T) {
	root := t.TempDir()
	writeShard(t, root, model.NonVPN(), model.Mail, udpShard)
	writeShard(t, root, model.NonVPN(), model.Meet, brokenShard)
	// The other three NonVPN categories have no file at all.

	reg := prometheus.NewPedanticRegistry()
	m := metrics.New(reg)
	agg := New(root, 0, m)
	results := agg.Load(catalog.EncryptionKind(model.KindNonVPN))
	if len(results) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(results))
	}

	failed := Failed(results)
	if len(failed) != 4 {
		t.Fatalf("Expected 4 failed shards, got %d", len(failed))
	}
	var notFound, missingField int
	for _, res := range failed {
		switch {
		case errors.Is(res.Err, model.ErrSourceNotFound):
			notFound++
		case errors.Is(res.Err, model.ErrMissingProtocolField):
			missingField++
			if res.Entry.Category != model.Meet {
				t.Errorf("Unexpected failing entry %s", res.Entry)
			}
		default:
			t.Errorf("Unexpected error: %v", res.Err)
		}
	}
	if notFound != 3 || missingField != 1 {
		t.Errorf("Got %d not-found and %d missing-field failures", notFound, missingField)
	}

	if _, err := Collect(results, PolicyAbort); err == nil {
		t.Error("Expected PolicyAbort to fail")
	} else if !errors.Is(err, model.ErrMissingProtocolField) || !errors.Is(err, model.ErrSourceNotFound) {
		t.Errorf("Expected the joined error to keep every kind, got %v", err)
	}

	shards, err := Collect(results, PolicySkip)
	if err != nil {
		t.Fatalf("PolicySkip failed: %v", err)
	}
	if len(shards) != 1 || shards[0].Category != model.Mail {
		t.Fatalf("Expected only the mail shard, got %d shards", len(shards))
	}

	if n := prom_testutil.CollectAndCount(reg, "vpnspectra_shard_loads_total"); n != 2 {
		t.Errorf("Expected ok and failed series, got %d", n)
	}
}

func TestLoadOne_KeepsRequestedEncryption(t *testing.T) {
	root := t.TempDir()
	writeShard(t, root, model.VPN(model.PPTP), model.SSH, udpShard)

	shard, err := New(root, 1, nil).LoadOne(model.VPN(model.PPTP), model.SSH)
	if err != nil {
		t.Fatalf("LoadOne failed: %v", err)
	}
	if shard.Encryption != model.VPN(model.PPTP) || shard.Category != model.SSH {
		t.Errorf("Shard labelled %s/%s", shard.Encryption, shard.Category)
	}
	if len(shard.Records) != 1 {
		t.Errorf("Expected 1 record, got %d", len(shard.Records))
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicyAbort, "abort": PolicyAbort, "SKIP": PolicySkip} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParsePolicy("retry"); err == nil {
		t.Error("Expected an error for an unknown policy")
	}
}
