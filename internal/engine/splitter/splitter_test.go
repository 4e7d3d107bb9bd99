package splitter

import (
	"VPNSpectra/internal/model"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// testShards builds shards whose packets carry their global index in Bytes.
func testShards() []model.DatasetShard {
	next := uint32(0)
	base := func(n int) []model.BasePacket {
		out := make([]model.BasePacket, n)
		for i := range out {
			out[i] = model.BasePacket{Bytes: next}
			next++
		}
		return out
	}
	tcpPackets := func(n int) []model.TcpPacket {
		out := make([]model.TcpPacket, n)
		for i, b := range base(n) {
			out[i] = model.TcpPacket{Base: b}
		}
		return out
	}

	return []model.DatasetShard{
		{
			Encryption: model.NonVPN(),
			Category:   model.Mail,
			Records: []model.ProtocolRecord{
				model.UdpRecord{FlowRecord: model.FlowRecord[model.BasePacket]{PortSource: 1, Packets: base(7)}},
				model.TcpRecord{FlowRecord: model.FlowRecord[model.TcpPacket]{PortSource: 2, Packets: tcpPackets(11)}},
				model.GreRecord{FlowRecord: model.FlowRecord[model.BasePacket]{PortSource: 3}},
			},
		},
		{
			Encryption: model.VPN(model.SSTP),
			Category:   model.SSH,
			Records: []model.ProtocolRecord{
				model.IcmpRecord{FlowRecord: model.FlowRecord[model.BasePacket]{PortSource: 4, Packets: base(5)}},
				model.TcpRecord{FlowRecord: model.FlowRecord[model.TcpPacket]{PortSource: 5, Packets: tcpPackets(14)}},
			},
		},
	}
}

func packetIDs(shards []model.DatasetShard) []int {
	var ids []int
	for _, s := range shards {
		for _, r := range s.Records {
			for _, p := range r.BasePackets() {
				ids = append(ids, int(p.Bytes))
			}
		}
	}
	return ids
}

func TestSplit_ReproducibleDisjointExhaustive(t *testing.T) {
	shards := testShards()
	const n = 37

	train, valid, err := Split(shards, 0.8, 42)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	train2, valid2, err := Split(shards, 0.8, 42)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if diff := cmp.Diff(train.Indices, train2.Indices); diff != "" {
		t.Errorf("Train indices differ between runs:\n%s", diff)
	}
	if diff := cmp.Diff(valid.Indices, valid2.Indices); diff != "" {
		t.Errorf("Validation indices differ between runs:\n%s", diff)
	}

	if want := int(math.Floor(n * 0.8)); train.Len() != want {
		t.Errorf("|train| = %d, want %d", train.Len(), want)
	}
	if train.Len()+valid.Len() != n {
		t.Fatalf("Subsets cover %d indices, want %d", train.Len()+valid.Len(), n)
	}

	seen := make([]int, n)
	for _, i := range train.Indices {
		seen[i]++
	}
	for _, i := range valid.Indices {
		seen[i]++
	}
	for i, count := range seen {
		if count != 1 {
			t.Errorf("index %d appears %d times", i, count)
		}
	}
}

func TestSplit_SeedChangesPermutation(t *testing.T) {
	a, _, _ := Split(testShards(), 0.5, 1)
	b, _, _ := Split(testShards(), 0.5, 2)
	if cmp.Equal(a.Indices, b.Indices) {
		t.Error("Expected different seeds to produce different splits")
	}
}

func TestSplit_MaterializedShardsMatchIndices(t *testing.T) {
	shards := testShards()
	train, valid, err := Split(shards, 0.6, 9)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	for name, subset := range map[string]Subset{"train": train, "valid": valid} {
		ids := packetIDs(subset.Shards)
		if len(ids) != subset.Len() {
			t.Fatalf("%s: %d materialized packets, want %d", name, len(ids), subset.Len())
		}
		want := make(map[int]bool, subset.Len())
		for _, i := range subset.Indices {
			want[i] = true
		}
		for k, id := range ids {
			if !want[id] {
				t.Errorf("%s: packet %d was not selected", name, id)
			}
			if k > 0 && ids[k-1] >= id {
				t.Errorf("%s: packets out of original order at %d", name, k)
			}
		}
		for _, s := range subset.Shards {
			for _, r := range s.Records {
				if r.Len() == 0 {
					t.Errorf("%s: empty record kept", name)
				}
			}
		}
	}
}

func TestSplit_KeepsProtocolAndLabels(t *testing.T) {
	train, _, err := Split(testShards(), 1, 3)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(train.Shards) != 2 {
		t.Fatalf("Expected both shards, got %d", len(train.Shards))
	}
	// The empty GRE record is dropped, everything else survives.
	if len(train.Shards[0].Records) != 2 {
		t.Errorf("Expected 2 records in first shard, got %d", len(train.Shards[0].Records))
	}
	if _, ok := train.Shards[0].Records[1].(model.TcpRecord); !ok {
		t.Errorf("Expected a TCP record, got %T", train.Shards[0].Records[1])
	}
	if train.Shards[1].Encryption != model.VPN(model.SSTP) || train.Shards[1].Category != model.SSH {
		t.Errorf("Labels lost: %s/%s", train.Shards[1].Encryption, train.Shards[1].Category)
	}
}

func TestSplit_Edges(t *testing.T) {
	train, valid, err := Split(testShards(), 0, 42)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if train.Len() != 0 || valid.Len() != 37 || len(train.Shards) != 0 {
		t.Errorf("ratio 0: train %d, valid %d", train.Len(), valid.Len())
	}

	train, valid, err = Split(nil, 0.8, 42)
	if err != nil {
		t.Fatalf("Split of nothing failed: %v", err)
	}
	if train.Len() != 0 || valid.Len() != 0 {
		t.Errorf("Expected empty subsets, got %d and %d", train.Len(), valid.Len())
	}

	for _, ratio := range []float64{-0.1, 1.5, math.NaN()} {
		if _, _, err := Split(testShards(), ratio, 42); err == nil {
			t.Errorf("Expected ratio %v to be rejected", ratio)
		}
	}
}

func TestPermutation(t *testing.T) {
	perm := Permutation(100, 42)
	seen := make(map[int]bool)
	for _, v := range perm {
		if v < 0 || v >= 100 || seen[v] {
			t.Fatalf("Not a permutation: %v", perm)
		}
		seen[v] = true
	}
	if diff := cmp.Diff(perm, Permutation(100, 42)); diff != "" {
		t.Errorf("Permutation not reproducible:\n%s", diff)
	}
}
