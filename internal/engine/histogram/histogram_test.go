package histogram

import (
	"VPNSpectra/internal/model"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func udpShard(enc model.Encryption, cat model.DataCategory, sizes ...uint32) model.DatasetShard {
	packets := make([]model.BasePacket, len(sizes))
	for i, s := range sizes {
		packets[i] = model.BasePacket{Bytes: s}
	}
	return model.DatasetShard{
		Encryption: enc,
		Category:   cat,
		Records: []model.ProtocolRecord{
			model.UdpRecord{FlowRecord: model.FlowRecord[model.BasePacket]{Packets: packets}},
		},
	}
}

func TestBuild_MergesSamePair(t *testing.T) {
	shards := []model.DatasetShard{
		udpShard(model.NonVPN(), model.Mail, 60, 60, 1500),
		udpShard(model.VPN(model.WireGuard), model.Mail, 80),
		udpShard(model.NonVPN(), model.Mail, 60, 40),
	}
	shards[0].Records = append(shards[0].Records, model.TcpRecord{FlowRecord: model.FlowRecord[model.TcpPacket]{
		Packets: []model.TcpPacket{{Base: model.BasePacket{Bytes: 1500, Direction: model.Incoming}}},
	}})

	h := Build(shards)
	want := model.Histogram{
		model.NonVPN(): {
			model.Mail: {40: 1, 60: 3, 1500: 2},
		},
		model.VPN(model.WireGuard): {
			model.Mail: {80: 1},
		},
	}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Errorf("Histogram mismatch (-want +got):\n%s", diff)
	}
	if n := h.Total(model.NonVPN(), model.Mail); n != 6 {
		t.Errorf("Expected 6 packets, got %d", n)
	}
}

func TestRanges(t *testing.T) {
	h := Build([]model.DatasetShard{
		udpShard(model.NonVPN(), model.SSH, 90, 20, 300),
		udpShard(model.VPN(model.PPTP), model.Meet, 7),
		udpShard(model.VPN(model.PPTP), model.Streaming),
	})
	want := map[model.Encryption]map[model.DataCategory]model.MinAndMax{
		model.NonVPN():        {model.SSH: {Min: 20, Max: 300}},
		model.VPN(model.PPTP): {model.Meet: {Min: 7, Max: 7}},
	}
	if diff := cmp.Diff(want, h.Ranges()); diff != "" {
		t.Errorf("Ranges mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter(t *testing.T) {
	h := Build([]model.DatasetShard{
		udpShard(model.NonVPN(), model.SSH, 1),
		udpShard(model.VPN(model.SSTP), model.SSH, 2),
		udpShard(model.VPN(model.SSTP), model.Mail, 3),
	})

	got := Filter(h, model.VPN(model.SSTP))
	if len(got) != 1 || len(got[model.VPN(model.SSTP)]) != 2 {
		t.Fatalf("Unexpected filtered histogram: %v", got)
	}
	if got := Filter(h, model.VPN(model.L2TP)); len(got) != 0 {
		t.Errorf("Expected an empty histogram, got %v", got)
	}
}

func TestMerge(t *testing.T) {
	dst := Build([]model.DatasetShard{udpShard(model.NonVPN(), model.Mail, 10)})
	src := Build([]model.DatasetShard{
		udpShard(model.NonVPN(), model.Mail, 10, 20),
		udpShard(model.VPN(model.L2TP), model.Meet, 5),
	})
	Merge(dst, src)
	want := model.Histogram{
		model.NonVPN():        {model.Mail: {10: 2, 20: 1}},
		model.VPN(model.L2TP): {model.Meet: {5: 1}},
	}
	if diff := cmp.Diff(want, dst); diff != "" {
		t.Errorf("Merge mismatch (-want +got):\n%s", diff)
	}
}

func TestPairsAndBins(t *testing.T) {
	h := Build([]model.DatasetShard{
		udpShard(model.VPN(model.WireGuard), model.Mail, 3),
		udpShard(model.NonVPN(), model.Streaming, 9, 1, 9),
		udpShard(model.NonVPN(), model.Mail, 4),
	})
	wantPairs := []Pair{
		{model.NonVPN(), model.Mail},
		{model.NonVPN(), model.Streaming},
		{model.VPN(model.WireGuard), model.Mail},
	}
	if diff := cmp.Diff(wantPairs, Pairs(h)); diff != "" {
		t.Errorf("Pairs mismatch (-want +got):\n%s", diff)
	}

	wantBins := []Bin{{Bytes: 1, Count: 1}, {Bytes: 9, Count: 2}}
	if diff := cmp.Diff(wantBins, Bins(h, wantPairs[1])); diff != "" {
		t.Errorf("Bins mismatch (-want +got):\n%s", diff)
	}
	if got := wantPairs[2].String(); got != "VPN(WireGuard)/Mail" {
		t.Errorf("Pair string = %q", got)
	}
}
