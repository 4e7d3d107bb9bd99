package writer

import (
	"VPNSpectra/internal/engine/histogram"
	"VPNSpectra/internal/factory"
	"VPNSpectra/internal/model"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func testHistogram() model.Histogram {
	h := make(model.Histogram)
	h.Add(model.NonVPN(), model.Mail, 60, 3)
	h.Add(model.NonVPN(), model.Mail, 1500, 1)
	h.Add(model.VPN(model.WireGuard), model.Streaming, 120, 7)
	// An empty series is skipped.
	h[model.VPN(model.PPTP)] = map[model.DataCategory]map[uint32]int{model.SSH: {}}
	return h
}

func TestGobWriter_Write(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "histogram_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	writer := NewGobWriter(tmpDir)
	const timestamp = "2024-05-01_10-00-00"
	if err := writer.Write(testHistogram(), timestamp); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	snapshotDir := filepath.Join(tmpDir, timestamp)

	summaryBytes, err := os.ReadFile(filepath.Join(snapshotDir, "summary.json"))
	if err != nil {
		t.Fatalf("Failed to read summary.json: %v", err)
	}
	var summary SummaryData
	if err := json.Unmarshal(summaryBytes, &summary); err != nil {
		t.Fatalf("Failed to unmarshal summary.json: %v", err)
	}
	if summary.TotalPackets != 11 {
		t.Errorf("Expected TotalPackets to be 11, got %d", summary.TotalPackets)
	}
	wantSeries := []SeriesSummary{
		{Encryption: "NonVPN", Category: "Mail", File: "NonVPN_Mail.dat", Packets: 4, Sizes: 2, MinBytes: 60, MaxBytes: 1500},
		{Encryption: "VPN(WireGuard)", Category: "Streaming", File: "VPN_WireGuard_Streaming.dat", Packets: 7, Sizes: 1, MinBytes: 120, MaxBytes: 120},
	}
	if diff := cmp.Diff(wantSeries, summary.Series); diff != "" {
		t.Errorf("Summary series mismatch (-want +got):\n%s", diff)
	}

	if _, err := os.Stat(filepath.Join(snapshotDir, "VPN_PPTP_SSH.dat")); !os.IsNotExist(err) {
		t.Fatalf("VPN_PPTP_SSH.dat (empty) should not have been created")
	}

	s, err := ReadSeries(filepath.Join(snapshotDir, "NonVPN_Mail.dat"))
	if err != nil {
		t.Fatalf("ReadSeries failed: %v", err)
	}
	if s.Encryption != model.NonVPN() || s.Category != model.Mail {
		t.Errorf("Series labelled %s/%s", s.Encryption, s.Category)
	}
	if diff := cmp.Diff(map[uint32]int{60: 3, 1500: 1}, s.Counts); diff != "" {
		t.Errorf("Series counts mismatch (-want +got):\n%s", diff)
	}

	back, err := ReadSnapshot(snapshotDir)
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}
	want := testHistogram()
	delete(want, model.VPN(model.PPTP))
	if diff := cmp.Diff(want, back); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestGobWriter_EmptyHistogram(t *testing.T) {
	tmpDir := t.TempDir()
	if err := NewGobWriter(tmpDir).Write(model.Histogram{}, "2024-05-01_10-00-00"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	entries, _ := os.ReadDir(tmpDir)
	if len(entries) != 0 {
		t.Errorf("Expected nothing written, found %d entries", len(entries))
	}
}

func TestSeriesFileName(t *testing.T) {
	got := SeriesFileName(histogram.Pair{Encryption: model.VPN(model.L2TPIPsec), Category: model.NonStreaming})
	if got != "VPN_L2TPIPsec_NonStreaming.dat" {
		t.Errorf("SeriesFileName = %q", got)
	}
}

func TestRows(t *testing.T) {
	rows, err := Rows(testHistogram(), "2024-05-01_10-00-00")
	if err != nil {
		t.Fatalf("Rows failed: %v", err)
	}
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	want := []Row{
		{Timestamp: ts, Encryption: "NonVPN", Category: "Mail", Bytes: 60, Count: 3},
		{Timestamp: ts, Encryption: "NonVPN", Category: "Mail", Bytes: 1500, Count: 1},
		{Timestamp: ts, Encryption: "VPN(WireGuard)", Category: "Streaming", Bytes: 120, Count: 7},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}

	if _, err := Rows(testHistogram(), "yesterday"); err == nil {
		t.Error("Expected an error for a malformed timestamp")
	}
}

func TestRegisteredTypes(t *testing.T) {
	if diff := cmp.Diff([]string{"clickhouse", "gob"}, factory.Types()); diff != "" {
		t.Errorf("Registered writer types mismatch (-want +got):\n%s", diff)
	}
}
