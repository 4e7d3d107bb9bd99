package catalog

import (
	"VPNSpectra/internal/model"
	"path/filepath"
	"testing"
)

func TestAll_Has35UniqueEntries(t *testing.T) {
	entries := All()
	if len(entries) != 35 {
		t.Fatalf("Expected 35 catalog entries, got %d", len(entries))
	}

	seen := make(map[Entry]bool)
	paths := make(map[string]bool)
	for _, e := range entries {
		if seen[e] {
			t.Errorf("Duplicate entry %s", e)
		}
		seen[e] = true
		p := e.Path(DefaultRoot)
		if paths[p] {
			t.Errorf("Duplicate path %s", p)
		}
		paths[p] = true
	}

	nonVPN := Select(EncryptionKind(model.KindNonVPN))
	if len(nonVPN) != 5 {
		t.Errorf("Expected 5 NonVPN entries, got %d", len(nonVPN))
	}
	vpn := Select(EncryptionKind(model.KindVPN))
	if len(vpn) != 30 {
		t.Errorf("Expected 30 VPN entries, got %d", len(vpn))
	}
}

func TestPathFor(t *testing.T) {
	tests := []struct {
		enc  model.Encryption
		cat  model.DataCategory
		want string
	}{
		{model.NonVPN(), model.Mail, filepath.Join("dataset", "Non VPN", "mail.json")},
		{model.NonVPN(), model.NonStreaming, filepath.Join("dataset", "Non VPN", "non_streaming.json")},
		{model.VPN(model.L2TPIPsec), model.SSH, filepath.Join("dataset", "VPN", "L2TP IPsec", "ssh.json")},
		{model.VPN(model.WireGuard), model.Streaming, filepath.Join("dataset", "VPN", "WireGuard", "streaming.json")},
		{model.VPN(model.OpenVPN), model.Meet, filepath.Join("dataset", "VPN", "OpenVPN", "meet.json")},
	}
	for _, tt := range tests {
		if got := PathFor(DefaultRoot, tt.enc, tt.cat); got != tt.want {
			t.Errorf("PathFor(%s, %s) = %q, want %q", tt.enc, tt.cat, got, tt.want)
		}
	}
}

func TestParseSelector(t *testing.T) {
	tests := []struct {
		encryption string
		categories []string
		want       int
	}{
		{"", nil, 35},
		{"all", nil, 35},
		{"vpn", nil, 30},
		{"non_vpn", nil, 5},
		{"WireGuard", nil, 5},
		{"VPN(L2TP IPsec)", []string{"ssh"}, 1},
		{"", []string{"mail", "streaming"}, 14},
	}
	for _, tt := range tests {
		sel, err := ParseSelector(tt.encryption, tt.categories)
		if err != nil {
			t.Fatalf("ParseSelector(%q, %v) failed: %v", tt.encryption, tt.categories, err)
		}
		if got := len(Select(sel)); got != tt.want {
			t.Errorf("ParseSelector(%q, %v) selected %d entries, want %d", tt.encryption, tt.categories, got, tt.want)
		}
	}

	if _, err := ParseSelector("ipsec-only", nil); err == nil {
		t.Error("Expected an error for an unknown encryption")
	}
	if _, err := ParseSelector("", []string{"gaming"}); err == nil {
		t.Error("Expected an error for an unknown category")
	}
}

func TestNot(t *testing.T) {
	got := Select(Not(Encryption(model.NonVPN())))
	for _, e := range got {
		if !e.Encryption.IsVPN() {
			t.Fatalf("Not(NonVPN) selected %s", e)
		}
	}
	if len(got) != 30 {
		t.Errorf("Expected 30 entries, got %d", len(got))
	}
}
