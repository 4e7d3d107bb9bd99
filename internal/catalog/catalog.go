// Package catalog enumerates the fixed encryption × category taxonomy and
// resolves every combination to its shard file.
package catalog

import (
	"VPNSpectra/internal/model"
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultRoot is the dataset directory used when none is configured.
const DefaultRoot = "dataset"

const (
	nonVPNDir = "Non VPN"
	vpnDir    = "VPN"
)

var protocolDirs = map[model.VpnProtocol]string{
	model.L2TP:      "L2TP",
	model.L2TPIPsec: "L2TP IPsec",
	model.OpenVPN:   "OpenVPN",
	model.PPTP:      "PPTP",
	model.SSTP:      "SSTP",
	model.WireGuard: "WireGuard",
}

var categoryFiles = map[model.DataCategory]string{
	model.Mail:         "mail.json",
	model.Meet:         "meet.json",
	model.NonStreaming: "non_streaming.json",
	model.SSH:          "ssh.json",
	model.Streaming:    "streaming.json",
}

// Entry is one (encryption, category) combination.
type Entry struct {
	Encryption model.Encryption
	Category   model.DataCategory
}

func (e Entry) String() string {
	return fmt.Sprintf("%s/%s", e.Encryption, e.Category)
}

// Path resolves the entry below root.
func (e Entry) Path(root string) string {
	return PathFor(root, e.Encryption, e.Category)
}

// ProtocolDir is the directory name of a VPN protocol.
func ProtocolDir(p model.VpnProtocol) string {
	return protocolDirs[p]
}

// CategoryFile is the file name of a category.
func CategoryFile(c model.DataCategory) string {
	return categoryFiles[c]
}

// PathFor resolves the shard file of an encryption and category.
func PathFor(root string, enc model.Encryption, cat model.DataCategory) string {
	if enc.IsVPN() {
		return filepath.Join(root, vpnDir, ProtocolDir(enc.Protocol), CategoryFile(cat))
	}
	return filepath.Join(root, nonVPNDir, CategoryFile(cat))
}

// All returns every catalog entry: NonVPN first, then each VPN protocol,
// each with all categories in label order.
func All() []Entry {
	encs := model.Encryptions()
	entries := make([]Entry, 0, len(encs)*len(model.DataCategories))
	for _, enc := range encs {
		for _, cat := range model.DataCategories {
			entries = append(entries, Entry{Encryption: enc, Category: cat})
		}
	}
	return entries
}

// Selector restricts the catalog to a subset of entries.
type Selector func(Entry) bool

// Select returns the entries accepted by sel, in catalog order. A nil
// selector accepts everything.
func Select(sel Selector) []Entry {
	var out []Entry
	for _, e := range All() {
		if sel == nil || sel(e) {
			out = append(out, e)
		}
	}
	return out
}

// Everything accepts every entry.
func Everything() Selector {
	return func(Entry) bool { return true }
}

// EncryptionKind accepts entries of one kind, e.g. every VPN protocol.
func EncryptionKind(kind model.EncryptionKind) Selector {
	return func(e Entry) bool { return e.Encryption.Kind == kind }
}

// Encryption accepts one fixed encryption across all categories.
func Encryption(enc model.Encryption) Selector {
	return func(e Entry) bool { return e.Encryption == enc }
}

// Categories accepts entries whose category is listed.
func Categories(cats ...model.DataCategory) Selector {
	return func(e Entry) bool {
		for _, c := range cats {
			if e.Category == c {
				return true
			}
		}
		return false
	}
}

// And accepts entries accepted by every selector.
func And(sels ...Selector) Selector {
	return func(e Entry) bool {
		for _, s := range sels {
			if !s(e) {
				return false
			}
		}
		return true
	}
}

// Not inverts a selector.
func Not(sel Selector) Selector {
	return func(e Entry) bool { return !sel(e) }
}

// ParseSelector builds a selector from configuration values. encryption is
// empty or "all" for every entry, "vpn"/"nonvpn" for a kind, or a single
// encryption ("WireGuard", "VPN(PPTP)"). categories may be empty.
func ParseSelector(encryption string, categories []string) (Selector, error) {
	sels := []Selector{Everything()}

	switch strings.ToLower(strings.TrimSpace(encryption)) {
	case "", "all":
	default:
		if kind, err := model.ParseEncryptionKind(encryption); err == nil {
			sels = append(sels, EncryptionKind(kind))
			break
		}
		enc, err := model.ParseEncryption(encryption)
		if err != nil {
			return nil, fmt.Errorf("invalid selector encryption: %w", err)
		}
		sels = append(sels, Encryption(enc))
	}

	if len(categories) > 0 {
		cats := make([]model.DataCategory, 0, len(categories))
		for _, name := range categories {
			c, err := model.ParseDataCategory(name)
			if err != nil {
				return nil, fmt.Errorf("invalid selector category: %w", err)
			}
			cats = append(cats, c)
		}
		sels = append(sels, Categories(cats...))
	}

	return And(sels...), nil
}
