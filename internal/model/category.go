package model

import (
	"fmt"
	"strings"
)

// VpnProtocol names the VPN technology a capture was recorded through.
type VpnProtocol uint8

const (
	L2TP VpnProtocol = iota
	L2TPIPsec
	OpenVPN
	PPTP
	SSTP
	WireGuard
)

// VpnProtocols lists every VPN protocol in label order.
var VpnProtocols = [...]VpnProtocol{L2TP, L2TPIPsec, OpenVPN, PPTP, SSTP, WireGuard}

var vpnProtocolNames = [...]string{"L2TP", "L2TPIPsec", "OpenVPN", "PPTP", "SSTP", "WireGuard"}

func (p VpnProtocol) String() string {
	if int(p) < len(vpnProtocolNames) {
		return vpnProtocolNames[p]
	}
	return fmt.Sprintf("VpnProtocol(%d)", uint8(p))
}

// Valid reports whether p is one of the declared protocols.
func (p VpnProtocol) Valid() bool {
	return int(p) < len(VpnProtocols)
}

// ParseVpnProtocol resolves a protocol by name, case-insensitively.
// The dataset directory spelling "L2TP IPsec" is accepted as well.
func ParseVpnProtocol(name string) (VpnProtocol, error) {
	key := normalizeName(name)
	for _, p := range VpnProtocols {
		if strings.ToLower(p.String()) == key {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown vpn protocol: %q", name)
}

// DataCategory is the application traffic class of a capture.
type DataCategory uint8

const (
	Mail DataCategory = iota
	Meet
	NonStreaming
	SSH
	Streaming
)

// DataCategories lists every category in label order.
var DataCategories = [...]DataCategory{Mail, Meet, NonStreaming, SSH, Streaming}

var dataCategoryNames = [...]string{"Mail", "Meet", "NonStreaming", "SSH", "Streaming"}

func (c DataCategory) String() string {
	if int(c) < len(dataCategoryNames) {
		return dataCategoryNames[c]
	}
	return fmt.Sprintf("DataCategory(%d)", uint8(c))
}

// Index is the category's label value.
func (c DataCategory) Index() int {
	return int(c)
}

// Valid reports whether c is one of the declared categories.
func (c DataCategory) Valid() bool {
	return int(c) < len(DataCategories)
}

// ParseDataCategory resolves a category by name. Underscores, hyphens and
// case are ignored, so "non_streaming" and "NonStreaming" are the same.
func ParseDataCategory(name string) (DataCategory, error) {
	key := normalizeName(name)
	for _, c := range DataCategories {
		if strings.ToLower(c.String()) == key {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown data category: %q", name)
}

// EncryptionKind separates plain captures from VPN captures.
type EncryptionKind uint8

const (
	KindNonVPN EncryptionKind = iota
	KindVPN
)

// EncryptionKinds lists both kinds, NonVPN first.
var EncryptionKinds = [...]EncryptionKind{KindNonVPN, KindVPN}

func (k EncryptionKind) String() string {
	switch k {
	case KindNonVPN:
		return "NonVPN"
	case KindVPN:
		return "VPN"
	default:
		return fmt.Sprintf("EncryptionKind(%d)", uint8(k))
	}
}

// ParseEncryptionKind accepts "vpn" and "nonvpn" (also "non-vpn", "non_vpn").
func ParseEncryptionKind(name string) (EncryptionKind, error) {
	switch normalizeName(name) {
	case "nonvpn":
		return KindNonVPN, nil
	case "vpn":
		return KindVPN, nil
	}
	return 0, fmt.Errorf("unknown encryption kind: %q", name)
}

// Encryption is either NonVPN or VPN with a protocol. The zero value is
// NonVPN. Values are comparable and used as map keys, so always build them
// with NonVPN or VPN to keep Protocol zero for plain traffic.
type Encryption struct {
	Kind     EncryptionKind
	Protocol VpnProtocol
}

// NonVPN returns the encryption of unencrypted captures.
func NonVPN() Encryption {
	return Encryption{Kind: KindNonVPN}
}

// VPN returns the encryption of captures tunnelled through p.
func VPN(p VpnProtocol) Encryption {
	return Encryption{Kind: KindVPN, Protocol: p}
}

// IsVPN reports whether the traffic went through a VPN.
func (e Encryption) IsVPN() bool {
	return e.Kind == KindVPN
}

// Offset is the encryption label: 0 for NonVPN, protocol index + 1 for VPN.
func (e Encryption) Offset() int {
	if e.Kind == KindVPN {
		return int(e.Protocol) + 1
	}
	return 0
}

func (e Encryption) String() string {
	if e.Kind == KindVPN {
		return "VPN(" + e.Protocol.String() + ")"
	}
	return "NonVPN"
}

// ParseEncryption is the inverse of Encryption.String. It also accepts a
// bare protocol name ("WireGuard") for a VPN encryption and "vpn:<name>".
func ParseEncryption(s string) (Encryption, error) {
	s = strings.TrimSpace(s)
	if kind, err := ParseEncryptionKind(s); err == nil && kind == KindNonVPN {
		return NonVPN(), nil
	}
	inner := s
	switch {
	case strings.HasPrefix(strings.ToUpper(s), "VPN(") && strings.HasSuffix(s, ")"):
		inner = s[4 : len(s)-1]
	case strings.HasPrefix(strings.ToLower(s), "vpn:"):
		inner = s[4:]
	}
	p, err := ParseVpnProtocol(inner)
	if err != nil {
		return Encryption{}, fmt.Errorf("unknown encryption: %q", s)
	}
	return VPN(p), nil
}

// Encryptions lists NonVPN followed by every VPN protocol.
func Encryptions() []Encryption {
	out := make([]Encryption, 0, 1+len(VpnProtocols))
	out = append(out, NonVPN())
	for _, p := range VpnProtocols {
		out = append(out, VPN(p))
	}
	return out
}

func normalizeName(name string) string {
	r := strings.NewReplacer("_", "", "-", "", " ", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(name)))
}
