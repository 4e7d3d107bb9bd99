package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/gopacket/layers"
)

// PacketDirection is derived from the sign of the recorded byte count.
type PacketDirection uint8

const (
	Outgoing PacketDirection = iota
	Incoming
)

func (d PacketDirection) String() string {
	if d == Incoming {
		return "Incoming"
	}
	return "Outgoing"
}

// DirectionOf maps a signed byte count to its direction: non-negative
// counts are outgoing.
func DirectionOf(signedBytes int64) PacketDirection {
	if signedBytes < 0 {
		return Incoming
	}
	return Outgoing
}

// BasePacket is one observed packet-group sample. Bytes is always the
// magnitude; the sign lives only in Direction.
type BasePacket struct {
	Bytes          uint32
	Direction      PacketDirection
	IPHeaderLength uint8
	PacketCount    uint8
	Duration       time.Duration
}

// TCPFlags is the 8-bit TCP flag field, FIN in the lowest bit.
type TCPFlags uint8

const (
	FlagFIN TCPFlags = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
	FlagECE
	FlagCWR
)

var tcpFlagNames = [...]string{"FIN", "SYN", "RST", "PSH", "ACK", "URG", "ECE", "CWR"}

// Has reports whether every bit of f2 is set.
func (f TCPFlags) Has(f2 TCPFlags) bool {
	return f&f2 == f2
}

func (f TCPFlags) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for i, name := range tcpFlagNames {
		if f&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

// TcpPacket extends BasePacket with the TCP header fields.
type TcpPacket struct {
	Base      BasePacket
	HeaderLen uint16
	Flags     TCPFlags
	AckNumber uint32
	SeqNumber uint32
}

// FlowRecord is one source/destination port flow and its samples.
type FlowRecord[T BasePacket | TcpPacket] struct {
	PortSource      uint16
	PortDestination uint16
	Packets         []T
}

// ProtocolRecord is a flow tagged by its transport protocol. The set of
// implementations is closed: TcpRecord, UdpRecord, GreRecord, IcmpRecord.
type ProtocolRecord interface {
	// Protocol is the IP protocol number of the record.
	Protocol() layers.IPProtocol
	// Ports returns the source and destination ports.
	Ports() (src, dst uint16)
	// Len is the number of packet-entries.
	Len() int
	// BasePackets returns the base view of every packet-entry, in order.
	BasePackets() []BasePacket

	sealed()
}

// TcpRecord is a TCP flow.
type TcpRecord struct{ FlowRecord[TcpPacket] }

// UdpRecord is a UDP flow.
type UdpRecord struct{ FlowRecord[BasePacket] }

// GreRecord is a GRE flow.
type GreRecord struct{ FlowRecord[BasePacket] }

// IcmpRecord is an ICMP flow.
type IcmpRecord struct{ FlowRecord[BasePacket] }

func (TcpRecord) Protocol() layers.IPProtocol  { return layers.IPProtocolTCP }
func (UdpRecord) Protocol() layers.IPProtocol  { return layers.IPProtocolUDP }
func (GreRecord) Protocol() layers.IPProtocol  { return layers.IPProtocolGRE }
func (IcmpRecord) Protocol() layers.IPProtocol { return layers.IPProtocolICMPv4 }

func (r TcpRecord) Ports() (uint16, uint16)  { return r.PortSource, r.PortDestination }
func (r UdpRecord) Ports() (uint16, uint16)  { return r.PortSource, r.PortDestination }
func (r GreRecord) Ports() (uint16, uint16)  { return r.PortSource, r.PortDestination }
func (r IcmpRecord) Ports() (uint16, uint16) { return r.PortSource, r.PortDestination }

func (r TcpRecord) Len() int  { return len(r.Packets) }
func (r UdpRecord) Len() int  { return len(r.Packets) }
func (r GreRecord) Len() int  { return len(r.Packets) }
func (r IcmpRecord) Len() int { return len(r.Packets) }

func (r TcpRecord) BasePackets() []BasePacket {
	out := make([]BasePacket, len(r.Packets))
	for i, p := range r.Packets {
		out[i] = p.Base
	}
	return out
}
func (r UdpRecord) BasePackets() []BasePacket  { return r.Packets }
func (r GreRecord) BasePackets() []BasePacket  { return r.Packets }
func (r IcmpRecord) BasePackets() []BasePacket { return r.Packets }

func (TcpRecord) sealed()  {}
func (UdpRecord) sealed()  {}
func (GreRecord) sealed()  {}
func (IcmpRecord) sealed() {}

// WrapBase tags a base-packet flow with a non-TCP protocol.
func WrapBase(proto layers.IPProtocol, flow FlowRecord[BasePacket]) (ProtocolRecord, error) {
	switch proto {
	case layers.IPProtocolUDP:
		return UdpRecord{flow}, nil
	case layers.IPProtocolGRE:
		return GreRecord{flow}, nil
	case layers.IPProtocolICMPv4:
		return IcmpRecord{flow}, nil
	default:
		return nil, fmt.Errorf("protocol %s does not carry base packets", proto)
	}
}

// DatasetShard is one file's worth of labeled flows. It is never mutated
// after it has been built.
type DatasetShard struct {
	Encryption Encryption
	Category   DataCategory
	Source     string
	Records    []ProtocolRecord
}

// PacketCount is the number of packet-entries across all records.
func (s *DatasetShard) PacketCount() int {
	n := 0
	for _, r := range s.Records {
		n += r.Len()
	}
	return n
}

// Label is the (category, encryption offset) pair of a packet row.
type Label [2]int

// LabelFor returns the label every packet of a shard inherits.
func LabelFor(enc Encryption, cat DataCategory) Label {
	return Label{cat.Index(), enc.Offset()}
}

// Batch is an encoded mini-batch. Features[i] and Labels[i] describe the
// same packet-entry. Every row is 11 wide; base packets carry the pad value
// in the four TCP columns.
type Batch struct {
	Features [][]float32
	Labels   []Label
	// DegenerateColumns lists the columns whose range was zero; every value
	// in them was replaced by the substitute.
	DegenerateColumns []int
}

// Len is the number of rows.
func (b *Batch) Len() int {
	return len(b.Features)
}

// Histogram counts packet byte sizes per encryption and category.
type Histogram map[Encryption]map[DataCategory]map[uint32]int

// MinAndMax is the smallest and largest byte size seen for a pair.
type MinAndMax struct {
	Min uint32
	Max uint32
}

// Add counts n packets of size bytes for the pair.
func (h Histogram) Add(enc Encryption, cat DataCategory, bytes uint32, n int) {
	cats, ok := h[enc]
	if !ok {
		cats = make(map[DataCategory]map[uint32]int)
		h[enc] = cats
	}
	sizes, ok := cats[cat]
	if !ok {
		sizes = make(map[uint32]int)
		cats[cat] = sizes
	}
	sizes[bytes] += n
}

// Total is the number of packets counted for the pair.
func (h Histogram) Total(enc Encryption, cat DataCategory) int {
	total := 0
	for _, n := range h[enc][cat] {
		total += n
	}
	return total
}

// Ranges returns the smallest and largest byte size of every pair with at
// least one packet.
func (h Histogram) Ranges() map[Encryption]map[DataCategory]MinAndMax {
	out := make(map[Encryption]map[DataCategory]MinAndMax)
	for enc, cats := range h {
		for cat, sizes := range cats {
			if len(sizes) == 0 {
				continue
			}
			r := MinAndMax{Min: ^uint32(0)}
			for size := range sizes {
				r.Min = min(r.Min, size)
				r.Max = max(r.Max, size)
			}
			if out[enc] == nil {
				out[enc] = make(map[DataCategory]MinAndMax)
			}
			out[enc][cat] = r
		}
	}
	return out
}
