package protocol

import (
	"VPNSpectra/internal/model"
	"fmt"
	"strconv"

	"github.com/google/gopacket/layers"
)

// protocolTags maps the ip_proto values of a shard file to protocol numbers.
var protocolTags = map[string]layers.IPProtocol{
	"tcp":  layers.IPProtocolTCP,
	"udp":  layers.IPProtocolUDP,
	"gre":  layers.IPProtocolGRE,
	"icmp": layers.IPProtocolICMPv4,
}

// ParseProtocolTag resolves an ip_proto value.
func ParseProtocolTag(tag string) (layers.IPProtocol, error) {
	proto, ok := protocolTags[tag]
	if !ok {
		return 0, fmt.Errorf("unsupported ip_proto %q", tag)
	}
	return proto, nil
}

// ProtocolTag is the inverse of ParseProtocolTag.
func ProtocolTag(proto layers.IPProtocol) (string, bool) {
	for tag, p := range protocolTags {
		if p == proto {
			return tag, true
		}
	}
	return "", false
}

// Dispatch converts a raw record into its protocol variant. TCP records get
// TcpPackets, every other tag gets BasePackets. The second result is the
// number of entries dropped for lacking a header length.
func Dispatch(raw RawRecord) (model.ProtocolRecord, int, error) {
	proto, err := ParseProtocolTag(raw.Protocol)
	if err != nil {
		return nil, 0, &model.ParseError{Record: -1, Packet: -1, Field: "ip_proto", Kind: model.ErrMalformedShape, Err: err}
	}
	if raw.PortSource == nil || raw.PortDestination == nil || raw.Packets == nil {
		return nil, 0, &model.ParseError{Record: -1, Packet: -1, Kind: model.ErrMalformedShape,
			Err: fmt.Errorf("record needs port_src, port_dst and x_packets")}
	}

	if proto == layers.IPProtocolTCP {
		packets, filtered, err := generateTcpPackets(raw.Packets)
		if err != nil {
			return nil, 0, err
		}
		return model.TcpRecord{FlowRecord: model.FlowRecord[model.TcpPacket]{
			PortSource:      *raw.PortSource,
			PortDestination: *raw.PortDestination,
			Packets:         packets,
		}}, filtered, nil
	}

	packets, filtered, err := generatePackets(raw.Packets)
	if err != nil {
		return nil, 0, err
	}
	rec, err := model.WrapBase(proto, model.FlowRecord[model.BasePacket]{
		PortSource:      *raw.PortSource,
		PortDestination: *raw.PortDestination,
		Packets:         packets,
	})
	if err != nil {
		return nil, 0, err
	}
	return rec, filtered, nil
}

func generateTcpPackets(raws []RawPacket) ([]model.TcpPacket, int, error) {
	packets := make([]model.TcpPacket, 0, len(raws))
	for i, raw := range raws {
		if !hasHeaderLength(raw) {
			continue
		}
		p, err := generateTcpPacket(raw)
		if err != nil {
			return nil, 0, atPacket(err, i)
		}
		packets = append(packets, p)
	}
	return packets, len(raws) - len(packets), nil
}

func generateTcpPacket(raw RawPacket) (model.TcpPacket, error) {
	base, err := generatePacket(raw)
	if err != nil {
		return model.TcpPacket{}, err
	}

	headerLen, err := tcpField("tcp_header_len", raw.TCPHeaderLen, 10, 16)
	if err != nil {
		return model.TcpPacket{}, err
	}
	flags, err := tcpField("tcp_flags", raw.TCPFlags, 2, 8)
	if err != nil {
		return model.TcpPacket{}, err
	}
	ack, err := tcpField("tcp_ack_number", raw.TCPAckNumber, 10, 32)
	if err != nil {
		return model.TcpPacket{}, err
	}
	seq, err := tcpField("tcp_seq_number", raw.TCPSeqNumber, 10, 32)
	if err != nil {
		return model.TcpPacket{}, err
	}

	return model.TcpPacket{
		Base:      base,
		HeaderLen: uint16(headerLen),
		Flags:     model.TCPFlags(flags),
		AckNumber: uint32(ack),
		SeqNumber: uint32(seq),
	}, nil
}

// tcpField parses a TCP-only field. Absence is a hard failure.
func tcpField(name string, value *string, base, bitSize int) (uint64, error) {
	if value == nil {
		return 0, &model.ParseError{Record: -1, Packet: -1, Field: name, Kind: model.ErrMissingProtocolField}
	}
	v, err := strconv.ParseUint(*value, base, bitSize)
	if err != nil {
		return 0, fieldError(name, err)
	}
	return v, nil
}
