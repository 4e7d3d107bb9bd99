// Package pcap converts packet captures into shard files the dataset loader
// can read.
package pcap

import (
	"VPNSpectra/internal/engine/protocol"
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Stats counts what a conversion did with the captured packets.
type Stats struct {
	Packets int
	Skipped int
	Flows   int
}

type flowKey struct {
	proto      layers.IPProtocol
	localIP    netip.Addr
	remoteIP   netip.Addr
	localPort  uint16
	remotePort uint16
}

type flowState struct {
	record   protocol.RawRecord
	lastSeen time.Time
}

// Converter groups IPv4 packets into flows and renders every packet as one
// packet-entry. Bytes are the IP total length, negative for packets sent to
// the local side. An entry spans from the previous packet of its flow to
// itself, so the first entry of a flow has a zero duration.
type Converter struct {
	// Local lists the prefixes of the capturing host. When empty, the
	// sender of the first packet of a flow is taken as local.
	Local []netip.Prefix
}

// Reader reads packets from a pcap file.
type Reader struct {
	file *os.File
	r    *pcapgo.Reader
}

// NewReader creates a new pcap reader for the given file path.
func NewReader(filePath string) (*Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	r, err := pcapgo.NewReader(bufio.NewReader(file))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}
	return &Reader{file: file, r: r}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() {
	r.file.Close()
}

// ConvertFile converts the pcap file at path.
func (c *Converter) ConvertFile(path string) ([]protocol.RawRecord, Stats, error) {
	reader, err := NewReader(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer reader.Close()
	return c.convert(reader.r)
}

// Convert converts a pcap stream.
func (c *Converter) Convert(r io.Reader) ([]protocol.RawRecord, Stats, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to read pcap header: %w", err)
	}
	return c.convert(pr)
}

func (c *Converter) convert(pr *pcapgo.Reader) ([]protocol.RawRecord, Stats, error) {
	var stats Stats
	flows := make(map[flowKey]*flowState)
	var order []flowKey

	for {
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("failed to read packet %d: %w", stats.Packets+stats.Skipped, err)
		}

		packet := gopacket.NewPacket(data, pr.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		key, entry, ok := c.entry(packet, flows)
		if !ok {
			stats.Skipped++
			continue
		}
		stats.Packets++

		state, exists := flows[key]
		if !exists {
			localPort, remotePort := key.localPort, key.remotePort
			state = &flowState{
				record: protocol.RawRecord{
					Protocol:        tag(key.proto),
					PortSource:      &localPort,
					PortDestination: &remotePort,
				},
				lastSeen: ci.Timestamp,
			}
			flows[key] = state
			order = append(order, key)
		}
		start := protocol.FormatTimestamp(state.lastSeen)
		end := protocol.FormatTimestamp(ci.Timestamp)
		entry.TimestampStart = &start
		entry.TimestampEnd = &end
		state.lastSeen = ci.Timestamp
		state.record.Packets = append(state.record.Packets, entry)
	}

	records := make([]protocol.RawRecord, len(order))
	for i, key := range order {
		records[i] = flows[key].record
	}
	stats.Flows = len(records)
	return records, stats, nil
}

// entry builds the packet-entry of a packet and the flow it belongs to.
// Timestamps are filled in by the caller.
func (c *Converter) entry(packet gopacket.Packet, flows map[flowKey]*flowState) (flowKey, protocol.RawPacket, bool) {
	ipLayer, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		return flowKey{}, protocol.RawPacket{}, false
	}
	if _, known := protocol.ProtocolTag(ipLayer.Protocol); !known {
		return flowKey{}, protocol.RawPacket{}, false
	}

	src, _ := netip.AddrFromSlice(ipLayer.SrcIP.To4())
	dst, _ := netip.AddrFromSlice(ipLayer.DstIP.To4())
	var srcPort, dstPort uint16
	var tcp *layers.TCP

	switch ipLayer.Protocol {
	case layers.IPProtocolTCP:
		tcp, ok = packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		if !ok {
			return flowKey{}, protocol.RawPacket{}, false
		}
		srcPort, dstPort = uint16(tcp.SrcPort), uint16(tcp.DstPort)
	case layers.IPProtocolUDP:
		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok {
			return flowKey{}, protocol.RawPacket{}, false
		}
		srcPort, dstPort = uint16(udp.SrcPort), uint16(udp.DstPort)
	}

	outgoing := c.outgoing(ipLayer.Protocol, src, dst, srcPort, dstPort, flows)
	key := flowKey{proto: ipLayer.Protocol, localIP: src, remoteIP: dst, localPort: srcPort, remotePort: dstPort}
	bytes := int64(ipLayer.Length)
	if !outgoing {
		key = flowKey{proto: ipLayer.Protocol, localIP: dst, remoteIP: src, localPort: dstPort, remotePort: srcPort}
		bytes = -bytes
	}

	entry := protocol.RawPacket{
		Bytes:       str(strconv.FormatInt(bytes, 10)),
		IPHeaderLen: str(strconv.Itoa(int(ipLayer.IHL) * 4)),
		Packets:     str("1"),
	}
	if tcp != nil {
		entry.TCPFlags = str(fmt.Sprintf("%08b", tcpFlags(tcp)))
		entry.TCPHeaderLen = str(strconv.Itoa(int(tcp.DataOffset) * 4))
		entry.TCPAckNumber = str(strconv.FormatUint(uint64(tcp.Ack), 10))
		entry.TCPSeqNumber = str(strconv.FormatUint(uint64(tcp.Seq), 10))
	}
	return key, entry, true
}

// outgoing decides whether src is the local side of the packet.
func (c *Converter) outgoing(proto layers.IPProtocol, src, dst netip.Addr, srcPort, dstPort uint16, flows map[flowKey]*flowState) bool {
	if len(c.Local) > 0 {
		for _, p := range c.Local {
			if p.Contains(src) {
				return true
			}
		}
		return false
	}
	reverse := flowKey{proto: proto, localIP: dst, remoteIP: src, localPort: dstPort, remotePort: srcPort}
	_, seenReverse := flows[reverse]
	return !seenReverse
}

func tcpFlags(tcp *layers.TCP) uint8 {
	var f uint8
	for i, set := range []bool{tcp.FIN, tcp.SYN, tcp.RST, tcp.PSH, tcp.ACK, tcp.URG, tcp.ECE, tcp.CWR} {
		if set {
			f |= 1 << i
		}
	}
	return f
}

func tag(proto layers.IPProtocol) string {
	t, _ := protocol.ProtocolTag(proto)
	return t
}

func str(s string) *string {
	return &s
}

// WriteShard writes records as a shard JSON array.
func WriteShard(w io.Writer, records []protocol.RawRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode shard: %w", err)
	}
	return nil
}
