package protocol

import (
	"VPNSpectra/internal/model"
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the capture timestamp format. Fractional seconds are
// optional when parsing.
const TimestampLayout = "2006-01-02 15:04:05"

const formatLayout = "2006-01-02 15:04:05.000000"

// RawRecord is a flow as stored in a shard file.
type RawRecord struct {
	Protocol        string      `json:"ip_proto"`
	PortDestination *uint16     `json:"port_dst"`
	PortSource      *uint16     `json:"port_src"`
	Packets         []RawPacket `json:"x_packets"`
}

// RawPacket is a packet-entry as stored in a shard file. Every number is a
// string; the TCP fields are only present on TCP flows.
type RawPacket struct {
	Bytes          *string `json:"bytes"`
	IPHeaderLen    *string `json:"ip_header_len,omitempty"`
	Packets        *string `json:"packets"`
	TCPAckNumber   *string `json:"tcp_ack_number,omitempty"`
	TCPHeaderLen   *string `json:"tcp_header_len,omitempty"`
	TCPFlags       *string `json:"tcp_flags,omitempty"`
	TCPSeqNumber   *string `json:"tcp_seq_number,omitempty"`
	TimestampStart *string `json:"timestamp_start"`
	TimestampEnd   *string `json:"timestamp_end"`
}

// Stats counts the packet-entries seen while parsing a shard.
type Stats struct {
	Records  int
	Entries  int
	Filtered int
}

// Parsed is the number of packet-entries that made it into the output.
func (s Stats) Parsed() int {
	return s.Entries - s.Filtered
}

// ParseTimestamp parses a capture timestamp as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, time.UTC)
}

// FormatTimestamp renders t in the capture timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(formatLayout)
}

// LoadFile reads and parses one shard file.
func LoadFile(path string) ([]model.ProtocolRecord, error) {
	records, _, err := LoadFileWithStats(path)
	return records, err
}

// LoadFileWithStats is LoadFile that also reports how many entries were
// filtered for lacking a header length.
func LoadFileWithStats(path string) ([]model.ProtocolRecord, Stats, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Stats{}, &model.ParseError{Source: path, Record: -1, Packet: -1, Kind: model.ErrSourceNotFound, Err: err}
		}
		return nil, Stats{}, fmt.Errorf("failed to open shard file: %w", err)
	}
	defer file.Close()

	return Decode(bufio.NewReader(file), path)
}

// Keys of a record and of a packet-entry. encoding/json matches keys
// case-insensitively, so spellings that only differ in case are rejected by
// hand. Other unknown keys are ignored.
var (
	recordKeys = []string{"ip_proto", "port_dst", "port_src", "x_packets"}
	packetKeys = []string{
		"bytes", "ip_header_len", "packets",
		"tcp_ack_number", "tcp_header_len", "tcp_flags", "tcp_seq_number",
		"timestamp_start", "timestamp_end",
	}
)

// Decode parses a JSON array of raw records read from r. The array must be
// the whole input. source names the input in errors.
func Decode(r io.Reader, source string) ([]model.ProtocolRecord, Stats, error) {
	dec := json.NewDecoder(r)
	var elems []json.RawMessage
	if err := dec.Decode(&elems); err != nil {
		return nil, Stats{}, &model.ParseError{Source: source, Record: -1, Packet: -1, Kind: model.ErrMalformedShape, Err: err}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			err = errors.New("trailing data after the record array")
		}
		return nil, Stats{}, &model.ParseError{Source: source, Record: -1, Packet: -1, Kind: model.ErrMalformedShape, Err: err}
	}

	raws := make([]RawRecord, len(elems))
	for i, elem := range elems {
		if err := decodeRecord(elem, &raws[i]); err != nil {
			var perr *model.ParseError
			if errors.As(err, &perr) {
				perr.Source = source
				perr.Record = i
			}
			return nil, Stats{}, err
		}
	}
	return ParseRecords(raws, source)
}

func decodeRecord(data json.RawMessage, raw *RawRecord) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return &model.ParseError{Packet: -1, Kind: model.ErrMalformedShape, Err: err}
	}
	if err := exactKeys(fields, recordKeys); err != nil {
		return err
	}
	if packets, ok := fields["x_packets"]; ok {
		var entries []map[string]json.RawMessage
		if err := json.Unmarshal(packets, &entries); err != nil {
			return &model.ParseError{Packet: -1, Field: "x_packets", Kind: model.ErrMalformedShape, Err: err}
		}
		for j, entry := range entries {
			if err := exactKeys(entry, packetKeys); err != nil {
				return atPacket(err, j)
			}
		}
	}
	if err := json.Unmarshal(data, raw); err != nil {
		return &model.ParseError{Packet: -1, Kind: model.ErrMalformedShape, Err: err}
	}
	return nil
}

// exactKeys rejects a key that matches a known key only when case is ignored.
func exactKeys(fields map[string]json.RawMessage, known []string) error {
	for key := range fields {
		if slices.Contains(known, key) {
			continue
		}
		for _, k := range known {
			if strings.EqualFold(k, key) {
				return &model.ParseError{Packet: -1, Field: key, Kind: model.ErrMalformedShape,
					Err: fmt.Errorf("key must be spelled %q", k)}
			}
		}
	}
	return nil
}

// ParseRecords turns raw records into typed protocol records. Any failure
// aborts the whole shard and is reported as a *model.ParseError.
func ParseRecords(raws []RawRecord, source string) ([]model.ProtocolRecord, Stats, error) {
	stats := Stats{Records: len(raws)}
	records := make([]model.ProtocolRecord, 0, len(raws))
	for i, raw := range raws {
		stats.Entries += len(raw.Packets)
		rec, filtered, err := Dispatch(raw)
		if err != nil {
			var perr *model.ParseError
			if errors.As(err, &perr) {
				perr.Source = source
				perr.Record = i
				return nil, stats, perr
			}
			return nil, stats, &model.ParseError{Source: source, Record: i, Packet: -1, Kind: model.ErrMalformedShape, Err: err}
		}
		stats.Filtered += filtered
		records = append(records, rec)
	}
	return records, stats, nil
}

// hasHeaderLength reports whether an entry survives filtering.
func hasHeaderLength(p RawPacket) bool {
	return p.IPHeaderLen != nil
}

// generatePackets builds base packets from every entry carrying a header
// length and reports how many were dropped.
func generatePackets(raws []RawPacket) ([]model.BasePacket, int, error) {
	packets := make([]model.BasePacket, 0, len(raws))
	for i, raw := range raws {
		if !hasHeaderLength(raw) {
			continue
		}
		p, err := generatePacket(raw)
		if err != nil {
			return nil, 0, atPacket(err, i)
		}
		packets = append(packets, p)
	}
	return packets, len(raws) - len(packets), nil
}

func generatePacket(raw RawPacket) (model.BasePacket, error) {
	if err := requireFields(raw); err != nil {
		return model.BasePacket{}, err
	}

	bytes, err := strconv.ParseInt(*raw.Bytes, 10, 32)
	if err != nil {
		return model.BasePacket{}, fieldError("bytes", err)
	}
	headerLen, err := strconv.ParseUint(*raw.IPHeaderLen, 10, 8)
	if err != nil {
		return model.BasePacket{}, fieldError("ip_header_len", err)
	}
	count, err := strconv.ParseUint(*raw.Packets, 10, 8)
	if err != nil {
		return model.BasePacket{}, fieldError("packets", err)
	}
	start, err := ParseTimestamp(*raw.TimestampStart)
	if err != nil {
		return model.BasePacket{}, fieldError("timestamp_start", err)
	}
	end, err := ParseTimestamp(*raw.TimestampEnd)
	if err != nil {
		return model.BasePacket{}, fieldError("timestamp_end", err)
	}

	magnitude := bytes
	if magnitude < 0 {
		magnitude = -magnitude
	}

	return model.BasePacket{
		Bytes:          uint32(magnitude),
		Direction:      model.DirectionOf(bytes),
		IPHeaderLength: uint8(headerLen),
		PacketCount:    uint8(count),
		// Negative when the capture recorded end before start; kept as is.
		Duration: end.Sub(start),
	}, nil
}

func requireFields(raw RawPacket) error {
	required := []struct {
		name  string
		value *string
	}{
		{"bytes", raw.Bytes},
		{"packets", raw.Packets},
		{"timestamp_start", raw.TimestampStart},
		{"timestamp_end", raw.TimestampEnd},
	}
	for _, f := range required {
		if f.value == nil {
			return &model.ParseError{Record: -1, Packet: -1, Field: f.name, Kind: model.ErrMalformedShape}
		}
	}
	return nil
}

func fieldError(field string, err error) error {
	return &model.ParseError{Record: -1, Packet: -1, Field: field, Kind: model.ErrFieldParse, Err: err}
}

func atPacket(err error, index int) error {
	var perr *model.ParseError
	if errors.As(err, &perr) {
		perr.Packet = index
	}
	return err
}
