// Package encoder turns dataset shards into normalized feature rows and
// integer labels for the training process.
//
// A packet has 7 features for UDP, GRE and ICMP and 11 for TCP. Each column
// is min-max normalized over the rows of the batch that have that column, so
// the TCP-only columns are scaled across TCP rows alone. Afterwards every row
// is padded to TcpWidth with the pad value, so a batch is always a
// rectangular len(rows) x TcpWidth matrix.
package encoder

import (
	"VPNSpectra/internal/metrics"
	"VPNSpectra/internal/model"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Row widths.
const (
	BaseWidth = 7
	TcpWidth  = 11
)

// Column positions in a feature row.
const (
	ColPortSource = iota
	ColPortDestination
	ColPacketCount
	ColDurationMillis
	ColIPHeaderLength
	ColDirection
	ColBytes
	ColTcpFlags
	ColTcpHeaderLen
	ColTcpAckNumber
	// ColTcpHeaderLenRepeat carries header_len a second time. The slot was
	// probably meant for the sequence number; it is kept as is so encoded
	// batches stay comparable with earlier runs.
	ColTcpHeaderLenRepeat
)

// DefaultSubstitute replaces every value of a zero-range column.
const DefaultSubstitute float32 = 0

// DefaultPad fills the TCP-only columns of base packet rows. It lies outside
// [0, 1] so it cannot be mistaken for a normalized value.
const DefaultPad float32 = -1

// Encoder encodes shards into batches.
type Encoder struct {
	substitute float32
	pad        float32
	metrics    *metrics.Metrics
}

// New creates an encoder that writes substitute into zero-range columns and
// pad into the columns a row does not have. m may be nil.
func New(substitute, pad float32, m *metrics.Metrics) *Encoder {
	return &Encoder{substitute: substitute, pad: pad, metrics: m}
}

// Encode encodes shards with the default substitute and pad.
func Encode(shards []model.DatasetShard) model.Batch {
	return New(DefaultSubstitute, DefaultPad, nil).Encode(shards)
}

// Encode flattens every packet of every shard into one normalized batch.
// Rows follow shard, record and packet order; each row is labelled with its
// shard's category and encryption.
func (e *Encoder) Encode(shards []model.DatasetShard) model.Batch {
	raw, labels := RawFeatures(shards)
	features, degenerate := normalize(raw, e.substitute)
	e.metrics.BatchEncoded(len(features), len(degenerate))
	return model.Batch{
		Features:          padRows(features, e.pad),
		Labels:            labels,
		DegenerateColumns: degenerate,
	}
}

// Batches encodes shards in groups of size shards, one batch per group.
// size <= 0 encodes everything as a single batch. No shards, no batches.
func (e *Encoder) Batches(shards []model.DatasetShard, size int) []model.Batch {
	if len(shards) == 0 {
		return nil
	}
	if size <= 0 || size >= len(shards) {
		return []model.Batch{e.Encode(shards)}
	}
	batches := make([]model.Batch, 0, (len(shards)+size-1)/size)
	for start := 0; start < len(shards); start += size {
		end := min(start+size, len(shards))
		batches = append(batches, e.Encode(shards[start:end]))
	}
	return batches
}

type recordJob struct {
	record model.ProtocolRecord
	label  model.Label
	offset int
}

// RawFeatures returns the un-normalized feature rows and their labels.
func RawFeatures(shards []model.DatasetShard) ([][]float64, []model.Label) {
	var jobs []recordJob
	total := 0
	for _, shard := range shards {
		label := model.LabelFor(shard.Encryption, shard.Category)
		for _, rec := range shard.Records {
			jobs = append(jobs, recordJob{record: rec, label: label, offset: total})
			total += rec.Len()
		}
	}

	rows := make([][]float64, total)
	labels := make([]model.Label, total)

	// Records are independent and write disjoint row ranges.
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, job := range jobs {
		g.Go(func() error {
			encodeRecord(job.record, rows[job.offset:job.offset+job.record.Len()])
			for i := job.offset; i < job.offset+job.record.Len(); i++ {
				labels[i] = job.label
			}
			return nil
		})
	}
	g.Wait()

	return rows, labels
}

func encodeRecord(rec model.ProtocolRecord, out [][]float64) {
	src, dst := rec.Ports()
	switch r := rec.(type) {
	case model.TcpRecord:
		for i, p := range r.Packets {
			out[i] = TcpFeatures(src, dst, p)
		}
	case model.UdpRecord, model.GreRecord, model.IcmpRecord:
		for i, p := range rec.BasePackets() {
			out[i] = BaseFeatures(src, dst, p)
		}
	}
}

// BaseFeatures is the 7-value row of a packet.
func BaseFeatures(src, dst uint16, p model.BasePacket) []float64 {
	direction := 0.0
	if p.Direction == model.Outgoing {
		direction = 1.0
	}
	row := make([]float64, BaseWidth, TcpWidth)
	row[ColPortSource] = float64(src)
	row[ColPortDestination] = float64(dst)
	row[ColPacketCount] = float64(p.PacketCount)
	row[ColDurationMillis] = float64(p.Duration.Milliseconds())
	row[ColIPHeaderLength] = float64(p.IPHeaderLength)
	row[ColDirection] = direction
	row[ColBytes] = float64(p.Bytes)
	return row
}

// TcpFeatures is the 11-value row of a TCP packet.
func TcpFeatures(src, dst uint16, p model.TcpPacket) []float64 {
	return append(BaseFeatures(src, dst, p.Base),
		float64(p.Flags),
		float64(p.HeaderLen),
		float64(p.AckNumber),
		float64(p.HeaderLen),
	)
}

// normalize min-max scales every column over the rows that have it. A
// column whose min equals its max gets substitute in every row.
func normalize(rows [][]float64, substitute float32) ([][]float32, []int) {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	mins := make([]float64, width)
	maxs := make([]float64, width)
	for c := range width {
		mins[c] = math.Inf(1)
		maxs[c] = math.Inf(-1)
	}
	for _, row := range rows {
		for c, v := range row {
			mins[c] = math.Min(mins[c], v)
			maxs[c] = math.Max(maxs[c], v)
		}
	}

	var degenerate []int
	for c := range width {
		if maxs[c] == mins[c] {
			degenerate = append(degenerate, c)
		}
	}

	out := make([][]float32, len(rows))
	for i, row := range rows {
		scaled := make([]float32, len(row))
		for c, v := range row {
			span := maxs[c] - mins[c]
			if span == 0 {
				scaled[c] = substitute
				continue
			}
			scaled[c] = float32((v - mins[c]) / span)
		}
		out[i] = scaled
	}
	return out, degenerate
}

// padRows extends every row to TcpWidth with pad.
func padRows(rows [][]float32, pad float32) [][]float32 {
	out := make([][]float32, len(rows))
	for i, row := range rows {
		dense := make([]float32, TcpWidth)
		n := copy(dense, row)
		for c := n; c < TcpWidth; c++ {
			dense[c] = pad
		}
		out[i] = dense
	}
	return out
}
