// Package splitter partitions a shard collection into train and validation
// subsets, reproducibly for a given seed.
package splitter

import (
	"VPNSpectra/internal/model"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// Subset is one side of a split.
type Subset struct {
	// Indices are packet indices into the original collection, in shuffled
	// order. Packet i is the i-th packet walking shards, records and
	// packets in order.
	Indices []int
	// Shards holds only the selected packets, in their original order.
	// Records and shards left without packets are dropped.
	Shards []model.DatasetShard
}

// Len is the number of packets in the subset.
func (s Subset) Len() int {
	return len(s.Indices)
}

// Split shuffles the packet index space of shards with a PCG generator
// seeded by seed and assigns the first floor(n*ratio) indices to train and
// the rest to validation.
func Split(shards []model.DatasetShard, ratio float64, seed uint64) (Subset, Subset, error) {
	if ratio < 0 || ratio > 1 || math.IsNaN(ratio) {
		return Subset{}, Subset{}, fmt.Errorf("split ratio must be within [0, 1], got %v", ratio)
	}

	n := 0
	for i := range shards {
		n += shards[i].PacketCount()
	}

	perm := Permutation(n, seed)
	cut := int(float64(n) * ratio)

	train := Subset{Indices: perm[:cut:cut]}
	valid := Subset{Indices: perm[cut:]}
	train.Shards = Materialize(shards, train.Indices)
	valid.Shards = Materialize(shards, valid.Indices)
	return train, valid, nil
}

// Permutation returns a seeded permutation of [0, n).
func Permutation(n int, seed uint64) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(n, func(i, j int) {
		perm[i], perm[j] = perm[j], perm[i]
	})
	return perm
}

// Materialize builds the shards holding exactly the packets at indices.
func Materialize(shards []model.DatasetShard, indices []int) []model.DatasetShard {
	selected := slices.Clone(indices)
	slices.Sort(selected)

	var out []model.DatasetShard
	next := 0 // position in selected
	offset := 0
	for _, shard := range shards {
		var records []model.ProtocolRecord
		for _, rec := range shard.Records {
			var keep []int
			for next < len(selected) && selected[next] < offset+rec.Len() {
				keep = append(keep, selected[next]-offset)
				next++
			}
			offset += rec.Len()
			if len(keep) > 0 {
				records = append(records, pick(rec, keep))
			}
		}
		if len(records) > 0 {
			out = append(out, model.DatasetShard{
				Encryption: shard.Encryption,
				Category:   shard.Category,
				Source:     shard.Source,
				Records:    records,
			})
		}
	}
	return out
}

// pick copies the packets at positions keep (sorted) out of rec.
func pick(rec model.ProtocolRecord, keep []int) model.ProtocolRecord {
	switch r := rec.(type) {
	case model.TcpRecord:
		r.Packets = pickPackets(r.Packets, keep)
		return r
	case model.UdpRecord:
		r.Packets = pickPackets(r.Packets, keep)
		return r
	case model.GreRecord:
		r.Packets = pickPackets(r.Packets, keep)
		return r
	case model.IcmpRecord:
		r.Packets = pickPackets(r.Packets, keep)
		return r
	default:
		panic(fmt.Sprintf("splitter: unknown record type %T", rec))
	}
}

func pickPackets[T model.BasePacket | model.TcpPacket](packets []T, keep []int) []T {
	out := make([]T, len(keep))
	for i, k := range keep {
		out[i] = packets[k]
	}
	return out
}
