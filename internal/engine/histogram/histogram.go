// Package histogram counts packet byte sizes per encryption and category for
// the visualization side of the pipeline.
package histogram

import (
	"VPNSpectra/internal/model"
	"cmp"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Pair identifies one histogram series.
type Pair struct {
	Encryption model.Encryption
	Category   model.DataCategory
}

func (p Pair) String() string {
	return p.Encryption.String() + "/" + p.Category.String()
}

// Build counts the byte size of every packet in shards. Shards with the same
// encryption and category are merged into one series.
func Build(shards []model.DatasetShard) model.Histogram {
	counts := make([]map[uint32]int, len(shards))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range shards {
		g.Go(func() error {
			counts[i] = countSizes(&shards[i])
			return nil
		})
	}
	g.Wait()

	h := make(model.Histogram)
	for i, sizes := range counts {
		for size, n := range sizes {
			h.Add(shards[i].Encryption, shards[i].Category, size, n)
		}
	}
	return h
}

func countSizes(shard *model.DatasetShard) map[uint32]int {
	sizes := make(map[uint32]int)
	for _, rec := range shard.Records {
		for _, p := range rec.BasePackets() {
			sizes[p.Bytes]++
		}
	}
	return sizes
}

// Merge adds every count of src into dst.
func Merge(dst, src model.Histogram) {
	for enc, cats := range src {
		for cat, sizes := range cats {
			for size, n := range sizes {
				dst.Add(enc, cat, size, n)
			}
		}
	}
}

// Filter returns the part of h that belongs to enc. The returned histogram
// shares its inner maps with h.
func Filter(h model.Histogram, enc model.Encryption) model.Histogram {
	out := make(model.Histogram)
	if cats, ok := h[enc]; ok {
		out[enc] = cats
	}
	return out
}

// Pairs lists the series of h in catalog order.
func Pairs(h model.Histogram) []Pair {
	var pairs []Pair
	for enc, cats := range h {
		for cat := range cats {
			pairs = append(pairs, Pair{Encryption: enc, Category: cat})
		}
	}
	slices.SortFunc(pairs, func(a, b Pair) int {
		if c := cmp.Compare(a.Encryption.Offset(), b.Encryption.Offset()); c != 0 {
			return c
		}
		return cmp.Compare(a.Category.Index(), b.Category.Index())
	})
	return pairs
}

// Bin is one bar of a series.
type Bin struct {
	Bytes uint32
	Count int
}

// Bins returns the bars of a series sorted by byte size.
func Bins(h model.Histogram, p Pair) []Bin {
	sizes := h[p.Encryption][p.Category]
	bins := make([]Bin, 0, len(sizes))
	for size, n := range sizes {
		bins = append(bins, Bin{Bytes: size, Count: n})
	}
	slices.SortFunc(bins, func(a, b Bin) int { return cmp.Compare(a.Bytes, b.Bytes) })
	return bins
}
