package aggregator

import (
	"VPNSpectra/internal/catalog"
	"VPNSpectra/internal/engine/protocol"
	"VPNSpectra/internal/metrics"
	"VPNSpectra/internal/model"
	"errors"
	"fmt"
	"log"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Policy decides what Collect does with shards that failed to load.
type Policy int

const (
	// PolicyAbort fails the whole aggregation when any shard failed.
	PolicyAbort Policy = iota
	// PolicySkip logs failed shards and keeps the others.
	PolicySkip
)

func (p Policy) String() string {
	if p == PolicySkip {
		return "skip"
	}
	return "abort"
}

// ParsePolicy accepts "abort" and "skip".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return PolicyAbort, nil
	case "skip":
		return PolicySkip, nil
	}
	return 0, fmt.Errorf("unknown error policy: %q", s)
}

// ShardResult is the outcome of loading one catalog entry. Exactly one of
// Shard and Err is meaningful.
type ShardResult struct {
	Entry catalog.Entry
	Path  string
	Shard model.DatasetShard
	Stats protocol.Stats
	Err   error
}

// Aggregator loads shard files from a dataset root in parallel.
type Aggregator struct {
	root       string
	numWorkers int
	metrics    *metrics.Metrics
}

// New creates an aggregator. numWorkers <= 0 uses one worker per CPU.
// m may be nil.
func New(root string, numWorkers int, m *metrics.Metrics) *Aggregator {
	if root == "" {
		root = catalog.DefaultRoot
	}
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Aggregator{root: root, numWorkers: numWorkers, metrics: m}
}

// Load reads every entry accepted by sel. Each entry is loaded on its own
// and reported in its own ShardResult; the order of the results carries no
// meaning.
func (a *Aggregator) Load(sel catalog.Selector) []ShardResult {
	return a.LoadEntries(catalog.Select(sel))
}

// LoadEntries reads the given entries.
func (a *Aggregator) LoadEntries(entries []catalog.Entry) []ShardResult {
	// Every goroutine owns one slot, so no lock is needed until the merge.
	results := make([]ShardResult, len(entries))

	var g errgroup.Group
	g.SetLimit(a.numWorkers)
	for i, entry := range entries {
		g.Go(func() error {
			results[i] = a.load(entry)
			return nil
		})
	}
	g.Wait()

	return results
}

// LoadOne reads a single shard.
func (a *Aggregator) LoadOne(enc model.Encryption, cat model.DataCategory) (model.DatasetShard, error) {
	res := a.load(catalog.Entry{Encryption: enc, Category: cat})
	return res.Shard, res.Err
}

func (a *Aggregator) load(entry catalog.Entry) ShardResult {
	path := entry.Path(a.root)
	start := time.Now()

	records, stats, err := protocol.LoadFileWithStats(path)
	took := time.Since(start)
	if err != nil {
		a.metrics.ShardFailed(took)
		return ShardResult{Entry: entry, Path: path, Stats: stats, Err: fmt.Errorf("failed to load shard %s: %w", entry, err)}
	}
	a.metrics.ShardLoaded(stats.Parsed(), stats.Filtered, took)

	return ShardResult{
		Entry: entry,
		Path:  path,
		Stats: stats,
		Shard: model.DatasetShard{
			Encryption: entry.Encryption,
			Category:   entry.Category,
			Source:     path,
			Records:    records,
		},
	}
}

// Collect merges load results according to policy. Under PolicyAbort any
// failure returns every failure joined and no shards.
func Collect(results []ShardResult, policy Policy) ([]model.DatasetShard, error) {
	shards := make([]model.DatasetShard, 0, len(results))
	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
			continue
		}
		shards = append(shards, res.Shard)
	}

	if len(errs) == 0 {
		return shards, nil
	}
	if policy == PolicyAbort {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		log.Printf("Skipping shard: %v", err)
	}
	log.Printf("Kept %d of %d shards.", len(shards), len(results))
	return shards, nil
}

// Failed returns the results that carry an error.
func Failed(results []ShardResult) []ShardResult {
	var out []ShardResult
	for _, res := range results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}
