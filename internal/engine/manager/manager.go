package manager

import (
	"VPNSpectra/internal/catalog"
	"VPNSpectra/internal/config"
	"VPNSpectra/internal/engine/aggregator"
	"VPNSpectra/internal/engine/encoder"
	"VPNSpectra/internal/engine/histogram"
	"VPNSpectra/internal/engine/splitter"
	"VPNSpectra/internal/engine/writer"
	"VPNSpectra/internal/factory"
	"VPNSpectra/internal/feed"
	"VPNSpectra/internal/metrics"
	"VPNSpectra/internal/model"
	"fmt"
	"log"
	"sync"
	"time"
)

// BatchPublisher receives every encoded mini-batch of a run.
type BatchPublisher interface {
	Publish(subset string, batch model.Batch) error
}

// Report summarizes one preparation run.
type Report struct {
	Shards          int
	FailedShards    int
	Packets         int
	FilteredEntries int
	TrainPackets    int
	ValidPackets    int
	Batches         int
	Timestamp       string
}

// Manager runs the dataset preparation pipeline: load, histogram, split,
// encode and publish.
type Manager struct {
	cfg       *config.Config
	selector  catalog.Selector
	policy    aggregator.Policy
	agg       *aggregator.Aggregator
	encoder   *encoder.Encoder
	writers   []model.Writer
	publisher BatchPublisher
	closers   []func() error
}

// NewManager creates a Manager from the configuration. m may be nil.
func NewManager(cfg *config.Config, m *metrics.Metrics) (*Manager, error) {
	writers, err := factory.CreateWriters(cfg)
	if err != nil {
		return nil, err
	}

	mgr, err := newManager(cfg, m, writers, nil)
	if err != nil {
		return nil, err
	}

	if cfg.Feed.Enabled {
		pub, err := feed.NewPublisher(cfg.Feed)
		if err != nil {
			mgr.Close()
			return nil, fmt.Errorf("failed to connect batch feed: %w", err)
		}
		log.Printf("Publishing batches of run %s to '%s'", pub.RunID(), cfg.Feed.Subject)
		mgr.publisher = pub
		mgr.closers = append(mgr.closers, pub.Close)
	}
	return mgr, nil
}

func newManager(cfg *config.Config, m *metrics.Metrics, writers []model.Writer, pub BatchPublisher) (*Manager, error) {
	sel, err := catalog.ParseSelector(cfg.Dataset.Encryption, cfg.Dataset.Categories)
	if err != nil {
		return nil, err
	}
	policy, err := aggregator.ParsePolicy(cfg.Loader.OnError)
	if err != nil {
		return nil, err
	}
	return &Manager{
		cfg:       cfg,
		selector:  sel,
		policy:    policy,
		agg:       aggregator.New(cfg.Dataset.RootPath, cfg.Loader.NumWorkers, m),
		encoder:   encoder.New(cfg.Encoder.DegenerateValue, cfg.Encoder.PadValue, m),
		writers:   writers,
		publisher: pub,
	}, nil
}

// Load reads and collects the selected shards.
func (m *Manager) Load() ([]model.DatasetShard, Report, error) {
	results := m.agg.Load(m.selector)
	report := Report{FailedShards: len(aggregator.Failed(results))}
	for _, res := range results {
		report.FilteredEntries += res.Stats.Filtered
	}

	shards, err := aggregator.Collect(results, m.policy)
	if err != nil {
		return nil, report, err
	}
	report.Shards = len(shards)
	for i := range shards {
		report.Packets += shards[i].PacketCount()
	}
	log.Printf("Loaded %d shards with %d packets (%d entries without header length dropped).", report.Shards, report.Packets, report.FilteredEntries)
	return shards, report, nil
}

// Run executes the whole pipeline once.
func (m *Manager) Run() (Report, error) {
	shards, report, err := m.Load()
	if err != nil {
		return report, err
	}

	report.Timestamp = time.Now().Format(writer.TimestampLayout)
	m.writeHistogram(histogram.Build(shards), report.Timestamp)

	train, valid, err := splitter.Split(shards, m.cfg.Split.TrainRatio, m.cfg.Split.Seed)
	if err != nil {
		return report, err
	}
	report.TrainPackets, report.ValidPackets = train.Len(), valid.Len()
	log.Printf("Split %d packets into %d train and %d validation (ratio %.2f, seed %d).",
		report.Packets, train.Len(), valid.Len(), m.cfg.Split.TrainRatio, m.cfg.Split.Seed)

	for _, subset := range []struct {
		name   string
		shards []model.DatasetShard
	}{
		{feed.SubsetTrain, train.Shards},
		{feed.SubsetValidation, valid.Shards},
	} {
		n, err := m.emit(subset.name, subset.shards)
		report.Batches += n
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// writeHistogram hands the histogram to every writer concurrently. Writer
// failures are logged, not returned.
func (m *Manager) writeHistogram(hist model.Histogram, timestamp string) {
	if len(m.writers) == 0 {
		return
	}
	log.Printf("Writing histogram at %s to %d writers.", timestamp, len(m.writers))

	var wg sync.WaitGroup
	wg.Add(len(m.writers))
	for _, writer := range m.writers {
		go func(w model.Writer) {
			defer wg.Done()
			if err := w.Write(hist, timestamp); err != nil {
				log.Printf("Error writing histogram: %v", err)
			}
		}(writer)
	}
	wg.Wait()
}

func (m *Manager) emit(subset string, shards []model.DatasetShard) (int, error) {
	batches := m.encoder.Batches(shards, m.cfg.Encoder.BatchSize)
	for i, batch := range batches {
		if len(batch.DegenerateColumns) > 0 {
			log.Printf("%s batch %d: columns %v have a single value, replaced by %v", subset, i, batch.DegenerateColumns, m.cfg.Encoder.DegenerateValue)
		}
		if m.publisher == nil {
			log.Printf("%s batch %d: %d rows", subset, i, batch.Len())
			continue
		}
		if err := m.publisher.Publish(subset, batch); err != nil {
			return i, fmt.Errorf("failed to publish %s batch %d: %w", subset, i, err)
		}
	}
	return len(batches), nil
}

// Close releases writers and the batch feed.
func (m *Manager) Close() {
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			log.Printf("Error closing writer: %v", err)
		}
	}
	for _, c := range m.closers {
		if err := c(); err != nil {
			log.Printf("Error closing batch feed: %v", err)
		}
	}
	log.Println("Manager stopped.")
}
