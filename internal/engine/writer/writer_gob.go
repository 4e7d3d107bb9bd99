package writer

import (
	"VPNSpectra/internal/config"
	"VPNSpectra/internal/engine/histogram"
	"VPNSpectra/internal/factory"
	"VPNSpectra/internal/model"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

func init() {
	factory.RegisterWriter("gob", func(def config.WriterDef) (model.Writer, error) {
		return NewGobWriter(def.Gob.RootPath), nil
	})
}

// TimestampLayout names snapshot directories and ClickHouse rows.
const TimestampLayout = "2006-01-02_15-04-05"

// Series is the gob payload of one .dat file.
type Series struct {
	Encryption model.Encryption
	Category   model.DataCategory
	Counts     map[uint32]int
}

// SeriesSummary describes one written series.
type SeriesSummary struct {
	Encryption string `json:"encryption"`
	Category   string `json:"category"`
	File       string `json:"file"`
	Packets    int    `json:"packets"`
	Sizes      int    `json:"sizes"`
	MinBytes   uint32 `json:"min_bytes"`
	MaxBytes   uint32 `json:"max_bytes"`
}

// SummaryData holds the metadata for a histogram snapshot, internal to the writer.
type SummaryData struct {
	TotalPackets int             `json:"total_packets"`
	Series       []SeriesSummary `json:"series"`
	Timestamp    string          `json:"timestamp"`
}

// GobWriter writes a histogram to disk as one gob file per series plus a
// summary.json. It implements the model.Writer interface.
type GobWriter struct {
	rootPath string
}

// NewGobWriter creates a new writer rooted at rootPath.
func NewGobWriter(rootPath string) model.Writer {
	return &GobWriter{rootPath: rootPath}
}

// SeriesFileName is the .dat file name of a series, e.g. "VPN_WireGuard_Mail.dat".
func SeriesFileName(p histogram.Pair) string {
	enc := p.Encryption.Kind.String()
	if p.Encryption.IsVPN() {
		enc += "_" + p.Encryption.Protocol.String()
	}
	return fmt.Sprintf("%s_%s.dat", enc, p.Category)
}

// Write serializes every non-empty series of hist under rootPath/timestamp.
// Nothing is written for an empty histogram.
func (w *GobWriter) Write(hist model.Histogram, timestamp string) error {
	pairs := histogram.Pairs(hist)
	ranges := hist.Ranges()

	summary := SummaryData{Timestamp: time.Now().UTC().Format(time.RFC3339)}
	snapshotDir := filepath.Join(w.rootPath, timestamp)

	for _, p := range pairs {
		counts := hist[p.Encryption][p.Category]
		if len(counts) == 0 {
			continue
		}
		if len(summary.Series) == 0 {
			if err := os.MkdirAll(snapshotDir, 0755); err != nil {
				return fmt.Errorf("failed to create snapshot directory: %w", err)
			}
		}

		fileName := SeriesFileName(p)
		filePath := filepath.Join(snapshotDir, fileName)
		if err := writeSeries(filePath, Series{Encryption: p.Encryption, Category: p.Category, Counts: counts}); err != nil {
			return err
		}

		packets := hist.Total(p.Encryption, p.Category)
		summary.TotalPackets += packets
		summary.Series = append(summary.Series, SeriesSummary{
			Encryption: p.Encryption.String(),
			Category:   p.Category.String(),
			File:       fileName,
			Packets:    packets,
			Sizes:      len(counts),
			MinBytes:   ranges[p.Encryption][p.Category].Min,
			MaxBytes:   ranges[p.Encryption][p.Category].Max,
		})
	}

	if len(summary.Series) == 0 {
		return nil
	}

	summaryFilePath := filepath.Join(snapshotDir, "summary.json")
	summaryFile, err := os.Create(summaryFilePath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	jsonEncoder := json.NewEncoder(summaryFile)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}

	log.Printf("Wrote %d histogram series (%d packets) to %s", len(summary.Series), summary.TotalPackets, snapshotDir)
	return nil
}

func writeSeries(filePath string, s Series) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", filePath, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(s); err != nil {
		return fmt.Errorf("failed to encode series to gob for file '%s': %w", filePath, err)
	}
	return nil
}

// ReadSeries decodes a .dat file written by GobWriter.
func ReadSeries(filePath string) (Series, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return Series{}, fmt.Errorf("failed to open series file: %w", err)
	}
	defer file.Close()

	var s Series
	if err := gob.NewDecoder(file).Decode(&s); err != nil {
		return Series{}, fmt.Errorf("failed to decode series file '%s': %w", filePath, err)
	}
	return s, nil
}

// ReadSnapshot rebuilds the histogram of a snapshot directory.
func ReadSnapshot(dir string) (model.Histogram, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.dat"))
	if err != nil {
		return nil, err
	}
	hist := make(model.Histogram)
	for _, f := range files {
		s, err := ReadSeries(f)
		if err != nil {
			return nil, err
		}
		for size, n := range s.Counts {
			hist.Add(s.Encryption, s.Category, size, n)
		}
	}
	return hist, nil
}

// Close is a no-op.
func (w *GobWriter) Close() error {
	return nil
}
