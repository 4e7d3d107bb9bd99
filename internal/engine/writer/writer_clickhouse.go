package writer

import (
	"VPNSpectra/internal/config"
	"VPNSpectra/internal/engine/histogram"
	"VPNSpectra/internal/factory"
	"VPNSpectra/internal/model"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

func init() {
	factory.RegisterWriter("clickhouse", func(def config.WriterDef) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse)
	})
}

// HistogramTable is the ClickHouse table histogram rows are inserted into.
const HistogramTable = "byte_size_histogram"

const createTableStatement = `
CREATE TABLE IF NOT EXISTS byte_size_histogram (
    Timestamp   DateTime,
    Encryption  String,
    Category    String,
    Bytes       UInt32,
    Count       UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Encryption, Category, Timestamp, Bytes);
`

// Row is one histogram bar as stored in ClickHouse.
type Row struct {
	Timestamp  time.Time
	Encryption string
	Category   string
	Bytes      uint32
	Count      uint64
}

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter creates a new ClickHouse writer.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (model.Writer, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: false,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// Rows flattens hist into table rows, series in catalog order and bars by
// ascending byte size.
func Rows(hist model.Histogram, timestamp string) ([]Row, error) {
	snapshotTime, err := time.Parse(TimestampLayout, timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot timestamp %q: %w", timestamp, err)
	}

	var rows []Row
	for _, p := range histogram.Pairs(hist) {
		for _, bin := range histogram.Bins(hist, p) {
			rows = append(rows, Row{
				Timestamp:  snapshotTime,
				Encryption: p.Encryption.String(),
				Category:   p.Category.String(),
				Bytes:      bin.Bytes,
				Count:      uint64(bin.Count),
			})
		}
	}
	return rows, nil
}

// Write inserts the histogram into the byte_size_histogram table.
func (w *ClickHouseWriter) Write(hist model.Histogram, timestamp string) error {
	rows, err := Rows(hist, timestamp)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil // Nothing to write
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO "+HistogramTable)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, r := range rows {
		if err := batch.Append(r.Timestamp, r.Encryption, r.Category, r.Bytes, r.Count); err != nil {
			return fmt.Errorf("failed to append histogram row to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("Wrote %d histogram rows to ClickHouse", len(rows))
	return nil
}

// Close closes the ClickHouse connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
