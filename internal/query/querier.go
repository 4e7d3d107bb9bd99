package query

import (
	"VPNSpectra/internal/config"
	"VPNSpectra/internal/engine/histogram"
	"VPNSpectra/internal/model"
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Querier defines the interface for reading byte-size histograms.
type Querier interface {
	// Histogram returns the histogram restricted to enc, or the whole
	// histogram when enc is nil.
	Histogram(ctx context.Context, enc *model.Encryption) (model.Histogram, error)
}

// memoryQuerier serves a histogram built in process.
type memoryQuerier struct {
	hist model.Histogram
}

// NewMemoryQuerier creates a querier over a fixed histogram.
func NewMemoryQuerier(hist model.Histogram) Querier {
	return &memoryQuerier{hist: hist}
}

func (q *memoryQuerier) Histogram(_ context.Context, enc *model.Encryption) (model.Histogram, error) {
	if enc == nil {
		return q.hist, nil
	}
	return histogram.Filter(q.hist, *enc), nil
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn clickhouse.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (clickhouse.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
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

// buildHistogramQuery selects the bars of the most recent snapshot.
func buildHistogramQuery(enc *model.Encryption) (string, []interface{}) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT Encryption, Category, Bytes, Count
		FROM byte_size_histogram
		WHERE Timestamp = (SELECT max(Timestamp) FROM byte_size_histogram)`)

	args := []interface{}{}
	if enc != nil {
		queryBuilder.WriteString(" AND Encryption = ?")
		args = append(args, enc.String())
	}
	queryBuilder.WriteString(" ORDER BY Encryption, Category, Bytes")
	return queryBuilder.String(), args
}

// Histogram reads the latest histogram snapshot.
func (q *clickhouseQuerier) Histogram(ctx context.Context, enc *model.Encryption) (model.Histogram, error) {
	query, args := buildHistogramQuery(enc)
	rows, err := q.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	hist := make(model.Histogram)
	for rows.Next() {
		var (
			encName, catName string
			bytes            uint32
			count            uint64
		)
		if err := rows.Scan(&encName, &catName, &bytes, &count); err != nil {
			return nil, fmt.Errorf("failed to scan histogram row: %w", err)
		}
		if err := addRow(hist, encName, catName, bytes, count); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read histogram rows: %w", err)
	}
	return hist, nil
}

func addRow(hist model.Histogram, encName, catName string, bytes uint32, count uint64) error {
	enc, err := model.ParseEncryption(encName)
	if err != nil {
		return fmt.Errorf("invalid stored encryption: %w", err)
	}
	cat, err := model.ParseDataCategory(catName)
	if err != nil {
		return fmt.Errorf("invalid stored category: %w", err)
	}
	hist.Add(enc, cat, bytes, int(count))
	return nil
}
