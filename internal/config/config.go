package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DatasetConfig locates the dataset tree and selects which shards to load.
type DatasetConfig struct {
	RootPath string `yaml:"root_path"`
	// Encryption is "", "all", "vpn", "nonvpn" or a single encryption such as
	// "VPN(WireGuard)".
	Encryption string `yaml:"encryption"`
	// Categories restricts loading to the named categories. Empty means all.
	Categories []string `yaml:"categories"`
}

// LoaderConfig holds the configuration for the parallel shard loader.
type LoaderConfig struct {
	NumWorkers int `yaml:"num_workers"`
	// OnError is "abort" or "skip".
	OnError string `yaml:"on_error"`
}

// SplitConfig holds the train/validation split parameters.
type SplitConfig struct {
	TrainRatio float64 `yaml:"train_ratio"`
	Seed       uint64  `yaml:"seed"`
}

// EncoderConfig holds the feature encoder parameters.
type EncoderConfig struct {
	// BatchSize is the number of shards per encoded batch. 0 encodes every
	// shard of a subset into a single batch.
	BatchSize       int     `yaml:"batch_size"`
	DegenerateValue float32 `yaml:"degenerate_value"`
	// PadValue fills the TCP-only columns of UDP, GRE and ICMP rows.
	PadValue        float32 `yaml:"pad_value"`
}

// FeedConfig configures the NATS batch feed.
type FeedConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// GobConfig configures the gob histogram writer.
type GobConfig struct {
	RootPath string `yaml:"root_path"`
}

// ClickHouseConfig holds the connection settings of a ClickHouse server.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WriterDef defines a single histogram writer.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	Gob        GobConfig        `yaml:"gob"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// HistogramConfig lists the sinks the byte-size histogram is written to.
type HistogramConfig struct {
	Writers []WriterDef `yaml:"writers"`
}

// APIConfig holds the HTTP API settings.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// Source is where histograms are served from: "dataset" builds them from
	// the dataset tree at startup, "clickhouse" reads the latest snapshot.
	Source     string           `yaml:"source"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Dataset   DatasetConfig   `yaml:"dataset"`
	Loader    LoaderConfig    `yaml:"loader"`
	Split     SplitConfig     `yaml:"split"`
	Encoder   EncoderConfig   `yaml:"encoder"`
	Feed      FeedConfig      `yaml:"feed"`
	Histogram HistogramConfig `yaml:"histogram"`
	API       APIConfig       `yaml:"api"`
}

// Default returns the configuration used for every key the YAML file omits.
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{RootPath: "dataset"},
		Loader:  LoaderConfig{OnError: "abort"},
		Split:   SplitConfig{TrainRatio: 0.8, Seed: 42},
		Encoder: EncoderConfig{PadValue: -1},
		Feed: FeedConfig{
			NATSURL: "nats://127.0.0.1:4222",
			Subject: "vpnspectra.batches",
		},
		API: APIConfig{ListenAddr: ":8080", Source: "dataset"},
	}
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate normalizes the configuration and reports every invalid value.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Dataset.RootPath) == "" {
		errs = append(errs, errors.New("dataset.root_path must not be empty"))
	}
	if c.Loader.NumWorkers < 0 {
		errs = append(errs, fmt.Errorf("loader.num_workers must not be negative, got %d", c.Loader.NumWorkers))
	}
	c.Loader.OnError = strings.ToLower(strings.TrimSpace(c.Loader.OnError))
	switch c.Loader.OnError {
	case "":
		c.Loader.OnError = "abort"
	case "abort", "skip":
	default:
		errs = append(errs, fmt.Errorf("loader.on_error must be abort or skip, got %q", c.Loader.OnError))
	}
	if r := c.Split.TrainRatio; r < 0 || r > 1 || math.IsNaN(r) {
		errs = append(errs, fmt.Errorf("split.train_ratio must be within [0, 1], got %v", r))
	}
	if c.Encoder.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("encoder.batch_size must not be negative, got %d", c.Encoder.BatchSize))
	}
	if c.Feed.Enabled {
		if c.Feed.NATSURL == "" {
			errs = append(errs, errors.New("feed.nats_url is required when the feed is enabled"))
		}
		if c.Feed.Subject == "" {
			errs = append(errs, errors.New("feed.subject is required when the feed is enabled"))
		}
	}
	for i, w := range c.Histogram.Writers {
		if !w.Enabled {
			continue
		}
		switch w.Type {
		case "gob":
			if w.Gob.RootPath == "" {
				errs = append(errs, fmt.Errorf("histogram.writers[%d]: gob.root_path is required", i))
			}
		case "clickhouse":
			if w.ClickHouse.Host == "" || w.ClickHouse.Port == 0 {
				errs = append(errs, fmt.Errorf("histogram.writers[%d]: clickhouse host and port are required", i))
			}
		}
	}

	switch c.API.Source {
	case "", "dataset":
		c.API.Source = "dataset"
	case "clickhouse":
		if c.API.ClickHouse.Host == "" || c.API.ClickHouse.Port == 0 {
			errs = append(errs, errors.New("api.clickhouse host and port are required for the clickhouse source"))
		}
	default:
		errs = append(errs, fmt.Errorf("api.source must be dataset or clickhouse, got %q", c.API.Source))
	}

	return errors.Join(errs...)
}
