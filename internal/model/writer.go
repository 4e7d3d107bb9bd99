package model

// Writer defines a generic interface for persisting a byte-size histogram.
type Writer interface {
	// Write persists the histogram under the given timestamp label.
	Write(hist Histogram, timestamp string) error

	// Close releases any connection held by the writer.
	Close() error
}
