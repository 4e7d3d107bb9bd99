// Package feed ships encoded mini-batches to the training process over NATS.
package feed

import (
	"VPNSpectra/internal/model"
	"encoding/json"
	"fmt"
)

// Subset names used in subjects and messages.
const (
	SubsetTrain      = "train"
	SubsetValidation = "validation"
)

// Message is one mini-batch on the wire.
type Message struct {
	// RunID identifies the preparation run that produced the batch.
	RunID  string `json:"run_id"`
	Subset string `json:"subset"`
	// Sequence numbers batches per run, starting at 0, across both subsets.
	Sequence          int           `json:"sequence"`
	Features          [][]float32   `json:"features"`
	Labels            []model.Label `json:"labels"`
	DegenerateColumns []int         `json:"degenerate_columns,omitempty"`
}

// Batch returns the encoded batch carried by the message.
func (m *Message) Batch() model.Batch {
	return model.Batch{
		Features:          m.Features,
		Labels:            m.Labels,
		DegenerateColumns: m.DegenerateColumns,
	}
}

// Subject is the subject a subset's batches are published to.
func Subject(base, subset string) string {
	return base + "." + subset
}

// Encode serializes a message.
func Encode(m *Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch message: %w", err)
	}
	return data, nil
}

// Decode parses a message and checks that the features form a matrix with
// one label per row.
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode batch message: %w", err)
	}
	if len(m.Features) != len(m.Labels) {
		return nil, fmt.Errorf("batch message %s/%d has %d rows but %d labels", m.RunID, m.Sequence, len(m.Features), len(m.Labels))
	}
	for i, row := range m.Features {
		if len(row) != len(m.Features[0]) {
			return nil, fmt.Errorf("batch message %s/%d: row %d has %d columns, want %d", m.RunID, m.Sequence, i, len(row), len(m.Features[0]))
		}
	}
	return &m, nil
}
