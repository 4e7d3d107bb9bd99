package feed

import (
	"VPNSpectra/internal/config"
	"VPNSpectra/internal/model"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher is responsible for publishing encoded batches to NATS subjects.
type Publisher struct {
	nc       conn
	subject  string
	runID    string
	sequence int
}

// NewPublisher creates a new NATS publisher with a fresh run ID.
func NewPublisher(cfg config.FeedConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return newPublisher(nc, cfg.Subject), nil
}

func newPublisher(nc conn, subject string) *Publisher {
	return &Publisher{nc: nc, subject: subject, runID: uuid.NewString()}
}

// RunID identifies every batch this publisher sends.
func (p *Publisher) RunID() string {
	return p.runID
}

// Publish serializes a batch and publishes it to the subset's subject.
func (p *Publisher) Publish(subset string, batch model.Batch) error {
	data, err := Encode(&Message{
		RunID:             p.runID,
		Subset:            subset,
		Sequence:          p.sequence,
		Features:          batch.Features,
		Labels:            batch.Labels,
		DegenerateColumns: batch.DegenerateColumns,
	})
	if err != nil {
		return err
	}

	if err := p.nc.Publish(Subject(p.subject, subset), data); err != nil {
		return err
	}
	p.sequence++
	return nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	log.Println("NATS connection drained and closed.")
	return nil
}
