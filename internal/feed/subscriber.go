package feed

import (
	"VPNSpectra/internal/config"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// BatchHandler is a function that processes a received batch message.
type BatchHandler func(msg *Message)

// Subscriber is responsible for subscribing to the batch subjects and processing messages.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.FeedConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return &Subscriber{nc: nc, subject: cfg.Subject}, nil
}

// Start subscribes to every subset subject and starts processing messages
// with the provided handler.
func (s *Subscriber) Start(handler BatchHandler) error {
	sub, err := s.nc.Subscribe(Subject(s.subject, "*"), dispatch(handler))
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("Subscribed to '%s'. Waiting for batches...", sub.Subject)
	return nil
}

func dispatch(handler BatchHandler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		m, err := Decode(msg.Data)
		if err != nil {
			log.Printf("Error decoding batch on '%s': %v", msg.Subject, err)
			return
		}
		handler(m)
	}
}

// Close unsubscribes and closes the NATS connection. The connection is
// closed even when unsubscribing fails.
func (s *Subscriber) Close() error {
	var err error
	if s.sub != nil {
		if uerr := s.sub.Unsubscribe(); uerr != nil {
			err = fmt.Errorf("failed to unsubscribe from '%s': %w", s.sub.Subject, uerr)
		}
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
	return err
}
