package main

import (
	"VPNSpectra/internal/config"
	"VPNSpectra/internal/feed"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ds-feed listens to the batch feed and logs what arrives. It is the
// reference consumer for the training side.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	flag.Parse()

	log.Println("Starting ds-feed...")

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Subscribe to the batch subjects
	sub, err := feed.NewSubscriber(cfg.Feed)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}

	var mu sync.Mutex
	rows := make(map[string]int)
	err = sub.Start(func(msg *feed.Message) {
		mu.Lock()
		rows[msg.Subset] += len(msg.Features)
		total := rows[msg.Subset]
		mu.Unlock()
		log.Printf("run %s: %s batch #%d with %d rows (%d %s rows so far)",
			msg.RunID, msg.Subset, msg.Sequence, len(msg.Features), total, msg.Subset)
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}

	// 3. Wait for a shutdown signal for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	log.Println("Shutdown signal received, closing subscription...")
	if err := sub.Close(); err != nil {
		log.Printf("Error closing subscriber: %v", err)
	}
	log.Println("Shutdown complete.")
}
