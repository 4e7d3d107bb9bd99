package main

import (
	"VPNSpectra/internal/config"
	"VPNSpectra/internal/engine/manager"
	"VPNSpectra/internal/metrics"
	"flag"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	metricsFile := flag.String("metrics-file", "", "Write loader metrics in Prometheus text format to this file")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Initialize modules
	reg := prometheus.NewRegistry()
	managerImpl, err := manager.NewManager(cfg, metrics.New(reg))
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}
	log.Println("Manager initialized.")

	// 3. Run the pipeline once
	report, runErr := managerImpl.Run()

	// 4. Export metrics and release writers
	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
			log.Printf("Failed to write metrics file: %v", err)
		}
	}
	managerImpl.Close()

	if runErr != nil {
		log.Fatalf("Dataset preparation failed: %v", runErr)
	}
	log.Printf("Prepared %d shards: %d train and %d validation packets in %d batches.",
		report.Shards, report.TrainPackets, report.ValidPackets, report.Batches)
	log.Println("Shutdown complete.")
}
