package main

import (
	"VPNSpectra/internal/api"
	"VPNSpectra/internal/config"
	"VPNSpectra/internal/engine/histogram"
	"VPNSpectra/internal/engine/manager"
	"VPNSpectra/internal/metrics"
	"VPNSpectra/internal/query"
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize querier for the configured source
	var querier query.Querier
	switch cfg.API.Source {
	case "clickhouse":
		querier, err = query.NewClickHouseQuerier(cfg.API.ClickHouse)
		if err != nil {
			log.Fatalf("Failed to create querier: %v", err)
		}
	default:
		// The API only reads the dataset, so no writers or feed.
		cfg.Histogram.Writers = nil
		cfg.Feed.Enabled = false
		mgr, err := manager.NewManager(cfg, metrics.New(reg))
		if err != nil {
			log.Fatalf("Failed to create manager: %v", err)
		}
		shards, _, err := mgr.Load()
		if err != nil {
			log.Fatalf("Failed to load dataset: %v", err)
		}
		querier = query.NewMemoryQuerier(histogram.Build(shards))
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: api.NewRouter(querier, cfg.Dataset.RootPath, reg),
	}

	go func() {
		log.Printf("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("API server exited.")
}
