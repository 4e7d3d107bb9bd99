package main

import (
	"VPNSpectra/internal/engine/histogram"
	"VPNSpectra/internal/engine/writer"
	"VPNSpectra/internal/model"
	"fmt"
	"log"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/gobana/main.go <series.dat | snapshot_dir>")
		os.Exit(1)
	}
	target := os.Args[1]

	info, err := os.Stat(target)
	if err != nil {
		log.Fatalf("Unable to open target: %v", err)
	}

	var hist model.Histogram
	if info.IsDir() {
		hist, err = writer.ReadSnapshot(target)
	} else {
		var s writer.Series
		s, err = writer.ReadSeries(target)
		hist = make(model.Histogram)
		for size, n := range s.Counts {
			hist.Add(s.Encryption, s.Category, size, n)
		}
	}
	if err != nil {
		log.Fatalf("Failed to decode gob data: %v", err)
	}

	ranges := hist.Ranges()
	for _, p := range histogram.Pairs(hist) {
		r := ranges[p.Encryption][p.Category]
		fmt.Printf("%s: %d packets, sizes %d..%d\n", p, hist.Total(p.Encryption, p.Category), r.Min, r.Max)
		for _, bin := range histogram.Bins(hist, p) {
			fmt.Printf("  %6d bytes  %d\n", bin.Bytes, bin.Count)
		}
	}
}
