package main

import (
	"VPNSpectra/pkg/pcap"
	"flag"
	"fmt"
	"log"
	"net/netip"
	"os"
	"strings"
)

func main() {
	inputFile := flag.String("i", "", "Input pcap file path")
	outputFile := flag.String("o", "", "Output shard file path (stdout when empty)")
	local := flag.String("local", "", "Comma-separated prefixes of the capturing host, e.g. 10.0.0.0/8")
	flag.Parse()

	if *inputFile == "" {
		fmt.Println("Usage: go run ./scripts/pcap2shard -i <capture.pcap> [-o <shard.json>] [-local <prefixes>]")
		os.Exit(1)
	}

	conv := &pcap.Converter{}
	for _, s := range strings.Split(*local, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			log.Fatalf("Invalid local prefix %q: %v", s, err)
		}
		conv.Local = append(conv.Local, prefix)
	}

	records, stats, err := conv.ConvertFile(*inputFile)
	if err != nil {
		log.Fatalf("Failed to convert '%s': %v", *inputFile, err)
	}

	out := os.Stdout
	if *outputFile != "" {
		f, err := os.Create(*outputFile)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
	}
	if err := pcap.WriteShard(out, records); err != nil {
		log.Fatalf("Failed to write shard: %v", err)
	}

	log.Printf("Converted %d packets into %d flows (%d packets skipped).", stats.Packets, stats.Flows, stats.Skipped)
}
