package main

import (
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// pcapgen writes a synthetic capture of client/server flows over TCP, UDP,
// GRE and ICMP, suitable as pcap2shard input.
func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	flowCount := flag.Int("f", 20, "Number of flows to generate")
	packetsPerFlow := flag.Int("c", 50, "Number of packets per flow")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	pcapWriter := pcapgo.NewWriter(f)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	client := net.IP{10, 0, 0, 2}
	protocols := []layers.IPProtocol{layers.IPProtocolTCP, layers.IPProtocolUDP, layers.IPProtocolGRE, layers.IPProtocolICMPv4}
	now := time.Now()

	log.Printf("Generating %d flows of %d packets into %s...", *flowCount, *packetsPerFlow, *outputFile)

	written := 0
	for i := 0; i < *flowCount; i++ {
		server := net.IP{byte(rng.Intn(223) + 1), byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(254) + 1)}
		proto := protocols[rng.Intn(len(protocols))]
		clientPort := uint16(rng.Intn(65535-1024) + 1024)
		serverPort := uint16([]int{22, 53, 443, 1194, 51820}[rng.Intn(5)])

		for j := 0; j < *packetsPerFlow; j++ {
			now = now.Add(time.Duration(rng.Intn(50)+1) * time.Millisecond)
			src, dst, sport, dport := client, server, clientPort, serverPort
			if j > 0 && rng.Intn(2) == 0 {
				src, dst, sport, dport = server, client, serverPort, clientPort
			}

			data, err := serialize(rng, proto, src, dst, sport, dport, j == 0)
			if err != nil {
				log.Fatalf("Failed to serialize layers: %v", err)
			}
			ci := gopacket.CaptureInfo{
				Timestamp:     now,
				CaptureLength: len(data),
				Length:        len(data),
			}
			if err := pcapWriter.WritePacket(ci, data); err != nil {
				log.Fatalf("Failed to write packet: %v", err)
			}
			written++
		}
	}

	log.Printf("Successfully generated %d packets into %s.", written, *outputFile)
}

func serialize(rng *rand.Rand, proto layers.IPProtocol, src, dst net.IP, sport, dport uint16, first bool) ([]byte, error) {
	ethLayer := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ipLayer := &layers.IPv4{
		SrcIP:    src,
		DstIP:    dst,
		Version:  4,
		TTL:      64,
		Protocol: proto,
	}
	payload := make([]byte, rng.Intn(1400)+50)
	rng.Read(payload)

	var l4 gopacket.SerializableLayer
	switch proto {
	case layers.IPProtocolTCP:
		tcpLayer := &layers.TCP{
			SrcPort: layers.TCPPort(sport),
			DstPort: layers.TCPPort(dport),
			Seq:     rng.Uint32(),
			Ack:     rng.Uint32(),
			SYN:     first,
			ACK:     !first,
			PSH:     !first && rng.Intn(2) == 0,
			Window:  14600,
		}
		tcpLayer.SetNetworkLayerForChecksum(ipLayer)
		l4 = tcpLayer
	case layers.IPProtocolUDP:
		udpLayer := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
		udpLayer.SetNetworkLayerForChecksum(ipLayer)
		l4 = udpLayer
	case layers.IPProtocolGRE:
		l4 = &layers.GRE{Protocol: layers.EthernetTypeIPv4}
	default:
		l4 = &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: sport, Seq: uint16(rng.Intn(65536))}
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}
	if err := gopacket.SerializeLayers(buf, opts, ethLayer, ipLayer, l4, gopacket.Payload(payload)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
