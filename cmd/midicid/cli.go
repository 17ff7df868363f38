package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"midici/internal/ciconst"
	"midici/internal/codec"
	"midici/internal/device"
	"midici/internal/message"
	"midici/internal/messenger"
	"midici/internal/profile"
	"midici/internal/property"
	"midici/internal/wsbridge"
)

// RunCLI handles subcommand execution. Returns true if a subcommand was handled.
func RunCLI(args []string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("midicid %s\n", Version)
		return true
	case "genmuid":
		return cliGenMUID()
	case "discover":
		return cliDiscover(args[1:])
	default:
		return false
	}
}

func cliGenMUID() bool {
	muid, err := generateMUID()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating muid: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%08X\n", muid)
	return true
}

// cliDiscover dials a bridge URL, broadcasts a Discovery Inquiry, waits
// briefly for replies, and prints the resulting connections as JSON.
// Usage: midicid discover <ws-url> [timeout]
func cliDiscover(args []string) bool {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: midicid discover <ws-url> [timeout]\n")
		os.Exit(1)
	}
	url := args[0]
	timeout := 3 * time.Second
	if len(args) > 1 {
		if d, err := time.ParseDuration(args[1]); err == nil {
			timeout = d
		}
	}

	muid, err := generateMUID()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating muid: %v\n", err)
		os.Exit(1)
	}

	sink := &bridgeSink{}
	cfg := device.DefaultConfig()
	dev := device.New(muid, cfg, sink.Send, nil, nil)
	emptyValue := func() codec.Value { return codec.Object() }
	profileHost := profile.NewHostFacade(dev, cfg.Group)
	propertyHost := property.NewHostFacade(dev, cfg.Group, emptyValue, emptyValue, func() string { return "" }, cfg.MaxPropertyChunkSize)
	msgr := messenger.New(dev, profileHost, propertyHost)

	var tlsConfig *tls.Config
	ctx, cancel := context.WithTimeout(context.Background(), timeout+2*time.Second)
	defer cancel()

	b, err := wsbridge.Dial(ctx, url, tlsConfig, msgr.ProcessInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error dialing %s: %v\n", url, err)
		os.Exit(1)
	}
	defer b.Close()
	sink.set(b)
	go b.Serve()

	inq := message.DiscoveryInquiry{
		Address:             ciconst.FunctionBlockAddress,
		Source:              muid,
		CICategorySupported: cfg.CapabilityInquirySupported,
		ReceivableMaxSysEx:  cfg.ReceivableMaxSysExSize,
	}
	if err := dev.Send(cfg.Group, inq.Build(0x02), inq); err != nil {
		fmt.Fprintf(os.Stderr, "error sending discovery inquiry: %v\n", err)
		os.Exit(1)
	}

	time.Sleep(timeout)

	out, _ := json.MarshalIndent(connectionSummaries(dev), "", "  ")
	fmt.Println(string(out))
	return true
}

type connectionSummary struct {
	MUID          string `json:"muid"`
	HasDeviceInfo bool   `json:"has_device_info"`
	Manufacturer  string `json:"manufacturer,omitempty"`
}

func connectionSummaries(dev *device.Device) []connectionSummary {
	conns := dev.Connections()
	out := make([]connectionSummary, 0, len(conns))
	for _, c := range conns {
		out = append(out, connectionSummary{
			MUID:          muidHex(c.TargetMUID),
			HasDeviceInfo: c.HasDeviceInfo,
			Manufacturer:  fmt.Sprintf("%05X", c.DeviceInfo.ManufacturerID),
		})
	}
	return out
}
