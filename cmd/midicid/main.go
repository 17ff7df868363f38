package main

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/binary"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	"midici/internal/codec"
	"midici/internal/device"
	"midici/internal/messenger"
	"midici/internal/profile"
	"midici/internal/property"
)

func main() {
	if len(os.Args) > 1 {
		if RunCLI(os.Args[1:]) {
			return
		}
	}

	listenAddr := flag.String("listen", "", "bridge websocket listen address (e.g. :8443, empty to disable)")
	connectURL := flag.String("connect", "", "bridge websocket URL to dial as a client (e.g. wss://host:8443/bridge, empty to disable)")
	insecure := flag.Bool("insecure-skip-verify", true, "skip TLS certificate verification when dialing -connect")
	apiAddr := flag.String("api-addr", ":8080", "HTTP debug API listen address (empty to disable)")
	certValidity := flag.Duration("cert-validity", 24*time.Hour, "self-signed TLS certificate validity for -listen")
	group := flag.Int("group", 0, "transport group this device sends and listens on")
	manufacturer := flag.String("manufacturer", "", "device info: 21-bit manufacturer ID (hex)")
	productInstanceID := flag.String("product-instance-id", "", "device info: product instance ID")
	flag.Parse()

	if *listenAddr == "" && *connectURL == "" {
		log.Fatal("[midicid] at least one of -listen or -connect must be set")
	}

	muid, err := generateMUID()
	if err != nil {
		log.Fatalf("[midicid] generate muid: %v", err)
	}
	log.Printf("[midicid] local MUID: %08X", muid)

	cfg := device.DefaultConfig()
	cfg.Group = byte(*group)
	cfg.ProductInstanceID = *productInstanceID
	if *manufacturer != "" {
		if v, perr := parseHexUint32(*manufacturer); perr == nil {
			cfg.DeviceInfo.ManufacturerID = v
		}
	}

	sink := &bridgeSink{}
	dev := device.New(muid, cfg, sink.Send, nil, nil)

	emptyValue := func() codec.Value { return codec.Object() }
	schema := func() string { return cfg.JSONSchemaString }
	profileHost := profile.NewHostFacade(dev, cfg.Group)
	propertyHost := property.NewHostFacade(dev, cfg.Group, emptyValue, emptyValue, schema, cfg.MaxPropertyChunkSize)
	msgr := messenger.New(dev, profileHost, propertyHost)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("[midicid] shutting down...")
		cancel()
	}()

	if *listenAddr != "" {
		host := ""
		if h, _, herr := net.SplitHostPort(*listenAddr); herr == nil {
			host = h
		}
		tlsConfig, fingerprint, terr := generateTLSConfig(*certValidity, host)
		if terr != nil {
			log.Fatalf("[midicid] %v", terr)
		}
		log.Printf("[midicid] bridge TLS certificate fingerprint: %s", fingerprint)
		go runBridgeServer(ctx, *listenAddr, tlsConfig, msgr.ProcessInput, sink)
	}

	if *connectURL != "" {
		var tlsConfig *tls.Config
		if *insecure {
			tlsConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		}
		go runBridgeClient(ctx, *connectURL, tlsConfig, msgr.ProcessInput, sink)
	}

	if *apiAddr != "" {
		api := NewAPIServer(dev, msgr, profileHost, propertyHost)
		go api.Run(ctx, *apiAddr)
		log.Printf("[midicid] debug API listening on %s", *apiAddr)
	}

	go RunMetrics(ctx, dev, 30*time.Second)

	<-ctx.Done()
}

// generateMUID draws a random 28-bit MUID, excluding the reserved
// 0x0FFFFFF0-0x0FFFFFFF block (spec.md §3: MUIDs are distinct from the
// broadcast MUID and the rest of that reserved range).
func generateMUID() (uint32, error) {
	for {
		var buf [4]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, err
		}
		muid := binary.BigEndian.Uint32(buf[:]) & 0x0FFFFFFF
		if muid < 0x0FFFFFF0 {
			return muid, nil
		}
	}
}

func parseHexUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	return uint32(v), err
}
