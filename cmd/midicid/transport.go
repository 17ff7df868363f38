package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"midici/internal/wsbridge"
)

// bridgeSink adapts whichever single wsbridge.Bridge is currently
// connected into a device.OutputSink. A midicid process bridges to one
// remote peer at a time, mirroring a point-to-point MIDI cable rather
// than a multi-drop bus.
type bridgeSink struct {
	mu     sync.Mutex
	active *wsbridge.Bridge
}

// Send implements device.OutputSink.
func (s *bridgeSink) Send(group byte, data []byte) bool {
	s.mu.Lock()
	br := s.active
	s.mu.Unlock()
	if br == nil {
		return false
	}
	return br.Send(group, data)
}

func (s *bridgeSink) set(br *wsbridge.Bridge) {
	s.mu.Lock()
	s.active = br
	s.mu.Unlock()
}

func (s *bridgeSink) clear(br *wsbridge.Bridge) {
	s.mu.Lock()
	if s.active == br {
		s.active = nil
	}
	s.mu.Unlock()
}

// runBridgeServer accepts bridge connections on addr, making the most
// recently accepted one the sink's active bridge, and blocks until ctx
// is canceled, mirroring server.go's Run(ctx) shutdown
// pattern but serving the bridge's websocket route through Echo instead
// of a bare http.ServeMux.
func runBridgeServer(ctx context.Context, addr string, tlsConfig *tls.Config, feed wsbridge.Feed, sink *bridgeSink) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	handler := wsbridge.NewHandler(feed, func(b *wsbridge.Bridge) {
		log.Printf("[transport] bridge accepted from %s", b.Remote())
		sink.set(b)
	})
	handler.Register(e)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           e,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutCtx); err != nil {
			log.Printf("[transport] server shutdown: %v", err)
		}
	}()

	log.Printf("[transport] bridge listening on %s", addr)
	err := httpSrv.ListenAndServeTLS("", "")
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("[transport] bridge server error: %v", err)
	}
}

// runBridgeClient dials url and, on disconnect, redials with exponential
// backoff (capped at 30s) until ctx is canceled.
func runBridgeClient(ctx context.Context, url string, tlsConfig *tls.Config, feed wsbridge.Feed, sink *bridgeSink) {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b, err := wsbridge.Dial(ctx, url, tlsConfig, feed)
		if err != nil {
			log.Printf("[transport] dial %s: %v", url, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			continue
		}

		backoff = time.Second
		log.Printf("[transport] connected to %s", url)
		sink.set(b)
		err = b.Serve()
		sink.clear(b)
		log.Printf("[transport] disconnected from %s: %v", url, err)
	}
}
