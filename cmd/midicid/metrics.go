package main

import (
	"context"
	"log"
	"time"

	"midici/internal/device"
)

// RunMetrics logs the connection count every interval while at least one
// connection exists, until ctx is canceled.
func RunMetrics(ctx context.Context, dev *device.Device, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conns := dev.Connections()
			if len(conns) > 0 {
				log.Printf("[metrics] connections=%d", len(conns))
			}
		}
	}
}
