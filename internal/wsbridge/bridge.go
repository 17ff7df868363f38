// Package wsbridge carries a device's raw SysEx byte stream over a
// websocket connection between two midicid processes, realizing the
// output-sink/input-feed collaborators spec.md §1 leaves external to
// the engine (send(group, bytes) -> bool, process_input(group, bytes))
// over a real socket instead of a physical MIDI cable.
package wsbridge

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout     = 5 * time.Second
	handshakeTimeout = 10 * time.Second
	readLimit        = 1 << 20
)

// Feed delivers one reassembled frame read off the wire to the local
// engine; it is satisfied directly by (*messenger.Messenger).ProcessInput.
type Feed func(group byte, data []byte) error

// Bridge wraps one websocket connection as a transport for a single
// remote peer. One frame on the wire carries one group byte followed by
// one SysEx chunk, so a single connection can multiplex all 16 groups.
type Bridge struct {
	conn   *websocket.Conn
	feed   Feed
	remote string

	writeMu sync.Mutex
}

func newBridge(conn *websocket.Conn, feed Feed, remote string) *Bridge {
	conn.SetReadLimit(readLimit)
	return &Bridge{conn: conn, feed: feed, remote: remote}
}

// Send implements device.OutputSink: it writes group and data as one
// binary websocket message and reports whether the write succeeded.
func (b *Bridge) Send(group byte, data []byte) bool {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	frame := make([]byte, 1+len(data))
	frame[0] = group
	copy(frame[1:], data)

	_ = b.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := b.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		slog.Debug("wsbridge write error", "remote", b.remote, "err", err)
		return false
	}
	return true
}

// Serve reads frames off the connection and hands each to feed until the
// connection closes or a read fails; it blocks and should be run on its
// own goroutine by the caller unless the caller is already on one.
func (b *Bridge) Serve() error {
	defer b.conn.Close()

	for {
		mt, data, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("wsbridge unexpected close", "remote", b.remote, "err", err)
			}
			return err
		}
		if mt != websocket.BinaryMessage || len(data) == 0 {
			slog.Debug("wsbridge dropped non-binary or empty frame", "remote", b.remote, "type", mt)
			continue
		}
		group, payload := data[0], data[1:]
		if ferr := b.feed(group, payload); ferr != nil {
			slog.Debug("wsbridge feed rejected frame", "remote", b.remote, "err", ferr)
		}
	}
}

// Close closes the underlying connection, unblocking a pending Serve.
func (b *Bridge) Close() error {
	return b.conn.Close()
}

// Remote returns the address or URL this bridge was connected to or
// accepted from, for logging.
func (b *Bridge) Remote() string {
	return b.remote
}

// Dial connects out to a remote midicid bridge endpoint and returns a
// Bridge ready to Serve. url should use the ws:// or wss:// scheme;
// tlsConfig is ignored for ws:// URLs.
func Dial(ctx context.Context, url string, tlsConfig *tls.Config, feed Feed) (*Bridge, error) {
	dialer := websocket.Dialer{
		TLSClientConfig:  tlsConfig,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bridge %s: %w", url, err)
	}
	return newBridge(conn, feed, url), nil
}
