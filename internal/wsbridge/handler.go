package wsbridge

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Handler accepts incoming bridge connections on an Echo router. Unlike a
// chat server fanning out to many concurrent sessions, a MIDI-CI device
// has exactly one local sink/feed pair to offer a peer, so onAccept is
// called once per accepted connection and is responsible for handing the
// Bridge's Send method to the device; HandleWebSocket then blocks on
// Serve itself.
type Handler struct {
	upgrader websocket.Upgrader
	feed     Feed
	onAccept func(*Bridge)
}

// NewHandler creates a bridge handler that feeds every accepted
// connection's inbound frames to feed, and hands each accepted Bridge to
// onAccept before serving it.
func NewHandler(feed Feed, onAccept func(*Bridge)) *Handler {
	return &Handler{
		feed:     feed,
		onAccept: onAccept,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// Register binds the bridge route on an Echo router.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/bridge", h.HandleWebSocket)
}

// HandleWebSocket upgrades one request and serves it until disconnect.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	remoteAddr := c.RealIP()
	slog.Debug("wsbridge upgrade request", "remote", remoteAddr)

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("wsbridge upgrade failed", "remote", remoteAddr, "err", err)
		return fmt.Errorf("upgrade bridge websocket: %w", err)
	}

	b := newBridge(conn, h.feed, remoteAddr)
	slog.Info("wsbridge connected", "remote", remoteAddr)
	if h.onAccept != nil {
		h.onAccept(b)
	}

	if err := b.Serve(); err != nil {
		slog.Debug("wsbridge disconnected", "remote", remoteAddr, "err", err)
	} else {
		slog.Info("wsbridge disconnected", "remote", remoteAddr)
	}
	return nil
}
