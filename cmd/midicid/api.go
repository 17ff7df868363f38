package main

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"midici/internal/device"
	"midici/internal/messenger"
	"midici/internal/profile"
	"midici/internal/property"
)

// Version is the daemon version string reported on /api/version.
var Version = "0.1.0-dev"

// APIServer is a read-only HTTP debug API exposing the local device's
// MUID, connections, profiles and property catalog as JSON. It runs on
// a separate TCP port from the bridge transport.
type APIServer struct {
	dev  *device.Device
	msgr *messenger.Messenger
	prof *profile.HostFacade
	prop *property.HostFacade
	echo *echo.Echo
}

// NewAPIServer constructs an APIServer and registers all routes.
func NewAPIServer(dev *device.Device, msgr *messenger.Messenger, prof *profile.HostFacade, prop *property.HostFacade) *APIServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = jsonErrorHandler

	s := &APIServer{dev: dev, msgr: msgr, prof: prof, prop: prop, echo: e}
	s.registerRoutes()
	return s
}

func (s *APIServer) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/version", s.handleVersion)
	s.echo.GET("/api/device", s.handleDevice)
	s.echo.GET("/api/connections", s.handleConnections)
	s.echo.GET("/api/profiles", s.handleProfiles)
	s.echo.GET("/api/properties", s.handleProperties)
}

// Run starts the Echo HTTP server on addr and blocks until ctx is cancelled.
func (s *APIServer) Run(ctx context.Context, addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("api server error", "err", err)
		}
	}()
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutCtx); err != nil {
		slog.Error("api shutdown", "err", err)
	}
}

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

func (s *APIServer) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Connections: len(s.dev.Connections()),
	})
}

// VersionResponse is the payload for GET /api/version.
type VersionResponse struct {
	Version string `json:"version"`
}

func (s *APIServer) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, VersionResponse{Version: Version})
}

// DeviceResponse is the payload for GET /api/device.
type DeviceResponse struct {
	MUID                       string `json:"muid"`
	CapabilityInquirySupported byte   `json:"capability_inquiry_supported"`
	MaxPropertyChunkSize       int    `json:"max_property_chunk_size"`
	ReceivableMaxSysExSize     uint32 `json:"receivable_max_sysex_size"`
	ProductInstanceID          string `json:"product_instance_id"`
}

func (s *APIServer) handleDevice(c echo.Context) error {
	cfg := s.dev.Config()
	return c.JSON(http.StatusOK, DeviceResponse{
		MUID:                       muidHex(s.dev.MUID()),
		CapabilityInquirySupported: cfg.CapabilityInquirySupported,
		MaxPropertyChunkSize:       cfg.MaxPropertyChunkSize,
		ReceivableMaxSysExSize:     cfg.ReceivableMaxSysExSize,
		ProductInstanceID:          cfg.ProductInstanceID,
	})
}

// ConnectionResponse is one element of the GET /api/connections array.
type ConnectionResponse struct {
	MUID               string `json:"muid"`
	RemoteMaxSysExSize uint32 `json:"remote_max_sysex_size"`
	HasDeviceInfo      bool   `json:"has_device_info"`
	Manufacturer       string `json:"manufacturer,omitempty"`
	Family             string `json:"family,omitempty"`
	Model              string `json:"model,omitempty"`
}

func (s *APIServer) handleConnections(c echo.Context) error {
	conns := s.dev.Connections()
	resp := make([]ConnectionResponse, 0, len(conns))
	for _, conn := range conns {
		resp = append(resp, ConnectionResponse{
			MUID:               muidHex(conn.TargetMUID),
			RemoteMaxSysExSize: conn.RemoteMaxSysExSize,
			HasDeviceInfo:      conn.HasDeviceInfo,
			Manufacturer:       conn.DeviceInfo.Manufacturer,
			Family:             conn.DeviceInfo.Family,
			Model:              conn.DeviceInfo.Model,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// ProfileResponse is one element of the GET /api/profiles array.
type ProfileResponse struct {
	ID          string `json:"id"`
	Group       byte   `json:"group"`
	Address     byte   `json:"address"`
	Enabled     bool   `json:"enabled"`
	NumChannels uint16 `json:"num_channels"`
}

func (s *APIServer) handleProfiles(c echo.Context) error {
	profiles := s.prof.Snapshot()
	resp := make([]ProfileResponse, 0, len(profiles))
	for _, p := range profiles {
		resp = append(resp, ProfileResponse{
			ID:          hex.EncodeToString(p.ID[:]),
			Group:       p.Group,
			Address:     p.Address,
			Enabled:     p.Enabled,
			NumChannels: p.NumChannels,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// PropertyResponse is one element of the GET /api/properties array.
type PropertyResponse struct {
	PropertyID   string   `json:"property_id"`
	CanGet       bool     `json:"can_get"`
	CanSet       string   `json:"can_set"`
	CanSubscribe bool     `json:"can_subscribe"`
	MediaTypes   []string `json:"media_types,omitempty"`
	Encodings    []string `json:"encodings,omitempty"`
}

func (s *APIServer) handleProperties(c echo.Context) error {
	catalog := s.prop.CatalogSnapshot()
	resp := make([]PropertyResponse, 0, len(catalog))
	for _, m := range catalog {
		resp = append(resp, PropertyResponse{
			PropertyID:   m.PropertyID,
			CanGet:       m.CanGet,
			CanSet:       string(m.CanSet),
			CanSubscribe: m.CanSubscribe,
			MediaTypes:   m.MediaTypes,
			Encodings:    m.Encodings,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func muidHex(muid uint32) string {
	return hex.EncodeToString([]byte{byte(muid >> 24), byte(muid >> 16), byte(muid >> 8), byte(muid)})
}

// jsonErrorHandler ensures all error responses have a consistent JSON
// body, replacing Echo's default handler which varies between text and
// JSON.
func jsonErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			c.NoContent(code) //nolint:errcheck
		} else {
			c.JSON(code, map[string]string{"error": msg}) //nolint:errcheck
		}
	}
}
