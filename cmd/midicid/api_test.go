package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"midici/internal/codec"
	"midici/internal/device"
	"midici/internal/messenger"
	"midici/internal/profile"
	"midici/internal/property"
)

// newTestAPI wires a Device, profile/property host facades, and a
// Messenger the same way main() does, and returns the APIServer built
// on top of them.
func newTestAPI(t *testing.T) (*APIServer, *device.Device) {
	t.Helper()
	cfg := device.DefaultConfig()
	dev := device.New(0x01020304, cfg, func(group byte, data []byte) bool { return true }, nil, nil)

	emptyValue := func() codec.Value { return codec.Object() }
	schema := func() string { return cfg.JSONSchemaString }
	profileHost := profile.NewHostFacade(dev, cfg.Group)
	propertyHost := property.NewHostFacade(dev, cfg.Group, emptyValue, emptyValue, schema, cfg.MaxPropertyChunkSize)
	msgr := messenger.New(dev, profileHost, propertyHost)

	return NewAPIServer(dev, msgr, profileHost, propertyHost), dev
}

func TestHealthEndpointNoConnections(t *testing.T) {
	api, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := api.echo.NewContext(req, rec)

	if err := api.handleHealth(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status field: got %q, want %q", resp.Status, "ok")
	}
	if resp.Connections != 0 {
		t.Errorf("connections: got %d, want 0", resp.Connections)
	}
}

func TestVersionEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rec := httptest.NewRecorder()
	c := api.echo.NewContext(req, rec)

	if err := api.handleVersion(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp VersionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Version != Version {
		t.Errorf("version: got %q, want %q", resp.Version, Version)
	}
}

func TestDeviceEndpoint(t *testing.T) {
	api, dev := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/device", nil)
	rec := httptest.NewRecorder()
	c := api.echo.NewContext(req, rec)

	if err := api.handleDevice(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp DeviceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.MUID != muidHex(dev.MUID()) {
		t.Errorf("muid: got %q, want %q", resp.MUID, muidHex(dev.MUID()))
	}
	if resp.MaxPropertyChunkSize != dev.Config().MaxPropertyChunkSize {
		t.Errorf("max_property_chunk_size: got %d, want %d", resp.MaxPropertyChunkSize, dev.Config().MaxPropertyChunkSize)
	}
}

func TestConnectionsEndpointEmpty(t *testing.T) {
	api, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/connections", nil)
	rec := httptest.NewRecorder()
	c := api.echo.NewContext(req, rec)

	if err := api.handleConnections(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp []ConnectionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp) != 0 {
		t.Errorf("expected no connections, got %v", resp)
	}
}

func TestConnectionsEndpointAfterDiscovery(t *testing.T) {
	api, dev := newTestAPI(t)

	const peerMUID = 0xAABBCC
	dev.RegisterConnection(peerMUID)
	dev.UpdateConnection(peerMUID, func(c *device.Connection) {
		c.RemoteMaxSysExSize = 256
	})

	req := httptest.NewRequest(http.MethodGet, "/api/connections", nil)
	rec := httptest.NewRecorder()
	c := api.echo.NewContext(req, rec)

	if err := api.handleConnections(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp []ConnectionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(resp))
	}
	if resp[0].MUID != muidHex(peerMUID) {
		t.Errorf("muid: got %q, want %q", resp[0].MUID, muidHex(peerMUID))
	}
	if resp[0].RemoteMaxSysExSize != 256 {
		t.Errorf("remote_max_sysex_size: got %d, want 256", resp[0].RemoteMaxSysExSize)
	}
}

func TestProfilesEndpointEmpty(t *testing.T) {
	api, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/profiles", nil)
	rec := httptest.NewRecorder()
	c := api.echo.NewContext(req, rec)

	if err := api.handleProfiles(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp []ProfileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp) != 0 {
		t.Errorf("expected no profiles, got %v", resp)
	}
}

func TestPropertiesEndpointIncludesBuiltins(t *testing.T) {
	api, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	rec := httptest.NewRecorder()
	c := api.echo.NewContext(req, rec)

	if err := api.handleProperties(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	var resp []PropertyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp) == 0 {
		t.Fatal("expected the always-present built-in properties to be listed")
	}
}

func TestRouteRegistration(t *testing.T) {
	api, _ := newTestAPI(t)

	routes := api.echo.Routes()
	paths := make(map[string]bool)
	for _, r := range routes {
		paths[r.Path] = true
	}
	for _, want := range []string{"/health", "/api/version", "/api/device", "/api/connections", "/api/profiles", "/api/properties"} {
		if !paths[want] {
			t.Errorf("route %q not registered; got %v", want, routes)
		}
	}
}

func TestJSONErrorHandlerFormatsHTTPError(t *testing.T) {
	api, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	api.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected non-empty error field")
	}
}
