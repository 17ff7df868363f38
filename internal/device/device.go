// Package device holds the Device and Connection registry: the local
// MUID, configuration, connection map, output sink, and logger described
// in spec.md §3 and §5. Locking follows the teacher's pattern rather
// than a literal re-entrant mutex: exported methods take the lock,
// mutate state, copy whatever callback lists they need, release the
// lock, and only then invoke callbacks or call back into the Device —
// no exported method calls another exported method while holding mu.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"midici/internal/message"
)

// ErrSendFailed is returned when the output sink reports a permanent
// failure for a send.
var ErrSendFailed = errors.New("device: send failed")

// OutputSink delivers one SysEx chunk on a transport group. true means
// delivered or buffered; false is a permanent failure.
type OutputSink func(group byte, data []byte) bool

// Direction tags a LogEntry as inbound or outbound.
type Direction int

const (
	DirIn Direction = iota
	DirOut
)

func (d Direction) String() string {
	if d == DirIn {
		return "in"
	}
	return "out"
}

// LogEntry is either a raw diagnostic string or a reference to a typed
// message, carrying direction and a timestamp.
type LogEntry struct {
	Timestamp time.Time
	Direction Direction
	Raw       string
	Msg       fmt.Stringer
}

// Label returns the human-readable form of whichever of Raw/Msg is set,
// mirroring the original implementation's getLabel()/getBodyString() pair.
func (e LogEntry) Label() string {
	if e.Msg != nil {
		return e.Msg.String()
	}
	return e.Raw
}

// Logger receives every sent and received message, matched or malformed.
type Logger interface {
	Log(entry LogEntry)
}

// SlogLogger adapts a *slog.Logger to the Logger interface, the
// structured-logging path used by the device thread (see SPEC_FULL.md
// §10.1).
type SlogLogger struct {
	L *slog.Logger
}

func (s SlogLogger) Log(e LogEntry) {
	l := s.L
	if l == nil {
		l = slog.Default()
	}
	l.Debug("ci message", "direction", e.Direction.String(), "label", e.Label())
}

// Clock abstracts time for pending-chunk and pending-request timeouts.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock is the production Clock backed by time.Now.
var RealClock Clock = realClock{}

// ChannelListEntry mirrors one row of the channel_list configuration
// surface item (SPEC_FULL.md §10.3), consumed by the ChannelList
// built-in property.
type ChannelListEntry struct {
	Title               string
	Channel              int
	ProgramTitle        string
	BankPC              []int
	ClusterChannelStart int
	ClusterLength       int
}

// Config is the recognized configuration surface from spec.md §6.
type Config struct {
	DeviceInfo                                 DeviceInfo
	CapabilityInquirySupported                 byte
	AutoSendEndpointInquiry                    bool
	AutoSendProfileInquiry                     bool
	AutoSendPropertyExchangeCapabilitiesInquiry bool
	AutoSendProcessInquiry                     bool
	AutoSendGetResourceList                    bool
	AutoSendGetDeviceInfo                      bool
	MaxPropertyChunkSize                       int
	ReceivableMaxSysExSize                     uint32
	LocalProfiles                              []message.ProfileID
	ChannelList                                []ChannelListEntry
	JSONSchemaString                           string
	ProductInstanceID                          string
	Group                                      byte
}

// DefaultConfig returns a Config with the defaults named in spec.md §6.
func DefaultConfig() Config {
	return Config{
		CapabilityInquirySupported:                 0x07, // Three-P: profile + property + process inquiry
		AutoSendEndpointInquiry:                    true,
		AutoSendProfileInquiry:                     true,
		AutoSendPropertyExchangeCapabilitiesInquiry: true,
		AutoSendProcessInquiry:                      true,
		AutoSendGetResourceList:                     true,
		AutoSendGetDeviceInfo:                       true,
		MaxPropertyChunkSize:                        512,
		ReceivableMaxSysExSize:                       65535,
	}
}

// DeviceInfo extends message.DeviceDetails with the human-readable
// fields from spec.md §3.
type DeviceInfo struct {
	message.DeviceDetails
	Manufacturer string
	Family       string
	Model        string
	Version      string
	SerialNumber string
}

// Token is an opaque listener-registration handle, replacing
// function-pointer comparison for removal (spec.md §9 redesign note).
type Token = uuid.UUID

// NewToken mints a fresh opaque listener token.
func NewToken() Token { return uuid.New() }

// Connection is per-peer state, keyed by the peer's MUID in the Device's
// connection map.
type Connection struct {
	TargetMUID            uint32
	RemoteMaxSysExSize     uint32
	DeviceInfo             DeviceInfo
	HasDeviceInfo          bool
	ProcessInquirySupport  bool

	device *Device
}

// TargetMUIDOf returns c.TargetMUID; exists for symmetry with facade
// accessors built on top of Connection.
func (c *Connection) TargetMUIDOf() uint32 { return c.TargetMUID }

// connectionsChangedListener is copied under lock then invoked outside it.
type connectionsChangedListener struct {
	token Token
	fn    func()
}

// Device is the local endpoint: one MUID, configuration, the connection
// map, the output sink, the logger, and the request-ID counter shared by
// the messenger.
type Device struct {
	mu sync.Mutex

	muid   uint32
	config Config
	sink   OutputSink
	logger Logger
	clock  Clock

	connections map[uint32]*Connection

	connListeners []connectionsChangedListener

	reqID atomic.Uint32 // low 7 bits used; wraps mod 128
}

// New constructs a Device that uses localMUID as its local MUID.
func New(localMUID uint32, cfg Config, sink OutputSink, logger Logger, clock Clock) *Device {
	if clock == nil {
		clock = RealClock
	}
	if logger == nil {
		logger = SlogLogger{}
	}
	return &Device{
		muid:        localMUID,
		config:      cfg,
		sink:        sink,
		logger:      logger,
		clock:       clock,
		connections: make(map[uint32]*Connection),
	}
}

// MUID returns the local device's MUID.
func (d *Device) MUID() uint32 { return d.muid }

// Config returns a copy of the current configuration.
func (d *Device) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

// Clock returns the device's Clock.
func (d *Device) Clock() Clock { return d.clock }

// Logger returns the device's Logger.
func (d *Device) Logger() Logger { return d.logger }

// NextRequestID returns the next 7-bit request ID, wrapping from 127 to 0.
func (d *Device) NextRequestID() byte {
	for {
		old := d.reqID.Load()
		next := (old + 1) % 128
		if d.reqID.CompareAndSwap(old, next) {
			return byte(next)
		}
	}
}

// Send emits one chunk through the output sink, logging it first.
func (d *Device) Send(group byte, data []byte, label fmt.Stringer) error {
	d.logger.Log(LogEntry{Timestamp: d.clock.Now(), Direction: DirOut, Msg: label})
	if !d.sink(group, data) {
		return ErrSendFailed
	}
	return nil
}

// LogReceived records an inbound message or raw diagnostic.
func (d *Device) LogReceived(label fmt.Stringer, raw string) {
	d.logger.Log(LogEntry{Timestamp: d.clock.Now(), Direction: DirIn, Msg: label, Raw: raw})
}

// Connection looks up a peer's Connection.
func (d *Device) Connection(muid uint32) (*Connection, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.connections[muid]
	return c, ok
}

// RemoteMaxSysExSize returns the SysEx size muid is known to accept, if
// a Connection for muid exists and has learned one (spec.md §4.4's send
// path caps the serializer's chunk size to this for the duration of a
// send to a known peer).
func (d *Device) RemoteMaxSysExSize(muid uint32) (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.connections[muid]
	if !ok || c.RemoteMaxSysExSize == 0 {
		return 0, false
	}
	return c.RemoteMaxSysExSize, true
}

// Connections returns a snapshot slice of all current connections.
func (d *Device) Connections() []*Connection {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Connection, 0, len(d.connections))
	for _, c := range d.connections {
		out = append(out, c)
	}
	return out
}

// RegisterConnection creates or replaces the Connection for muid, per
// the lifecycle in spec.md §3 ("Replaces any prior Connection for the
// same MUID").
func (d *Device) RegisterConnection(muid uint32) *Connection {
	d.mu.Lock()
	c := &Connection{TargetMUID: muid, device: d}
	d.connections[muid] = c
	listeners := append([]connectionsChangedListener(nil), d.connListeners...)
	d.mu.Unlock()

	for _, l := range listeners {
		l.fn()
	}
	return c
}

// UpdateConnection applies fn to the Connection for muid while holding
// the device lock, for the messenger to record learned peer state
// (DeviceInfo, RemoteMaxSysExSize) without exposing the lock itself.
// Reports whether muid had a registered connection.
func (d *Device) UpdateConnection(muid uint32, fn func(*Connection)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.connections[muid]
	if !ok {
		return false
	}
	fn(c)
	return true
}

// RemoveConnection deletes the Connection for muid (InvalidateMUID or
// explicit teardown) and fires connections-changed listeners exactly
// once if an entry existed.
func (d *Device) RemoveConnection(muid uint32) {
	d.mu.Lock()
	_, existed := d.connections[muid]
	delete(d.connections, muid)
	listeners := append([]connectionsChangedListener(nil), d.connListeners...)
	d.mu.Unlock()

	if !existed {
		return
	}
	for _, l := range listeners {
		l.fn()
	}
}

// AddConnectionsChangedListener registers fn and returns a token that
// RemoveConnectionsChangedListener can later use to remove it.
func (d *Device) AddConnectionsChangedListener(fn func()) Token {
	d.mu.Lock()
	defer d.mu.Unlock()
	tok := NewToken()
	d.connListeners = append(d.connListeners, connectionsChangedListener{token: tok, fn: fn})
	return tok
}

// RemoveConnectionsChangedListener removes the listener registered under tok.
func (d *Device) RemoveConnectionsChangedListener(tok Token) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, l := range d.connListeners {
		if l.token == tok {
			d.connListeners = append(d.connListeners[:i], d.connListeners[i+1:]...)
			return
		}
	}
}
