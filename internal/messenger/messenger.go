// Package messenger is the sole boundary between SysEx framing and
// protocol semantics (spec.md §4.4): it owns process_input, the send
// path's chunk-size negotiation, the chunk manager, and the auto-cascade
// of follow-up inquiries after a Discovery Reply.
package messenger

import (
	"errors"
	"sync"

	"midici/internal/chunkmgr"
	"midici/internal/ciconst"
	"midici/internal/device"
	"midici/internal/message"
	"midici/internal/profile"
	"midici/internal/property"
)

const wireVersion byte = 0x02

// ErrHandlerPanic is returned by ProcessInput when a handler panicked
// and was recovered; the caller should treat the input as rejected.
var ErrHandlerPanic = errors.New("messenger: handler panicked")

// Messenger dispatches inbound frames to the profile and property
// facades and drives the Discovery/auto-cascade handshake.
type Messenger struct {
	dev          *device.Device
	chunks       *chunkmgr.Manager
	profileHost  *profile.HostFacade
	propertyHost *property.HostFacade

	mu              sync.Mutex
	profileClients  map[uint32]*profile.ClientFacade
	propertyClients map[uint32]*property.ClientFacade
}

// New returns a Messenger wired to dev and the local host facades.
func New(dev *device.Device, profileHost *profile.HostFacade, propertyHost *property.HostFacade) *Messenger {
	return &Messenger{
		dev:             dev,
		chunks:          chunkmgr.New(0, dev.Clock().Now),
		profileHost:     profileHost,
		propertyHost:    propertyHost,
		profileClients:  make(map[uint32]*profile.ClientFacade),
		propertyClients: make(map[uint32]*property.ClientFacade),
	}
}

// ProfileClientFor returns (creating if necessary) the ClientFacade
// tracking peer muid's advertised profiles.
func (m *Messenger) ProfileClientFor(muid uint32) *profile.ClientFacade {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.profileClients[muid]
	if !ok {
		c = profile.NewClientFacade(m.dev, muid)
		m.profileClients[muid] = c
	}
	return c
}

// PropertyClientFor returns (creating if necessary) the ClientFacade for
// issuing property requests to peer muid.
func (m *Messenger) PropertyClientFor(muid uint32) *property.ClientFacade {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.propertyClients[muid]
	if !ok {
		maxChunk := m.dev.Config().MaxPropertyChunkSize
		c = property.NewClientFacade(m.dev, muid, maxChunk)
		m.propertyClients[muid] = c
	}
	return c
}

// ProcessInput is the single entry point for an inbound SysEx byte
// stream on group: it parses framing, filters by destination MUID,
// dispatches by sub-ID2, and recovers from any panic in a handler by
// returning ErrHandlerPanic rather than crashing the device thread
// (spec.md §7).
func (m *Messenger) ProcessInput(group byte, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.dev.LogReceived(rawLabel("panic handling input, recovered"), "")
			err = ErrHandlerPanic
		}
	}()

	h, payload, ferr := message.ParseFrame(data)
	if ferr != nil {
		m.dev.LogReceived(rawLabel("malformed frame: "+ferr.Error()), "")
		return ferr
	}
	if !message.ForLocal(h.Dest, m.dev.MUID()) {
		return nil
	}

	switch h.SubID2 {
	case ciconst.SubIDDiscoveryInquiry:
		return m.handleDiscoveryInquiry(h, payload, group)
	case ciconst.SubIDDiscoveryReply:
		return m.handleDiscoveryReply(h, payload, group)
	case ciconst.SubIDEndpointInquiry:
		return m.handleEndpointInquiry(h, payload, group)
	case ciconst.SubIDEndpointReply:
		return m.handleEndpointReply(h, payload)
	case ciconst.SubIDInvalidateMUID:
		return m.handleInvalidateMUID(h, payload)
	case ciconst.SubIDACK:
		a, aerr := message.ParseACK(h, payload)
		if aerr == nil {
			m.dev.LogReceived(a, "")
		}
		return aerr
	case ciconst.SubIDNAK:
		n, nerr := message.ParseNAK(h, payload)
		if nerr == nil {
			m.dev.LogReceived(n, "")
		}
		return nerr

	case ciconst.SubIDProfileInquiry:
		return m.handleProfileInquiry(h, group)
	case ciconst.SubIDProfileReply:
		reply, perr := message.ParseProfileReply(h, payload)
		if perr != nil {
			return perr
		}
		m.ProfileClientFor(h.Source).HandleProfileReply(group, reply)
		return nil
	case ciconst.SubIDProfileSetOn:
		return m.handleProfileSetOn(h, payload, group)
	case ciconst.SubIDProfileSetOff:
		return m.handleProfileSetOff(h, payload, group)
	case ciconst.SubIDProfileEnabledReport:
		r, perr := message.ParseProfileEnabledReport(h, payload)
		if perr != nil {
			return perr
		}
		m.ProfileClientFor(h.Source).HandleEnabledReport(group, r)
		return nil
	case ciconst.SubIDProfileDisabledReport:
		r, perr := message.ParseProfileDisabledReport(h, payload)
		if perr != nil {
			return perr
		}
		m.ProfileClientFor(h.Source).HandleDisabledReport(group, r)
		return nil
	case ciconst.SubIDProfileAdded:
		a, perr := message.ParseProfileAdded(h, payload)
		if perr != nil {
			return perr
		}
		m.ProfileClientFor(h.Source).HandleAdded(group, a)
		return nil
	case ciconst.SubIDProfileRemoved:
		r, perr := message.ParseProfileRemoved(h, payload)
		if perr != nil {
			return perr
		}
		m.ProfileClientFor(h.Source).HandleRemoved(group, r)
		return nil

	case ciconst.SubIDPropertyGetCapabilities:
		return m.handlePropertyGetCapabilities(h, payload, group)
	case ciconst.SubIDPropertyCapabilitiesReply:
		c, cerr := message.ParsePropertyCapabilities(h, payload, true)
		if cerr == nil {
			m.dev.LogReceived(c, "")
		}
		return cerr
	case ciconst.SubIDPropertyGetDataInquiry, ciconst.SubIDPropertySetDataInquiry, ciconst.SubIDPropertySubscribeInquiry:
		return m.handlePropertyInquiryChunk(h, payload, group)
	case ciconst.SubIDPropertyGetDataReply, ciconst.SubIDPropertySetDataReply, ciconst.SubIDPropertySubscribeReply, ciconst.SubIDPropertyNotify:
		return m.handlePropertyReplyChunk(h, payload)

	case ciconst.SubIDProcessInquiryCapabilities:
		return m.handleProcessInquiryCapabilities(h, group)
	case ciconst.SubIDProcessInquiryReply:
		c, perr := message.ParseProcessInquiryCapabilities(h, payload, true)
		if perr == nil {
			m.dev.LogReceived(c, "")
		}
		return perr
	case ciconst.SubIDMIDIMessageReport:
		return m.handleMidiMessageReportInquiry(h, payload, group)
	case ciconst.SubIDMIDIMessageReportReply:
		r, rerr := message.ParseMidiMessageReportReply(h, payload)
		if rerr == nil {
			m.dev.LogReceived(r, "")
		}
		return rerr
	case ciconst.SubIDEndOfReport:
		m.dev.LogReceived(message.ParseEndOfReport(h), "")
		return nil

	default:
		// Unknown sub-ID2: silently accepted per spec.md §4.4.
		return nil
	}
}

// rawLabel adapts a plain string to fmt.Stringer for LogEntry.Msg.
type rawLabel string

func (r rawLabel) String() string { return string(r) }

func hexByte(b byte) string {
	const hex = "0123456789ABCDEF"
	return string([]byte{hex[b>>4], hex[b&0xF]})
}

func (m *Messenger) sendNAK(h message.Header, group byte, status byte, reason string) {
	nak := message.NAK{Address: h.Address, Source: m.dev.MUID(), Dest: h.Source, OriginalSubID2: h.SubID2, Status: status, Message: reason}
	m.dev.Send(group, nak.Build(wireVersion), nak)
}
