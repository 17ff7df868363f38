package messenger

import (
	"midici/internal/chunkmgr"
	"midici/internal/ciconst"
	"midici/internal/device"
	"midici/internal/message"
	"midici/internal/profile"
	"midici/internal/property"
)

func (m *Messenger) handleDiscoveryInquiry(h message.Header, payload []byte, group byte) error {
	inq, err := message.ParseDiscoveryInquiry(h, payload)
	if err != nil {
		return err
	}
	m.dev.RegisterConnection(inq.Source)
	m.dev.UpdateConnection(inq.Source, func(c *device.Connection) {
		c.RemoteMaxSysExSize = inq.ReceivableMaxSysEx
	})

	cfg := m.dev.Config()
	reply := message.DiscoveryReply{
		Address:             ciconst.FunctionBlockAddress,
		Source:              m.dev.MUID(),
		Dest:                inq.Source,
		Details:             cfg.DeviceInfo.DeviceDetails,
		CICategorySupported: cfg.CapabilityInquirySupported,
		ReceivableMaxSysEx:  cfg.ReceivableMaxSysExSize,
		FunctionBlock:       ciconst.FunctionBlockAddress,
	}
	return m.dev.Send(group, reply.Build(wireVersion), reply)
}

// handleDiscoveryReply is the initiator side of Discovery: it learns the
// peer's details and, per the configured Auto* flags, cascades the
// follow-up inquiries that flesh out a newly discovered connection
// (spec.md §3's "Discovery Reply, upon which further inquiries are
// typically cascaded").
func (m *Messenger) handleDiscoveryReply(h message.Header, payload []byte, group byte) error {
	rep, err := message.ParseDiscoveryReply(h, payload)
	if err != nil {
		return err
	}

	if !m.dev.UpdateConnection(rep.Source, func(c *device.Connection) {
		c.RemoteMaxSysExSize = rep.ReceivableMaxSysEx
		c.DeviceInfo = device.DeviceInfo{DeviceDetails: rep.Details}
		c.HasDeviceInfo = true
	}) {
		m.dev.RegisterConnection(rep.Source)
		m.dev.UpdateConnection(rep.Source, func(c *device.Connection) {
			c.RemoteMaxSysExSize = rep.ReceivableMaxSysEx
			c.DeviceInfo = device.DeviceInfo{DeviceDetails: rep.Details}
			c.HasDeviceInfo = true
		})
	}

	cfg := m.dev.Config()
	if cfg.AutoSendEndpointInquiry {
		inq := message.EndpointInquiry{Address: ciconst.FunctionBlockAddress, Source: m.dev.MUID(), Dest: rep.Source}
		if err := m.dev.Send(group, inq.Build(wireVersion), inq); err != nil {
			return err
		}
	}
	if cfg.AutoSendProfileInquiry {
		inq := message.ProfileInquiry{Address: ciconst.FunctionBlockAddress, Source: m.dev.MUID(), Dest: rep.Source}
		if err := m.dev.Send(group, inq.Build(wireVersion), inq); err != nil {
			return err
		}
	}
	if cfg.AutoSendPropertyExchangeCapabilitiesInquiry {
		c := message.PropertyCapabilities{Address: ciconst.FunctionBlockAddress, Source: m.dev.MUID(), Dest: rep.Source, MaxSimultaneousRequests: 1}
		if err := m.dev.Send(group, c.Build(wireVersion), c); err != nil {
			return err
		}
	}
	if cfg.AutoSendProcessInquiry {
		pc := message.ProcessInquiryCapabilities{Address: ciconst.FunctionBlockAddress, Source: m.dev.MUID(), Dest: rep.Source}
		if err := m.dev.Send(group, pc.Build(wireVersion), pc); err != nil {
			return err
		}
	}
	if cfg.AutoSendGetResourceList {
		m.PropertyClientFor(rep.Source).GetPropertyData(ciconst.PropertyResourceList, "", property.EncodingASCII, nil, nil,
			func(status int, msg string, body []byte, total *int) {})
	}
	if cfg.AutoSendGetDeviceInfo {
		m.PropertyClientFor(rep.Source).GetPropertyData(ciconst.PropertyDeviceInfo, "", property.EncodingASCII, nil, nil,
			func(status int, msg string, body []byte, total *int) {})
	}
	return nil
}

func (m *Messenger) handleEndpointInquiry(h message.Header, payload []byte, group byte) error {
	inq, err := message.ParseEndpointInquiry(h, payload)
	if err != nil {
		return err
	}
	var data []byte
	if inq.StatusField == 0 {
		data = []byte(m.dev.Config().ProductInstanceID)
	}
	reply := message.EndpointReply{Address: h.Address, Source: m.dev.MUID(), Dest: inq.Source, StatusField: inq.StatusField, Data: data}
	return m.dev.Send(group, reply.Build(wireVersion), reply)
}

func (m *Messenger) handleEndpointReply(h message.Header, payload []byte) error {
	rep, err := message.ParseEndpointReply(h, payload)
	if err != nil {
		return err
	}
	m.dev.LogReceived(rep, "")
	return nil
}

func (m *Messenger) handleInvalidateMUID(h message.Header, payload []byte) error {
	inv, err := message.ParseInvalidateMUID(h, payload)
	if err != nil {
		return err
	}
	m.dev.RemoveConnection(inv.TargetMUID)
	m.mu.Lock()
	delete(m.profileClients, inv.TargetMUID)
	delete(m.propertyClients, inv.TargetMUID)
	m.mu.Unlock()
	return nil
}

// handleProfileInquiry replies once per populated address when queried
// at the whole-device address, and once otherwise, per
// profile.List.Addresses' documented purpose.
func (m *Messenger) handleProfileInquiry(h message.Header, group byte) error {
	addresses := []byte{h.Address}
	if h.Address == ciconst.FunctionBlockAddress {
		if addrs := m.profileHost.Addresses(); len(addrs) > 0 {
			addresses = addrs
		}
	}
	for _, addr := range addresses {
		enabled := profileIDs(m.profileHost.GetMatchingProfiles(addr, true), addr)
		disabled := profileIDs(m.profileHost.GetMatchingProfiles(addr, false), addr)
		reply := message.ProfileReply{Address: addr, Source: m.dev.MUID(), Dest: h.Source, Enabled: enabled, Disabled: disabled}
		if err := m.dev.Send(group, reply.Build(wireVersion), reply); err != nil {
			return err
		}
	}
	return nil
}

func profileIDs(profiles []profile.Profile, address byte) []message.ProfileID {
	out := make([]message.ProfileID, 0, len(profiles))
	for _, p := range profiles {
		if p.Address != address {
			continue
		}
		out = append(out, p.ID)
	}
	return out
}

func (m *Messenger) handleProfileSetOn(h message.Header, payload []byte, group byte) error {
	set, err := message.ParseProfileSetOn(h, payload)
	if err != nil {
		return err
	}
	return m.profileHost.EnableProfile(set.ProfileID, group, set.Address, set.NumChannels)
}

func (m *Messenger) handleProfileSetOff(h message.Header, payload []byte, group byte) error {
	set, err := message.ParseProfileSetOff(h, payload)
	if err != nil {
		return err
	}
	return m.profileHost.DisableProfile(set.ProfileID, group, set.Address, set.NumChannels)
}

func (m *Messenger) handlePropertyGetCapabilities(h message.Header, payload []byte, group byte) error {
	if _, err := message.ParsePropertyCapabilities(h, payload, false); err != nil {
		return err
	}
	reply := message.PropertyCapabilities{Address: h.Address, Source: m.dev.MUID(), Dest: h.Source, MaxSimultaneousRequests: 1, IsReply: true}
	return m.dev.Send(group, reply.Build(wireVersion), reply)
}

func (m *Messenger) handleProcessInquiryCapabilities(h message.Header, group byte) error {
	reply := message.ProcessInquiryCapabilities{Address: h.Address, Source: m.dev.MUID(), Dest: h.Source, SupportedFeatures: 0, IsReply: true}
	return m.dev.Send(group, reply.Build(wireVersion), reply)
}

// handleMidiMessageReportInquiry answers a MIDI Message Report request.
// This engine holds no retained MIDI performance state (no sound
// generation, per spec's non-goals), so it always replies that it has
// nothing in any requested category and immediately closes the dump with
// an End of Report rather than emitting any MIDI message packets.
func (m *Messenger) handleMidiMessageReportInquiry(h message.Header, payload []byte, group byte) error {
	if _, err := message.ParseMidiMessageReportInquiry(h, payload); err != nil {
		return err
	}
	reply := message.MidiMessageReportReply{Address: h.Address, Source: m.dev.MUID(), Dest: h.Source}
	if err := m.dev.Send(group, reply.Build(wireVersion), reply); err != nil {
		return err
	}
	end := message.EndOfReport{Address: h.Address, Source: m.dev.MUID(), Dest: h.Source}
	return m.dev.Send(group, end.Build(wireVersion), end)
}

// reassemble accumulates chunks for one (source, request_id) key.
// Single-chunk transfers (the common case) bypass the chunk manager
// entirely: Manager.Finish returns a nil header when AddPendingChunk was
// never called for the key, which would silently drop the header that
// arrived on the only chunk.
func (m *Messenger) reassemble(h message.Header, payload []byte) (chunk message.PropertyChunk, header, body []byte, complete bool, err error) {
	chunk, err = message.ParsePropertyChunk(h, payload)
	if err != nil {
		return
	}
	key := chunkmgr.Key{SourceMUID: h.Source, RequestID: chunk.RequestID}
	if chunk.ChunkIndex >= chunk.NumChunks {
		if chunk.NumChunks <= 1 {
			header, body = chunk.Header, chunk.Body
		} else {
			header, body = m.chunks.Finish(key, chunk.Body)
		}
		complete = true
		return
	}
	m.chunks.AddPendingChunk(key, chunk.Header, chunk.Body)
	return
}

// nakStatusMalformed is the MIDI-CI NAK status code for a malformed message.
const nakStatusMalformed byte = 0x41

// handlePropertyInquiryChunk is the host side of property exchange: it
// reassembles a Get/Set/Subscribe Inquiry and, once complete, dispatches
// to the property host facade and replies echoing the inquiry's own
// request ID (spec.md §4.7 correlates request and reply by request_id;
// only host-initiated pushes mint a fresh one).
func (m *Messenger) handlePropertyInquiryChunk(h message.Header, payload []byte, group byte) error {
	chunk, header, body, complete, err := m.reassemble(h, payload)
	if err != nil {
		return err
	}
	if !complete {
		return nil
	}

	req, err := property.DecodeRequestHeader(header)
	if err != nil {
		m.sendNAK(h, group, nakStatusMalformed, ciconst.MalformedMessage)
		return err
	}

	switch h.SubID2 {
	case ciconst.SubIDPropertyGetDataInquiry:
		status, msg, respBody, total := m.propertyHost.HandleGet(req)
		encoded, eerr := property.EncodeBody(respBody, req.MutualEncoding)
		if eerr != nil {
			status, msg, encoded = ciconst.StatusInternalError, eerr.Error(), nil
		}
		replyHeader := property.EncodeReplyHeader(property.ReplyHeader{Status: status, Message: msg, MutualEncoding: req.MutualEncoding, TotalCount: total})
		return m.sendPropertyFrames(ciconst.SubIDPropertyGetDataReply, h.Address, h.Source, chunk.RequestID, replyHeader, encoded, group)

	case ciconst.SubIDPropertySetDataInquiry:
		decodedBody, derr := property.DecodeBody(body, req.MutualEncoding)
		if derr != nil {
			m.sendNAK(h, group, nakStatusMalformed, ciconst.MalformedMessage)
			return derr
		}
		status, msg := m.propertyHost.HandleSet(req, decodedBody)
		replyHeader := property.EncodeReplyHeader(property.ReplyHeader{Status: status, Message: msg})
		return m.sendPropertyFrames(ciconst.SubIDPropertySetDataReply, h.Address, h.Source, chunk.RequestID, replyHeader, nil, group)

	case ciconst.SubIDPropertySubscribeInquiry:
		var replyHeader property.ReplyHeader
		if req.Command == property.CommandEnd {
			status := m.propertyHost.HandleSubscribeEnd(h.Source, req)
			replyHeader = property.ReplyHeader{Status: status, Command: property.CommandEnd, SubscribeID: req.SubscribeID}
		} else {
			status, subID := m.propertyHost.HandleSubscribeStart(h.Source, req)
			replyHeader = property.ReplyHeader{Status: status, SubscribeID: subID}
		}
		reply := property.EncodeReplyHeader(replyHeader)
		return m.sendPropertyFrames(ciconst.SubIDPropertySubscribeReply, h.Address, h.Source, chunk.RequestID, reply, nil, group)
	}
	return nil
}

// handlePropertyReplyChunk is the client side: it reassembles Get/Set/
// Subscribe replies and Notify pushes, then routes to the peer's
// property client facade.
func (m *Messenger) handlePropertyReplyChunk(h message.Header, payload []byte) error {
	chunk, header, body, complete, err := m.reassemble(h, payload)
	if err != nil {
		return err
	}
	if !complete {
		return nil
	}

	client := m.PropertyClientFor(h.Source)
	switch h.SubID2 {
	case ciconst.SubIDPropertyGetDataReply:
		client.HandleGetReply(chunk.RequestID, header, body)
	case ciconst.SubIDPropertySetDataReply:
		client.HandleSetReply(chunk.RequestID, header)
	case ciconst.SubIDPropertySubscribeReply:
		client.HandleSubscribeReply(chunk.RequestID, header)
	case ciconst.SubIDPropertyNotify:
		return client.HandleNotify(header, body)
	}
	return nil
}

func (m *Messenger) sendPropertyFrames(subID2, address byte, dest uint32, reqID byte, header, body []byte, group byte) error {
	maxChunk := m.dev.Config().MaxPropertyChunkSize
	if remote, ok := m.dev.RemoteMaxSysExSize(dest); ok && int(remote) < maxChunk {
		maxChunk = int(remote)
	}
	frames := message.SerializeProperty(subID2, address, wireVersion, m.dev.MUID(), dest, reqID, header, body, maxChunk)
	for _, f := range frames {
		fh, fpayload, err := message.ParseFrame(f)
		if err != nil {
			return err
		}
		chunk, err := message.ParsePropertyChunk(fh, fpayload)
		if err != nil {
			return err
		}
		if err := m.dev.Send(group, f, chunk); err != nil {
			return err
		}
	}
	return nil
}
