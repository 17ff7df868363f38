package message

import (
	"fmt"

	"midici/internal/ciconst"
)

// ProcessInquiryCapabilities requests (or, as a reply, reports) which
// process-inquiry features a peer supports: an empty-payload Inquiry and
// a one-byte-bitmap Reply, mirroring PropertyCapabilities' shape.
type ProcessInquiryCapabilities struct {
	Address           byte
	Source            uint32
	Dest              uint32
	SupportedFeatures byte
	IsReply           bool
}

func (m ProcessInquiryCapabilities) String() string {
	kind := "Inquiry"
	if m.IsReply {
		kind = "Reply"
	}
	return fmt.Sprintf("ProcessInquiryCapabilities%s{features=%02X}", kind, m.SupportedFeatures)
}

func (m ProcessInquiryCapabilities) Build(version byte) []byte {
	if !m.IsReply {
		return BuildFrame(m.Address, ciconst.SubIDProcessInquiryCapabilities, version, m.Source, m.Dest, nil)
	}
	return BuildFrame(m.Address, ciconst.SubIDProcessInquiryReply, version, m.Source, m.Dest, []byte{m.SupportedFeatures})
}

func ParseProcessInquiryCapabilities(h Header, payload []byte, isReply bool) (ProcessInquiryCapabilities, error) {
	m := ProcessInquiryCapabilities{Address: h.Address, Source: h.Source, Dest: h.Dest, IsReply: isReply}
	if isReply {
		if len(payload) < 1 {
			return ProcessInquiryCapabilities{}, ErrTruncated
		}
		m.SupportedFeatures = payload[0]
	}
	return m, nil
}

// MidiMessageReportInquiry asks a peer to dump its retained MIDI
// performance state (note/controller/system messages) back as a
// MidiMessageReportReply followed by zero or more MIDI messages and a
// terminating EndOfReport (spec.md §4.4 sub-ID 0x42).
type MidiMessageReportInquiry struct {
	Address                   byte
	Source                    uint32
	Dest                      uint32
	MessageDataControl        byte
	SystemMessages            byte
	ChannelControllerMessages byte
	NoteDataMessages          byte
}

func (m MidiMessageReportInquiry) String() string {
	return fmt.Sprintf("MidiMessageReportInquiry{control=%02X system=%02X channelController=%02X noteData=%02X}",
		m.MessageDataControl, m.SystemMessages, m.ChannelControllerMessages, m.NoteDataMessages)
}

func (m MidiMessageReportInquiry) Build(version byte) []byte {
	payload := []byte{m.MessageDataControl, m.SystemMessages, m.ChannelControllerMessages, m.NoteDataMessages}
	return BuildFrame(m.Address, ciconst.SubIDMIDIMessageReport, version, m.Source, m.Dest, payload)
}

func ParseMidiMessageReportInquiry(h Header, payload []byte) (MidiMessageReportInquiry, error) {
	if len(payload) < 4 {
		return MidiMessageReportInquiry{}, ErrTruncated
	}
	return MidiMessageReportInquiry{
		Address: h.Address, Source: h.Source, Dest: h.Dest,
		MessageDataControl:        payload[0],
		SystemMessages:            payload[1],
		ChannelControllerMessages: payload[2],
		NoteDataMessages:          payload[3],
	}, nil
}

// MidiMessageReportReply answers a MidiMessageReportInquiry, echoing back
// the subset of message categories the responder will actually dump
// (spec.md §4.4 sub-ID 0x43); the dump itself (plain MIDI messages, not
// CI SysEx) and the terminating EndOfReport follow separately.
type MidiMessageReportReply struct {
	Address                   byte
	Source                    uint32
	Dest                      uint32
	SystemMessages            byte
	ChannelControllerMessages byte
	NoteDataMessages          byte
}

func (m MidiMessageReportReply) String() string {
	return fmt.Sprintf("MidiMessageReportReply{system=%02X channelController=%02X noteData=%02X}",
		m.SystemMessages, m.ChannelControllerMessages, m.NoteDataMessages)
}

func (m MidiMessageReportReply) Build(version byte) []byte {
	payload := []byte{m.SystemMessages, m.ChannelControllerMessages, m.NoteDataMessages}
	return BuildFrame(m.Address, ciconst.SubIDMIDIMessageReportReply, version, m.Source, m.Dest, payload)
}

func ParseMidiMessageReportReply(h Header, payload []byte) (MidiMessageReportReply, error) {
	if len(payload) < 3 {
		return MidiMessageReportReply{}, ErrTruncated
	}
	return MidiMessageReportReply{
		Address: h.Address, Source: h.Source, Dest: h.Dest,
		SystemMessages:            payload[0],
		ChannelControllerMessages: payload[1],
		NoteDataMessages:          payload[2],
	}, nil
}

// EndOfReport signals the end of a MIDI Message Report dump; it carries
// no payload beyond the common header.
type EndOfReport struct {
	Address byte
	Source  uint32
	Dest    uint32
}

func (m EndOfReport) String() string { return fmt.Sprintf("EndOfReport{dst=%08X}", m.Dest) }

func (m EndOfReport) Build(version byte) []byte {
	return BuildFrame(m.Address, ciconst.SubIDEndOfReport, version, m.Source, m.Dest, nil)
}

func ParseEndOfReport(h Header) EndOfReport {
	return EndOfReport{Address: h.Address, Source: h.Source, Dest: h.Dest}
}
