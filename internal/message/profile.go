package message

import (
	"fmt"

	"midici/internal/ciconst"
	"midici/internal/codec"
)

// ProfileID is the opaque 5-byte profile identifier.
type ProfileID [5]byte

func (p ProfileID) String() string {
	return fmt.Sprintf("%02X%02X%02X%02X%02X", p[0], p[1], p[2], p[3], p[4])
}

// DefaultNumChannels applies the channel-count defaulting rule from
// spec.md §4.5: channel addresses default to 1, group/function-block
// addresses are forced to 0.
func DefaultNumChannels(address byte, given uint16, hasGiven bool) uint16 {
	if address >= ciconst.GroupOrBlockAddressMin {
		return 0
	}
	if address <= ciconst.ChannelAddressMax && !hasGiven {
		return 1
	}
	return given
}

// ProfileInquiry requests the set of profiles enabled/disabled at an
// address (0x7F queries the whole device).
type ProfileInquiry struct {
	Address byte
	Source  uint32
	Dest    uint32
}

func (m ProfileInquiry) String() string { return fmt.Sprintf("ProfileInquiry{addr=%02X}", m.Address) }

func (m ProfileInquiry) Build(version byte) []byte {
	return BuildFrame(m.Address, ciconst.SubIDProfileInquiry, version, m.Source, m.Dest, nil)
}

func ParseProfileInquiry(h Header) ProfileInquiry {
	return ProfileInquiry{Address: h.Address, Source: h.Source, Dest: h.Dest}
}

// ProfileReply lists the profiles enabled and disabled at one address.
type ProfileReply struct {
	Address  byte
	Source   uint32
	Dest     uint32
	Enabled  []ProfileID
	Disabled []ProfileID
}

func (m ProfileReply) String() string {
	return fmt.Sprintf("ProfileReply{addr=%02X enabled=%d disabled=%d}", m.Address, len(m.Enabled), len(m.Disabled))
}

func (m ProfileReply) Build(version byte) []byte {
	payload := encodeProfileList(m.Enabled)
	payload = append(payload, encodeProfileList(m.Disabled)...)
	return BuildFrame(m.Address, ciconst.SubIDProfileReply, version, m.Source, m.Dest, payload)
}

func ParseProfileReply(h Header, payload []byte) (ProfileReply, error) {
	enabled, rest, err := decodeProfileList(payload)
	if err != nil {
		return ProfileReply{}, err
	}
	disabled, _, err := decodeProfileList(rest)
	if err != nil {
		return ProfileReply{}, err
	}
	return ProfileReply{Address: h.Address, Source: h.Source, Dest: h.Dest, Enabled: enabled, Disabled: disabled}, nil
}

func encodeProfileList(ids []ProfileID) []byte {
	count := codec.PutUint7x2(uint16(len(ids)))
	out := make([]byte, 0, 2+5*len(ids))
	out = append(out, count[:]...)
	for _, id := range ids {
		out = append(out, id[:]...)
	}
	return out
}

func decodeProfileList(b []byte) ([]ProfileID, []byte, error) {
	if len(b) < 2 {
		return nil, nil, ErrTruncated
	}
	n, err := codec.Uint7x2(b[0:2])
	if err != nil {
		return nil, nil, err
	}
	b = b[2:]
	out := make([]ProfileID, 0, n)
	for i := uint16(0); i < n; i++ {
		if len(b) < 5 {
			return nil, nil, ErrTruncated
		}
		var id ProfileID
		copy(id[:], b[:5])
		out = append(out, id)
		b = b[5:]
	}
	return out, b, nil
}

// profileAndChannels is the shared shape of Set On/Off and
// Enabled/Disabled Report.
type profileAndChannels struct {
	Address     byte
	Source      uint32
	Dest        uint32
	ProfileID   ProfileID
	NumChannels uint16
}

func (m profileAndChannels) build(subID2, version byte) []byte {
	nc := codec.PutUint7x2(m.NumChannels)
	payload := make([]byte, 0, 5+2)
	payload = append(payload, m.ProfileID[:]...)
	payload = append(payload, nc[:]...)
	return BuildFrame(m.Address, subID2, version, m.Source, m.Dest, payload)
}

func parseProfileAndChannels(h Header, payload []byte) (profileAndChannels, error) {
	if len(payload) < 5+2 {
		return profileAndChannels{}, ErrTruncated
	}
	var id ProfileID
	copy(id[:], payload[:5])
	nc, err := codec.Uint7x2(payload[5:7])
	if err != nil {
		return profileAndChannels{}, err
	}
	return profileAndChannels{Address: h.Address, Source: h.Source, Dest: h.Dest, ProfileID: id, NumChannels: nc}, nil
}

type ProfileSetOn profileAndChannels
type ProfileSetOff profileAndChannels
type ProfileEnabledReport profileAndChannels
type ProfileDisabledReport profileAndChannels

func (m ProfileSetOn) String() string  { return fmt.Sprintf("ProfileSetOn{%s addr=%02X}", m.ProfileID, m.Address) }
func (m ProfileSetOff) String() string { return fmt.Sprintf("ProfileSetOff{%s addr=%02X}", m.ProfileID, m.Address) }
func (m ProfileEnabledReport) String() string {
	return fmt.Sprintf("ProfileEnabledReport{%s addr=%02X ch=%d}", m.ProfileID, m.Address, m.NumChannels)
}
func (m ProfileDisabledReport) String() string {
	return fmt.Sprintf("ProfileDisabledReport{%s addr=%02X ch=%d}", m.ProfileID, m.Address, m.NumChannels)
}

func (m ProfileSetOn) Build(version byte) []byte {
	return profileAndChannels(m).build(ciconst.SubIDProfileSetOn, version)
}
func (m ProfileSetOff) Build(version byte) []byte {
	return profileAndChannels(m).build(ciconst.SubIDProfileSetOff, version)
}
func (m ProfileEnabledReport) Build(version byte) []byte {
	return profileAndChannels(m).build(ciconst.SubIDProfileEnabledReport, version)
}
func (m ProfileDisabledReport) Build(version byte) []byte {
	return profileAndChannels(m).build(ciconst.SubIDProfileDisabledReport, version)
}

func ParseProfileSetOn(h Header, payload []byte) (ProfileSetOn, error) {
	p, err := parseProfileAndChannels(h, payload)
	return ProfileSetOn(p), err
}
func ParseProfileSetOff(h Header, payload []byte) (ProfileSetOff, error) {
	p, err := parseProfileAndChannels(h, payload)
	return ProfileSetOff(p), err
}
func ParseProfileEnabledReport(h Header, payload []byte) (ProfileEnabledReport, error) {
	p, err := parseProfileAndChannels(h, payload)
	return ProfileEnabledReport(p), err
}
func ParseProfileDisabledReport(h Header, payload []byte) (ProfileDisabledReport, error) {
	p, err := parseProfileAndChannels(h, payload)
	return ProfileDisabledReport(p), err
}

// ProfileAdded and ProfileRemoved carry only the profile ID.
type ProfileAdded struct {
	Address   byte
	Source    uint32
	ProfileID ProfileID
}
type ProfileRemoved struct {
	Address   byte
	Source    uint32
	ProfileID ProfileID
}

func (m ProfileAdded) String() string   { return fmt.Sprintf("ProfileAdded{%s addr=%02X}", m.ProfileID, m.Address) }
func (m ProfileRemoved) String() string { return fmt.Sprintf("ProfileRemoved{%s addr=%02X}", m.ProfileID, m.Address) }

func (m ProfileAdded) Build(version byte) []byte {
	return BuildFrame(m.Address, ciconst.SubIDProfileAdded, version, m.Source, ciconst.BroadcastMUID, m.ProfileID[:])
}
func (m ProfileRemoved) Build(version byte) []byte {
	return BuildFrame(m.Address, ciconst.SubIDProfileRemoved, version, m.Source, ciconst.BroadcastMUID, m.ProfileID[:])
}

func ParseProfileAdded(h Header, payload []byte) (ProfileAdded, error) {
	if len(payload) < 5 {
		return ProfileAdded{}, ErrTruncated
	}
	var id ProfileID
	copy(id[:], payload[:5])
	return ProfileAdded{Address: h.Address, Source: h.Source, ProfileID: id}, nil
}
func ParseProfileRemoved(h Header, payload []byte) (ProfileRemoved, error) {
	if len(payload) < 5 {
		return ProfileRemoved{}, ErrTruncated
	}
	var id ProfileID
	copy(id[:], payload[:5])
	return ProfileRemoved{Address: h.Address, Source: h.Source, ProfileID: id}, nil
}
