// Package message holds the typed CI sub-message variants: construction
// from semantic fields, serialization to one-or-many SysEx chunks, and
// the pure retrieval functions that extract typed fields back out of a
// raw payload without judging semantic validity (the messenger does
// that).
package message

import (
	"errors"
	"fmt"

	"midici/internal/ciconst"
	"midici/internal/codec"
)

// ErrTruncated is returned by ParseFrame when the byte slice is shorter
// than the minimum frame size for its kind.
var ErrTruncated = errors.New("message: truncated frame")

// ErrBadPrefix is returned when the five-byte universal SysEx prefix
// does not match {0x7E, address, 0x0D, sub_id2, version}.
var ErrBadPrefix = errors.New("message: bad sysex prefix")

// Header is the common header carried by every CI message: source and
// destination MUID, the logical address (the "device ID" byte position
// in the wire frame doubles as the address per the MIDI-CI standard),
// and the sub-ID2 discriminator.
type Header struct {
	Address byte
	SubID2  byte
	Version byte
	Source  uint32
	Dest    uint32
}

// minFrameLen is F0 + 5-byte prefix + 4+4 MUID bytes + F7.
const minFrameLen = 1 + 5 + 4 + 4 + 1

// payloadStart is the offset of the first sub-ID2-specific payload byte.
const payloadStart = 14

// BuildFrame assembles a complete SysEx frame: F0, the universal prefix,
// both MUIDs, the sub-ID2-specific payload, and the terminating F7.
func BuildFrame(address, subID2, version byte, src, dst uint32, payload []byte) []byte {
	out := make([]byte, 0, minFrameLen+len(payload))
	out = append(out, ciconst.SysExStart, ciconst.UniversalNonRealTime, address, ciconst.CISubID1, subID2, version)
	s := codec.PutUint7x4(src)
	d := codec.PutUint7x4(dst)
	out = append(out, s[:]...)
	out = append(out, d[:]...)
	out = append(out, payload...)
	out = append(out, ciconst.SysExEnd)
	return out
}

// ParseFrame verifies framing and splits a raw SysEx message into its
// common Header and the remaining sub-ID2-specific payload.
func ParseFrame(b []byte) (Header, []byte, error) {
	if len(b) < minFrameLen {
		return Header{}, nil, ErrTruncated
	}
	if b[0] != ciconst.SysExStart || b[len(b)-1] != ciconst.SysExEnd {
		return Header{}, nil, ErrBadPrefix
	}
	if b[1] != ciconst.UniversalNonRealTime || b[3] != ciconst.CISubID1 {
		return Header{}, nil, ErrBadPrefix
	}
	src, err := codec.Uint7x4(b[6:10])
	if err != nil {
		return Header{}, nil, fmt.Errorf("message: source muid: %w", err)
	}
	dst, err := codec.Uint7x4(b[10:14])
	if err != nil {
		return Header{}, nil, fmt.Errorf("message: destination muid: %w", err)
	}
	h := Header{
		Address: b[2],
		SubID2:  b[4],
		Version: b[5],
		Source:  src,
		Dest:    dst,
	}
	return h, b[payloadStart : len(b)-1], nil
}

// ForLocal reports whether a message addressed to dst should be accepted
// by a device whose own MUID is localMUID (exact match or broadcast).
func ForLocal(dst, localMUID uint32) bool {
	return dst == localMUID || dst == ciconst.BroadcastMUID
}
