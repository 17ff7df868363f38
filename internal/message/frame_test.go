package message

import (
	"bytes"
	"testing"

	"midici/internal/ciconst"
)

func TestBuildParseFrameRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	frame := BuildFrame(0x7F, ciconst.SubIDDiscoveryInquiry, 0x02, 0x01020304, ciconst.BroadcastMUID, payload)

	h, body, err := ParseFrame(frame)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.Address != 0x7F || h.SubID2 != ciconst.SubIDDiscoveryInquiry || h.Source != 0x01020304 || h.Dest != ciconst.BroadcastMUID {
		t.Fatalf("header mismatch: %+v", h)
	}
	if !bytes.Equal(body, payload) {
		t.Fatalf("body mismatch: got %x want %x", body, payload)
	}
}

func TestParseFrameRejectsBadPrefix(t *testing.T) {
	frame := BuildFrame(0x7F, ciconst.SubIDDiscoveryInquiry, 0x02, 1, 2, nil)
	frame[1] = 0x7D // corrupt the universal non-realtime byte
	if _, _, err := ParseFrame(frame); err != ErrBadPrefix {
		t.Fatalf("expected ErrBadPrefix, got %v", err)
	}
}

func TestParseFrameRejectsTruncated(t *testing.T) {
	if _, _, err := ParseFrame([]byte{0xF0, 0x7E, 0x7F}); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestForLocal(t *testing.T) {
	if !ForLocal(ciconst.BroadcastMUID, 42) {
		t.Fatal("broadcast should be accepted")
	}
	if !ForLocal(42, 42) {
		t.Fatal("exact match should be accepted")
	}
	if ForLocal(7, 42) {
		t.Fatal("mismatched muid should be rejected")
	}
}
