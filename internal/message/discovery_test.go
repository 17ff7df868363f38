package message

import (
	"testing"

	"midici/internal/ciconst"
)

func TestDiscoveryInquiryRoundTrip(t *testing.T) {
	m := DiscoveryInquiry{
		Address: ciconst.FunctionBlockAddress,
		Source:  0x01020304,
		Details: DeviceDetails{
			ManufacturerID:   0x123456 & 0x1FFFFF,
			FamilyID:         0x1234,
			ModelID:          0x0567,
			SoftwareRevision: 0x0FEDCBA9,
		},
		CICategorySupported: 0x7F,
		ReceivableMaxSysEx:  4096,
	}
	frame := m.Build(0x02)
	h, payload, err := ParseFrame(frame)
	if err != nil {
		t.Fatalf("parse frame: %v", err)
	}
	got, err := ParseDiscoveryInquiry(h, payload)
	if err != nil {
		t.Fatalf("parse discovery inquiry: %v", err)
	}
	if got.Source != m.Source || got.Details != m.Details || got.ReceivableMaxSysEx != m.ReceivableMaxSysEx {
		t.Fatalf("mismatch: got %+v want %+v", got, m)
	}
}

func TestDiscoveryReplyRoundTrip(t *testing.T) {
	m := DiscoveryReply{
		Address: ciconst.FunctionBlockAddress,
		Source:  0x05060708,
		Dest:    0x01020304,
		Details: DeviceDetails{ManufacturerID: 1, FamilyID: 2, ModelID: 3, SoftwareRevision: 4},
	}
	frame := m.Build(0x02)
	h, payload, err := ParseFrame(frame)
	if err != nil {
		t.Fatalf("parse frame: %v", err)
	}
	got, err := ParseDiscoveryReply(h, payload)
	if err != nil {
		t.Fatalf("parse discovery reply: %v", err)
	}
	if got.Source != m.Source || got.Dest != m.Dest || got.Details != m.Details {
		t.Fatalf("mismatch: got %+v want %+v", got, m)
	}
}

func TestInvalidateMUIDRoundTrip(t *testing.T) {
	m := InvalidateMUID{Address: ciconst.FunctionBlockAddress, Source: 0x05060708, TargetMUID: 0x01020304}
	h, payload, err := ParseFrame(m.Build(0x02))
	if err != nil {
		t.Fatalf("parse frame: %v", err)
	}
	got, err := ParseInvalidateMUID(h, payload)
	if err != nil {
		t.Fatalf("parse invalidate: %v", err)
	}
	if got.TargetMUID != m.TargetMUID {
		t.Fatalf("target muid mismatch: got %x want %x", got.TargetMUID, m.TargetMUID)
	}
}

func TestNAKRoundTrip(t *testing.T) {
	m := NAK{Address: 0, Source: 1, Dest: 2, OriginalSubID2: ciconst.SubIDPropertySubscribeInquiry, Status: 1, Message: ciconst.MalformedMessage}
	h, payload, err := ParseFrame(m.Build(0x02))
	if err != nil {
		t.Fatalf("parse frame: %v", err)
	}
	got, err := ParseNAK(h, payload)
	if err != nil {
		t.Fatalf("parse nak: %v", err)
	}
	if got.Message != ciconst.MalformedMessage || got.OriginalSubID2 != ciconst.SubIDPropertySubscribeInquiry {
		t.Fatalf("mismatch: %+v", got)
	}
}
