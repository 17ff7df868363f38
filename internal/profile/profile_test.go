package profile

import (
	"fmt"
	"testing"

	"midici/internal/message"
)

type fakeSender struct {
	muid uint32
	sent [][]byte
}

func (f *fakeSender) MUID() uint32 { return f.muid }
func (f *fakeSender) Send(group byte, data []byte, label fmt.Stringer) error {
	f.sent = append(f.sent, data)
	return nil
}

func TestHostFacadeEnableBroadcastsReport(t *testing.T) {
	sender := &fakeSender{muid: 0x01020304}
	h := NewHostFacade(sender, 0)
	id := message.ProfileID{1, 2, 3, 4, 5}

	if err := h.AddProfile(id, 0, 0x03); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := h.AddProfile(id, 0, 0x03); err != ErrDuplicateProfile {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	fired := 0
	h.AddChangeListener(func() { fired++ })
	if err := h.EnableProfile(id, 0, 0x03, 0); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if fired != 1 {
		t.Fatalf("expected 1 change fire, got %d", fired)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(sender.sent))
	}

	matching := h.GetMatchingProfiles(0x03, true)
	if len(matching) != 1 || matching[0].NumChannels != 1 {
		t.Fatalf("expected default channel count 1, got %+v", matching)
	}
}

func TestHostFacadeGroupForceZeroChannels(t *testing.T) {
	sender := &fakeSender{muid: 1}
	h := NewHostFacade(sender, 0)
	id := message.ProfileID{9, 9, 9, 9, 9}
	h.AddProfile(id, 0, 0x7E)
	h.EnableProfile(id, 0, 0x7E, 5)

	p := h.Snapshot()
	if len(p) != 1 || p[0].NumChannels != 0 {
		t.Fatalf("expected forced 0 channels at group address, got %+v", p)
	}
}

func TestClientFacadeTracksReports(t *testing.T) {
	sender := &fakeSender{muid: 1}
	c := NewClientFacade(sender, 2)
	id := message.ProfileID{1, 1, 1, 1, 1}

	c.HandleProfileReply(0, message.ProfileReply{Address: 0x03, Enabled: []message.ProfileID{id}})
	snap := c.Snapshot()
	if len(snap) != 1 || !snap[0].Enabled {
		t.Fatalf("expected enabled profile after reply, got %+v", snap)
	}

	c.HandleDisabledReport(0, message.ProfileDisabledReport{Address: 0x03, ProfileID: id})
	snap = c.Snapshot()
	if snap[0].Enabled {
		t.Fatalf("expected disabled after report, got %+v", snap)
	}

	if err := c.SetProfile(0, 0x03, id, true, 0); err != nil {
		t.Fatalf("set profile: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one sent message, got %d", len(sender.sent))
	}
}

func TestHostFacadeRemoveChangeListener(t *testing.T) {
	sender := &fakeSender{muid: 1}
	h := NewHostFacade(sender, 0)
	id := message.ProfileID{2, 2, 2, 2, 2}
	h.AddProfile(id, 0, 0x03)

	fired := 0
	tok := h.AddChangeListener(func() { fired++ })
	if err := h.EnableProfile(id, 0, 0x03, 0); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if fired != 1 {
		t.Fatalf("expected 1 fire before removal, got %d", fired)
	}

	h.RemoveChangeListener(tok)
	if err := h.DisableProfile(id, 0, 0x03, 0); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if fired != 1 {
		t.Fatalf("expected no further fires after removal, got %d", fired)
	}
}
