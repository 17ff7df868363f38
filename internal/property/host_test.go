package property

import (
	"fmt"
	"testing"

	"midici/internal/ciconst"
	"midici/internal/codec"
)

type fakeHostSender struct {
	muid  uint32
	nextID byte
	sent  [][]byte
}

func (f *fakeHostSender) MUID() uint32 { return f.muid }
func (f *fakeHostSender) NextRequestID() byte {
	id := f.nextID
	f.nextID++
	return id
}
func (f *fakeHostSender) Send(group byte, data []byte, label fmt.Stringer) error {
	f.sent = append(f.sent, data)
	return nil
}
func (f *fakeHostSender) RemoteMaxSysExSize(muid uint32) (uint32, bool) { return 0, false }

func newTestHost(sender Sender) *HostFacade {
	deviceInfo := func() codec.Value {
		v := codec.Object()
		v.Set("manufacturer", codec.String("Acme"))
		return v
	}
	channelList := func() codec.Value { return codec.Array() }
	schema := func() string { return `{"type":"object"}` }
	return NewHostFacade(sender, 0, deviceInfo, channelList, schema, 512)
}

func TestHostFacadeBuiltinGet(t *testing.T) {
	h := newTestHost(&fakeHostSender{muid: 1})
	status, _, body, _ := h.HandleGet(RequestHeader{Resource: ciconst.PropertyDeviceInfo})
	if status != ciconst.StatusOK {
		t.Fatalf("expected OK, got %d", status)
	}
	v, err := codec.Parse(string(body))
	if err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if m, ok := v.Get("manufacturer"); !ok || m.Str != "Acme" {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestHostFacadeBuiltinSetRejected(t *testing.T) {
	h := newTestHost(&fakeHostSender{muid: 1})
	status, msg := h.HandleSet(RequestHeader{Resource: ciconst.PropertyDeviceInfo}, []byte("{}"))
	if status != ciconst.StatusInternalError || msg != ciconst.ReadOnlyMessage {
		t.Fatalf("expected readonly rejection, got %d %q", status, msg)
	}
}

func TestHostFacadeUserPropertyLifecycle(t *testing.T) {
	h := newTestHost(&fakeHostSender{muid: 1})
	if err := h.AddMetadata(Metadata{PropertyID: "Foo", CanGet: true, CanSet: CanSetFull}); err != nil {
		t.Fatalf("add metadata: %v", err)
	}
	if err := h.AddMetadata(Metadata{PropertyID: "Foo"}); err != ErrDuplicateProperty {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := h.AddMetadata(Metadata{PropertyID: ciconst.PropertyDeviceInfo}); err != ErrReservedPropertyID {
		t.Fatalf("expected reserved id error, got %v", err)
	}

	status, msg := h.HandleSet(RequestHeader{Resource: "Foo"}, []byte(`{"v":1}`))
	if status != ciconst.StatusOK || msg != "" {
		t.Fatalf("unexpected set result: %d %q", status, msg)
	}

	status, _, body, _ := h.HandleGet(RequestHeader{Resource: "Foo"})
	if status != ciconst.StatusOK || string(body) != `{"v":1}` {
		t.Fatalf("unexpected get result: %d %s", status, body)
	}

	if err := h.RemoveProperty("Foo"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	status, _, _, _ = h.HandleGet(RequestHeader{Resource: "Foo"})
	if status != ciconst.StatusResourceUnavailableOrError {
		t.Fatalf("expected unavailable after removal, got %d", status)
	}
}

func TestHostFacadeSubscriptionFanOut(t *testing.T) {
	sender := &fakeHostSender{muid: 1}
	h := newTestHost(sender)
	h.AddMetadata(Metadata{PropertyID: "Foo", CanGet: true, CanSet: CanSetFull, CanSubscribe: true})

	status, subID := h.HandleSubscribeStart(2, RequestHeader{Resource: "Foo", MutualEncoding: EncodingASCII})
	if status != ciconst.StatusOK || subID == "" {
		t.Fatalf("unexpected subscribe start result: %d %q", status, subID)
	}

	if err := h.SetPropertyValue("Foo", "", []byte(`{"v":2}`), false); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one notify frame, got %d", len(sender.sent))
	}

	status = h.HandleSubscribeEnd(2, RequestHeader{SubscribeID: subID})
	if status != ciconst.StatusOK {
		t.Fatalf("expected OK end, got %d", status)
	}
	// A second end for the same (now-absent) subscription is a no-op success.
	status = h.HandleSubscribeEnd(2, RequestHeader{SubscribeID: subID})
	if status != ciconst.StatusOK {
		t.Fatalf("expected no-op OK on stale end, got %d", status)
	}

	sender.sent = nil
	h.SetPropertyValue("Foo", "", []byte(`{"v":3}`), false)
	if len(sender.sent) != 0 {
		t.Fatalf("expected no further notify after unsubscribe, got %d", len(sender.sent))
	}
}

func TestHostFacadeRemoveCatalogUpdatedListener(t *testing.T) {
	h := newTestHost(&fakeHostSender{muid: 1})

	fired := 0
	tok := h.AddCatalogUpdatedListener(func() { fired++ })
	if err := h.AddMetadata(Metadata{PropertyID: "Foo"}); err != nil {
		t.Fatalf("add metadata: %v", err)
	}
	if fired != 1 {
		t.Fatalf("expected 1 fire before removal, got %d", fired)
	}

	h.RemoveCatalogUpdatedListener(tok)
	if err := h.AddMetadata(Metadata{PropertyID: "Bar"}); err != nil {
		t.Fatalf("add metadata: %v", err)
	}
	if fired != 1 {
		t.Fatalf("expected no further fires after removal, got %d", fired)
	}
}

func TestHostFacadeResourceList(t *testing.T) {
	h := newTestHost(&fakeHostSender{muid: 1})
	h.AddMetadata(Metadata{PropertyID: "Foo"})
	status, _, body, _ := h.HandleGet(RequestHeader{Resource: ciconst.PropertyResourceList})
	if status != ciconst.StatusOK {
		t.Fatalf("expected OK, got %d", status)
	}
	v, err := codec.Parse(string(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	found := false
	for _, e := range v.Arr {
		if r, ok := e.Get("resource"); ok && r.Str == "Foo" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Foo listed in resource list, got %s", body)
	}
}
