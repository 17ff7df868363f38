package property

import (
	"fmt"
	"testing"

	"midici/internal/ciconst"
	"midici/internal/message"
)

// wiredSender routes frames sent by one side directly to a handler
// simulating the messenger's dispatch, standing in for the
// internal/messenger package so these tests exercise the facades alone.
type wiredSender struct {
	muid      uint32
	nextID    byte
	deliver   func(chunk message.PropertyChunk)
	remoteMax map[uint32]uint32
}

func (w *wiredSender) MUID() uint32        { return w.muid }
func (w *wiredSender) NextRequestID() byte { id := w.nextID; w.nextID++; return id }
func (w *wiredSender) RemoteMaxSysExSize(muid uint32) (uint32, bool) {
	v, ok := w.remoteMax[muid]
	return v, ok
}
func (w *wiredSender) Send(group byte, data []byte, label fmt.Stringer) error {
	h, payload, err := message.ParseFrame(data)
	if err != nil {
		return err
	}
	chunk, err := message.ParsePropertyChunk(h, payload)
	if err != nil {
		return err
	}
	w.deliver(chunk)
	return nil
}

func TestClientGetPropertyDataRoundTrip(t *testing.T) {
	hostSender := &wiredSender{muid: 1}
	clientSender := &wiredSender{muid: 2}

	host := newTestHost(hostSender)
	host.AddMetadata(Metadata{PropertyID: "Foo", CanGet: true})
	host.SetPropertyValue("Foo", "", []byte(`{"v":7}`), false)

	client := NewClientFacade(clientSender, 1, 512)

	hostSender.deliver = func(chunk message.PropertyChunk) {
		// host -> client replies are routed straight to the client facade.
		client.HandleGetReply(chunk.RequestID, chunk.Header, chunk.Body)
	}
	clientSender.deliver = func(chunk message.PropertyChunk) {
		req, err := DecodeRequestHeader(chunk.Header)
		if err != nil {
			t.Fatalf("decode request header: %v", err)
		}
		status, msg, body, total := host.HandleGet(req)
		reply := EncodeReplyHeader(ReplyHeader{Status: status, Message: msg, TotalCount: total})
		frames := message.SerializeProperty(ciconst.SubIDPropertyGetDataReply, ciconst.FunctionBlockAddress, 0x02,
			hostSender.MUID(), clientSender.MUID(), chunk.RequestID, reply, body, 512)
		for _, f := range frames {
			h, payload, _ := message.ParseFrame(f)
			c, _ := message.ParsePropertyChunk(h, payload)
			hostSender.deliver(c)
		}
	}

	var gotStatus int
	var gotBody []byte
	client.GetPropertyData("Foo", "", EncodingASCII, nil, nil, func(status int, msg string, body []byte, total *int) {
		gotStatus, gotBody = status, body
	})

	if gotStatus != ciconst.StatusOK {
		t.Fatalf("expected OK, got %d", gotStatus)
	}
	if string(gotBody) != `{"v":7}` {
		t.Fatalf("unexpected body: %s", gotBody)
	}
}

// TestClientSendChunksCapsToRemoteMaxSysExSize asserts a Get/Set/Subscribe
// Inquiry is chunked to the destination's learned RemoteMaxSysExSize when
// that is smaller than the facade's configured maxChunkBody, not just the
// locally configured value (spec.md §4.4's per-destination chunk cap).
func TestClientSendChunksCapsToRemoteMaxSysExSize(t *testing.T) {
	sender := &wiredSender{muid: 2, remoteMax: map[uint32]uint32{1: 4}}
	var frameCount int
	sender.deliver = func(chunk message.PropertyChunk) { frameCount++ }

	client := NewClientFacade(sender, 1, 512)
	if err := client.SetPropertyData("Foo", "", EncodingASCII, []byte("0123456789"), false, func(status int, msg string) {}); err != nil {
		t.Fatalf("set property data: %v", err)
	}

	if frameCount < 3 {
		t.Fatalf("expected the 10-byte body to split into multiple <=4-byte chunks, got %d frame(s)", frameCount)
	}
}

func TestClientSubscribeAndNotify(t *testing.T) {
	hostSender := &wiredSender{muid: 1}
	clientSender := &wiredSender{muid: 2}

	host := newTestHost(hostSender)
	host.AddMetadata(Metadata{PropertyID: "Foo", CanSubscribe: true})

	client := NewClientFacade(clientSender, 1, 512)

	hostSender.deliver = func(chunk message.PropertyChunk) {
		switch chunk.SubID2 {
		case ciconst.SubIDPropertySubscribeReply:
			client.HandleSubscribeReply(chunk.RequestID, chunk.Header)
		case ciconst.SubIDPropertyNotify:
			if err := client.HandleNotify(chunk.Header, chunk.Body); err != nil {
				t.Fatalf("handle notify: %v", err)
			}
		}
	}
	clientSender.deliver = func(chunk message.PropertyChunk) {
		req, err := DecodeRequestHeader(chunk.Header)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		status, subID := host.HandleSubscribeStart(clientSender.MUID(), req)
		reply := EncodeReplyHeader(ReplyHeader{Status: status, SubscribeID: subID})
		frames := message.SerializeProperty(ciconst.SubIDPropertySubscribeReply, ciconst.FunctionBlockAddress, 0x02,
			hostSender.MUID(), clientSender.MUID(), chunk.RequestID, reply, nil, 512)
		for _, f := range frames {
			h, payload, _ := message.ParseFrame(f)
			c, _ := message.ParsePropertyChunk(h, payload)
			hostSender.deliver(c)
		}
	}

	var subscribed *ClientSubscription
	if err := client.SubscribeProperty("Foo", "", EncodingASCII, func(sub *ClientSubscription, status int, msg string) {
		subscribed = sub
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if subscribed == nil || subscribed.State != StateSubscribed {
		t.Fatalf("expected subscribed state, got %+v", subscribed)
	}

	var notified []byte
	tok := client.AddNotifyListener(func(sub ClientSubscription, body []byte) {
		notified = body
	})

	if err := host.SetPropertyValue("Foo", "", []byte(`{"v":9}`), false); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if string(notified) != `{"v":9}` {
		t.Fatalf("expected notify body, got %s", notified)
	}

	client.RemoveNotifyListener(tok)
	notified = nil
	if err := host.SetPropertyValue("Foo", "", []byte(`{"v":10}`), false); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if notified != nil {
		t.Fatalf("expected no notify after removal, got %s", notified)
	}
}
