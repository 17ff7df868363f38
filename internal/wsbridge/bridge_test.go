package wsbridge

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type recvFrame struct {
	group byte
	data  []byte
}

func startTestServer(t *testing.T, recv chan recvFrame) (wsURL string, accepted chan *Bridge) {
	t.Helper()
	accepted = make(chan *Bridge, 1)

	feed := func(group byte, data []byte) error {
		recv <- recvFrame{group, append([]byte(nil), data...)}
		return nil
	}
	e := echo.New()
	NewHandler(feed, func(b *Bridge) { accepted <- b }).Register(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/bridge"
	return wsURL, accepted
}

func TestBridgeRoundTrip(t *testing.T) {
	serverRecv := make(chan recvFrame, 4)
	clientRecv := make(chan recvFrame, 4)

	wsURL, accepted := startTestServer(t, serverRecv)

	clientFeed := func(group byte, data []byte) error {
		clientRecv <- recvFrame{group, append([]byte(nil), data...)}
		return nil
	}
	client, err := Dial(context.Background(), wsURL, nil, clientFeed)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	go client.Serve()

	var server *Bridge
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted connection")
	}

	if !client.Send(3, []byte{0xF0, 0x7E, 0x7F, 0x0D, 0x01, 0xF7}) {
		t.Fatal("client send reported failure")
	}
	select {
	case f := <-serverRecv:
		if f.group != 3 || string(f.data) != "\xF0\x7E\x7F\x0D\x01\xF7" {
			t.Fatalf("unexpected frame on server side: %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received client frame")
	}

	if !server.Send(7, []byte{0xF0, 0x7E, 0x7F, 0x0D, 0x02, 0xF7}) {
		t.Fatal("server send reported failure")
	}
	select {
	case f := <-clientRecv:
		if f.group != 7 || string(f.data) != "\xF0\x7E\x7F\x0D\x02\xF7" {
			t.Fatalf("unexpected frame on client side: %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client never received server frame")
	}
}

func TestBridgeCloseUnblocksServe(t *testing.T) {
	serverRecv := make(chan recvFrame, 1)
	wsURL, accepted := startTestServer(t, serverRecv)

	client, err := Dial(context.Background(), wsURL, nil, func(byte, []byte) error { return nil })
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- client.Serve() }()

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted connection")
	}

	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
}
