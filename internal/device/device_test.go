package device

import (
	"testing"
)

func TestNextRequestIDWrapsAt128(t *testing.T) {
	d := New(1, DefaultConfig(), func(byte, []byte) bool { return true }, nil, nil)
	d.reqID.Store(127)
	if got := d.NextRequestID(); got != 0 {
		t.Fatalf("expected wrap to 0, got %d", got)
	}
	if got := d.NextRequestID(); got != 1 {
		t.Fatalf("expected 1 after wrap, got %d", got)
	}
}

func TestRegisterConnectionReplacesExisting(t *testing.T) {
	d := New(1, DefaultConfig(), func(byte, []byte) bool { return true }, nil, nil)
	fired := 0
	d.AddConnectionsChangedListener(func() { fired++ })

	c1 := d.RegisterConnection(99)
	c2 := d.RegisterConnection(99)
	if c1 == c2 {
		t.Fatal("expected a fresh Connection on replace")
	}
	if fired != 2 {
		t.Fatalf("expected listener fired twice, got %d", fired)
	}
	if got, ok := d.Connection(99); !ok || got != c2 {
		t.Fatalf("expected current connection to be c2")
	}
}

func TestRemoveConnectionFiresListenerOnlyWhenPresent(t *testing.T) {
	d := New(1, DefaultConfig(), func(byte, []byte) bool { return true }, nil, nil)
	fired := 0
	d.AddConnectionsChangedListener(func() { fired++ })

	d.RemoveConnection(42) // no such connection
	if fired != 0 {
		t.Fatalf("expected no fire for absent connection, got %d", fired)
	}

	d.RegisterConnection(42)
	fired = 0
	d.RemoveConnection(42)
	if fired != 1 {
		t.Fatalf("expected exactly one fire, got %d", fired)
	}
	if _, ok := d.Connection(42); ok {
		t.Fatal("connection should be gone")
	}
}

func TestSendFailurePropagates(t *testing.T) {
	d := New(1, DefaultConfig(), func(byte, []byte) bool { return false }, nil, nil)
	if err := d.Send(0, []byte{0x01}, nil); err != ErrSendFailed {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
}

func TestRemoveConnectionsChangedListener(t *testing.T) {
	d := New(1, DefaultConfig(), func(byte, []byte) bool { return true }, nil, nil)
	fired := 0
	tok := d.AddConnectionsChangedListener(func() { fired++ })
	d.RemoveConnectionsChangedListener(tok)
	d.RegisterConnection(1)
	if fired != 0 {
		t.Fatalf("expected listener removed, got %d fires", fired)
	}
}
