package chunkmgr

import (
	"bytes"
	"testing"
	"time"
)

func TestAccumulateAndFinish(t *testing.T) {
	clock := time.Unix(0, 0)
	m := New(30*time.Second, func() time.Time { return clock })
	key := Key{SourceMUID: 1, RequestID: 7}

	if m.HasPending(key) {
		t.Fatal("should not be pending before first chunk")
	}
	m.AddPendingChunk(key, []byte(`{"resource":"X"}`), []byte("abc"))
	if !m.HasPending(key) {
		t.Fatal("should be pending after first chunk")
	}
	m.AddPendingChunk(key, nil, []byte("def"))

	header, body := m.Finish(key, []byte("ghi"))
	if string(header) != `{"resource":"X"}` {
		t.Fatalf("header = %q", header)
	}
	if !bytes.Equal(body, []byte("abcdefghi")) {
		t.Fatalf("body = %q", body)
	}
	if m.HasPending(key) {
		t.Fatal("entry should be removed after Finish")
	}
}

func TestIdleEntriesDiscarded(t *testing.T) {
	clock := time.Unix(0, 0)
	m := New(10*time.Second, func() time.Time { return clock })
	key := Key{SourceMUID: 1, RequestID: 1}

	m.AddPendingChunk(key, []byte("h"), []byte("a"))
	clock = clock.Add(20 * time.Second)

	if m.HasPending(key) {
		t.Fatal("entry should have been garbage collected after idle window")
	}
}

func TestFinishWithoutPriorChunksReturnsFinalBodyOnly(t *testing.T) {
	m := New(0, nil)
	header, body := m.Finish(Key{SourceMUID: 9, RequestID: 1}, []byte("only"))
	if header != nil {
		t.Fatalf("expected nil header, got %q", header)
	}
	if string(body) != "only" {
		t.Fatalf("body = %q", body)
	}
}
