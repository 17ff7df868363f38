package codec

import (
	"bytes"
	"testing"
)

func TestMcoded7RoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{0x00},
		{0x80, 0x81, 0x82, 0xFF},
		bytes.Repeat([]byte{0xAA, 0x55, 0x01}, 10),
	}
	for _, src := range cases {
		enc := EncodeMcoded7(src)
		for _, b := range enc {
			if b&0x80 != 0 {
				t.Fatalf("encoded byte has bit 7 set: %x", enc)
			}
		}
		dec, err := DecodeMcoded7(enc)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(dec, src) {
			t.Fatalf("round trip mismatch: got %x want %x", dec, src)
		}
	}
}

func TestZlibMcoded7RoundTrip(t *testing.T) {
	src := []byte(`{"resource":"DeviceInfo","body":[1,2,3,4,5,6,7,8,9,10]}`)
	enc, err := EncodeZlibMcoded7(src)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, b := range enc {
		if b&0x80 != 0 {
			t.Fatalf("encoded byte has bit 7 set")
		}
	}
	dec, err := DecodeZlibMcoded7(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(dec, src) {
		t.Fatalf("round trip mismatch: got %q want %q", dec, src)
	}
}
