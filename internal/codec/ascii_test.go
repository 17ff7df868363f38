package codec

import "testing"

func TestASCIIEscapeRoundTrip(t *testing.T) {
	cases := []string{
		"plain ascii",
		"café",
		`back\slash`,
		"",
	}
	for _, s := range cases {
		got := UnescapeASCII(EscapeASCII(s))
		if got != s {
			t.Fatalf("round trip mismatch: got %q want %q", got, s)
		}
	}
}

func TestEscapeASCIILeavesPlainUnchanged(t *testing.T) {
	s := "hello world 123"
	if EscapeASCII(s) != s {
		t.Fatalf("expected no-op for plain ASCII, got %q", EscapeASCII(s))
	}
}

// TestEscapeASCIIIsPerByte asserts a multi-byte UTF-8 rune is escaped one
// byte at a time, not as a single \uXXXX for the whole rune: 'é' is the
// two bytes 0xC3 0xA9 and must become two \uXXXX escapes (00c3, then
// 00a9), not the single rune-value escape with 00e9.
func TestEscapeASCIIIsPerByte(t *testing.T) {
	const input = "é"
	want := "\\u00c3\\u00a9"
	got := EscapeASCII(input)
	if got != want {
		t.Fatalf("EscapeASCII(%q) = %q, want %q", input, got, want)
	}
	if back := UnescapeASCII(got); back != input {
		t.Fatalf("UnescapeASCII(%q) = %q, want %q", got, back, input)
	}
}
