package codec

import (
	"bytes"

	"github.com/klauspost/compress/flate"
)

// EncodeMcoded7 packs each group of seven payload bytes into eight wire
// bytes: one byte carrying their high bits, then the seven bytes with the
// high bit cleared. The final group may be short.
func EncodeMcoded7(src []byte) []byte {
	out := make([]byte, 0, len(src)+len(src)/7+1)
	for i := 0; i < len(src); i += 7 {
		end := i + 7
		if end > len(src) {
			end = len(src)
		}
		group := src[i:end]

		var high byte
		packed := make([]byte, len(group))
		for j, b := range group {
			if b&0x80 != 0 {
				high |= 1 << uint(j)
			}
			packed[j] = b & 0x7F
		}
		out = append(out, high)
		out = append(out, packed...)
	}
	return out
}

// DecodeMcoded7 is the exact inverse of EncodeMcoded7.
func DecodeMcoded7(src []byte) ([]byte, error) {
	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); {
		high := src[i]
		i++
		end := i + 7
		if end > len(src) {
			end = len(src)
		}
		group := src[i:end]
		if err := checkClear(group); err != nil {
			return nil, err
		}
		for j, b := range group {
			if high&(1<<uint(j)) != 0 {
				b |= 0x80
			}
			out = append(out, b)
		}
		i = end
	}
	return out, nil
}

// EncodeZlibMcoded7 applies DEFLATE then Mcoded7 packing.
func EncodeZlibMcoded7(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return EncodeMcoded7(buf.Bytes()), nil
}

// DecodeZlibMcoded7 is the exact inverse of EncodeZlibMcoded7.
func DecodeZlibMcoded7(src []byte) ([]byte, error) {
	deflated, err := DecodeMcoded7(src)
	if err != nil {
		return nil, err
	}
	r := flate.NewReader(bytes.NewReader(deflated))
	defer r.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
