// Package codec implements the lossless wire transforms used by MIDI-CI:
// 7-bit multi-byte integer packing, Mcoded7 and zlib+Mcoded7 body
// encoding, ASCII escaping, and a minimal permissive JSON codec.
package codec

import "errors"

// ErrFraming is returned when a byte expected to carry only 7 data bits
// has bit 7 set.
var ErrFraming = errors.New("codec: bit 7 set in 7-bit field")

// checkClear verifies every byte in b has bit 7 clear.
func checkClear(b []byte) error {
	for _, v := range b {
		if v&0x80 != 0 {
			return ErrFraming
		}
	}
	return nil
}

// PutUint7x2 encodes a 14-bit value as two little-endian 7-bit bytes.
func PutUint7x2(v uint16) [2]byte {
	return [2]byte{byte(v & 0x7F), byte((v >> 7) & 0x7F)}
}

// Uint7x2 decodes two little-endian 7-bit bytes into a 14-bit value.
func Uint7x2(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, errors.New("codec: need 2 bytes")
	}
	if err := checkClear(b[:2]); err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<7, nil
}

// PutUint7x3 encodes a 21-bit value (e.g. manufacturer ID) as three
// little-endian 7-bit bytes.
func PutUint7x3(v uint32) [3]byte {
	return [3]byte{byte(v & 0x7F), byte((v >> 7) & 0x7F), byte((v >> 14) & 0x7F)}
}

// Uint7x3 decodes three little-endian 7-bit bytes into a 21-bit value.
func Uint7x3(b []byte) (uint32, error) {
	if len(b) < 3 {
		return 0, errors.New("codec: need 3 bytes")
	}
	if err := checkClear(b[:3]); err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<7 | uint32(b[2])<<14, nil
}

// PutUint7x4 encodes a 28-bit value (MUID or software revision) as four
// little-endian 7-bit bytes.
func PutUint7x4(v uint32) [4]byte {
	return [4]byte{
		byte(v & 0x7F),
		byte((v >> 7) & 0x7F),
		byte((v >> 14) & 0x7F),
		byte((v >> 21) & 0x7F),
	}
}

// Uint7x4 decodes four little-endian 7-bit bytes into a 28-bit value.
func Uint7x4(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, errors.New("codec: need 4 bytes")
	}
	if err := checkClear(b[:4]); err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<7 | uint32(b[2])<<14 | uint32(b[3])<<21, nil
}
