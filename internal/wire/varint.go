// Package wire implements the frame and value codec used on the RPC
// transport: unsigned/signed/size-prefixed varints (C1) and the request and
// response frame layouts built on top of them (C2).
package wire

import "errors"

// ErrVarintTruncated is returned when a buffer ends before a varint's
// continuation sequence terminates.
var ErrVarintTruncated = errors.New("wire: truncated varint")

// ErrVarintOverflow is returned when a varint would require more than the
// 5 bytes needed to hold a 32-bit value.
var ErrVarintOverflow = errors.New("wire: varint overflow")

// sizeExtWidth is the byte width of the extended size-prefix encoding. The
// original format uses the platform's native size_t width; this module
// fixes it at 8 bytes since it targets 64-bit platforms exclusively.
const sizeExtWidth = 8

// EncodeUvarint appends the base-128 encoding of v to dst and returns the
// extended slice. 1 to 5 bytes are produced for a 32-bit value.
func EncodeUvarint(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// UvarintLen returns the number of bytes EncodeUvarint would produce for v.
func UvarintLen(v uint32) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// DecodeUvarint reads a base-128 unsigned varint from the front of data. It
// returns the decoded value and the number of bytes consumed.
func DecodeUvarint(data []byte) (uint32, int, error) {
	var v uint32
	var shift uint
	for i := 0; i < len(data); i++ {
		b := data[i]
		if shift >= 35 {
			return 0, 0, ErrVarintOverflow
		}
		v |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrVarintTruncated
}

// EncodeVarint appends the zigzag-encoded varint of a signed 32-bit value.
func EncodeVarint(dst []byte, v int32) []byte {
	return EncodeUvarint(dst, zigzagEncode(v))
}

// VarintLen returns the number of bytes EncodeVarint would produce for v.
func VarintLen(v int32) int {
	return UvarintLen(zigzagEncode(v))
}

// DecodeVarint reads a zigzag-encoded signed varint from the front of data.
func DecodeVarint(data []byte) (int32, int, error) {
	u, n, err := DecodeUvarint(data)
	if err != nil {
		return 0, 0, err
	}
	return zigzagDecode(u), n, nil
}

func zigzagEncode(v int32) uint32 {
	return (uint32(v) << 1) ^ uint32(v>>31)
}

func zigzagDecode(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}

// EncodeSize appends the size-with-prefix encoding of v: a single byte for
// values below 255, or 0xFF followed by an 8-byte little-endian value.
func EncodeSize(dst []byte, v uint64) []byte {
	if v < 0xFF {
		return append(dst, byte(v))
	}
	dst = append(dst, 0xFF)
	for i := 0; i < sizeExtWidth; i++ {
		dst = append(dst, byte(v>>(8*uint(i))))
	}
	return dst
}

// SizeLen returns the number of bytes EncodeSize would produce for v.
func SizeLen(v uint64) int {
	if v < 0xFF {
		return 1
	}
	return 1 + sizeExtWidth
}

// DecodeSize reads a size-with-prefix value from the front of data.
func DecodeSize(data []byte) (uint64, int, error) {
	if len(data) < 1 {
		return 0, 0, ErrVarintTruncated
	}
	if data[0] != 0xFF {
		return uint64(data[0]), 1, nil
	}
	if len(data) < 1+sizeExtWidth {
		return 0, 0, ErrVarintTruncated
	}
	var v uint64
	for i := 0; i < sizeExtWidth; i++ {
		v |= uint64(data[1+i]) << (8 * uint(i))
	}
	return v, 1 + sizeExtWidth, nil
}
