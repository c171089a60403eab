package wire

import "testing"

func TestUvarintRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 255, 256, 16384, 1 << 20, 1<<32 - 1}
	for _, v := range values {
		enc := EncodeUvarint(nil, v)
		if len(enc) != UvarintLen(v) {
			t.Fatalf("UvarintLen(%d) = %d, encoded length %d", v, UvarintLen(v), len(enc))
		}
		if len(enc) < 1 || len(enc) > 5 {
			t.Fatalf("encoded length %d out of [1,5] for %d", len(enc), v)
		}
		got, n, err := DecodeUvarint(enc)
		if err != nil {
			t.Fatalf("DecodeUvarint(%v) error: %v", enc, err)
		}
		if got != v || n != len(enc) {
			t.Fatalf("round trip mismatch: want %d got %d (consumed %d, want %d)", v, got, n, len(enc))
		}
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 127, -128, 1 << 20, -(1 << 20), 1<<31 - 1, -(1 << 31)}
	for _, v := range values {
		enc := EncodeVarint(nil, v)
		got, n, err := DecodeVarint(enc)
		if err != nil {
			t.Fatalf("DecodeVarint(%v) error: %v", enc, err)
		}
		if got != v || n != len(enc) {
			t.Fatalf("round trip mismatch: want %d got %d", v, got)
		}
	}
}

func TestDecodeUvarintTruncated(t *testing.T) {
	// A byte with the continuation bit set but nothing following.
	_, _, err := DecodeUvarint([]byte{0x80})
	if err != ErrVarintTruncated {
		t.Fatalf("expected ErrVarintTruncated, got %v", err)
	}
	_, _, err = DecodeUvarint(nil)
	if err != ErrVarintTruncated {
		t.Fatalf("expected ErrVarintTruncated for empty input, got %v", err)
	}
}

func TestSizeRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 254, 255, 256, 1 << 16, 1 << 40}
	for _, v := range values {
		enc := EncodeSize(nil, v)
		if len(enc) != SizeLen(v) {
			t.Fatalf("SizeLen(%d) = %d, encoded length %d", v, SizeLen(v), len(enc))
		}
		got, n, err := DecodeSize(enc)
		if err != nil {
			t.Fatalf("DecodeSize(%v) error: %v", enc, err)
		}
		if got != v || n != len(enc) {
			t.Fatalf("round trip mismatch: want %d got %d", v, got)
		}
		if v < 0xFF && len(enc) != 1 {
			t.Fatalf("expected 1-byte encoding for %d, got %d bytes", v, len(enc))
		}
		if v >= 0xFF && len(enc) != 9 {
			t.Fatalf("expected 9-byte encoding for %d, got %d bytes", v, len(enc))
		}
	}
}

func TestDecodeSizeTruncated(t *testing.T) {
	_, _, err := DecodeSize(nil)
	if err != ErrVarintTruncated {
		t.Fatalf("expected ErrVarintTruncated, got %v", err)
	}
	// 0xFF tag with fewer than 8 trailing bytes.
	_, _, err = DecodeSize([]byte{0xFF, 1, 2, 3})
	if err != ErrVarintTruncated {
		t.Fatalf("expected ErrVarintTruncated for short extended size, got %v", err)
	}
}
