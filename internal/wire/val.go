package wire

import "errors"

// Kind identifies which variant of Val is populated.
type Kind uint8

const (
	KindUint Kind = iota + 1
	KindInt
	KindVarchar
)

func (k Kind) String() string {
	switch k {
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindVarchar:
		return "varchar"
	default:
		return "invalid"
	}
}

// smallStrLen is the inline buffer size below which a Varchar avoids a heap
// allocation for its backing bytes.
const smallStrLen = 16

// Varchar is a length-prefixed byte string with a small-string optimization:
// strings of smallStrLen bytes or fewer live in an inline array, longer ones
// are heap-allocated. Owned reports whether the bytes are a private copy
// safe to retain past the call that produced the Varchar; a borrowed
// Varchar aliases a buffer (such as a connection's read buffer) that the
// caller must copy before retaining.
type Varchar struct {
	small  [smallStrLen]byte
	length int
	heap   []byte
	Owned  bool
}

// NewVarchar copies s into a new owned Varchar, using the inline buffer
// when s is short enough.
func NewVarchar(s []byte) *Varchar {
	v := &Varchar{Owned: true}
	v.set(s)
	return v
}

// BorrowVarchar wraps s without copying. The returned Varchar is valid only
// as long as the caller guarantees s is not mutated or reused.
func BorrowVarchar(s []byte) *Varchar {
	return &Varchar{heap: s, length: len(s), Owned: false}
}

func (v *Varchar) set(s []byte) {
	v.length = len(s)
	if len(s) <= smallStrLen {
		copy(v.small[:], s)
		v.heap = nil
		return
	}
	v.heap = append([]byte(nil), s...)
}

// Bytes returns the Varchar's contents. The returned slice must not be
// retained past the lifetime of a borrowed Varchar's backing buffer.
func (v *Varchar) Bytes() []byte {
	if v.heap != nil {
		return v.heap
	}
	return v.small[:v.length]
}

// Len returns the number of bytes in the Varchar.
func (v *Varchar) Len() int {
	return v.length
}

// String returns the Varchar's contents as a string, always copying.
func (v *Varchar) String() string {
	return string(v.Bytes())
}

// Clone returns an owned, independent copy of v.
func (v *Varchar) Clone() *Varchar {
	return NewVarchar(v.Bytes())
}

// Val is a tagged union over the three wire value types: a 32-bit unsigned
// integer, a 32-bit signed integer, or a length-prefixed byte string.
type Val struct {
	Kind    Kind
	Uint    uint32
	Int     int32
	Varchar *Varchar
}

// ErrInvalidValKind is returned when a Val carries an unrecognized Kind.
var ErrInvalidValKind = errors.New("wire: invalid val kind")

// NewUintVal constructs a Val holding an unsigned integer.
func NewUintVal(v uint32) Val {
	return Val{Kind: KindUint, Uint: v}
}

// NewIntVal constructs a Val holding a signed integer.
func NewIntVal(v int32) Val {
	return Val{Kind: KindInt, Int: v}
}

// NewVarcharVal constructs a Val holding an owned copy of s.
func NewVarcharVal(s []byte) Val {
	return Val{Kind: KindVarchar, Varchar: NewVarchar(s)}
}

// Equal reports whether a and b carry the same kind and value.
func (a Val) Equal(b Val) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindUint:
		return a.Uint == b.Uint
	case KindInt:
		return a.Int == b.Int
	case KindVarchar:
		if a.Varchar == nil || b.Varchar == nil {
			return a.Varchar == b.Varchar
		}
		return string(a.Varchar.Bytes()) == string(b.Varchar.Bytes())
	default:
		return false
	}
}

// encodedSize returns the wire size of val including its 1-byte type tag.
func encodedSize(val Val) (int, error) {
	switch val.Kind {
	case KindUint:
		return 1 + UvarintLen(val.Uint), nil
	case KindInt:
		return 1 + VarintLen(val.Int), nil
	case KindVarchar:
		n := val.Varchar.Len()
		return 1 + UvarintLen(uint32(n)) + n, nil
	default:
		return 0, ErrInvalidValKind
	}
}

func encodeVal(dst []byte, val Val) ([]byte, error) {
	switch val.Kind {
	case KindUint:
		dst = append(dst, byte(KindUint))
		dst = EncodeUvarint(dst, val.Uint)
	case KindInt:
		dst = append(dst, byte(KindInt))
		dst = EncodeVarint(dst, val.Int)
	case KindVarchar:
		dst = append(dst, byte(KindVarchar))
		b := val.Varchar.Bytes()
		dst = EncodeUvarint(dst, uint32(len(b)))
		dst = append(dst, b...)
	default:
		return nil, ErrInvalidValKind
	}
	return dst, nil
}

func decodeVal(data []byte) (Val, int, error) {
	if len(data) < 1 {
		return Val{}, 0, ErrPackageBroken
	}
	kind := Kind(data[0])
	rest := data[1:]
	switch kind {
	case KindUint:
		v, n, err := DecodeUvarint(rest)
		if err != nil {
			return Val{}, 0, ErrPackageBroken
		}
		return NewUintVal(v), 1 + n, nil
	case KindInt:
		v, n, err := DecodeVarint(rest)
		if err != nil {
			return Val{}, 0, ErrPackageBroken
		}
		return NewIntVal(v), 1 + n, nil
	case KindVarchar:
		l, n, err := DecodeUvarint(rest)
		if err != nil {
			return Val{}, 0, ErrPackageBroken
		}
		rest = rest[n:]
		if uint32(len(rest)) < l {
			return Val{}, 0, ErrPackageBroken
		}
		return Val{Kind: KindVarchar, Varchar: NewVarchar(rest[:l])}, 1 + n + int(l), nil
	default:
		return Val{}, 0, ErrPackageBroken
	}
}
