package marshal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrBufferTooSmall = errors.New("marshal: buffer too small")
	ErrLengthMismatch = errors.New("marshal: invalid length for type")
)

// GSDML data type names
const (
	OctetStringType   = "OctetString"
	VisibleStringType = "VisibleString"
)

type Unsigned interface {
	uint8 | uint16 | uint32 | uint64
}

type Signed interface {
	int8 | int16 | int32 | int64
}

type Float interface {
	float32 | float64
}

type Number interface {
	Unsigned | Signed | Float
}

type kind int

const (
	kindUnsigned kind = iota
	kindSigned
	kindFloat
)

func describe[T Number]() (size int, k kind, name string) {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return 1, kindUnsigned, "Unsigned8"
	case uint16:
		return 2, kindUnsigned, "Unsigned16"
	case uint32:
		return 4, kindUnsigned, "Unsigned32"
	case uint64:
		return 8, kindUnsigned, "Unsigned64"
	case int8:
		return 1, kindSigned, "Integer8"
	case int16:
		return 2, kindSigned, "Integer16"
	case int32:
		return 4, kindSigned, "Integer32"
	case int64:
		return 8, kindSigned, "Integer64"
	case float32:
		return 4, kindFloat, "Float32"
	default:
		return 8, kindFloat, "Float64"
	}
}

// SizeOf returns the natural width of T in bytes.
func SizeOf[T Number]() int {
	size, _, _ := describe[T]()
	return size
}

// TypeName returns the GSDML data type name of T.
func TypeName[T Number]() string {
	_, _, name := describe[T]()
	return name
}

// CheckLength reports whether length is a valid wire width for T.
// Unsigned types may be zero padded, everything else must match exactly.
func CheckLength[T Number](length int) error {
	size, k, name := describe[T]()
	if length <= 0 {
		return fmt.Errorf("%w: %s with length %d", ErrLengthMismatch, name, length)
	}
	if k == kindUnsigned {
		if length < size {
			return fmt.Errorf("%w: %s needs at least %d bytes, got %d", ErrLengthMismatch, name, size, length)
		}
		return nil
	}
	if length != size {
		return fmt.Errorf("%w: %s needs exactly %d bytes, got %d", ErrLengthMismatch, name, size, length)
	}
	return nil
}

// ToBigEndian writes v into the first length bytes of buf.
// Nothing is written when the buffer is too short.
func ToBigEndian[T Number](v T, buf []byte, length int) error {
	if err := CheckLength[T](length); err != nil {
		return err
	}
	if len(buf) < length {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, length, len(buf))
	}

	size := SizeOf[T]()
	pad := length - size
	clear(buf[:pad])
	putBits(buf[pad:length], toBits(v), size)
	return nil
}

// FromBigEndian reads a T from the first length bytes of buf.
// Leading padding bytes of unsigned values are not interpreted.
func FromBigEndian[T Number](buf []byte, length int) (T, error) {
	var zero T
	if err := CheckLength[T](length); err != nil {
		return zero, err
	}
	if len(buf) < length {
		return zero, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, length, len(buf))
	}

	size := SizeOf[T]()
	return fromBits[T](getBits(buf[length-size:length], size)), nil
}

// StringToBytes copies s into buf and zero fills up to length.
// Characters beyond length are cut off.
func StringToBytes(s string, buf []byte, length int) error {
	if length <= 0 {
		return fmt.Errorf("%w: string with length %d", ErrLengthMismatch, length)
	}
	if len(buf) < length {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, length, len(buf))
	}
	n := copy(buf[:length], s)
	clear(buf[n:length])
	return nil
}

// StringFromBytes reads up to length bytes, stopping at the first NUL.
func StringFromBytes(buf []byte, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("%w: string with length %d", ErrLengthMismatch, length)
	}
	if len(buf) < length {
		return "", fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, length, len(buf))
	}
	raw := buf[:length]
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i]), nil
		}
	}
	return string(raw), nil
}

func putBits(dst []byte, u uint64, size int) {
	switch size {
	case 1:
		dst[0] = byte(u)
	case 2:
		binary.BigEndian.PutUint16(dst, uint16(u))
	case 4:
		binary.BigEndian.PutUint32(dst, uint32(u))
	default:
		binary.BigEndian.PutUint64(dst, u)
	}
}

func getBits(src []byte, size int) uint64 {
	switch size {
	case 1:
		return uint64(src[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(src))
	case 4:
		return uint64(binary.BigEndian.Uint32(src))
	default:
		return binary.BigEndian.Uint64(src)
	}
}

func toBits[T Number](v T) uint64 {
	switch x := any(v).(type) {
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	case int8:
		return uint64(uint8(x))
	case int16:
		return uint64(uint16(x))
	case int32:
		return uint64(uint32(x))
	case int64:
		return uint64(x)
	case float32:
		return uint64(math.Float32bits(x))
	case float64:
		return math.Float64bits(x)
	}
	return 0
}

func fromBits[T Number](u uint64) T {
	var zero T
	var out any
	switch any(zero).(type) {
	case uint8:
		out = uint8(u)
	case uint16:
		out = uint16(u)
	case uint32:
		out = uint32(u)
	case uint64:
		out = u
	case int8:
		out = int8(uint8(u))
	case int16:
		out = int16(uint16(u))
	case int32:
		out = int32(uint32(u))
	case int64:
		out = int64(u)
	case float32:
		out = math.Float32frombits(uint32(u))
	case float64:
		out = math.Float64frombits(u)
	}
	return out.(T)
}
