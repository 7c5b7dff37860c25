// Package codec converts slab contents to and from the bytes written to the
// scratch file.
//
// Every codec is fixed-size: a slab of n elements always encodes to exactly
// n*ElemSize() bytes, which is what lets the spill backend address slabs by a
// plain byte offset.
//
// Two codecs are built in:
//
//   - [Raw]: reinterprets the in-memory representation. Zero-copy, native
//     endianness, pointer-free types only.
//   - [Binary]: encoding/binary little-endian. Portable layout, works for any
//     fixed-size type (numbers, bools, arrays and structs of those).
//
// Scratch files never outlive the process, so Raw is the default choice.
package codec

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrUnsupportedType is returned when a codec cannot represent T.
var ErrUnsupportedType = errors.New("codec: unsupported element type")

// ErrShortBuffer is returned when dst or src does not match the element count.
var ErrShortBuffer = errors.New("codec: buffer size mismatch")

// Codec encodes slabs of T.
// Implementations must be safe for concurrent use.
type Codec[T any] interface {
	// ElemSize is the encoded size of one element in bytes.
	ElemSize() int
	// Encode writes len(src)*ElemSize() bytes into dst.
	Encode(dst []byte, src []T) error
	// Decode fills dst from len(dst)*ElemSize() bytes of src.
	Decode(dst []T, src []byte) error
	// PointerFree reports whether T contains no Go pointers, which makes it
	// legal to keep in off-heap memory.
	PointerFree() bool
	Name() string
}

// Validate reports whether c can encode T.
func Validate[T any](c Codec[T]) error {
	if c == nil {
		return fmt.Errorf("%w: nil codec", ErrUnsupportedType)
	}
	if c.ElemSize() <= 0 {
		return fmt.Errorf("%w: %s reports element size %d", ErrUnsupportedType, c.Name(), c.ElemSize())
	}
	return nil
}

// pointerFree reports whether values of t contain no pointers.
func pointerFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return pointerFree(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if !pointerFree(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
