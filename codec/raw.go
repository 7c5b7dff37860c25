package codec

import (
	"fmt"
	"unsafe"
)

// RawCodec copies the in-memory bytes of T.
type RawCodec[T any] struct {
	size int
}

// Raw returns a codec for pointer-free T, or panics if T holds pointers.
// Use NewRaw to get an error instead.
func Raw[T any]() Codec[T] {
	c, err := NewRaw[T]()
	if err != nil {
		panic(err)
	}
	return c
}

// NewRaw returns a RawCodec for T or ErrUnsupportedType.
func NewRaw[T any]() (Codec[T], error) {
	t := typeOf[T]()
	if !pointerFree(t) {
		return nil, fmt.Errorf("%w: %s contains pointers", ErrUnsupportedType, t)
	}
	var zero T
	return RawCodec[T]{size: int(unsafe.Sizeof(zero))}, nil
}

func (c RawCodec[T]) ElemSize() int     { return c.size }
func (c RawCodec[T]) PointerFree() bool { return true }
func (c RawCodec[T]) Name() string      { return "raw" }

func (c RawCodec[T]) Encode(dst []byte, src []T) error {
	if len(dst) != len(src)*c.size {
		return ErrShortBuffer
	}
	copy(dst, bytesOf(src))
	return nil
}

func (c RawCodec[T]) Decode(dst []T, src []byte) error {
	if len(src) != len(dst)*c.size {
		return ErrShortBuffer
	}
	copy(bytesOf(dst), src)
	return nil
}

func bytesOf[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero))) //nolint:gosec // T is pointer-free
}

// SliceOf reinterprets b as n values of pointer-free T. b must be suitably
// aligned (anonymous mappings are page-aligned) and at least n*sizeof(T) long.
func SliceOf[T any](b []byte, n int) []T {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n) //nolint:gosec // caller guarantees size and alignment
}
