package codec

import (
	"encoding/binary"
	"fmt"
)

// BinaryCodec uses encoding/binary with little-endian byte order.
type BinaryCodec[T any] struct {
	size        int
	pointerFree bool
}

// Binary returns a codec for fixed-size T, or panics if T has no fixed size.
func Binary[T any]() Codec[T] {
	c, err := NewBinary[T]()
	if err != nil {
		panic(err)
	}
	return c
}

// NewBinary returns a BinaryCodec for T or ErrUnsupportedType.
func NewBinary[T any]() (Codec[T], error) {
	var zero T
	size := binary.Size(zero)
	if size <= 0 {
		return nil, fmt.Errorf("%w: %s has no fixed binary size", ErrUnsupportedType, typeOf[T]())
	}
	return BinaryCodec[T]{size: size, pointerFree: pointerFree(typeOf[T]())}, nil
}

func (c BinaryCodec[T]) ElemSize() int     { return c.size }
func (c BinaryCodec[T]) PointerFree() bool { return c.pointerFree }
func (c BinaryCodec[T]) Name() string      { return "binary" }

func (c BinaryCodec[T]) Encode(dst []byte, src []T) error {
	if len(dst) != len(src)*c.size {
		return ErrShortBuffer
	}
	_, err := binary.Encode(dst, binary.LittleEndian, src)
	return err
}

func (c BinaryCodec[T]) Decode(dst []T, src []byte) error {
	if len(src) != len(dst)*c.size {
		return ErrShortBuffer
	}
	_, err := binary.Decode(src, binary.LittleEndian, dst)
	return err
}
