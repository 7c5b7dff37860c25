package slabtape

import (
	"reflect"
	"sync"
)

// Recorder is the LIFO surface a reverse pass needs from a tape.
// *Tape[T] implements it; RegisterRecorder substitutes another
// implementation for a given element type.
type Recorder[T any] interface {
	Push(v T) error
	Pop() (T, error)
	Back() (T, error)
	Len() int
	Close() error
}

var _ Recorder[float64] = (*Tape[float64])(nil)

// RecorderFactory builds a Recorder from tape options.
type RecorderFactory[T any] func(opts ...Option) (Recorder[T], error)

var recorders sync.Map // reflect.Type -> RecorderFactory[T]

func recorderKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// RegisterRecorder makes NewRecorder[T] use f. A later registration for the
// same T replaces the earlier one.
func RegisterRecorder[T any](f RecorderFactory[T]) {
	if f == nil {
		panic("slabtape: RegisterRecorder with nil factory")
	}
	recorders.Store(recorderKey[T](), f)
}

// UnregisterRecorder restores the default *Tape[T] for NewRecorder[T].
func UnregisterRecorder[T any]() {
	recorders.Delete(recorderKey[T]())
}

// NewRecorder returns the recorder registered for T, or a *Tape[T] built with
// opts when none is registered.
func NewRecorder[T any](opts ...Option) (Recorder[T], error) {
	if f, ok := recorders.Load(recorderKey[T]()); ok {
		return f.(RecorderFactory[T])(opts...)
	}
	t, err := New[T](opts...)
	if err != nil {
		return nil, err
	}
	return t, nil
}
