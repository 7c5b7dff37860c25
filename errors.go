package slabtape

import (
	"errors"
	"fmt"

	"github.com/hupe1980/slabtape/codec"
	"github.com/hupe1980/slabtape/resource"
)

var (
	// ErrClosed is returned by every operation on a closed tape.
	ErrClosed = errors.New("slabtape: tape is closed")

	// ErrStorage is matched by every *StorageError.
	ErrStorage = errors.New("slabtape: storage error")

	// ErrMemoryLimitExceeded is returned when a shared resource.Controller
	// refuses memory for a new or reloaded slab and no slab of this tape
	// could be evicted to make room.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded

	// ErrUnsupportedElement is returned by New when the element type cannot
	// be used with the requested backend (e.g. off-heap slabs of a type that
	// holds pointers).
	ErrUnsupportedElement = codec.ErrUnsupportedType
)

// StorageError reports a failed scratch-file operation.
//
// The tape stays consistent after a StorageError: a slab whose write failed is
// still resident, a slab whose read failed is still on disk, and the logical
// size is unchanged.
//
// The original underlying error can be accessed via errors.Unwrap.
type StorageError struct {
	Op     string // "open", "write", "read", "close"
	Path   string
	Slab   int   // slab handle, -1 if not slab specific
	Offset int64 // byte offset in the scratch file, -1 if unknown
	Err    error
}

func (e *StorageError) Error() string {
	if e.Slab < 0 {
		return fmt.Sprintf("slabtape: %s scratch file %q: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("slabtape: %s slab %d at offset %d of %q: %v", e.Op, e.Slab, e.Offset, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) true for every StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// ConfigError indicates an invalid option passed to New.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
	cause  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("slabtape: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.cause }
