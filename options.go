package slabtape

import (
	"github.com/hupe1980/slabtape/codec"
	"github.com/hupe1980/slabtape/internal/compress"
	"github.com/hupe1980/slabtape/internal/fs"
	"github.com/hupe1980/slabtape/resource"
)

// Defaults applied by New.
const (
	DefaultInlineSize       = 64
	DefaultSlabSize         = 1024
	DefaultMaxResidentSlabs = 1024
)

// Compression selects how evicted slabs are stored in the scratch file.
type Compression = compress.Type

const (
	// CompressionNone stores exactly SlabSize*ElemSize raw bytes per slab.
	CompressionNone = compress.None
	// CompressionLZ4 uses LZ4 block compression.
	CompressionLZ4 = compress.LZ4
	// CompressionZSTD uses zstd at its fastest level.
	CompressionZSTD = compress.ZSTD
)

type options struct {
	inlineSize       int
	slabSize         int
	evict            bool
	codec            any // codec.Codec[T], checked against T in New
	maxResidentSlabs int
	scratchDir       string
	compression      compress.Type
	offHeap          bool
	controller       *resource.Controller
	logger           *Logger
	metricsCollector MetricsCollector
	fs               fs.FileSystem
}

// Option configures a tape. Options are applied once by New and the
// configuration is immutable afterwards.
type Option func(*options)

func defaultOptions() options {
	return options{
		inlineSize:       DefaultInlineSize,
		slabSize:         DefaultSlabSize,
		maxResidentSlabs: DefaultMaxResidentSlabs,
		compression:      compress.None,
		fs:               fs.Default,
	}
}

// WithInlineSize sets the number of elements stored in the inline segment
// before the first slab is allocated. Zero disables the inline segment.
func WithInlineSize(n int) Option {
	return func(o *options) {
		o.inlineSize = n
	}
}

// WithSlabSize sets the number of elements per slab. Must be positive.
func WithSlabSize(n int) Option {
	return func(o *options) {
		o.slabSize = n
	}
}

// WithEviction enables spilling cold slabs to a scratch file once more than
// MaxResidentSlabs slabs are resident. c converts slab contents to bytes and
// must be a codec for the tape's element type:
//
//	tp, err := slabtape.New[float64](
//	    slabtape.WithEviction(codec.Raw[float64]()),
//	    slabtape.WithMaxResidentSlabs(16),
//	)
func WithEviction[T any](c codec.Codec[T]) Option {
	return func(o *options) {
		o.evict = true
		o.codec = c
	}
}

// WithMaxResidentSlabs sets the resident slab budget used by eviction.
// Ignored unless WithEviction is set.
func WithMaxResidentSlabs(n int) Option {
	return func(o *options) {
		o.maxResidentSlabs = n
	}
}

// WithScratchDir places the scratch file in dir instead of os.TempDir().
// Point it at a RAM disk or a fast local volume. The directory is created if
// missing.
func WithScratchDir(dir string) Option {
	return func(o *options) {
		o.scratchDir = dir
	}
}

// WithCompression compresses evicted slabs before they are written.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithOffHeapSlabs allocates slab buffers with anonymous memory mappings
// instead of the Go heap. Evicting or freeing a slab returns its memory to
// the OS immediately. A tape dropped without Close keeps its mappings.
//
// Only pointer-free element types may live off-heap; New fails with
// ErrUnsupportedElement otherwise.
func WithOffHeapSlabs() Option {
	return func(o *options) {
		o.offHeap = true
	}
}

// WithResourceController charges every resident slab against c's memory
// budget and throttles scratch file IO with c's rate limit. One controller
// may be shared by many tapes.
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics collector.
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

func withFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}
