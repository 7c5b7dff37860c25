package slabtape

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/slabtape/codec"
	"github.com/hupe1980/slabtape/testutil"
)

const (
	testInline = 4
	testSlab   = 3
)

func newTestTape[T any](t *testing.T, opts ...Option) *Tape[T] {
	t.Helper()
	tp, err := New[T](opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Close() })
	return tp
}

func newEvictingTape[T any](t *testing.T, c codec.Codec[T], opts ...Option) *Tape[T] {
	t.Helper()
	all := append([]Option{
		WithEviction(c),
		WithScratchDir(t.TempDir()),
	}, opts...)
	return newTestTape[T](t, all...)
}

type tapeConfig struct {
	name string
	open func(t *testing.T) *Tape[int64]
}

func tapeConfigs() []tapeConfig {
	return []tapeConfig{
		{"Resident", func(t *testing.T) *Tape[int64] {
			return newTestTape[int64](t, WithInlineSize(testInline), WithSlabSize(testSlab))
		}},
		{"Evicting", func(t *testing.T) *Tape[int64] {
			return newEvictingTape(t, codec.Raw[int64](),
				WithInlineSize(testInline), WithSlabSize(testSlab), WithMaxResidentSlabs(2))
		}},
		{"EvictingOffHeap", func(t *testing.T) *Tape[int64] {
			return newEvictingTape(t, codec.Raw[int64](),
				WithInlineSize(testInline), WithSlabSize(testSlab), WithMaxResidentSlabs(2), WithOffHeapSlabs())
		}},
		{"NoInline", func(t *testing.T) *Tape[int64] {
			return newEvictingTape(t, codec.Binary[int64](),
				WithInlineSize(0), WithSlabSize(testSlab), WithMaxResidentSlabs(1))
		}},
	}
}

func TestNewDefaults(t *testing.T) {
	tp := newTestTape[float64](t)

	st := tp.Stats()
	assert.Equal(t, 0, tp.Len())
	assert.Equal(t, DefaultInlineSize, tp.Cap())
	assert.Equal(t, DefaultInlineSize, st.InlineSize)
	assert.Equal(t, DefaultSlabSize, st.SlabSize)
	assert.Equal(t, 0, st.Slabs)
	assert.Equal(t, 0, st.MaxResidentSlabs)
	assert.Empty(t, st.ScratchFile)
}

func TestNewInvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		field string
	}{
		{"NegativeInline", []Option{WithInlineSize(-1)}, "InlineSize"},
		{"ZeroSlab", []Option{WithSlabSize(0)}, "SlabSize"},
		{"UnknownCompression", []Option{WithCompression(Compression(42))}, "Compression"},
		{"ZeroBudget", []Option{WithEviction(codec.Raw[int64]()), WithMaxResidentSlabs(0)}, "MaxResidentSlabs"},
		{"CodecMismatch", []Option{WithEviction(codec.Raw[int32]())}, "Eviction"},
		{"NilCodec", []Option{WithEviction[int64](nil)}, "Eviction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, err := New[int64](tt.opts...)
			require.Error(t, err)
			assert.Nil(t, tp)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	t.Run("CodecMismatchIsUnsupported", func(t *testing.T) {
		_, err := New[int64](WithEviction(codec.Raw[int32]()))
		assert.ErrorIs(t, err, ErrUnsupportedElement)
	})

	t.Run("OffHeapWithPointers", func(t *testing.T) {
		_, err := New[string](WithOffHeapSlabs())
		assert.ErrorIs(t, err, ErrUnsupportedElement)
	})
}

func TestLIFORoundTrip(t *testing.T) {
	sizes := []int{
		0,
		testInline - 1,
		testInline,
		testInline + 1,
		testInline + testSlab,
		testInline + 5*testSlab + 1,
		500,
	}

	for _, cfg := range tapeConfigs() {
		for _, n := range sizes {
			t.Run(fmt.Sprintf("%s/N=%d", cfg.name, n), func(t *testing.T) {
				tp := cfg.open(t)

				for i := range n {
					require.NoError(t, tp.Push(int64(i)))
				}
				require.Equal(t, n, tp.Len())

				for i := n - 1; i >= 0; i-- {
					v, err := tp.Pop()
					require.NoError(t, err)
					require.Equal(t, int64(i), v)
				}
				assert.Equal(t, 0, tp.Len())
			})
		}
	}
}

func TestIndexConsistency(t *testing.T) {
	for _, cfg := range tapeConfigs() {
		t.Run(cfg.name, func(t *testing.T) {
			tp := cfg.open(t)
			n := testInline + 20*testSlab + 2

			for i := range n {
				require.NoError(t, tp.Push(int64(i*i)))
			}

			// Forward, then backward, then strided so every slab is reloaded.
			for i := range n {
				v, err := tp.At(i)
				require.NoError(t, err)
				require.Equal(t, int64(i*i), v)
			}
			for i := n - 1; i >= 0; i-- {
				v, err := tp.At(i)
				require.NoError(t, err)
				require.Equal(t, int64(i*i), v)
			}
			for i := 0; i < n; i += 7 {
				require.NoError(t, tp.Set(i, -int64(i)))
			}
			for i := range n {
				v, err := tp.At(i)
				require.NoError(t, err)
				if i%7 == 0 {
					require.Equal(t, -int64(i), v)
				} else {
					require.Equal(t, int64(i*i), v)
				}
			}
		})
	}
}

func TestEvictionAndReload(t *testing.T) {
	tp := newEvictingTape(t, codec.Raw[int64](),
		WithInlineSize(2), WithSlabSize(4), WithMaxResidentSlabs(2))

	n := 2 + 4*6
	for i := range n {
		require.NoError(t, tp.Push(int64(100+i)))
		assert.LessOrEqual(t, tp.Stats().ResidentSlabs, 2)
	}

	st := tp.Stats()
	require.Greater(t, st.Evictions, int64(0))
	require.NotEmpty(t, st.ScratchFile)
	// Every slab past the budget evicted exactly one older slab.
	assert.Equal(t, int64(6-2), st.Evictions)
	assert.Equal(t, 2, st.ResidentSlabs)

	// Early index lives in an evicted slab.
	v, err := tp.At(3)
	require.NoError(t, err)
	assert.Equal(t, int64(103), v)
	assert.Equal(t, int64(1), tp.Stats().Reloads)

	// Most recent index is the tail.
	v, err = tp.Back()
	require.NoError(t, err)
	assert.Equal(t, int64(100+n-1), v)

	v, err = tp.At(n - 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100+n-1), v)
	assert.LessOrEqual(t, tp.Stats().ResidentSlabs, 2)
}

func TestScratchFileIsAppendOnly(t *testing.T) {
	tp := newEvictingTape(t, codec.Raw[int64](),
		WithInlineSize(0), WithSlabSize(8), WithMaxResidentSlabs(1))

	for i := range 8 * 4 {
		require.NoError(t, tp.Push(int64(i)))
	}

	st := tp.Stats()
	slabBytes := int64(8 * 8)
	assert.Equal(t, int64(3), st.Evictions)
	assert.Equal(t, st.Evictions*slabBytes, st.ScratchBytes)

	info, err := os.Stat(st.ScratchFile)
	require.NoError(t, err)
	assert.Equal(t, st.ScratchBytes, info.Size())

	// A reload followed by a re-eviction appends rather than rewriting.
	_, err = tp.At(0)
	require.NoError(t, err)
	assert.Equal(t, (st.Evictions+1)*slabBytes, tp.Stats().ScratchBytes)
}

func TestSizeCapacityMonotonicity(t *testing.T) {
	for _, cfg := range tapeConfigs() {
		t.Run(cfg.name, func(t *testing.T) {
			tp := cfg.open(t)
			inline := tp.Stats().InlineSize
			slabSize := tp.Stats().SlabSize

			assert.Equal(t, inline, tp.Cap())

			for i := range 50 {
				prevLen, prevCap := tp.Len(), tp.Cap()
				require.NoError(t, tp.Push(int64(i)))

				assert.Equal(t, prevLen+1, tp.Len())
				assert.GreaterOrEqual(t, tp.Cap(), tp.Len())
				if tp.Cap() != prevCap {
					assert.Equal(t, prevCap+slabSize, tp.Cap())
				}
			}

			for range 30 {
				prevLen, prevCap := tp.Len(), tp.Cap()
				_, err := tp.Pop()
				require.NoError(t, err)

				assert.Equal(t, prevLen-1, tp.Len())
				assert.Equal(t, prevCap, tp.Cap())
			}

			// Regrowth reuses the slabs kept by Pop.
			slabs := tp.Stats().Slabs
			for i := range 30 {
				require.NoError(t, tp.Push(int64(i)))
			}
			assert.Equal(t, slabs, tp.Stats().Slabs)

			require.NoError(t, tp.Clear())
			assert.Equal(t, 0, tp.Len())
			assert.Equal(t, inline, tp.Cap())
		})
	}
}

func TestNoLeaks(t *testing.T) {
	for _, cfg := range tapeConfigs() {
		t.Run(cfg.name, func(t *testing.T) {
			tp := cfg.open(t)

			for round := range 3 {
				for i := range 40 + round {
					require.NoError(t, tp.Push(int64(i)))
				}
				_, err := tp.At(0)
				require.NoError(t, err)
				for range 17 {
					_, err := tp.Pop()
					require.NoError(t, err)
				}

				scratch := tp.Stats().ScratchFile
				require.NoError(t, tp.Clear())

				st := tp.Stats()
				assert.Equal(t, st.SlabAllocs, st.SlabFrees)
				assert.Equal(t, 0, st.Slabs)
				assert.Equal(t, 0, st.ResidentSlabs)
				assert.Empty(t, st.ScratchFile)
				if scratch != "" {
					_, err := os.Stat(scratch)
					assert.ErrorIs(t, err, os.ErrNotExist)
				}
			}
		})
	}
}

func TestScenarioBudgetOne(t *testing.T) {
	tp := newEvictingTape(t, codec.Raw[int64](),
		WithInlineSize(4), WithSlabSize(2), WithMaxResidentSlabs(1))

	for _, v := range []int64{10, 20, 30, 40, 50, 60, 70} {
		require.NoError(t, tp.Push(v))
	}

	st := tp.Stats()
	assert.Equal(t, 2, st.Slabs)
	assert.Equal(t, 1, st.ResidentSlabs)
	assert.Equal(t, int64(1), st.Evictions, "slab A is evicted when slab B is created")
	assert.True(t, tp.slabs[0].onDisk)
	assert.False(t, tp.slabs[1].onDisk)

	v, err := tp.At(0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)
	assert.Equal(t, int64(0), tp.Stats().Reloads)

	v, err = tp.At(4)
	require.NoError(t, err)
	assert.Equal(t, int64(50), v)
	assert.Equal(t, int64(1), tp.Stats().Reloads)
	assert.Equal(t, 1, tp.Stats().ResidentSlabs)

	for _, want := range []int64{70, 60, 50} {
		got, err := tp.Pop()
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.LessOrEqual(t, tp.Stats().ResidentSlabs, 1)
	}
	assert.Equal(t, 4, tp.Len())

	// Each reload happened with the budget full and found a slab to evict.
	st = tp.Stats()
	assert.Equal(t, 1, st.ResidentSlabs)
	assert.Equal(t, st.Reloads+1, st.Evictions)
}

func TestRandomChurnMatchesModel(t *testing.T) {
	rng := testutil.NewRNG(4711)

	for _, cfg := range tapeConfigs() {
		t.Run(cfg.name, func(t *testing.T) {
			tp := cfg.open(t)
			var model testutil.Model[int64]

			for step, op := range rng.Ops(4000, 0.55) {
				switch op {
				case testutil.OpPush:
					v := int64(rng.Uint64() >> 1)
					require.NoError(t, tp.Push(v))
					model.Push(v)
				case testutil.OpPop:
					want, ok := model.Pop()
					if !ok {
						continue
					}
					got, err := tp.Pop()
					require.NoError(t, err)
					require.Equal(t, want, got, "step %d", step)
				case testutil.OpAt:
					if model.Len() == 0 {
						continue
					}
					i := rng.Intn(model.Len())
					got, err := tp.At(i)
					require.NoError(t, err)
					require.Equal(t, model.At(i), got, "step %d index %d", step, i)
				}
				require.Equal(t, model.Len(), tp.Len())
			}

			for i, v := range tp.All() {
				require.Equal(t, model.At(i), v)
			}
			require.NoError(t, tp.Err())
		})
	}
}

func TestBack(t *testing.T) {
	for _, cfg := range tapeConfigs() {
		t.Run(cfg.name, func(t *testing.T) {
			tp := cfg.open(t)

			for i := range 20 {
				require.NoError(t, tp.Push(int64(i)))
				v, err := tp.Back()
				require.NoError(t, err)
				require.Equal(t, int64(i), v)
			}
			for i := 19; i > 0; i-- {
				_, err := tp.Pop()
				require.NoError(t, err)
				v, err := tp.Back()
				require.NoError(t, err)
				require.Equal(t, int64(i-1), v)
			}
		})
	}
}

func TestPtr(t *testing.T) {
	tp := newTestTape[int64](t, WithInlineSize(2), WithSlabSize(2))

	for i := range 5 {
		require.NoError(t, tp.Push(int64(i)))
	}

	p, err := tp.Ptr(1)
	require.NoError(t, err)
	*p = 42

	p, err = tp.Ptr(4)
	require.NoError(t, err)
	*p += 100

	v, _ := tp.At(1)
	assert.Equal(t, int64(42), v)
	v, _ = tp.Back()
	assert.Equal(t, int64(104), v)
}

func TestOutOfRangePanics(t *testing.T) {
	tp := newTestTape[int64](t, WithInlineSize(2), WithSlabSize(2))

	assert.Panics(t, func() { _, _ = tp.Pop() })
	assert.Panics(t, func() { _, _ = tp.Back() })
	assert.Panics(t, func() { _, _ = tp.At(0) })

	require.NoError(t, tp.Push(1))
	assert.Panics(t, func() { _, _ = tp.At(1) })
	assert.Panics(t, func() { _, _ = tp.At(-1) })
	assert.Panics(t, func() { _ = tp.Set(5, 0) })
}

func TestPopReleasesReferences(t *testing.T) {
	tp := newTestTape[*int](t, WithInlineSize(1), WithSlabSize(2))

	for i := range 3 {
		require.NoError(t, tp.Push(&i))
	}
	for range 3 {
		_, err := tp.Pop()
		require.NoError(t, err)
	}

	assert.Nil(t, tp.inline.slots[0])
	for _, s := range tp.slabs {
		for _, p := range s.data {
			assert.Nil(t, p)
		}
	}
}

func TestClose(t *testing.T) {
	dir := t.TempDir()
	tp, err := New[int64](
		WithEviction(codec.Raw[int64]()),
		WithScratchDir(dir),
		WithInlineSize(0), WithSlabSize(2), WithMaxResidentSlabs(1),
	)
	require.NoError(t, err)

	for i := range 10 {
		require.NoError(t, tp.Push(int64(i)))
	}
	scratch := tp.Stats().ScratchFile
	require.NotEmpty(t, scratch)

	require.NoError(t, tp.Close())
	require.NoError(t, tp.Close())

	_, err = os.Stat(scratch)
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.ErrorIs(t, tp.Push(1), ErrClosed)
	_, err = tp.Pop()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = tp.At(0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = tp.Back()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, tp.Set(0, 1), ErrClosed)
	assert.ErrorIs(t, tp.Clear(), ErrClosed)
	assert.Equal(t, 0, tp.Len())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScratchDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ramdisk", "tapes")
	tp := newTestTape[int64](t,
		WithEviction(codec.Raw[int64]()),
		WithScratchDir(dir),
		WithInlineSize(0), WithSlabSize(2), WithMaxResidentSlabs(1),
	)

	for i := range 6 {
		require.NoError(t, tp.Push(int64(i)))
	}

	scratch := tp.Stats().ScratchFile
	assert.Equal(t, dir, filepath.Dir(scratch))
	assert.Regexp(t, `^slabtape_\d+_\d+\.tmp$`, filepath.Base(scratch))
}

func TestDistinctScratchFiles(t *testing.T) {
	dir := t.TempDir()
	opts := []Option{
		WithEviction(codec.Raw[int64]()),
		WithScratchDir(dir),
		WithInlineSize(0), WithSlabSize(2), WithMaxResidentSlabs(1),
	}
	a := newTestTape[int64](t, opts...)
	b := newTestTape[int64](t, opts...)

	for i := range 6 {
		require.NoError(t, a.Push(int64(i)))
		require.NoError(t, b.Push(int64(-i)))
	}

	assert.NotEqual(t, a.Stats().ScratchFile, b.Stats().ScratchFile)

	va, err := a.At(0)
	require.NoError(t, err)
	vb, err := b.At(1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), va)
	assert.Equal(t, int64(-1), vb)
}

type record struct {
	X     float64
	Y     float64
	Op    uint8
	Depth int32
}

func TestBinaryCodecStructElements(t *testing.T) {
	tp := newEvictingTape(t, codec.Binary[record](),
		WithInlineSize(3), WithSlabSize(5), WithMaxResidentSlabs(2))

	for i := range 100 {
		require.NoError(t, tp.Push(record{X: float64(i), Y: -float64(i), Op: uint8(i % 7), Depth: int32(i)}))
	}
	require.Greater(t, tp.Stats().Evictions, int64(0))

	for i := 99; i >= 0; i-- {
		r, err := tp.Pop()
		require.NoError(t, err)
		require.Equal(t, record{X: float64(i), Y: -float64(i), Op: uint8(i % 7), Depth: int32(i)}, r)
	}
}

func TestCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			tp := newEvictingTape(t, codec.Raw[int64](),
				WithInlineSize(0), WithSlabSize(256), WithMaxResidentSlabs(1), WithCompression(c))

			n := 256 * 6
			for i := range n {
				require.NoError(t, tp.Push(int64(i)))
			}

			st := tp.Stats()
			raw := st.Evictions * 256 * 8
			if c == CompressionNone {
				assert.Equal(t, raw, st.ScratchBytes)
			} else {
				assert.Less(t, st.ScratchBytes, raw)
			}

			for i := range n {
				v, err := tp.At(i)
				require.NoError(t, err)
				require.Equal(t, int64(i), v)
			}
		})
	}
}

func TestMutex(t *testing.T) {
	tp := newTestTape[int64](t)

	mu := tp.Mutex()
	require.NotNil(t, mu)
	assert.Same(t, mu, tp.Mutex())

	mu.Lock()
	require.NoError(t, tp.Push(1))
	mu.Unlock()
}
