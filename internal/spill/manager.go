package spill

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/hupe1980/slabtape/internal/compress"
	"github.com/hupe1980/slabtape/internal/fs"
	"github.com/hupe1980/slabtape/resource"
)

const (
	// FilePrefix is the fixed prefix of every scratch file name.
	FilePrefix = "slabtape_"
	// FileExt is the fixed extension of every scratch file name.
	FileExt = ".tmp"
)

// ErrClosed is returned by operations on a closed Manager.
var ErrClosed = errors.New("spill: manager closed")

var instanceSeq atomic.Uint64

// Config configures a Manager.
type Config struct {
	// Dir is the directory the scratch file is created in.
	// Defaults to os.TempDir().
	Dir string
	// FS is the filesystem used for the scratch file. Defaults to fs.Default.
	FS fs.FileSystem
	// Compression is applied to every slab block.
	Compression compress.Type
	// Controller throttles spill IO. May be nil.
	Controller *resource.Controller
}

// Stats describes scratch file traffic.
type Stats struct {
	SlabsWritten int64
	SlabsRead    int64
	BytesWritten int64 // stored bytes, after compression
	BytesRead    int64
	FileSize     int64
}

// Manager appends slab blocks to a scratch file and reads them back.
// It is not safe for concurrent use.
type Manager struct {
	fs          fs.FileSystem
	path        string
	file        fs.File
	compression compress.Type
	rc          *resource.Controller
	readBuf     []byte
	stats       Stats
	closed      bool
}

// FileName returns the scratch file name for the given instance number.
func FileName(seq uint64) string {
	return fmt.Sprintf("%s%d_%d%s", FilePrefix, os.Getpid(), seq, FileExt)
}

// New creates the scratch file and returns its Manager.
func New(cfg Config) (*Manager, error) {
	fsys := cfg.FS
	if fsys == nil {
		fsys = fs.Default
	}
	dir := cfg.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if !cfg.Compression.Valid() {
		return nil, fmt.Errorf("spill: invalid compression %s", cfg.Compression)
	}

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, FileName(instanceSeq.Add(1)))
	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}

	return &Manager{
		fs:          fsys,
		path:        path,
		file:        f,
		compression: cfg.Compression,
		rc:          cfg.Controller,
	}, nil
}

// Path returns the scratch file path.
func (m *Manager) Path() string {
	return m.path
}

// Compression returns the block compression in use.
func (m *Manager) Compression() compress.Type {
	return m.compression
}

// WriteSlab appends raw (one encoded slab) at the end of the file.
// It returns the offset the block starts at and the stored block length.
func (m *Manager) WriteSlab(raw []byte) (int64, int, error) {
	if m.closed {
		return 0, 0, ErrClosed
	}

	block, err := compress.Encode(m.compression, raw)
	if err != nil {
		return 0, 0, err
	}

	if err := m.rc.AcquireIO(context.Background(), len(block)); err != nil {
		return 0, 0, err
	}

	offset, err := m.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, 0, err
	}

	n, err := m.file.Write(block)
	if err != nil {
		return 0, 0, err
	}
	if n != len(block) {
		return 0, 0, io.ErrShortWrite
	}

	m.stats.SlabsWritten++
	m.stats.BytesWritten += int64(n)
	m.stats.FileSize = offset + int64(n)
	return offset, n, nil
}

// ReadSlab reads the block of length n stored at offset and decodes it into dst.
func (m *Manager) ReadSlab(offset int64, n int, dst []byte) error {
	if m.closed {
		return ErrClosed
	}

	if err := m.rc.AcquireIO(context.Background(), n); err != nil {
		return err
	}

	buf := dst
	if m.compression != compress.None {
		if cap(m.readBuf) < n {
			m.readBuf = make([]byte, n)
		}
		buf = m.readBuf[:n]
	} else if n != len(dst) {
		return compress.ErrSizeMismatch
	}

	if _, err := m.file.ReadAt(buf, offset); err != nil {
		return err
	}

	if m.compression != compress.None {
		if err := compress.Decode(m.compression, buf, dst); err != nil {
			return err
		}
	}

	m.stats.SlabsRead++
	m.stats.BytesRead += int64(n)
	return nil
}

// Stats returns traffic counters.
func (m *Manager) Stats() Stats {
	return m.stats
}

// Close closes and removes the scratch file. It is idempotent.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.readBuf = nil

	closeErr := m.file.Close()
	removeErr := m.fs.Remove(m.path)
	if removeErr != nil && errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	return errors.Join(closeErr, removeErr)
}
