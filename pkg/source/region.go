// Package source abstracts the contiguous byte region the indexer scans and
// the column store reads from: a memory-mapped file for plain seekable
// input, or a fully decompressed in-memory buffer for compressed input.
package source

import (
	"bytes"
	"io"
	"os"
	"sync/atomic"

	"github.com/ajitpratap0/tabular/pkg/compression"
	"github.com/ajitpratap0/tabular/pkg/errors"
)

// utf8BOM is consumed and ignored at the start of every region
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// AdviceHint mirrors the madvise hints the indexer and column store use
type AdviceHint int

const (
	// AdviceSequential marks the upcoming access pattern as a linear scan
	AdviceSequential AdviceHint = iota
	// AdviceRandom marks the upcoming access pattern as point reads
	AdviceRandom
	// AdviceWillNeed asks the kernel to fault pages in ahead of use
	AdviceWillNeed
)

// Region is a view over a finite immutable byte sequence. A region must
// outlive every index and column that references it: holders call Retain
// when binding and Close when done; the backing store is released when the
// last holder drops.
type Region interface {
	// Len returns the region length in bytes
	Len() int64
	// Slice returns the bytes in [lo, hi). The returned view aliases the
	// region and is valid only while the region is retained.
	Slice(lo, hi int64) []byte
	// StartsWith reports whether the bytes at off begin with needle
	StartsWith(off int64, needle []byte) bool
	// Bytes returns the whole region as one view
	Bytes() []byte
	// Mmapped reports whether the region is backed by a memory mapping,
	// which lets the indexer choose parallel mapped chunks
	Mmapped() bool
	// Advise hints the expected access pattern; a no-op for memory regions
	Advise(hint AdviceHint)
	// Retain adds a holder
	Retain()
	// Close drops a holder, releasing the backing store at zero
	Close() error
}

// MemRegion is a region over an in-memory buffer
type MemRegion struct {
	data []byte
	refs atomic.Int64
}

// NewMemRegion creates a region over buf, consuming a leading BOM
func NewMemRegion(buf []byte) *MemRegion {
	buf = bytes.TrimPrefix(buf, utf8BOM)
	r := &MemRegion{data: buf}
	r.refs.Store(1)
	return r
}

// Len returns the region length
func (r *MemRegion) Len() int64 { return int64(len(r.data)) }

// Slice returns the bytes in [lo, hi)
func (r *MemRegion) Slice(lo, hi int64) []byte { return r.data[lo:hi] }

// StartsWith reports whether the bytes at off begin with needle
func (r *MemRegion) StartsWith(off int64, needle []byte) bool {
	if off < 0 || off+int64(len(needle)) > int64(len(r.data)) {
		return false
	}
	return bytes.Equal(r.data[off:off+int64(len(needle))], needle)
}

// Bytes returns the whole region
func (r *MemRegion) Bytes() []byte { return r.data }

// Mmapped reports false for memory regions
func (r *MemRegion) Mmapped() bool { return false }

// Advise is a no-op for memory regions
func (r *MemRegion) Advise(AdviceHint) {}

// Retain adds a holder
func (r *MemRegion) Retain() { r.refs.Add(1) }

// Close drops a holder
func (r *MemRegion) Close() error {
	if r.refs.Add(-1) == 0 {
		r.data = nil
	}
	return nil
}

// Open opens path as a region. Compressed files (recognized by suffix) are
// decompressed fully into memory; plain files are memory-mapped. bufSize
// bounds the buffered-read chunk for decompression; <= 0 uses 256 KiB.
func Open(path string, bufSize int) (Region, error) {
	format := compression.Detect(path)
	if format == compression.None {
		return OpenMmap(path)
	}
	return openCompressed(path, format, bufSize)
}

func openCompressed(path string, format compression.Format, bufSize int) (Region, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindIO, "failed to open file")
	}
	defer file.Close()

	if bufSize <= 0 {
		bufSize = 256 * 1024
	}

	var dec io.ReadCloser
	if format == compression.Zip {
		stat, err := file.Stat()
		if err != nil {
			return nil, errors.Wrap(err, errors.KindIO, "failed to stat file")
		}
		dec, err = compression.OpenZip(file, stat.Size())
		if err != nil {
			return nil, err
		}
	} else {
		dec, err = compression.NewReader(file, format)
		if err != nil {
			return nil, err
		}
	}
	defer dec.Close()

	var out bytes.Buffer
	buf := make([]byte, bufSize)
	if _, err := io.CopyBuffer(&out, dec, buf); err != nil {
		return nil, errors.Wrap(err, errors.KindCodec, "failed to decompress input")
	}

	return NewMemRegion(out.Bytes()), nil
}
