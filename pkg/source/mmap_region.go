package source

import (
	"bytes"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/tabular/pkg/errors"
)

// MmapRegion is a region backed by a read-only memory mapping. The mapping
// is released when the last holder closes; double-unmap is guarded.
type MmapRegion struct {
	file    *os.File
	mapping []byte // full mapping, munmap target
	data    []byte // logical view past any BOM
	refs    atomic.Int64

	mu     sync.Mutex
	closed bool
}

// OpenMmap maps path read-only. Empty files degrade to an empty MemRegion
// since zero-length mappings are invalid.
func OpenMmap(path string) (Region, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindIO, "failed to open file")
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, errors.KindIO, "failed to stat file")
	}

	size := stat.Size()
	if size == 0 {
		file.Close()
		return NewMemRegion(nil), nil
	}

	mapping, err := mmap(int(file.Fd()), 0, int(size), protRead, mapShared)
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, errors.KindIO, "failed to mmap file")
	}

	// Indexing is a linear scan; column reads re-advise later
	_ = madvise(mapping, madvSequential)

	r := &MmapRegion{
		file:    file,
		mapping: mapping,
		data:    bytes.TrimPrefix(mapping, utf8BOM),
	}
	r.refs.Store(1)
	return r, nil
}

// Len returns the region length past any BOM
func (r *MmapRegion) Len() int64 { return int64(len(r.data)) }

// Slice returns the bytes in [lo, hi)
func (r *MmapRegion) Slice(lo, hi int64) []byte { return r.data[lo:hi] }

// StartsWith reports whether the bytes at off begin with needle
func (r *MmapRegion) StartsWith(off int64, needle []byte) bool {
	if off < 0 || off+int64(len(needle)) > int64(len(r.data)) {
		return false
	}
	return bytes.Equal(r.data[off:off+int64(len(needle))], needle)
}

// Bytes returns the whole region past any BOM
func (r *MmapRegion) Bytes() []byte { return r.data }

// Mmapped reports true
func (r *MmapRegion) Mmapped() bool { return true }

// Advise forwards the access-pattern hint to the kernel
func (r *MmapRegion) Advise(hint AdviceHint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	switch hint {
	case AdviceSequential:
		_ = madvise(r.mapping, madvSequential)
	case AdviceRandom:
		_ = madvise(r.mapping, madvRandom)
	case AdviceWillNeed:
		_ = madvise(r.mapping, madvWillneed)
	}
}

// Retain adds a holder
func (r *MmapRegion) Retain() { r.refs.Add(1) }

// Close drops a holder, unmapping and closing the file at zero
func (r *MmapRegion) Close() error {
	if r.refs.Add(-1) != 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.mapping != nil {
		err = munmap(r.mapping)
		r.mapping = nil
		r.data = nil
	}
	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}
	return err
}
