package pool

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const internShards = 16

// StringInternPool provides string interning to reduce allocations for
// repeated cell values and field names. Sharded by xxhash so concurrent
// indexer workers do not contend on one lock.
type StringInternPool struct {
	shards  [internShards]internShard
	maxSize int64
	size    int64
	hits    int64
	misses  int64
}

type internShard struct {
	mu      sync.RWMutex
	strings map[string]string
}

// Global string intern pool with common column names pre-populated
var globalStringInternPool = newStringInternPool(65536)

func newStringInternPool(maxSize int64) *StringInternPool {
	p := &StringInternPool{maxSize: maxSize}
	for i := range p.shards {
		p.shards[i].strings = make(map[string]string, 64)
	}
	return p
}

func init() {
	// Synthetic column names X1..X32 show up for every headerless file
	buf := []byte{'X', 0, 0}
	for i := 1; i <= 32; i++ {
		name := buf[:1]
		if i >= 10 {
			name = append(name, byte('0'+i/10))
		}
		name = append(name, byte('0'+i%10))
		globalStringInternPool.Intern(string(name))
	}
	for _, s := range []string{"TRUE", "FALSE", "true", "false", "NA", ""} {
		globalStringInternPool.Intern(s)
	}
}

// Intern returns an interned version of the string
func (p *StringInternPool) Intern(s string) string {
	shard := &p.shards[xxhash.Sum64String(s)%internShards]

	shard.mu.RLock()
	if interned, ok := shard.strings[s]; ok {
		shard.mu.RUnlock()
		atomic.AddInt64(&p.hits, 1)
		return interned
	}
	shard.mu.RUnlock()

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if interned, ok := shard.strings[s]; ok {
		atomic.AddInt64(&p.hits, 1)
		return interned
	}

	if atomic.LoadInt64(&p.size) >= p.maxSize {
		atomic.AddInt64(&p.misses, 1)
		return s
	}

	shard.strings[s] = s
	atomic.AddInt64(&p.size, 1)
	atomic.AddInt64(&p.misses, 1)
	return s
}

// InternBytes interns a byte slice as a string
func (p *StringInternPool) InternBytes(b []byte) string {
	shard := &p.shards[xxhash.Sum64(b)%internShards]

	// Lookup without converting: map access on string(b) does not allocate
	shard.mu.RLock()
	if interned, ok := shard.strings[string(b)]; ok {
		shard.mu.RUnlock()
		atomic.AddInt64(&p.hits, 1)
		return interned
	}
	shard.mu.RUnlock()

	return p.Intern(string(b))
}

// Stats returns intern pool statistics
func (p *StringInternPool) Stats() (size, hits, misses int64) {
	return atomic.LoadInt64(&p.size),
		atomic.LoadInt64(&p.hits),
		atomic.LoadInt64(&p.misses)
}

// InternString interns a string using the global pool
func InternString(s string) string {
	return globalStringInternPool.Intern(s)
}

// InternBytes interns a byte slice using the global pool
func InternBytes(b []byte) string {
	return globalStringInternPool.InternBytes(b)
}
