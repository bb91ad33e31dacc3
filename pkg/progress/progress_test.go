package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type captureSink struct {
	mu   sync.Mutex
	last Counters
	hits int
}

func (s *captureSink) Publish(c Counters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = c
	s.hits++
}

func TestTrackerPublishes(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker(sink, 100)

	tr.AddBytes(40)
	tr.AddBytes(60)
	tr.AddRows(3)

	snap := tr.Snapshot()
	assert.Equal(t, int64(100), snap.BytesIndexed)
	assert.Equal(t, int64(3), snap.RowsIndexed)
	assert.Equal(t, int64(100), snap.BytesTotal)
	assert.Equal(t, 3, sink.hits)
}

func TestTrackerNilSink(t *testing.T) {
	tr := NewTracker(nil, 10)
	tr.AddBytes(5) // must not panic
	assert.Equal(t, int64(5), tr.Snapshot().BytesIndexed)
}

func TestSafeHelpersNilTracker(t *testing.T) {
	SafeAddBytes(nil, 5)
	SafeAddRows(nil, 5)
}

func TestTrackerConcurrent(t *testing.T) {
	tr := NewTracker(&captureSink{}, 0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.AddBytes(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(800), tr.Snapshot().BytesIndexed)
}
