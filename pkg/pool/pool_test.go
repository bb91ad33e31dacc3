package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferPoolReuse(t *testing.T) {
	p := NewBufferPool()
	buf := p.Get(1024)
	assert.Equal(t, 0, len(buf))
	assert.GreaterOrEqual(t, cap(buf), 1024)

	buf = append(buf, []byte("content")...)
	p.Put(buf)

	again := p.Get(1024)
	assert.Equal(t, 0, len(again))
}

func TestBufferPoolOversized(t *testing.T) {
	p := NewBufferPool()
	buf := p.Get(8 * 1024 * 1024)
	assert.GreaterOrEqual(t, cap(buf), 8*1024*1024)
	p.Put(buf) // oversized buffers are dropped, not pooled
}

func TestStringSlice(t *testing.T) {
	s := GetStringSlice()
	assert.Equal(t, 0, len(s))
	s = append(s, "a", "b")
	PutStringSlice(s)

	again := GetStringSlice()
	assert.Equal(t, 0, len(again))
	PutStringSlice(again)
}

func TestOffsetBuffer(t *testing.T) {
	buf := GetOffsetBuffer()
	assert.Equal(t, 0, len(buf))
	buf = append(buf, 1, 2, 3)
	PutOffsetBuffer(buf)

	again := GetOffsetBuffer()
	assert.Equal(t, 0, len(again))
}

func TestInternString(t *testing.T) {
	a := InternString("column_name")
	b := InternString("column_name")
	assert.Equal(t, a, b)

	c := InternBytes([]byte("column_name"))
	assert.Equal(t, a, c)
}

func TestInternConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				InternString("shared")
				InternBytes([]byte("shared"))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, "shared", InternString("shared"))
}

func TestBytesToString(t *testing.T) {
	assert.Equal(t, "", BytesToString(nil))
	assert.Equal(t, "abc", BytesToString([]byte("abc")))
	assert.Nil(t, StringToBytes(""))
	assert.Equal(t, []byte("abc"), StringToBytes("abc"))
}
