package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_SizeClasses(t *testing.T) {
	p := New(1024, 64, 256, 64, 0)
	assert.Equal(t, 1024, p.MaxPooled())

	tests := []struct {
		request int
		wantCap int
	}{
		{1, 64},
		{64, 64},
		{65, 256},
		{1000, 1024},
		{2048, 2048}, // above the largest class
	}
	for _, tt := range tests {
		buf := p.Get(tt.request)
		assert.Len(t, buf, tt.request)
		assert.Equal(t, tt.wantCap, cap(buf), "request %d", tt.request)
		p.Put(buf)
	}
}

func TestPool_Reuse(t *testing.T) {
	p := New(128)

	buf := p.Get(100)
	buf[0] = 42
	p.Put(buf)

	// Returned buffers come back with full length restored.
	again := p.Get(128)
	require.Len(t, again, 128)
}

func TestPool_PutForeignSlices(t *testing.T) {
	p := New(128)
	assert.NotPanics(t, func() {
		p.Put(nil)
		p.Put(make([]byte, 10))
	})
}

func TestPool_Concurrent(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			buf := p.Get(n * 1024)
			buf[len(buf)-1] = byte(n)
			p.Put(buf)
		}(i + 1)
	}
	wg.Wait()
}

func TestCopySize(t *testing.T) {
	t.Cleanup(func() { SetCopySize(0) })

	assert.Equal(t, DefaultCopySize, CopySize())
	SetCopySize(64 << 10)
	assert.Equal(t, 64<<10, CopySize())
	SetCopySize(-1)
	assert.Equal(t, DefaultCopySize, CopySize())
}
