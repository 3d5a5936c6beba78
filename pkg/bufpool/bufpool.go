// Package bufpool pools the byte slices used to stream storage content.
//
// Buffers are grouped in size classes; a request is served by the smallest
// class that fits and anything above the largest class is allocated
// directly so that rare huge reads do not stay pinned in memory.
//
//	buf := bufpool.Get(bufpool.CopySize())
//	defer bufpool.Put(buf)
package bufpool

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Default size classes.
const (
	SmallSize  = 16 << 10  // control files, manifests
	MediumSize = 256 << 10 // small WAL reads, listings
	LargeSize  = 4 << 20   // bulk copies

	// DefaultCopySize is the buffer used by storage copies unless the
	// configured buffer size overrides it.
	DefaultCopySize = 1 << 20
)

// Pool hands out byte slices from a fixed set of size classes.
type Pool struct {
	classes []class
}

type class struct {
	size int
	pool *sync.Pool
}

// New returns a pool with the given size classes. Without sizes the default
// classes are used. Duplicates and non-positive sizes are dropped.
func New(sizes ...int) *Pool {
	if len(sizes) == 0 {
		sizes = []int{SmallSize, MediumSize, LargeSize}
	}

	sorted := append([]int(nil), sizes...)
	sort.Ints(sorted)

	p := &Pool{}
	for _, size := range sorted {
		if size <= 0 || (len(p.classes) > 0 && p.classes[len(p.classes)-1].size == size) {
			continue
		}
		n := size
		p.classes = append(p.classes, class{
			size: n,
			pool: &sync.Pool{New: func() any {
				buf := make([]byte, n)
				return &buf
			}},
		})
	}
	return p
}

// Get returns a slice of length size. Its capacity may be larger.
func (p *Pool) Get(size int) []byte {
	for _, c := range p.classes {
		if size <= c.size {
			buf := *(c.pool.Get().(*[]byte))
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to its class. Slices whose capacity matches no class are
// left to the garbage collector.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	for _, c := range p.classes {
		if cap(buf) == c.size {
			full := buf[:c.size]
			c.pool.Put(&full)
			return
		}
	}
}

// MaxPooled returns the largest pooled size.
func (p *Pool) MaxPooled() int {
	if len(p.classes) == 0 {
		return 0
	}
	return p.classes[len(p.classes)-1].size
}

var (
	global   = New()
	copySize atomic.Int64
)

func init() {
	copySize.Store(DefaultCopySize)
}

// Get returns a buffer from the shared pool.
func Get(size int) []byte { return global.Get(size) }

// Put returns a buffer to the shared pool.
func Put(buf []byte) { global.Put(buf) }

// CopySize returns the buffer size used for streaming copies.
func CopySize() int { return int(copySize.Load()) }

// SetCopySize changes the copy buffer size. Non-positive values restore
// the default.
func SetCopySize(size int) {
	if size <= 0 {
		size = DefaultCopySize
	}
	copySize.Store(int64(size))
}
