package cpu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/edsrzf/mmap-go"

	"github.com/23skdu/tritbench/internal/metrics"
)

var ErrBudgetExceeded = errors.New("cpu: memory budget exceeded")

var allocatedBytes int64

func traceAlloc(delta int64) {
	newVal := atomic.AddInt64(&allocatedBytes, delta)
	metrics.RecordArenaBytes(newVal)
}

func AllocatedBytes() int64 {
	return atomic.LoadInt64(&allocatedBytes)
}

// Context hands out zeroed buffers, each backed by its own anonymous
// mapping. A failed map is returned as an error. Free unmaps everything at
// once.
type Context struct {
	mu     sync.Mutex
	maps   []mmap.MMap
	held   int64
	budget int64
}

// NewContext returns an arena that refuses to hold more than budget bytes.
func NewContext(budget int64) *Context {
	return &Context{budget: budget}
}

func (c *Context) acquire(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("cpu: invalid buffer size %d", n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held+int64(n) > c.budget {
		metrics.RecordAllocationFailure()
		return nil, fmt.Errorf("%w: %d + %d > %d bytes", ErrBudgetExceeded, c.held, n, c.budget)
	}
	m, err := mmap.MapRegion(nil, n, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		metrics.RecordAllocationFailure()
		return nil, fmt.Errorf("cpu: map %d bytes: %w", n, err)
	}
	c.maps = append(c.maps, m)
	c.held += int64(n)
	traceAlloc(int64(n))
	return m[:n], nil
}

// Bytes returns a zeroed byte buffer of length n.
func (c *Context) Bytes(n int) ([]byte, error) {
	return c.acquire(n)
}

// Int8s returns a zeroed int8 buffer of length n.
func (c *Context) Int8s(n int) ([]int8, error) {
	b, err := c.acquire(n)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*int8)(unsafe.Pointer(&b[0])), n), nil
}

// Float32s returns a zeroed float32 buffer of length n. Mappings are page
// aligned, which satisfies float32 alignment.
func (c *Context) Float32s(n int) ([]float32, error) {
	if n <= 0 {
		return nil, fmt.Errorf("cpu: invalid buffer size %d", n)
	}
	b, err := c.acquire(4 * n)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n), nil
}

// Held is the number of bytes currently mapped by this context.
func (c *Context) Held() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held
}

// Free unmaps every buffer. Slices handed out earlier must not be used
// afterwards.
func (c *Context) Free() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for _, m := range c.maps {
		if err := m.Unmap(); err != nil {
			errs = append(errs, err)
		}
	}
	traceAlloc(-c.held)
	c.maps = nil
	c.held = 0
	return errors.Join(errs...)
}
