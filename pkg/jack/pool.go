package jack

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// poolBuffer is one fixed-length run of samples inside a pool region.
type poolBuffer struct {
	samples []float32
	owned   atomic.Bool
	pool    *Pool
}

// Pool is a fixed set of equally sized sample buffers that audio slices are
// drawn from and expire back into. On unix systems the buffers live in an
// anonymous memory mapping outside the Go heap, each starting on a page
// boundary, so native code can address them directly.
//
// A buffer is owned by at most one live slice at a time. Acquire is safe to
// call from a process listener.
type Pool struct {
	length  int
	buffers []*poolBuffer
	free    chan *poolBuffer

	closeOnce sync.Once
	closed    chan struct{}
	mu        sync.Mutex
	release   func() error
}

// NewPool allocates count buffers of length samples each.
func NewPool(count, length int) (*Pool, error) {
	if count <= 0 || length <= 0 {
		return nil, fmt.Errorf("jack: pool needs a positive buffer count and length, got %d x %d", count, length)
	}

	const sampleSize = int(unsafe.Sizeof(float32(0)))
	page := pageSize()
	stride := (length*sampleSize + page - 1) / page * page

	region, release, err := allocRegion(count * stride)
	if err != nil {
		return nil, fmt.Errorf("jack: allocating %d bytes of pool memory: %w", count*stride, err)
	}

	p := &Pool{
		length:  length,
		buffers: make([]*poolBuffer, count),
		free:    make(chan *poolBuffer, count),
		closed:  make(chan struct{}),
		release: release,
	}
	for i := range count {
		b := &poolBuffer{
			samples: unsafe.Slice((*float32)(unsafe.Pointer(&region[i*stride])), length),
			pool:    p,
		}
		p.buffers[i] = b
		p.free <- b
	}
	return p, nil
}

// Acquire returns a zeroed slice without waiting. It fails with
// ErrPoolExhausted when every buffer is in use.
func (p *Pool) Acquire() (*Mutable, error) {
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	default:
	}
	select {
	case b := <-p.free:
		return p.take(b), nil
	default:
		return nil, ErrPoolExhausted
	}
}

// AcquireContext waits until a buffer is free, ctx is done, or the pool is
// closed.
func (p *Pool) AcquireContext(ctx context.Context) (*Mutable, error) {
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	case b := <-p.free:
		return p.take(b), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) take(b *poolBuffer) *Mutable {
	if !b.owned.CompareAndSwap(false, true) {
		panic("jack: pool buffer handed out while owned")
	}
	clear(b.samples)
	return newMutable(&sliceStore{samples: b.samples, buf: b})
}

func (p *Pool) recycle(b *poolBuffer) {
	if !b.owned.CompareAndSwap(true, false) {
		panic("jack: pool buffer recycled twice")
	}
	p.free <- b
}

// Available returns the number of free buffers.
func (p *Pool) Available() int {
	return len(p.free)
}

// Len returns the number of samples per buffer.
func (p *Pool) Len() int {
	return p.length
}

// Cap returns the number of buffers.
func (p *Pool) Cap() int {
	return len(p.buffers)
}

// Close releases the pool memory. It fails with ErrPoolBusy while slices from
// the pool are still live, leaving the pool usable. Closing twice is a no-op.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.closed:
		return nil
	default:
	}

	// Hold every buffer so nothing can be acquired while the region goes away.
	held := make([]*poolBuffer, 0, len(p.buffers))
	for len(held) < len(p.buffers) {
		select {
		case b := <-p.free:
			held = append(held, b)
		default:
			for _, b := range held {
				p.free <- b
			}
			return fmt.Errorf("%w: %d of %d buffers in use", ErrPoolBusy, len(p.buffers)-len(held), len(p.buffers))
		}
	}

	p.closeOnce.Do(func() { close(p.closed) })
	for _, b := range p.buffers {
		b.samples = nil
	}
	return p.release()
}
