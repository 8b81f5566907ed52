package om

import "sync"

// ChunkBufferPool amortizes the per-chunk float32 decode buffer allocation
// across the many chunks a single Read, or many Reads against one Session,
// typically touch. It is a supplement to the core spec: nothing in spec §4
// requires it, but a Session built without one would allocate a fresh
// decode buffer per chunk, which the teacher's own Dataset.NextBatch avoids
// by reusing a batch buffer across calls.
type ChunkBufferPool struct {
	pool sync.Pool
}

// NewChunkBufferPool returns an empty pool. The zero value is usable too;
// this constructor exists for symmetry with the rest of the package's
// New-prefixed constructors.
func NewChunkBufferPool() *ChunkBufferPool {
	return &ChunkBufferPool{}
}

// Get returns a []float32 with length n, reused from the pool when a
// large-enough buffer is available.
func (p *ChunkBufferPool) Get(n int) []float32 {
	v := p.pool.Get()
	if v == nil {
		return make([]float32, n)
	}
	buf := v.([]float32)
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}

// Put returns buf to the pool for reuse by a later Get.
func (p *ChunkBufferPool) Put(buf []float32) {
	p.pool.Put(buf) //nolint:staticcheck // pool element need not be a pointer; float32 slices are cheap to box here
}
