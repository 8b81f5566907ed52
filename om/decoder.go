package om

import (
	"fmt"

	"github.com/weatherkit/omfile/internal/pfor"
)

// chunkShape returns the actual (possibly short, at the boundary) extent of
// chunk globalChunkNum along every dimension (spec §3).
func chunkShape(m Metadata, globalChunkNum int64) []int64 {
	nChunks := m.NChunks()
	coord := globalChunkCoord(globalChunkNum, nChunks)
	shape := make([]int64, m.NDims())
	for i := range shape {
		shape[i] = chunkLength(m.Dims[i], m.Chunks[i], coord[i])
	}
	return shape
}

func chunkElementCount(shape []int64) int64 {
	n := int64(1)
	for _, s := range shape {
		n *= s
	}
	return n
}

// decodeChunk runs the first three steps of the per-chunk pipeline spec §4.4
// documents (scatterChunk does the fourth, the scatter): codec decompress,
// 2-D delta decode, scalar unscale, leaving the result as
// a row-major float32 buffer shaped like shape (last dimension fastest).
// compressed must be exactly this chunk's byte range: PlanDataRead may
// coalesce several chunks into one I/O, but the session slices each
// chunk's own bytes out of that buffer using the LutWindow before calling
// decodeChunk, so the codec always consumes exactly len(compressed) bytes.
// decodeChunk's intScratch parameter is reused across calls to amortize
// int16 buffer allocation over the many chunks one Read typically decodes;
// the (possibly grown) buffer is returned so the caller can hand it back in
// on the next call.
// floatOut must already have length chunkElementCount(shape); callers
// typically source it from a ChunkBufferPool to amortize allocation.
func decodeChunk(m Metadata, shape []int64, compressed []byte, intScratch []int16, floatOut []float32) (scratch []int16, err error) {
	nElements := chunkElementCount(shape)
	if int64(len(intScratch)) < nElements {
		intScratch = make([]int16, nElements)
	} else {
		intScratch = intScratch[:nElements]
	}

	consumed, derr := pfor.Decode(compressed, int(nElements), intScratch)
	if derr != nil {
		return intScratch, fmt.Errorf("%w: %v", ErrCodecFailure, derr)
	}
	if consumed != len(compressed) {
		return intScratch, fmt.Errorf("%w: codec consumed %d of %d allotted bytes", ErrDecodeMismatch, consumed, len(compressed))
	}

	cols := shape[len(shape)-1]
	rows := nElements / cols
	pfor.Delta2DDecode(int(rows), int(cols), intScratch)

	for i, v := range intScratch {
		floatOut[i] = unscale(v, m.Compression, m.ScaleFactor)
	}
	return intScratch, nil
}

// dimCursor walks the mixed-radix odometer over every dimension but the
// last (spec §9 design note: a fastest-to-slowest stride-with-carry walk),
// so scatterChunk can visit each row of the last, contiguous dimension
// exactly once without recursion.
type dimCursor struct {
	counts []int64
	idx    []int64
	done   bool
}

func newDimCursor(dims []DimIntersection) *dimCursor {
	n := len(dims) - 1
	if n <= 0 {
		return &dimCursor{}
	}
	counts := make([]int64, n)
	for i := 0; i < n; i++ {
		counts[i] = dims[i].LocalEnd - dims[i].LocalStart
		if counts[i] <= 0 {
			return &dimCursor{done: true}
		}
	}
	return &dimCursor{counts: counts, idx: make([]int64, n)}
}

// next returns the current outer-dimension offsets and advances the
// odometer (fastest-varying outer dimension is the one nearest the last,
// contiguous dimension), or ok=false once every combination has been
// visited.
func (c *dimCursor) next() (idx []int64, ok bool) {
	if c.done {
		return nil, false
	}
	if len(c.counts) == 0 {
		c.done = true
		return nil, true
	}
	idx = append([]int64(nil), c.idx...)
	for i := len(c.counts) - 1; i >= 0; i-- {
		c.idx[i]++
		if c.idx[i] < c.counts[i] {
			return idx, true
		}
		c.idx[i] = 0
		if i == 0 {
			c.done = true
		}
	}
	return idx, true
}

// strides computes row-major strides (last dimension fastest) for shape.
func strides(shape []int64) []int64 {
	n := len(shape)
	s := make([]int64, n)
	if n == 0 {
		return s
	}
	s[n-1] = 1
	for i := n - 2; i >= 0; i-- {
		s[i] = s[i+1] * shape[i+1]
	}
	return s
}

// scatterChunk copies decoded, one chunk's worth of elements into out
// (shaped outShape, row-major, last dimension fastest), per spec §4.4 step
// 6: the last dimension's intersection is always contiguous in both the
// chunk buffer and the output buffer, so every copy is a single linear run
// rather than an element-at-a-time walk (spec §8 "Linearization
// equivalence").
func scatterChunk(dims []DimIntersection, decoded []float32, chunkShape []int64, out []float32, outShape []int64) {
	last := len(dims) - 1
	runLen := dims[last].LocalEnd - dims[last].LocalStart
	if runLen <= 0 {
		return
	}

	chunkStrides := strides(chunkShape)
	outStrides := strides(outShape)

	cur := newDimCursor(dims)
	for {
		idx, ok := cur.next()
		if !ok {
			return
		}
		localOffset := dims[last].LocalStart
		intoOffset := dims[last].IntoStart
		for i := 0; i < last; i++ {
			localOffset += (dims[i].LocalStart + idx[i]) * chunkStrides[i]
			intoOffset += (dims[i].IntoStart + idx[i]) * outStrides[i]
		}
		copy(out[intoOffset:intoOffset+runLen], decoded[localOffset:localOffset+runLen])
	}
}
