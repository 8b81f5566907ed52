package om

import "fmt"

// ReadRequest is the immutable-per-call description of a hyper-rectangular
// read (spec §3 "Read request").
type ReadRequest struct {
	// Offset and Count describe the half-open interval [Offset[i],
	// Offset[i]+Count[i]) within [0, Dims[i]) for each dimension.
	Offset []int64
	Count  []int64
	// IntoCoordLower is where, inside the target cube, the read region's
	// origin lands.
	IntoCoordLower []int64
	// IntoCubeDimension is the extent of the target cube along each
	// dimension; IntoCoordLower[i]+Count[i] <= IntoCubeDimension[i].
	IntoCubeDimension []int64
}

// Validate checks a ReadRequest against metadata per spec §7 OutOfBounds.
func (r ReadRequest) Validate(m Metadata) error {
	n := m.NDims()
	if len(r.Offset) != n || len(r.Count) != n || len(r.IntoCoordLower) != n || len(r.IntoCubeDimension) != n {
		return fmt.Errorf("%w: request rank does not match metadata rank %d", ErrOutOfBounds, n)
	}
	for i := 0; i < n; i++ {
		if r.Offset[i] < 0 || r.Count[i] < 0 || r.Offset[i]+r.Count[i] > m.Dims[i] {
			return fmt.Errorf("%w: dim %d read [%d, %d) exceeds extent %d", ErrOutOfBounds, i, r.Offset[i], r.Offset[i]+r.Count[i], m.Dims[i])
		}
		if r.IntoCoordLower[i] < 0 || r.IntoCoordLower[i]+r.Count[i] > r.IntoCubeDimension[i] {
			return fmt.Errorf("%w: dim %d scatter placement [%d, %d) exceeds cube dimension %d", ErrOutOfBounds, i, r.IntoCoordLower[i], r.IntoCoordLower[i]+r.Count[i], r.IntoCubeDimension[i])
		}
	}
	return nil
}

// chunkWindow is the half-open chunk-index range [Lo, Hi) along one
// dimension that intersects a ReadRequest, i.e. [floor(offset/chunks),
// ceil((offset+count)/chunks)).
type chunkWindow struct {
	Lo, Hi int64
}

func requestWindows(m Metadata, req ReadRequest) []chunkWindow {
	n := m.NDims()
	w := make([]chunkWindow, n)
	for i := 0; i < n; i++ {
		w[i] = chunkWindow{
			Lo: req.Offset[i] / m.Chunks[i],
			Hi: ceilDiv(req.Offset[i]+req.Count[i], m.Chunks[i]),
		}
	}
	return w
}

// chunkLength returns length[i] for chunk coordinate c along dimension i:
// the chunk's extent, clamped at the short boundary chunk (spec §3).
func chunkLength(dim, chunkExtent, c int64) int64 {
	start := c * chunkExtent
	end := start + chunkExtent
	if end > dim {
		end = dim
	}
	return end - start
}

// globalChunkCoord decodes globalChunkNum into per-dimension chunk
// coordinates, with the last dimension fastest-varying (spec §3).
func globalChunkCoord(globalChunkNum int64, nChunks []int64) []int64 {
	n := len(nChunks)
	c := make([]int64, n)
	rem := globalChunkNum
	for i := n - 1; i >= 0; i-- {
		c[i] = rem % nChunks[i]
		rem /= nChunks[i]
	}
	return c
}

// globalChunkNumber is the inverse of globalChunkCoord: it flattens
// per-dimension chunk coordinates into a single chunk number using
// row-major strides (dimension N-1 fastest).
func globalChunkNumber(coord, nChunks []int64) int64 {
	num := int64(0)
	for i := 0; i < len(coord); i++ {
		num = num*nChunks[i] + coord[i]
	}
	return num
}

// chunkRangeFold implements the shared fold spec.md §4.1 describes for
// first_chunk_range and, generalized with a partially-fixed coordinate
// prefix, for next_chunk_range: walking dimensions slowest to fastest,
// chunkStart always advances by the window's lower bound for that
// dimension; chunkEnd keeps multiplying by nChunks[i] while the window
// spans the dimension in full, and otherwise collapses to
// chunkStart+width, discarding any width accumulated by dimensions before
// it (those are only ever present at a single, fixed coordinate from this
// point's perspective).
func chunkRangeFold(nChunks []int64, windows []chunkWindow) (lo, hi int64) {
	chunkStart, chunkEnd := int64(0), int64(1)
	for i := 0; i < len(nChunks); i++ {
		nc := nChunks[i]
		w := windows[i]
		chunkStart = chunkStart*nc + w.Lo
		full := w.Lo == 0 && w.Hi == nc
		if full {
			chunkEnd *= nc
		} else {
			chunkEnd = chunkStart + (w.Hi - w.Lo)
		}
	}
	return chunkStart, chunkEnd
}

// firstChunkRange returns the first maximal contiguous run of global chunk
// numbers intersecting req (spec §4.1 first_chunk_range). It fixes every
// dimension before the last partially covered one to its request window's
// lower bound, spans that dimension's whole window, and extends the run
// through the trailing dimensions that the request covers in full.
func firstChunkRange(m Metadata, req ReadRequest) (lo, hi int64) {
	return chunkRangeFold(m.NChunks(), requestWindows(m, req))
}

// nextChunkRange returns the next maximal contiguous run after the run
// ending at lastChunk, or ok=false when the walk overflows the slowest
// dimension (spec §4.1 next_chunk_range).
func nextChunkRange(m Metadata, req ReadRequest, lastChunk int64) (lo, hi int64, ok bool) {
	nChunks := m.NChunks()
	windows := requestWindows(m, req)
	coord := globalChunkCoord(lastChunk, nChunks)

	fixedUpTo := -1
	for i := len(nChunks) - 1; i >= 0; i-- {
		if coord[i]+1 < windows[i].Hi {
			coord[i]++
			fixedUpTo = i
			break
		}
		coord[i] = windows[i].Lo
	}
	if fixedUpTo < 0 {
		return 0, 0, false
	}

	foldWindows := make([]chunkWindow, len(nChunks))
	for i := range nChunks {
		if i <= fixedUpTo {
			foldWindows[i] = chunkWindow{Lo: coord[i], Hi: coord[i] + 1}
		} else {
			foldWindows[i] = windows[i]
		}
	}
	lo, hi = chunkRangeFold(nChunks, foldWindows)
	return lo, hi, true
}

// DimIntersection describes, for one dimension, how a single chunk
// intersects the read request and where that intersection lands both
// inside the chunk and inside the target cube (spec §4.1
// per_chunk_intersection).
type DimIntersection struct {
	// LocalStart, LocalEnd bound the intersection within the chunk's own
	// local coordinate space [0, length[i]).
	LocalStart, LocalEnd int64
	// GlobalStart, GlobalEnd bound the intersection in the array's global
	// coordinate space.
	GlobalStart, GlobalEnd int64
	// IntoStart, IntoEnd bound the intersection inside the target cube.
	IntoStart, IntoEnd int64
	// ChunkLength is length[i], the chunk's own extent along this
	// dimension (possibly short at the boundary).
	ChunkLength int64
}

// perChunkIntersection computes, for every dimension, the clamped
// intersection of chunk globalChunkNum with req. The returned noOverlap is
// true when the chunk and the request share no elements along at least
// one dimension — which can still legitimately happen when a chunk was
// only read because of LUT/data coalescing (spec §4.1, §8 scenario S5).
func perChunkIntersection(m Metadata, req ReadRequest, globalChunkNum int64) (dims []DimIntersection, noOverlap bool) {
	nChunks := m.NChunks()
	coord := globalChunkCoord(globalChunkNum, nChunks)
	dims = make([]DimIntersection, m.NDims())

	for i := 0; i < m.NDims(); i++ {
		chunkStartGlobal := coord[i] * m.Chunks[i]
		length := chunkLength(m.Dims[i], m.Chunks[i], coord[i])
		chunkEndGlobal := chunkStartGlobal + length

		reqStart := req.Offset[i]
		reqEnd := req.Offset[i] + req.Count[i]

		start := max64(chunkStartGlobal, reqStart)
		end := min64(chunkEndGlobal, reqEnd)

		d := DimIntersection{ChunkLength: length}
		if start >= end {
			noOverlap = true
			continue
		}
		d.LocalStart = start - chunkStartGlobal
		d.LocalEnd = end - chunkStartGlobal
		d.GlobalStart = start
		d.GlobalEnd = end
		d.IntoStart = req.IntoCoordLower[i] + (start - reqStart)
		d.IntoEnd = req.IntoCoordLower[i] + (end - reqStart)
		dims[i] = d
	}
	return dims, noOverlap
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
