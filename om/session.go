package om

import (
	"context"
	"fmt"
)

// Session is a synchronous decode session bound to one Metadata and one
// ByteSource (spec §4.5, §5). It owns no goroutines and is not safe for
// concurrent Read calls; callers that want concurrency create one Session
// per goroutine over a shared ByteSource (spec §5 "Concurrency & Resource
// Model" — ByteSource implementations must tolerate concurrent ReadAt,
// Session itself must not be shared).
type Session struct {
	meta     Metadata
	src      ByteSource
	tunables Tunables

	intScratch []int16
	floatPool  *ChunkBufferPool
}

// NewSession builds a decode session over src using meta and t. Passing a
// zero Tunables is treated as DefaultTunables.
func NewSession(meta Metadata, src ByteSource, t Tunables) (*Session, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if t == (Tunables{}) {
		t = DefaultTunables()
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Session{meta: meta, src: src, tunables: t, floatPool: NewChunkBufferPool()}, nil
}

// Read decodes req out of the session's byte source and scatters it into
// out, which must be sized len(out) == product(req.IntoCubeDimension) and
// laid out row-major with the last dimension fastest (spec §4.5, §6).
//
// Read drives the planners in the merge-forward loop spec §4.5 describes:
// an index read covers one or more contiguous chunk-number runs; for each
// LUT window it plans and issues data reads, decoding and scattering every
// chunk those reads cover, until either the data planner runs out of
// chunks entirely or it needs chunks beyond what the current LUT window
// covers, at which point a fresh index read is planned.
func (s *Session) Read(ctx context.Context, req ReadRequest, out []float32) error {
	if err := req.Validate(s.meta); err != nil {
		return err
	}
	wantLen := int64(1)
	for _, d := range req.IntoCubeDimension {
		wantLen *= d
	}
	if int64(len(out)) != wantLen {
		return fmt.Errorf("%w: out has %d elements, IntoCubeDimension wants %d", ErrOutOfBounds, len(out), wantLen)
	}

	chunkLo, chunkHi := firstChunkRange(s.meta, req)
	current := ChunkRange{Lo: chunkLo, Hi: chunkHi}

	for {
		indexPlan, err := PlanIndexRead(s.meta, req, s.tunables, current)
		if err != nil {
			return err
		}
		lutBuf, err := s.src.ReadAt(ctx, indexPlan.Offset, indexPlan.Count)
		if err != nil {
			return err
		}
		lut, err := newLutWindow(indexPlan, lutBuf)
		if err != nil {
			return err
		}

		dataRange := current
		for {
			dataPlan, err := PlanDataRead(s.meta, req, s.tunables, lut, indexPlan.RangeHi, dataRange)
			if err != nil {
				return err
			}
			size, err := s.src.Size(ctx)
			if err != nil {
				return err
			}
			if dataPlan.Offset+dataPlan.Count > size {
				return fmt.Errorf("%w: data read [%d, %d) past end of source (%d bytes)", ErrCorruptLut, dataPlan.Offset, dataPlan.Offset+dataPlan.Count, size)
			}
			dataBuf, err := s.src.ReadAt(ctx, dataPlan.Offset, dataPlan.Count)
			if err != nil {
				return err
			}
			if err := s.decodeAndScatter(req, lut, dataPlan, dataBuf, out); err != nil {
				return err
			}

			if !dataPlan.HasNext {
				return nil
			}
			if dataPlan.NextLo >= indexPlan.RangeHi {
				current = ChunkRange{Lo: dataPlan.NextLo, Hi: dataPlan.NextHi}
				break
			}
			dataRange = ChunkRange{Lo: dataPlan.NextLo, Hi: dataPlan.NextHi}
		}
	}
}

// decodeAndScatter decodes and scatters every chunk dataPlan's read
// covered. Chunks that share no elements with req (possible when
// coalescing pulled in a chunk only to bridge a gap, spec §8 scenario S5)
// are skipped without decoding.
func (s *Session) decodeAndScatter(req ReadRequest, lut LutWindow, dataPlan DataPlan, dataBuf []byte, out []float32) error {
	for chunkNum := dataPlan.FirstChunk; chunkNum <= dataPlan.LastChunk; chunkNum++ {
		dims, noOverlap := perChunkIntersection(s.meta, req, chunkNum)
		if noOverlap {
			continue
		}

		start := lut.Start(chunkNum) - dataPlan.RelOffset
		end := lut.End(chunkNum) - dataPlan.RelOffset
		if start < 0 || end > int64(len(dataBuf)) || start > end {
			return fmt.Errorf("%w: chunk %d byte range [%d, %d) outside planned read of %d bytes", ErrCorruptLut, chunkNum, start, end, len(dataBuf))
		}
		if start == end {
			return fmt.Errorf("%w: chunk %d has a zero-length byte range", ErrCorruptLut, chunkNum)
		}

		shape := chunkShape(s.meta, chunkNum)
		nElements := int(chunkElementCount(shape))
		decoded := s.floatPool.Get(nElements)
		scratch, err := decodeChunk(s.meta, shape, dataBuf[start:end], s.intScratch, decoded)
		s.intScratch = scratch
		if err != nil {
			s.floatPool.Put(decoded)
			return err
		}
		scatterChunk(dims, decoded, shape, out, req.IntoCubeDimension)
		s.floatPool.Put(decoded)
	}
	return nil
}

// Close releases the session's byte source.
func (s *Session) Close() error {
	return s.src.Close()
}
