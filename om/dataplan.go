package om

import (
	"encoding/binary"
	"fmt"
)

// LutWindow holds the decoded LUT entries covering one IndexPlan's chunk
// range, and answers "where does chunk k start and end" uniformly for
// both on-disk versions (spec §9 design note: a single concrete type
// replacing an implicit version branch). Both version 2 and version 3 LUTs
// share the same entry semantics once opened (spec §3): entry k is the end
// offset of chunk k, the start of chunk k is entry k-1, and the start of
// chunk 0 is always 0 — only how LutStart/DataStart were computed at open
// time differs between versions, and that is already folded into
// Metadata.
type LutWindow struct {
	entries         []int64
	firstEntryChunk int64
}

// newLutWindow decodes the raw LUT bytes an IndexPlan's byte range
// produced into a LutWindow, validating monotonicity (spec §7 CorruptLut).
func newLutWindow(plan IndexPlan, buf []byte) (LutWindow, error) {
	if int64(len(buf)) != plan.Count {
		return LutWindow{}, fmt.Errorf("%w: index read returned %d bytes, planned %d", ErrCorruptLut, len(buf), plan.Count)
	}
	if len(buf)%8 != 0 {
		return LutWindow{}, fmt.Errorf("%w: lut byte range %d is not a multiple of 8", ErrCorruptLut, len(buf))
	}

	n := len(buf) / 8
	entries := make([]int64, n)
	for i := 0; i < n; i++ {
		entries[i] = int64(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	for i := 1; i < n; i++ {
		if entries[i] < entries[i-1] {
			return LutWindow{}, fmt.Errorf("%w: entry %d (%d) precedes entry %d (%d)", ErrCorruptLut, i, entries[i], i-1, entries[i-1])
		}
	}

	firstEntryChunk := plan.RangeLo
	if plan.RangeLo != 0 {
		firstEntryChunk = plan.RangeLo - 1
	}
	return LutWindow{entries: entries, firstEntryChunk: firstEntryChunk}, nil
}

// End returns the end offset (exclusive) of chunk chunkNum's compressed
// bytes within the data region.
func (w LutWindow) End(chunkNum int64) int64 {
	return w.entries[chunkNum-w.firstEntryChunk]
}

// Start returns the start offset of chunk chunkNum's compressed bytes: 0
// for chunk 0, otherwise the previous chunk's end (spec §3).
func (w LutWindow) Start(chunkNum int64) int64 {
	if chunkNum == 0 {
		return 0
	}
	return w.entries[chunkNum-1-w.firstEntryChunk]
}

// DataPlan is one coalesced compressed-data read: a single byte range
// covering chunks [FirstChunk, LastChunk] inclusive, plus the next chunk
// position (if any) the merge thresholds or the LUT window's boundary
// prevented from joining this read (spec §4.3). Offset is an absolute byte
// offset into the byte source (LUT entries are relative to the data
// region, so Offset always includes Metadata.DataStart); RelOffset is the
// same position relative to DataStart, which is what a LutWindow's
// Start/End values are directly comparable against when slicing a single
// chunk's bytes out of the buffer this plan's read produced.
type DataPlan struct {
	Offset, RelOffset, Count int64
	FirstChunk, LastChunk    int64
	HasNext                  bool
	NextLo, NextHi           int64
}

// PlanDataRead emits a single coalesced compressed-data byte range for the
// chunk run beginning at current, merging forward within lut (and, when
// current is exhausted, into subsequent runs via nextChunkRange) as long
// as either the total span stays within t.IOSizeMax or the gap to the next
// chunk's start stays within t.IOSizeMerge. Crossing into a fresh
// next_chunk_range run is only permitted while that run's start still
// falls inside lutRangeHi — otherwise the outer session loop must fetch a
// fresh LUT read first (spec §4.3).
func PlanDataRead(m Metadata, req ReadRequest, t Tunables, lut LutWindow, lutRangeHi int64, current ChunkRange) (DataPlan, error) {
	if current.Empty() {
		return DataPlan{}, fmt.Errorf("%w: empty chunk range passed to data planner", ErrBadMetadata)
	}

	startPos := lut.Start(current.Lo)
	lastChunk := current.Lo
	endPos := lut.End(current.Lo)
	runLo, runHi := current.Lo, current.Hi

	for {
		var candidate, candidateRunLo, candidateRunHi int64
		if lastChunk+1 < runHi {
			candidate, candidateRunLo, candidateRunHi = lastChunk+1, runLo, runHi
		} else {
			nlo, nhi, ok := nextChunkRange(m, req, lastChunk)
			if !ok {
				return DataPlan{Offset: m.DataStart + startPos, RelOffset: startPos, Count: endPos - startPos, FirstChunk: current.Lo, LastChunk: lastChunk}, nil
			}
			if nlo >= lutRangeHi {
				return DataPlan{
					Offset: m.DataStart + startPos, RelOffset: startPos, Count: endPos - startPos,
					FirstChunk: current.Lo, LastChunk: lastChunk,
					HasNext: true, NextLo: nlo, NextHi: nhi,
				}, nil
			}
			candidate, candidateRunLo, candidateRunHi = nlo, nlo, nhi
		}

		candidateEnd := lut.End(candidate)
		candidateStart := lut.Start(candidate)
		candidateSpan := candidateEnd - startPos
		gap := candidateStart - endPos

		if candidateSpan <= t.IOSizeMax || gap <= t.IOSizeMerge {
			lastChunk = candidate
			endPos = candidateEnd
			runLo, runHi = candidateRunLo, candidateRunHi
			continue
		}

		return DataPlan{
			Offset: m.DataStart + startPos, RelOffset: startPos, Count: endPos - startPos,
			FirstChunk: current.Lo, LastChunk: lastChunk,
			HasNext: true, NextLo: candidate, NextHi: candidateRunHi,
		}, nil
	}
}
