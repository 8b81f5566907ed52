package om

import "fmt"

// lutEntrySize is the width of one LUT slot: a 64-bit byte offset (spec §3).
const lutEntrySize = int64(8)

// ChunkRange is a half-open range of global chunk numbers known to form a
// single contiguous run in storage order (spec glossary "Linear run").
type ChunkRange struct {
	Lo, Hi int64
}

func (r ChunkRange) Empty() bool { return r.Hi <= r.Lo }

// Tunables bounds the I/O coalescing the index and data planners perform
// (spec §4.2, §4.3, §6). Both default to the values spec.md gives
// (IOSizeMerge=512, IOSizeMax=65536) and are exposed as struct fields so
// tests can force fragmentation (spec.md §8 property 4, scenario S6).
type Tunables struct {
	IOSizeMerge int64
	IOSizeMax   int64
}

// DefaultTunables returns spec.md §4.2/§6's documented defaults.
func DefaultTunables() Tunables {
	return Tunables{IOSizeMerge: 512, IOSizeMax: 65536}
}

// Validate rejects tunables that cannot plan a forward-progressing read
// (spec.md §4 expects io_size_max to be able to hold at least one LUT
// entry or one chunk's worst-case compressed size; io_size_merge must be
// non-negative).
func (t Tunables) Validate() error {
	if t.IOSizeMerge < 0 {
		return fmt.Errorf("%w: io_size_merge must be >= 0, got %d", ErrBadMetadata, t.IOSizeMerge)
	}
	if t.IOSizeMax < lutEntrySize {
		return fmt.Errorf("%w: io_size_max must be >= %d, got %d", ErrBadMetadata, lutEntrySize, t.IOSizeMax)
	}
	return nil
}

// IndexPlan is one coalesced LUT read: a single byte range covering the
// chunks [RangeLo, RangeHi), plus the next chunk range (if any) that the
// merge thresholds prevented from joining this read (spec §4.2).
type IndexPlan struct {
	Offset, Count    int64
	RangeLo, RangeHi int64
	HasNext          bool
	NextLo, NextHi   int64
}

// lutReadBounds returns the byte range [offset, offset+count) that covers
// the LUT entries for chunks [lo, hi). Per spec §4.2's offset convention:
// if the range starts at chunk 0 the read begins at byte 0 (so the read
// itself supplies chunk 0's implicit start-is-zero), otherwise the read
// begins 8 bytes before chunk lo's slot so the "previous end = this
// start" lookup is satisfied from the same contiguous region.
func lutReadBounds(m Metadata, lo, hi int64) (offset, count int64) {
	end := m.lutEntryOffset(hi)
	if lo == 0 {
		return m.lutEntryOffset(0), end - m.lutEntryOffset(0)
	}
	start := m.lutEntryOffset(lo) - lutEntrySize
	return start, end - start
}

// PlanIndexRead emits a single coalesced LUT byte range for the chunk run
// beginning at current, merging forward into subsequent runs (discovered
// via nextChunkRange) as long as the gap between consecutive LUT slots
// stays within t.IOSizeMerge and the total LUT read stays within
// t.IOSizeMax (spec §4.2).
func PlanIndexRead(m Metadata, req ReadRequest, t Tunables, current ChunkRange) (IndexPlan, error) {
	if current.Empty() {
		return IndexPlan{}, fmt.Errorf("%w: empty chunk range passed to index planner", ErrBadMetadata)
	}

	rangeLo, rangeHi := current.Lo, current.Hi
	offset, count := lutReadBounds(m, rangeLo, rangeHi)

	for {
		nlo, nhi, ok := nextChunkRange(m, req, rangeHi-1)
		if !ok {
			return IndexPlan{Offset: offset, Count: count, RangeLo: rangeLo, RangeHi: rangeHi}, nil
		}

		gap := (nlo - rangeHi) * lutEntrySize
		_, candidateCount := lutReadBounds(m, rangeLo, nhi)

		if gap > t.IOSizeMerge || candidateCount > t.IOSizeMax {
			return IndexPlan{
				Offset: offset, Count: count,
				RangeLo: rangeLo, RangeHi: rangeHi,
				HasNext: true, NextLo: nlo, NextHi: nhi,
			}, nil
		}

		rangeHi = nhi
		count = candidateCount
	}
}
