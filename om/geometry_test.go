package om

import "testing"

func testMeta(t *testing.T, dims, chunks []int64) Metadata {
	m, err := NewMetadataV2(dims, chunks, 100, CompressionLinearQuantized, 0)
	if err != nil {
		t.Fatalf("NewMetadataV2: %v", err)
	}
	return m
}

func requireEqual64(t *testing.T, got, want int64, what string) {
	t.Helper()
	if got != want {
		t.Fatalf("%s: got %d, want %d", what, got, want)
	}
}

// Tiling: the first/next chunk-range walk visits every chunk that
// intersects the request exactly once, in ascending global-chunk-number
// order, grouped into maximal contiguous runs.
func TestChunkRangeFoldFullRead(t *testing.T) {
	// dims=[4,4,4], chunks=[2,2,2] -> nChunks=[2,2,2], 8 chunks total.
	// A full read covers every chunk, one contiguous run [0, 8).
	m := testMeta(t, []int64{4, 4, 4}, []int64{2, 2, 2})
	req := ReadRequest{
		Offset: []int64{0, 0, 0}, Count: []int64{4, 4, 4},
		IntoCoordLower: []int64{0, 0, 0}, IntoCubeDimension: []int64{4, 4, 4},
	}

	lo, hi := firstChunkRange(m, req)
	requireEqual64(t, lo, 0, "lo")
	requireEqual64(t, hi, 8, "hi")

	_, _, ok := nextChunkRange(m, req, hi-1)
	if ok {
		t.Fatalf("expected no further run after a full read")
	}
}

// Partial-fastest-dimension reads must produce several short contiguous
// runs rather than one long one.
func TestChunkRunsPartialFastestDimension(t *testing.T) {
	// dims=[4,4], chunks=[2,2] -> nChunks=[2,2], chunk numbers laid out
	// row-major (last dim fastest): row 0 = {0,1}, row 1 = {2,3}.
	// Reading only column chunk 0 (x in [0,2)) for both rows should
	// produce two singleton runs: [0,1) then [2,3).
	m := testMeta(t, []int64{4, 4}, []int64{2, 2})
	req := ReadRequest{
		Offset: []int64{0, 0}, Count: []int64{4, 2},
		IntoCoordLower: []int64{0, 0}, IntoCubeDimension: []int64{4, 2},
	}

	lo, hi := firstChunkRange(m, req)
	requireEqual64(t, lo, 0, "lo")
	requireEqual64(t, hi, 1, "hi")

	nlo, nhi, ok := nextChunkRange(m, req, hi-1)
	if !ok {
		t.Fatalf("expected a second run")
	}
	requireEqual64(t, nlo, 2, "nlo")
	requireEqual64(t, nhi, 3, "nhi")

	_, _, ok = nextChunkRange(m, req, nhi-1)
	if ok {
		t.Fatalf("expected no third run")
	}
}

func TestChunkRunsPartialSlowestDimension(t *testing.T) {
	// dims=[4,4], chunks=[2,2]. Reading only row chunk 0 (y in [0,2)) for
	// all columns covers chunks {0,1}, a single contiguous run since the
	// fastest dimension is read in full.
	m := testMeta(t, []int64{4, 4}, []int64{2, 2})
	req := ReadRequest{
		Offset: []int64{0, 0}, Count: []int64{2, 4},
		IntoCoordLower: []int64{0, 0}, IntoCubeDimension: []int64{2, 4},
	}

	lo, hi := firstChunkRange(m, req)
	requireEqual64(t, lo, 0, "lo")
	requireEqual64(t, hi, 2, "hi")

	_, _, ok := nextChunkRange(m, req, hi-1)
	if ok {
		t.Fatalf("expected a single run")
	}
}

func TestChunkRunsThreeDPartialMiddleDimension(t *testing.T) {
	// dims=[4,4,4], chunks=[2,2,2] -> nChunks=[2,2,2]. Reading the full
	// fastest and slowest dimensions but only the first chunk of the
	// middle dimension should yield the two contiguous runs [0,2) and
	// [4,6) (the middle chunk coordinate toggles between the two full
	// "planes" of the slowest dimension).
	m := testMeta(t, []int64{4, 4, 4}, []int64{2, 2, 2})
	req := ReadRequest{
		Offset: []int64{0, 0, 0}, Count: []int64{4, 2, 4},
		IntoCoordLower: []int64{0, 0, 0}, IntoCubeDimension: []int64{4, 2, 4},
	}

	lo, hi := firstChunkRange(m, req)
	requireEqual64(t, lo, 0, "lo")
	requireEqual64(t, hi, 2, "hi")

	nlo, nhi, ok := nextChunkRange(m, req, hi-1)
	if !ok {
		t.Fatalf("expected a second run")
	}
	requireEqual64(t, nlo, 4, "nlo")
	requireEqual64(t, nhi, 6, "nhi")

	_, _, ok = nextChunkRange(m, req, nhi-1)
	if ok {
		t.Fatalf("expected no third run")
	}
}

func TestPerChunkIntersectionClampsAtBoundary(t *testing.T) {
	// dims=[5], chunks=[2] -> chunks are {0,1},{2,3},{4} (short last chunk
	// of length 1). Reading [1,5) intersects chunk 0 at local [1,2),
	// chunk 1 in full, and chunk 2 (length 1) in full.
	m := testMeta(t, []int64{5}, []int64{2})
	req := ReadRequest{
		Offset: []int64{1}, Count: []int64{4},
		IntoCoordLower: []int64{0}, IntoCubeDimension: []int64{4},
	}

	dims, noOverlap := perChunkIntersection(m, req, 0)
	if noOverlap {
		t.Fatalf("chunk 0 should overlap")
	}
	requireEqual64(t, dims[0].LocalStart, 1, "chunk0 localStart")
	requireEqual64(t, dims[0].LocalEnd, 2, "chunk0 localEnd")
	requireEqual64(t, dims[0].IntoStart, 0, "chunk0 intoStart")

	dims, noOverlap = perChunkIntersection(m, req, 2)
	if noOverlap {
		t.Fatalf("chunk 2 should overlap")
	}
	requireEqual64(t, dims[0].ChunkLength, 1, "chunk2 length")
	requireEqual64(t, dims[0].LocalStart, 0, "chunk2 localStart")
	requireEqual64(t, dims[0].LocalEnd, 1, "chunk2 localEnd")
	requireEqual64(t, dims[0].IntoStart, 3, "chunk2 intoStart")
}
