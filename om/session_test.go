package om_test

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weatherkit/omfile/internal/pfor"
	"github.com/weatherkit/omfile/om"
)

// buildV2File writes a minimal, self-consistent version-2 .om file to dir
// and returns its path plus the metadata a caller would independently
// derive from an out-of-scope header parser. Every chunk is scalar-encoded
// as v*scaleFactor, 2-D delta-encoded per row/cross-row, then packed by the
// pfor codec, mirroring what an encoder honoring spec §3/§6 would write.
func buildV2File(t *testing.T, dims, chunks []int64, scaleFactor float32, values func(coord []int64) float32) (string, om.Metadata) {
	t.Helper()
	const headerLength = 16

	meta, err := om.NewMetadataV2(dims, chunks, scaleFactor, om.CompressionLinearQuantized, headerLength)
	require.NoError(t, err)

	nChunks := meta.NChunks()
	total := int64(1)
	for _, n := range nChunks {
		total *= n
	}

	var dataBuf []byte
	lut := make([]int64, total)
	for chunkNum := int64(0); chunkNum < total; chunkNum++ {
		coord := decodeChunkCoordForTest(chunkNum, nChunks)
		shape := make([]int64, len(dims))
		nElements := int64(1)
		for i := range dims {
			start := coord[i] * chunks[i]
			end := start + chunks[i]
			if end > dims[i] {
				end = dims[i]
			}
			shape[i] = end - start
			nElements *= shape[i]
		}

		raw := make([]int16, nElements)
		walkChunkElements(shape, func(local []int64, flat int) {
			global := make([]int64, len(dims))
			for i := range dims {
				global[i] = coord[i]*chunks[i] + local[i]
			}
			v := values(global)
			raw[flat] = scaleForTest(v, scaleFactor)
		})

		cols := shape[len(shape)-1]
		rows := nElements / cols
		pfor.Delta2DEncode(int(rows), int(cols), raw)
		encoded := pfor.Encode(raw)
		dataBuf = append(dataBuf, encoded...)
		lut[chunkNum] = int64(len(dataBuf))
	}

	path := filepath.Join(t.TempDir(), "test.om")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Truncate(headerLength))
	_, err = f.Seek(headerLength, 0)
	require.NoError(t, err)
	for _, e := range lut {
		require.NoError(t, binary.Write(f, binary.LittleEndian, e))
	}
	_, err = f.Write(dataBuf)
	require.NoError(t, err)

	return path, meta
}

func scaleForTest(v float32, scaleFactor float32) int16 {
	return int16(math.Round(float64(v) * float64(scaleFactor)))
}

func decodeChunkCoordForTest(globalChunkNum int64, nChunks []int64) []int64 {
	n := len(nChunks)
	c := make([]int64, n)
	rem := globalChunkNum
	for i := n - 1; i >= 0; i-- {
		c[i] = rem % nChunks[i]
		rem /= nChunks[i]
	}
	return c
}

func walkChunkElements(shape []int64, visit func(local []int64, flat int)) {
	n := len(shape)
	idx := make([]int64, n)
	strides := make([]int64, n)
	strides[n-1] = 1
	for i := n - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * shape[i+1]
	}
	total := int64(1)
	for _, s := range shape {
		total *= s
	}
	for flat := int64(0); flat < total; flat++ {
		visit(append([]int64(nil), idx...), int(flat))
		for i := n - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
	}
}

// Round-trip: every value the session scatters back out matches what a
// synthetic, independently-built encoder wrote, across a full read.
func TestSessionRead_FullArrayRoundTrip(t *testing.T) {
	dims := []int64{6, 5}
	chunks := []int64{2, 2}
	path, meta := buildV2File(t, dims, chunks, 10, func(coord []int64) float32 {
		return float32(coord[0]*10 + coord[1])
	})

	src, err := om.OpenFileByteSource(path)
	require.NoError(t, err)
	defer src.Close()

	session, err := om.NewSession(meta, src, om.DefaultTunables())
	require.NoError(t, err)

	out := make([]float32, 6*5)
	req := om.ReadRequest{
		Offset: []int64{0, 0}, Count: dims,
		IntoCoordLower: []int64{0, 0}, IntoCubeDimension: dims,
	}
	require.NoError(t, session.Read(context.Background(), req, out))

	for r := int64(0); r < dims[0]; r++ {
		for c := int64(0); c < dims[1]; c++ {
			want := float32(r*10 + c)
			got := out[r*dims[1]+c]
			require.InDelta(t, want, got, 1e-3, "coord (%d,%d)", r, c)
		}
	}
}

// A partial, off-chunk-boundary sub-region exercises the full planner
// chain (index coalescing, data coalescing, per-chunk intersection,
// scatter placement into a smaller target cube).
func TestSessionRead_PartialRegion(t *testing.T) {
	dims := []int64{8, 8}
	chunks := []int64{3, 3}
	path, meta := buildV2File(t, dims, chunks, 4, func(coord []int64) float32 {
		return float32(coord[0] - coord[1])
	})

	src, err := om.OpenFileByteSource(path)
	require.NoError(t, err)
	defer src.Close()

	// Tiny tunables to force fragmentation into several index/data reads.
	tight := om.Tunables{IOSizeMerge: 0, IOSizeMax: 16}
	session, err := om.NewSession(meta, src, tight)
	require.NoError(t, err)

	offset := []int64{2, 1}
	count := []int64{4, 5}
	out := make([]float32, 4*5)
	req := om.ReadRequest{
		Offset: offset, Count: count,
		IntoCoordLower: []int64{0, 0}, IntoCubeDimension: count,
	}
	require.NoError(t, session.Read(context.Background(), req, out))

	for r := int64(0); r < count[0]; r++ {
		for c := int64(0); c < count[1]; c++ {
			want := float32((offset[0] + r) - (offset[1] + c))
			got := out[r*count[1]+c]
			require.InDelta(t, want, got, 1e-3, "coord (%d,%d)", r, c)
		}
	}
}

func TestSessionRead_RejectsOutOfBoundsRequest(t *testing.T) {
	dims := []int64{4, 4}
	chunks := []int64{2, 2}
	path, meta := buildV2File(t, dims, chunks, 1, func([]int64) float32 { return 0 })

	src, err := om.OpenFileByteSource(path)
	require.NoError(t, err)
	defer src.Close()

	session, err := om.NewSession(meta, src, om.DefaultTunables())
	require.NoError(t, err)

	out := make([]float32, 16)
	req := om.ReadRequest{
		Offset: []int64{0, 0}, Count: []int64{4, 8},
		IntoCoordLower: []int64{0, 0}, IntoCubeDimension: []int64{4, 8},
	}
	err = session.Read(context.Background(), req, out)
	require.ErrorIs(t, err, om.ErrOutOfBounds)
}
