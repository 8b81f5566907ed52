// Package omfile provides the public, root-level entry point for reading
// chunked, compressed OpenMeteo-style .om arrays: Open mirrors the
// teacher's NewReader/NewDataset constructors, and File wraps an om.Session
// with the convenience methods real callers reach for first (a plain
// []float32 read, or a gomlx tensor).
package omfile

import (
	"context"
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/weatherkit/omfile/om"
)

// File is a handle to one open .om array: its parsed metadata plus a
// decode session bound to the underlying byte source.
type File struct {
	meta    om.Metadata
	src     om.ByteSource
	session *om.Session
}

// Open opens path (a bare filesystem path, file://, or any
// gocloud.dev/blob-supported URL) and parses its version-3 trailer. Use
// OpenV2 for version-2 files, whose header length the trailer alone cannot
// recover.
func Open(ctx context.Context, path string, scaleFactor float32, compression om.CompressionKind) (*File, error) {
	src, err := om.OpenByteSourceDetectEnvelope(ctx, path)
	if err != nil {
		return nil, err
	}
	meta, err := om.OpenMetadataV3(ctx, src, scaleFactor, compression)
	if err != nil {
		src.Close()
		return nil, err
	}
	return newFile(src, meta, om.DefaultTunables())
}

// OpenV2 opens a version-2 .om file. headerLength is the byte length of the
// header the caller's own header parser (out of scope for this module, see
// DESIGN.md "v2 header length") produced; version 2's LUT and data region offsets are
// computed from it.
func OpenV2(ctx context.Context, path string, dims, chunks []int64, scaleFactor float32, compression om.CompressionKind, headerLength int64) (*File, error) {
	src, err := om.OpenByteSource(ctx, path)
	if err != nil {
		return nil, err
	}
	meta, err := om.NewMetadataV2(dims, chunks, scaleFactor, compression, headerLength)
	if err != nil {
		src.Close()
		return nil, err
	}
	return newFile(src, meta, om.DefaultTunables())
}

func newFile(src om.ByteSource, meta om.Metadata, t om.Tunables) (*File, error) {
	session, err := om.NewSession(meta, src, t)
	if err != nil {
		src.Close()
		return nil, err
	}
	return &File{meta: meta, src: src, session: session}, nil
}

// SetTunables overrides the default I/O coalescing thresholds (spec §4.2,
// §4.3); it must be called before the first Read.
func (f *File) SetTunables(t om.Tunables) error {
	session, err := om.NewSession(f.meta, f.src, t)
	if err != nil {
		return err
	}
	f.session = session
	return nil
}

// Metadata returns the parsed array metadata.
func (f *File) Metadata() om.Metadata {
	return f.meta
}

// Read decodes the hyper-rectangular region [offset, offset+count) into a
// freshly allocated, row-major []float32 of length product(count).
func (f *File) Read(ctx context.Context, offset, count []int64) ([]float32, error) {
	if err := validateRank(f.meta, offset, count); err != nil {
		return nil, err
	}
	total := int64(1)
	for _, c := range count {
		total *= c
	}
	out := make([]float32, total)
	req := om.ReadRequest{
		Offset:            offset,
		Count:             count,
		IntoCoordLower:    make([]int64, len(offset)),
		IntoCubeDimension: count,
	}
	if err := f.session.Read(ctx, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadInto decodes req directly into a caller-owned cube, for callers that
// want to read several requests into the same larger buffer (spec §6).
func (f *File) ReadInto(ctx context.Context, req om.ReadRequest, out []float32) error {
	return f.session.Read(ctx, req, out)
}

// ReadTensor decodes [offset, offset+count) and wraps it as a gomlx
// tensor shaped count, mirroring the teacher's Dataset.NextBatch.
func (f *File) ReadTensor(ctx context.Context, offset, count []int64) (*tensors.Tensor, error) {
	flat, err := f.Read(ctx, offset, count)
	if err != nil {
		return nil, err
	}
	dims := make([]int, len(count))
	for i, c := range count {
		dims[i] = int(c)
	}
	return tensors.FromFlatDataAndDimensions(flat, dims...), nil
}

// ReadFull decodes the entire array.
func (f *File) ReadFull(ctx context.Context) ([]float32, error) {
	offset := make([]int64, f.meta.NDims())
	return f.Read(ctx, offset, f.meta.Dims)
}

// Close releases the underlying byte source.
func (f *File) Close() error {
	return f.src.Close()
}

func validateRank(meta om.Metadata, offset, count []int64) error {
	if len(offset) != meta.NDims() || len(count) != meta.NDims() {
		return fmt.Errorf("%w: expected rank %d, got offset rank %d count rank %d", om.ErrOutOfBounds, meta.NDims(), len(offset), len(count))
	}
	return nil
}
