package om

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// CompressionKind selects the unscale formula and the codec/delta pair used
// to decode a chunk (spec §3 "compression").
type CompressionKind int

const (
	// CompressionLinearQuantized stores v/scalefactor directly.
	CompressionLinearQuantized CompressionKind = iota
	// CompressionLogarithmicQuantized stores 10^(v/scalefactor) - 1.
	CompressionLogarithmicQuantized
)

func (c CompressionKind) String() string {
	switch c {
	case CompressionLinearQuantized:
		return "linear-quantized"
	case CompressionLogarithmicQuantized:
		return "logarithmic-quantized"
	default:
		return fmt.Sprintf("compression(%d)", int(c))
	}
}

// int16Max marks a missing value; it decodes to NaN regardless of
// compression kind (spec §4.4 step 5, §8 property 5).
const int16Max = int16(1<<15 - 1)

// Metadata is the immutable-per-open-file description the header/trailer
// parser hands the core (spec §3, §6). The parser itself is an external
// collaborator out of scope for this module; Metadata is the only thing
// of it the core ever consumes.
type Metadata struct {
	// Dims gives the logical extent of each dimension, length N >= 1.
	Dims []int64
	// Chunks gives the chunk extent along each dimension, length N.
	// Chunks[i] may exceed Dims[i] is not required; the last chunk along
	// a dimension may be short.
	Chunks []int64
	// ScaleFactor is a finite positive 32-bit float.
	ScaleFactor float32
	// Compression selects the unscale formula and codec/delta pair.
	Compression CompressionKind
	// LutStart is the byte offset of the LUT within the byte source.
	LutStart int64
	// DataStart is the byte offset of the compressed-data region.
	DataStart int64
	// Version is the on-disk schema version (2 or 3); it governs LutStart
	// and DataStart computation (spec §6).
	Version int
}

// NDims returns the array's rank.
func (m Metadata) NDims() int { return len(m.Dims) }

// NChunks returns ceil(Dims[i] / Chunks[i]) for each dimension (spec §3).
func (m Metadata) NChunks() []int64 {
	n := make([]int64, len(m.Dims))
	for i := range m.Dims {
		n[i] = ceilDiv(m.Dims[i], m.Chunks[i])
	}
	return n
}

// TotalChunks returns the product of NChunks, i.e. the number of entries in
// the LUT and the exclusive upper bound on a valid globalChunkNum.
func (m Metadata) TotalChunks() int64 {
	total := int64(1)
	for _, n := range m.NChunks() {
		total *= n
	}
	return total
}

// Validate checks the invariants spec §3 requires of metadata before any
// planning is attempted.
func (m Metadata) Validate() error {
	if len(m.Dims) == 0 {
		return fmt.Errorf("%w: nDims == 0", ErrBadMetadata)
	}
	if len(m.Chunks) != len(m.Dims) {
		return fmt.Errorf("%w: chunks rank %d != dims rank %d", ErrBadMetadata, len(m.Chunks), len(m.Dims))
	}
	for i, d := range m.Dims {
		if d <= 0 {
			return fmt.Errorf("%w: dims[%d] = %d must be positive", ErrBadMetadata, i, d)
		}
		if m.Chunks[i] <= 0 {
			return fmt.Errorf("%w: chunks[%d] = %d must be positive", ErrBadMetadata, i, m.Chunks[i])
		}
	}
	if !(m.ScaleFactor > 0) || math.IsInf(float64(m.ScaleFactor), 1) {
		return fmt.Errorf("%w: scalefactor %v must be finite and positive", ErrBadMetadata, m.ScaleFactor)
	}
	if m.LutStart < 0 || m.DataStart < 0 {
		return fmt.Errorf("%w: negative lutStart/dataStart", ErrBadMetadata)
	}
	return nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

// Describe returns a human-readable one-line summary of the metadata, the
// same kind of convenience the teacher exposes via Reader.Metadata() and
// ParseDType — useful in logs and error messages, never parsed back.
func (m Metadata) Describe() string {
	return fmt.Sprintf("om.Metadata{dims=%v chunks=%v compression=%s scale=%g version=%d}",
		m.Dims, m.Chunks, m.Compression, m.ScaleFactor, m.Version)
}

// NewMetadataV2 builds version-2 metadata. Version 2's layout (spec §6)
// needs the header length from the external header parser (spec §9 open
// question: "OmHeader.length is referenced but not defined in the core");
// the core cannot recover it on its own, so it is the caller's
// responsibility to supply it.
func NewMetadataV2(dims, chunks []int64, scaleFactor float32, compression CompressionKind, headerLength int64) (Metadata, error) {
	m := Metadata{
		Dims:        dims,
		Chunks:      chunks,
		ScaleFactor: scaleFactor,
		Compression: compression,
		LutStart:    headerLength,
		Version:     2,
	}
	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	m.DataStart = headerLength + m.TotalChunks()*8
	return m, nil
}

// OpenMetadataV3 parses the version-3 trailer from the end of src per spec
// §6: the last 8 bytes are lutStart, the preceding 8 are nDims, then nDims
// dims followed by nDims chunk extents, all as little-endian int64s.
// DataStart is fixed at 3 (spec §6 / §9 open question: this is believed to
// be a 3-byte magic/version marker consumed by the header parser before
// the LUT starts; the value is taken as given and the marker bytes are not
// inspected here).
//
// ScaleFactor and Compression are not part of the trailer layout spec §6
// documents — they are produced by the header parser, a distinct external
// collaborator — so the caller supplies them directly.
func OpenMetadataV3(ctx context.Context, src ByteSource, scaleFactor float32, compression CompressionKind) (Metadata, error) {
	size, err := src.Size(ctx)
	if err != nil {
		return Metadata{}, fmt.Errorf("om: trailer: %w", err)
	}
	if size < 16 {
		return Metadata{}, fmt.Errorf("%w: file too small for a version-3 trailer", ErrBadMetadata)
	}

	tailLen := int64(16)
	if tailLen > size {
		tailLen = size
	}
	tail, err := src.ReadAt(ctx, size-tailLen, tailLen)
	if err != nil {
		return Metadata{}, fmt.Errorf("om: trailer: %w", err)
	}
	lutStart := int64(binary.LittleEndian.Uint64(tail[tailLen-8:]))
	nDims := int64(binary.LittleEndian.Uint64(tail[tailLen-16 : tailLen-8]))
	if nDims <= 0 {
		return Metadata{}, fmt.Errorf("%w: nDims == %d", ErrBadMetadata, nDims)
	}

	dimsChunksLen := 2 * nDims * 8
	if 16+dimsChunksLen > size {
		return Metadata{}, fmt.Errorf("%w: trailer claims %d dims but file is only %d bytes", ErrBadMetadata, nDims, size)
	}
	dimsChunks, err := src.ReadAt(ctx, size-16-dimsChunksLen, dimsChunksLen)
	if err != nil {
		return Metadata{}, fmt.Errorf("om: trailer: %w", err)
	}

	dims := make([]int64, nDims)
	chunks := make([]int64, nDims)
	for i := int64(0); i < nDims; i++ {
		dims[i] = int64(binary.LittleEndian.Uint64(dimsChunks[i*8:]))
	}
	for i := int64(0); i < nDims; i++ {
		chunks[i] = int64(binary.LittleEndian.Uint64(dimsChunks[(nDims+i)*8:]))
	}

	if lutStart < 0 {
		return Metadata{}, fmt.Errorf("%w: negative lutStart %d", ErrBadMetadata, lutStart)
	}

	m := Metadata{
		Dims:        dims,
		Chunks:      chunks,
		ScaleFactor: scaleFactor,
		Compression: compression,
		LutStart:    lutStart,
		DataStart:   3,
		Version:     3,
	}
	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// lutEntryOffset returns the absolute byte offset of chunk k's LUT slot.
// Identical for both on-disk versions: entries are 8 bytes, one per chunk,
// indexed directly by chunk number (spec §3).
func (m Metadata) lutEntryOffset(chunkNum int64) int64 {
	return m.LutStart + chunkNum*8
}
