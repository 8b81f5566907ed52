package om

import "errors"

// Sentinel errors surfaced by the core. All of them are fatal for the Read
// call that produced them: spec §7 treats a decode session as a pure
// function of immutable metadata plus an in-memory byte source, so nothing
// here is retried and a partially scattered output buffer is left as-is.
var (
	// ErrBadMetadata is returned when the trailer/header arithmetic yields
	// negative offsets, a zero dimension count, or any other metadata shape
	// that cannot describe a valid chunk grid.
	ErrBadMetadata = errors.New("om: bad metadata")

	// ErrOutOfBounds is returned when a read region or a scatter placement
	// falls outside its respective bounds (dims, or intoCubeDimension).
	ErrOutOfBounds = errors.New("om: out of bounds")

	// ErrCorruptLut is returned when the LUT is non-monotonic, points past
	// the end of the byte source, or gives a zero-length byte range for a
	// chunk the decoder has to consume bytes for.
	ErrCorruptLut = errors.New("om: corrupt lut")

	// ErrDecodeMismatch is returned when the codec consumes a different
	// number of bytes than the data-read planner allotted it.
	ErrDecodeMismatch = errors.New("om: decode byte count mismatch")

	// ErrCodecFailure is returned when the codec reports an internal
	// decode error (corrupt compressed stream, truncated input, ...).
	ErrCodecFailure = errors.New("om: codec failure")
)
