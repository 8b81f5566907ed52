package om

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gocloud.dev/blob"
)

// ByteSource is the fixed-length, random-access view of the file contents
// that the decode session reads the trailer, LUT, and compressed chunk
// bytes through. It is an external collaborator: spec §1 keeps it out of
// the core's scope on purpose, so the planners and decoder never see a
// concrete byte source type, only this interface.
//
// Multiple decode sessions may share one ByteSource concurrently as long as
// each session owns its own chunkBuffer and output buffer (spec §5); a
// ByteSource implementation must therefore be safe for concurrent ReadAt
// calls, but need not be safe for concurrent mutation (there is none).
type ByteSource interface {
	// ReadAt returns exactly length bytes starting at offset, or an error.
	// The returned slice is owned by the caller; the ByteSource must not
	// retain or mutate it afterward.
	ReadAt(ctx context.Context, offset, length int64) ([]byte, error)

	// Size returns the total byte length of the underlying source.
	Size(ctx context.Context) (int64, error)

	// Close releases any resources (file descriptors, bucket handles)
	// held by the source.
	Close() error
}

// fileByteSource is a zero-dependency ByteSource backed by an *os.File,
// read with pread-style ReadAt calls so no seek state is shared across
// concurrent readers.
type fileByteSource struct {
	f    *os.File
	size int64
}

// OpenFileByteSource opens path with the standard library and wraps it as
// a ByteSource. This is the common case for local .om files and needs
// nothing beyond what the OS gives a memory-mapped-equivalent random-access
// view (spec §9 "Raw pointer arithmetic over mapped bytes" notes that a
// slice()-capable implementation can be zero-copy; callers who need that
// can supply their own ByteSource over an mmap region instead).
func OpenFileByteSource(path string) (ByteSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("om: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("om: stat %s: %w", path, err)
	}
	return &fileByteSource{f: f, size: info.Size()}, nil
}

func (s *fileByteSource) ReadAt(_ context.Context, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > s.size {
		return nil, fmt.Errorf("%w: read [%d, %d) exceeds source length %d", ErrOutOfBounds, offset, offset+length, s.size)
	}
	buf := make([]byte, length)
	if _, err := s.f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("om: read at %d: %w", offset, err)
	}
	return buf, nil
}

func (s *fileByteSource) Size(_ context.Context) (int64, error) { return s.size, nil }

func (s *fileByteSource) Close() error { return s.f.Close() }

// blobByteSource is a ByteSource backed by a gocloud.dev/blob.Bucket, the
// same abstraction the teacher's Reader uses to open Zarr stores over
// file://, mem://, s3://, gs:// and friends. It lets an .om file live
// anywhere a blob driver reaches without the core ever knowing.
type blobByteSource struct {
	bucket *blob.Bucket
	key    string
	size   int64
}

// OpenBlobByteSource opens bucketURL with gocloud.dev/blob and returns a
// ByteSource over the single object named key within it, mirroring the
// teacher's NewReader(ctx, path) bucket-opening idiom.
func OpenBlobByteSource(ctx context.Context, bucketURL, key string) (ByteSource, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("om: open bucket %s: %w", bucketURL, err)
	}
	attrs, err := bucket.Attributes(ctx, key)
	if err != nil {
		bucket.Close()
		return nil, fmt.Errorf("om: stat %s: %w", key, err)
	}
	return &blobByteSource{bucket: bucket, key: key, size: attrs.Size}, nil
}

func (s *blobByteSource) ReadAt(ctx context.Context, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > s.size {
		return nil, fmt.Errorf("%w: read [%d, %d) exceeds source length %d", ErrOutOfBounds, offset, offset+length, s.size)
	}
	if length == 0 {
		return nil, nil
	}
	r, err := s.bucket.NewRangeReader(ctx, s.key, offset, length, nil)
	if err != nil {
		return nil, fmt.Errorf("om: range read %s[%d:%d]: %w", s.key, offset, offset+length, err)
	}
	defer r.Close()
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("om: range read %s[%d:%d]: %w", s.key, offset, offset+length, err)
	}
	return buf, nil
}

func (s *blobByteSource) Size(_ context.Context) (int64, error) { return s.size, nil }

func (s *blobByteSource) Close() error { return s.bucket.Close() }

// OpenByteSource opens a ByteSource from a path or URL: a bare filesystem
// path (or a file:// URL) is opened directly with the standard library for
// zero-copy-friendly local reads, anything else is handed to
// gocloud.dev/blob with the final path segment as the blob key.
func OpenByteSource(ctx context.Context, location string) (ByteSource, error) {
	if !strings.Contains(location, "://") {
		return OpenFileByteSource(location)
	}
	if strings.HasPrefix(location, "file://") {
		return OpenFileByteSource(strings.TrimPrefix(location, "file://"))
	}
	idx := strings.LastIndex(location, "/")
	if idx < 0 || idx == len(location)-1 {
		return nil, fmt.Errorf("%w: location %q has no object key", ErrBadMetadata, location)
	}
	return OpenBlobByteSource(ctx, location[:idx], location[idx+1:])
}
