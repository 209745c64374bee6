package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression wraps an export stream.
type Compression int

const (
	CompressNone Compression = iota
	CompressGzip
	CompressZstd
)

// CompressionForPath detects a .gz or .zst suffix and returns the path
// without it, so "rows.csv.gz" exports CSV through gzip.
func CompressionForPath(path string) (Compression, string) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		return CompressGzip, path[:len(path)-len(".gz")]
	case strings.HasSuffix(lower, ".zst"):
		return CompressZstd, path[:len(path)-len(".zst")]
	}
	return CompressNone, path
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w with c. Close flushes the compressor but never closes w.
func NewWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressGzip:
		return gzip.NewWriter(w), nil
	case CompressZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		return enc, nil
	}
	return nopWriteCloser{w}, nil
}
