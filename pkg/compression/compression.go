// Package compression detects and decodes compressed heap dump streams.
package compression

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Type represents the compression algorithm of a stream.
type Type uint8

const (
	TypeNone Type = iota
	TypeGzip
	TypeZstd
)

// String returns the algorithm name.
func (t Type) String() string {
	switch t {
	case TypeGzip:
		return "gzip"
	case TypeZstd:
		return "zstd"
	default:
		return "none"
	}
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// DetectType detects the compression type from magic bytes.
func DetectType(header []byte) Type {
	if hasPrefix(header, zstdMagic) {
		return TypeZstd
	}
	if hasPrefix(header, gzipMagic) {
		return TypeGzip
	}
	return TypeNone
}

func hasPrefix(b, magic []byte) bool {
	if len(b) < len(magic) {
		return false
	}
	for i := range magic {
		if b[i] != magic[i] {
			return false
		}
	}
	return true
}

// NewReader returns a reader that yields the decompressed content of r.
// Uncompressed input is passed through. Closing the returned reader does
// not close r.
func NewReader(r io.Reader) (io.ReadCloser, Type, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	header, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, TypeNone, fmt.Errorf("failed to read stream header: %w", err)
	}

	switch t := DetectType(header); t {
	case TypeGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, t, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return zr, t, nil
	case TypeZstd:
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, t, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return dec.IOReadCloser(), t, nil
	default:
		return io.NopCloser(br), TypeNone, nil
	}
}
