package heapdump

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Reader reads big-endian HPROF data and tracks how many bytes it consumed.
type Reader struct {
	r      *bufio.Reader
	idSize int
	offset int64
	buf    [8]byte
}

// NewReader creates a new HPROF reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:      bufio.NewReaderSize(r, 64*1024),
		idSize: 8,
	}
}

// IDSize returns the identifier size.
func (r *Reader) IDSize() int {
	return r.idSize
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int64 {
	return r.offset
}

// ReadHeader reads the file header and adopts its identifier size.
func (r *Reader) ReadHeader() (*Header, error) {
	format, err := r.r.ReadString(0)
	if err != nil {
		return nil, fmt.Errorf("failed to read format string: %w", err)
	}
	r.offset += int64(len(format))
	format = format[:len(format)-1]

	idSize, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read ID size: %w", err)
	}
	if idSize != 4 && idSize != 8 {
		return nil, fmt.Errorf("unsupported ID size %d", idSize)
	}
	r.idSize = int(idSize)

	millis, err := r.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("failed to read timestamp: %w", err)
	}

	return &Header{
		Format:    format,
		IDSize:    r.idSize,
		Timestamp: time.UnixMilli(int64(millis)),
	}, nil
}

// ReadRecordHeader reads a record tag and body length. The time delta is
// discarded. io.EOF is returned only when no byte of a new record was read.
func (r *Reader) ReadRecordHeader() (RecordTag, uint32, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	if err := r.Skip(4); err != nil {
		return 0, 0, noEOF(err)
	}
	length, err := r.ReadUint32()
	if err != nil {
		return 0, 0, noEOF(err)
	}
	return RecordTag(tag), length, nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err == nil {
		r.offset++
	}
	return b, err
}

// maxPrealloc bounds the buffer ReadBytes allocates before any data arrives.
const maxPrealloc = 1 << 20

// ReadBytes reads n bytes into a new slice. Lengths above maxPrealloc are
// buffered as the data arrives, so a corrupt length fails on EOF instead of
// allocating up front.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative length %d", n)
	}
	if n > maxPrealloc {
		var buf bytes.Buffer
		read, err := io.CopyN(&buf, r.r, int64(n))
		r.offset += read
		return buf.Bytes(), noEOF(err)
	}
	b := make([]byte, n)
	read, err := io.ReadFull(r.r, b)
	r.offset += int64(read)
	return b, noEOF(err)
}

func (r *Reader) readFull(n int) ([]byte, error) {
	read, err := io.ReadFull(r.r, r.buf[:n])
	r.offset += int64(read)
	return r.buf[:n], err
}

// ReadUint16 reads a big-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.readFull(2)
	if err != nil {
		return 0, noEOF(err)
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.readFull(4)
	if err != nil {
		return 0, noEOF(err)
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadUint64 reads a big-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.readFull(8)
	if err != nil {
		return 0, noEOF(err)
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadID reads an identifier of the header's size.
func (r *Reader) ReadID() (ObjectID, error) {
	if r.idSize == 4 {
		v, err := r.ReadUint32()
		return ObjectID(v), err
	}
	v, err := r.ReadUint64()
	return ObjectID(v), err
}

// ReadValue reads a value of type t as raw bits. Object values are IDs.
func (r *Reader) ReadValue(t BasicType) (uint64, error) {
	switch t.Size(r.idSize) {
	case 1:
		b, err := r.ReadByte()
		return uint64(b), noEOF(err)
	case 2:
		v, err := r.ReadUint16()
		return uint64(v), err
	case 4:
		v, err := r.ReadUint32()
		return uint64(v), err
	case 8:
		return r.ReadUint64()
	default:
		return 0, fmt.Errorf("unknown basic type: %d", t)
	}
}

// Skip discards n bytes.
func (r *Reader) Skip(n int64) error {
	for n > 0 {
		chunk := n
		if chunk > 1<<30 {
			chunk = 1 << 30
		}
		skipped, err := r.r.Discard(int(chunk))
		r.offset += int64(skipped)
		if err != nil {
			return noEOF(err)
		}
		n -= chunk
	}
	return nil
}

// decodeID decodes an identifier from raw field data.
func decodeID(b []byte, idSize int) ObjectID {
	if idSize == 4 {
		return ObjectID(binary.BigEndian.Uint32(b))
	}
	return ObjectID(binary.BigEndian.Uint64(b))
}

// noEOF turns a clean EOF in the middle of a record into ErrUnexpectedEOF.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
