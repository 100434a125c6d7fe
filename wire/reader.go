// Package wire implements the primitive byte-level readers and writers
// shared by the document codec.
//
// All multi-byte integers and floats on the wire are little-endian. The
// Reader is a bounded cursor over a byte slice: every read checks the
// remaining input and fails with errs.ErrUnexpectedEOF instead of
// panicking, and byte-slice reads borrow from the underlying buffer
// without copying.
package wire

import (
	"bytes"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/umberlabs/bsonx/endian"
	"github.com/umberlabs/bsonx/errs"
)

var le = endian.GetLittleEndianEngine()

// Reader is a bounded cursor over a byte slice.
//
// The zero value is an empty reader. Reader borrows the slice it is
// given; the slice must not be mutated while the reader is in use.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a Reader over data. The reader borrows data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the current byte offset from the start of the input.
func (r *Reader) Pos() int {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, eof(r.pos, 1)
	}
	b := r.data[r.pos]
	r.pos++

	return b, nil
}

// ReadBytes reads n bytes and returns them as a sub-slice of the
// underlying buffer without copying.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errs.Wrapf(errs.KindMalformedBytes, errs.ErrMalformedLength, "byte count %d at offset %d", n, r.pos)
	}
	if r.Remaining() < n {
		return nil, eof(r.pos, n)
	}
	b := r.data[r.pos : r.pos+n : r.pos+n]
	r.pos += n

	return b, nil
}

// Span returns the bytes between start and the current position as a
// borrow of the underlying buffer. Panics if start is out of range.
func (r *Reader) Span(start int) []byte {
	return r.data[start:r.pos:r.pos]
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.ReadBytes(n)
	return err
}

// ReadInt32 reads a little-endian signed 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}

	return int32(le.Uint32(b)), nil
}

// ReadUint32 reads a little-endian unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}

	return le.Uint32(b), nil
}

// ReadInt64 reads a little-endian signed 64-bit integer.
func (r *Reader) ReadInt64() (int64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}

	return int64(le.Uint64(b)), nil
}

// ReadUint64 reads a little-endian unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}

	return le.Uint64(b), nil
}

// ReadDouble reads a little-endian IEEE-754 64-bit float.
func (r *Reader) ReadDouble() (float64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}

	return math.Float64frombits(le.Uint64(b)), nil
}

// ReadCStringBytes reads bytes up to (but not including) the next NUL
// and consumes the NUL. The returned slice borrows the underlying
// buffer and is not validated as UTF-8.
func (r *Reader) ReadCStringBytes() ([]byte, error) {
	rest := r.data[r.pos:]
	idx := indexNUL(rest)
	if idx < 0 {
		return nil, errs.Wrapf(errs.KindMalformedBytes, errs.ErrNotNullTerminated, "cstring at offset %d", r.pos)
	}
	b := rest[:idx:idx]
	r.pos += idx + 1

	return b, nil
}

// ReadCString reads a NUL-terminated UTF-8 string. Under strict mode an
// invalid byte sequence fails with an errs.KindUTF8 error; under lossy
// mode invalid sequences are replaced with U+FFFD.
func (r *Reader) ReadCString(lossy bool) (string, error) {
	start := r.pos
	b, err := r.ReadCStringBytes()
	if err != nil {
		return "", err
	}

	return validate(b, lossy, start)
}

// ReadString reads a length-prefixed string: an int32 length that
// includes the trailing NUL, the string bytes, then the NUL. The
// declared length must be at least 1 and the final byte must be 0x00.
func (r *Reader) ReadString(lossy bool) (string, error) {
	start := r.pos
	b, err := r.ReadStringBytes()
	if err != nil {
		return "", err
	}

	return validate(b, lossy, start)
}

// ReadStringBytes reads a length-prefixed string and returns the string
// bytes (without the NUL) as a borrow of the underlying buffer, skipping
// UTF-8 validation.
func (r *Reader) ReadStringBytes() ([]byte, error) {
	start := r.pos
	length, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, errs.Wrapf(errs.KindMalformedBytes, errs.ErrMalformedLength, "string length %d at offset %d", length, start)
	}
	b, err := r.ReadBytes(int(length))
	if err != nil {
		return nil, err
	}
	if b[length-1] != 0x00 {
		return nil, errs.Wrapf(errs.KindMalformedBytes, errs.ErrNotNullTerminated, "string at offset %d", start)
	}

	return b[: length-1 : length-1], nil
}

func validate(b []byte, lossy bool, offset int) (string, error) {
	if utf8.Valid(b) {
		return string(b), nil
	}
	if lossy {
		return strings.ToValidUTF8(string(b), "�"), nil
	}

	return "", errs.Newf(errs.KindUTF8, "invalid UTF-8 at offset %d", offset)
}

func indexNUL(b []byte) int {
	return bytes.IndexByte(b, 0x00)
}

func eof(pos, want int) error {
	return errs.Wrapf(errs.KindMalformedBytes, errs.ErrUnexpectedEOF, "need %d bytes at offset %d", want, pos)
}
