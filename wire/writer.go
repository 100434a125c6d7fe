package wire

import (
	"math"
	"strings"

	"github.com/umberlabs/bsonx/endian"
	"github.com/umberlabs/bsonx/errs"
	"github.com/umberlabs/bsonx/internal/pool"
)

// Writer appends wire-format primitives to a pooled byte buffer.
//
// Frames are written in a single pass: ReserveFrame emits a 4-byte
// placeholder, the frame body is appended, and PatchFrame writes the
// final length back through the buffer once the body size is known.
type Writer struct {
	buf    *pool.ByteBuffer
	engine endian.EndianEngine
}

// NewWriter creates a Writer appending to buf with the given byte order.
// The document wire format requires the little-endian engine.
func NewWriter(buf *pool.ByteBuffer, engine endian.EndianEngine) *Writer {
	return &Writer{buf: buf, engine: engine}
}

// Bytes returns the bytes written so far. The slice shares the
// underlying buffer.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// WriteU8 appends a single byte.
func (w *Writer) WriteU8(b byte) {
	_ = w.buf.WriteByte(b)
}

// WriteBytes appends raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf.MustWrite(b)
}

// WriteInt32 appends a little-endian signed 32-bit integer.
func (w *Writer) WriteInt32(v int32) {
	w.buf.B = w.engine.AppendUint32(w.buf.B, uint32(v))
}

// WriteUint32 appends a little-endian unsigned 32-bit integer.
func (w *Writer) WriteUint32(v uint32) {
	w.buf.B = w.engine.AppendUint32(w.buf.B, v)
}

// WriteInt64 appends a little-endian signed 64-bit integer.
func (w *Writer) WriteInt64(v int64) {
	w.buf.B = w.engine.AppendUint64(w.buf.B, uint64(v))
}

// WriteUint64 appends a little-endian unsigned 64-bit integer.
func (w *Writer) WriteUint64(v uint64) {
	w.buf.B = w.engine.AppendUint64(w.buf.B, v)
}

// WriteDouble appends a little-endian IEEE-754 64-bit float.
func (w *Writer) WriteDouble(v float64) {
	w.buf.B = w.engine.AppendUint64(w.buf.B, math.Float64bits(v))
}

// WriteCString appends s followed by a NUL terminator. Fails with
// errs.ErrInteriorNUL if s contains a NUL byte, since the terminator
// would be ambiguous on the wire.
func (w *Writer) WriteCString(s string) error {
	if strings.IndexByte(s, 0x00) >= 0 {
		return errs.Wrapf(errs.KindMalformedBytes, errs.ErrInteriorNUL, "%q", s)
	}
	_, _ = w.buf.WriteString(s)
	_ = w.buf.WriteByte(0x00)

	return nil
}

// WriteString appends a length-prefixed string: int32 length including
// the trailing NUL, the bytes of s, then the NUL. Interior NULs are
// legal here; only the declared length delimits the payload.
func (w *Writer) WriteString(s string) {
	w.WriteInt32(int32(len(s)) + 1)
	_, _ = w.buf.WriteString(s)
	_ = w.buf.WriteByte(0x00)
}

// ReserveFrame appends a 4-byte length placeholder and returns its
// offset for a later PatchFrame call.
func (w *Writer) ReserveFrame() int {
	start := w.buf.Len()
	w.WriteInt32(0)

	return start
}

// PatchFrame writes the distance from start to the current end of the
// buffer into the placeholder reserved at start.
func (w *Writer) PatchFrame(start int) {
	length := w.buf.Len() - start
	w.engine.PutUint32(w.buf.Slice(start, start+4), uint32(length))
}
