package bsonx

import (
	"strconv"

	"github.com/umberlabs/bsonx/endian"
	"github.com/umberlabs/bsonx/errs"
	"github.com/umberlabs/bsonx/format"
	"github.com/umberlabs/bsonx/internal/pool"
	"github.com/umberlabs/bsonx/wire"
)

var le = endian.GetLittleEndianEngine()

// MarshalBinary encodes the document into the wire format.
//
// The frame is written in a single pass: four placeholder bytes, the
// elements in insertion order, the terminator, then the length patched
// back in. Encoding fails on keys with interior NULs and on documents
// exceeding MaxDocumentSize.
func (d *Document) MarshalBinary() ([]byte, error) {
	buf := pool.GetDocBuffer()
	defer pool.PutDocBuffer(buf)

	w := wire.NewWriter(buf, le)
	if err := appendDocument(w, d); err != nil {
		return nil, err
	}
	if w.Len() > MaxDocumentSize {
		return nil, errs.Wrapf(errs.KindMalformedBytes, errs.ErrDocumentTooLarge, "%d bytes", w.Len())
	}

	out := make([]byte, w.Len())
	copy(out, w.Bytes())

	return out, nil
}

// AppendTo encodes the document and appends the frame to dst, returning
// the extended slice.
func (d *Document) AppendTo(dst []byte) ([]byte, error) {
	buf := &pool.ByteBuffer{B: dst}
	w := wire.NewWriter(buf, le)
	start := w.Len()
	if err := appendDocument(w, d); err != nil {
		return dst, err
	}
	if w.Len()-start > MaxDocumentSize {
		return dst, errs.Wrapf(errs.KindMalformedBytes, errs.ErrDocumentTooLarge, "%d bytes", w.Len()-start)
	}

	return buf.Bytes(), nil
}

func appendDocument(w *wire.Writer, d *Document) error {
	start := w.ReserveFrame()
	if d != nil {
		for _, e := range d.entries {
			if err := appendElement(w, e.key, e.val); err != nil {
				return errs.Prepend(err, e.key)
			}
		}
	}
	w.WriteU8(0x00)
	w.PatchFrame(start)

	return nil
}

func appendArray(w *wire.Writer, a Array) error {
	start := w.ReserveFrame()
	for i, elem := range a {
		key := strconv.Itoa(i)
		if err := appendElement(w, key, elem); err != nil {
			return errs.Prepend(err, key)
		}
	}
	w.WriteU8(0x00)
	w.PatchFrame(start)

	return nil
}

func appendElement(w *wire.Writer, key string, v Value) error {
	if v.IsZero() {
		return errs.New(errs.KindCustom, "cannot encode the zero Value")
	}
	w.WriteU8(byte(v.t))
	if err := w.WriteCString(key); err != nil {
		return err
	}

	return appendValue(w, v)
}

func appendValue(w *wire.Writer, v Value) error {
	switch v.t {
	case format.TypeDouble:
		w.WriteDouble(v.v.(float64))
	case format.TypeString:
		w.WriteString(v.v.(string))
	case format.TypeDocument:
		return appendDocument(w, v.v.(*Document))
	case format.TypeArray:
		return appendArray(w, v.v.(Array))
	case format.TypeBinary:
		appendBinary(w, v.v.(Binary))
	case format.TypeUndefined, format.TypeNull, format.TypeMinKey, format.TypeMaxKey:
	case format.TypeObjectID:
		id := v.v.(ObjectID)
		w.WriteBytes(id[:])
	case format.TypeBoolean:
		if v.v.(bool) {
			w.WriteU8(0x01)
		} else {
			w.WriteU8(0x00)
		}
	case format.TypeDateTime:
		w.WriteInt64(int64(v.v.(DateTime)))
	case format.TypeRegex:
		r := v.v.(Regex)
		if err := w.WriteCString(r.Pattern); err != nil {
			return err
		}
		return w.WriteCString(r.CanonicalOptions())
	case format.TypeDBPointer:
		p := v.v.(DBPointer)
		w.WriteString(p.Ref)
		w.WriteBytes(p.ID[:])
	case format.TypeJavaScript:
		w.WriteString(string(v.v.(JavaScript)))
	case format.TypeSymbol:
		w.WriteString(string(v.v.(Symbol)))
	case format.TypeCodeWithScope:
		c := v.v.(CodeWithScope)
		start := w.ReserveFrame()
		w.WriteString(c.Code)
		if err := appendDocument(w, c.Scope); err != nil {
			return err
		}
		w.PatchFrame(start)
	case format.TypeInt32:
		w.WriteInt32(v.v.(int32))
	case format.TypeTimestamp:
		ts := v.v.(Timestamp)
		w.WriteUint32(ts.I)
		w.WriteUint32(ts.T)
	case format.TypeInt64:
		w.WriteInt64(v.v.(int64))
	case format.TypeDecimal128:
		dec := v.v.(Decimal128)
		w.WriteUint64(dec.l)
		w.WriteUint64(dec.h)
	default:
		return errs.Newf(errs.KindMalformedBytes, "unknown element type 0x%02X", byte(v.t))
	}

	return nil
}

// appendBinary emits the binary payload. The legacy 0x02 subtype
// carries a redundant inner length equal to the outer length minus
// four, re-created here on every write.
func appendBinary(w *wire.Writer, b Binary) {
	if b.Subtype == format.SubtypeBinaryOld {
		w.WriteInt32(int32(len(b.Data)) + 4)
		w.WriteU8(byte(b.Subtype))
		w.WriteInt32(int32(len(b.Data)))
		w.WriteBytes(b.Data)
		return
	}
	w.WriteInt32(int32(len(b.Data)))
	w.WriteU8(byte(b.Subtype))
	w.WriteBytes(b.Data)
}
