package bsonx

import (
	"iter"

	"github.com/umberlabs/bsonx/errs"
	"github.com/umberlabs/bsonx/format"
	"github.com/umberlabs/bsonx/wire"
)

// RawDocument is a zero-copy view of one wire-format frame. The view
// borrows the byte slice it was created over; the slice must stay alive
// and unmodified for as long as the view is used. Elements are parsed
// lazily during iteration and lookup, with no allocation for the
// container itself.
type RawDocument []byte

// NewRawDocument validates the frame shell of data - declared length,
// size bounds, and terminator - and returns it as a RawDocument without
// copying. Element payloads are validated lazily as they are accessed.
func NewRawDocument(data []byte) (RawDocument, error) {
	if len(data) < 5 {
		return nil, errs.Newf(errs.KindMalformedBytes, "document of %d bytes is below the 5-byte minimum", len(data))
	}
	length := int32(le.Uint32(data[:4]))
	if int(length) != len(data) {
		return nil, errs.Newf(errs.KindMalformedBytes, "declared length %d does not match input length %d", length, len(data))
	}
	if length > MaxDocumentSize {
		return nil, errs.Wrapf(errs.KindMalformedBytes, errs.ErrDocumentTooLarge, "declared length %d", length)
	}
	if data[len(data)-1] != 0x00 {
		return nil, errs.New(errs.KindMalformedBytes, "document does not end with 0x00")
	}

	return RawDocument(data), nil
}

// Iter returns a lazy iterator over the document's elements.
func (rd RawDocument) Iter() *RawIter {
	it := &RawIter{r: wire.NewReader(rd), end: len(rd) - 1}
	if _, err := NewRawDocument(rd); err != nil {
		it.fail(err)
		return it
	}
	_ = it.r.Skip(4)

	return it
}

// All returns a range-over-func iterator over (key, value) pairs. It
// stops at the first malformed element; use Iter directly when the
// error is needed.
func (rd RawDocument) All() iter.Seq2[string, RawValue] {
	return func(yield func(string, RawValue) bool) {
		it := rd.Iter()
		for it.Next() {
			if !yield(it.Key(), it.Value()) {
				return
			}
		}
	}
}

// Get walks the document for the first element with the given key. It
// returns (zero, false, nil) when the key is absent and an error when a
// malformed element interrupts the walk.
func (rd RawDocument) Get(key string) (RawValue, bool, error) {
	it := rd.Iter()
	for it.Next() {
		if it.Key() == key {
			return it.Value(), true, nil
		}
	}

	return RawValue{}, false, it.Err()
}

// Validate walks every element and recursively validates nested
// documents, arrays, and payloads.
func (rd RawDocument) Validate() error {
	it := rd.Iter()
	for it.Next() {
		if err := it.Value().Validate(); err != nil {
			return errs.Prepend(err, it.Key())
		}
	}

	return it.Err()
}

// Document materializes the view into an owned Document via a full
// walk. The result shares no memory with the view.
func (rd RawDocument) Document() (*Document, error) {
	return DecodeDocument(rd)
}

// Clone returns an owned copy of the underlying bytes wrapped in a
// RawDocumentBuffer.
func (rd RawDocument) Clone() *RawDocumentBuffer {
	data := make([]byte, len(rd))
	copy(data, rd)

	return &RawDocumentBuffer{data: data}
}

// RawDocumentBuffer is the owned sibling of RawDocument: it bundles a
// private copy of the frame bytes with the view over them, for callers
// that cannot guarantee the original buffer outlives the view.
type RawDocumentBuffer struct {
	data []byte
}

// NewRawDocumentBuffer copies data, validates the frame shell, and
// returns the owned container.
func NewRawDocumentBuffer(data []byte) (*RawDocumentBuffer, error) {
	if _, err := NewRawDocument(data); err != nil {
		return nil, err
	}
	owned := make([]byte, len(data))
	copy(owned, data)

	return &RawDocumentBuffer{data: owned}, nil
}

// Document returns the view over the owned bytes.
func (b *RawDocumentBuffer) Document() RawDocument {
	return RawDocument(b.data)
}

// Bytes returns the owned frame bytes. The caller must not modify them
// while any view is in use.
func (b *RawDocumentBuffer) Bytes() []byte {
	return b.data
}

// RawIter walks a RawDocument lazily. The first malformed element
// poisons the iterator: Next returns false from then on and Err reports
// the failure, decorated with the last key walked.
type RawIter struct {
	r    *wire.Reader
	end  int // offset of the terminator byte
	key  string
	val  RawValue
	err  error
	done bool
}

// Next advances to the next element. It returns false at the
// terminator or on the first error.
func (it *RawIter) Next() bool {
	if it.done {
		return false
	}

	tag, err := it.r.ReadByte()
	if err != nil {
		it.fail(err)
		return false
	}
	if tag == 0x00 {
		if it.r.Pos() != it.end+1 {
			it.fail(errs.Newf(errs.KindMalformedBytes, "document terminator at offset %d, expected at %d", it.r.Pos()-1, it.end))
		}
		it.done = true
		return false
	}

	t, ok := format.Lookup(tag)
	if !ok {
		it.fail(errs.Newf(errs.KindMalformedBytes, "unknown element tag 0x%02X at offset %d", tag, it.r.Pos()-1))
		return false
	}
	key, err := it.r.ReadCString(false)
	if err != nil {
		it.fail(err)
		return false
	}
	it.key = key

	payload, err := rawPayload(it.r, t)
	if err != nil {
		it.fail(err)
		return false
	}
	if it.r.Pos() > it.end {
		it.fail(errs.Newf(errs.KindMalformedBytes, "element overruns document end %d", it.end))
		return false
	}
	it.val = RawValue{Type: t, Data: payload}

	return true
}

// Key returns the key of the current element.
func (it *RawIter) Key() string {
	return it.key
}

// Value returns the current element's value view.
func (it *RawIter) Value() RawValue {
	return it.val
}

// Err returns the error that stopped iteration, if any.
func (it *RawIter) Err() error {
	return it.err
}

func (it *RawIter) fail(err error) {
	it.done = true
	if it.err != nil {
		return
	}
	if it.key != "" {
		err = errs.Prepend(err, it.key)
	}
	it.err = err
}

// rawPayload consumes and returns the payload slice for one element of
// type t without decoding it.
func rawPayload(r *wire.Reader, t format.Type) ([]byte, error) {
	start := r.Pos()
	switch t {
	case format.TypeDouble, format.TypeDateTime, format.TypeInt64, format.TypeTimestamp:
		return r.ReadBytes(8)

	case format.TypeString, format.TypeJavaScript, format.TypeSymbol:
		length, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		if length < 1 {
			return nil, errs.Wrapf(errs.KindMalformedBytes, errs.ErrMalformedLength, "string length %d at offset %d", length, start)
		}
		if err := r.Skip(int(length)); err != nil {
			return nil, err
		}

	case format.TypeDocument, format.TypeArray:
		length, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		if length < 5 {
			return nil, errs.Newf(errs.KindMalformedBytes, "document length %d at offset %d is too small", length, start)
		}
		if err := r.Skip(int(length) - 4); err != nil {
			return nil, err
		}

	case format.TypeBinary:
		length, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		if length < 0 {
			return nil, errs.Wrapf(errs.KindMalformedBytes, errs.ErrMalformedLength, "binary length %d at offset %d", length, start)
		}
		if err := r.Skip(int(length) + 1); err != nil {
			return nil, err
		}

	case format.TypeUndefined, format.TypeNull, format.TypeMinKey, format.TypeMaxKey:
		return nil, nil

	case format.TypeObjectID:
		return r.ReadBytes(12)

	case format.TypeBoolean:
		return r.ReadBytes(1)

	case format.TypeRegex:
		if _, err := r.ReadCStringBytes(); err != nil {
			return nil, err
		}
		if _, err := r.ReadCStringBytes(); err != nil {
			return nil, err
		}

	case format.TypeDBPointer:
		length, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		if length < 1 {
			return nil, errs.Wrapf(errs.KindMalformedBytes, errs.ErrMalformedLength, "dbpointer ref length %d at offset %d", length, start)
		}
		if err := r.Skip(int(length) + 12); err != nil {
			return nil, err
		}

	case format.TypeCodeWithScope:
		total, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		if total < 14 {
			return nil, errs.Newf(errs.KindMalformedBytes, "code-with-scope length %d at offset %d is too small", total, start)
		}
		if err := r.Skip(int(total) - 4); err != nil {
			return nil, err
		}

	case format.TypeInt32:
		return r.ReadBytes(4)

	case format.TypeDecimal128:
		return r.ReadBytes(16)

	default:
		return nil, errs.Newf(errs.KindMalformedBytes, "unknown element tag 0x%02X", byte(t))
	}

	// The variable-length cases fall through here: return the consumed
	// span as one borrow of the underlying buffer.
	return r.Span(start), nil
}
