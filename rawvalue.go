package bsonx

import (
	"iter"

	"github.com/umberlabs/bsonx/errs"
	"github.com/umberlabs/bsonx/format"
	"github.com/umberlabs/bsonx/wire"
)

// RawValue is a typed reference into a RawDocument: the element kind
// plus the payload bytes, still borrowing the underlying buffer. Typed
// accessors validate the payload on demand.
type RawValue struct {
	Type format.Type
	Data []byte
}

func (rv RawValue) reader() *wire.Reader {
	return wire.NewReader(rv.Data)
}

func (rv RawValue) mismatch(expected format.Type) error {
	return errs.Newf(errs.KindUnexpectedType, "expected %s, found %s", expected, rv.Type)
}

// Double decodes an 8-byte IEEE-754 float payload.
func (rv RawValue) Double() (float64, error) {
	if rv.Type != format.TypeDouble {
		return 0, rv.mismatch(format.TypeDouble)
	}

	return rv.reader().ReadDouble()
}

// StringBytes returns the string payload without its length prefix and
// NUL, borrowing the underlying buffer and skipping UTF-8 validation.
func (rv RawValue) StringBytes() ([]byte, error) {
	if rv.Type != format.TypeString {
		return nil, rv.mismatch(format.TypeString)
	}

	return rv.reader().ReadStringBytes()
}

// StringValue decodes and validates the string payload.
func (rv RawValue) StringValue() (string, error) {
	if rv.Type != format.TypeString {
		return "", rv.mismatch(format.TypeString)
	}

	return rv.reader().ReadString(false)
}

// Document re-wraps an embedded document payload as a RawDocument
// without copying.
func (rv RawValue) Document() (RawDocument, error) {
	if rv.Type != format.TypeDocument {
		return nil, rv.mismatch(format.TypeDocument)
	}

	return NewRawDocument(rv.Data)
}

// Array re-wraps an array payload as a RawArray without copying.
func (rv RawValue) Array() (RawArray, error) {
	if rv.Type != format.TypeArray {
		return nil, rv.mismatch(format.TypeArray)
	}
	if _, err := NewRawDocument(rv.Data); err != nil {
		return nil, err
	}

	return RawArray(rv.Data), nil
}

// Binary decodes the binary payload. The returned Data borrows the
// underlying buffer; for the legacy 0x02 subtype the redundant inner
// length is validated and stripped.
func (rv RawValue) Binary() (Binary, error) {
	if rv.Type != format.TypeBinary {
		return Binary{}, rv.mismatch(format.TypeBinary)
	}
	r := rv.reader()
	length, err := r.ReadInt32()
	if err != nil {
		return Binary{}, err
	}
	if length < 0 {
		return Binary{}, errs.Wrapf(errs.KindMalformedBytes, errs.ErrMalformedLength, "binary length %d", length)
	}
	subtype, err := r.ReadByte()
	if err != nil {
		return Binary{}, err
	}
	payload, err := r.ReadBytes(int(length))
	if err != nil {
		return Binary{}, err
	}
	if format.Subtype(subtype) == format.SubtypeBinaryOld {
		if length < 4 {
			return Binary{}, errs.Newf(errs.KindMalformedBytes, "legacy binary length %d is too small", length)
		}
		inner := int32(le.Uint32(payload[:4]))
		if inner != length-4 {
			return Binary{}, errs.Newf(errs.KindMalformedBytes, "legacy binary inner length %d does not match outer length %d", inner, length)
		}
		payload = payload[4:]
	}

	return Binary{Subtype: format.Subtype(subtype), Data: payload}, nil
}

// ObjectID decodes a 12-byte identifier payload.
func (rv RawValue) ObjectID() (ObjectID, error) {
	if rv.Type != format.TypeObjectID {
		return NilObjectID, rv.mismatch(format.TypeObjectID)
	}
	b, err := rv.reader().ReadBytes(12)
	if err != nil {
		return NilObjectID, err
	}
	var id ObjectID
	copy(id[:], b)

	return id, nil
}

// Boolean decodes a boolean payload, rejecting bytes other than 0x00
// and 0x01.
func (rv RawValue) Boolean() (bool, error) {
	if rv.Type != format.TypeBoolean {
		return false, rv.mismatch(format.TypeBoolean)
	}
	b, err := rv.reader().ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	default:
		return false, errs.Newf(errs.KindMalformedBytes, "boolean byte 0x%02X", b)
	}
}

// DateTime decodes a millisecond datetime payload.
func (rv RawValue) DateTime() (DateTime, error) {
	if rv.Type != format.TypeDateTime {
		return 0, rv.mismatch(format.TypeDateTime)
	}
	ms, err := rv.reader().ReadInt64()
	if err != nil {
		return 0, err
	}

	return DateTime(ms), nil
}

// Regex decodes the pattern and options. Option order is preserved
// exactly as it appears on the wire.
func (rv RawValue) Regex() (Regex, error) {
	if rv.Type != format.TypeRegex {
		return Regex{}, rv.mismatch(format.TypeRegex)
	}
	r := rv.reader()
	pattern, err := r.ReadCString(false)
	if err != nil {
		return Regex{}, err
	}
	opts, err := r.ReadCString(false)
	if err != nil {
		return Regex{}, err
	}

	return Regex{Pattern: pattern, Options: opts}, nil
}

// DBPointer decodes the legacy namespace-plus-identifier payload.
func (rv RawValue) DBPointer() (DBPointer, error) {
	if rv.Type != format.TypeDBPointer {
		return DBPointer{}, rv.mismatch(format.TypeDBPointer)
	}
	r := rv.reader()
	ref, err := r.ReadString(false)
	if err != nil {
		return DBPointer{}, err
	}
	b, err := r.ReadBytes(12)
	if err != nil {
		return DBPointer{}, err
	}
	var id ObjectID
	copy(id[:], b)

	return DBPointer{Ref: ref, ID: id}, nil
}

// JavaScript decodes a code payload.
func (rv RawValue) JavaScript() (JavaScript, error) {
	if rv.Type != format.TypeJavaScript {
		return "", rv.mismatch(format.TypeJavaScript)
	}
	s, err := rv.reader().ReadString(false)

	return JavaScript(s), err
}

// Symbol decodes a symbol payload.
func (rv RawValue) Symbol() (Symbol, error) {
	if rv.Type != format.TypeSymbol {
		return "", rv.mismatch(format.TypeSymbol)
	}
	s, err := rv.reader().ReadString(false)

	return Symbol(s), err
}

// CodeWithScope decodes the code string and re-wraps the scope as a
// RawDocument without copying.
func (rv RawValue) CodeWithScope() (string, RawDocument, error) {
	if rv.Type != format.TypeCodeWithScope {
		return "", nil, rv.mismatch(format.TypeCodeWithScope)
	}
	r := rv.reader()
	total, err := r.ReadInt32()
	if err != nil {
		return "", nil, err
	}
	if int(total) != len(rv.Data) {
		return "", nil, errs.Newf(errs.KindMalformedBytes, "code-with-scope length %d does not match payload length %d", total, len(rv.Data))
	}
	code, err := r.ReadString(false)
	if err != nil {
		return "", nil, err
	}
	scopeBytes, err := r.ReadBytes(r.Remaining())
	if err != nil {
		return "", nil, err
	}
	scope, err := NewRawDocument(scopeBytes)
	if err != nil {
		return "", nil, err
	}

	return code, scope, nil
}

// Int32 decodes a 4-byte integer payload.
func (rv RawValue) Int32() (int32, error) {
	if rv.Type != format.TypeInt32 {
		return 0, rv.mismatch(format.TypeInt32)
	}

	return rv.reader().ReadInt32()
}

// Timestamp decodes an internal timestamp payload.
func (rv RawValue) Timestamp() (Timestamp, error) {
	if rv.Type != format.TypeTimestamp {
		return Timestamp{}, rv.mismatch(format.TypeTimestamp)
	}
	r := rv.reader()
	inc, err := r.ReadUint32()
	if err != nil {
		return Timestamp{}, err
	}
	t, err := r.ReadUint32()
	if err != nil {
		return Timestamp{}, err
	}

	return Timestamp{T: t, I: inc}, nil
}

// Int64 decodes an 8-byte integer payload.
func (rv RawValue) Int64() (int64, error) {
	if rv.Type != format.TypeInt64 {
		return 0, rv.mismatch(format.TypeInt64)
	}

	return rv.reader().ReadInt64()
}

// Decimal128 decodes a 16-byte decimal payload.
func (rv RawValue) Decimal128() (Decimal128, error) {
	if rv.Type != format.TypeDecimal128 {
		return Decimal128{}, rv.mismatch(format.TypeDecimal128)
	}
	r := rv.reader()
	l, err := r.ReadUint64()
	if err != nil {
		return Decimal128{}, err
	}
	h, err := r.ReadUint64()
	if err != nil {
		return Decimal128{}, err
	}

	return NewDecimal128(h, l), nil
}

// ToValue materializes the payload into an owned Value.
func (rv RawValue) ToValue() (Value, error) {
	r := wire.NewReader(rv.Data)
	v, err := decodeValue(r, rv.Type, &decodeConfig{})
	if err != nil {
		return Value{}, err
	}
	if r.Remaining() != 0 {
		return Value{}, errs.Newf(errs.KindMalformedBytes, "%d trailing bytes after %s payload", r.Remaining(), rv.Type)
	}

	return v, nil
}

// Validate checks the payload, recursing into embedded documents and
// arrays.
func (rv RawValue) Validate() error {
	switch rv.Type {
	case format.TypeDocument:
		sub, err := rv.Document()
		if err != nil {
			return err
		}
		return sub.Validate()
	case format.TypeArray:
		sub, err := rv.Array()
		if err != nil {
			return err
		}
		return RawDocument(sub).Validate()
	default:
		_, err := rv.ToValue()
		return err
	}
}

// Typed lookups on RawDocument. Each returns (zero, false, nil) when
// the key is absent, the decoded payload when present with the matching
// kind, and an unexpected-type error otherwise.

func (rd RawDocument) LookupDouble(key string) (float64, bool, error) {
	rv, found, err := rd.Get(key)
	if err != nil || !found {
		return 0, false, err
	}
	f, err := rv.Double()
	if err != nil {
		return 0, false, errs.Prepend(err, key)
	}

	return f, true, nil
}

func (rd RawDocument) LookupString(key string) (string, bool, error) {
	rv, found, err := rd.Get(key)
	if err != nil || !found {
		return "", false, err
	}
	s, err := rv.StringValue()
	if err != nil {
		return "", false, errs.Prepend(err, key)
	}

	return s, true, nil
}

func (rd RawDocument) LookupDocument(key string) (RawDocument, bool, error) {
	rv, found, err := rd.Get(key)
	if err != nil || !found {
		return nil, false, err
	}
	sub, err := rv.Document()
	if err != nil {
		return nil, false, errs.Prepend(err, key)
	}

	return sub, true, nil
}

func (rd RawDocument) LookupArray(key string) (RawArray, bool, error) {
	rv, found, err := rd.Get(key)
	if err != nil || !found {
		return nil, false, err
	}
	arr, err := rv.Array()
	if err != nil {
		return nil, false, errs.Prepend(err, key)
	}

	return arr, true, nil
}

func (rd RawDocument) LookupBinary(key string) (Binary, bool, error) {
	rv, found, err := rd.Get(key)
	if err != nil || !found {
		return Binary{}, false, err
	}
	b, err := rv.Binary()
	if err != nil {
		return Binary{}, false, errs.Prepend(err, key)
	}

	return b, true, nil
}

func (rd RawDocument) LookupObjectID(key string) (ObjectID, bool, error) {
	rv, found, err := rd.Get(key)
	if err != nil || !found {
		return NilObjectID, false, err
	}
	id, err := rv.ObjectID()
	if err != nil {
		return NilObjectID, false, errs.Prepend(err, key)
	}

	return id, true, nil
}

func (rd RawDocument) LookupBoolean(key string) (bool, bool, error) {
	rv, found, err := rd.Get(key)
	if err != nil || !found {
		return false, false, err
	}
	b, err := rv.Boolean()
	if err != nil {
		return false, false, errs.Prepend(err, key)
	}

	return b, true, nil
}

func (rd RawDocument) LookupDateTime(key string) (DateTime, bool, error) {
	rv, found, err := rd.Get(key)
	if err != nil || !found {
		return 0, false, err
	}
	dt, err := rv.DateTime()
	if err != nil {
		return 0, false, errs.Prepend(err, key)
	}

	return dt, true, nil
}

func (rd RawDocument) LookupInt32(key string) (int32, bool, error) {
	rv, found, err := rd.Get(key)
	if err != nil || !found {
		return 0, false, err
	}
	i, err := rv.Int32()
	if err != nil {
		return 0, false, errs.Prepend(err, key)
	}

	return i, true, nil
}

func (rd RawDocument) LookupInt64(key string) (int64, bool, error) {
	rv, found, err := rd.Get(key)
	if err != nil || !found {
		return 0, false, err
	}
	i, err := rv.Int64()
	if err != nil {
		return 0, false, errs.Prepend(err, key)
	}

	return i, true, nil
}

func (rd RawDocument) LookupTimestamp(key string) (Timestamp, bool, error) {
	rv, found, err := rd.Get(key)
	if err != nil || !found {
		return Timestamp{}, false, err
	}
	ts, err := rv.Timestamp()
	if err != nil {
		return Timestamp{}, false, errs.Prepend(err, key)
	}

	return ts, true, nil
}

func (rd RawDocument) LookupDecimal128(key string) (Decimal128, bool, error) {
	rv, found, err := rd.Get(key)
	if err != nil || !found {
		return Decimal128{}, false, err
	}
	dec, err := rv.Decimal128()
	if err != nil {
		return Decimal128{}, false, errs.Prepend(err, key)
	}

	return dec, true, nil
}

// RawArray is a zero-copy view of an array frame. Keys are ignored
// during iteration, so frames with non-contiguous index keys remain
// walkable; the strict check lives in the materializing decoder.
type RawArray []byte

// Values returns a range-over-func iterator over the element values in
// positional order.
func (ra RawArray) Values() iter.Seq[RawValue] {
	return func(yield func(RawValue) bool) {
		it := RawDocument(ra).Iter()
		for it.Next() {
			if !yield(it.Value()) {
				return
			}
		}
	}
}

// Index returns the i-th element. It fails with a value-not-present
// error when the array has i or fewer elements.
func (ra RawArray) Index(i int) (RawValue, error) {
	it := RawDocument(ra).Iter()
	n := 0
	for it.Next() {
		if n == i {
			return it.Value(), nil
		}
		n++
	}
	if err := it.Err(); err != nil {
		return RawValue{}, err
	}

	return RawValue{}, errs.Newf(errs.KindValueNotPresent, "array index %d out of %d elements", i, n)
}

// Len walks the array and returns the element count.
func (ra RawArray) Len() (int, error) {
	it := RawDocument(ra).Iter()
	n := 0
	for it.Next() {
		n++
	}

	return n, it.Err()
}
