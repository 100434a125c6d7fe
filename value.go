package bsonx

import (
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/umberlabs/bsonx/format"
	"github.com/umberlabs/bsonx/internal/hash"
)

// Value is the tagged union over every element kind. The zero Value has
// type 0 and is not valid on the wire; use the *Value constructors.
//
// Values own their storage: strings, binary payloads, documents, and
// arrays reachable from a Value are not shared with any input buffer.
type Value struct {
	t format.Type
	v any
}

// Array is an ordered sequence of values, encoded on the wire as a
// framed document with ASCII decimal index keys.
type Array []Value

// Constructors, one per element kind.

func DoubleValue(f float64) Value         { return Value{t: format.TypeDouble, v: f} }
func StringValue(s string) Value          { return Value{t: format.TypeString, v: s} }
func DocumentValue(d *Document) Value     { return Value{t: format.TypeDocument, v: d} }
func ArrayValue(a Array) Value            { return Value{t: format.TypeArray, v: a} }
func BinaryValue(b Binary) Value          { return Value{t: format.TypeBinary, v: b} }
func UndefinedValue() Value               { return Value{t: format.TypeUndefined} }
func ObjectIDValue(id ObjectID) Value     { return Value{t: format.TypeObjectID, v: id} }
func BooleanValue(b bool) Value           { return Value{t: format.TypeBoolean, v: b} }
func DateTimeValue(d DateTime) Value      { return Value{t: format.TypeDateTime, v: d} }
func NullValue() Value                    { return Value{t: format.TypeNull} }
func RegexValue(r Regex) Value            { return Value{t: format.TypeRegex, v: r} }
func DBPointerValue(p DBPointer) Value    { return Value{t: format.TypeDBPointer, v: p} }
func JavaScriptValue(js JavaScript) Value { return Value{t: format.TypeJavaScript, v: js} }
func SymbolValue(s Symbol) Value          { return Value{t: format.TypeSymbol, v: s} }
func CodeWithScopeValue(c CodeWithScope) Value {
	return Value{t: format.TypeCodeWithScope, v: c}
}
func Int32Value(i int32) Value           { return Value{t: format.TypeInt32, v: i} }
func TimestampValue(ts Timestamp) Value  { return Value{t: format.TypeTimestamp, v: ts} }
func Int64Value(i int64) Value           { return Value{t: format.TypeInt64, v: i} }
func Decimal128Value(d Decimal128) Value { return Value{t: format.TypeDecimal128, v: d} }
func MinKeyValue() Value                 { return Value{t: format.TypeMinKey} }
func MaxKeyValue() Value                 { return Value{t: format.TypeMaxKey} }

// Type returns the element kind, or 0 for the zero Value.
func (v Value) Type() format.Type {
	return v.t
}

// IsZero reports whether v is the invalid zero Value.
func (v Value) IsZero() bool {
	return v.t == 0
}

// Typed accessors. Each returns the payload and true when the value has
// the matching kind, and the zero payload and false otherwise.

func (v Value) DoubleOK() (float64, bool) {
	f, ok := v.v.(float64)
	return f, ok && v.t == format.TypeDouble
}

func (v Value) StringValueOK() (string, bool) {
	s, ok := v.v.(string)
	return s, ok && v.t == format.TypeString
}

func (v Value) DocumentOK() (*Document, bool) {
	d, ok := v.v.(*Document)
	return d, ok && v.t == format.TypeDocument
}

func (v Value) ArrayOK() (Array, bool) {
	a, ok := v.v.(Array)
	return a, ok && v.t == format.TypeArray
}

func (v Value) BinaryOK() (Binary, bool) {
	b, ok := v.v.(Binary)
	return b, ok && v.t == format.TypeBinary
}

func (v Value) ObjectIDOK() (ObjectID, bool) {
	id, ok := v.v.(ObjectID)
	return id, ok && v.t == format.TypeObjectID
}

func (v Value) BooleanOK() (bool, bool) {
	b, ok := v.v.(bool)
	return b, ok && v.t == format.TypeBoolean
}

func (v Value) DateTimeOK() (DateTime, bool) {
	d, ok := v.v.(DateTime)
	return d, ok && v.t == format.TypeDateTime
}

func (v Value) RegexOK() (Regex, bool) {
	r, ok := v.v.(Regex)
	return r, ok && v.t == format.TypeRegex
}

func (v Value) DBPointerOK() (DBPointer, bool) {
	p, ok := v.v.(DBPointer)
	return p, ok && v.t == format.TypeDBPointer
}

func (v Value) JavaScriptOK() (JavaScript, bool) {
	js, ok := v.v.(JavaScript)
	return js, ok && v.t == format.TypeJavaScript
}

func (v Value) SymbolOK() (Symbol, bool) {
	s, ok := v.v.(Symbol)
	return s, ok && v.t == format.TypeSymbol
}

func (v Value) CodeWithScopeOK() (CodeWithScope, bool) {
	c, ok := v.v.(CodeWithScope)
	return c, ok && v.t == format.TypeCodeWithScope
}

func (v Value) Int32OK() (int32, bool) {
	i, ok := v.v.(int32)
	return i, ok && v.t == format.TypeInt32
}

func (v Value) TimestampOK() (Timestamp, bool) {
	ts, ok := v.v.(Timestamp)
	return ts, ok && v.t == format.TypeTimestamp
}

func (v Value) Int64OK() (int64, bool) {
	i, ok := v.v.(int64)
	return i, ok && v.t == format.TypeInt64
}

func (v Value) Decimal128OK() (Decimal128, bool) {
	d, ok := v.v.(Decimal128)
	return d, ok && v.t == format.TypeDecimal128
}

// IsNull reports whether v is the null kind.
func (v Value) IsNull() bool {
	return v.t == format.TypeNull
}

// IsNumber reports whether v is an int32, int64, double, or decimal128.
func (v Value) IsNumber() bool {
	switch v.t {
	case format.TypeInt32, format.TypeInt64, format.TypeDouble, format.TypeDecimal128:
		return true
	default:
		return false
	}
}

// AsInt64OK lifts int32 and int64 values, and doubles with an exact
// integer representation, to int64.
func (v Value) AsInt64OK() (int64, bool) {
	switch v.t {
	case format.TypeInt32:
		return int64(v.v.(int32)), true
	case format.TypeInt64:
		return v.v.(int64), true
	case format.TypeDouble:
		f := v.v.(float64)
		i := int64(f)
		if float64(i) == f {
			return i, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// Equal reports deep equality. Doubles compare bitwise, so two NaN
// values with identical payloads are Equal even though they are unequal
// as numbers. Documents compare as ordered pair sequences.
func (v Value) Equal(other Value) bool {
	if v.t != other.t {
		return false
	}
	switch v.t {
	case 0, format.TypeUndefined, format.TypeNull, format.TypeMinKey, format.TypeMaxKey:
		return true
	case format.TypeDouble:
		return math.Float64bits(v.v.(float64)) == math.Float64bits(other.v.(float64))
	case format.TypeDocument:
		return v.v.(*Document).Equal(other.v.(*Document))
	case format.TypeArray:
		a, b := v.v.(Array), other.v.(Array)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case format.TypeBinary:
		return v.v.(Binary).Equal(other.v.(Binary))
	case format.TypeCodeWithScope:
		a, b := v.v.(CodeWithScope), other.v.(CodeWithScope)
		return a.Code == b.Code && a.Scope.Equal(b.Scope)
	default:
		return v.v == other.v
	}
}

// Hash returns a process-stable 64-bit hash consistent with Equal:
// equal values hash equally. Documents hash as a stable-sorted sequence
// of pairs so that hashing is insensitive to insertion order.
func (v Value) Hash() uint64 {
	d := hash.NewDigest()
	v.hashInto(d)

	return d.Sum64()
}

func (v Value) hashInto(d *xxhash.Digest) {
	var scratch [8]byte
	writeU64 := func(u uint64) {
		le.PutUint64(scratch[:], u)
		_, _ = d.Write(scratch[:])
	}
	_, _ = d.Write([]byte{byte(v.t)})

	switch v.t {
	case 0, format.TypeUndefined, format.TypeNull, format.TypeMinKey, format.TypeMaxKey:
	case format.TypeDouble:
		writeU64(math.Float64bits(v.v.(float64)))
	case format.TypeString:
		_, _ = d.WriteString(v.v.(string))
	case format.TypeJavaScript:
		_, _ = d.WriteString(string(v.v.(JavaScript)))
	case format.TypeSymbol:
		_, _ = d.WriteString(string(v.v.(Symbol)))
	case format.TypeDocument:
		v.v.(*Document).hashInto(d)
	case format.TypeArray:
		a := v.v.(Array)
		writeU64(uint64(len(a)))
		for _, elem := range a {
			elem.hashInto(d)
		}
	case format.TypeBinary:
		b := v.v.(Binary)
		_, _ = d.Write([]byte{byte(b.Subtype)})
		_, _ = d.Write(b.Data)
	case format.TypeObjectID:
		id := v.v.(ObjectID)
		_, _ = d.Write(id[:])
	case format.TypeBoolean:
		if v.v.(bool) {
			_, _ = d.Write([]byte{1})
		} else {
			_, _ = d.Write([]byte{0})
		}
	case format.TypeDateTime:
		writeU64(uint64(v.v.(DateTime)))
	case format.TypeRegex:
		r := v.v.(Regex)
		_, _ = d.WriteString(r.Pattern)
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(r.Options)
	case format.TypeDBPointer:
		p := v.v.(DBPointer)
		_, _ = d.WriteString(p.Ref)
		_, _ = d.Write(p.ID[:])
	case format.TypeCodeWithScope:
		c := v.v.(CodeWithScope)
		_, _ = d.WriteString(c.Code)
		c.Scope.hashInto(d)
	case format.TypeInt32:
		writeU64(uint64(uint32(v.v.(int32))))
	case format.TypeTimestamp:
		ts := v.v.(Timestamp)
		writeU64(uint64(ts.T)<<32 | uint64(ts.I))
	case format.TypeInt64:
		writeU64(uint64(v.v.(int64)))
	case format.TypeDecimal128:
		dec := v.v.(Decimal128)
		writeU64(dec.h)
		writeU64(dec.l)
	}
}

// hashSortedPairs hashes document entries sorted by key. Entries with
// equal keys keep their relative order.
func hashSortedPairs(d *xxhash.Digest, entries []docEntry) {
	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return entries[idx[a]].key < entries[idx[b]].key })
	var scratch [8]byte
	le.PutUint64(scratch[:], uint64(len(entries)))
	_, _ = d.Write(scratch[:])
	for _, i := range idx {
		_, _ = d.WriteString(entries[i].key)
		_, _ = d.Write([]byte{0})
		entries[i].val.hashInto(d)
	}
}

func (v Value) String() string {
	switch v.t {
	case format.TypeString:
		return fmt.Sprintf("%q", v.v.(string))
	case format.TypeUndefined:
		return "Undefined()"
	case format.TypeNull:
		return "Null()"
	case format.TypeMinKey:
		return "MinKey()"
	case format.TypeMaxKey:
		return "MaxKey()"
	case 0:
		return "Value(invalid)"
	default:
		return fmt.Sprintf("%v", v.v)
	}
}

// GoString renders the value with its kind spelled out, for unambiguous
// debug output.
func (v Value) GoString() string {
	return fmt.Sprintf("bsonx.Value{%s: %s}", v.t, v.String())
}
