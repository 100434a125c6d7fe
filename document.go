package bsonx

import (
	"iter"

	"github.com/cespare/xxhash/v2"

	"github.com/umberlabs/bsonx/errs"
	"github.com/umberlabs/bsonx/format"
	"github.com/umberlabs/bsonx/internal/hash"
)

type docEntry struct {
	key string
	val Value
}

// Document is an insertion-ordered map from string keys to values.
//
// Iteration yields pairs in insertion order. Key uniqueness is not
// enforced: decoding preserves duplicate keys exactly as they appear on
// the wire, and Get returns the first match. Set replaces the first
// matching entry in place, keeping its position.
//
// The index into the entry list is a Go map, so lookups are O(1) with
// runtime-randomized hashing.
type Document struct {
	entries []docEntry
	index   map[string]int // first entry per key
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{index: make(map[string]int)}
}

// Len returns the number of entries, counting duplicates.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}

	return len(d.entries)
}

// Set inserts key with val, replacing the first existing entry for key
// in place and preserving its position. Returns d for chaining.
func (d *Document) Set(key string, val Value) *Document {
	if i, ok := d.index[key]; ok {
		d.entries[i].val = val
		return d
	}
	if d.index == nil {
		d.index = make(map[string]int)
	}
	d.entries = append(d.entries, docEntry{key: key, val: val})
	d.index[key] = len(d.entries) - 1

	return d
}

// Append adds an entry without replacing existing ones, so a document
// decoded from the wire can carry duplicate keys. Get still returns the
// first occurrence.
func (d *Document) Append(key string, val Value) *Document {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	d.entries = append(d.entries, docEntry{key: key, val: val})
	if _, ok := d.index[key]; !ok {
		d.index[key] = len(d.entries) - 1
	}

	return d
}

// Get returns the value of the first entry for key.
func (d *Document) Get(key string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	i, ok := d.index[key]
	if !ok {
		return Value{}, false
	}

	return d.entries[i].val, true
}

// Require returns the value for key, failing with a value-not-present
// error when the key is absent.
func (d *Document) Require(key string) (Value, error) {
	v, ok := d.Get(key)
	if !ok {
		return Value{}, errs.Newf(errs.KindValueNotPresent, "key %q", key)
	}

	return v, nil
}

// GetOrSet returns the value for key, inserting val first when the key
// is absent.
func (d *Document) GetOrSet(key string, val Value) Value {
	if v, ok := d.Get(key); ok {
		return v
	}
	d.Set(key, val)

	return val
}

// Delete removes the first entry for key, preserving the order of the
// remaining entries. It returns the removed value, if any.
func (d *Document) Delete(key string) (Value, bool) {
	i, ok := d.index[key]
	if !ok {
		return Value{}, false
	}
	removed := d.entries[i].val
	d.entries = append(d.entries[:i], d.entries[i+1:]...)
	d.reindex()

	return removed, true
}

func (d *Document) reindex() {
	d.index = make(map[string]int, len(d.entries))
	for i, e := range d.entries {
		if _, ok := d.index[e.key]; !ok {
			d.index[e.key] = i
		}
	}
}

// Keys returns the keys in insertion order, including duplicates.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, len(d.entries))
	for i, e := range d.entries {
		keys[i] = e.key
	}

	return keys
}

// All returns an iterator over (key, value) pairs in insertion order.
func (d *Document) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if d == nil {
			return
		}
		for _, e := range d.entries {
			if !yield(e.key, e.val) {
				return
			}
		}
	}
}

// Extend appends every pair of other to d, preserving other's order.
// Duplicates are appended, not replaced.
func (d *Document) Extend(other *Document) *Document {
	if other == nil {
		return d
	}
	for _, e := range other.entries {
		d.Append(e.key, e.val)
	}

	return d
}

// Equal reports whether d and other hold the same pairs in the same
// order. A nil document equals an empty one.
func (d *Document) Equal(other *Document) bool {
	if d.Len() != other.Len() {
		return false
	}
	if d == nil || other == nil {
		return true
	}
	for i := range d.entries {
		if d.entries[i].key != other.entries[i].key || !d.entries[i].val.Equal(other.entries[i].val) {
			return false
		}
	}

	return true
}

// Hash returns a process-stable hash consistent with Equal up to entry
// order: documents holding the same pairs hash equally regardless of
// insertion order.
func (d *Document) Hash() uint64 {
	dig := hash.NewDigest()
	d.hashInto(dig)

	return dig.Sum64()
}

func (d *Document) hashInto(dig *xxhash.Digest) {
	if d == nil {
		hashSortedPairs(dig, nil)
		return
	}
	hashSortedPairs(dig, d.entries)
}

// Typed getters. Each returns (zero, false, nil) when the key is
// absent, the payload when present with the matching kind, and an
// unexpected-type error when present with any other kind.

func (d *Document) GetDouble(key string) (float64, bool, error) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false, nil
	}
	f, ok := v.DoubleOK()
	if !ok {
		return 0, false, typeMismatch(key, format.TypeDouble, v.Type())
	}

	return f, true, nil
}

func (d *Document) GetString(key string) (string, bool, error) {
	v, ok := d.Get(key)
	if !ok {
		return "", false, nil
	}
	s, ok := v.StringValueOK()
	if !ok {
		return "", false, typeMismatch(key, format.TypeString, v.Type())
	}

	return s, true, nil
}

func (d *Document) GetDocument(key string) (*Document, bool, error) {
	v, ok := d.Get(key)
	if !ok {
		return nil, false, nil
	}
	sub, ok := v.DocumentOK()
	if !ok {
		return nil, false, typeMismatch(key, format.TypeDocument, v.Type())
	}

	return sub, true, nil
}

func (d *Document) GetArray(key string) (Array, bool, error) {
	v, ok := d.Get(key)
	if !ok {
		return nil, false, nil
	}
	a, ok := v.ArrayOK()
	if !ok {
		return nil, false, typeMismatch(key, format.TypeArray, v.Type())
	}

	return a, true, nil
}

func (d *Document) GetBinary(key string) (Binary, bool, error) {
	v, ok := d.Get(key)
	if !ok {
		return Binary{}, false, nil
	}
	b, ok := v.BinaryOK()
	if !ok {
		return Binary{}, false, typeMismatch(key, format.TypeBinary, v.Type())
	}

	return b, true, nil
}

func (d *Document) GetObjectID(key string) (ObjectID, bool, error) {
	v, ok := d.Get(key)
	if !ok {
		return NilObjectID, false, nil
	}
	id, ok := v.ObjectIDOK()
	if !ok {
		return NilObjectID, false, typeMismatch(key, format.TypeObjectID, v.Type())
	}

	return id, true, nil
}

func (d *Document) GetBoolean(key string) (bool, bool, error) {
	v, ok := d.Get(key)
	if !ok {
		return false, false, nil
	}
	b, ok := v.BooleanOK()
	if !ok {
		return false, false, typeMismatch(key, format.TypeBoolean, v.Type())
	}

	return b, true, nil
}

func (d *Document) GetDateTime(key string) (DateTime, bool, error) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false, nil
	}
	dt, ok := v.DateTimeOK()
	if !ok {
		return 0, false, typeMismatch(key, format.TypeDateTime, v.Type())
	}

	return dt, true, nil
}

func (d *Document) GetInt32(key string) (int32, bool, error) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false, nil
	}
	i, ok := v.Int32OK()
	if !ok {
		return 0, false, typeMismatch(key, format.TypeInt32, v.Type())
	}

	return i, true, nil
}

func (d *Document) GetInt64(key string) (int64, bool, error) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false, nil
	}
	i, ok := v.Int64OK()
	if !ok {
		return 0, false, typeMismatch(key, format.TypeInt64, v.Type())
	}

	return i, true, nil
}

func (d *Document) GetTimestamp(key string) (Timestamp, bool, error) {
	v, ok := d.Get(key)
	if !ok {
		return Timestamp{}, false, nil
	}
	ts, ok := v.TimestampOK()
	if !ok {
		return Timestamp{}, false, typeMismatch(key, format.TypeTimestamp, v.Type())
	}

	return ts, true, nil
}

func (d *Document) GetDecimal128(key string) (Decimal128, bool, error) {
	v, ok := d.Get(key)
	if !ok {
		return Decimal128{}, false, nil
	}
	dec, ok := v.Decimal128OK()
	if !ok {
		return Decimal128{}, false, typeMismatch(key, format.TypeDecimal128, v.Type())
	}

	return dec, true, nil
}

func (d *Document) GetRegex(key string) (Regex, bool, error) {
	v, ok := d.Get(key)
	if !ok {
		return Regex{}, false, nil
	}
	r, ok := v.RegexOK()
	if !ok {
		return Regex{}, false, typeMismatch(key, format.TypeRegex, v.Type())
	}

	return r, true, nil
}

func typeMismatch(key string, expected, actual format.Type) error {
	e := errs.Newf(errs.KindUnexpectedType, "expected %s, found %s", expected, actual)
	e.Path = []string{key}

	return e
}
