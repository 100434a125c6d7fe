package bsonx

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/umberlabs/bsonx/format"
)

// MaxDocumentSize is the maximum encoded size of a top-level document.
// Construction and decoding of larger documents fail.
const MaxDocumentSize = 16 * 1024 * 1024

// Binary is a byte blob paired with a subtype discriminator.
type Binary struct {
	Subtype format.Subtype
	Data    []byte
}

// NewBinary creates a generic-subtype Binary over data.
func NewBinary(data []byte) Binary {
	return Binary{Subtype: format.SubtypeGeneric, Data: data}
}

// Equal reports whether b and other have the same subtype and bytes.
func (b Binary) Equal(other Binary) bool {
	return b.Subtype == other.Subtype && bytes.Equal(b.Data, other.Data)
}

func (b Binary) String() string {
	return fmt.Sprintf("Binary(subtype=0x%02X, %d bytes)", byte(b.Subtype), len(b.Data))
}

// Regex is a regular expression pattern with matching options.
//
// Options are canonicalized to ascending byte order when encoded; the
// in-memory value preserves whatever order it was constructed or
// decoded with.
type Regex struct {
	Pattern string
	Options string
}

// CanonicalOptions returns the options sorted in ascending byte order,
// the form written to the wire.
func (r Regex) CanonicalOptions() string {
	opts := []byte(r.Options)
	if sort.SliceIsSorted(opts, func(i, j int) bool { return opts[i] < opts[j] }) {
		return r.Options
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i] < opts[j] })

	return string(opts)
}

func (r Regex) String() string {
	return fmt.Sprintf("Regex(/%s/%s)", r.Pattern, r.Options)
}

// JavaScript is a string of code without scope.
type JavaScript string

// Symbol is a legacy string kind retained for wire compatibility.
type Symbol string

// CodeWithScope pairs a code string with a document of variable bindings.
type CodeWithScope struct {
	Code  string
	Scope *Document
}

func (c CodeWithScope) String() string {
	return fmt.Sprintf("CodeWithScope(%q)", c.Code)
}

// DBPointer is a legacy reference kind: a namespace string plus an
// object identifier.
type DBPointer struct {
	Ref string
	ID  ObjectID
}

func (p DBPointer) String() string {
	return fmt.Sprintf("DBPointer(%s, %s)", p.Ref, p.ID.Hex())
}

// Timestamp is an internal (time, increment) pair of unsigned 32-bit
// values, ordered lexicographically on (T, I).
type Timestamp struct {
	T uint32
	I uint32
}

// Compare orders two timestamps: -1, 0, or 1.
func (t Timestamp) Compare(other Timestamp) int {
	switch {
	case t.T < other.T:
		return -1
	case t.T > other.T:
		return 1
	case t.I < other.I:
		return -1
	case t.I > other.I:
		return 1
	default:
		return 0
	}
}

// After reports whether t is ordered after other.
func (t Timestamp) After(other Timestamp) bool {
	return t.Compare(other) > 0
}

// Before reports whether t is ordered before other.
func (t Timestamp) Before(other Timestamp) bool {
	return t.Compare(other) < 0
}

func (t Timestamp) String() string {
	return fmt.Sprintf("Timestamp(t=%d, i=%d)", t.T, t.I)
}

// MinKey orders below every other value.
type MinKey struct{}

// MaxKey orders above every other value.
type MaxKey struct{}

// Undefined is the deprecated undefined kind.
type Undefined struct{}

// Null is the null kind. A Null value and a Go nil both encode as 0x0A.
type Null struct{}
