// Package errs defines the error taxonomy shared by all bsonx packages.
//
// Every failure surfaced by the library is an *Error carrying a stable
// Kind, an optional key path from the document root to the failing
// element, and a human-readable message. Errors compose with the
// standard errors package: errors.Is matches both the per-kind
// sentinels (ErrMalformed, ErrUnexpectedType, ...) and any wrapped
// cause, and errors.As extracts the *Error itself.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the stable classification of an error.
type Kind uint8

const (
	KindIO                     Kind = iota + 1 // underlying reader or writer failed
	KindMalformedBytes                         // structural wire violation
	KindUTF8                                   // invalid UTF-8 in a string payload under strict decoding
	KindUnexpectedType                         // typed accessor saw a different element kind
	KindValueNotPresent                        // required key was absent
	KindInvalidMapKey                          // map key was not a string
	KindUnsignedOverflow                       // unsigned integer exceeds the int64 range
	KindInvalidLength                          // value had the wrong byte count
	KindRepresentationMismatch                 // binary subtype incompatible with the requested representation
	KindExtJSONShape                           // JSON did not match the canonical shape for the kind
	KindCustom                                 // bubbled up from user marshaling code
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindMalformedBytes:
		return "malformed bytes"
	case KindUTF8:
		return "invalid UTF-8"
	case KindUnexpectedType:
		return "unexpected type"
	case KindValueNotPresent:
		return "value not present"
	case KindInvalidMapKey:
		return "invalid map key"
	case KindUnsignedOverflow:
		return "unsigned overflow"
	case KindInvalidLength:
		return "invalid length"
	case KindRepresentationMismatch:
		return "representation mismatch"
	case KindExtJSONShape:
		return "invalid extended JSON"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Per-kind sentinels. errors.Is(err, ErrMalformed) holds for every
// *Error whose Kind is KindMalformedBytes, and likewise for the rest.
var (
	ErrIO                     = errors.New("io error")
	ErrMalformed              = errors.New("malformed bytes")
	ErrUTF8                   = errors.New("invalid UTF-8")
	ErrUnexpectedType         = errors.New("unexpected type")
	ErrValueNotPresent        = errors.New("value not present")
	ErrInvalidMapKey          = errors.New("invalid map key type")
	ErrUnsignedOverflow       = errors.New("unsigned value overflows int64")
	ErrInvalidLength          = errors.New("invalid length")
	ErrRepresentationMismatch = errors.New("representation mismatch")
	ErrExtJSONShape           = errors.New("invalid extended JSON shape")
	ErrCustom                 = errors.New("custom error")
)

// Wire-level sentinels. All of them are KindMalformedBytes (or KindUTF8)
// sub-causes; errors.Is matches them through the wrapped chain.
var (
	ErrUnexpectedEOF     = errors.New("unexpected end of input")
	ErrMalformedLength   = errors.New("negative or overflowing length")
	ErrNotNullTerminated = errors.New("missing NUL terminator")
	ErrInteriorNUL       = errors.New("key contains an interior NUL byte")
	ErrDocumentTooLarge  = errors.New("document exceeds maximum size")
	ErrInvalidArrayKey   = errors.New("array keys must be consecutive decimal indices")
)

func sentinel(k Kind) error {
	switch k {
	case KindIO:
		return ErrIO
	case KindMalformedBytes:
		return ErrMalformed
	case KindUTF8:
		return ErrUTF8
	case KindUnexpectedType:
		return ErrUnexpectedType
	case KindValueNotPresent:
		return ErrValueNotPresent
	case KindInvalidMapKey:
		return ErrInvalidMapKey
	case KindUnsignedOverflow:
		return ErrUnsignedOverflow
	case KindInvalidLength:
		return ErrInvalidLength
	case KindRepresentationMismatch:
		return ErrRepresentationMismatch
	case KindExtJSONShape:
		return ErrExtJSONShape
	case KindCustom:
		return ErrCustom
	default:
		return nil
	}
}

// Error is the structured error type returned by the library.
type Error struct {
	// Kind is the stable classification.
	Kind Kind
	// Path holds the key path from the document root to the failing
	// element, outermost segment first. May be empty.
	Path []string
	// Message is the human-readable description.
	Message string
	// Err is the wrapped cause, if any.
	Err error
}

// New creates an *Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error of the given kind around a cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Wrapf creates an *Error of the given kind around a cause with a
// formatted message.
func Wrapf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if len(e.Path) > 0 {
		sb.WriteString(` at "`)
		sb.WriteString(strings.Join(e.Path, "."))
		sb.WriteString(`"`)
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the per-kind sentinel in addition to the wrapped chain.
func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

// KeyPath returns the dotted key path, or "" when no path was recorded.
func (e *Error) KeyPath() string {
	return strings.Join(e.Path, ".")
}

// Prepend returns err with segment pushed onto the front of its key
// path. A non-*Error cause is first wrapped as KindCustom so that the
// path has somewhere to live. A nil err returns nil.
func Prepend(err error, segment string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		// Copy so that callers holding the original are unaffected.
		clone := *e
		clone.Path = append([]string{segment}, e.Path...)
		return &clone
	}
	return &Error{Kind: KindCustom, Path: []string{segment}, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or zero
// when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
