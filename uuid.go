package bsonx

import (
	"github.com/google/uuid"

	"github.com/umberlabs/bsonx/errs"
	"github.com/umberlabs/bsonx/format"
)

// UUIDRepresentation selects how a UUID maps onto a binary element.
// Standard is RFC 4122 byte order under subtype 0x04; the legacy
// representations reproduce the byte shuffles of older drivers under
// subtype 0x03.
type UUIDRepresentation uint8

const (
	UUIDStandard     UUIDRepresentation = iota // subtype 0x04, RFC 4122 byte order
	UUIDLegacyCSharp                           // subtype 0x03, little-endian first three groups
	UUIDLegacyJava                             // subtype 0x03, both halves byte-reversed
	UUIDLegacyPython                           // subtype 0x03, RFC 4122 byte order
)

// NewBinaryFromUUID wraps a UUID as a standard subtype-4 binary.
func NewBinaryFromUUID(u uuid.UUID) Binary {
	return Binary{Subtype: format.SubtypeUUID, Data: append([]byte(nil), u[:]...)}
}

// NewBinaryFromUUIDWithRepresentation wraps a UUID using the given
// representation's subtype and byte order.
func NewBinaryFromUUIDWithRepresentation(u uuid.UUID, rep UUIDRepresentation) Binary {
	if rep == UUIDStandard {
		return NewBinaryFromUUID(u)
	}
	data := make([]byte, 16)
	copy(data, u[:])
	shuffleUUID(data, rep)

	return Binary{Subtype: format.SubtypeUUIDOld, Data: data}
}

// UUID unwraps a standard subtype-4 binary into a UUID.
func (b Binary) UUID() (uuid.UUID, error) {
	return b.UUIDWithRepresentation(UUIDStandard)
}

// UUIDWithRepresentation unwraps a binary into a UUID, validating that
// the subtype matches the representation and undoing its byte order.
func (b Binary) UUIDWithRepresentation(rep UUIDRepresentation) (uuid.UUID, error) {
	if len(b.Data) != 16 {
		return uuid.Nil, errs.Newf(errs.KindInvalidLength, "UUID binary has %d bytes, want 16", len(b.Data))
	}
	want := format.SubtypeUUID
	if rep != UUIDStandard {
		want = format.SubtypeUUIDOld
	}
	if b.Subtype != want {
		return uuid.Nil, errs.Newf(errs.KindRepresentationMismatch,
			"binary subtype 0x%02X does not match representation subtype 0x%02X", byte(b.Subtype), byte(want))
	}

	data := make([]byte, 16)
	copy(data, b.Data)
	// Every legacy shuffle is its own inverse.
	shuffleUUID(data, rep)

	return uuid.FromBytes(data)
}

func shuffleUUID(data []byte, rep UUIDRepresentation) {
	switch rep {
	case UUIDLegacyCSharp:
		data[0], data[1], data[2], data[3] = data[3], data[2], data[1], data[0]
		data[4], data[5] = data[5], data[4]
		data[6], data[7] = data[7], data[6]
	case UUIDLegacyJava:
		for i := 0; i < 4; i++ {
			data[i], data[7-i] = data[7-i], data[i]
			data[8+i], data[15-i] = data[15-i], data[8+i]
		}
	case UUIDStandard, UUIDLegacyPython:
		// RFC 4122 byte order as-is.
	}
}
