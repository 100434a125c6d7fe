package bsonx

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/umberlabs/bsonx/errs"
	"github.com/umberlabs/bsonx/format"
)

var testUUID = uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")

func TestBinaryUUID_Standard(t *testing.T) {
	b := NewBinaryFromUUID(testUUID)
	require.Equal(t, format.SubtypeUUID, b.Subtype)
	require.Equal(t, testUUID[:], b.Data)

	back, err := b.UUID()
	require.NoError(t, err)
	require.Equal(t, testUUID, back)
}

func TestBinaryUUID_LegacyRepresentationsRoundTrip(t *testing.T) {
	for _, rep := range []UUIDRepresentation{UUIDLegacyCSharp, UUIDLegacyJava, UUIDLegacyPython} {
		b := NewBinaryFromUUIDWithRepresentation(testUUID, rep)
		require.Equal(t, format.SubtypeUUIDOld, b.Subtype, "rep %d", rep)

		back, err := b.UUIDWithRepresentation(rep)
		require.NoError(t, err, "rep %d", rep)
		require.Equal(t, testUUID, back, "rep %d", rep)
	}
}

func TestBinaryUUID_CSharpByteOrder(t *testing.T) {
	b := NewBinaryFromUUIDWithRepresentation(testUUID, UUIDLegacyCSharp)
	require.Equal(t, []byte{
		0x33, 0x22, 0x11, 0x00,
		0x55, 0x44,
		0x77, 0x66,
		0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
	}, b.Data)
}

func TestBinaryUUID_JavaByteOrder(t *testing.T) {
	b := NewBinaryFromUUIDWithRepresentation(testUUID, UUIDLegacyJava)
	require.Equal(t, []byte{
		0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11, 0x00,
		0xFF, 0xEE, 0xDD, 0xCC, 0xBB, 0xAA, 0x99, 0x88,
	}, b.Data)
}

func TestBinaryUUID_Mismatches(t *testing.T) {
	b := NewBinaryFromUUID(testUUID)

	// Standard binary read with a legacy representation.
	_, err := b.UUIDWithRepresentation(UUIDLegacyJava)
	require.ErrorIs(t, err, errs.ErrRepresentationMismatch)

	// Wrong payload size.
	short := Binary{Subtype: format.SubtypeUUID, Data: []byte{1, 2, 3}}
	_, err = short.UUID()
	require.ErrorIs(t, err, errs.ErrInvalidLength)
}

func TestBinaryUUID_DoesNotAliasInput(t *testing.T) {
	b := NewBinaryFromUUID(testUUID)
	b.Data[0] = 0xEE
	require.Equal(t, byte(0x00), testUUID[0])
}
