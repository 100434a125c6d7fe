package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookup_KnownTags(t *testing.T) {
	known := []Type{
		TypeDouble, TypeString, TypeDocument, TypeArray, TypeBinary,
		TypeUndefined, TypeObjectID, TypeBoolean, TypeDateTime, TypeNull,
		TypeRegex, TypeDBPointer, TypeJavaScript, TypeSymbol,
		TypeCodeWithScope, TypeInt32, TypeTimestamp, TypeInt64,
		TypeDecimal128, TypeMinKey, TypeMaxKey,
	}
	for _, tt := range known {
		got, ok := Lookup(byte(tt))
		require.True(t, ok, "tag 0x%02X", byte(tt))
		require.Equal(t, tt, got)
	}
}

func TestLookup_UnknownTags(t *testing.T) {
	for _, b := range []byte{0x00, 0x14, 0x20, 0x7E, 0x80, 0xFE} {
		_, ok := Lookup(b)
		require.False(t, ok, "tag 0x%02X", b)
	}
}

func TestType_String(t *testing.T) {
	require.Equal(t, "int32", TypeInt32.String())
	require.Equal(t, "minKey", TypeMinKey.String())
	require.Equal(t, "maxKey", TypeMaxKey.String())
	require.Equal(t, "invalid", Type(0x42).String())
}

func TestClassifySubtype_Total(t *testing.T) {
	require.Equal(t, SubtypeKindNamed, ClassifySubtype(0x00))
	require.Equal(t, SubtypeKindNamed, ClassifySubtype(0x08))
	require.Equal(t, SubtypeKindReserved, ClassifySubtype(0x09))
	require.Equal(t, SubtypeKindReserved, ClassifySubtype(0x7F))
	require.Equal(t, SubtypeKindUserDefined, ClassifySubtype(0x80))
	require.Equal(t, SubtypeKindUserDefined, ClassifySubtype(0xFF))
}

func TestSubtype_String(t *testing.T) {
	require.Equal(t, "uuid", SubtypeUUID.String())
	require.Equal(t, "binaryOld", SubtypeBinaryOld.String())
	require.Equal(t, "reserved", Subtype(0x10).String())
	require.Equal(t, "userDefined", Subtype(0x90).String())
}
