package bsonx

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/umberlabs/bsonx/errs"
	"github.com/umberlabs/bsonx/format"
)

func TestEncode_EmptyDocument(t *testing.T) {
	data, err := NewDocument().MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{0x05, 0x00, 0x00, 0x00, 0x00}, data)

	doc, err := DecodeDocument(data)
	require.NoError(t, err)
	require.Equal(t, 0, doc.Len())
}

func TestEncode_SingleInt32Field(t *testing.T) {
	doc := NewDocument().Set("i", Int32Value(1))
	data, err := doc.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x0C, 0x00, 0x00, 0x00,
		0x10, 'i', 0x00,
		0x01, 0x00, 0x00, 0x00,
		0x00,
	}, data)
}

func TestEncode_NestedString(t *testing.T) {
	doc := NewDocument().Set("hi", StringValue("y'all"))
	data, err := doc.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x13, 0x00, 0x00, 0x00,
		0x02, 'h', 'i', 0x00,
		0x06, 0x00, 0x00, 0x00, 'y', '\'', 'a', 'l', 'l', 0x00,
		0x00,
	}, data)
}

func TestRoundTrip_AllKinds(t *testing.T) {
	oid, err := ObjectIDFromHex("00112233445566778899aabb")
	require.NoError(t, err)
	dec, err := ParseDecimal128("3.14")
	require.NoError(t, err)

	scope := NewDocument().Set("x", Int32Value(1))
	doc := NewDocument().
		Set("double", DoubleValue(1.5)).
		Set("string", StringValue("text")).
		Set("doc", DocumentValue(NewDocument().Set("inner", BooleanValue(true)))).
		Set("array", ArrayValue(Array{Int32Value(1), StringValue("two")})).
		Set("binary", BinaryValue(Binary{Subtype: format.SubtypeGeneric, Data: []byte{1, 2, 3}})).
		Set("binaryOld", BinaryValue(Binary{Subtype: format.SubtypeBinaryOld, Data: []byte{4, 5}})).
		Set("undefined", UndefinedValue()).
		Set("oid", ObjectIDValue(oid)).
		Set("bool", BooleanValue(true)).
		Set("datetime", DateTimeValue(NewDateTime(1356351330501))).
		Set("null", NullValue()).
		Set("regex", RegexValue(Regex{Pattern: "^a.*$", Options: "im"})).
		Set("dbPointer", DBPointerValue(DBPointer{Ref: "db.coll", ID: oid})).
		Set("js", JavaScriptValue("function() {}")).
		Set("symbol", SymbolValue("sym")).
		Set("codeWithScope", CodeWithScopeValue(CodeWithScope{Code: "f()", Scope: scope})).
		Set("int32", Int32Value(-42)).
		Set("timestamp", TimestampValue(Timestamp{T: 100, I: 7})).
		Set("int64", Int64Value(math.MaxInt64)).
		Set("decimal", Decimal128Value(dec)).
		Set("minKey", MinKeyValue()).
		Set("maxKey", MaxKeyValue())

	data, err := doc.MarshalBinary()
	require.NoError(t, err)

	decoded, err := DecodeDocument(data)
	require.NoError(t, err)
	require.True(t, doc.Equal(decoded), "decoded document differs:\n%s\n%s", doc, decoded)

	// Canonical bytes are a fixed point.
	again, err := decoded.MarshalBinary()
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, again))
}

func TestRoundTrip_PreservesKeyOrder(t *testing.T) {
	doc := NewDocument().
		Set("z", Int32Value(1)).
		Set("a", Int32Value(2)).
		Set("m", Int32Value(3))

	data, err := doc.MarshalBinary()
	require.NoError(t, err)
	decoded, err := DecodeDocument(data)
	require.NoError(t, err)
	require.Equal(t, []string{"z", "a", "m"}, decoded.Keys())
}

func TestEncode_RegexOptionsSorted(t *testing.T) {
	doc := NewDocument().Set("r", RegexValue(Regex{Pattern: "p", Options: "xsi"}))
	data, err := doc.MarshalBinary()
	require.NoError(t, err)

	decoded, err := DecodeDocument(data)
	require.NoError(t, err)
	r, _, err := decoded.GetRegex("r")
	require.NoError(t, err)
	require.Equal(t, "isx", r.Options)

	// Re-encoding the decoded document reproduces the same bytes.
	again, err := decoded.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, data, again)
}

func TestEncode_KeyWithInteriorNUL(t *testing.T) {
	doc := NewDocument().Set("bad\x00key", Int32Value(1))
	_, err := doc.MarshalBinary()
	require.ErrorIs(t, err, errs.ErrInteriorNUL)
}

func TestEncode_BinaryOldInnerLength(t *testing.T) {
	doc := NewDocument().Set("b", BinaryValue(Binary{Subtype: format.SubtypeBinaryOld, Data: []byte{0xAB, 0xCD}}))
	data, err := doc.MarshalBinary()
	require.NoError(t, err)

	// tag, "b\0", outer=6, subtype=2, inner=2, payload
	require.Equal(t, []byte{
		0x13, 0x00, 0x00, 0x00,
		0x05, 'b', 0x00,
		0x06, 0x00, 0x00, 0x00,
		0x02,
		0x02, 0x00, 0x00, 0x00,
		0xAB, 0xCD,
		0x00,
	}, data)

	decoded, err := DecodeDocument(data)
	require.NoError(t, err)
	b, _, err := decoded.GetBinary("b")
	require.NoError(t, err)
	require.Equal(t, []byte{0xAB, 0xCD}, b.Data)
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte{0x04, 0x00, 0x00, 0x00}},
		{"empty", nil},
		{"length mismatch", []byte{0x06, 0x00, 0x00, 0x00, 0x00}},
		{"missing terminator", []byte{0x05, 0x00, 0x00, 0x00, 0x01}},
		{"unknown tag", []byte{0x08, 0x00, 0x00, 0x00, 0x42, 'k', 0x00, 0x00}},
		{"truncated payload", []byte{0x0B, 0x00, 0x00, 0x00, 0x10, 'k', 0x00, 0x01, 0x00, 0x00, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDocument(tt.data)
			require.ErrorIs(t, err, errs.ErrMalformed)
		})
	}
}

func TestDecode_BadBooleanByte(t *testing.T) {
	data := []byte{
		0x09, 0x00, 0x00, 0x00,
		0x08, 'b', 0x00,
		0x02,
		0x00,
	}
	_, err := DecodeDocument(data)
	require.ErrorIs(t, err, errs.ErrMalformed)
}

func TestDecode_BinaryOldBadInnerLength(t *testing.T) {
	data := []byte{
		0x13, 0x00, 0x00, 0x00,
		0x05, 'b', 0x00,
		0x06, 0x00, 0x00, 0x00,
		0x02,
		0x05, 0x00, 0x00, 0x00, // inner 5, outer-4 is 2
		0xAB, 0xCD,
		0x00,
	}
	_, err := DecodeDocument(data)
	require.ErrorIs(t, err, errs.ErrMalformed)
}

func TestDecode_OversizeDeclaredLength(t *testing.T) {
	data := []byte{0x01, 0x00, 0x00, 0x02, 0x00} // 32 MiB + 1 declared
	_, err := DecodeDocument(data)
	require.ErrorIs(t, err, errs.ErrDocumentTooLarge)
}

func TestDecode_InvalidArrayKeys(t *testing.T) {
	// {"a": ["0" -> true, "2" -> false]} with a key gap.
	inner := []byte{
		0x0D, 0x00, 0x00, 0x00,
		0x08, '0', 0x00, 0x01,
		0x08, '2', 0x00, 0x00,
		0x00,
	}
	doc := append([]byte{
		0x15, 0x00, 0x00, 0x00,
		0x04, 'a', 0x00,
	}, inner...)
	doc = append(doc, 0x00)

	_, err := DecodeDocument(doc)
	require.ErrorIs(t, err, errs.ErrInvalidArrayKey)

	// The raw view stays walkable over the same bytes.
	raw, err := NewRawDocument(doc)
	require.NoError(t, err)
	arr, found, err := raw.LookupArray("a")
	require.NoError(t, err)
	require.True(t, found)
	n, err := arr.Len()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestDecode_UTF8Modes(t *testing.T) {
	// {"s": "<invalid>"} with a 0xFF byte in the string payload.
	data := []byte{
		0x11, 0x00, 0x00, 0x00,
		0x02, 's', 0x00,
		0x05, 0x00, 0x00, 0x00, 'a', 0xFF, 'b', 'c', 0x00,
		0x00,
	}

	_, err := DecodeDocument(data)
	require.ErrorIs(t, err, errs.ErrUTF8)

	doc, err := DecodeDocument(data, WithUTF8Lossy())
	require.NoError(t, err)
	s, _, err := doc.GetString("s")
	require.NoError(t, err)
	require.Equal(t, "a�bc", s)
}

func TestDecode_ErrorCarriesKeyPath(t *testing.T) {
	// {"outer": {"bad": <truncated int32>}}
	data := []byte{
		0x14, 0x00, 0x00, 0x00,
		0x03, 'o', 'u', 't', 'e', 'r', 0x00,
		0x08, 0x00, 0x00, 0x00,
		0x10, 'b', 'a', 'd', 0x00,
		0x00,
		0x00,
	}
	_, err := DecodeDocument(data)
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, "outer", e.Path[0])
}

func TestReadDocumentFrom(t *testing.T) {
	doc := NewDocument().Set("i", Int32Value(1))
	data, err := doc.MarshalBinary()
	require.NoError(t, err)

	trailer := append(append([]byte{}, data...), 0xDE, 0xAD)
	r := bytes.NewReader(trailer)

	decoded, err := ReadDocumentFrom(r)
	require.NoError(t, err)
	require.True(t, doc.Equal(decoded))
	require.Equal(t, 2, r.Len())
}

func TestReadDocumentFrom_ShortInput(t *testing.T) {
	_, err := ReadDocumentFrom(bytes.NewReader([]byte{0x0C, 0x00, 0x00, 0x00, 0x10}))
	require.ErrorIs(t, err, errs.ErrIO)
}

func TestAppendTo(t *testing.T) {
	doc := NewDocument().Set("i", Int32Value(1))
	out, err := doc.AppendTo([]byte{0xEE})
	require.NoError(t, err)
	require.Equal(t, byte(0xEE), out[0])

	decoded, err := DecodeDocument(out[1:])
	require.NoError(t, err)
	require.True(t, doc.Equal(decoded))
}

func TestCodeWithScope_RoundTripBytes(t *testing.T) {
	doc := NewDocument().Set("f", CodeWithScopeValue(CodeWithScope{
		Code:  "function(){ return x }",
		Scope: NewDocument().Set("x", Int32Value(3)),
	}))
	data, err := doc.MarshalBinary()
	require.NoError(t, err)

	decoded, err := DecodeDocument(data)
	require.NoError(t, err)
	require.True(t, doc.Equal(decoded))

	again, err := decoded.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, data, again)
}
