package bsonx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/umberlabs/bsonx/errs"
	"github.com/umberlabs/bsonx/format"
)

func canonicalOf(t *testing.T, v Value) string {
	t.Helper()
	b, err := v.MarshalCanonicalExtJSON()
	require.NoError(t, err)

	return string(b)
}

func relaxedOf(t *testing.T, v Value) string {
	t.Helper()
	b, err := v.MarshalRelaxedExtJSON()
	require.NoError(t, err)

	return string(b)
}

func TestExtJSON_CanonicalObjectID(t *testing.T) {
	oid, err := ObjectIDFromHex("00112233445566778899aabb")
	require.NoError(t, err)
	v := ObjectIDValue(oid)

	want := `{"$oid":"00112233445566778899aabb"}`
	require.Equal(t, want, canonicalOf(t, v))
	require.Equal(t, want, relaxedOf(t, v))
}

func TestExtJSON_LargeDatetimeFallback(t *testing.T) {
	v := DateTimeValue(DateTime(math.MaxInt64))

	want := `{"$date":{"$numberLong":"9223372036854775807"}}`
	require.Equal(t, want, canonicalOf(t, v))
	require.Equal(t, want, relaxedOf(t, v))
}

func TestExtJSON_RelaxedDatetimeString(t *testing.T) {
	v := DateTimeValue(NewDateTime(1356351330501))
	require.Equal(t, `{"$date":"2012-12-24T12:15:30.501Z"}`, relaxedOf(t, v))
	require.Equal(t, `{"$date":{"$numberLong":"1356351330501"}}`, canonicalOf(t, v))

	// Pre-epoch datetimes fall back even in relaxed mode.
	neg := DateTimeValue(NewDateTime(-1))
	require.Equal(t, `{"$date":{"$numberLong":"-1"}}`, relaxedOf(t, neg))
}

func TestExtJSON_NumberForms(t *testing.T) {
	require.Equal(t, `{"$numberInt":"7"}`, canonicalOf(t, Int32Value(7)))
	require.Equal(t, `7`, relaxedOf(t, Int32Value(7)))

	require.Equal(t, `{"$numberLong":"7"}`, canonicalOf(t, Int64Value(7)))
	require.Equal(t, `7`, relaxedOf(t, Int64Value(7)))

	require.Equal(t, `{"$numberDouble":"1.5"}`, canonicalOf(t, DoubleValue(1.5)))
	require.Equal(t, `1.5`, relaxedOf(t, DoubleValue(1.5)))

	// Integral doubles keep a fractional marker in canonical form.
	require.Equal(t, `{"$numberDouble":"1.0"}`, canonicalOf(t, DoubleValue(1)))

	require.Equal(t, `{"$numberDouble":"NaN"}`, canonicalOf(t, DoubleValue(math.NaN())))
	require.Equal(t, `{"$numberDouble":"NaN"}`, relaxedOf(t, DoubleValue(math.NaN())))
	require.Equal(t, `{"$numberDouble":"-Infinity"}`, relaxedOf(t, DoubleValue(math.Inf(-1))))
}

func TestExtJSON_CanonicalRoundTrip_EveryKind(t *testing.T) {
	oid, err := ObjectIDFromHex("00112233445566778899aabb")
	require.NoError(t, err)
	dec, err := ParseDecimal128("2.5E-3")
	require.NoError(t, err)

	values := []Value{
		DoubleValue(1.5),
		DoubleValue(math.Inf(1)),
		StringValue("y'all"),
		DocumentValue(NewDocument().Set("nested", Int32Value(1))),
		ArrayValue(Array{Int32Value(1), StringValue("two")}),
		BinaryValue(Binary{Subtype: format.SubtypeGeneric, Data: []byte{1, 2, 3}}),
		UndefinedValue(),
		ObjectIDValue(oid),
		BooleanValue(true),
		DateTimeValue(NewDateTime(1356351330501)),
		DateTimeValue(MinDateTime),
		NullValue(),
		RegexValue(Regex{Pattern: "^a", Options: "im"}),
		DBPointerValue(DBPointer{Ref: "db.coll", ID: oid}),
		JavaScriptValue("f()"),
		SymbolValue("sym"),
		CodeWithScopeValue(CodeWithScope{Code: "f()", Scope: NewDocument().Set("x", Int32Value(1))}),
		Int32Value(-9),
		TimestampValue(Timestamp{T: 42, I: 1}),
		Int64Value(math.MinInt64),
		Decimal128Value(dec),
		MinKeyValue(),
		MaxKeyValue(),
	}

	for _, v := range values {
		text := canonicalOf(t, v)
		back, err := ParseExtJSON([]byte(text))
		require.NoError(t, err, "parsing %s", text)
		require.True(t, v.Equal(back), "round-trip of %s: got %s", text, back.GoString())
	}
}

func TestExtJSON_RelaxedIsLossySubset(t *testing.T) {
	// Int64 relaxes to a plain number and comes back as int32 when it
	// fits: documented loss of width.
	back, err := ParseExtJSON([]byte(relaxedOf(t, Int64Value(7))))
	require.NoError(t, err)
	require.Equal(t, format.TypeInt32, back.Type())

	// Large values keep their width.
	big := Int64Value(1 << 40)
	back, err = ParseExtJSON([]byte(relaxedOf(t, big)))
	require.NoError(t, err)
	require.True(t, big.Equal(back))

	// Datetimes in range survive exactly through the string form.
	d := DateTimeValue(NewDateTime(1356351330501))
	back, err = ParseExtJSON([]byte(relaxedOf(t, d)))
	require.NoError(t, err)
	require.True(t, d.Equal(back))
}

func TestExtJSON_ParseUUID(t *testing.T) {
	v, err := ParseExtJSON([]byte(`{"$uuid":"00112233-4455-6677-8899-aabbccddeeff"}`))
	require.NoError(t, err)

	b, ok := v.BinaryOK()
	require.True(t, ok)
	require.Equal(t, format.SubtypeUUID, b.Subtype)
	require.Equal(t, []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, b.Data)
}

func TestExtJSON_ParsePlainDocument(t *testing.T) {
	v, err := ParseExtJSON([]byte(`{"name":"x","n":2,"nested":{"ok":true}}`))
	require.NoError(t, err)

	doc, ok := v.DocumentOK()
	require.True(t, ok)
	require.Equal(t, []string{"name", "n", "nested"}, doc.Keys())

	n, _, err := doc.GetInt32("n")
	require.NoError(t, err)
	require.Equal(t, int32(2), n)
}

func TestExtJSON_ParseInvalidShapes(t *testing.T) {
	for _, text := range []string{
		`{"$oid":"short"}`,
		`{"$oid":"00112233445566778899aabb","extra":1}`,
		`{"$numberInt":"not a number"}`,
		`{"$binary":{"base64":"!!!","subType":"00"}}`,
		`{"$binary":{"base64":"AA=="}}`,
		`{"$timestamp":{"t":1}}`,
		`{"$timestamp":{"t":-1,"i":0}}`,
		`{"$minKey":2}`,
		`{"$undefined":false}`,
		`{"$date":true}`,
		`{"$regularExpression":{"pattern":"p"}}`,
		`[1,2`,
		`{"a":1}trailing`,
	} {
		_, err := ParseExtJSON([]byte(text))
		require.ErrorIs(t, err, errs.ErrExtJSONShape, "input %s", text)
	}
}

func TestExtJSON_ParsePreservesRegexOptionOrder(t *testing.T) {
	v, err := ParseExtJSON([]byte(`{"$regularExpression":{"pattern":"p","options":"xi"}}`))
	require.NoError(t, err)
	r, ok := v.RegexOK()
	require.True(t, ok)
	require.Equal(t, "xi", r.Options)
}

func TestExtJSON_MarshalThroughReflection(t *testing.T) {
	type payload struct {
		N  int32    `bson:"n"`
		ID ObjectID `bson:"id"`
	}
	oid, err := ObjectIDFromHex("00112233445566778899aabb")
	require.NoError(t, err)

	canonical, err := MarshalExtJSON(payload{N: 3, ID: oid}, true)
	require.NoError(t, err)
	require.Equal(t, `{"n":{"$numberInt":"3"},"id":{"$oid":"00112233445566778899aabb"}}`, string(canonical))

	relaxed, err := MarshalExtJSON(payload{N: 3, ID: oid}, false)
	require.NoError(t, err)
	require.Equal(t, `{"n":3,"id":{"$oid":"00112233445566778899aabb"}}`, string(relaxed))

	var out payload
	require.NoError(t, UnmarshalExtJSON(canonical, &out))
	require.Equal(t, int32(3), out.N)
	require.Equal(t, oid, out.ID)
}

func TestExtJSON_Indent(t *testing.T) {
	doc := NewDocument().Set("a", Int32Value(1))
	b, err := doc.MarshalRelaxedExtJSON(WithIndent("  "))
	require.NoError(t, err)
	require.Equal(t, "{\n  \"a\": 1\n}", string(b))
}

func TestExtJSON_DocumentValueOrderPreserved(t *testing.T) {
	text := `{"z":1,"a":2,"m":3}`
	doc, err := ParseExtJSONDocument([]byte(text))
	require.NoError(t, err)
	require.Equal(t, []string{"z", "a", "m"}, doc.Keys())
}
