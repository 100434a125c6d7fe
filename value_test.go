package bsonx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/umberlabs/bsonx/format"
)

func TestValue_TypeAndAccessors(t *testing.T) {
	v := Int32Value(5)
	require.Equal(t, format.TypeInt32, v.Type())

	i, ok := v.Int32OK()
	require.True(t, ok)
	require.Equal(t, int32(5), i)

	_, ok = v.StringValueOK()
	require.False(t, ok)
}

func TestValue_ZeroIsInvalid(t *testing.T) {
	var v Value
	require.True(t, v.IsZero())
	require.Equal(t, format.Type(0), v.Type())
}

func TestValue_Equal_Doubles(t *testing.T) {
	require.True(t, DoubleValue(1.5).Equal(DoubleValue(1.5)))
	require.False(t, DoubleValue(1.5).Equal(DoubleValue(2.5)))

	// Bitwise comparison: identical NaN payloads are equal, +0 and -0
	// are not.
	require.True(t, DoubleValue(math.NaN()).Equal(DoubleValue(math.NaN())))
	require.False(t, DoubleValue(0.0).Equal(DoubleValue(math.Copysign(0, -1))))
}

func TestValue_Equal_AcrossKinds(t *testing.T) {
	require.False(t, Int32Value(1).Equal(Int64Value(1)))
	require.False(t, NullValue().Equal(UndefinedValue()))
	require.True(t, MinKeyValue().Equal(MinKeyValue()))
}

func TestValue_Equal_Composite(t *testing.T) {
	a := ArrayValue(Array{Int32Value(1), StringValue("x")})
	b := ArrayValue(Array{Int32Value(1), StringValue("x")})
	c := ArrayValue(Array{Int32Value(1)})
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))

	d1 := DocumentValue(NewDocument().Set("k", BinaryValue(NewBinary([]byte{1, 2}))))
	d2 := DocumentValue(NewDocument().Set("k", BinaryValue(NewBinary([]byte{1, 2}))))
	require.True(t, d1.Equal(d2))
}

func TestValue_Hash_ConsistentWithEqual(t *testing.T) {
	a := DocumentValue(NewDocument().Set("x", Int32Value(1)).Set("y", Int32Value(2)))
	b := DocumentValue(NewDocument().Set("y", Int32Value(2)).Set("x", Int32Value(1)))

	// Document hashing is stable-sorted, so pair order does not matter.
	require.Equal(t, a.Hash(), b.Hash())

	require.NotEqual(t, Int32Value(1).Hash(), Int64Value(1).Hash())
	require.Equal(t, StringValue("s").Hash(), StringValue("s").Hash())
}

func TestValue_IsNumber(t *testing.T) {
	require.True(t, Int32Value(1).IsNumber())
	require.True(t, Int64Value(1).IsNumber())
	require.True(t, DoubleValue(1).IsNumber())
	require.True(t, Decimal128Value(Decimal128{}).IsNumber())
	require.False(t, StringValue("1").IsNumber())
}

func TestValue_AsInt64OK(t *testing.T) {
	i, ok := Int32Value(-7).AsInt64OK()
	require.True(t, ok)
	require.Equal(t, int64(-7), i)

	i, ok = Int64Value(1 << 40).AsInt64OK()
	require.True(t, ok)
	require.Equal(t, int64(1<<40), i)

	i, ok = DoubleValue(3.0).AsInt64OK()
	require.True(t, ok)
	require.Equal(t, int64(3), i)

	_, ok = DoubleValue(3.5).AsInt64OK()
	require.False(t, ok)

	_, ok = StringValue("3").AsInt64OK()
	require.False(t, ok)
}

func TestTimestamp_Ordering(t *testing.T) {
	a := Timestamp{T: 1, I: 5}
	b := Timestamp{T: 2, I: 0}
	c := Timestamp{T: 1, I: 6}

	require.Equal(t, -1, a.Compare(b))
	require.True(t, b.After(a))
	require.True(t, a.Before(c))
	require.Equal(t, 0, a.Compare(Timestamp{T: 1, I: 5}))
}

func TestRegex_CanonicalOptions(t *testing.T) {
	require.Equal(t, "imx", Regex{Pattern: "p", Options: "xmi"}.CanonicalOptions())
	require.Equal(t, "im", Regex{Pattern: "p", Options: "im"}.CanonicalOptions())
	require.Equal(t, "", Regex{Pattern: "p"}.CanonicalOptions())
}
