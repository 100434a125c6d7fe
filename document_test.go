package bsonx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/umberlabs/bsonx/errs"
)

func TestDocument_InsertionOrder(t *testing.T) {
	doc := NewDocument().
		Set("z", Int32Value(1)).
		Set("a", Int32Value(2)).
		Set("m", Int32Value(3))

	require.Equal(t, []string{"z", "a", "m"}, doc.Keys())

	var walked []string
	for k := range doc.All() {
		walked = append(walked, k)
	}
	require.Equal(t, []string{"z", "a", "m"}, walked)
}

func TestDocument_SetReplacesInPlace(t *testing.T) {
	doc := NewDocument().
		Set("a", Int32Value(1)).
		Set("b", Int32Value(2))
	doc.Set("a", StringValue("updated"))

	require.Equal(t, []string{"a", "b"}, doc.Keys())
	v, ok := doc.Get("a")
	require.True(t, ok)
	s, ok := v.StringValueOK()
	require.True(t, ok)
	require.Equal(t, "updated", s)
}

func TestDocument_DuplicateKeys_FirstWins(t *testing.T) {
	doc := NewDocument().
		Append("k", Int32Value(1)).
		Append("k", Int32Value(2))

	require.Equal(t, 2, doc.Len())
	v, ok := doc.Get("k")
	require.True(t, ok)
	i, _ := v.Int32OK()
	require.Equal(t, int32(1), i)
}

func TestDocument_Delete(t *testing.T) {
	doc := NewDocument().
		Set("a", Int32Value(1)).
		Set("b", Int32Value(2)).
		Set("c", Int32Value(3))

	removed, ok := doc.Delete("b")
	require.True(t, ok)
	i, _ := removed.Int32OK()
	require.Equal(t, int32(2), i)
	require.Equal(t, []string{"a", "c"}, doc.Keys())

	// Index stays valid after the shift.
	v, ok := doc.Get("c")
	require.True(t, ok)
	i, _ = v.Int32OK()
	require.Equal(t, int32(3), i)

	_, ok = doc.Delete("missing")
	require.False(t, ok)
}

func TestDocument_GetOrSet(t *testing.T) {
	doc := NewDocument()
	v := doc.GetOrSet("n", Int32Value(7))
	i, _ := v.Int32OK()
	require.Equal(t, int32(7), i)

	v = doc.GetOrSet("n", Int32Value(99))
	i, _ = v.Int32OK()
	require.Equal(t, int32(7), i)
	require.Equal(t, 1, doc.Len())
}

func TestDocument_Require(t *testing.T) {
	doc := NewDocument().Set("a", Int32Value(1))

	_, err := doc.Require("a")
	require.NoError(t, err)

	_, err = doc.Require("missing")
	require.ErrorIs(t, err, errs.ErrValueNotPresent)
}

func TestDocument_TypedGetters(t *testing.T) {
	doc := NewDocument().Set("i", Int32Value(1))

	i, found, err := doc.GetInt32("i")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int32(1), i)

	_, found, err = doc.GetString("i")
	require.False(t, found)
	require.ErrorIs(t, err, errs.ErrUnexpectedType)

	_, found, err = doc.GetInt32("missing")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDocument_Extend(t *testing.T) {
	a := NewDocument().Set("x", Int32Value(1))
	b := NewDocument().Set("x", Int32Value(2)).Set("y", Int32Value(3))

	a.Extend(b)
	require.Equal(t, []string{"x", "x", "y"}, a.Keys())

	v, _ := a.Get("x")
	i, _ := v.Int32OK()
	require.Equal(t, int32(1), i)
}

func TestDocument_Equal_OrderSensitive(t *testing.T) {
	a := NewDocument().Set("a", Int32Value(1)).Set("b", Int32Value(2))
	b := NewDocument().Set("a", Int32Value(1)).Set("b", Int32Value(2))
	c := NewDocument().Set("b", Int32Value(2)).Set("a", Int32Value(1))

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestDocument_Hash_OrderInsensitive(t *testing.T) {
	a := NewDocument().Set("a", Int32Value(1)).Set("b", Int32Value(2))
	b := NewDocument().Set("b", Int32Value(2)).Set("a", Int32Value(1))
	c := NewDocument().Set("a", Int32Value(1)).Set("b", Int32Value(3))

	require.Equal(t, a.Hash(), b.Hash())
	require.NotEqual(t, a.Hash(), c.Hash())
}

func TestDocument_StringForms(t *testing.T) {
	doc := NewDocument().
		Set("i", Int32Value(1)).
		Set("s", StringValue("x"))

	require.Equal(t, `{"i":1,"s":"x"}`, doc.String())
	require.Contains(t, doc.StringIndent(), "\n  ")
	require.Contains(t, doc.GoString(), "int32")
}
