package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_SentinelMatching(t *testing.T) {
	err := Newf(KindMalformedBytes, "document length %d is too small", 3)
	require.ErrorIs(t, err, ErrMalformed)
	require.NotErrorIs(t, err, ErrUnexpectedType)
}

func TestError_WrappedCauseMatching(t *testing.T) {
	err := Wrapf(KindMalformedBytes, ErrUnexpectedEOF, "need %d bytes", 4)
	require.ErrorIs(t, err, ErrMalformed)
	require.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestError_MessageIsDeterministic(t *testing.T) {
	err := Wrap(KindUTF8, nil, "invalid byte at offset 7")
	require.Equal(t, "invalid UTF-8: invalid byte at offset 7", err.Error())

	err2 := Wrap(KindUTF8, nil, "invalid byte at offset 7")
	require.Equal(t, err.Error(), err2.Error())
}

func TestPrepend_BuildsPath(t *testing.T) {
	err := New(KindUnexpectedType, "expected int32, found string")
	decorated := Prepend(Prepend(err, "inner"), "outer")

	var e *Error
	require.ErrorAs(t, decorated, &e)
	require.Equal(t, []string{"outer", "inner"}, e.Path)
	require.Equal(t, "outer.inner", e.KeyPath())
	require.Contains(t, decorated.Error(), `at "outer.inner"`)
}

func TestPrepend_DoesNotMutateOriginal(t *testing.T) {
	err := New(KindCustom, "boom")
	_ = Prepend(err, "field")
	require.Empty(t, err.Path)
}

func TestPrepend_WrapsForeignErrors(t *testing.T) {
	plain := errors.New("user code failed")
	decorated := Prepend(plain, "field")

	var e *Error
	require.ErrorAs(t, decorated, &e)
	require.Equal(t, KindCustom, e.Kind)
	require.ErrorIs(t, decorated, plain)
}

func TestPrepend_Nil(t *testing.T) {
	require.NoError(t, Prepend(nil, "field"))
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindUnsignedOverflow, KindOf(Newf(KindUnsignedOverflow, "value %d", 1)))
	require.Equal(t, Kind(0), KindOf(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", New(KindInvalidLength, "16 bytes expected"))
	require.Equal(t, KindInvalidLength, KindOf(wrapped))
}

func TestKind_Strings(t *testing.T) {
	for k := KindIO; k <= KindCustom; k++ {
		require.NotEqual(t, "unknown", k.String())
	}
	require.Equal(t, "unknown", Kind(0).String())
}
