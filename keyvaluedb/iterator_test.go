package keyvaluedb

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotIterator(t *testing.T) {
	keys := [][]byte{[]byte("b"), []byte("a/2"), []byte("a/1")}
	values := [][]byte{[]byte(`3`), []byte(`2`), []byte(`1`)}

	it := NewSnapshotIterator(keys, values, json.Unmarshal, nil)
	var got []string
	var sum int
	for ; it.Valid(); it.Next() {
		got = append(got, string(it.Key()))
		var v int
		require.NoError(t, it.Value(&v))
		sum += v
	}
	require.Equal(t, []string{"a/1", "a/2", "b"}, got)
	require.Equal(t, 6, sum)
	require.Nil(t, it.Key())
	require.EqualError(t, it.Value(&sum), "iterator invalid")

	it = NewSnapshotIterator(keys, values, json.Unmarshal, []byte("a/15"))
	require.Equal(t, "a/2", string(it.Key()))
	require.NoError(t, it.Close())
	require.False(t, it.Valid())

	it = NewSnapshotIterator(keys, values, json.Unmarshal, []byte("c"))
	require.False(t, it.Valid())
}

func TestFailedIterator(t *testing.T) {
	expErr := errors.New("db gone")
	it := NewFailedIterator(expErr)
	require.False(t, it.Valid())
	require.Nil(t, it.Key())
	it.Next()
	require.False(t, it.Valid())
	require.ErrorIs(t, it.Close(), expErr)
}

func TestCheckKeyAndValue(t *testing.T) {
	var nilPtr *int
	require.ErrorIs(t, CheckKeyAndValue(nil, 1), errInvalidKey)
	require.ErrorIs(t, CheckKeyAndValue([]byte("k"), nilPtr), errValueIsNil)
	require.ErrorIs(t, CheckKeyAndValue([]byte("k"), nil), errValueIsNil)
	require.NoError(t, CheckKeyAndValue([]byte("k"), 1))
}
