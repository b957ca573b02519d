package keyvaluedb

import (
	"bytes"
	"fmt"

	"golang.org/x/exp/slices"
)

type DecodeFn func(data []byte, v any) error

/*
SnapshotIterator iterates over a copy of key-value pairs sorted by key. Backends
which can't keep a cursor open between calls use it.
*/
type SnapshotIterator struct {
	keys    [][]byte
	values  [][]byte
	decoder DecodeFn
	index   int
	err     error
}

// NewFailedIterator returns iterator which is never valid, its Close returns "err".
func NewFailedIterator(err error) *SnapshotIterator {
	return &SnapshotIterator{index: -1, err: err}
}

// NewSnapshotIterator takes ownership of the pairs, "keys" and "values" must be of
// equal length. The iterator is positioned at the first key >= "start".
func NewSnapshotIterator(keys, values [][]byte, decoder DecodeFn, start []byte) *SnapshotIterator {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	slices.SortFunc(idx, func(a, b int) bool { return bytes.Compare(keys[a], keys[b]) < 0 })
	it := &SnapshotIterator{
		keys:    make([][]byte, len(keys)),
		values:  make([][]byte, len(keys)),
		decoder: decoder,
		index:   -1,
	}
	for i, j := range idx {
		it.keys[i], it.values[i] = keys[j], values[j]
	}
	for i, k := range it.keys {
		if bytes.Compare(k, start) >= 0 {
			it.index = i
			break
		}
	}
	return it
}

func (it *SnapshotIterator) Next() {
	if !it.Valid() {
		return
	}
	if it.index++; it.index >= len(it.keys) {
		it.index = -1
	}
}

func (it *SnapshotIterator) Valid() bool {
	return it.index >= 0
}

func (it *SnapshotIterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.keys[it.index]
}

func (it *SnapshotIterator) Value(v any) error {
	if !it.Valid() {
		return fmt.Errorf("iterator invalid")
	}
	return it.decoder(it.values[it.index], v)
}

func (it *SnapshotIterator) Close() error {
	it.index = -1
	return it.err
}
