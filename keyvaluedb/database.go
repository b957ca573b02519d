package keyvaluedb

import (
	"errors"
	"fmt"
	"reflect"
)

// Reader interface for DB
type Reader interface {
	// Read reads the value for key stored in the DB, returns false when the key
	// doesn't exist.
	Read(key []byte, value any) (bool, error)
}

// Writer interface for DB
type Writer interface {
	// Write inserts the given value into the DB.
	Write(key []byte, value any) error
	// Delete removes the key from the key-value data store.
	Delete(key []byte) error
}

type Iterator interface {
	// Next moves the iterator to the next key value pair
	Next()
	// Valid returns state of the iterator, if at the end false it returned
	Valid() bool
	// Key returns the key of the current key/value pair, or nil if not valid.
	Key() []byte
	// Value decodes the value of the current key/value pair, or returns error if not valid.
	Value(value any) error
	// Close releases associated resources.
	Close() error
}

// Iterable wraps the iterator constructors of a backing data store.
type Iterable interface {
	// First creates a binary-alphabetical forward iterator starting with first item.
	// If the DB is empty the returned iterator is not valid (it.Valid() == false)
	First() Iterator
	// Find returns forward iterator to the closest binary-alphabetical match.
	Find(key []byte) Iterator
}

type KeyValueDB interface {
	Reader
	Writer
	Iterable
}

var (
	errInvalidKey = errors.New("invalid key")
	errValueIsNil = errors.New("value is nil")
)

// IsEmpty returns true if the key value DB is empty
func IsEmpty(db KeyValueDB) (empty bool, err error) {
	if db == nil {
		return true, fmt.Errorf("db is nil")
	}
	it := db.First()
	defer func() { err = errors.Join(err, it.Close()) }()
	return !it.Valid(), nil
}

func CheckKey(key []byte) error {
	if len(key) == 0 {
		return errInvalidKey
	}
	return nil
}

func CheckValue(val any) error {
	if val == nil {
		return errValueIsNil
	}
	if v := reflect.ValueOf(val); v.Kind() == reflect.Ptr && v.IsNil() {
		return errValueIsNil
	}
	return nil
}

func CheckKeyAndValue(key []byte, val any) error {
	if err := CheckKey(key); err != nil {
		return err
	}
	return CheckValue(val)
}
