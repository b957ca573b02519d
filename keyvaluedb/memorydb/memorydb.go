package memorydb

import (
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/marfl/fbas-analyzer/keyvaluedb"
)

// MemoryDB is map backed key-value DB, values are CBOR encoded.
type MemoryDB struct {
	db   map[string][]byte
	lock sync.RWMutex
}

func New() *MemoryDB {
	return &MemoryDB{db: make(map[string][]byte)}
}

// Read retrieves the given key if it's present in the key-value store.
func (db *MemoryDB) Read(key []byte, value any) (bool, error) {
	if err := keyvaluedb.CheckKeyAndValue(key, value); err != nil {
		return false, err
	}
	db.lock.RLock()
	defer db.lock.RUnlock()
	if data, ok := db.db[string(key)]; ok {
		return true, cbor.Unmarshal(data, value)
	}
	return false, nil
}

// Write inserts the given value into the key-value store.
func (db *MemoryDB) Write(key []byte, value any) error {
	if err := keyvaluedb.CheckKeyAndValue(key, value); err != nil {
		return err
	}
	b, err := cbor.Marshal(value)
	if err != nil {
		return err
	}
	db.lock.Lock()
	defer db.lock.Unlock()
	db.db[string(key)] = b
	return nil
}

// Delete removes the key from the key-value store.
func (db *MemoryDB) Delete(key []byte) error {
	if err := keyvaluedb.CheckKey(key); err != nil {
		return err
	}
	db.lock.Lock()
	defer db.lock.Unlock()
	delete(db.db, string(key))
	return nil
}

func (db *MemoryDB) First() keyvaluedb.Iterator {
	return db.Find(nil)
}

func (db *MemoryDB) Find(key []byte) keyvaluedb.Iterator {
	db.lock.RLock()
	defer db.lock.RUnlock()
	keys := make([][]byte, 0, len(db.db))
	values := make([][]byte, 0, len(db.db))
	for k, v := range db.db {
		keys = append(keys, []byte(k))
		values = append(values, v)
	}
	return keyvaluedb.NewSnapshotIterator(keys, values, cbor.Unmarshal, key)
}
