package boltdb

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/marfl/fbas-analyzer/keyvaluedb"
)

const defaultBucket = "default"

type (
	EncodeFn func(v any) ([]byte, error)

	BoltDB struct {
		db      *bolt.DB
		bucket  []byte
		encoder EncodeFn
		decoder keyvaluedb.DecodeFn
	}

	Option func(*BoltDB)
)

var errNotFound = errors.New("db entry not found")

// WithBucket sets the name of the bucket used to store the values.
func WithBucket(name string) Option {
	return func(db *BoltDB) { db.bucket = []byte(name) }
}

// New opens (creates when needed) Bolt DB file, values are CBOR encoded.
func New(dbFile string, opts ...Option) (*BoltDB, error) {
	db, err := bolt.Open(dbFile, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db %q: %w", dbFile, err)
	}
	s := &BoltDB{
		db:      db,
		bucket:  []byte(defaultBucket),
		encoder: cbor.Marshal,
		decoder: cbor.Unmarshal,
	}
	for _, o := range opts {
		o(s)
	}
	if err = s.createBuckets(); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return s, nil
}

func (db *BoltDB) Path() string {
	return db.db.Path()
}

func (db *BoltDB) createBuckets() error {
	return db.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(db.bucket)
		return err
	})
}

func (db *BoltDB) Read(key []byte, v any) (bool, error) {
	if err := keyvaluedb.CheckKeyAndValue(key, v); err != nil {
		return false, err
	}
	if err := db.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(db.bucket).Get(key)
		if data == nil {
			return errNotFound
		}
		return db.decoder(data, v)
	}); err != nil {
		if errors.Is(err, errNotFound) {
			return false, nil
		}
		return true, fmt.Errorf("bolt db read failed, %w", err)
	}
	return true, nil
}

func (db *BoltDB) Write(key []byte, v any) error {
	if err := keyvaluedb.CheckKeyAndValue(key, v); err != nil {
		return err
	}
	b, err := db.encoder(v)
	if err != nil {
		return err
	}
	if err = db.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(db.bucket).Put(key, b)
	}); err != nil {
		return fmt.Errorf("bolt db write failed, %w", err)
	}
	return nil
}

func (db *BoltDB) Delete(key []byte) error {
	if err := keyvaluedb.CheckKey(key); err != nil {
		return err
	}
	if err := db.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(db.bucket).Delete(key)
	}); err != nil {
		return fmt.Errorf("bolt db delete failed, %w", err)
	}
	return nil
}

func (db *BoltDB) First() keyvaluedb.Iterator {
	return db.Find(nil)
}

// Find returns iterator over snapshot of the pairs starting from the first key >= "key".
func (db *BoltDB) Find(key []byte) keyvaluedb.Iterator {
	var keys, values [][]byte
	// bolt's slices are valid only during the transaction
	err := db.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(db.bucket).Cursor()
		var k, v []byte
		if key == nil {
			k, v = c.First()
		} else {
			k, v = c.Seek(key)
		}
		for ; k != nil; k, v = c.Next() {
			keys = append(keys, append([]byte{}, k...))
			values = append(values, append([]byte{}, v...))
		}
		return nil
	})
	if err != nil {
		return keyvaluedb.NewFailedIterator(fmt.Errorf("bolt db iterator failed, %w", err))
	}
	return keyvaluedb.NewSnapshotIterator(keys, values, db.decoder, key)
}

func (db *BoltDB) Close() error {
	if db.db == nil {
		return nil
	}
	return db.db.Close()
}
