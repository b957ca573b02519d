/*
Package resultcache stores analysis results in a key-value DB so repeated analyses
of the same network can skip the search.
*/
package resultcache

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/marfl/fbas-analyzer/keyvaluedb"
)

// version of the stored value format, bump when the encoding of results changes
const keyPrefix = "fbas/v1/"

type Cache struct {
	db keyvaluedb.KeyValueDB
}

func New(db keyvaluedb.KeyValueDB) (*Cache, error) {
	if db == nil {
		return nil, errors.New("key-value DB is nil")
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Load(key string, v any) (bool, error) {
	found, err := c.db.Read([]byte(keyPrefix+key), v)
	if err != nil {
		return false, fmt.Errorf("reading cached result %q: %w", key, err)
	}
	return found, nil
}

func (c *Cache) Store(key string, v any) error {
	if err := c.db.Write([]byte(keyPrefix+key), v); err != nil {
		return fmt.Errorf("storing result %q: %w", key, err)
	}
	return nil
}

// Keys returns keys of the cached results starting with "prefix".
func (c *Cache) Keys(prefix string) (keys []string, err error) {
	full := []byte(keyPrefix + prefix)
	it := c.db.Find(full)
	defer func() { err = errors.Join(err, it.Close()) }()
	for ; it.Valid() && bytes.HasPrefix(it.Key(), full); it.Next() {
		keys = append(keys, string(it.Key()[len(keyPrefix):]))
	}
	return keys, nil
}

// Purge deletes cached results whose key starts with "prefix", returns number of
// deleted entries.
func (c *Cache) Purge(prefix string) (int, error) {
	keys, err := c.Keys(prefix)
	if err != nil {
		return 0, err
	}
	for i, k := range keys {
		if err := c.db.Delete([]byte(keyPrefix + k)); err != nil {
			return i, fmt.Errorf("deleting %q: %w", k, err)
		}
	}
	return len(keys), nil
}
