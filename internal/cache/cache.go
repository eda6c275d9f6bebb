// Package cache memoizes rendered conversion outputs in a badger database so unchanged
// assets are not decoded and transformed again on every build.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

const keyPrefix = "out/"

var ErrCorruptEntry = fmt.Errorf("corrupt cache entry")

// Entry is a rendered output together with the number of words it holds.
type Entry struct {
	Words  int
	Output []byte
}

// Values are the word count as a uvarint followed by the output bytes.
func (e Entry) marshal() []byte {
	value := binary.AppendUvarint(make([]byte, 0, binary.MaxVarintLen64+len(e.Output)), uint64(e.Words))
	return append(value, e.Output...)
}

func unmarshalEntry(value []byte) (Entry, error) {
	words, n := binary.Uvarint(value)
	if n <= 0 {
		return Entry{}, ErrCorruptEntry
	}
	return Entry{Words: int(words), Output: value[n:]}, nil
}

type Cache struct {
	badger *badger.DB
}

func Open(path string) (*Cache, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Cache{badger: db}, nil
}

func (c *Cache) Close() error {
	return c.badger.Close()
}

// Key identifies the output produced from source under the settings summarized by fingerprint.
func Key(source []byte, fingerprint string) string {
	hash := sha256.New()
	hash.Write([]byte(fingerprint))
	hash.Write([]byte{0})
	hash.Write(source)
	return hex.EncodeToString(hash.Sum(nil))
}

// Get returns the stored entry for key. A missing key is not an error.
func (c *Cache) Get(key string) (Entry, bool, error) {
	var value []byte
	err := c.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, false, nil
	} else if err != nil {
		return Entry{}, false, err
	}

	entry, err := unmarshalEntry(value)
	if err != nil {
		return Entry{}, false, fmt.Errorf("%w: %s", err, key)
	}
	return entry, true, nil
}

func (c *Cache) Put(key string, entry Entry) error {
	return c.badger.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), entry.marshal())
	})
}
