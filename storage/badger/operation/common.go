package operation

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/oprf-network/oprf-node/storage"
)

// insert encodes entity and stores it under key.
// Expected errors:
//   - storage.ErrAlreadyExists if a value is already stored under key
func insert(key []byte, entity interface{}) func(*badger.Txn) error {
	return store(key, entity, false)
}

// update encodes entity and replaces the value stored under key.
// Expected errors:
//   - storage.ErrNotFound if nothing is stored under key
func update(key []byte, entity interface{}) func(*badger.Txn) error {
	return store(key, entity, true)
}

func store(key []byte, entity interface{}, replace bool) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		found, err := exists(tx, key)
		if err != nil {
			return err
		}
		if found && !replace {
			return storage.ErrAlreadyExists
		}
		if !found && replace {
			return storage.ErrNotFound
		}

		val, err := encodeEntity(entity)
		if err != nil {
			return err
		}
		if err := tx.Set(key, val); err != nil {
			return fmt.Errorf("could not store value under key %x: %w", key, err)
		}
		return nil
	}
}

func exists(tx *badger.Txn, key []byte) (bool, error) {
	_, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not check key %x: %w", key, err)
	}
	return true, nil
}

// retrieve decodes the value stored under key into entity, which must be a pointer.
// Expected errors:
//   - storage.ErrNotFound if nothing is stored under key
func retrieve(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("could not load key %x: %w", key, err)
		}
		err = item.Value(func(val []byte) error {
			return decodeValue(val, entity)
		})
		if err != nil {
			return fmt.Errorf("could not decode value under key %x: %w", key, err)
		}
		return nil
	}
}

// createFunc returns a fresh pointer to decode the next value into.
type createFunc func() interface{}

// handleFunc consumes the value decoded into the last pointer returned by createFunc.
type handleFunc func() error

// traverse decodes every value stored under prefix, in key order.
func traverse(prefix []byte, create createFunc, handle handleFunc) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			entity := create()
			err := it.Item().Value(func(val []byte) error {
				return decodeValue(val, entity)
			})
			if err != nil {
				return fmt.Errorf("could not decode value under key %x: %w", it.Item().Key(), err)
			}
			if err := handle(); err != nil {
				return err
			}
		}
		return nil
	}
}

// RetryOnConflict runs op through action (db.Update) until it commits without a
// transaction conflict.
func RetryOnConflict(action func(func(*badger.Txn) error) error, op func(tx *badger.Txn) error) error {
	for {
		err := action(op)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}
