package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/bizsim/agegate/internal/util/logger"
)

// BadgerKV is the embedded local backend: durable across process restarts
// with no external service. A full deletion of the database directory is the
// "storage wipe" that also destroys the encrypted adapter's key identifier.
type BadgerKV struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the database at dir. Pass inMemory for
// tests; the data then lives only for the process lifetime.
func OpenBadger(dir string, inMemory bool) (*BadgerKV, error) {
	opts := badger.DefaultOptions(dir).
		WithInMemory(inMemory).
		WithLogger(nil)
	if inMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	logger.Info("badger store opened at %s (in-memory=%v)", dir, inMemory)
	return &BadgerKV{db: db}, nil
}

func (b *BadgerKV) Get(_ context.Context, key string) (string, error) {
	var value string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("badger get %q: %w", key, err)
	}
	return value, nil
}

func (b *BadgerKV) Set(_ context.Context, key, value string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("badger set %q: %w", key, err)
	}
	return nil
}

func (b *BadgerKV) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete %q: %w", key, err)
	}
	return nil
}

func (b *BadgerKV) Close() error {
	return b.db.Close()
}
