package index

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/ajaxzhan/filekeeper/pkg/types"
)

// entryPrefix namespaces entry records in the key space.
const entryPrefix = "entry:"

// BadgerSnapshotter stores one record per path in a BadgerDB database.
// Record values use the same JSON shape as the file snapshot.
type BadgerSnapshotter struct {
	db *badger.DB
}

// NewBadgerSnapshotter opens (or creates) a database in dir.
func NewBadgerSnapshotter(dir string) (*BadgerSnapshotter, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	return openBadger(opts)
}

// NewInMemoryBadgerSnapshotter opens a database that never touches disk.
func NewInMemoryBadgerSnapshotter() (*BadgerSnapshotter, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.WARNING)
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerSnapshotter, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", opts.Dir, err)
	}
	return &BadgerSnapshotter{db: db}, nil
}

// Load scans every entry record.
func (b *BadgerSnapshotter) Load(ctx context.Context) (map[string]types.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make(map[string]types.Entry)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			path := strings.TrimPrefix(string(item.Key()), entryPrefix)

			err := item.Value(func(val []byte) error {
				var entry types.Entry
				if err := json.Unmarshal(val, &entry); err != nil {
					return fmt.Errorf("%w: record %s: %v", ErrCorruptSnapshot, path, err)
				}
				entries[path] = entry
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Save replaces all entry records in a single transaction.
func (b *BadgerSnapshotter) Save(ctx context.Context, entries map[string]types.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		opts.PrefetchValues = false

		var stale [][]byte
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, ok := entries[strings.TrimPrefix(string(key), entryPrefix)]; !ok {
				stale = append(stale, key)
			}
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("failed to delete stale record: %w", err)
			}
		}

		for path, entry := range entries {
			val, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("failed to encode record %s: %w", path, err)
			}
			if err := txn.Set([]byte(entryPrefix+path), val); err != nil {
				return fmt.Errorf("failed to store record %s: %w", path, err)
			}
		}
		return nil
	})
}

// Close closes the database.
func (b *BadgerSnapshotter) Close() error {
	return b.db.Close()
}
