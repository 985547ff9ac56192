package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ZhengTzer/cf-step/core"
	"github.com/ZhengTzer/cf-step/storage"
)

// ItemRepository implements storage.ItemRepository for BadgerDB.
type ItemRepository struct {
	backend *Backend
}

var _ storage.ItemRepository = (*ItemRepository)(nil)

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(backend *Backend) (*ItemRepository, error) {
	return &ItemRepository{
		backend: backend,
	}, nil
}

// Close releases resources. ItemRepository has no resources to release.
func (r *ItemRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *ItemRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddItems adds one or more items to the catalog. Item IDs are
// caller-assigned; an existing item with the same ID is replaced and its
// stale tag index entries removed.
func (r *ItemRepository) AddItems(ctx context.Context, items ...*core.Item) ([]*core.Item, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, item := range items {
			key := makeItemKey(item.Id)

			// Read old item to clean up its tag index on replace
			old, err := readItem(tx, key)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			if old == nil {
				item.InsertedAt = now
			} else {
				item.InsertedAt = old.InsertedAt
				if err := deleteTagIndex(tx, old); err != nil {
					return err
				}
			}
			item.UpdatedAt = now

			// Store primary record
			value := storage.MarshalItem(item)
			if err := tx.Set(key, value); err != nil {
				return err
			}

			// Update tag index
			if err := updateTagIndex(tx, item); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return items, err
}

// GetItem retrieves a single item by ID.
func (r *ItemRepository) GetItem(ctx context.Context, id core.ID) (*core.Item, error) {
	var result *core.Item
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeItemKey(id)
		var err error
		result, err = readItem(tx, key)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetItems retrieves multiple items by their IDs.
func (r *ItemRepository) GetItems(ctx context.Context, ids ...core.ID) ([]*core.Item, error) {
	var result []*core.Item
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeItemKey(id)
			item, err := readItem(tx, key)
			if err != nil {
				return err
			}
			if item != nil {
				result = append(result, item)
			}
		}
		return nil
	}, false)
	return result, err
}

// Items retrieves the whole catalog ordered by ID.
func (r *ItemRepository) Items(ctx context.Context) ([]*core.Item, error) {
	var results []*core.Item
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(itemPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var item *core.Item
			err := iter.Item().Value(func(val []byte) error {
				var err error
				item, err = storage.UnmarshalItem(val)
				return err
			})
			if err != nil {
				return err
			}
			if item != nil {
				results = append(results, item)
			}
		}
		return nil
	}, false)

	return results, err
}

// FindItemsByTag retrieves the items carrying the given tag, ordered by ID.
func (r *ItemRepository) FindItemsByTag(ctx context.Context, tag string) ([]*core.Item, error) {
	var results []*core.Item
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Collect item IDs from the tag index
		var ids []core.ID
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialItemTagKey(tag)
		iter := tx.NewIterator(opts)

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				iter.Close()
				return err
			}
			ids = append(ids, id)
		}
		iter.Close()

		// Look up the full items
		for _, id := range ids {
			item, err := readItem(tx, makeItemKey(id))
			if err != nil {
				return err
			}
			if item != nil {
				results = append(results, item)
			}
		}
		return nil
	}, false)

	return results, err
}

// Helper methods

// readItem reads an item from the transaction.
func readItem(tx *badger.Txn, key []byte) (*core.Item, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var result *core.Item
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		result, unmarshalErr = storage.UnmarshalItem(val)
		return unmarshalErr
	})
	return result, err
}

// updateTagIndex adds tag index entries for an item.
func updateTagIndex(tx *badger.Txn, item *core.Item) error {
	for _, tag := range item.Tags {
		key := makeItemTagKey(tag, item.Id)
		if err := tx.Set(key, storage.MarshalID(item.Id)); err != nil {
			return err
		}
	}
	return nil
}

// deleteTagIndex removes tag index entries for an item.
func deleteTagIndex(tx *badger.Txn, item *core.Item) error {
	for _, tag := range item.Tags {
		key := makeItemTagKey(tag, item.Id)
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
