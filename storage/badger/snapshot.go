// Copyright 2026 Zheng Tzer
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"bytes"
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ZhengTzer/cf-step/core"
	"github.com/ZhengTzer/cf-step/storage"
)

// SnapshotRepository implements storage.SnapshotRepository for BadgerDB.
type SnapshotRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.SnapshotRepository = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(backend *Backend) (*SnapshotRepository, error) {
	idSeq, err := backend.GetSequence(snapshotIDSeq)
	if err != nil {
		return nil, err
	}

	return &SnapshotRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the version sequence.
func (r *SnapshotRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *SnapshotRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// SaveSnapshot stores a snapshot under the next version ID.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snapshot *core.Snapshot) (*core.Snapshot, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		nextID, err := r.idSeq.Next()
		if err != nil {
			return err
		}
		// BadgerDB sequences can return 0 on first call, so we skip it
		if nextID == 0 {
			nextID, err = r.idSeq.Next()
			if err != nil {
				return err
			}
		}
		snapshot.Id = core.ID(nextID)

		if snapshot.CreatedAt.IsZero() {
			snapshot.CreatedAt = time.Now().UTC()
		}

		key := makeSnapshotKey(snapshot.Id)
		if err := tx.Set(key, storage.MarshalSnapshot(snapshot)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return snapshot, err
}

// GetSnapshot retrieves a snapshot by version ID.
func (r *SnapshotRepository) GetSnapshot(ctx context.Context, id core.ID) (*core.Snapshot, error) {
	var result *core.Snapshot
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeSnapshotKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			result, unmarshalErr = storage.UnmarshalSnapshot(val)
			return unmarshalErr
		})
	}, false)

	return result, err
}

// LatestSnapshot retrieves the snapshot with the highest version ID.
// Returns nil, nil when no snapshot has been saved yet.
func (r *SnapshotRepository) LatestSnapshot(ctx context.Context) (*core.Snapshot, error) {
	var result *core.Snapshot
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(snapshotPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek to the last possible key with this prefix so the first valid
		// entry in reverse order is the highest version.
		seekKey := append([]byte(snapshotPrefix+":"), bytes.Repeat([]byte{0xFF}, 8)...)

		iter.Seek(seekKey)
		if !iter.Valid() {
			return nil
		}

		return iter.Item().Value(func(val []byte) error {
			var unmarshalErr error
			result, unmarshalErr = storage.UnmarshalSnapshot(val)
			return unmarshalErr
		})
	}, false)

	return result, err
}
