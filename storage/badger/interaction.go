package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ZhengTzer/cf-step/core"
	"github.com/ZhengTzer/cf-step/storage"
)

// InteractionRepository implements storage.InteractionRepository for BadgerDB.
type InteractionRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.InteractionRepository = (*InteractionRepository)(nil)

// NewInteractionRepository creates a new InteractionRepository.
func NewInteractionRepository(backend *Backend) (*InteractionRepository, error) {
	idSeq, err := backend.GetSequence(interactionIDSeq)
	if err != nil {
		return nil, err
	}

	return &InteractionRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *InteractionRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *InteractionRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddInteractions appends one or more interactions to the log.
func (r *InteractionRepository) AddInteractions(ctx context.Context, interactions ...*core.Interaction) ([]*core.Interaction, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, interaction := range interactions {
			// Always generate a new ID from the sequence; the log key order
			// is the arrival order retraining replays events in.
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
			interaction.Id = core.ID(nextID)

			now := time.Now().UTC()
			if interaction.Timestamp.IsZero() {
				interaction.Timestamp = now
			}
			interaction.InsertedAt = now

			key := makeInteractionKey(interaction.Id)
			value := storage.MarshalInteraction(interaction)
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return interactions, err
}

// GetInteraction retrieves a single interaction by ID.
func (r *InteractionRepository) GetInteraction(ctx context.Context, id core.ID) (*core.Interaction, error) {
	var result *core.Interaction
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeInteractionKey(id)
		var err error
		result, err = readInteraction(tx, key)
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

// Interactions retrieves up to limit interactions with ID > afterID in
// ascending ID order. Keys are BigEndian-encoded, so iteration order is
// ID order.
func (r *InteractionRepository) Interactions(ctx context.Context, afterID core.ID, limit int) ([]*core.Interaction, error) {
	if limit <= 0 {
		return nil, nil
	}

	var results []*core.Interaction
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(interactionPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		startKey := makeInteractionKey(afterID + 1)
		for iter.Seek(startKey); iter.Valid() && len(results) < limit; iter.Next() {
			var interaction *core.Interaction
			err := iter.Item().Value(func(val []byte) error {
				var err error
				interaction, err = storage.UnmarshalInteraction(val)
				return err
			})
			if err != nil {
				return err
			}
			if interaction != nil {
				results = append(results, interaction)
			}
		}
		return nil
	}, false)

	return results, err
}

// CountInteractions returns the number of interactions in the log.
func (r *InteractionRepository) CountInteractions(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(interactionPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)

	return count, err
}

// readInteraction reads an interaction from the transaction.
func readInteraction(tx *badger.Txn, key []byte) (*core.Interaction, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var interaction *core.Interaction
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		interaction, unmarshalErr = storage.UnmarshalInteraction(val)
		return unmarshalErr
	})
	return interaction, err
}
