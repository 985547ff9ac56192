package storage

import (
	"context"

	"github.com/ZhengTzer/cf-step/core"
)

// Repository provides common storage operations shared across all
// repositories. Implementations must be thread-safe and support concurrent
// access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// InteractionRepository provides operations for the append-only interaction
// log. The log preserves arrival order, which is the order batch retraining
// replays events in.
type InteractionRepository interface {
	Repository
	// AddInteractions appends one or more interactions to the log.
	// For interactions with ID=0, generates new IDs from sequence.
	// Sets Timestamp and InsertedAt if not already set.
	// Returns the interactions with generated IDs and timestamps populated.
	AddInteractions(ctx context.Context, interactions ...*core.Interaction) ([]*core.Interaction, error)

	// GetInteraction retrieves a single interaction by ID.
	// Returns ErrNotFound if the interaction doesn't exist.
	GetInteraction(ctx context.Context, id core.ID) (*core.Interaction, error)

	// Interactions retrieves up to limit interactions with ID > afterID, in
	// ascending sequence (arrival) order. Passing afterID=0 starts from the
	// beginning; an empty result means the log is exhausted.
	Interactions(ctx context.Context, afterID core.ID, limit int) ([]*core.Interaction, error)

	// CountInteractions returns the number of interactions in the log.
	CountInteractions(ctx context.Context) (int, error)
}

// ItemRepository provides operations for the item catalog.
type ItemRepository interface {
	Repository
	// AddItems adds one or more items to the catalog. Item IDs are
	// caller-assigned; they must match the item's embedding row. Sets
	// InsertedAt and UpdatedAt timestamps. Replaces any existing item with
	// the same ID.
	AddItems(ctx context.Context, items ...*core.Item) ([]*core.Item, error)

	// GetItem retrieves a single item by ID.
	// Returns ErrNotFound if the item doesn't exist.
	GetItem(ctx context.Context, id core.ID) (*core.Item, error)

	// GetItems retrieves multiple items by their IDs.
	// Returns only the items that exist (no error for missing items).
	GetItems(ctx context.Context, ids ...core.ID) ([]*core.Item, error)

	// Items retrieves the whole catalog ordered by ID.
	Items(ctx context.Context) ([]*core.Item, error)

	// FindItemsByTag retrieves the items carrying the given tag, ordered by
	// ID.
	FindItemsByTag(ctx context.Context, tag string) ([]*core.Item, error)
}

// SnapshotRepository provides operations for versioned model snapshots.
type SnapshotRepository interface {
	Repository
	// SaveSnapshot stores a snapshot, assigning it the next version ID from
	// sequence and stamping CreatedAt if not already set. Returns the
	// snapshot with the assigned ID.
	SaveSnapshot(ctx context.Context, snapshot *core.Snapshot) (*core.Snapshot, error)

	// GetSnapshot retrieves a snapshot by version ID.
	// Returns ErrNotFound if the snapshot doesn't exist.
	GetSnapshot(ctx context.Context, id core.ID) (*core.Snapshot, error)

	// LatestSnapshot retrieves the snapshot with the highest version ID.
	// Returns nil (no error) when no snapshot has been saved yet.
	LatestSnapshot(ctx context.Context) (*core.Snapshot, error)
}
