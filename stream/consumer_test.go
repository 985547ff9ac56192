package stream

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengTzer/cf-step/core"
	"github.com/ZhengTzer/cf-step/storage"
	"github.com/ZhengTzer/cf-step/storage/badger"
)

// fakeTrainer records the updates it is asked to apply. Items listed in
// rejectItems simulate ids outside the model's tables.
type fakeTrainer struct {
	mu          sync.Mutex
	steps       []stepCall
	rejectItems map[core.ID]bool
	snapshots   int
}

type stepCall struct {
	user   core.ID
	item   core.ID
	rating float32
}

func (f *fakeTrainer) Step(_ context.Context, users, items []core.ID, ratings, _ []float32) (float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range users {
		if f.rejectItems[items[i]] {
			return 0, core.ErrUnknownItem
		}
		f.steps = append(f.steps, stepCall{user: users[i], item: items[i], rating: ratings[i]})
	}
	return 0.5, nil
}

func (f *fakeTrainer) Snapshot() *core.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots++
	return &core.Snapshot{Dim: 1, Users: [][]float32{{1}}, Items: [][]float32{{1}}}
}

func (f *fakeTrainer) calls() []stepCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stepCall(nil), f.steps...)
}

func newTestRepos(t *testing.T) (storage.InteractionRepository, storage.SnapshotRepository) {
	t.Helper()
	interactionRepo, itemRepo, snapshotRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		snapshotRepo.Close()
		itemRepo.Close()
		interactionRepo.Close()
		backend.Close()
	})
	return interactionRepo, snapshotRepo
}

func TestNewConsumer(t *testing.T) {
	interactionRepo, snapshotRepo := newTestRepos(t)

	t.Run("valid", func(t *testing.T) {
		consumer, err := NewConsumer(&fakeTrainer{}, interactionRepo)
		require.NoError(t, err)
		defer consumer.Release()
		assert.NotNil(t, consumer)
	})

	t.Run("with snapshots", func(t *testing.T) {
		consumer, err := NewConsumer(&fakeTrainer{}, interactionRepo,
			WithSnapshots(snapshotRepo), WithSnapshotEvery(10))
		require.NoError(t, err)
		defer consumer.Release()
		assert.Equal(t, 10, consumer.snapshotEvery)
	})

	t.Run("nil trainer", func(t *testing.T) {
		_, err := NewConsumer(nil, interactionRepo)
		assert.ErrorIs(t, err, ErrTrainerRequired)
	})

	t.Run("nil interaction repository", func(t *testing.T) {
		_, err := NewConsumer(&fakeTrainer{}, nil)
		assert.ErrorIs(t, err, ErrInteractionRepositoryRequired)
	})

	t.Run("nil snapshot repository", func(t *testing.T) {
		_, err := NewConsumer(&fakeTrainer{}, interactionRepo, WithSnapshots(nil))
		assert.ErrorIs(t, err, ErrSnapshotRepositoryRequired)
	})
}

func TestPublish_TrainsInOrder(t *testing.T) {
	interactionRepo, _ := newTestRepos(t)
	trainer := &fakeTrainer{}

	consumer, err := NewConsumer(trainer, interactionRepo)
	require.NoError(t, err)
	defer consumer.Release()

	ctx := context.Background()
	events := make([]*core.Interaction, 6)
	for i := range events {
		events[i] = &core.Interaction{User: core.ID(i % 2), Item: core.ID(i % 3), Rating: float32(i)}
	}

	require.NoError(t, consumer.Publish(ctx, events[:4]...))
	require.NoError(t, consumer.Publish(ctx, events[4:]...))
	consumer.Flush()

	// Ratings carry the publish index, so order is observable
	calls := trainer.calls()
	require.Len(t, calls, 6)
	for i, call := range calls {
		assert.Equal(t, float32(i), call.rating, "event %d applied out of order", i)
	}

	count, err := interactionRepo.CountInteractions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestPublish_DropsMalformed(t *testing.T) {
	interactionRepo, _ := newTestRepos(t)
	trainer := &fakeTrainer{}

	consumer, err := NewConsumer(trainer, interactionRepo)
	require.NoError(t, err)
	defer consumer.Release()

	ctx := context.Background()
	err = consumer.Publish(ctx,
		&core.Interaction{User: 0, Item: 1, Rating: 5},
		&core.Interaction{User: -1, Item: 1, Rating: 5},
		&core.Interaction{User: 1, Item: -2, Rating: 3},
		&core.Interaction{User: 1, Item: 2, Rating: 4},
	)
	require.NoError(t, err)
	consumer.Flush()

	// Malformed events never reach the log or the trainer
	count, err := interactionRepo.CountInteractions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, trainer.calls(), 2)
}

func TestPublish_KeepsRejectedEventsInLog(t *testing.T) {
	interactionRepo, _ := newTestRepos(t)
	trainer := &fakeTrainer{rejectItems: map[core.ID]bool{99: true}}

	consumer, err := NewConsumer(trainer, interactionRepo)
	require.NoError(t, err)
	defer consumer.Release()

	ctx := context.Background()
	err = consumer.Publish(ctx,
		&core.Interaction{User: 0, Item: 1, Rating: 5},
		&core.Interaction{User: 0, Item: 99, Rating: 5},
		&core.Interaction{User: 1, Item: 2, Rating: 3},
	)
	require.NoError(t, err)
	consumer.Flush()

	// The rejected event is skipped by the trainer but stays in the log,
	// where the next retrain over the full log will see it.
	assert.Len(t, trainer.calls(), 2)

	count, err := interactionRepo.CountInteractions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestConsumer_PeriodicSnapshots(t *testing.T) {
	interactionRepo, snapshotRepo := newTestRepos(t)
	trainer := &fakeTrainer{}

	consumer, err := NewConsumer(trainer, interactionRepo,
		WithSnapshots(snapshotRepo), WithSnapshotEvery(2))
	require.NoError(t, err)
	defer consumer.Release()

	ctx := context.Background()
	events := make([]*core.Interaction, 5)
	for i := range events {
		events[i] = &core.Interaction{User: 0, Item: core.ID(i), Rating: 1}
	}
	require.NoError(t, consumer.Publish(ctx, events...))
	consumer.Flush()

	// Five applied events with a snapshot every two: saves after the
	// second and the fourth.
	latest, err := snapshotRepo.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, core.ID(2), latest.Id)
}

func TestConsumer_Release(t *testing.T) {
	interactionRepo, _ := newTestRepos(t)

	consumer, err := NewConsumer(&fakeTrainer{}, interactionRepo)
	require.NoError(t, err)

	// Flush with nothing published returns immediately
	consumer.Flush()

	// Release should not panic
	consumer.Release()

	// Multiple releases should not panic
	consumer.Release()
}
