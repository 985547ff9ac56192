package train

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengTzer/cf-step/core"
	"github.com/ZhengTzer/cf-step/storage/badger"
)

func makeInteractions(n int) []*core.Interaction {
	interactions := make([]*core.Interaction, n)
	for i := 0; i < n; i++ {
		interactions[i] = &core.Interaction{
			User:       core.ID(i % 3),
			Item:       core.ID(i % 4),
			Rating:     float32(i),
			Preference: float32(i % 2),
		}
	}
	return interactions
}

func collectBatches(t *testing.T, dataset Dataset) []*core.Batch {
	t.Helper()
	var batches []*core.Batch
	err := dataset.ForEach(context.Background(), func(batch *core.Batch) error {
		batches = append(batches, batch)
		return nil
	})
	require.NoError(t, err)
	return batches
}

func TestNewSliceDataset_Chunking(t *testing.T) {
	dataset := NewSliceDataset(makeInteractions(10), 4)
	require.Equal(t, 3, dataset.Len())

	batches := collectBatches(t, dataset)
	require.Len(t, batches, 3)
	assert.Equal(t, 4, batches[0].Len())
	assert.Equal(t, 4, batches[1].Len())
	assert.Equal(t, 2, batches[2].Len())

	// Feature rows carry [user, item, rating] in the original order
	assert.Equal(t, []float32{0, 0, 0}, batches[0].Features[0])
	assert.Equal(t, []float32{1, 1, 1}, batches[0].Features[1])
	assert.Equal(t, []float32{0, 1, 9}, batches[2].Features[1])
	assert.Equal(t, float32(1), batches[2].Preferences[1])
}

func TestNewSliceDataset_DefaultBatchSize(t *testing.T) {
	dataset := NewSliceDataset(makeInteractions(DefaultBatchSize+1), 0)
	assert.Equal(t, 2, dataset.Len())
}

func TestSliceDataset_Restartable(t *testing.T) {
	dataset := NewSliceDataset(makeInteractions(6), 2)

	first := collectBatches(t, dataset)
	second := collectBatches(t, dataset)
	assert.Equal(t, first, second)
}

func TestSliceDataset_FnErrorStops(t *testing.T) {
	dataset := NewSliceDataset(makeInteractions(6), 2)
	boom := errors.New("boom")

	calls := 0
	err := dataset.ForEach(context.Background(), func(*core.Batch) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestSliceDataset_ContextCanceled(t *testing.T) {
	dataset := NewSliceDataset(makeInteractions(6), 2)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := dataset.ForEach(ctx, func(*core.Batch) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestNewRepositoryDataset_NilRepo(t *testing.T) {
	_, err := NewRepositoryDataset(nil, 10)
	assert.ErrorIs(t, err, ErrRepositoryRequired)
}

func TestRepositoryDataset_PagesInArrivalOrder(t *testing.T) {
	interactionRepo, _, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		interactionRepo.Close()
		backend.Close()
	})

	ctx := context.Background()
	_, err = interactionRepo.AddInteractions(ctx, makeInteractions(7)...)
	require.NoError(t, err)

	dataset, err := NewRepositoryDataset(interactionRepo, 3)
	require.NoError(t, err)

	batches := collectBatches(t, dataset)
	require.Len(t, batches, 3)
	assert.Equal(t, 3, batches[0].Len())
	assert.Equal(t, 3, batches[1].Len())
	assert.Equal(t, 1, batches[2].Len())

	// Ratings encode the insertion index, so they prove arrival order
	var ratings []float32
	for _, batch := range batches {
		for _, row := range batch.Features {
			ratings = append(ratings, row[2])
		}
	}
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5, 6}, ratings)
}

func TestRepositoryDataset_SeesAppendsBetweenPasses(t *testing.T) {
	interactionRepo, _, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		interactionRepo.Close()
		backend.Close()
	})

	ctx := context.Background()
	_, err = interactionRepo.AddInteractions(ctx, makeInteractions(2)...)
	require.NoError(t, err)

	dataset, err := NewRepositoryDataset(interactionRepo, 10)
	require.NoError(t, err)

	first := collectBatches(t, dataset)
	require.Len(t, first, 1)
	assert.Equal(t, 2, first[0].Len())

	_, err = interactionRepo.AddInteractions(ctx, &core.Interaction{User: 1, Item: 1, Rating: 9})
	require.NoError(t, err)

	second := collectBatches(t, dataset)
	require.Len(t, second, 1)
	assert.Equal(t, 3, second[0].Len())
}
