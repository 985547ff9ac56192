package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengTzer/cf-step/core"
	"github.com/ZhengTzer/cf-step/storage"
)

func newTestRepos(t *testing.T) (storage.InteractionRepository, storage.ItemRepository, storage.SnapshotRepository) {
	t.Helper()
	interactionRepo, itemRepo, snapshotRepo, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		snapshotRepo.Close()
		itemRepo.Close()
		interactionRepo.Close()
		backend.Close()
	})
	return interactionRepo, itemRepo, snapshotRepo
}

func TestAddInteractions(t *testing.T) {
	interactionRepo, _, _ := newTestRepos(t)
	ctx := context.Background()

	interactions := []*core.Interaction{
		{User: 0, Item: 3, Rating: 4.5, Preference: 1},
		{User: 1, Item: 0, Rating: 2.0, Preference: 0},
		{User: 0, Item: 1, Rating: 5.0, Preference: 1},
	}

	added, err := interactionRepo.AddInteractions(ctx, interactions...)
	require.NoError(t, err)
	require.Len(t, added, 3)

	// IDs are assigned from the sequence in arrival order
	assert.NotZero(t, added[0].Id)
	assert.Greater(t, added[1].Id, added[0].Id)
	assert.Greater(t, added[2].Id, added[1].Id)

	// Timestamps are stamped on insert
	for _, interaction := range added {
		assert.False(t, interaction.Timestamp.IsZero())
		assert.False(t, interaction.InsertedAt.IsZero())
	}
}

func TestAddInteractions_PreservesTimestamp(t *testing.T) {
	interactionRepo, _, _ := newTestRepos(t)
	ctx := context.Background()

	eventTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	added, err := interactionRepo.AddInteractions(ctx, &core.Interaction{
		User: 1, Item: 2, Rating: 3, Preference: 1, Timestamp: eventTime,
	})
	require.NoError(t, err)
	assert.True(t, eventTime.Equal(added[0].Timestamp))
}

func TestGetInteraction(t *testing.T) {
	interactionRepo, _, _ := newTestRepos(t)
	ctx := context.Background()

	added, err := interactionRepo.AddInteractions(ctx, &core.Interaction{
		User: 2, Item: 5, Rating: 4, Preference: 1,
	})
	require.NoError(t, err)

	retrieved, err := interactionRepo.GetInteraction(ctx, added[0].Id)
	require.NoError(t, err)
	assert.Equal(t, added[0].Id, retrieved.Id)
	assert.Equal(t, core.ID(2), retrieved.User)
	assert.Equal(t, core.ID(5), retrieved.Item)
	assert.Equal(t, float32(4), retrieved.Rating)
}

func TestGetInteraction_NotFound(t *testing.T) {
	interactionRepo, _, _ := newTestRepos(t)

	_, err := interactionRepo.GetInteraction(context.Background(), core.ID(9999))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInteractions_Pagination(t *testing.T) {
	interactionRepo, _, _ := newTestRepos(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := interactionRepo.AddInteractions(ctx, &core.Interaction{
			User: core.ID(i % 3), Item: core.ID(i % 4), Rating: float32(i), Preference: 1,
		})
		require.NoError(t, err)
	}

	// Page through the whole log in arrival order
	var all []*core.Interaction
	after := core.ID(0)
	for {
		page, err := interactionRepo.Interactions(ctx, after, 4)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		after = page[len(page)-1].Id
	}

	require.Len(t, all, 10)
	for i := 0; i < len(all)-1; i++ {
		assert.Less(t, all[i].Id, all[i+1].Id)
	}
	// Ratings confirm arrival order was preserved
	for i, interaction := range all {
		assert.Equal(t, float32(i), interaction.Rating)
	}
}

func TestInteractions_ZeroLimit(t *testing.T) {
	interactionRepo, _, _ := newTestRepos(t)
	ctx := context.Background()

	_, err := interactionRepo.AddInteractions(ctx, &core.Interaction{User: 1, Item: 1, Rating: 1})
	require.NoError(t, err)

	page, err := interactionRepo.Interactions(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestCountInteractions(t *testing.T) {
	interactionRepo, _, _ := newTestRepos(t)
	ctx := context.Background()

	count, err := interactionRepo.CountInteractions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for i := 0; i < 5; i++ {
		_, err := interactionRepo.AddInteractions(ctx, &core.Interaction{
			User: core.ID(i), Item: core.ID(i), Rating: 1, Preference: 1,
		})
		require.NoError(t, err)
	}

	count, err = interactionRepo.CountInteractions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}
