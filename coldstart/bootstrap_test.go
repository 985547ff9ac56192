package coldstart

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengTzer/cf-step/core"
	"github.com/ZhengTzer/cf-step/model"
)

// fakeEmbedder returns deterministic vectors derived from the text hash.
// The first failUntil calls fail, to exercise the retry path.
type fakeEmbedder struct {
	mu        sync.Mutex
	calls     [][]string
	failUntil int
	dim       int
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, texts)
	if len(f.calls) <= f.failUntil {
		return nil, errors.New("embedding service unavailable")
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = deterministicVector(text, f.dim)
	}
	return out, nil
}

// deterministicVector hashes text into a fixed pseudo-random vector.
func deterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := range vector {
		seed = seed*1664525 + 1013904223
		vector[i] = float32(seed%1000)/1000.0 - 0.5
	}
	return vector
}

func newTestModel(t *testing.T) *model.MF {
	t.Helper()
	m, err := model.NewMF(model.MFConfig{Users: 2, Items: 5, Dim: 4, InitStd: 0.1, Seed: 7})
	require.NoError(t, err)
	return m
}

func catalogItems(ids ...core.ID) []*core.Item {
	items := make([]*core.Item, len(ids))
	for i, id := range ids {
		items[i] = &core.Item{Id: id, Title: "Item", Tags: []string{"tag"}}
	}
	return items
}

func TestNewBootstrapper(t *testing.T) {
	m := newTestModel(t)

	t.Run("valid", func(t *testing.T) {
		b, err := NewBootstrapper(m, &fakeEmbedder{dim: 16})
		require.NoError(t, err)
		assert.NotNil(t, b)
	})

	t.Run("nil model", func(t *testing.T) {
		_, err := NewBootstrapper(nil, &fakeEmbedder{dim: 16})
		assert.ErrorIs(t, err, ErrModelRequired)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewBootstrapper(m, nil)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("invalid retry", func(t *testing.T) {
		_, err := NewBootstrapper(m, &fakeEmbedder{dim: 16}, WithRetry(0, time.Millisecond))
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	})
}

func TestBootstrap_WritesRows(t *testing.T) {
	m := newTestModel(t)
	before := m.Items().CopyRows()

	b, err := NewBootstrapper(m, &fakeEmbedder{dim: 16}, WithScale(0.05))
	require.NoError(t, err)

	items := []*core.Item{
		{Id: 0, Title: "Blade Runner", Tags: []string{"sci-fi", "noir"}},
		{Id: 1, Title: "Alien", Tags: []string{"sci-fi", "horror"}},
		{Id: 2, Title: "Heat", Tags: []string{"crime"}},
	}
	require.NoError(t, b.Bootstrap(context.Background(), items...))

	after := m.Items().CopyRows()
	for id := 0; id < 3; id++ {
		assert.NotEqual(t, before[id], after[id], "row %d should be overwritten", id)

		var norm float64
		for _, v := range after[id] {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 0.05, math.Sqrt(norm), 1e-6, "row %d norm", id)
	}

	// Items that were not bootstrapped keep their random initialization
	assert.Equal(t, before[3], after[3])
	assert.Equal(t, before[4], after[4])
}

func TestBootstrap_Deterministic(t *testing.T) {
	items := []*core.Item{
		{Id: 1, Title: "Blade Runner", Tags: []string{"sci-fi"}},
		{Id: 3, Title: "Heat", Tags: []string{"crime"}},
	}

	run := func() [][]float32 {
		m := newTestModel(t)
		b, err := NewBootstrapper(m, &fakeEmbedder{dim: 16}, WithProjectionSeed(11))
		require.NoError(t, err)
		require.NoError(t, b.Bootstrap(context.Background(), items...))
		return m.Items().CopyRows()
	}

	assert.Equal(t, run(), run(), "same seeds should reproduce the same rows")
}

func TestBootstrap_PassthroughWhenDimsMatch(t *testing.T) {
	m := newTestModel(t)

	// Embedder output already has the model dimension, so no projection runs
	b, err := NewBootstrapper(m, &fakeEmbedder{dim: 4}, WithScale(0.1))
	require.NoError(t, err)

	item := &core.Item{Id: 2, Title: "Heat", Tags: []string{"crime"}}
	require.NoError(t, b.Bootstrap(context.Background(), item))

	expected := ScaleVector(NormalizeVector(deterministicVector(itemText(item), 4)), 0.1)
	row, ok := m.Items().Vector(2)
	require.True(t, ok)
	for i := range expected {
		assert.InDelta(t, expected[i], row[i], 1e-6, "component %d", i)
	}
}

func TestBootstrap_UnknownItem(t *testing.T) {
	m := newTestModel(t)
	before := m.Items().CopyRows()

	embedder := &fakeEmbedder{dim: 16}
	b, err := NewBootstrapper(m, embedder)
	require.NoError(t, err)

	items := append(catalogItems(1), catalogItems(99)...)
	err = b.Bootstrap(context.Background(), items...)
	assert.ErrorIs(t, err, core.ErrUnknownItem)

	// Ids are checked before any embedding or write happens
	assert.Empty(t, embedder.calls)
	assert.Equal(t, before, m.Items().CopyRows())
}

func TestBootstrap_InvalidItem(t *testing.T) {
	m := newTestModel(t)
	b, err := NewBootstrapper(m, &fakeEmbedder{dim: 16})
	require.NoError(t, err)

	err = b.Bootstrap(context.Background(), &core.Item{Id: 1, Title: ""})
	assert.ErrorIs(t, err, core.ErrInvalidItem)
}

func TestBootstrap_RetriesEmbedding(t *testing.T) {
	m := newTestModel(t)
	before := m.Items().CopyRows()

	embedder := &fakeEmbedder{dim: 16, failUntil: 2}
	b, err := NewBootstrapper(m, embedder, WithRetry(3, time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, b.Bootstrap(context.Background(), catalogItems(0)...))
	assert.Len(t, embedder.calls, 3, "two failures then one success")
	assert.NotEqual(t, before[0], m.Items().CopyRows()[0])
}

func TestBootstrap_ExhaustsRetries(t *testing.T) {
	m := newTestModel(t)
	before := m.Items().CopyRows()

	embedder := &fakeEmbedder{dim: 16, failUntil: 10}
	b, err := NewBootstrapper(m, embedder, WithRetry(2, time.Millisecond))
	require.NoError(t, err)

	err = b.Bootstrap(context.Background(), catalogItems(0)...)
	require.Error(t, err)
	assert.Len(t, embedder.calls, 2)
	assert.Equal(t, before, m.Items().CopyRows())
}

func TestBootstrap_Batching(t *testing.T) {
	m, err := model.NewMF(model.MFConfig{Users: 2, Items: 10, Dim: 4, Seed: 7})
	require.NoError(t, err)

	embedder := &fakeEmbedder{dim: 16}
	b, err := NewBootstrapper(m, embedder, WithBatchSize(3))
	require.NoError(t, err)

	require.NoError(t, b.Bootstrap(context.Background(),
		catalogItems(0, 1, 2, 3, 4, 5, 6)...))

	require.Len(t, embedder.calls, 3)
	assert.Len(t, embedder.calls[0], 3)
	assert.Len(t, embedder.calls[1], 3)
	assert.Len(t, embedder.calls[2], 1)
}

// shortEmbedder always returns a single vector regardless of input size.
type shortEmbedder struct{}

func (shortEmbedder) EmbedTexts(context.Context, []string) ([][]float32, error) {
	return [][]float32{{1, 2, 3, 4}}, nil
}

func TestBootstrap_EmbeddingMismatch(t *testing.T) {
	m := newTestModel(t)
	b, err := NewBootstrapper(m, shortEmbedder{})
	require.NoError(t, err)

	err = b.Bootstrap(context.Background(), catalogItems(0, 1)...)
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}

func TestBootstrap_NoItems(t *testing.T) {
	m := newTestModel(t)
	embedder := &fakeEmbedder{dim: 16}
	b, err := NewBootstrapper(m, embedder)
	require.NoError(t, err)

	require.NoError(t, b.Bootstrap(context.Background()))
	assert.Empty(t, embedder.calls)
}
