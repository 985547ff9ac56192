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


package train

import (
	"context"

	"github.com/ZhengTzer/cf-step/core"
	"github.com/ZhengTzer/cf-step/storage"
)

const (
	// DefaultBatchSize is the default number of examples per training batch
	DefaultBatchSize = 128
)

// Dataset is a finite, restartable, ordered source of training batches.
// Every ForEach call iterates from the beginning in the same order; the
// engine runs one full pass per epoch and never reorders batches.
type Dataset interface {
	// ForEach calls fn for each batch in order. Iteration stops on the first
	// error from fn. Context cancellation is checked between batches.
	ForEach(ctx context.Context, fn func(*core.Batch) error) error
}

// SliceDataset is an in-memory Dataset backed by pre-built batches.
type SliceDataset struct {
	batches []*core.Batch
}

var _ Dataset = (*SliceDataset)(nil)

// NewSliceDataset chunks interactions into dense batches in their given
// order. batchSize: number of examples per batch (must be > 0, defaults to
// DefaultBatchSize).
func NewSliceDataset(interactions []*core.Interaction, batchSize int) *SliceDataset {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var batches []*core.Batch
	for i := 0; i < len(interactions); i += batchSize {
		end := i + batchSize
		if end > len(interactions) {
			end = len(interactions)
		}
		batches = append(batches, batchFromInteractions(interactions[i:end]))
	}
	return &SliceDataset{batches: batches}
}

// NewBatchDataset wraps already-built batches without copying.
func NewBatchDataset(batches ...*core.Batch) *SliceDataset {
	return &SliceDataset{batches: batches}
}

// Len returns the number of batches.
func (d *SliceDataset) Len() int {
	return len(d.batches)
}

// ForEach iterates the batches in order, checking the context between
// batches.
func (d *SliceDataset) ForEach(ctx context.Context, fn func(*core.Batch) error) error {
	for _, batch := range d.batches {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

// RepositoryDataset streams batches out of an interaction repository in
// arrival (sequence) order. It re-reads the log on every pass, so epochs see
// interactions appended since the previous one.
type RepositoryDataset struct {
	repo      storage.InteractionRepository
	batchSize int
}

var _ Dataset = (*RepositoryDataset)(nil)

// NewRepositoryDataset creates a dataset over the interaction log.
// batchSize: number of examples fetched and trained per batch (must be > 0,
// defaults to DefaultBatchSize).
func NewRepositoryDataset(repo storage.InteractionRepository, batchSize int) (*RepositoryDataset, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RepositoryDataset{repo: repo, batchSize: batchSize}, nil
}

// ForEach pages through the interaction log in sequence order, calling fn
// once per page. Context cancellation is checked between pages.
func (d *RepositoryDataset) ForEach(ctx context.Context, fn func(*core.Batch) error) error {
	after := core.ID(0)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		interactions, err := d.repo.Interactions(ctx, after, d.batchSize)
		if err != nil {
			return err
		}
		if len(interactions) == 0 {
			return nil
		}

		if err := fn(batchFromInteractions(interactions)); err != nil {
			return err
		}

		after = interactions[len(interactions)-1].Id
		if len(interactions) < d.batchSize {
			return nil
		}
	}
}

// batchFromInteractions packs interactions into the dense batch layout:
// one [user, item, rating] feature row plus the aligned preference target
// per interaction.
func batchFromInteractions(interactions []*core.Interaction) *core.Batch {
	batch := &core.Batch{
		Features:    make([][]float32, len(interactions)),
		Preferences: make([]float32, len(interactions)),
	}
	for i, in := range interactions {
		batch.Features[i] = []float32{float32(in.User), float32(in.Item), in.Rating}
		batch.Preferences[i] = in.Preference
	}
	return batch
}
