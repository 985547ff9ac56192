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


package core

import (
	"fmt"
	"time"
)

// ValidateInteraction validates an Interaction according to domain rules.
//
// Validation rules:
//   - User and Item must not be negative
//   - Timestamp must not be in the future
//
// NOT validated:
//   - Rating and Preference (any float32 is accepted; confidence functions
//     and objectives interpret them)
//   - ID (0 is valid from database sequences)
//   - Whether User/Item fall inside a particular model's tables (the engine
//     checks range against its own tables)
func ValidateInteraction(interaction *Interaction) error {
	if interaction == nil {
		return fmt.Errorf("%w: interaction is nil", ErrInvalidInteraction)
	}

	if interaction.User < 0 {
		return fmt.Errorf("%w: user: %w", ErrInvalidInteraction, ErrNegativeID)
	}

	if interaction.Item < 0 {
		return fmt.Errorf("%w: item: %w", ErrInvalidInteraction, ErrNegativeID)
	}

	if !IsValidTimestamp(interaction.Timestamp) {
		return fmt.Errorf("%w: %w", ErrInvalidInteraction, ErrInvalidTimestamp)
	}

	return nil
}

// ValidateItem validates an Item according to domain rules.
//
// Validation rules:
//   - Id must not be negative (it addresses an embedding row)
//   - Title must not be empty
//
// NOT validated:
//   - Tags (may be empty)
//   - Whether Id falls inside a particular model's item table
func ValidateItem(item *Item) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidItem)
	}

	if item.Id < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidItem, ErrNegativeID)
	}

	if item.Title == "" {
		return fmt.Errorf("%w: %w", ErrInvalidItem, ErrEmptyTitle)
	}

	return nil
}

// ValidateBatch validates the dense layout of a training batch.
//
// Validation rules:
//   - Batch must not be nil or empty
//   - Every feature row must have exactly FeatureColumns values
//   - Preferences must align 1:1 with feature rows
//
// All violations surface ErrMalformedBatch before any training work happens.
func ValidateBatch(batch *Batch) error {
	if batch == nil || len(batch.Features) == 0 {
		return fmt.Errorf("%w: empty batch", ErrMalformedBatch)
	}

	if len(batch.Preferences) != len(batch.Features) {
		return fmt.Errorf("%w: %d feature rows but %d preferences",
			ErrMalformedBatch, len(batch.Features), len(batch.Preferences))
	}

	for i, row := range batch.Features {
		if len(row) != FeatureColumns {
			return fmt.Errorf("%w: feature row %d has %d columns, want %d",
				ErrMalformedBatch, i, len(row), FeatureColumns)
		}
	}

	return nil
}

// ValidatePairs validates the aligned-slice form of a training batch as used
// by incremental updates. Lengths must match and at least one example must be
// present; violations surface ErrMalformedBatch.
func ValidatePairs(users, items []ID, ratings, preferences []float32) error {
	n := len(users)
	if n == 0 {
		return fmt.Errorf("%w: no examples", ErrMalformedBatch)
	}
	if len(items) != n || len(ratings) != n || len(preferences) != n {
		return fmt.Errorf("%w: got %d users, %d items, %d ratings, %d preferences",
			ErrMalformedBatch, n, len(items), len(ratings), len(preferences))
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
