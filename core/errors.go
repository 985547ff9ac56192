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

import "errors"

// Engine configuration and training errors
var (
	// ErrMissingEmbedding indicates a model was constructed without a usable
	// user or item embedding table.
	ErrMissingEmbedding = errors.New("missing embedding table")

	// ErrDimensionMismatch indicates user and item embeddings disagree on
	// dimensionality, or a vector has the wrong width for its table.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrMalformedBatch indicates a training batch violated the dense layout
	// contract. It is raised before any parameter is touched.
	ErrMalformedBatch = errors.New("malformed batch")

	// ErrUnknownUser indicates a user id outside the user table.
	ErrUnknownUser = errors.New("unknown user")

	// ErrUnknownItem indicates an item id outside the item table.
	ErrUnknownItem = errors.New("unknown item")

	// ErrCorruptState indicates persisted parameters failed checksum or
	// shape verification during load.
	ErrCorruptState = errors.New("corrupt model state")

	// ErrUnknownDevice indicates an unrecognized compute device name.
	ErrUnknownDevice = errors.New("unknown compute device")
)

// Domain validation errors
var (
	// ErrInvalidInteraction indicates an Interaction failed validation.
	ErrInvalidInteraction = errors.New("invalid interaction")

	// ErrInvalidItem indicates an Item failed validation.
	ErrInvalidItem = errors.New("invalid item")

	// ErrNegativeID indicates a user or item id below zero.
	ErrNegativeID = errors.New("id cannot be negative")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrEmptyTitle indicates the item Title field is empty.
	ErrEmptyTitle = errors.New("item title cannot be empty")
)
