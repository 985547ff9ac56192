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


package model

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/ZhengTzer/cf-step/compute"
	"github.com/ZhengTzer/cf-step/core"
)

// ErrInferenceMode indicates a gradient operation was attempted while the
// model was switched to inference mode.
var ErrInferenceMode = errors.New("model is in inference mode")

// MFConfig contains configuration for the matrix factorization model.
type MFConfig struct {
	// Users is the number of rows in the user embedding table.
	// Required, must be positive.
	Users int

	// Items is the number of rows in the item embedding table.
	// Required, must be positive.
	Items int

	// Dim is the dimensionality of the latent factor vectors.
	// Typical range: 32-128. Lower values use less memory.
	// Default: 64.
	Dim int

	// InitStd is the standard deviation of the normal distribution used to
	// initialize factors.
	// Default: 0.1.
	InitStd float64

	// Seed for reproducible initialization.
	// If 0, uses a default seed.
	Seed int64
}

// DefaultMFConfig returns default model configuration for the given table
// sizes.
func DefaultMFConfig(users, items int) MFConfig {
	return MFConfig{
		Users:   users,
		Items:   items,
		Dim:     64,
		InitStd: 0.1,
		Seed:    42,
	}
}

// MF is a two-table matrix factorization model for collaborative filtering:
// score(u,i) = user_factors[u] dot item_factors[i]. It starts in training
// mode; Eval switches scoring-only mode, in which Backward fails.
//
// MF is not safe for concurrent mutation. The training engine serializes all
// updates on a single logical thread.
type MF struct {
	users    *core.EmbeddingTable
	items    *core.EmbeddingTable
	dev      *compute.Device
	training bool
}

// NewMF creates a matrix factorization model with factors drawn from
// N(0, InitStd) using the configured seed. The model is bound to the serial
// cpu device until an engine rebinds it.
func NewMF(cfg MFConfig) (*MF, error) {
	if cfg.Dim <= 0 {
		cfg.Dim = 64
	}
	if cfg.InitStd <= 0 {
		cfg.InitStd = 0.1
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}

	users, err := core.NewEmbeddingTable(cfg.Users, cfg.Dim)
	if err != nil {
		return nil, fmt.Errorf("user table: %w", err)
	}
	items, err := core.NewEmbeddingTable(cfg.Items, cfg.Dim)
	if err != nil {
		return nil, fmt.Errorf("item table: %w", err)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	initTable(users, rng, cfg.InitStd)
	initTable(items, rng, cfg.InitStd)

	dev, err := compute.Open(compute.DeviceCPU)
	if err != nil {
		return nil, err
	}

	return &MF{
		users:    users,
		items:    items,
		dev:      dev,
		training: true,
	}, nil
}

func initTable(t *core.EmbeddingTable, rng *rand.Rand, std float64) {
	vec := make([]float32, t.Dim())
	for i := 0; i < t.Len(); i++ {
		for j := range vec {
			vec[j] = float32(rng.NormFloat64() * std)
		}
		// Rows are in range and vec matches the table width, SetVector
		// cannot fail here.
		_ = t.SetVector(core.ID(i), vec)
	}
}

// Bind attaches the model to a compute device. Nil is ignored.
func (m *MF) Bind(dev *compute.Device) {
	if dev != nil {
		m.dev = dev
	}
}

// Train switches the model to training mode.
func (m *MF) Train() {
	m.training = true
}

// Eval switches the model to inference mode.
func (m *MF) Eval() {
	m.training = false
}

// Training reports whether the model is in training mode.
func (m *MF) Training() bool {
	return m.training
}

// Users returns the user embedding table.
func (m *MF) Users() *core.EmbeddingTable {
	return m.users
}

// Items returns the item embedding table.
func (m *MF) Items() *core.EmbeddingTable {
	return m.items
}

// Parameters returns all trainable tables in a stable order.
func (m *MF) Parameters() []*core.EmbeddingTable {
	return []*core.EmbeddingTable{m.users, m.items}
}

// Dim returns the latent factor dimensionality.
func (m *MF) Dim() int {
	return m.users.Dim()
}

// Score computes the predicted affinity for each aligned (user, item) pair
// on the bound device.
func (m *MF) Score(users, items []core.ID) ([]float32, error) {
	if len(users) != len(items) {
		return nil, fmt.Errorf("%w: %d users but %d items", core.ErrMalformedBatch, len(users), len(items))
	}

	left := make([][]float32, len(users))
	right := make([][]float32, len(items))
	for i := range users {
		uv, ok := m.users.Vector(users[i])
		if !ok {
			return nil, fmt.Errorf("%w: id %d", core.ErrUnknownUser, users[i])
		}
		iv, ok := m.items.Vector(items[i])
		if !ok {
			return nil, fmt.Errorf("%w: id %d", core.ErrUnknownItem, items[i])
		}
		left[i] = uv
		right[i] = iv
	}

	return m.dev.ScorePairs(left, right), nil
}

// ScoreItems computes the predicted affinity between one user and every item
// row on the bound device.
func (m *MF) ScoreItems(user core.ID) ([]float32, error) {
	uv, ok := m.users.Vector(user)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", core.ErrUnknownUser, user)
	}
	return m.dev.ScoreAll(uv, m.items.Vectors()), nil
}

// Backward accumulates parameter gradients for the aligned pairs given the
// upstream gradient dL/dscore per example:
//
//	dL/dU[u] += outGrad * I[i]
//	dL/dI[i] += outGrad * U[u]
//
// Gradients are evaluated at the current parameters, so repeated ids within
// one call accumulate against the same row values. Fails with
// ErrInferenceMode when the model is not training.
func (m *MF) Backward(users, items []core.ID, outGrad []float32) error {
	if !m.training {
		return ErrInferenceMode
	}
	if len(users) != len(items) || len(outGrad) != len(users) {
		return fmt.Errorf("%w: %d users, %d items, %d gradients",
			core.ErrMalformedBatch, len(users), len(items), len(outGrad))
	}

	// Resolve every row before touching any gradient so a bad id cannot
	// leave a partial accumulation behind.
	userRows := make([][]float32, len(users))
	itemRows := make([][]float32, len(items))
	for i := range users {
		uv, ok := m.users.Vector(users[i])
		if !ok {
			return fmt.Errorf("%w: id %d", core.ErrUnknownUser, users[i])
		}
		iv, ok := m.items.Vector(items[i])
		if !ok {
			return fmt.Errorf("%w: id %d", core.ErrUnknownItem, items[i])
		}
		userRows[i] = uv
		itemRows[i] = iv
	}

	for i := range users {
		m.users.AddScaledGrad(users[i], itemRows[i], outGrad[i])
		m.items.AddScaledGrad(items[i], userRows[i], outGrad[i])
	}
	return nil
}
