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


// Package optim provides optimizers that turn gradients accumulated on
// embedding tables into parameter updates.
package optim

import "github.com/ZhengTzer/cf-step/core"

// Optimizer applies and clears accumulated gradients. Implementations only
// visit rows that carry a gradient, so sparse batch updates stay cheap even
// on large tables.
type Optimizer interface {
	// Step applies the accumulated gradients of every table to its rows.
	Step(params []*core.EmbeddingTable)

	// Zero discards the accumulated gradients of every table.
	Zero(params []*core.EmbeddingTable)
}

// zeroAll is the shared Zero implementation.
func zeroAll(params []*core.EmbeddingTable) {
	for _, table := range params {
		table.ZeroGrad()
	}
}
