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


// Package loss provides training objectives for the collaborative filtering
// engine. Objectives compute per-example losses and gradients; those that
// additionally implement Weighted accept per-example confidence weights that
// scale both.
package loss

// Objective scores predictions against targets and exposes the gradient of
// the loss with respect to each prediction. Both methods operate per example;
// reduction (mean over the batch) is the engine's job.
type Objective interface {
	// Loss returns the per-example loss for aligned predictions and targets.
	Loss(pred, target []float32) []float32

	// Grad returns the per-example gradient dL/dprediction.
	Grad(pred, target []float32) []float32
}

// Weighted is the optional confidence-weighting capability. The engine
// resolves it once at construction; objectives without it simply never see
// weights. SetWeights replaces the per-example weights applied by subsequent
// Loss and Grad calls. Passing nil clears them. Missing entries count as 1.
type Weighted interface {
	SetWeights(weights []float32)
}

// weightAt reads a weight slice with a default of 1 for missing entries.
func weightAt(weights []float32, i int) float32 {
	if i >= len(weights) {
		return 1
	}
	return weights[i]
}
