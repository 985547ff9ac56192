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


// Package train implements the collaborative filtering engine: batch fitting,
// incremental updates, top-k prediction, and parameter persistence over a
// pluggable model, objective, and optimizer.
//
// # Unified update path
//
// Fit and Step share one internal batch update, so an epoch of single-example
// batches is numerically identical to the same examples applied through Step
// in the same order. Each update is all-or-nothing: validation happens before
// any parameter is touched, and a failed call leaves the model exactly as it
// was.
//
// # Construction
//
//	m, _ := model.NewMF(model.DefaultMFConfig(users, items))
//	engine, err := train.New(m, loss.NewMSE(), optim.NewSGD(optim.DefaultSGDConfig()),
//	    train.WithConfidence(train.LinearConfidence(40)),
//	    train.WithDevice(compute.DeviceAccel),
//	)
//
// Confidence weighting is resolved once at construction: if the objective
// implements loss.Weighted, the engine injects fresh confidence weights every
// update; otherwise the confidence function's output is discarded. Without an
// explicit confidence function the engine uses ConstantConfidence(1).
//
// # Concurrency
//
// An engine owns a single logical training thread. Interleave Fit, Step, and
// Predict calls from one goroutine, or serialize them externally; the stream
// package provides an ordered queue for live updates.
package train
