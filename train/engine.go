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
	"fmt"
	"log/slog"
	"sort"

	"github.com/ZhengTzer/cf-step/compute"
	"github.com/ZhengTzer/cf-step/core"
	"github.com/ZhengTzer/cf-step/loss"
	"github.com/ZhengTzer/cf-step/optim"
)

// Engine drives training and prediction over a Model. It owns the compute
// device it opened and the single logical update thread; see the package
// documentation for the concurrency contract.
type Engine struct {
	model      Model
	objective  loss.Objective
	weighted   loss.Weighted // nil when the objective ignores confidence
	optimizer  optim.Optimizer
	confidence ConfidenceFunc
	device     *compute.Device
	deviceName string
	monitor    FitMonitor
	logger     *slog.Logger
}

var (
	_ BatchTrainer       = (*Engine)(nil)
	_ IncrementalTrainer = (*Engine)(nil)
	_ Recommender        = (*Engine)(nil)
	_ Checkpointer       = (*Engine)(nil)
)

// Option configures an Engine.
type Option func(*Engine) error

// WithDevice selects the compute device by name.
// Default is compute.DeviceCPU.
func WithDevice(name string) Option {
	return func(e *Engine) error {
		e.deviceName = name
		return nil
	}
}

// WithConfidence sets the confidence function applied to raw ratings.
// Default is ConstantConfidence(1). Nil restores the default.
func WithConfidence(fn ConfidenceFunc) Option {
	return func(e *Engine) error {
		if fn == nil {
			fn = ConstantConfidence(1)
		}
		e.confidence = fn
		return nil
	}
}

// WithMonitor sets the fit monitor.
// Default is a no-op monitor. Nil restores the default.
func WithMonitor(monitor FitMonitor) Option {
	return func(e *Engine) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		e.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// New creates an engine around the given model, objective, and optimizer.
//
// Construction validates that the model carries non-empty user and item
// tables of matching dimensionality, opens the requested compute device, and
// binds the model to it. Whether the objective accepts confidence weights is
// resolved here, once; the answer never changes for the life of the engine.
func New(model Model, objective loss.Objective, optimizer optim.Optimizer, opts ...Option) (*Engine, error) {
	if model == nil {
		return nil, ErrModelRequired
	}
	if objective == nil {
		return nil, ErrObjectiveRequired
	}
	if optimizer == nil {
		return nil, ErrOptimizerRequired
	}

	e := &Engine{
		model:      model,
		objective:  objective,
		optimizer:  optimizer,
		confidence: ConstantConfidence(1),
		deviceName: compute.DeviceCPU,
		monitor:    &noopMonitor{},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	users, items := model.Users(), model.Items()
	if users == nil || users.Len() == 0 {
		return nil, fmt.Errorf("%w: user table", core.ErrMissingEmbedding)
	}
	if items == nil || items.Len() == 0 {
		return nil, fmt.Errorf("%w: item table", core.ErrMissingEmbedding)
	}
	if users.Dim() != items.Dim() {
		return nil, fmt.Errorf("%w: users %d, items %d",
			core.ErrDimensionMismatch, users.Dim(), items.Dim())
	}

	device, err := compute.Open(e.deviceName)
	if err != nil {
		return nil, err
	}
	e.device = device
	model.Bind(device)
	model.Train()

	if weighted, ok := objective.(loss.Weighted); ok {
		e.weighted = weighted
	}

	e.logger.Debug("engine created",
		"device", device.Name(),
		"users", users.Len(),
		"items", items.Len(),
		"dim", users.Dim(),
		"weighted", e.weighted != nil)

	return e, nil
}

// Model returns the trained model.
func (e *Engine) Model() Model {
	return e.model
}

// Device returns the engine's compute device.
func (e *Engine) Device() *compute.Device {
	return e.device
}

// Close releases the engine's compute device. The engine must not be used
// after Close.
func (e *Engine) Close() error {
	return e.device.Close()
}

// Fit trains the model over the dataset for the given number of epochs. Each
// epoch is one ordered pass; each batch produces exactly one parameter
// update. A batch that fails validation aborts the run with the model left
// exactly as the previous batch's update wrote it.
func (e *Engine) Fit(ctx context.Context, dataset Dataset, epochs int) error {
	if dataset == nil {
		return ErrDatasetRequired
	}
	if epochs <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidEpochs, epochs)
	}

	e.model.Train()

	for epoch := 1; epoch <= epochs; epoch++ {
		e.monitor.EpochStarted(epoch, epochs)

		var (
			lossSum  float64
			batches  int
			examples int
		)
		err := dataset.ForEach(ctx, func(batch *core.Batch) error {
			if err := core.ValidateBatch(batch); err != nil {
				return err
			}

			users, items, ratings, prefs := splitBatch(batch)
			meanLoss, err := e.applyUpdate(users, items, ratings, prefs)
			if err != nil {
				return err
			}

			batches++
			examples += batch.Len()
			lossSum += float64(meanLoss)
			e.monitor.BatchProcessed(epoch, batches, batch.Len(), meanLoss)
			return nil
		})
		if err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}

		var epochLoss float32
		if batches > 0 {
			epochLoss = float32(lossSum / float64(batches))
		}
		e.monitor.EpochFinished(epoch, epochLoss)
		e.logger.Debug("epoch finished",
			"epoch", epoch, "batches", batches, "examples", examples, "loss", epochLoss)
	}

	return nil
}

// Step applies one incremental update from aligned event slices and returns
// the mean loss over the examples. It runs the same internal update as Fit,
// so a stream of Step calls reproduces Fit over the same examples batched the
// same way. The call is all-or-nothing: on any validation error the model is
// untouched.
func (e *Engine) Step(ctx context.Context, users, items []core.ID, ratings, preferences []float32) (float32, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	if err := core.ValidatePairs(users, items, ratings, preferences); err != nil {
		return 0, err
	}

	e.model.Train()
	return e.applyUpdate(users, items, ratings, preferences)
}

// applyUpdate is the single update path shared by Fit and Step:
// validate ids, forward, weight, reduce, backward, optimize.
func (e *Engine) applyUpdate(users, items []core.ID, ratings, preferences []float32) (float32, error) {
	userTable, itemTable := e.model.Users(), e.model.Items()
	for i := range users {
		if !userTable.Contains(users[i]) {
			return 0, fmt.Errorf("%w: id %d", core.ErrUnknownUser, users[i])
		}
		if !itemTable.Contains(items[i]) {
			return 0, fmt.Errorf("%w: id %d", core.ErrUnknownItem, items[i])
		}
	}

	predictions, err := e.model.Score(users, items)
	if err != nil {
		return 0, err
	}

	// Confidence is recomputed from the raw ratings on every update. The
	// weights reach the objective only through the capability resolved at
	// construction.
	if e.weighted != nil {
		e.weighted.SetWeights(e.confidence(ratings))
	}

	losses := e.objective.Loss(predictions, preferences)
	var sum float64
	for _, v := range losses {
		sum += float64(v)
	}
	meanLoss := float32(sum / float64(len(losses)))

	// Mean reduction: the per-example gradients shrink by 1/N so batch size
	// scales the step like the reported loss.
	grad := e.objective.Grad(predictions, preferences)
	invN := 1 / float32(len(grad))
	for i := range grad {
		grad[i] *= invN
	}

	if err := e.model.Backward(users, items, grad); err != nil {
		return 0, err
	}

	params := e.model.Parameters()
	e.optimizer.Step(params)
	e.optimizer.Zero(params)

	return meanLoss, nil
}

// Predict returns the ids of the k items with the highest predicted affinity
// for the user, best first. The model runs in inference mode for the
// duration and is returned to training mode afterwards.
//
// k larger than the item count returns every item ranked; k <= 0 returns an
// empty result. Ties are broken arbitrarily.
func (e *Engine) Predict(ctx context.Context, user core.ID, k int) ([]core.ID, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	e.model.Eval()
	defer e.model.Train()

	scores, err := e.model.ScoreItems(user)
	if err != nil {
		return nil, err
	}

	if k <= 0 {
		return nil, nil
	}
	if k > len(scores) {
		k = len(scores)
	}

	ranked := make([]core.ID, len(scores))
	for i := range ranked {
		ranked[i] = core.ID(i)
	}
	sort.Slice(ranked, func(a, b int) bool {
		return scores[ranked[a]] > scores[ranked[b]]
	})

	return ranked[:k], nil
}

// splitBatch unpacks the dense batch layout into aligned slices. The batch
// must already be validated.
func splitBatch(batch *core.Batch) (users, items []core.ID, ratings, preferences []float32) {
	n := batch.Len()
	users = make([]core.ID, n)
	items = make([]core.ID, n)
	ratings = make([]float32, n)
	for i, row := range batch.Features {
		users[i] = core.ID(row[0])
		items[i] = core.ID(row[1])
		ratings[i] = row[2]
	}
	return users, items, ratings, batch.Preferences
}
