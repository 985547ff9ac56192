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


package cfstep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ZhengTzer/cf-step/coldstart"
	"github.com/ZhengTzer/cf-step/core"
	"github.com/ZhengTzer/cf-step/loss"
	"github.com/ZhengTzer/cf-step/model"
	"github.com/ZhengTzer/cf-step/optim"
	"github.com/ZhengTzer/cf-step/storage"
	"github.com/ZhengTzer/cf-step/storage/badger"
	"github.com/ZhengTzer/cf-step/stream"
	"github.com/ZhengTzer/cf-step/train"
)

// ErrGeometryRequired is returned by Open when no model geometry is provided.
var ErrGeometryRequired = errors.New("model geometry required: pass WithModelConfig")

// Recommender owns the storage backend, the embedding model and the training
// engine, wired together for incremental collaborative filtering.
type Recommender struct {
	backend         *badger.Backend
	interactionRepo storage.InteractionRepository
	itemRepo        storage.ItemRepository
	snapshotRepo    storage.SnapshotRepository
	model           *model.MF
	engine          *train.Engine
	initStd         float32
	batchSize       int
	logger          *slog.Logger
}

// RecommenderOption configures a Recommender.
type RecommenderOption func(*recommenderOptions)

type recommenderOptions struct {
	modelConfig model.MFConfig
	objective   loss.Objective
	optimizer   optim.Optimizer
	confidence  train.ConfidenceFunc
	monitor     train.FitMonitor
	device      string
	batchSize   int
	inMemory    bool
	logger      *slog.Logger
}

// WithModelConfig sets the model geometry and initialization. Users and Items
// must be positive; Open fails without them.
func WithModelConfig(cfg model.MFConfig) RecommenderOption {
	return func(o *recommenderOptions) {
		o.modelConfig = cfg
	}
}

// WithObjective sets the training objective.
// Default is mean squared error.
func WithObjective(objective loss.Objective) RecommenderOption {
	return func(o *recommenderOptions) {
		o.objective = objective
	}
}

// WithOptimizer sets the parameter update rule.
// Default is SGD with its default configuration.
func WithOptimizer(optimizer optim.Optimizer) RecommenderOption {
	return func(o *recommenderOptions) {
		o.optimizer = optimizer
	}
}

// WithConfidence sets the confidence function applied to raw ratings during
// training.
func WithConfidence(fn train.ConfidenceFunc) RecommenderOption {
	return func(o *recommenderOptions) {
		o.confidence = fn
	}
}

// WithMonitor sets a progress monitor for Retrain runs.
func WithMonitor(monitor train.FitMonitor) RecommenderOption {
	return func(o *recommenderOptions) {
		o.monitor = monitor
	}
}

// WithDevice selects the compute device by name.
func WithDevice(name string) RecommenderOption {
	return func(o *recommenderOptions) {
		o.device = name
	}
}

// WithBatchSize sets the batch size used when retraining from the log.
// Default is train.DefaultBatchSize.
func WithBatchSize(size int) RecommenderOption {
	return func(o *recommenderOptions) {
		if size > 0 {
			o.batchSize = size
		}
	}
}

// WithInMemory opens the backend without touching disk. Intended for tests
// and demos.
func WithInMemory() RecommenderOption {
	return func(o *recommenderOptions) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) RecommenderOption {
	return func(o *recommenderOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Open creates a Recommender backed by a badger database at path.
func Open(path string, opts ...RecommenderOption) (*Recommender, error) {
	// Apply options
	options := &recommenderOptions{
		batchSize: train.DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.modelConfig.Users <= 0 || options.modelConfig.Items <= 0 {
		return nil, ErrGeometryRequired
	}
	if options.objective == nil {
		options.objective = loss.NewMSE()
	}
	if options.optimizer == nil {
		options.optimizer = optim.NewSGD(optim.DefaultSGDConfig())
	}

	mf, err := model.NewMF(options.modelConfig)
	if err != nil {
		return nil, err
	}

	engineOpts := []train.Option{train.WithLogger(options.logger)}
	if options.confidence != nil {
		engineOpts = append(engineOpts, train.WithConfidence(options.confidence))
	}
	if options.monitor != nil {
		engineOpts = append(engineOpts, train.WithMonitor(options.monitor))
	}
	if options.device != "" {
		engineOpts = append(engineOpts, train.WithDevice(options.device))
	}

	engine, err := train.New(mf, options.objective, options.optimizer, engineOpts...)
	if err != nil {
		return nil, err
	}

	// Open backend
	backend, err := badger.OpenBackend(path, options.inMemory)
	if err != nil {
		engine.Close()
		return nil, err
	}

	// Create interaction repository
	interactionRepo, err := badger.NewInteractionRepository(backend)
	if err != nil {
		backend.Close()
		engine.Close()
		return nil, err
	}

	// Create item repository
	itemRepo, err := badger.NewItemRepository(backend)
	if err != nil {
		interactionRepo.Close()
		backend.Close()
		engine.Close()
		return nil, err
	}

	// Create snapshot repository
	snapshotRepo, err := badger.NewSnapshotRepository(backend)
	if err != nil {
		itemRepo.Close()
		interactionRepo.Close()
		backend.Close()
		engine.Close()
		return nil, err
	}

	return &Recommender{
		backend:         backend,
		interactionRepo: interactionRepo,
		itemRepo:        itemRepo,
		snapshotRepo:    snapshotRepo,
		model:           mf,
		engine:          engine,
		initStd:         float32(options.modelConfig.InitStd),
		batchSize:       options.batchSize,
		logger:          options.logger,
	}, nil
}

// Close releases the engine, repositories and backend.
func (r *Recommender) Close() error {
	// Close engine first
	if err := r.engine.Close(); err != nil {
		r.logger.Error("error closing engine", "err", err)
	}

	// Close repositories
	if err := r.snapshotRepo.Close(); err != nil {
		r.logger.Error("error closing snapshot repository", "err", err)
		return err
	}
	if err := r.itemRepo.Close(); err != nil {
		r.logger.Error("error closing item repository", "err", err)
		return err
	}
	if err := r.interactionRepo.Close(); err != nil {
		r.logger.Error("error closing interaction repository", "err", err)
		return err
	}

	// Close backend
	if err := r.backend.Close(); err != nil {
		r.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Observe validates events, appends them to the interaction log and applies
// each one to the model. Events with ids outside the model's tables stay in
// the log, where the next Retrain sees them; any other training failure stops
// the call.
func (r *Recommender) Observe(ctx context.Context, interactions ...*core.Interaction) error {
	for _, interaction := range interactions {
		if err := core.ValidateInteraction(interaction); err != nil {
			return err
		}
	}
	if len(interactions) == 0 {
		return nil
	}

	added, err := r.interactionRepo.AddInteractions(ctx, interactions...)
	if err != nil {
		return err
	}

	for _, interaction := range added {
		_, err := r.engine.Step(ctx,
			[]core.ID{interaction.User}, []core.ID{interaction.Item},
			[]float32{interaction.Rating}, []float32{interaction.Preference})
		if err != nil {
			if errors.Is(err, core.ErrUnknownUser) || errors.Is(err, core.ErrUnknownItem) {
				r.logger.Warn("event outside model tables, kept for retrain",
					"id", interaction.Id, "err", err)
				continue
			}
			return err
		}
	}

	return nil
}

// Retrain fits the model over the whole interaction log.
func (r *Recommender) Retrain(ctx context.Context, epochs int) error {
	dataset, err := train.NewRepositoryDataset(r.interactionRepo, r.batchSize)
	if err != nil {
		return err
	}
	return r.engine.Fit(ctx, dataset, epochs)
}

// TopK returns the k highest scoring catalog items for a user. When tags are
// given, only items carrying at least one of them are considered. Ranked
// items without catalog metadata are returned with only their id set.
func (r *Recommender) TopK(ctx context.Context, user core.ID, k int, tags ...string) ([]*core.Item, error) {
	if k <= 0 {
		return []*core.Item{}, nil
	}

	limit := k
	if len(tags) > 0 {
		// Rank everything, then filter down to the tagged candidates
		limit = r.model.Items().Len()
	}

	ids, err := r.engine.Predict(ctx, user, limit)
	if err != nil {
		return nil, err
	}

	var allowed map[core.ID]bool
	if len(tags) > 0 {
		allowed = make(map[core.ID]bool)
		for _, tag := range tags {
			tagged, err := r.itemRepo.FindItemsByTag(ctx, tag)
			if err != nil {
				return nil, err
			}
			for _, item := range tagged {
				allowed[item.Id] = true
			}
		}
	}

	catalog, err := r.itemRepo.GetItems(ctx, ids...)
	if err != nil {
		return nil, err
	}
	byID := make(map[core.ID]*core.Item, len(catalog))
	for _, item := range catalog {
		byID[item.Id] = item
	}

	result := make([]*core.Item, 0, k)
	for _, id := range ids {
		if allowed != nil && !allowed[id] {
			continue
		}
		item := byID[id]
		if item == nil {
			item = &core.Item{Id: id}
		}
		result = append(result, item)
		if len(result) == k {
			break
		}
	}
	return result, nil
}

// Checkpoint persists the current model state and returns the stored snapshot
// with its assigned version.
func (r *Recommender) Checkpoint(ctx context.Context) (*core.Snapshot, error) {
	return r.snapshotRepo.SaveSnapshot(ctx, r.engine.Snapshot())
}

// RestoreLatest loads the most recent snapshot into the model. It fails with
// storage.ErrNotFound when no snapshot has been taken.
func (r *Recommender) RestoreLatest(ctx context.Context) error {
	latest, err := r.snapshotRepo.LatestSnapshot(ctx)
	if err != nil {
		return err
	}
	if latest == nil {
		return fmt.Errorf("%w: no snapshot", storage.ErrNotFound)
	}
	return r.engine.Restore(latest)
}

// Engine returns the training engine.
func (r *Recommender) Engine() *train.Engine {
	return r.engine
}

// Model returns the embedding model.
func (r *Recommender) Model() *model.MF {
	return r.model
}

// Interactions returns the interaction log repository.
func (r *Recommender) Interactions() storage.InteractionRepository {
	return r.interactionRepo
}

// Catalog returns the item metadata repository.
func (r *Recommender) Catalog() storage.ItemRepository {
	return r.itemRepo
}

// Snapshots returns the snapshot repository.
func (r *Recommender) Snapshots() storage.SnapshotRepository {
	return r.snapshotRepo
}

// NewConsumer creates a streaming consumer bound to this recommender's engine,
// interaction log and snapshot repository.
func (r *Recommender) NewConsumer(opts ...stream.Option) (*stream.Consumer, error) {
	defaults := []stream.Option{
		stream.WithSnapshots(r.snapshotRepo),
		stream.WithLogger(r.logger),
	}
	return stream.NewConsumer(r.engine, r.interactionRepo, append(defaults, opts...)...)
}

// NewBootstrapper creates a cold-start bootstrapper writing into this
// recommender's item table.
func (r *Recommender) NewBootstrapper(embedder coldstart.Embedder, opts ...coldstart.Option) (*coldstart.Bootstrapper, error) {
	defaults := []coldstart.Option{coldstart.WithLogger(r.logger)}
	if r.initStd > 0 {
		defaults = append(defaults, coldstart.WithScale(r.initStd))
	}
	return coldstart.NewBootstrapper(r.model, embedder, append(defaults, opts...)...)
}
