package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/ZhengTzer/cf-step/core"
	"github.com/ZhengTzer/cf-step/storage"
)

// DefaultSnapshotEvery is the number of applied events between automatic
// snapshots when a snapshot repository is attached.
const DefaultSnapshotEvery = 1000

// Trainer is the part of the training engine a Consumer drives.
// train.Engine satisfies it.
type Trainer interface {
	// Step applies one online update and returns the batch loss.
	Step(ctx context.Context, users, items []core.ID, ratings, preferences []float32) (float32, error)

	// Snapshot captures the current model state.
	Snapshot() *core.Snapshot
}

// Consumer feeds interaction events into a Trainer as they arrive.
// It appends events to the interaction log and applies them to the model
// asynchronously, in publish order.
type Consumer struct {
	trainer       Trainer
	interactions  storage.InteractionRepository
	snapshots     storage.SnapshotRepository
	pool          *ants.Pool
	snapshotEvery int
	applied       int // touched only by the pool's single worker
	logger        *slog.Logger
	wg            sync.WaitGroup
}

// Option configures a Consumer.
type Option func(*Consumer) error

// WithSnapshots attaches a snapshot repository. The consumer saves a model
// snapshot after every WithSnapshotEvery applied events.
func WithSnapshots(snapshots storage.SnapshotRepository) Option {
	return func(c *Consumer) error {
		if snapshots == nil {
			return ErrSnapshotRepositoryRequired
		}
		c.snapshots = snapshots
		return nil
	}
}

// WithSnapshotEvery sets how many applied events pass between automatic
// snapshots. Default is DefaultSnapshotEvery.
func WithSnapshotEvery(every int) Option {
	return func(c *Consumer) error {
		if every < 1 {
			every = DefaultSnapshotEvery
		}
		c.snapshotEvery = every
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewConsumer creates a new event consumer.
func NewConsumer(trainer Trainer, interactions storage.InteractionRepository, opts ...Option) (*Consumer, error) {
	if trainer == nil {
		return nil, ErrTrainerRequired
	}
	if interactions == nil {
		return nil, ErrInteractionRepositoryRequired
	}

	// One worker: events are applied strictly in publish order and Step is
	// never entered concurrently.
	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}

	// Create consumer with defaults
	c := &Consumer{
		trainer:       trainer,
		interactions:  interactions,
		pool:          pool,
		snapshotEvery: DefaultSnapshotEvery,
		logger:        slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(c); optErr != nil {
			c.Release()
			return nil, optErr
		}
	}

	return c, nil
}

// Publish validates events, appends the valid ones to the interaction log and
// queues them for training. Malformed events are logged and dropped before
// they reach the log. Events the trainer rejects, such as ids outside the
// model's tables, stay in the log so the next retrain picks them up once the
// model has grown.
// Errors during async training are logged but do not fail the publish.
func (c *Consumer) Publish(ctx context.Context, events ...*core.Interaction) error {
	valid := make([]*core.Interaction, 0, len(events))
	for _, event := range events {
		if err := core.ValidateInteraction(event); err != nil {
			c.logger.Warn("dropping malformed event", "err", err)
			continue
		}
		valid = append(valid, event)
	}

	if len(valid) == 0 {
		return nil
	}

	// Add to storage
	added, err := c.interactions.AddInteractions(ctx, valid...)
	if err != nil {
		return err
	}

	// Submit for async training
	c.wg.Add(1)
	if err := c.pool.Submit(func() {
		defer c.wg.Done()
		for _, event := range added {
			c.apply(event)
		}
	}); err != nil {
		c.wg.Done()
		return err
	}

	return nil
}

// apply runs on the pool's only worker.
func (c *Consumer) apply(event *core.Interaction) {
	_, err := c.trainer.Step(context.Background(),
		[]core.ID{event.User}, []core.ID{event.Item},
		[]float32{event.Rating}, []float32{event.Preference})
	if err != nil {
		c.logger.Error("skipping event", "id", event.Id, "err", err)
		return
	}

	c.applied++
	if c.snapshots != nil && c.applied%c.snapshotEvery == 0 {
		if _, err := c.snapshots.SaveSnapshot(context.Background(), c.trainer.Snapshot()); err != nil {
			c.logger.Error("error saving snapshot", "err", err)
		}
	}
}

// Flush blocks until every event published so far has been applied or skipped.
func (c *Consumer) Flush() {
	c.wg.Wait()
}

// Release releases the worker pool.
// The consumer should not be used after calling Release.
func (c *Consumer) Release() {
	if c.pool != nil {
		c.pool.Release()
	}
}
