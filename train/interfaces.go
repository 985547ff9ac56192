package train

import (
	"context"

	"github.com/ZhengTzer/cf-step/compute"
	"github.com/ZhengTzer/cf-step/core"
)

// Model is the parametric surface the engine trains: two embedding tables, a
// forward pass, and a backward pass that accumulates gradients onto the
// tables. model.MF is the stock implementation.
type Model interface {
	// Score computes the predicted affinity for aligned (user, item) pairs.
	Score(users, items []core.ID) ([]float32, error)

	// ScoreItems computes the predicted affinity between one user and every
	// item row.
	ScoreItems(user core.ID) ([]float32, error)

	// Backward accumulates parameter gradients given dL/dscore per example.
	// It must fail when the model is in inference mode.
	Backward(users, items []core.ID, outGrad []float32) error

	// Users returns the user embedding table.
	Users() *core.EmbeddingTable

	// Items returns the item embedding table.
	Items() *core.EmbeddingTable

	// Parameters returns all trainable tables in a stable order.
	Parameters() []*core.EmbeddingTable

	// Train switches the model to training mode.
	Train()

	// Eval switches the model to inference mode.
	Eval()

	// Bind attaches the model to a compute device.
	Bind(dev *compute.Device)
}

// BatchTrainer is the offline training capability.
type BatchTrainer interface {
	Fit(ctx context.Context, dataset Dataset, epochs int) error
}

// IncrementalTrainer is the streaming update capability.
type IncrementalTrainer interface {
	Step(ctx context.Context, users, items []core.ID, ratings, preferences []float32) (float32, error)
}

// Recommender is the top-k prediction capability.
type Recommender interface {
	Predict(ctx context.Context, user core.ID, k int) ([]core.ID, error)
}

// Checkpointer exports and restores model parameters in memory.
type Checkpointer interface {
	Snapshot() *core.Snapshot
	Restore(snapshot *core.Snapshot) error
}
