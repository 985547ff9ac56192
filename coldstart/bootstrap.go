package coldstart

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ZhengTzer/cf-step/core"
)

const (
	// DefaultBatchSize is the number of items embedded per request.
	DefaultBatchSize = 32

	// DefaultScale is the norm bootstrapped rows are scaled to. It matches
	// the spread of freshly initialized embedding rows.
	DefaultScale float32 = 0.1

	// DefaultProjectionSeed seeds the random projection matrix.
	DefaultProjectionSeed int64 = 1

	// DefaultMaxAttempts is the number of embedding attempts per batch.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the base delay between embedding retries.
	DefaultBaseDelay = 500 * time.Millisecond
)

// Model is the part of the embedding model a Bootstrapper writes to.
// model.MF satisfies it.
type Model interface {
	// Items returns the item embedding table.
	Items() *core.EmbeddingTable

	// Dim returns the embedding dimensionality.
	Dim() int
}

// Bootstrapper seeds embedding rows for items that have no interactions yet.
// It embeds catalog text, projects the result down to the model dimension
// and writes the normalized, scaled row into the item table.
type Bootstrapper struct {
	model          Model
	embedder       Embedder
	projection     *Projection
	projectionSeed int64
	scale          float32
	batchSize      int
	maxAttempts    int
	baseDelay      time.Duration
	logger         *slog.Logger
}

// Option configures a Bootstrapper.
type Option func(*Bootstrapper) error

// WithBatchSize sets how many items are embedded per request.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(b *Bootstrapper) error {
		if size < 1 {
			size = DefaultBatchSize
		}
		b.batchSize = size
		return nil
	}
}

// WithScale sets the norm bootstrapped rows are scaled to. Pass the model's
// init standard deviation so bootstrapped rows match trained ones in
// magnitude. Default is DefaultScale.
func WithScale(scale float32) Option {
	return func(b *Bootstrapper) error {
		if scale <= 0 {
			scale = DefaultScale
		}
		b.scale = scale
		return nil
	}
}

// WithProjectionSeed seeds the random projection matrix.
// Default is DefaultProjectionSeed.
func WithProjectionSeed(seed int64) Option {
	return func(b *Bootstrapper) error {
		b.projectionSeed = seed
		return nil
	}
}

// WithRetry sets the retry policy for embedding requests.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(b *Bootstrapper) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		b.maxAttempts = maxAttempts
		b.baseDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bootstrapper) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBootstrapper creates a new cold-start bootstrapper.
func NewBootstrapper(model Model, embedder Embedder, opts ...Option) (*Bootstrapper, error) {
	if model == nil {
		return nil, ErrModelRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	b := &Bootstrapper{
		model:          model,
		embedder:       embedder,
		projectionSeed: DefaultProjectionSeed,
		scale:          DefaultScale,
		batchSize:      DefaultBatchSize,
		maxAttempts:    DefaultMaxAttempts,
		baseDelay:      DefaultBaseDelay,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// Bootstrap writes embedding rows for the given catalog items. Every item is
// validated and its id checked against the item table before any row is
// written; an out of range id fails the whole call with ErrUnknownItem.
// Items are embedded in batches, so an embedding failure partway through
// leaves rows from earlier batches in place.
func (b *Bootstrapper) Bootstrap(ctx context.Context, items ...*core.Item) error {
	table := b.model.Items()
	for _, item := range items {
		if err := core.ValidateItem(item); err != nil {
			return err
		}
		if !table.Contains(item.Id) {
			return fmt.Errorf("%w: id %d outside item table [0,%d)",
				core.ErrUnknownItem, item.Id, table.Len())
		}
	}

	for start := 0; start < len(items); start += b.batchSize {
		end := start + b.batchSize
		if end > len(items) {
			end = len(items)
		}
		if err := b.bootstrapBatch(ctx, items[start:end]); err != nil {
			return err
		}
	}

	return nil
}

func (b *Bootstrapper) bootstrapBatch(ctx context.Context, items []*core.Item) error {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = itemText(item)
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var embedErr error
		vectors, embedErr = b.embedder.EmbedTexts(ctx, texts)
		return embedErr
	}, b.maxAttempts, b.baseDelay)
	if err != nil {
		return err
	}

	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: got %d vectors for %d texts",
			ErrEmbeddingMismatch, len(vectors), len(texts))
	}

	table := b.model.Items()
	for i, vec := range vectors {
		if len(vec) == 0 {
			return fmt.Errorf("%w: empty vector for item %d",
				ErrEmbeddingMismatch, items[i].Id)
		}

		row, err := b.toRow(vec)
		if err != nil {
			return err
		}
		if err := table.SetVector(items[i].Id, row); err != nil {
			return err
		}
		b.logger.Debug("bootstrapped item", "id", items[i].Id, "title", items[i].Title)
	}

	return nil
}

// toRow maps one text embedding to a model-sized row. The projection is
// built lazily from the first embedding's width.
func (b *Bootstrapper) toRow(vec []float32) ([]float32, error) {
	dim := b.model.Dim()

	projected := vec
	if len(vec) != dim {
		if b.projection == nil {
			p, err := NewProjection(len(vec), dim, b.projectionSeed)
			if err != nil {
				return nil, err
			}
			b.projection = p
		}

		var err error
		projected, err = b.projection.Apply(vec)
		if err != nil {
			return nil, err
		}
	}

	return ScaleVector(NormalizeVector(projected), b.scale), nil
}

// itemText builds the embedding input from catalog metadata.
func itemText(item *core.Item) string {
	if len(item.Tags) == 0 {
		return item.Title
	}
	return item.Title + " " + strings.Join(item.Tags, " ")
}
