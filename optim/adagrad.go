package optim

import (
	"math"

	"github.com/ZhengTzer/cf-step/core"
)

// AdaGradConfig contains configuration for the AdaGrad optimizer.
type AdaGradConfig struct {
	// LearningRate is the base step size before per-row scaling.
	// Default: 0.1.
	LearningRate float64

	// Epsilon keeps the denominator away from zero.
	// Default: 1e-8.
	Epsilon float64
}

// DefaultAdaGradConfig returns default AdaGrad configuration.
func DefaultAdaGradConfig() AdaGradConfig {
	return AdaGradConfig{
		LearningRate: 0.1,
		Epsilon:      1e-8,
	}
}

// AdaGrad scales each coordinate's step by the inverse square root of its
// historical squared gradients:
//
//	h += grad^2
//	row -= lr * grad / (sqrt(h) + eps)
//
// Accumulators are allocated lazily per row, so memory tracks the rows that
// actually train rather than the full table.
type AdaGrad struct {
	config AdaGradConfig
	accum  map[*core.EmbeddingTable]map[core.ID][]float32
}

var _ Optimizer = (*AdaGrad)(nil)

// NewAdaGrad creates an AdaGrad optimizer with the given configuration.
func NewAdaGrad(cfg AdaGradConfig) *AdaGrad {
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.1
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 1e-8
	}
	return &AdaGrad{
		config: cfg,
		accum:  make(map[*core.EmbeddingTable]map[core.ID][]float32),
	}
}

// Step applies accumulated gradients to every dirty row.
func (a *AdaGrad) Step(params []*core.EmbeddingTable) {
	lr := a.config.LearningRate
	eps := a.config.Epsilon

	for _, table := range params {
		rows := a.accum[table]
		if rows == nil {
			rows = make(map[core.ID][]float32)
			a.accum[table] = rows
		}

		table.ForEachGrad(func(id core.ID, row, grad []float32) {
			h := rows[id]
			if h == nil {
				h = make([]float32, len(row))
				rows[id] = h
			}
			for j := range row {
				g := float64(grad[j])
				h[j] += float32(g * g)
				row[j] -= float32(lr * g / (math.Sqrt(float64(h[j])) + eps))
			}
		})
	}
}

// Zero discards accumulated gradients. Historical accumulators are kept;
// they are the optimizer's state, not the batch's.
func (a *AdaGrad) Zero(params []*core.EmbeddingTable) {
	zeroAll(params)
}
