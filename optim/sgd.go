package optim

import "github.com/ZhengTzer/cf-step/core"

// SGDConfig contains configuration for stochastic gradient descent.
type SGDConfig struct {
	// LearningRate is the step size.
	// Typical range: 0.001-0.1.
	// Default: 0.01.
	LearningRate float64

	// WeightDecay is the L2 regularization coefficient applied at each step.
	// Default: 0 (disabled).
	WeightDecay float64
}

// DefaultSGDConfig returns default SGD configuration.
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{
		LearningRate: 0.01,
	}
}

// SGD is plain stochastic gradient descent with optional L2 weight decay:
//
//	row -= lr * (grad + decay*row)
type SGD struct {
	config SGDConfig
}

var _ Optimizer = (*SGD)(nil)

// NewSGD creates an SGD optimizer with the given configuration.
func NewSGD(cfg SGDConfig) *SGD {
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.01
	}
	if cfg.WeightDecay < 0 {
		cfg.WeightDecay = 0
	}
	return &SGD{config: cfg}
}

// Step applies accumulated gradients to every dirty row.
func (s *SGD) Step(params []*core.EmbeddingTable) {
	lr := float32(s.config.LearningRate)
	decay := float32(s.config.WeightDecay)

	for _, table := range params {
		table.ForEachGrad(func(_ core.ID, row, grad []float32) {
			for j := range row {
				row[j] -= lr * (grad[j] + decay*row[j])
			}
		})
	}
}

// Zero discards accumulated gradients.
func (s *SGD) Zero(params []*core.EmbeddingTable) {
	zeroAll(params)
}
