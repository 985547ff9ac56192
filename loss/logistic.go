package loss

import "math"

// Logistic is binary cross-entropy on raw scores (logits), weighted-capable.
// Targets are expected in [0,1]. The loss uses the numerically stable form
//
//	loss_i = w_i * (max(p,0) - p*t + log(1+exp(-|p|)))
//	grad_i = w_i * (sigmoid(p) - t)
type Logistic struct {
	weights []float32
}

var (
	_ Objective = (*Logistic)(nil)
	_ Weighted  = (*Logistic)(nil)
)

// NewLogistic creates an unweighted logistic objective. Weights may be
// injected later through SetWeights.
func NewLogistic() *Logistic {
	return &Logistic{}
}

// SetWeights replaces the per-example weights applied by subsequent calls.
func (l *Logistic) SetWeights(weights []float32) {
	l.weights = weights
}

// Loss returns the per-example weighted cross-entropy.
func (l *Logistic) Loss(pred, target []float32) []float32 {
	out := make([]float32, len(pred))
	for i := range pred {
		p := float64(pred[i])
		t := float64(target[i])
		v := math.Max(p, 0) - p*t + math.Log1p(math.Exp(-math.Abs(p)))
		out[i] = weightAt(l.weights, i) * float32(v)
	}
	return out
}

// Grad returns the per-example gradient dL/dpred.
func (l *Logistic) Grad(pred, target []float32) []float32 {
	out := make([]float32, len(pred))
	for i := range pred {
		out[i] = weightAt(l.weights, i) * (sigmoid(pred[i]) - target[i])
	}
	return out
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}
