package loss

// MSE is the squared error objective, weighted-capable:
//
//	loss_i = w_i * (pred_i - target_i)^2
//	grad_i = w_i * 2 * (pred_i - target_i)
type MSE struct {
	weights []float32
}

var (
	_ Objective = (*MSE)(nil)
	_ Weighted  = (*MSE)(nil)
)

// NewMSE creates an unweighted squared error objective. Weights may be
// injected later through SetWeights.
func NewMSE() *MSE {
	return &MSE{}
}

// SetWeights replaces the per-example weights applied by subsequent calls.
func (m *MSE) SetWeights(weights []float32) {
	m.weights = weights
}

// Loss returns the per-example weighted squared error.
func (m *MSE) Loss(pred, target []float32) []float32 {
	out := make([]float32, len(pred))
	for i := range pred {
		d := pred[i] - target[i]
		out[i] = weightAt(m.weights, i) * d * d
	}
	return out
}

// Grad returns the per-example gradient dL/dpred.
func (m *MSE) Grad(pred, target []float32) []float32 {
	out := make([]float32, len(pred))
	for i := range pred {
		out[i] = weightAt(m.weights, i) * 2 * (pred[i] - target[i])
	}
	return out
}
