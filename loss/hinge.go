package loss

// Hinge is the margin objective for targets in {-1, +1}:
//
//	loss_i = max(0, 1 - target_i*pred_i)
//	grad_i = -target_i when the margin is violated, else 0
//
// Hinge deliberately does not implement Weighted; engines treat it as a
// plain objective and discard confidence weights.
type Hinge struct{}

var _ Objective = (*Hinge)(nil)

// NewHinge creates a hinge objective.
func NewHinge() *Hinge {
	return &Hinge{}
}

// Loss returns the per-example hinge loss.
func (h *Hinge) Loss(pred, target []float32) []float32 {
	out := make([]float32, len(pred))
	for i := range pred {
		if margin := 1 - target[i]*pred[i]; margin > 0 {
			out[i] = margin
		}
	}
	return out
}

// Grad returns the per-example gradient dL/dpred.
func (h *Hinge) Grad(pred, target []float32) []float32 {
	out := make([]float32, len(pred))
	for i := range pred {
		if 1-target[i]*pred[i] > 0 {
			out[i] = -target[i]
		}
	}
	return out
}
