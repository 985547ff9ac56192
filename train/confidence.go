package train

import "math"

// ConfidenceFunc maps raw ratings to per-example confidence weights. The
// engine calls it fresh on every update; implementations must be pure and
// must return one weight per rating.
type ConfidenceFunc func(ratings []float32) []float32

// ConstantConfidence weights every example by c. ConstantConfidence(1) is the
// engine default and makes weighted objectives behave exactly like their
// unweighted counterparts.
func ConstantConfidence(c float32) ConfidenceFunc {
	return func(ratings []float32) []float32 {
		out := make([]float32, len(ratings))
		for i := range out {
			out[i] = c
		}
		return out
	}
}

// LinearConfidence implements the linear implicit feedback weighting
// 1 + alpha*rating.
func LinearConfidence(alpha float32) ConfidenceFunc {
	return func(ratings []float32) []float32 {
		out := make([]float32, len(ratings))
		for i, r := range ratings {
			out[i] = 1 + alpha*r
		}
		return out
	}
}

// LogConfidence implements the logarithmic implicit feedback weighting
// 1 + alpha*ln(1 + rating/eps). Non-positive eps falls back to 1e-8.
func LogConfidence(alpha, eps float32) ConfidenceFunc {
	if eps <= 0 {
		eps = 1e-8
	}
	return func(ratings []float32) []float32 {
		out := make([]float32, len(ratings))
		for i, r := range ratings {
			out[i] = 1 + alpha*float32(math.Log1p(float64(r/eps)))
		}
		return out
	}
}
