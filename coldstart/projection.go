package coldstart

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ZhengTzer/cf-step/core"
)

// Projection maps text embeddings down to the model's embedding dimension
// with a seeded Gaussian random projection. The same seed always produces
// the same matrix, so bootstrapped rows are reproducible across runs.
type Projection struct {
	in     int
	out    int
	matrix [][]float32 // out rows of in columns
}

// NewProjection builds a projection from in dimensions down to out dimensions.
// Entries are drawn from N(0, 1/in) using the given seed.
func NewProjection(in, out int, seed int64) (*Projection, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("projection dimensions must be positive, got %d -> %d", in, out)
	}

	rng := rand.New(rand.NewSource(seed))
	std := 1 / math.Sqrt(float64(in))

	matrix := make([][]float32, out)
	for i := range matrix {
		row := make([]float32, in)
		for j := range row {
			row[j] = float32(rng.NormFloat64() * std)
		}
		matrix[i] = row
	}

	return &Projection{in: in, out: out, matrix: matrix}, nil
}

// Apply projects v down to the output dimension. Returns a new vector.
func (p *Projection) Apply(v []float32) ([]float32, error) {
	if len(v) != p.in {
		return nil, fmt.Errorf("%w: projection input has %d values, want %d",
			core.ErrDimensionMismatch, len(v), p.in)
	}

	result := make([]float32, p.out)
	for i, row := range p.matrix {
		var sum float32
		for j, w := range row {
			sum += w * v[j]
		}
		result[i] = sum
	}
	return result, nil
}

// NormalizeVector normalizes a vector to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var magnitude float32
	for _, val := range v {
		magnitude += val * val
	}
	magnitude = float32(math.Sqrt(float64(magnitude)))

	// Can't normalize zero vector
	if magnitude == 0 {
		return make([]float32, len(v))
	}

	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}

// ScaleVector multiplies every component by factor. Returns a new vector.
func ScaleVector(v []float32, factor float32) []float32 {
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val * factor
	}
	return result
}
