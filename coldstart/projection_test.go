package coldstart

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengTzer/cf-step/core"
)

func TestNewProjection_Deterministic(t *testing.T) {
	first, err := NewProjection(16, 4, 42)
	require.NoError(t, err)
	second, err := NewProjection(16, 4, 42)
	require.NoError(t, err)

	assert.Equal(t, first.matrix, second.matrix, "same seed should give the same matrix")

	other, err := NewProjection(16, 4, 43)
	require.NoError(t, err)
	assert.NotEqual(t, first.matrix, other.matrix, "different seeds should differ")
}

func TestNewProjection_InvalidDimensions(t *testing.T) {
	_, err := NewProjection(0, 4, 1)
	assert.Error(t, err)

	_, err = NewProjection(16, -1, 1)
	assert.Error(t, err)
}

func TestProjection_Apply(t *testing.T) {
	projection, err := NewProjection(8, 3, 7)
	require.NoError(t, err)

	input := []float32{1, 0, -1, 0.5, 2, -0.5, 0, 1}
	out, err := projection.Apply(input)
	require.NoError(t, err)
	assert.Len(t, out, 3)

	// Linear map: same input gives the same output
	again, err := projection.Apply(input)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestProjection_Apply_WrongWidth(t *testing.T) {
	projection, err := NewProjection(8, 3, 7)
	require.NoError(t, err)

	_, err = projection.Apply([]float32{1, 2, 3})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		expected []float32
	}{
		{
			name:     "unit vector remains unchanged",
			input:    []float32{1.0, 0.0, 0.0},
			expected: []float32{1.0, 0.0, 0.0},
		},
		{
			name:     "scale non-unit vector",
			input:    []float32{3.0, 4.0},
			expected: []float32{0.6, 0.8},
		},
		{
			name:     "negative values",
			input:    []float32{-1.0, 1.0},
			expected: []float32{-1.0 / float32(math.Sqrt(2)), 1.0 / float32(math.Sqrt(2))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeVector(tt.input)
			require.Len(t, result, len(tt.expected))

			for i := range result {
				assert.InDelta(t, tt.expected[i], result[i], 1e-6, "element %d", i)
			}

			var magnitude float32
			for _, v := range result {
				magnitude += v * v
			}
			assert.InDelta(t, 1.0, math.Sqrt(float64(magnitude)), 1e-6, "magnitude should be 1.0")
		})
	}
}

func TestNormalizeVector_ZeroVector(t *testing.T) {
	result := NormalizeVector([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, result)

	assert.Empty(t, NormalizeVector(nil))
}

func TestScaleVector(t *testing.T) {
	result := ScaleVector([]float32{1, -2, 0.5}, 0.1)

	expected := []float32{0.1, -0.2, 0.05}
	for i := range expected {
		assert.InDelta(t, expected[i], result[i], 1e-7, "element %d", i)
	}
}
