package core

import "fmt"

// EmbeddingTable holds rows of float32 parameter vectors together with a
// sparse gradient buffer. Rows are addressed by ID starting at 0.
//
// Tables are not safe for concurrent mutation. The training engine runs all
// updates on a single logical thread; readers that race a writer must
// coordinate above this type.
type EmbeddingTable struct {
	dim   int
	rows  [][]float32
	grads map[ID][]float32
}

// NewEmbeddingTable creates a zero-initialized table with the given number of
// rows and dimensionality.
func NewEmbeddingTable(rows, dim int) (*EmbeddingTable, error) {
	if rows <= 0 {
		return nil, fmt.Errorf("%w: %d rows", ErrMissingEmbedding, rows)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrDimensionMismatch, dim)
	}

	backing := make([]float32, rows*dim)
	t := &EmbeddingTable{
		dim:   dim,
		rows:  make([][]float32, rows),
		grads: make(map[ID][]float32),
	}
	for i := range t.rows {
		t.rows[i] = backing[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return t, nil
}

// Len returns the number of rows in the table.
func (t *EmbeddingTable) Len() int {
	return len(t.rows)
}

// Dim returns the dimensionality of every row.
func (t *EmbeddingTable) Dim() int {
	return t.dim
}

// Contains reports whether id addresses a row in the table.
func (t *EmbeddingTable) Contains(id ID) bool {
	return id >= 0 && int(id) < len(t.rows)
}

// Vector returns the live row for id, or false when id is out of range.
// The slice aliases table storage; callers must not mutate it outside the
// optimizer path.
func (t *EmbeddingTable) Vector(id ID) ([]float32, bool) {
	if !t.Contains(id) {
		return nil, false
	}
	return t.rows[id], true
}

// Vectors returns the live backing rows for bulk scoring. The outer and inner
// slices alias table storage.
func (t *EmbeddingTable) Vectors() [][]float32 {
	return t.rows
}

// SetVector overwrites the row for id with a copy of vec.
func (t *EmbeddingTable) SetVector(id ID, vec []float32) error {
	if !t.Contains(id) {
		return fmt.Errorf("embedding row %d out of range [0,%d)", id, len(t.rows))
	}
	if len(vec) != t.dim {
		return fmt.Errorf("%w: got %d values, want %d", ErrDimensionMismatch, len(vec), t.dim)
	}
	copy(t.rows[id], vec)
	return nil
}

// AddScaledGrad accumulates scale*vec into the gradient buffer for id and
// marks the row dirty. It reports false when id is out of range or vec has
// the wrong width, leaving the buffer untouched.
func (t *EmbeddingTable) AddScaledGrad(id ID, vec []float32, scale float32) bool {
	if !t.Contains(id) || len(vec) != t.dim {
		return false
	}

	g, ok := t.grads[id]
	if !ok {
		g = make([]float32, t.dim)
		t.grads[id] = g
	}
	for i, v := range vec {
		g[i] += scale * v
	}
	return true
}

// ForEachGrad calls fn for every row with an accumulated gradient, passing
// the live parameter row and its gradient. Optimizers mutate row in place.
// Iteration order is unspecified; per-row updates are independent.
func (t *EmbeddingTable) ForEachGrad(fn func(id ID, row, grad []float32)) {
	for id, g := range t.grads {
		fn(id, t.rows[id], g)
	}
}

// ZeroGrad discards all accumulated gradients.
func (t *EmbeddingTable) ZeroGrad() {
	clear(t.grads)
}

// CopyRows returns a deep copy of all parameter rows.
func (t *EmbeddingTable) CopyRows() [][]float32 {
	out := make([][]float32, len(t.rows))
	for i, row := range t.rows {
		out[i] = make([]float32, len(row))
		copy(out[i], row)
	}
	return out
}

// SetRows replaces the table contents with a deep copy of rows. Every row
// must match the table dimensionality. Accumulated gradients are discarded.
// The row count may differ from the current one; callers enforcing a fixed
// geometry must check before calling.
func (t *EmbeddingTable) SetRows(rows [][]float32) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: no rows", ErrMissingEmbedding)
	}
	for i, row := range rows {
		if len(row) != t.dim {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrDimensionMismatch, i, len(row), t.dim)
		}
	}

	backing := make([]float32, len(rows)*t.dim)
	next := make([][]float32, len(rows))
	for i, row := range rows {
		next[i] = backing[i*t.dim : (i+1)*t.dim : (i+1)*t.dim]
		copy(next[i], row)
	}
	t.rows = next
	t.grads = make(map[ID][]float32)
	return nil
}
