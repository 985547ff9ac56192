package core

import (
	"errors"
	"testing"
)

func TestNewEmbeddingTable(t *testing.T) {
	tests := []struct {
		name    string
		rows    int
		dim     int
		wantErr error
	}{
		{
			name: "valid table",
			rows: 4,
			dim:  8,
		},
		{
			name:    "zero rows",
			rows:    0,
			dim:     8,
			wantErr: ErrMissingEmbedding,
		},
		{
			name:    "negative rows",
			rows:    -1,
			dim:     8,
			wantErr: ErrMissingEmbedding,
		},
		{
			name:    "zero dimension",
			rows:    4,
			dim:     0,
			wantErr: ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewEmbeddingTable(tt.rows, tt.dim)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NewEmbeddingTable() error = %v, want %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("NewEmbeddingTable() unexpected error: %v", err)
			}
			if table.Len() != tt.rows {
				t.Errorf("Len() = %d, want %d", table.Len(), tt.rows)
			}
			if table.Dim() != tt.dim {
				t.Errorf("Dim() = %d, want %d", table.Dim(), tt.dim)
			}
		})
	}
}

func TestEmbeddingTable_Vector(t *testing.T) {
	table, err := NewEmbeddingTable(3, 2)
	if err != nil {
		t.Fatalf("NewEmbeddingTable() error: %v", err)
	}

	if err := table.SetVector(1, []float32{0.5, -0.25}); err != nil {
		t.Fatalf("SetVector() error: %v", err)
	}

	vec, ok := table.Vector(1)
	if !ok {
		t.Fatal("Vector(1) reported missing row")
	}
	if vec[0] != 0.5 || vec[1] != -0.25 {
		t.Errorf("Vector(1) = %v, want [0.5 -0.25]", vec)
	}

	if _, ok := table.Vector(3); ok {
		t.Error("Vector(3) found a row past the end of the table")
	}
	if _, ok := table.Vector(-1); ok {
		t.Error("Vector(-1) found a row for a negative id")
	}
}

func TestEmbeddingTable_SetVector(t *testing.T) {
	table, err := NewEmbeddingTable(2, 3)
	if err != nil {
		t.Fatalf("NewEmbeddingTable() error: %v", err)
	}

	if err := table.SetVector(5, []float32{1, 2, 3}); err == nil {
		t.Error("SetVector(5) accepted an out-of-range row")
	}

	err = table.SetVector(0, []float32{1, 2})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("SetVector() with short vector error = %v, want ErrDimensionMismatch", err)
	}

	// SetVector copies, later mutation of the argument must not leak in.
	src := []float32{1, 2, 3}
	if err := table.SetVector(0, src); err != nil {
		t.Fatalf("SetVector() error: %v", err)
	}
	src[0] = 99
	vec, _ := table.Vector(0)
	if vec[0] != 1 {
		t.Errorf("SetVector() aliased caller memory, row = %v", vec)
	}
}

func TestEmbeddingTable_Gradients(t *testing.T) {
	table, err := NewEmbeddingTable(3, 2)
	if err != nil {
		t.Fatalf("NewEmbeddingTable() error: %v", err)
	}

	if !table.AddScaledGrad(0, []float32{1, 1}, 2) {
		t.Fatal("AddScaledGrad(0) rejected a valid row")
	}
	if !table.AddScaledGrad(0, []float32{1, 0}, 1) {
		t.Fatal("AddScaledGrad(0) rejected a second accumulation")
	}
	if table.AddScaledGrad(7, []float32{1, 1}, 1) {
		t.Error("AddScaledGrad(7) accepted an out-of-range row")
	}
	if table.AddScaledGrad(1, []float32{1}, 1) {
		t.Error("AddScaledGrad() accepted a short vector")
	}

	var visited int
	table.ForEachGrad(func(id ID, row, grad []float32) {
		visited++
		if id != 0 {
			t.Errorf("ForEachGrad() visited row %d, want only row 0", id)
		}
		if grad[0] != 3 || grad[1] != 2 {
			t.Errorf("accumulated grad = %v, want [3 2]", grad)
		}
	})
	if visited != 1 {
		t.Errorf("ForEachGrad() visited %d rows, want 1", visited)
	}

	table.ZeroGrad()
	visited = 0
	table.ForEachGrad(func(ID, []float32, []float32) { visited++ })
	if visited != 0 {
		t.Errorf("ForEachGrad() after ZeroGrad visited %d rows, want 0", visited)
	}
}

func TestEmbeddingTable_CopyRows(t *testing.T) {
	table, err := NewEmbeddingTable(2, 2)
	if err != nil {
		t.Fatalf("NewEmbeddingTable() error: %v", err)
	}
	if err := table.SetVector(0, []float32{1, 2}); err != nil {
		t.Fatalf("SetVector() error: %v", err)
	}

	rows := table.CopyRows()
	rows[0][0] = 42

	vec, _ := table.Vector(0)
	if vec[0] != 1 {
		t.Errorf("CopyRows() aliased table storage, row = %v", vec)
	}
}

func TestEmbeddingTable_SetRows(t *testing.T) {
	table, err := NewEmbeddingTable(2, 2)
	if err != nil {
		t.Fatalf("NewEmbeddingTable() error: %v", err)
	}

	err = table.SetRows([][]float32{{1, 2}, {3, 4, 5}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("SetRows() with ragged rows error = %v, want ErrDimensionMismatch", err)
	}

	err = table.SetRows(nil)
	if !errors.Is(err, ErrMissingEmbedding) {
		t.Errorf("SetRows(nil) error = %v, want ErrMissingEmbedding", err)
	}

	if err := table.SetRows([][]float32{{1, 2}, {3, 4}, {5, 6}}); err != nil {
		t.Fatalf("SetRows() error: %v", err)
	}
	if table.Len() != 3 {
		t.Errorf("Len() after SetRows = %d, want 3", table.Len())
	}
	vec, _ := table.Vector(2)
	if vec[0] != 5 || vec[1] != 6 {
		t.Errorf("Vector(2) = %v, want [5 6]", vec)
	}
}
