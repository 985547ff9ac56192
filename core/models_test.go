package core

import (
	"testing"
)

func TestBatch_Len(t *testing.T) {
	tests := []struct {
		name  string
		batch *Batch
		want  int
	}{
		{
			name: "three examples",
			batch: &Batch{
				Features:    [][]float32{{0, 1, 5}, {1, 0, 3}, {2, 2, 1}},
				Preferences: []float32{1, 0, 1},
			},
			want: 3,
		},
		{
			name:  "empty batch",
			batch: &Batch{},
			want:  0,
		},
		{
			name:  "nil batch",
			batch: nil,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.batch.Len()
			if got != tt.want {
				t.Errorf("Batch.Len() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestItem_HasTag(t *testing.T) {
	tests := []struct {
		name string
		item Item
		tag  string
		want bool
	}{
		{
			name: "present tag",
			item: Item{Title: "Heat", Tags: []string{"crime", "thriller"}},
			tag:  "crime",
			want: true,
		},
		{
			name: "absent tag",
			item: Item{Title: "Heat", Tags: []string{"crime", "thriller"}},
			tag:  "comedy",
			want: false,
		},
		{
			name: "no tags",
			item: Item{Title: "Heat"},
			tag:  "crime",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.item.HasTag(tt.tag)
			if got != tt.want {
				t.Errorf("Item.HasTag(%q) = %v, want %v", tt.tag, got, tt.want)
			}
		})
	}
}
