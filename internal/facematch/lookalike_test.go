package facematch

import "testing"

func TestLookalikeIndex_Nearest(t *testing.T) {
	idx := NewLookalikeIndex()
	idx.Build([]KnownIdentity{
		{ID: "far", DisplayName: "Far", Embedding: []float32{10, 10}},
		{ID: "near", DisplayName: "Near", Embedding: []float32{0.1, 0}},
		{ID: "mid", DisplayName: "Mid", Embedding: []float32{1, 0}},
	})

	if idx.Len() != 3 {
		t.Fatalf("expected 3 indexed entries, got %d", idx.Len())
	}

	result := idx.Nearest([]float32{0, 0}, 2)
	if len(result) != 2 {
		t.Fatalf("expected 2 results, got %d", len(result))
	}
	if result[0].ID != "near" {
		t.Errorf("expected closest 'near', got %q", result[0].ID)
	}
	if result[1].ID != "mid" {
		t.Errorf("expected second 'mid', got %q", result[1].ID)
	}
	if result[0].Distance > result[1].Distance {
		t.Error("results must be ordered by distance")
	}
}

func TestLookalikeIndex_SkipsMismatchedDimensions(t *testing.T) {
	idx := NewLookalikeIndex()
	idx.Build([]KnownIdentity{
		{ID: "a", Embedding: []float32{0, 0}},
		{ID: "b", Embedding: []float32{0, 0, 0}},
		{ID: "c", Embedding: nil},
	})

	if idx.Len() != 1 {
		t.Errorf("expected 1 indexed entry, got %d", idx.Len())
	}
	if got := idx.Nearest([]float32{0, 0, 0}, 1); got != nil {
		t.Errorf("expected nil for mismatched query dimension, got %+v", got)
	}
}

func TestLookalikeIndex_Empty(t *testing.T) {
	idx := NewLookalikeIndex()
	idx.Build(nil)

	if idx.Len() != 0 {
		t.Errorf("expected empty index, got %d", idx.Len())
	}
	if got := idx.Nearest([]float32{0, 0}, 3); got != nil {
		t.Errorf("expected nil from empty index, got %+v", got)
	}
}
