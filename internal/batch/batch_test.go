package batch

import (
	"fmt"
	"testing"
)

func TestChunk_Empty(t *testing.T) {
	if got := Chunk(nil, 10); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestChunk_SingleChunk(t *testing.T) {
	got := Chunk([]string{"a", "b", "c"}, 10)
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if len(got[0]) != 3 {
		t.Errorf("expected chunk of 3, got %d", len(got[0]))
	}
}

func TestChunk_ExactMultiple(t *testing.T) {
	got := Chunk([]string{"a", "b", "c", "d"}, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	for i, c := range got {
		if len(c) != 2 {
			t.Errorf("chunk %d: expected 2 elements, got %d", i, len(c))
		}
	}
}

func TestChunk_Remainder(t *testing.T) {
	got := Chunk([]string{"a", "b", "c", "d", "e"}, 2)
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if len(got[2]) != 1 || got[2][0] != "e" {
		t.Errorf("expected last chunk [e], got %v", got[2])
	}
}

func TestChunk_InvalidSizeFallsBackToDefault(t *testing.T) {
	ids := make([]string, DefaultSize+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%d", i)
	}

	got := Chunk(ids, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks with default size, got %d", len(got))
	}
	if len(got[0]) != DefaultSize {
		t.Errorf("expected first chunk of %d, got %d", DefaultSize, len(got[0]))
	}
}

func TestChunk_PreservesOrder(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	var flat []string
	for _, c := range Chunk(ids, 2) {
		flat = append(flat, c...)
	}
	for i, id := range ids {
		if flat[i] != id {
			t.Fatalf("expected chunking to preserve order, got %v", flat)
		}
	}
}
