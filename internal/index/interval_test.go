package index

import (
	"errors"
	"testing"
)

func TestIndex_InsertAndQuery(t *testing.T) {
	ix := New()

	if err := ix.Insert("a", 0, 10); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := ix.Insert("b", 20, 30); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := ix.Insert("c", 12, 18); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	ids := ix.Query(0, 100)
	if len(ids) != 3 {
		t.Fatalf("Expected 3 spans, got %d", len(ids))
	}
	// Ordered by start regardless of insertion order
	if ids[0] != "a" || ids[1] != "c" || ids[2] != "b" {
		t.Errorf("Expected order a,c,b, got %v", ids)
	}

	ids = ix.Query(15, 25)
	if len(ids) != 2 || ids[0] != "c" || ids[1] != "b" {
		t.Errorf("Expected c,b intersecting [15,25), got %v", ids)
	}

	// Half-open: a span ending at 10 does not intersect [10, 12)
	if ids := ix.Query(10, 12); len(ids) != 0 {
		t.Errorf("Expected no spans in gap, got %v", ids)
	}
}

func TestIndex_OverlapError(t *testing.T) {
	ix := New()
	if err := ix.Insert("a", 5, 15); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	err := ix.Insert("b", 10, 20)
	var overlap *OverlapError
	if !errors.As(err, &overlap) {
		t.Fatalf("Expected OverlapError, got %v", err)
	}
	if overlap.OtherID != "a" {
		t.Errorf("Expected conflict with a, got %s", overlap.OtherID)
	}

	// Same-id overlap is an update, not an error
	if err := ix.Insert("a", 10, 20); err != nil {
		t.Fatalf("Expected same-id update to succeed, got %v", err)
	}
	s, ok := ix.Get("a")
	if !ok || s.Start != 10 || s.End != 20 {
		t.Errorf("Expected a updated to [10,20), got %+v", s)
	}
}

func TestIndex_InsertInvalidSpan(t *testing.T) {
	ix := New()
	if err := ix.Insert("a", 10, 10); err == nil {
		t.Error("Expected error for empty span")
	}
	if err := ix.Insert("a", -1, 5); err == nil {
		t.Error("Expected error for negative start")
	}
}

func TestIndex_ShiftAfterInsertion(t *testing.T) {
	ix := New()
	_ = ix.Insert("a", 0, 10)
	_ = ix.Insert("b", 20, 30)

	// Insert 5 bytes at offset 12: strictly between the spans
	dirty := ix.Shift(12, 0, 5)
	if len(dirty) != 0 {
		t.Fatalf("Expected no dirty spans, got %v", dirty)
	}

	a, _ := ix.Get("a")
	if a.Start != 0 || a.End != 10 {
		t.Errorf("Expected a untouched, got %+v", a)
	}
	b, _ := ix.Get("b")
	if b.Start != 25 || b.End != 35 {
		t.Errorf("Expected b shifted to [25,35), got %+v", b)
	}
}

func TestIndex_ShiftDeletion(t *testing.T) {
	ix := New()
	_ = ix.Insert("a", 0, 10)
	_ = ix.Insert("b", 20, 30)

	// Delete [12, 16)
	dirty := ix.Shift(12, 4, 0)
	if len(dirty) != 0 {
		t.Fatalf("Expected no dirty spans, got %v", dirty)
	}
	b, _ := ix.Get("b")
	if b.Start != 16 || b.End != 26 {
		t.Errorf("Expected b shifted to [16,26), got %+v", b)
	}
}

func TestIndex_ShiftStraddlingMarksDirty(t *testing.T) {
	ix := New()
	_ = ix.Insert("a", 0, 20)
	_ = ix.Insert("b", 25, 40)

	// Edit [10, 30): straddles the end of a and the start of b
	dirty := ix.Shift(10, 20, 4)
	if len(dirty) != 2 {
		t.Fatalf("Expected 2 dirty spans, got %v", dirty)
	}

	a, _ := ix.Get("a")
	if !a.Dirty {
		t.Error("Expected a dirty")
	}
	// Truncated to the part before the edit, never stretched across it
	if a.Start != 0 || a.End != 10 {
		t.Errorf("Expected a truncated to [0,10), got %+v", a)
	}

	b, _ := ix.Get("b")
	if !b.Dirty {
		t.Error("Expected b dirty")
	}
	if b.Start != 14 || b.End != 24 {
		t.Errorf("Expected b tail at [14,24), got %+v", b)
	}
}

func TestIndex_ShiftSpanInsideEditCollapses(t *testing.T) {
	ix := New()
	_ = ix.Insert("a", 10, 20)

	dirty := ix.Shift(5, 25, 2)
	if len(dirty) != 1 || dirty[0] != "a" {
		t.Fatalf("Expected a dirty, got %v", dirty)
	}
	a, _ := ix.Get("a")
	if a.Start != a.End {
		t.Errorf("Expected collapsed span, got %+v", a)
	}
}

func TestIndex_RemoveAbsentIsNoOp(t *testing.T) {
	ix := New()
	_ = ix.Insert("a", 0, 10)

	ix.Remove("ghost")
	if ix.Len() != 1 {
		t.Errorf("Expected 1 span, got %d", ix.Len())
	}

	ix.Remove("a")
	if ix.Len() != 0 {
		t.Errorf("Expected empty index, got %d", ix.Len())
	}
	if ids := ix.Query(0, 100); len(ids) != 0 {
		t.Errorf("Expected no results after remove, got %v", ids)
	}
}

func TestIndex_DirtySpans(t *testing.T) {
	ix := New()
	_ = ix.Insert("a", 0, 30)
	_ = ix.Insert("b", 32, 60)

	ix.Shift(25, 10, 0)
	spans := ix.DirtySpans()
	if len(spans) != 2 {
		t.Fatalf("Expected both spans dirty, got %d", len(spans))
	}
	if spans[0].ID != "a" || spans[1].ID != "b" {
		t.Errorf("Expected dirty spans ordered a,b, got %v", spans)
	}
}
