// Package index maintains claim spans over a mutable text buffer and keeps
// them addressable as edits shift offsets around them.
package index

import (
	"fmt"
	"sort"
)

// Span is one indexed claim span. The index holds only (id, offsets); the
// claim store remains the single source of truth for claim content.
type Span struct {
	ID    string
	Start int
	End   int
	Dirty bool // Set when an edit straddled the span; boundaries must be re-derived
}

// OverlapError indicates an insert that would intersect an existing span
// belonging to a different claim. Two independent callers believing they own
// the same span is a caller bug, so this is surfaced, never resolved silently.
type OverlapError struct {
	ID      string
	Start   int
	End     int
	OtherID string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("span [%d,%d) for %s overlaps existing claim %s", e.Start, e.End, e.ID, e.OtherID)
}

// Index is a sorted-slice interval index with binary search. Adequate for
// single-article scale; the contract is independent of the structure.
type Index struct {
	spans []Span // sorted by Start, non-overlapping
	byID  map[string]int
}

// New creates an empty index
func New() *Index {
	return &Index{byID: make(map[string]int)}
}

// Len returns the number of indexed spans
func (ix *Index) Len() int {
	return len(ix.spans)
}

// Insert adds a span, or updates it when the id is already indexed.
// Returns OverlapError when the span intersects a different claim's span.
func (ix *Index) Insert(id string, start, end int) error {
	if start < 0 || end <= start {
		return fmt.Errorf("invalid span [%d,%d) for %s", start, end, id)
	}

	if pos, ok := ix.byID[id]; ok {
		// Same-id insert is an update: remove and re-place
		old := ix.spans[pos]
		ix.removeAt(pos)
		if err := ix.insertNew(id, start, end); err != nil {
			// Restore the previous span so a failed update is not a delete
			_ = ix.insertNew(old.ID, old.Start, old.End)
			if old.Dirty {
				ix.spans[ix.byID[old.ID]].Dirty = true
			}
			return err
		}
		return nil
	}

	return ix.insertNew(id, start, end)
}

func (ix *Index) insertNew(id string, start, end int) error {
	// First span with End > start is the only overlap candidate on the left;
	// the one after it the only candidate on the right.
	pos := sort.Search(len(ix.spans), func(i int) bool {
		return ix.spans[i].End > start
	})
	if pos < len(ix.spans) && ix.spans[pos].Start < end {
		return &OverlapError{ID: id, Start: start, End: end, OtherID: ix.spans[pos].ID}
	}

	ix.spans = append(ix.spans, Span{})
	copy(ix.spans[pos+1:], ix.spans[pos:])
	ix.spans[pos] = Span{ID: id, Start: start, End: end}
	ix.reindexFrom(pos)
	return nil
}

// Remove deletes a span by id. Removing an absent id is a no-op: callers must
// tolerate claims deleted concurrently with a pending edit.
func (ix *Index) Remove(id string) {
	pos, ok := ix.byID[id]
	if !ok {
		return
	}
	ix.removeAt(pos)
}

func (ix *Index) removeAt(pos int) {
	delete(ix.byID, ix.spans[pos].ID)
	ix.spans = append(ix.spans[:pos], ix.spans[pos+1:]...)
	ix.reindexFrom(pos)
}

func (ix *Index) reindexFrom(pos int) {
	for i := pos; i < len(ix.spans); i++ {
		ix.byID[ix.spans[i].ID] = i
	}
}

// Get returns the span for an id
func (ix *Index) Get(id string) (Span, bool) {
	pos, ok := ix.byID[id]
	if !ok {
		return Span{}, false
	}
	return ix.spans[pos], true
}

// Query returns the ids of all spans intersecting [start, end), ordered by
// span start
func (ix *Index) Query(start, end int) []string {
	var ids []string
	pos := sort.Search(len(ix.spans), func(i int) bool {
		return ix.spans[i].End > start
	})
	for ; pos < len(ix.spans) && ix.spans[pos].Start < end; pos++ {
		ids = append(ids, ix.spans[pos].ID)
	}
	return ids
}

// Shift adjusts all spans for an edit replacing oldLen bytes at editStart
// with newLen bytes. Spans entirely before the edit are untouched; spans
// entirely after shift by the delta; spans intersecting the edited range are
// truncated to the portion outside the replaced range and marked dirty for
// mandatory re-segmentation. A straddled span is never stretched across the
// edit. Returns the ids marked dirty by this shift; a dirty span may come
// out zero-length, which callers treat as collapsed.
func (ix *Index) Shift(editStart, oldLen, newLen int) []string {
	delta := newLen - oldLen
	oldEnd := editStart + oldLen
	newEnd := editStart + newLen

	var dirty []string
	for i := range ix.spans {
		s := &ix.spans[i]
		switch {
		case s.End <= editStart:
			// Entirely before the edit
		case s.Start >= oldEnd:
			s.Start += delta
			s.End += delta
		default:
			if s.Start < editStart {
				// Keep only the part before the edit
				s.End = editStart
			} else if s.End > oldEnd {
				// Keep only the tail after the edit
				s.Start = newEnd
				s.End += delta
			} else {
				// Entirely inside the replaced range: collapsed
				s.Start = newEnd
				s.End = newEnd
			}
			if !s.Dirty {
				s.Dirty = true
				dirty = append(dirty, s.ID)
			}
		}
	}
	return dirty
}

// DirtySpans returns all spans currently marked dirty, ordered by start
func (ix *Index) DirtySpans() []Span {
	var out []Span
	for _, s := range ix.spans {
		if s.Dirty {
			out = append(out, s)
		}
	}
	return out
}

// All returns a copy of every span, ordered by start
func (ix *Index) All() []Span {
	return append([]Span(nil), ix.spans...)
}
