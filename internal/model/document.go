package model

import "fmt"

// Edit describes a single text replacement: OldLen bytes at Start are
// replaced by NewLen bytes. Pure insertions have OldLen 0, pure deletions
// NewLen 0.
type Edit struct {
	Start  int `json:"start"`
	OldLen int `json:"old_len"`
	NewLen int `json:"new_len"`
}

// Delta returns the net change in document length
func (e Edit) Delta() int {
	return e.NewLen - e.OldLen
}

// OldEnd returns the exclusive end of the replaced range in pre-edit offsets
func (e Edit) OldEnd() int {
	return e.Start + e.OldLen
}

// NewEnd returns the exclusive end of the inserted range in post-edit offsets
func (e Edit) NewEnd() int {
	return e.Start + e.NewLen
}

// Validate checks the edit against the pre-edit document length
func (e Edit) Validate(docLen int) error {
	if e.Start < 0 || e.OldLen < 0 || e.NewLen < 0 {
		return fmt.Errorf("negative edit field: %+v", e)
	}
	if e.OldEnd() > docLen {
		return fmt.Errorf("edit [%d,%d) past end of document (len %d)", e.Start, e.OldEnd(), docLen)
	}
	return nil
}

// Span is a half-open byte offset range [Start, End) into the document
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Intersects reports whether two half-open ranges overlap
func (s Span) Intersects(start, end int) bool {
	return s.Start < end && start < s.End
}

// Overlap returns the number of bytes shared with [start, end)
func (s Span) Overlap(start, end int) int {
	lo, hi := s.Start, s.End
	if start > lo {
		lo = start
	}
	if end < hi {
		hi = end
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}
