package model

// RenderRequest is the wire request to the companion render service
type RenderRequest struct {
	Wikitext string `json:"wikitext"`
	Section  string `json:"section,omitempty"`
	Domain   string `json:"domain,omitempty"`
}

// MappedElement relates one rendered element back to a source offset range.
// DSR is the companion service's span encoding: the first two values are the
// source start and end offsets, any further values are internal to the
// renderer and ignored here.
type MappedElement struct {
	DSR  []int  `json:"dsr"`
	Tag  string `json:"tag,omitempty"`
	Text string `json:"text,omitempty"`
}

// SourceSpan returns the element's source offset range, or ok=false when the
// DSR data is absent or malformed
func (e MappedElement) SourceSpan() (start, end int, ok bool) {
	if len(e.DSR) < 2 || e.DSR[0] < 0 || e.DSR[1] < e.DSR[0] {
		return 0, 0, false
	}
	return e.DSR[0], e.DSR[1], true
}

// SpanMapping is the renderer's position-mapping table: rendered element
// handles (data-dsr-id values) to source ranges
type SpanMapping struct {
	Elements map[string]MappedElement `json:"elements"`
	HTML     string                   `json:"html,omitempty"`
}

// RenderReply is the result of one render cycle. Mapping is nil when the
// fallback renderer produced the output; consumers must tolerate that.
type RenderReply struct {
	HTML     string       `json:"html"`
	Mapping  *SpanMapping `json:"dsr_map"`
	Revision uint64       `json:"-"` // Document revision the render was issued against
	Fallback bool         `json:"-"` // True when produced by the local fallback path
}
