// Package mapper rebuilds the lookup tables that relate rendered output back
// to source offsets and claims. Tables are derived, disposable state: every
// applied render replaces them wholesale, because the rendered tree itself is
// regenerated wholesale.
package mapper

import (
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"claimtrack/internal/index"
	"claimtrack/internal/model"
)

// SpanSource answers which claim spans cover a source range. Satisfied by the
// claim store's interval index.
type SpanSource interface {
	Query(start, end int) []string
	Get(id string) (index.Span, bool)
}

// Mapper converts a render reply's span-mapping table plus the current claim
// spans into a bidirectional lookup: rendered-node handle to claim id, and
// source offset to claim id. The tables are valid only until the next Apply.
type Mapper struct {
	valid    bool
	fallback bool
	revision uint64
	htmlText string

	handleToClaim  map[string]string
	claimToHandles map[string][]string
	spans          SpanSource

	log *zap.Logger
}

// New creates an empty mapper. It is invalid until the first Apply with a
// mapping table.
func New(logger *zap.Logger) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{log: logger}
}

// Apply replaces the lookup tables from an accepted render reply. A reply
// without a mapping table (the local fallback path) clears the tables and
// leaves the mapper invalid; the rendered output is still recorded so the
// view can show it.
func (m *Mapper) Apply(reply *model.RenderReply, spans SpanSource) {
	m.revision = reply.Revision
	m.htmlText = reply.HTML
	m.fallback = reply.Fallback
	m.spans = spans
	m.handleToClaim = nil
	m.claimToHandles = nil
	m.valid = false

	if reply.Mapping == nil {
		m.log.Debug("mapping cleared, reply carried no span table",
			zap.Uint64("revision", reply.Revision))
		return
	}

	handleToClaim := make(map[string]string, len(reply.Mapping.Elements))
	claimToHandles := make(map[string][]string)
	starts := make(map[string]int, len(reply.Mapping.Elements))

	for handle, elem := range reply.Mapping.Elements {
		start, end, ok := elem.SourceSpan()
		if !ok {
			continue
		}
		id := m.bestClaim(spans, start, end)
		if id == "" {
			continue
		}
		handleToClaim[handle] = id
		claimToHandles[id] = append(claimToHandles[id], handle)
		starts[handle] = start
	}

	// Handles for a claim come out in source order
	for _, handles := range claimToHandles {
		sort.Slice(handles, func(i, j int) bool {
			if starts[handles[i]] != starts[handles[j]] {
				return starts[handles[i]] < starts[handles[j]]
			}
			return handles[i] < handles[j]
		})
	}

	m.handleToClaim = handleToClaim
	m.claimToHandles = claimToHandles
	m.valid = true
}

// bestClaim attributes a rendered element's source range to the claim it
// overlaps most. Container elements spanning several claims get the largest
// one; ties go to the earliest span.
func (m *Mapper) bestClaim(spans SpanSource, start, end int) string {
	var bestID string
	bestOverlap := 0
	for _, id := range spans.Query(start, end) {
		s, ok := spans.Get(id)
		if !ok || s.Dirty {
			continue
		}
		overlap := min(end, s.End) - max(start, s.Start)
		if overlap > bestOverlap {
			bestOverlap = overlap
			bestID = id
		}
	}
	return bestID
}

// Valid reports whether the lookup tables reflect an applied mapped render.
// False after a fallback render or before the first render.
func (m *Mapper) Valid() bool {
	return m.valid
}

// Fallback reports whether the recorded output came from the local
// approximate renderer.
func (m *Mapper) Fallback() bool {
	return m.fallback
}

// Revision returns the document revision the applied render was computed
// against.
func (m *Mapper) Revision() uint64 {
	return m.revision
}

// HTML returns the rendered output recorded by the last Apply.
func (m *Mapper) HTML() string {
	return m.htmlText
}

// ClaimForHandle resolves a rendered-node handle to a claim id
func (m *Mapper) ClaimForHandle(handle string) (string, bool) {
	if !m.valid {
		return "", false
	}
	id, ok := m.handleToClaim[handle]
	return id, ok
}

// HandlesForClaim returns the rendered-node handles attributed to a claim,
// in source order
func (m *Mapper) HandlesForClaim(id string) []string {
	if !m.valid {
		return nil
	}
	return m.claimToHandles[id]
}

// ClaimAt resolves a source offset to the claim covering it
func (m *Mapper) ClaimAt(offset int) (string, bool) {
	if m.spans == nil {
		return "", false
	}
	for _, id := range m.spans.Query(offset, offset+1) {
		if s, ok := m.spans.Get(id); ok && !s.Dirty {
			return id, true
		}
	}
	return "", false
}

// AnnotatedHTML returns the rendered output with data-claim-id attributes
// added to every element whose handle resolved to a claim, for
// cross-highlighting in the rendered pane. Without a valid mapping the
// output is returned untouched.
func (m *Mapper) AnnotatedHTML() string {
	if !m.valid || len(m.handleToClaim) == 0 {
		return m.htmlText
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(m.htmlText), body)
	if err != nil {
		m.log.Warn("cannot parse rendered output for annotation", zap.Error(err))
		return m.htmlText
	}

	var b strings.Builder
	for _, n := range nodes {
		m.annotate(n)
		if err := html.Render(&b, n); err != nil {
			m.log.Warn("cannot re-render annotated output", zap.Error(err))
			return m.htmlText
		}
	}
	return b.String()
}

func (m *Mapper) annotate(n *html.Node) {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "data-dsr-id" {
				if id, ok := m.handleToClaim[a.Val]; ok {
					n.Attr = append(n.Attr, html.Attribute{Key: "data-claim-id", Val: id})
				}
				break
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		m.annotate(c)
	}
}
