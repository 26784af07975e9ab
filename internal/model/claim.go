package model

// Claim represents a tracked factual statement with an offset span into the
// document and its citation state
type Claim struct {
	ID             string    `json:"id"`                       // Stable identifier, never reused
	Section        string    `json:"section,omitempty"`        // Nearest enclosing heading at creation time
	Start          int       `json:"start"`                    // Span start (inclusive byte offset)
	End            int       `json:"end"`                      // Span end (exclusive byte offset)
	Text           string    `json:"text"`                     // Cached span content
	Type           ClaimType `json:"type"`                     // Classification verdict
	Risk           Risk      `json:"risk"`                     // Risk level from classification
	RequiresInline bool      `json:"requires_inline"`          // Whether an inline citation is mandatory
	ExistingRefs   []string  `json:"existing_refs,omitempty"`  // Citation names found lexically inside the span
	Status         Status    `json:"status"`                   // Citation support status
	Sources        []string  `json:"sources,omitempty"`        // Ordered source keys attached by the editor
	SourceQuality  *int      `json:"source_quality,omitempty"` // 0-100 score supplied by the scoring service
	AsOf           string    `json:"as_of,omitempty"`          // Optional date the claim is current as of
	Notes          string    `json:"notes,omitempty"`          // Free-form editor notes
}

// Len returns the span length in bytes
func (c *Claim) Len() int {
	return c.End - c.Start
}

// Clone returns a deep copy so read-side consumers cannot mutate store state
func (c *Claim) Clone() Claim {
	out := *c
	if c.ExistingRefs != nil {
		out.ExistingRefs = append([]string(nil), c.ExistingRefs...)
	}
	if c.Sources != nil {
		out.Sources = append([]string(nil), c.Sources...)
	}
	if c.SourceQuality != nil {
		q := *c.SourceQuality
		out.SourceQuality = &q
	}
	return out
}

// ClaimType categorizes the nature of the claim
type ClaimType string

const (
	ClaimTypeStatistic   ClaimType = "statistic"   // Numeric/quantitative assertions
	ClaimTypeBLP         ClaimType = "blp"         // Biographical statements about living persons
	ClaimTypeQuote       ClaimType = "quote"       // Direct quotations
	ClaimTypeContentious ClaimType = "contentious" // Disputed or controversial assertions
	ClaimTypeGeneral     ClaimType = "general"     // Everything else
)

// Risk indicates how urgently a claim needs citation support
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Status tracks the citation support state of a claim
type Status string

const (
	StatusUnsupported Status = "unsupported" // No citation attached
	StatusPending     Status = "pending"     // Citation present but not yet verified
	StatusSupported   Status = "supported"   // Citation attached and accepted
)

// Verdict is the deterministic classification result for a span of text
type Verdict struct {
	Type           ClaimType `json:"type"`
	Risk           Risk      `json:"risk"`
	RequiresInline bool      `json:"requires_inline"`
}
