// Package store owns the authoritative claim collection for one open
// document: extraction, edit application, filtering, and the persisted
// mirror. The store is mutated only by the session actor; it carries no
// locking because there is no parallel mutation.
package store

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"claimtrack/internal/classify"
	"claimtrack/internal/index"
	"claimtrack/internal/model"
	"claimtrack/internal/segment"
)

// NotFoundError indicates a claim id unknown to the store
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("claim not found: %s", e.ID)
}

// Criteria is a conjunction of optional predicates for Filter
type Criteria struct {
	Status  *model.Status
	Risk    *model.Risk
	Type    *model.ClaimType
	Section *string
}

// UserUpdate carries the user-editable claim fields. Nil fields are left
// unchanged; spans, text, and classification are never user-writable.
type UserUpdate struct {
	Status        *model.Status
	Sources       []string
	SourceQuality *int
	AsOf          *string
	Notes         *string
}

// reuseThreshold: a re-segmented span reuses an existing claim id when its
// text is unchanged and the offset overlap exceeds half the old span length
const reuseThresholdDivisor = 2

// Store is the claim collection for one document
type Store struct {
	text        string
	docRevision uint64
	revision    uint64

	claims map[string]*model.Claim
	idx    *index.Index
	seg    *segment.Segmenter
	cls    *classify.Classifier
	policy model.Policy
	log    *zap.Logger
}

// New creates an empty store. Load text with LoadOrExtract before applying
// edits.
func New(seg *segment.Segmenter, cls *classify.Classifier, policy model.Policy, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		claims: make(map[string]*model.Claim),
		idx:    index.New(),
		seg:    seg,
		cls:    cls,
		policy: policy,
		log:    logger,
	}
}

// Text returns the current document text as known to the store
func (s *Store) Text() string {
	return s.text
}

// DocRevision returns the document revision, incremented on every accepted
// edit
func (s *Store) DocRevision() uint64 {
	return s.docRevision
}

// Revision returns the store-local revision, incremented on every successful
// mutating operation. Monotonic with but distinct from DocRevision; used to
// tag in-flight work so stale results can be discarded.
func (s *Store) Revision() uint64 {
	return s.revision
}

// Count returns the number of tracked claims
func (s *Store) Count() int {
	return len(s.claims)
}

// Spans exposes the interval index for read-only span queries, for consumers
// that relate outside positions back to claims. Callers must not mutate it.
func (s *Store) Spans() *index.Index {
	return s.idx
}

// LoadOrExtract initializes the store for a document. When a persisted claim
// set is supplied, each claim's span is validated against the current text
// and survivors are adopted; claims whose span is out of bounds, inverted,
// or no longer matches the text are dropped and their region re-extracted.
// Without a persisted set (or when nothing survives), a full extraction runs.
// The store always converges to a valid claim set from raw text alone.
func (s *Store) LoadOrExtract(text string, persisted *PersistedSet) {
	s.text = text
	s.claims = make(map[string]*model.Claim)
	s.idx = index.New()

	adopted := 0
	if persisted != nil {
		for i := range persisted.Claims {
			c := persisted.Claims[i].Clone()
			if !s.spanValid(&c) {
				s.log.Debug("dropping persisted claim with invalid span",
					zap.String("id", c.ID), zap.Int("start", c.Start), zap.Int("end", c.End))
				continue
			}
			if err := s.idx.Insert(c.ID, c.Start, c.End); err != nil {
				s.log.Debug("dropping persisted claim", zap.String("id", c.ID), zap.Error(err))
				continue
			}
			s.claims[c.ID] = &c
			adopted++
		}
	}

	// Extraction fills every region not already covered by an adopted claim
	for _, sg := range s.seg.Segment(text) {
		if ids := s.idx.Query(sg.Start, sg.End); len(ids) > 0 {
			continue
		}
		s.addClaim(sg)
	}

	s.revision++
	s.log.Debug("claim set loaded",
		zap.Int("adopted", adopted), zap.Int("total", len(s.claims)))
}

// spanValid checks the span invariant and that the cached text still matches
// the document
func (s *Store) spanValid(c *model.Claim) bool {
	if c.Start < 0 || c.Start >= c.End || c.End > len(s.text) {
		return false
	}
	return s.text[c.Start:c.End] == c.Text
}

// ApplyEdit applies a single text replacement. newText is the full post-edit
// document supplied by the editing surface, which owns the buffer. Spans are
// shifted, the dirty region is re-segmented and re-classified, and claim ids
// are preserved across incidental re-segmentation when the underlying
// sentence is recognizably the same unit.
func (s *Store) ApplyEdit(edit model.Edit, newText string) error {
	if err := edit.Validate(len(s.text)); err != nil {
		return fmt.Errorf("apply edit: %w", err)
	}
	if len(newText) != len(s.text)+edit.Delta() {
		return fmt.Errorf("apply edit: new text length %d does not match edit delta", len(newText))
	}

	s.docRevision++
	s.idx.Shift(edit.Start, edit.OldLen, edit.NewLen)
	s.text = newText

	// Re-sync claim records with their shifted spans so every read path sees
	// post-edit offsets. Dirty claims keep their pre-edit text: resegment
	// below uses it to recognize sentences that survived the edit, then
	// rewrites or removes those claims.
	for _, sp := range s.idx.All() {
		c := s.claims[sp.ID]
		c.Start, c.End = sp.Start, sp.End
		if !sp.Dirty {
			c.Text = s.text[sp.Start:sp.End]
		}
	}

	// The re-segmentation window is the edited range plus every span the
	// edit straddled, expanded to segment boundaries. Never the whole
	// document.
	lo, hi := edit.Start, edit.NewEnd()
	for _, sp := range s.idx.DirtySpans() {
		if sp.Start < lo {
			lo = sp.Start
		}
		if sp.End > hi {
			hi = sp.End
		}
	}
	if hi > len(newText) {
		hi = len(newText)
	}

	s.resegment(lo, hi)
	s.revision++
	return nil
}

// resegment re-derives claims inside [lo, hi), reusing ids for spans whose
// sentence survived the edit unchanged
func (s *Store) resegment(lo, hi int) {
	elo, ehi := s.seg.ExpandRegion(s.text, lo, hi)
	segs := s.seg.SegmentRegion(s.text, lo, hi)
	for _, sg := range segs {
		// Ref markup can pull a segment slightly past the expanded region
		if sg.End > ehi {
			ehi = sg.End
		}
	}

	// Pull every old claim in the region out of the index so re-inserts
	// cannot collide with stale spans
	type previous struct {
		claim *model.Claim
		span  index.Span
		used  bool
	}
	var prior []*previous
	for _, id := range s.idx.Query(elo, ehi) {
		sp, _ := s.idx.Get(id)
		prior = append(prior, &previous{claim: s.claims[id], span: sp})
		s.idx.Remove(id)
	}
	// Query cannot see spans the edit collapsed to zero length (no range
	// intersects them); sweep the remaining dirty spans in explicitly so
	// collapsed claims are deleted rather than lingering with invalid spans
	for _, sp := range s.idx.DirtySpans() {
		prior = append(prior, &previous{claim: s.claims[sp.ID], span: sp})
		s.idx.Remove(sp.ID)
	}

	for _, sg := range segs {
		var match *previous
		for _, p := range prior {
			if p.used || p.claim.Text != sg.Text {
				continue
			}
			overlap := model.Span{Start: p.span.Start, End: p.span.End}.Overlap(sg.Start, sg.End)
			if overlap*reuseThresholdDivisor > p.span.End-p.span.Start {
				match = p
				break
			}
		}

		if match != nil {
			match.used = true
			c := match.claim
			if err := s.idx.Insert(c.ID, sg.Start, sg.End); err != nil {
				s.log.Warn("reinsert failed, reallocating claim", zap.String("id", c.ID), zap.Error(err))
				delete(s.claims, c.ID)
				s.addClaim(sg)
				continue
			}
			c.Start, c.End = sg.Start, sg.End
			c.Text = sg.Text
			c.Section = sg.Section
			s.reclassify(c)
			continue
		}

		s.addClaim(sg)
	}

	// Old claims with no surviving sentence, including spans collapsed by
	// the edit, are removed
	for _, p := range prior {
		if !p.used {
			delete(s.claims, p.claim.ID)
		}
	}
}

// addClaim creates a claim for a fresh segment
func (s *Store) addClaim(sg segment.Segment) {
	verdict := s.cls.Classify(sg.Text)
	refs := classify.ExtractRefs(sg.Text)

	status := model.StatusUnsupported
	if len(refs) > 0 {
		status = model.StatusPending
	}

	c := &model.Claim{
		ID:             uuid.NewString(),
		Section:        sg.Section,
		Start:          sg.Start,
		End:            sg.End,
		Text:           sg.Text,
		Type:           verdict.Type,
		Risk:           verdict.Risk,
		RequiresInline: verdict.RequiresInline,
		ExistingRefs:   refs,
		Status:         status,
	}

	if err := s.idx.Insert(c.ID, c.Start, c.End); err != nil {
		// Segments are non-overlapping by construction, so this indicates a
		// caller bug; keep the store consistent and surface it in the log.
		s.log.Warn("segment overlaps tracked claim", zap.Error(err))
		return
	}
	s.claims[c.ID] = c
}

// reclassify refreshes the verdict and lexical refs of a surviving claim.
// Classification is idempotent, so repeated calls are harmless.
func (s *Store) reclassify(c *model.Claim) {
	verdict := s.cls.Classify(c.Text)
	c.Type = verdict.Type
	c.Risk = verdict.Risk
	c.RequiresInline = verdict.RequiresInline
	c.ExistingRefs = classify.ExtractRefs(c.Text)
}

// Select returns a copy of the claim with the given id
func (s *Store) Select(id string) (model.Claim, error) {
	c, ok := s.claims[id]
	if !ok {
		return model.Claim{}, &NotFoundError{ID: id}
	}
	return c.Clone(), nil
}

// Filter returns copies of the claims matching every set predicate, ordered
// by span start. It never mutates the store.
func (s *Store) Filter(crit Criteria) []model.Claim {
	var out []model.Claim
	for _, sp := range s.idx.All() {
		c := s.claims[sp.ID]
		if c == nil {
			continue
		}
		if crit.Status != nil && c.Status != *crit.Status {
			continue
		}
		if crit.Risk != nil && c.Risk != *crit.Risk {
			continue
		}
		if crit.Type != nil && c.Type != *crit.Type {
			continue
		}
		if crit.Section != nil && c.Section != *crit.Section {
			continue
		}
		out = append(out, c.Clone())
	}
	return out
}

// All returns copies of every claim ordered by span start
func (s *Store) All() []model.Claim {
	return s.Filter(Criteria{})
}

// ClaimsIn returns the ids of claims intersecting [start, end), ordered by
// span start
func (s *Store) ClaimsIn(start, end int) []string {
	return s.idx.Query(start, end)
}

// UpdateUserFields updates the user-editable fields of a claim. Marking a
// high-risk claim supported requires at least one source and a source
// quality at or above the policy floor.
func (s *Store) UpdateUserFields(id string, upd UserUpdate) error {
	c, ok := s.claims[id]
	if !ok {
		return &NotFoundError{ID: id}
	}

	sources := c.Sources
	if upd.Sources != nil {
		sources = upd.Sources
	}
	quality := c.SourceQuality
	if upd.SourceQuality != nil {
		quality = upd.SourceQuality
	}

	if upd.Status != nil && *upd.Status == model.StatusSupported && c.Risk == model.RiskHigh {
		if len(sources) == 0 {
			return fmt.Errorf("claim %s: high-risk claim needs at least one source to be supported", id)
		}
		if quality == nil || *quality < s.policy.MinSourceQuality {
			return fmt.Errorf("claim %s: source quality below policy floor %d", id, s.policy.MinSourceQuality)
		}
	}

	if upd.Status != nil {
		c.Status = *upd.Status
	}
	if upd.Sources != nil {
		c.Sources = append([]string(nil), upd.Sources...)
	}
	if upd.SourceQuality != nil {
		q := *upd.SourceQuality
		c.SourceQuality = &q
	}
	if upd.AsOf != nil {
		c.AsOf = *upd.AsOf
	}
	if upd.Notes != nil {
		c.Notes = *upd.Notes
	}

	s.revision++
	return nil
}
