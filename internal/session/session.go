// Package session runs the single actor that owns a document's claim state.
// Edits, selection requests, user updates, and render replies are all
// serialized through one goroutine, so the claim store and interval index
// are never mutated concurrently and a render reply is never handled nested
// inside an in-progress edit.
package session

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"claimtrack/internal/classify"
	"claimtrack/internal/mapper"
	"claimtrack/internal/model"
	"claimtrack/internal/render"
	"claimtrack/internal/segment"
	"claimtrack/internal/store"
)

// ErrClosed is returned for operations on a closed session
var ErrClosed = errors.New("session closed")

// ErrNoMapping is returned when a rendered-pane selection arrives while no
// valid position mapping exists (before the first mapped render, or after a
// fallback render).
var ErrNoMapping = errors.New("no valid position mapping")

// Event is a notification for presentation consumers. Events carry only ids
// and ranges that were valid in the claim store at emission time.
type Event interface {
	isEvent()
}

// ClaimSelected reports that a claim was resolved from a selection request
type ClaimSelected struct {
	Claim model.Claim
}

// RangeHighlighted asks the editing surface to decorate a source range
type RangeHighlighted struct {
	Start   int
	End     int
	ClaimID string
}

// RenderApplied reports that a render reply passed the supersede check and
// the position mapping was rebuilt. HTML is annotated with claim ids when a
// mapping table was present.
type RenderApplied struct {
	Revision uint64
	Fallback bool
	HTML     string
}

// ClaimsChanged reports that an edit was applied and the claim set may have
// changed
type ClaimsChanged struct {
	DocRevision uint64
	Count       int
}

func (ClaimSelected) isEvent()    {}
func (RangeHighlighted) isEvent() {}
func (RenderApplied) isEvent()    {}
func (ClaimsChanged) isEvent()    {}

// Session owns the claim store, render coordinator, and position mapper for
// one open document. Created at document-open, destroyed by Close; holds no
// package globals.
type Session struct {
	msgs   chan func()
	events chan Event
	done   chan struct{}

	st    *store.Store
	coord *render.Coordinator
	mp    *mapper.Mapper
	log   *zap.Logger

	closeOnce sync.Once
}

// Open creates a session for a document: adopts the persisted claim set (or
// extracts from scratch), starts the actor loop, and schedules an initial
// render of the full text.
func Open(cfg *model.Config, text string, persisted *store.PersistedSet, renderer render.Renderer, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}

	policy := cfg.Policy
	st := store.New(segment.New(cfg.Segment.MinLength), classify.New(policy), policy, logger)
	st.LoadOrExtract(text, persisted)

	s := &Session{
		msgs:   make(chan func(), 64),
		events: make(chan Event, 64),
		done:   make(chan struct{}),
		st:     st,
		coord:  render.NewCoordinator(renderer, cfg.Render.Debounce, cfg.Render.Timeout, logger),
		mp:     mapper.New(logger),
		log:    logger,
	}

	go s.loop()
	s.coord.NoteEdit(text, "", st.DocRevision())
	return s
}

// Events delivers notifications for presentation consumers. The channel is
// closed when the session closes.
func (s *Session) Events() <-chan Event {
	return s.events
}

// loop is the actor: one message or one render result at a time, never both
func (s *Session) loop() {
	defer close(s.events)
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.msgs:
			msg()
		case res := <-s.coord.Results():
			s.handleResult(res)
		}
	}
}

// call runs fn on the actor goroutine and waits for it to finish
func (s *Session) call(fn func()) error {
	doneCh := make(chan struct{})
	wrapped := func() {
		defer close(doneCh)
		fn()
	}
	select {
	case s.msgs <- wrapped:
	case <-s.done:
		return ErrClosed
	}
	select {
	case <-doneCh:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Debug("event dropped, consumer not ready")
	}
}

func (s *Session) handleResult(res render.Result) {
	if !s.coord.Accept(res) {
		return
	}
	s.mp.Apply(res.Reply, s.st.Spans())
	s.emit(RenderApplied{
		Revision: res.Reply.Revision,
		Fallback: res.Reply.Fallback,
		HTML:     s.mp.AnnotatedHTML(),
	})
}

// ApplyEdit applies one text edit: shifts and re-derives claims, then
// schedules a debounced render of the new text.
func (s *Session) ApplyEdit(edit model.Edit, newText string) error {
	var err error
	if cerr := s.call(func() {
		if err = s.st.ApplyEdit(edit, newText); err != nil {
			return
		}
		s.coord.NoteEdit(newText, "", s.st.DocRevision())
		s.emit(ClaimsChanged{DocRevision: s.st.DocRevision(), Count: s.st.Count()})
	}); cerr != nil {
		return cerr
	}
	return err
}

// SelectClaim resolves a claim by id and emits selection and highlight
// events for it
func (s *Session) SelectClaim(id string) (model.Claim, error) {
	var (
		c   model.Claim
		err error
	)
	if cerr := s.call(func() {
		c, err = s.st.Select(id)
		if err != nil {
			return
		}
		s.emit(ClaimSelected{Claim: c})
		s.emit(RangeHighlighted{Start: c.Start, End: c.End, ClaimID: c.ID})
	}); cerr != nil {
		return model.Claim{}, cerr
	}
	return c, err
}

// SelectHandle resolves a rendered-node handle through the position mapping
// and selects the claim it belongs to. Fails with ErrNoMapping while no
// valid mapping exists.
func (s *Session) SelectHandle(handle string) (model.Claim, error) {
	var (
		c   model.Claim
		err error
	)
	if cerr := s.call(func() {
		if !s.mp.Valid() {
			err = ErrNoMapping
			return
		}
		id, ok := s.mp.ClaimForHandle(handle)
		if !ok {
			err = &store.NotFoundError{ID: handle}
			return
		}
		c, err = s.st.Select(id)
		if err != nil {
			return
		}
		s.emit(ClaimSelected{Claim: c})
		s.emit(RangeHighlighted{Start: c.Start, End: c.End, ClaimID: c.ID})
	}); cerr != nil {
		return model.Claim{}, cerr
	}
	return c, err
}

// SelectOffset selects the claim covering a source offset, if any
func (s *Session) SelectOffset(offset int) (model.Claim, error) {
	var (
		c   model.Claim
		err error
	)
	if cerr := s.call(func() {
		ids := s.st.ClaimsIn(offset, offset+1)
		if len(ids) == 0 {
			err = &store.NotFoundError{ID: fmt.Sprintf("offset %d", offset)}
			return
		}
		c, err = s.st.Select(ids[0])
		if err != nil {
			return
		}
		s.emit(ClaimSelected{Claim: c})
		s.emit(RangeHighlighted{Start: c.Start, End: c.End, ClaimID: c.ID})
	}); cerr != nil {
		return model.Claim{}, cerr
	}
	return c, err
}

// UpdateClaim applies a user-field update (status, sources, notes, as-of)
func (s *Session) UpdateClaim(id string, upd store.UserUpdate) error {
	var err error
	if cerr := s.call(func() {
		err = s.st.UpdateUserFields(id, upd)
	}); cerr != nil {
		return cerr
	}
	return err
}

// Claims returns a snapshot of all claims in span order
func (s *Session) Claims() []model.Claim {
	var out []model.Claim
	_ = s.call(func() { out = s.st.All() })
	return out
}

// Filter returns claims matching the criteria, in span order
func (s *Session) Filter(crit store.Criteria) []model.Claim {
	var out []model.Claim
	_ = s.call(func() { out = s.st.Filter(crit) })
	return out
}

// Snapshot produces the persistable claim set for the current state
func (s *Session) Snapshot(document string) *store.PersistedSet {
	var set *store.PersistedSet
	_ = s.call(func() { set = s.st.Snapshot(document) })
	return set
}

// Text returns the current document text
func (s *Session) Text() string {
	var text string
	_ = s.call(func() { text = s.st.Text() })
	return text
}

// DocRevision returns the current document revision
func (s *Session) DocRevision() uint64 {
	var rev uint64
	_ = s.call(func() { rev = s.st.DocRevision() })
	return rev
}

// Flush skips the debounce window and issues any pending render now
func (s *Session) Flush() {
	s.coord.Flush()
}

// RenderState reports the render pipeline state
func (s *Session) RenderState() render.State {
	return s.coord.State()
}

// Close stops the actor loop and the render coordinator. Pending messages
// are abandoned; the events channel is closed.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.coord.Close()
	})
}
