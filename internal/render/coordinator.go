package render

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"claimtrack/internal/model"
)

// State of the render pipeline
type State int

const (
	StateIdle      State = iota // No render scheduled or in flight
	StatePending                // Edits received, debounce window open
	StateRendering              // Request issued, awaiting reply
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRendering:
		return "rendering"
	default:
		return "idle"
	}
}

// Renderer is the external render collaborator. It may fail or time out; the
// coordinator recovers locally.
type Renderer interface {
	Render(ctx context.Context, wikitext, section string) (*model.RenderReply, error)
}

// Result pairs a reply with the request sequence that produced it, so the
// supersede rule can be applied when the reply is consumed
type Result struct {
	Reply *model.RenderReply
	Seq   uint64
}

// Coordinator debounces edit bursts, keeps a single render request in flight,
// tags each request with the document revision at issue time, and discards
// superseded replies. On collaborator failure or timeout it falls back to the
// local approximate renderer, so the view never hangs and never flickers with
// an out-of-order render.
type Coordinator struct {
	renderer Renderer
	timeout  time.Duration
	deb      *debouncer
	results  chan Result
	log      *zap.Logger

	mu          sync.Mutex
	state       State
	pendingText string
	pendingSect string
	pendingRev  uint64
	issuedSeq   uint64
	appliedSeq  uint64
	cancel      context.CancelFunc
	closed      bool
}

// NewCoordinator creates a coordinator around the given renderer
func NewCoordinator(renderer Renderer, debounce, timeout time.Duration, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Coordinator{
		renderer: renderer,
		timeout:  timeout,
		deb:      newDebouncer(debounce),
		results:  make(chan Result, 8),
		log:      logger,
	}
}

// NoteEdit records the post-edit document snapshot and restarts the debounce
// window. Issuing a newer request implicitly cancels interest in any earlier
// one.
func (c *Coordinator) NoteEdit(text, section string, revision uint64) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pendingText = text
	c.pendingSect = section
	c.pendingRev = revision
	if c.state == StateIdle {
		c.state = StatePending
	}
	c.mu.Unlock()

	c.deb.debounce(c.fire)
}

// Flush skips the remaining debounce window and issues the pending render now
func (c *Coordinator) Flush() {
	c.mu.Lock()
	pending := c.state != StateIdle && !c.closed
	c.mu.Unlock()
	if pending {
		c.deb.immediate(c.fire)
	}
}

// fire issues the render request for the latest pending snapshot
func (c *Coordinator) fire() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	text, section, rev := c.pendingText, c.pendingSect, c.pendingRev
	if c.cancel != nil {
		// An in-flight request is now superseded; cancelling it is an
		// optimization, the revision check is the guarantee
		c.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	c.cancel = cancel
	c.issuedSeq++
	seq := c.issuedSeq
	c.state = StateRendering
	c.mu.Unlock()

	go c.render(ctx, cancel, text, section, rev, seq)
}

func (c *Coordinator) render(ctx context.Context, cancel context.CancelFunc, text, section string, rev, seq uint64) {
	defer cancel()

	reply, err := c.renderer.Render(ctx, text, section)
	if err != nil {
		// Degraded mode, not an error: local transformation, no mapping
		c.log.Warn("render collaborator failed, using local fallback", zap.Error(err))
		reply = &model.RenderReply{HTML: Fallback(text), Fallback: true}
	}
	reply.Revision = rev

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	select {
	case c.results <- Result{Reply: reply, Seq: seq}:
	default:
		// Consumer stalled; the next result supersedes this one anyway
		c.log.Debug("render result dropped, consumer not ready", zap.Uint64("seq", seq))
	}
}

// Results delivers render results for the consumer loop. Every result must
// be passed through Accept before use.
func (c *Coordinator) Results() <-chan Result {
	return c.results
}

// Accept applies the supersede rule: a result is applied only when no newer
// request has been issued since it left and it has not been overtaken by an
// already applied one. Rejected results are stale by design, not errors.
func (c *Coordinator) Accept(res Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res.Seq != c.issuedSeq || res.Seq <= c.appliedSeq {
		c.log.Debug("discarding superseded render",
			zap.Uint64("seq", res.Seq), zap.Uint64("latest", c.issuedSeq))
		return false
	}
	c.appliedSeq = res.Seq
	c.state = StateIdle
	return true
}

// State returns the current pipeline state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close cancels any in-flight request and stops the debounce timer
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.deb.cancel()
}
