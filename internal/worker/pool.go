// Package worker runs batch claim extraction over many documents with a
// bounded number of concurrent workers.
package worker

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"claimtrack/internal/classify"
	"claimtrack/internal/model"
	"claimtrack/internal/segment"
	"claimtrack/internal/store"
)

// ExtractResult is the outcome of extracting claims from one document
type ExtractResult struct {
	Path   string
	Claims []model.Claim
	Mirror string // Path of the written claim-set mirror, empty on error
	Err    error
}

// Extractor builds and persists the claim set for a single document file.
// Each document gets its own store; extractors are safe for concurrent use.
type Extractor struct {
	cfg *model.Config
	log *zap.Logger
}

// NewExtractor creates an extractor with the given configuration
func NewExtractor(cfg *model.Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, log: logger}
}

// Extract reads a document, adopts its persisted claim set when one exists
// and is sound, extracts claims for everything not covered, and writes the
// mirror back next to the document.
func (e *Extractor) Extract(ctx context.Context, path string) ExtractResult {
	if err := ctx.Err(); err != nil {
		return ExtractResult{Path: path, Err: err}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return ExtractResult{Path: path, Err: fmt.Errorf("read document: %w", err)}
	}

	persisted, err := store.LoadMirror(store.MirrorPath(path))
	if err != nil {
		// Unparseable mirror: discard and extract from scratch
		e.log.Warn("discarding malformed claim mirror",
			zap.String("path", store.MirrorPath(path)), zap.Error(err))
		persisted = nil
	}

	st := store.New(segment.New(e.cfg.Segment.MinLength), classify.New(e.cfg.Policy), e.cfg.Policy, e.log)
	st.LoadOrExtract(string(raw), persisted)

	if err := st.SaveMirror(path); err != nil {
		return ExtractResult{Path: path, Claims: st.All(), Err: fmt.Errorf("write mirror: %w", err)}
	}

	return ExtractResult{Path: path, Claims: st.All(), Mirror: store.MirrorPath(path)}
}

// Pool fans document paths out to a fixed number of extraction workers
type Pool struct {
	workers   int
	extractor *Extractor
	jobs      chan string
	results   chan ExtractResult
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPool creates a pool with the specified number of workers
func NewPool(workers int, extractor *Extractor) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers:   workers,
		extractor: extractor,
		jobs:      make(chan string, workers*2),
		results:   make(chan ExtractResult, workers*2),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case path, ok := <-p.jobs:
			if !ok {
				return
			}
			result := p.extractor.Extract(p.ctx, path)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a document path for extraction. After Shutdown it returns
// without blocking.
func (p *Pool) Submit(path string) {
	select {
	case <-p.ctx.Done():
	case p.jobs <- path:
	}
}

// Wait closes the queue, waits for the workers to drain it, and returns all
// results
func (p *Pool) Wait() []ExtractResult {
	close(p.jobs)

	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []ExtractResult
	for result := range p.results {
		results = append(results, result)
	}
	return results
}

// Shutdown cancels in-flight extractions and stops the workers
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
