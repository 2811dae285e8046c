package search

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultDelay is the quiet period before a search fires.
const DefaultDelay = 300 * time.Millisecond

// Searcher runs one search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// Result is what a Debouncer delivers for one query.
type Result struct {
	Query      string
	Candidates []Candidate
	Err        error
}

// Debouncer turns a stream of keystrokes into searches.
//
// Every Query bumps a generation counter and restarts the quiet-period
// timer, so at most one timer is ever pending. Requests that already fired
// are not cancelled; instead each result carries its generation and is
// delivered only if no newer generation has been delivered yet. A slow
// response for an old query therefore never replaces a newer one.
type Debouncer struct {
	searcher Searcher
	delay    time.Duration
	deliver  func(Result)
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	gen    uint64
	timer  *time.Timer
	closed bool

	deliverMu sync.Mutex
	applied   uint64
}

// NewDebouncer returns a Debouncer that calls deliver with each accepted
// result. deliver is never called concurrently with itself.
//
// deliver must not call Close directly: Close waits for the running
// delivery to return, so it would deadlock. Call it from another goroutine.
func NewDebouncer(s Searcher, delay time.Duration, deliver func(Result), log *slog.Logger) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{searcher: s, delay: delay, deliver: deliver, log: log, ctx: ctx, cancel: cancel}
}

// Query records the latest input. An empty query clears results right away.
func (d *Debouncer) Query(q string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if q == "" {
		go d.apply(gen, Result{Query: q, Candidates: []Candidate{}})
		return
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen, q) })
}

func (d *Debouncer) fire(gen uint64, q string) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	candidates, err := d.searcher.Search(d.ctx, q)
	if err != nil {
		d.log.Warn("place search failed", "query", q, "error", err)
		candidates = []Candidate{}
	}
	d.apply(gen, Result{Query: q, Candidates: candidates, Err: err})
}

func (d *Debouncer) apply(gen uint64, r Result) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return
	}
	if gen <= d.applied {
		d.log.Debug("dropping stale search result", "query", r.Query, "generation", gen)
		return
	}
	d.applied = gen
	d.deliver(r)
}

// Close stops the pending timer and cancels in-flight searches.
// Nothing is delivered after Close returns. It must not be called from
// inside deliver.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.cancel()

	// Wait out a delivery that checked closed just before we set it.
	d.deliverMu.Lock()
	d.deliverMu.Unlock() //nolint:staticcheck // barrier
}
