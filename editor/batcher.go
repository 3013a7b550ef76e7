package editor

import (
	"sync"
	"time"
)

// Batcher coalesces change notifications. The first Mark of a batch arms a
// timer for the window; every Mark until it fires joins the same batch and
// produces a single flush. A zero window flushes on the next scheduler turn.
type Batcher struct {
	mu      sync.Mutex
	flushMu sync.Mutex

	window  time.Duration
	flush   func()
	timer   *time.Timer
	pending bool
	closed  bool
}

func NewBatcher(window time.Duration, flush func()) *Batcher {
	if window < 0 {
		window = 0
	}
	return &Batcher{window: window, flush: flush}
}

// Mark records a change. After Close it flushes synchronously.
func (b *Batcher) Mark() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.run()
		return
	}
	if b.pending {
		b.mu.Unlock()
		return
	}
	b.pending = true
	b.timer = time.AfterFunc(b.window, b.Flush)
	b.mu.Unlock()
}

// Flush runs the pending batch now. It is a no-op when nothing is pending.
func (b *Batcher) Flush() {
	b.mu.Lock()
	if !b.pending {
		b.mu.Unlock()
		return
	}
	b.stopLocked()
	b.mu.Unlock()
	b.run()
}

// Cancel drops the pending batch without flushing.
func (b *Batcher) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
}

// Pending reports whether a flush is scheduled.
func (b *Batcher) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Close flushes what is pending and stops batching.
func (b *Batcher) Close() {
	b.Flush()
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

func (b *Batcher) stopLocked() {
	b.pending = false
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// run serializes flushes so emissions keep their order.
func (b *Batcher) run() {
	if b.flush == nil {
		return
	}
	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	b.flush()
}
