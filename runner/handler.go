// Package runner executes editor work, such as layout passes and store
// writes, with a timeout, bounded retries and an optional pause gate.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	designer "github.com/goliatone/go-flow-designer"
)

// ErrGateClosed is returned when work waits on a closed Gate.
var ErrGateClosed = errors.New("runner gate closed", errors.CategoryConflict).
	WithTextCode("GATE_CLOSED")

// Handler runs units of work. It is safe for concurrent callers; each Run
// gets its own timeout and retry budget.
type Handler struct {
	name     string
	logger   designer.Logger
	onError  func(error)
	strategy RetryStrategy
	gate     *Gate
	retries  int
	timeout  time.Duration

	mu        sync.Mutex
	runs      int
	succeeded int
}

func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		name:     "runner",
		strategy: NoDelayStrategy{},
	}
	for _, o := range opts {
		if o != nil {
			o(h)
		}
	}
	h.logger = designer.NormalizeLogger(h.logger)
	if h.onError == nil {
		h.onError = func(err error) {
			h.logger.Error("run failed", "runner", h.name, "error", err)
		}
	}
	return h
}

// Run executes fn until it succeeds, the retry budget is spent, the
// strategy gives up or ctx ends. It returns the error of the last attempt.
// Every failed attempt is reported to the error handler.
func (h *Handler) Run(ctx context.Context, fn func(context.Context) error) error {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	attempts, err := h.retry(ctx, fn)

	h.mu.Lock()
	h.runs++
	if err == nil {
		h.succeeded++
	}
	h.mu.Unlock()

	if err != nil {
		h.onError(errors.Wrap(err, errors.CategoryHandler,
			fmt.Sprintf("%s failed after %d attempts", h.name, attempts)))
	}
	return err
}

func (h *Handler) retry(ctx context.Context, fn func(context.Context) error) (int, error) {
	for attempt := 0; ; attempt++ {
		if err := h.gate.Wait(ctx); err != nil {
			return attempt, err
		}
		err := h.attempt(ctx, fn)
		if err == nil || ctx.Err() != nil || attempt >= h.retries {
			return attempt + 1, err
		}
		h.onError(errors.Wrap(err, errors.CategoryHandler,
			fmt.Sprintf("%s failed, attempt %d of %d", h.name, attempt+1, h.retries+1)))

		decision := DecideRetry(h.strategy, attempt, err)
		if !decision.ShouldRetry || !sleep(ctx, decision.Delay) {
			return attempt + 1, err
		}
	}
}

// attempt runs fn once, turning a panic into an error.
func (h *Handler) attempt(ctx context.Context, fn func(context.Context) error) (err error) {
	defer designer.MakeRecoverer(designer.LoggerPanicLogger(h.logger))(h.name, &err)
	return fn(ctx)
}

// Stats returns the number of runs and successful runs so far.
func (h *Handler) Stats() (runs, successful int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs, h.succeeded
}

// sleep waits d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// RunQuery runs fn and returns the result of the successful attempt.
func RunQuery[R any](ctx context.Context, h *Handler, fn func(context.Context) (R, error)) (R, error) {
	var result R
	err := h.Run(ctx, func(ctx context.Context) error {
		r, err := fn(ctx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}
