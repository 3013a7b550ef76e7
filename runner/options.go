package runner

import (
	"time"

	designer "github.com/goliatone/go-flow-designer"
)

type Option func(*Handler)

// WithTimeout bounds a whole Run, retries included.
func WithTimeout(t time.Duration) Option {
	return func(h *Handler) {
		h.timeout = t
	}
}

// WithMaxRetries sets how many attempts may follow the first failed one.
func WithMaxRetries(n int) Option {
	return func(h *Handler) {
		if n >= 0 {
			h.retries = n
		}
	}
}

// WithName labels the handler in logs and errors.
func WithName(name string) Option {
	return func(h *Handler) {
		if name != "" {
			h.name = name
		}
	}
}

// WithErrorHandler receives every failed attempt. nil silences them.
func WithErrorHandler(fn func(error)) Option {
	return func(h *Handler) {
		if fn == nil {
			fn = func(error) {}
		}
		h.onError = fn
	}
}

func WithLogger(l designer.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

func WithRetryStrategy(s RetryStrategy) Option {
	return func(h *Handler) {
		if s != nil {
			h.strategy = s
		}
	}
}

// WithGate makes every attempt wait while the gate is paused.
func WithGate(g *Gate) Option {
	return func(h *Handler) {
		h.gate = g
	}
}
