// Package host exposes editing sessions to an embedding host over a
// websocket channel and serves the stateless editor API over HTTP.
package host

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goliatone/go-errors"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/data"
	"github.com/goliatone/go-flow-designer/editor"
)

// Hub owns the live sessions, one per connected editor.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*editor.Session

	options    []editor.Option
	autosaver  *editor.Autosaver
	logger     designer.Logger
	loadSample bool
}

type HubOption func(*Hub)

// WithSessionOptions sets the options every new session starts from.
func WithSessionOptions(opts ...editor.Option) HubOption {
	return func(h *Hub) {
		h.options = append(h.options, opts...)
	}
}

// WithAutosaver persists sessions through a. Sessions are tracked on open
// and saved once more on close.
func WithAutosaver(a *editor.Autosaver) HubOption {
	return func(h *Hub) {
		h.autosaver = a
	}
}

func WithHubLogger(l designer.Logger) HubOption {
	return func(h *Hub) {
		h.logger = designer.NormalizeLogger(l)
	}
}

// WithSampleFlow preloads the embedded sample flow into new sessions.
func WithSampleFlow(enabled bool) HubOption {
	return func(h *Hub) {
		h.loadSample = enabled
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		sessions: map[string]*editor.Session{},
		logger:   designer.NormalizeLogger(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Open creates a session. extra options are applied after the hub defaults.
func (h *Hub) Open(ctx context.Context, extra ...editor.Option) (*editor.Session, error) {
	opts := make([]editor.Option, 0, len(h.options)+len(extra)+2)
	opts = append(opts, editor.WithLogger(h.logger))
	opts = append(opts, h.options...)
	if h.autosaver != nil {
		opts = append(opts, editor.WithGate(h.autosaver.Gate()))
	}
	opts = append(opts, extra...)
	s := editor.New(opts...)

	if h.loadSample {
		def, err := data.SampleFlow()
		if err == nil {
			err = s.Load(ctx, def)
		}
		if err != nil {
			s.Close()
			return nil, err
		}
	}
	if h.autosaver != nil {
		if err := h.autosaver.Track(s); err != nil {
			s.Close()
			return nil, err
		}
	}

	h.mu.Lock()
	h.sessions[s.ID()] = s
	h.mu.Unlock()
	h.logger.Info("session opened", "session", s.ID())
	return s, nil
}

func (h *Hub) Get(id string) (*editor.Session, error) {
	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return nil, designer.NewError(fmt.Sprintf("session %q not found", id), errors.CategoryBadInput,
			designer.CodeSessionNotFound, map[string]any{"session": id})
	}
	return s, nil
}

// IDs lists the open sessions.
func (h *Hub) IDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close flushes, saves and removes session id.
func (h *Hub) Close(ctx context.Context, id string) error {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return nil
	}

	s.Close()
	var err error
	if h.autosaver != nil {
		h.autosaver.Untrack(s)
		if _, err = h.autosaver.SaveDirty(ctx, s); err != nil {
			h.logger.Warn("final save failed", "session", id, "flow_id", s.FlowID(), "error", err)
		}
	}
	h.logger.Info("session closed", "session", id)
	return err
}

// Shutdown closes every session.
func (h *Hub) Shutdown(ctx context.Context) error {
	var first error
	for _, id := range h.IDs() {
		if err := h.Close(ctx, id); err != nil && first == nil {
			first = err
		}
	}
	return first
}
