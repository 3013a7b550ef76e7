package editor

import (
	"time"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/flow"
	"github.com/goliatone/go-flow-designer/graph"
	"github.com/goliatone/go-flow-designer/layout"
	"github.com/goliatone/go-flow-designer/runner"
)

// DefaultLayoutTimeout bounds a single layout pass.
const DefaultLayoutTimeout = 10 * time.Second

type Option func(*Session)

func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

func WithTransformer(t *graph.Transformer) Option {
	return func(s *Session) {
		if t != nil {
			s.transformer = t
		}
	}
}

func WithLayout(a *layout.Adapter) Option {
	return func(s *Session) {
		if a != nil {
			s.layout = a
		}
	}
}

func WithLayoutTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.layoutTimeout = d
	}
}

func WithLogger(l designer.Logger) Option {
	return func(s *Session) {
		s.logger = designer.NormalizeLogger(l)
	}
}

// WithBatchWindow sets how long changes are collected before one emission.
func WithBatchWindow(d time.Duration) Option {
	return func(s *Session) {
		s.window = d
	}
}

// WithGate pauses g while a layout pass runs, so work waiting on it (the
// autosaver) does not persist half-applied positions.
func WithGate(g *runner.Gate) Option {
	return func(s *Session) {
		s.gate = g
	}
}

// OnChange registers the document change callback.
func OnChange(fn func(flow.Definition)) Option {
	return func(s *Session) {
		s.onChange = fn
	}
}

// OnGraph registers a callback receiving the graph view with each emission.
func OnGraph(fn func(graph.Graph)) Option {
	return func(s *Session) {
		s.onGraph = fn
	}
}
