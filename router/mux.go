// Package router dispatches editor messages to handlers by message type.
// Types are dotted topics such as "editor.node.add" and patterns may use
// "*" for one segment and "#" for any number of segments.
package router

import (
	"sort"
	"sync"
)

type Subscription interface {
	Unsubscribe()
}

type Mux[H any] struct {
	mu         sync.RWMutex
	sorted     []string
	handlers   map[string][]*Entry[H]
	routeMatch func(pattern, topic string) bool
	nextID     uint64
}

type Entry[H any] struct {
	mux     *Mux[H]
	id      uint64
	pattern string
	Handler H
}

func (e *Entry[H]) Pattern() string {
	return e.pattern
}

// Unsubscribe removes the entry. Other entries registered under the same
// pattern keep their order.
func (e *Entry[H]) Unsubscribe() {
	m := e.mux
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.handlers[e.pattern]
	kept := make([]*Entry[H], 0, len(old))
	for _, x := range old {
		if x.id != e.id {
			kept = append(kept, x)
		}
	}
	if len(kept) == 0 {
		delete(m.handlers, e.pattern)
		m.resort()
		return
	}
	m.handlers[e.pattern] = kept
}

func NewMux[H any](opts ...Option) *Mux[H] {
	cfg := config{
		routeMatch: Matcher{Separator: "."}.Match,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Mux[H]{
		handlers:   make(map[string][]*Entry[H]),
		routeMatch: cfg.routeMatch,
	}
}

func (m *Mux[H]) Add(pattern string, handler H) *Entry[H] {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	e := &Entry[H]{
		mux:     m,
		id:      m.nextID,
		pattern: pattern,
		Handler: handler,
	}

	_, known := m.handlers[pattern]
	m.handlers[pattern] = append(m.handlers[pattern], e)
	if !known {
		m.resort()
	}
	return e
}

// Get returns the handlers for topic. An exact registration wins,
// otherwise the first matching pattern in lexical order is used.
func (m *Mux[H]) Get(topic string) []*Entry[H] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.match(topic)
}

// Patterns lists registered patterns in lexical order.
func (m *Mux[H]) Patterns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.sorted...)
}

func (m *Mux[H]) match(topic string) []*Entry[H] {
	if o, ok := m.handlers[topic]; ok {
		return append([]*Entry[H](nil), o...)
	}

	for _, p := range m.sorted {
		if m.routeMatch(p, topic) {
			return append([]*Entry[H](nil), m.handlers[p]...)
		}
	}

	return nil
}

func (m *Mux[H]) resort() {
	keys := make([]string, 0, len(m.handlers))
	for k := range m.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m.sorted = keys
}
