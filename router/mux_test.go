package router

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMux_AddAndMatchExact(t *testing.T) {
	mux := NewMux[string]()

	mux.Add("editor.node.add", "add")
	mux.Add("editor.node.remove", "remove")

	matched := mux.Get("editor.node.add")
	require.Len(t, matched, 1)
	assert.Equal(t, "add", matched[0].Handler)

	matched = mux.Get("editor.node.remove")
	require.Len(t, matched, 1)
	assert.Equal(t, "remove", matched[0].Handler)

	assert.Empty(t, mux.Get("editor.edge.add"))
}

func TestMux_WildcardPatterns(t *testing.T) {
	mux := NewMux[string]()

	mux.Add("editor.*.add", "adder")
	mux.Add("host.#", "host")

	matched := mux.Get("editor.edge.add")
	require.Len(t, matched, 1)
	assert.Equal(t, "adder", matched[0].Handler)

	matched = mux.Get("host.init.flow")
	require.Len(t, matched, 1)
	assert.Equal(t, "host", matched[0].Handler)

	assert.Empty(t, mux.Get("editor.edge.remove"))
}

func TestMux_ExactBeatsWildcard(t *testing.T) {
	mux := NewMux[string]()
	mux.Add("editor.#", "fallback")
	mux.Add("editor.layout.run", "layout")

	matched := mux.Get("editor.layout.run")
	require.Len(t, matched, 1)
	assert.Equal(t, "layout", matched[0].Handler)
}

func TestMux_Unsubscribe(t *testing.T) {
	mux := NewMux[string]()

	mux.Add("editor.node.add", "handler1")
	entry2 := mux.Add("editor.node.add", "handler2")
	mux.Add("editor.node.add", "handler3")

	assert.Len(t, mux.Get("editor.node.add"), 3)

	entry2.Unsubscribe()

	matched := mux.Get("editor.node.add")
	require.Len(t, matched, 2)
	assert.Equal(t, "handler1", matched[0].Handler)
	assert.Equal(t, "handler3", matched[1].Handler)
}

func TestMux_UnsubscribeFunctionHandlers(t *testing.T) {
	mux := NewMux[func() string]()

	a := mux.Add("editor.node.add", func() string { return "a" })
	mux.Add("editor.node.add", func() string { return "b" })

	a.Unsubscribe()
	matched := mux.Get("editor.node.add")
	require.Len(t, matched, 1)
	assert.Equal(t, "b", matched[0].Handler())

	matched[0].Unsubscribe()
	assert.Empty(t, mux.Get("editor.node.add"))
	assert.Empty(t, mux.Patterns())
}

func TestMux_WithCustomMatcher(t *testing.T) {
	mux := NewMux[string](WithRouteMatcher(func(pattern, topic string) bool {
		return strings.HasPrefix(pattern, topic)
	}))

	mux.Add("custom.path", "handler")

	matched := mux.Get("custom")
	require.Len(t, matched, 1)
	assert.Equal(t, "handler", matched[0].Handler)

	assert.Empty(t, mux.Get("different"))
}

func TestMux_ConcurrentAccess(t *testing.T) {
	mux := NewMux[string]()

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mux.Add("editor.node.move", "handler")
			mux.Get("editor.node.move")
		}()
	}
	wg.Wait()

	matched := mux.Get("editor.node.move")
	assert.Len(t, matched, 100)
	assert.Equal(t, []string{"editor.node.move"}, mux.Patterns())
}
