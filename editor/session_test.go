package editor

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/flow"
	"github.com/goliatone/go-flow-designer/form"
	"github.com/goliatone/go-flow-designer/graph"
	"github.com/goliatone/go-flow-designer/layout"
)

func testFlow(id string, positioned bool) flow.Definition {
	pos := func(x, y float64) flow.Position {
		if !positioned {
			return flow.Position{}
		}
		return flow.Position{X: x, Y: y}
	}
	return flow.Definition{
		FlowID:  id,
		Name:    "Test " + id,
		Version: "1.0.0",
		Variables: map[string]flow.Variable{
			"user_name": {Name: "user_name", Type: flow.VariableTypeString},
		},
		Nodes: []flow.Node{
			{ID: "start", Type: flow.NodeTypeStart, Position: pos(10, 10), Properties: map[string]any{"title": "Start"}},
			{ID: "hello", Type: flow.NodeTypeMessage, Position: pos(300, 10), Properties: map[string]any{"message": "Hi {{user_name}}"}},
			{ID: "end", Type: flow.NodeTypeEnd, Position: pos(600, 10), Properties: map[string]any{}},
		},
		Edges: []flow.Edge{
			{ID: "e1", Type: flow.EdgeTypeDefault, Source: "start", Target: flow.SingleTarget("hello")},
			{ID: "e2", Type: flow.EdgeTypeDefault, Source: "hello", Target: flow.SingleTarget("end")},
		},
	}
}

func quietLogger() designer.Logger {
	return designer.NewFmtLogger(nil)
}

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	s := New(opts...)
	t.Cleanup(s.Close)
	return s
}

// blockingEngine parks every layout call until release is closed.
type blockingEngine struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	once    sync.Once
}

func newBlockingEngine() *blockingEngine {
	return &blockingEngine{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingEngine) Layout(ctx context.Context, req layout.Request) (layout.Result, error) {
	b.calls.Add(1)
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return layout.Result{}, ctx.Err()
	}
	return layout.NewLayeredEngine().Layout(ctx, req)
}

func TestLoadIfChangedSkipsLoadedFlow(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	loaded, err := s.LoadIfChanged(ctx, testFlow("a", true))
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, uint64(1), s.Epoch())

	loaded, err = s.LoadIfChanged(ctx, testFlow("a", true))
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, uint64(1), s.Epoch())

	loaded, err = s.LoadIfChanged(ctx, testFlow("b", true))
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "b", s.FlowID())
	assert.Equal(t, uint64(2), s.Epoch())
}

func TestLoadEmitsNothing(t *testing.T) {
	var changes atomic.Int32
	s := newTestSession(t, OnChange(func(flow.Definition) { changes.Add(1) }))

	require.NoError(t, s.Load(context.Background(), testFlow("a", true)))
	s.Flush()
	time.Sleep(20 * time.Millisecond)

	assert.Zero(t, changes.Load())
	assert.False(t, s.Dirty())
}

func TestLoadRunsAutomaticLayoutOnce(t *testing.T) {
	var calls atomic.Int32
	engine := layout.EngineFunc(func(ctx context.Context, req layout.Request) (layout.Result, error) {
		calls.Add(1)
		return layout.NewLayeredEngine().Layout(ctx, req)
	})
	s := newTestSession(t, WithLayout(layout.NewAdapter(layout.WithEngine(engine))))
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, testFlow("a", false)))
	s.Wait()

	require.Equal(t, int32(1), calls.Load())
	g := s.Graph()
	hello, _ := g.Node("hello")
	assert.Equal(t, flow.Position{X: 380, Y: 0}, hello.Position)

	ran, err := s.RunLayout(ctx, false)
	require.NoError(t, err)
	assert.False(t, ran, "automatic layout runs once per load")
	assert.Equal(t, int32(1), calls.Load())

	ran, err = s.RunLayout(ctx, true)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPositionedFlowSkipsAutomaticLayout(t *testing.T) {
	engine := newBlockingEngine()
	s := newTestSession(t, WithLayout(layout.NewAdapter(layout.WithEngine(engine))))

	require.NoError(t, s.Load(context.Background(), testFlow("a", true)))
	s.Wait()
	assert.Zero(t, engine.calls.Load())
}

func TestStaleLayoutIsDiscarded(t *testing.T) {
	engine := newBlockingEngine()
	s := newTestSession(t, WithLayout(layout.NewAdapter(layout.WithEngine(engine))))
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, testFlow("a", false)))
	<-engine.started

	require.NoError(t, s.Load(ctx, testFlow("b", true)))
	close(engine.release)
	s.Wait()

	g := s.Graph()
	hello, ok := g.Node("hello")
	require.True(t, ok)
	assert.Equal(t, flow.Position{X: 300, Y: 10}, hello.Position)
	assert.Equal(t, "b", s.FlowID())
	assert.False(t, s.Dirty())
}

func TestRunLayoutIgnoredWhileRunning(t *testing.T) {
	engine := newBlockingEngine()
	s := newTestSession(t, WithLayout(layout.NewAdapter(layout.WithEngine(engine))))
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, testFlow("a", false)))
	<-engine.started

	ran, err := s.RunLayout(ctx, true)
	require.NoError(t, err)
	assert.False(t, ran)

	close(engine.release)
	s.Wait()
	assert.Equal(t, int32(1), engine.calls.Load())

	ran, err = s.RunLayout(ctx, true)
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRunLayoutActionReportsBusySession(t *testing.T) {
	engine := newBlockingEngine()
	s := newTestSession(t, WithLayout(layout.NewAdapter(layout.WithEngine(engine))))
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, testFlow("a", false)))
	<-engine.started

	err := s.Apply(ctx, RunLayout{})
	require.Error(t, err)
	if !designer.HasCode(err, designer.CodeLayoutInProgress) {
		t.Fatalf("expected LAYOUT_IN_PROGRESS, got %v", err)
	}

	close(engine.release)
	s.Wait()
	assert.Equal(t, int32(1), engine.calls.Load(), "the busy request is not queued")

	require.NoError(t, s.Apply(ctx, RunLayout{}))
	assert.Equal(t, int32(2), engine.calls.Load())
}

func TestLayoutFailureKeepsPositions(t *testing.T) {
	engine := layout.EngineFunc(func(context.Context, layout.Request) (layout.Result, error) {
		return layout.Result{}, stderrors.New("engine down")
	})
	s := newTestSession(t, WithLayout(layout.NewAdapter(layout.WithEngine(engine))))
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, testFlow("a", false)))
	s.Wait()

	for _, n := range s.Graph().Nodes {
		assert.True(t, n.Position.IsZero(), "node %s moved", n.ID)
	}

	ran, err := s.RunLayout(ctx, true)
	assert.False(t, ran)
	require.Error(t, err)
	if !designer.HasCode(err, designer.CodeLayoutFailed) {
		t.Fatalf("expected LAYOUT_FAILED, got %v", err)
	}

	// the in-progress flag was reset
	_, err = s.RunLayout(ctx, true)
	require.Error(t, err)
}

func TestApplyCoalescesChanges(t *testing.T) {
	var mu sync.Mutex
	var docs []flow.Definition
	var graphs int
	s := newTestSession(t,
		WithBatchWindow(30*time.Millisecond),
		OnChange(func(def flow.Definition) {
			mu.Lock()
			docs = append(docs, def)
			mu.Unlock()
		}),
		OnGraph(func(graph.Graph) {
			mu.Lock()
			graphs++
			mu.Unlock()
		}),
	)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))

	require.NoError(t, s.Apply(ctx, MoveNode{NodeID: "hello", Position: flow.Position{X: 1, Y: 2}}))
	require.NoError(t, s.Apply(ctx, MoveNode{NodeID: "hello", Position: flow.Position{X: 3, Y: 4}}))
	require.NoError(t, s.Apply(ctx, UpdateProperty{NodeID: "hello", Path: form.P("title"), Value: "Greeting"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(docs) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, docs, 1)
	assert.Equal(t, 1, graphs)
	hello, ok := docs[0].NodeByID("hello")
	require.True(t, ok)
	assert.Equal(t, flow.Position{X: 3, Y: 4}, hello.Position)
	assert.Equal(t, "Greeting", hello.Properties["title"])
}

func TestFlushEmitsImmediately(t *testing.T) {
	var changes atomic.Int32
	s := newTestSession(t,
		WithBatchWindow(time.Hour),
		OnChange(func(flow.Definition) { changes.Add(1) }),
	)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))
	require.NoError(t, s.Apply(ctx, RemoveEdge{EdgeID: "e2"}))

	s.Flush()
	assert.Equal(t, int32(1), changes.Load())
}

func TestLoadDropsPendingEmission(t *testing.T) {
	var changes atomic.Int32
	s := newTestSession(t,
		WithBatchWindow(time.Hour),
		OnChange(func(flow.Definition) { changes.Add(1) }),
	)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))
	require.NoError(t, s.Apply(ctx, RemoveEdge{EdgeID: "e2"}))
	require.NoError(t, s.Load(ctx, testFlow("b", true)))

	s.Flush()
	assert.Zero(t, changes.Load())
}

func TestFailedActionLeavesStateUntouched(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	err := s.Apply(ctx, RemoveNode{NodeID: "hello"})
	require.Error(t, err, "actions need a loaded flow")

	require.NoError(t, s.Load(ctx, testFlow("a", true)))
	before := s.Document()

	err = s.Apply(ctx, RemoveNode{NodeID: "missing"})
	require.Error(t, err)
	assert.True(t, designer.HasCode(err, designer.CodeNodeNotFound))

	err = s.Apply(ctx, AddNode{NodeType: "teleport"})
	require.Error(t, err)
	assert.True(t, designer.HasCode(err, designer.CodeInvalidMessage))

	err = s.Apply(ctx, RemoveListItem{NodeID: "hello", Path: form.P("title"), Index: 0})
	require.Error(t, err)

	err = s.Apply(ctx, UpdateProperty{NodeID: "hello"})
	require.Error(t, err, "empty path")

	assert.Equal(t, before, s.Document())
	assert.False(t, s.Dirty())
}

func TestAddNodePlacement(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))

	require.NoError(t, s.Apply(ctx, AddNode{NodeType: flow.NodeTypeMessage}))
	require.NoError(t, s.Apply(ctx, AddNode{NodeType: flow.NodeTypeMessage, Position: &flow.Position{X: 5, Y: 6}}))

	g := s.Graph()
	first, ok := g.Node("message_1")
	require.True(t, ok)
	assert.Equal(t, DefaultPosition(3), first.Position)
	assert.Equal(t, flow.Position{X: 400, Y: 340}, first.Position)
	assert.Equal(t, "Hello! How can I help you?", first.Data.Properties["message"])
	assert.Equal(t, []string{"next"}, first.Data.Outputs)

	second, ok := g.Node("message_2")
	require.True(t, ok)
	assert.Equal(t, flow.Position{X: 5, Y: 6}, second.Position)

	err := s.Apply(ctx, AddNode{NodeType: flow.NodeTypeEnd, ID: "hello"})
	require.Error(t, err)
	assert.True(t, designer.HasCode(err, designer.CodeDuplicateNode))
}

func TestConnectAndRemove(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))

	require.NoError(t, s.Apply(ctx, Connect{graph.Connection{Source: "start", Target: "end"}}))
	g := s.Graph()
	require.Len(t, g.Edges, 3)
	assert.Equal(t, "e3", g.Edges[2].ID)

	err := s.Apply(ctx, Connect{graph.Connection{Source: "start", Target: "end"}})
	assert.True(t, designer.HasCode(err, designer.CodeDuplicateEdge))

	err = s.Apply(ctx, Connect{graph.Connection{Source: "hello", Target: "end", SourceHandle: "nope"}})
	assert.True(t, designer.HasCode(err, designer.CodeInvalidHandle))

	require.NoError(t, s.Apply(ctx, RemoveNode{NodeID: "hello"}))
	doc := s.Document()
	require.Len(t, doc.Edges, 1)
	assert.Equal(t, "e3", doc.Edges[0].ID)
}

func TestPropertyEditsDoNotLeak(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))
	require.NoError(t, s.Apply(ctx, AddNode{NodeType: flow.NodeTypeButton, ID: "choice"}))

	before := s.Document()
	require.NoError(t, s.Apply(ctx, UpdateProperty{NodeID: "choice", Path: form.P("buttons", 0, "text"), Value: "Loans"}))
	require.NoError(t, s.Apply(ctx, AppendListItem{NodeID: "choice", Path: form.P("buttons")}))

	old, _ := before.NodeByID("choice")
	buttons := old.Properties["buttons"].([]any)
	assert.Len(t, buttons, 2)
	assert.Equal(t, "Credit", buttons[0].(map[string]any)["text"])

	n, _ := s.Graph().Node("choice")
	buttons = n.Data.Properties["buttons"].([]any)
	require.Len(t, buttons, 3)
	assert.Equal(t, "Loans", buttons[0].(map[string]any)["text"])
	assert.Equal(t, "New Button", buttons[2].(map[string]any)["text"])
	assert.Equal(t, []string{"credit", "deposit", "option", "timeout"}, n.Data.Outputs)

	require.NoError(t, s.Apply(ctx, MoveListItem{NodeID: "choice", Path: form.P("buttons"), From: 2, To: 0}))
	require.NoError(t, s.Apply(ctx, RemoveListItem{NodeID: "choice", Path: form.P("buttons"), Index: 1}))
	n, _ = s.Graph().Node("choice")
	assert.Equal(t, []string{"option", "deposit", "timeout"}, n.Data.Outputs)
}

func TestInputProperty(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))

	require.NoError(t, s.Apply(ctx, InputProperty{NodeID: "hello", Path: form.P("delay"), Text: "250"}))
	n, _ := s.Graph().Node("hello")
	assert.Equal(t, float64(250), n.Data.Properties["delay"])

	require.NoError(t, s.Apply(ctx, InputProperty{NodeID: "hello", Path: form.P("delay"), Text: ""}))
	n, _ = s.Graph().Node("hello")
	_, ok := n.Data.Properties["delay"]
	assert.False(t, ok)

	err := s.Apply(ctx, InputProperty{NodeID: "hello", Path: form.P("nope"), Text: "1"})
	assert.True(t, designer.HasCode(err, designer.CodePathInvalid))
}

func TestKeyValueActions(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))
	require.NoError(t, s.Apply(ctx, AddNode{NodeType: flow.NodeTypeAPI, ID: "call"}))

	require.NoError(t, s.Apply(ctx, AddEntry{NodeID: "call", Path: form.P("headers")}))
	require.NoError(t, s.Apply(ctx, RenameKey{NodeID: "call", Path: form.P("headers"), OldKey: form.PlaceholderKey, NewKey: "X-Trace"}))

	n, _ := s.Graph().Node("call")
	headers := n.Data.Properties["headers"].(map[string]any)
	assert.Equal(t, form.PlaceholderValue, headers["X-Trace"])

	require.NoError(t, s.Apply(ctx, DeleteKey{NodeID: "call", Path: form.P("headers"), Key: "X-Trace"}))
	n, _ = s.Graph().Node("call")
	_, ok := n.Data.Properties["headers"].(map[string]any)["X-Trace"]
	assert.False(t, ok)
}

func TestReplaceAndUnsetProperties(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))

	props := map[string]any{"message": "Replaced", "delay": 5}
	require.NoError(t, s.Apply(ctx, ReplaceProperties{NodeID: "hello", Properties: props}))
	props["message"] = "mutated by caller"

	n, _ := s.Graph().Node("hello")
	assert.Equal(t, map[string]any{"message": "Replaced", "delay": float64(5)}, n.Data.Properties)

	require.NoError(t, s.Apply(ctx, UnsetProperty{NodeID: "hello", Path: form.P("delay")}))
	n, _ = s.Graph().Node("hello")
	assert.Equal(t, map[string]any{"message": "Replaced"}, n.Data.Properties)
}

func TestDecisionTreeActions(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))
	require.NoError(t, s.Apply(ctx, AddNode{NodeType: flow.NodeTypeDecisionTree, ID: "tree"}))

	n, _ := s.Graph().Node("tree")
	options := len(n.Data.Properties["tree"].(map[string]any)["options"].([]any))

	require.NoError(t, s.Apply(ctx, AddTreeOption{TreeEdit{NodeID: "tree", Path: form.P("tree")}}))
	n, _ = s.Graph().Node("tree")
	assert.Len(t, n.Data.Properties["tree"].(map[string]any)["options"].([]any), options+1)

	require.NoError(t, s.Apply(ctx, AddChildQuestion{TreeEdit{NodeID: "tree", Path: form.P("tree"), Index: 0}}))
	n, _ = s.Graph().Node("tree")
	first := n.Data.Properties["tree"].(map[string]any)["options"].([]any)[0].(map[string]any)
	assert.NotNil(t, first["children"])

	require.NoError(t, s.Apply(ctx, RemoveChildQuestion{TreeEdit{NodeID: "tree", Path: form.P("tree"), Index: 0}}))
	require.NoError(t, s.Apply(ctx, RemoveTreeOption{TreeEdit{NodeID: "tree", Path: form.P("tree"), Index: options}}))
	n, _ = s.Graph().Node("tree")
	assert.Len(t, n.Data.Properties["tree"].(map[string]any)["options"].([]any), options)
}

func TestMetaAndVariableActions(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))

	name := "Renamed"
	require.NoError(t, s.Apply(ctx, UpdateMeta{Name: &name, Triggers: []string{"loan"}}))
	require.NoError(t, s.Apply(ctx, SetVariable{Key: "amount", Variable: flow.Variable{Type: flow.VariableTypeNumber, Default: 10}}))
	require.NoError(t, s.Apply(ctx, RenameVariable{OldKey: "user_name", NewKey: "customer"}))

	doc := s.Document()
	assert.Equal(t, "Renamed", doc.Name)
	assert.Equal(t, "1.0.0", doc.Version)
	assert.Equal(t, []string{"loan"}, doc.Triggers)
	assert.Equal(t, flow.Variable{Name: "amount", Type: flow.VariableTypeNumber, Default: float64(10)}, doc.Variables["amount"])
	assert.Equal(t, "customer", doc.Variables["customer"].Name)
	_, ok := doc.Variables["user_name"]
	assert.False(t, ok)

	err := s.Apply(ctx, RenameVariable{OldKey: "amount", NewKey: "customer"})
	require.Error(t, err)
	err = s.Apply(ctx, RemoveVariable{Key: "ghost"})
	require.Error(t, err)
	err = s.Apply(ctx, SetVariable{Key: "bad", Variable: flow.Variable{Type: "money"}})
	assert.True(t, designer.HasCode(err, designer.CodeInvalidMessage))

	require.NoError(t, s.Apply(ctx, RemoveVariable{Key: "amount"}))
	assert.Len(t, s.Document().Variables, 1)
}

func TestUpdateMetaRenamesFlow(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))
	epoch := s.Epoch()

	renamed := "a_copy"
	require.NoError(t, s.Apply(ctx, UpdateMeta{FlowID: &renamed}))
	assert.Equal(t, "a_copy", s.FlowID())
	assert.Equal(t, "a_copy", s.Document().FlowID)

	loaded, err := s.LoadIfChanged(ctx, testFlow("a_copy", true))
	require.NoError(t, err)
	assert.False(t, loaded, "the renamed flow counts as loaded")
	assert.Equal(t, epoch, s.Epoch())

	blank := "  "
	err = s.Apply(ctx, UpdateMeta{FlowID: &blank})
	assert.True(t, designer.HasCode(err, designer.CodeInvalidMessage))
	assert.Equal(t, "a_copy", s.FlowID())
}

func TestRunLayoutAction(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))

	require.NoError(t, s.Apply(ctx, RunLayout{}))
	g := s.Graph()
	start, _ := g.Node("start")
	end, _ := g.Node("end")
	assert.Equal(t, flow.Position{X: 0, Y: 0}, start.Position)
	assert.Equal(t, flow.Position{X: 760, Y: 0}, end.Position)
	assert.True(t, s.Dirty())
}

func TestFormAndDiagnostics(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))

	views, err := s.Form("hello")
	require.NoError(t, err)
	require.NotEmpty(t, views)

	_, err = s.Form("ghost")
	assert.True(t, designer.HasCode(err, designer.CodeNodeNotFound))

	require.NoError(t, s.Apply(ctx, UpdateProperty{NodeID: "hello", Path: form.P("message"), Value: "Hi {{nobody}}"}))
	var found bool
	for _, d := range s.Diagnostics() {
		if d.Code == flow.DiagCodeUndefinedVariable {
			found = true
		}
	}
	assert.True(t, found, "expected undefined variable diagnostic")
}

func TestSnapshotAndMarkSaved(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))

	require.NoError(t, s.Apply(ctx, RemoveEdge{EdgeID: "e1"}))
	_, rev := s.Snapshot()
	require.NoError(t, s.Apply(ctx, RemoveEdge{EdgeID: "e2"}))

	s.MarkSaved(rev)
	assert.True(t, s.Dirty(), "a later change is still unsaved")

	_, rev = s.Snapshot()
	s.MarkSaved(rev)
	assert.False(t, s.Dirty())
}

func TestMarkSavedIgnoresEarlierLoad(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))
	require.NoError(t, s.Apply(ctx, RemoveEdge{EdgeID: "e1"}))
	_, rev := s.Snapshot()

	// another flow is loaded while the save of "a" is in flight
	require.NoError(t, s.Load(ctx, testFlow("b", true)))
	require.NoError(t, s.Apply(ctx, RemoveEdge{EdgeID: "e2"}))
	_, current := s.Snapshot()
	require.Equal(t, rev.Seq, current.Seq)

	s.MarkSaved(rev)
	assert.True(t, s.Dirty(), "edits to b are still unsaved")

	s.MarkSaved(current)
	assert.False(t, s.Dirty())
}

func TestEmitRecoversFromPanickingCallback(t *testing.T) {
	s := newTestSession(t, OnChange(func(flow.Definition) { panic("listener blew up") }))
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))
	require.NoError(t, s.Apply(ctx, RemoveEdge{EdgeID: "e1"}))

	assert.NotPanics(t, s.Flush)
}

func TestClosedSessionRejectsWork(t *testing.T) {
	s := New(WithLogger(quietLogger()))
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testFlow("a", true)))
	s.Close()
	s.Close()

	require.Error(t, s.Load(ctx, testFlow("b", true)))
	require.Error(t, s.Apply(ctx, RemoveEdge{EdgeID: "e1"}))
	ran, err := s.RunLayout(ctx, true)
	assert.False(t, ran)
	assert.NoError(t, err)
}
