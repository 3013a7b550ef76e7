// Package editor holds the editing session: the live graph for one flow,
// the actions that change it and the batched emission of the resulting
// document.
package editor

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/flow"
	"github.com/goliatone/go-flow-designer/form"
	"github.com/goliatone/go-flow-designer/graph"
	"github.com/goliatone/go-flow-designer/layout"
	"github.com/goliatone/go-flow-designer/runner"
)

// Session is the editing state of a single flow. All methods are safe for
// concurrent use; mutations are serialized and layout runs off-lock on a
// snapshot of the graph.
type Session struct {
	mu sync.Mutex

	id            string
	transformer   *graph.Transformer
	layout        *layout.Adapter
	layoutTimeout time.Duration
	runner        *runner.Handler
	gate          *runner.Gate
	logger        designer.Logger
	panics        designer.PanicLogger
	window        time.Duration
	batcher       *Batcher
	onChange      func(flow.Definition)
	onGraph       func(graph.Graph)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	loaded          bool
	flowID          string
	epoch           uint64
	graph           graph.Graph
	meta            graph.Meta
	layoutAttempted bool
	layouting       bool
	layoutEpoch     uint64
	revision        uint64
	saved           uint64
	closed          bool
}

func New(opts ...Option) *Session {
	s := &Session{
		id:            uuid.NewString(),
		logger:        designer.NormalizeLogger(nil),
		layoutTimeout: DefaultLayoutTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = designer.WithLoggerFields(s.logger, map[string]any{"session": s.id})
	if s.transformer == nil {
		s.transformer = graph.NewTransformer(graph.WithLogger(s.logger))
	}
	if s.layout == nil {
		s.layout = layout.NewAdapter(layout.WithLogger(s.logger))
	}
	s.panics = designer.LoggerPanicLogger(s.logger)
	s.runner = runner.NewHandler(
		runner.WithName("layout"),
		runner.WithTimeout(s.layoutTimeout),
		runner.WithLogger(s.logger),
	)
	s.batcher = NewBatcher(s.window, s.emit)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

func (s *Session) ID() string { return s.id }

// FlowID returns the id of the loaded flow, or "" before the first load.
func (s *Session) FlowID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flowID
}

func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Epoch increments on every load. Layout results computed for an older
// epoch are discarded.
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// LoadIfChanged loads def unless a flow with the same id is already loaded.
// It reports whether a load happened.
func (s *Session) LoadIfChanged(ctx context.Context, def flow.Definition) (bool, error) {
	s.mu.Lock()
	same := s.loaded && def.FlowID == s.flowID
	s.mu.Unlock()
	if same {
		s.logger.Debug("flow already loaded", "flow_id", def.FlowID)
		return false, nil
	}
	if err := s.Load(ctx, def); err != nil {
		return false, err
	}
	return true, nil
}

// Load replaces the session state with def. Nothing is emitted. When the
// nodes carry no positions an automatic layout starts in the background.
func (s *Session) Load(ctx context.Context, def flow.Definition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g, err := s.transformer.ToGraph(def)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed()
	}
	s.batcher.Cancel()
	s.loaded = true
	s.flowID = def.FlowID
	s.epoch++
	s.graph = g
	s.meta = graph.MetaOf(def)
	s.layoutAttempted = false
	s.revision = 0
	s.saved = 0
	needsLayout := !layout.IsLayoutInitialized(g.Nodes)
	epoch := s.epoch
	s.mu.Unlock()

	s.logger.Info("flow loaded", "flow_id", def.FlowID, "nodes", len(g.Nodes), "edges", len(g.Edges), "epoch", epoch)
	if needsLayout {
		s.autoLayout()
	}
	return nil
}

func (s *Session) autoLayout() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer designer.MakePanicHandler(s.panics)("editor.autoLayout")
		if _, err := s.RunLayout(s.ctx, false); err != nil {
			s.logger.Warn("automatic layout failed", "error", err)
		}
	}()
}

// RunLayout lays out every node. It returns false without error when a
// layout is already running for the current flow, when the automatic
// layout was already attempted for this load, or when the flow changed
// while the engine was working. Failures leave positions as they were.
func (s *Session) RunLayout(ctx context.Context, manual bool) (bool, error) {
	ran, err := s.runLayout(ctx, manual)
	if designer.HasCode(err, designer.CodeLayoutInProgress) {
		s.logger.Debug("layout already running, ignoring request", "manual", manual)
		return false, nil
	}
	return ran, err
}

// runLayout is RunLayout but reports a busy session as LAYOUT_IN_PROGRESS.
func (s *Session) runLayout(ctx context.Context, manual bool) (bool, error) {
	s.mu.Lock()
	if !s.loaded || s.closed {
		s.mu.Unlock()
		return false, nil
	}
	if s.layouting && s.layoutEpoch == s.epoch {
		s.mu.Unlock()
		return false, designer.NewError("layout already running", errors.CategoryConflict, designer.CodeLayoutInProgress,
			map[string]any{"flow_id": s.flowID})
	}
	if !manual {
		if s.layoutAttempted {
			s.mu.Unlock()
			return false, nil
		}
		s.layoutAttempted = true
	}
	s.layouting = true
	s.layoutEpoch = s.epoch
	epoch := s.epoch
	snapshot := s.graph.Clone()
	s.mu.Unlock()

	if s.gate != nil {
		s.gate.Pause()
		defer s.gate.Resume()
	}

	nodes, err := runner.RunQuery(ctx, s.runner, func(ctx context.Context) ([]graph.Node, error) {
		return s.layout.Apply(ctx, snapshot.Nodes, snapshot.Edges)
	})

	s.mu.Lock()
	if s.layoutEpoch == epoch {
		s.layouting = false
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("layout failed", "epoch", epoch, "error", err)
		return false, err
	}
	if s.epoch != epoch || s.closed {
		s.mu.Unlock()
		s.logger.Debug("discarding stale layout", "epoch", epoch)
		return false, nil
	}
	positions := make(map[string]flow.Position, len(nodes))
	for _, n := range nodes {
		positions[n.ID] = n.Position
	}
	g := s.graph.Clone()
	for i := range g.Nodes {
		if p, ok := positions[g.Nodes[i].ID]; ok {
			g.Nodes[i].Position = p
		}
	}
	s.graph = g
	s.revision++
	s.mu.Unlock()

	s.batcher.Mark()
	return true, nil
}

// Apply validates and runs action. A failing action leaves the session
// untouched.
func (s *Session) Apply(ctx context.Context, action Action) error {
	if err := designer.ValidateMessage(action); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed()
	}
	if !s.loaded {
		s.mu.Unlock()
		return designer.NewError("no flow loaded", errors.CategoryBadInput, designer.CodeFlowInvalid)
	}
	e := &edit{transformer: s.transformer, graph: s.graph.Clone(), meta: s.meta.Clone()}
	if err := action.apply(e); err != nil {
		s.mu.Unlock()
		s.logger.Warn("action rejected", "type", action.Type(), "error", err)
		return err
	}
	if e.layout {
		s.mu.Unlock()
		_, err := s.runLayout(ctx, true)
		return err
	}
	s.graph = e.graph
	s.meta = e.meta
	s.flowID = e.meta.FlowID
	s.revision++
	s.mu.Unlock()

	s.logger.Debug("action applied", "type", action.Type())
	s.batcher.Mark()
	return nil
}

// Document composes the flow document from the current state.
func (s *Session) Document() flow.Definition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transformer.ToDocumentFromGraph(s.meta, s.graph)
}

// Graph returns a copy of the current nodes and edges.
func (s *Session) Graph() graph.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Clone()
}

func (s *Session) Meta() graph.Meta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta.Clone()
}

// Diagnostics checks the current document.
func (s *Session) Diagnostics() []flow.Diagnostic {
	return graph.Diagnose(s.Document(), s.transformer.Registry())
}

// Form builds the property form of node id.
func (s *Session) Form(nodeID string) ([]form.FieldView, error) {
	s.mu.Lock()
	e := &edit{transformer: s.transformer, graph: s.graph, meta: s.meta}
	n, sch, err := e.schema(nodeID)
	vars := s.meta.Variables
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return form.Build(sch.Fields, n.Data.Properties, vars), nil
}

// Revision identifies a snapshot by the load it belongs to and the number
// of changes made since that load.
type Revision struct {
	Epoch uint64
	Seq   uint64
}

// Snapshot returns the current document with its revision. Pass the
// revision to MarkSaved once the document is persisted.
func (s *Session) Snapshot() (flow.Definition, Revision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transformer.ToDocumentFromGraph(s.meta, s.graph), Revision{Epoch: s.epoch, Seq: s.revision}
}

// MarkSaved records that rev has been persisted. Revisions taken before the
// current flow was loaded are ignored.
func (s *Session) MarkSaved(rev Revision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rev.Epoch != s.epoch {
		return
	}
	if rev.Seq > s.saved && rev.Seq <= s.revision {
		s.saved = rev.Seq
	}
}

// Dirty reports changes made since the last load or save.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded && s.revision != s.saved
}

// Flush emits pending changes now.
func (s *Session) Flush() {
	s.batcher.Flush()
}

// Wait blocks until background layout passes have finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close stops background work and flushes pending changes.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.batcher.Close()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Session) emit() {
	defer designer.MakePanicHandler(s.panics)("editor.emit", map[string]any{"flow_id": s.FlowID()})

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return
	}
	def := s.transformer.ToDocumentFromGraph(s.meta, s.graph)
	g := s.graph.Clone()
	s.mu.Unlock()

	if s.onGraph != nil {
		s.onGraph(g)
	}
	if s.onChange != nil {
		s.onChange(def)
	}
}

func errClosed() error {
	return designer.NewError("session closed", errors.CategoryConflict, designer.CodeInputInvalid)
}
