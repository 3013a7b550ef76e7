// Package layout computes node positions for the editor graph. The Adapter
// owns the translation between graph nodes and an engine request, and
// normalizes whatever the engine returns.
package layout

import (
	"context"
	"math"

	"github.com/goliatone/go-errors"
	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/graph"
)

type Adapter struct {
	engine        Engine
	logger        designer.Logger
	options       map[string]string
	defaultWidth  float64
	defaultHeight float64
}

type Option func(*Adapter)

func WithEngine(e Engine) Option {
	return func(a *Adapter) {
		if e != nil {
			a.engine = e
		}
	}
}

func WithLogger(l designer.Logger) Option {
	return func(a *Adapter) {
		a.logger = designer.NormalizeLogger(l)
	}
}

// WithDefaultSize sets the size used for nodes without a measured size.
func WithDefaultSize(width, height float64) Option {
	return func(a *Adapter) {
		if width > 0 {
			a.defaultWidth = width
		}
		if height > 0 {
			a.defaultHeight = height
		}
	}
}

// WithOption overrides a single engine option.
func WithOption(key, value string) Option {
	return func(a *Adapter) {
		a.options[key] = value
	}
}

func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		engine:        NewLayeredEngine(),
		logger:        designer.NormalizeLogger(nil),
		options:       DefaultOptions(),
		defaultWidth:  DefaultNodeWidth,
		defaultHeight: DefaultNodeHeight,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Request builds the engine request for nodes and edges. Edges whose
// endpoints are not in nodes are left out.
func (a *Adapter) Request(nodes []graph.Node, edges []graph.Edge) Request {
	req := Request{
		ID:            "root",
		LayoutOptions: make(map[string]string, len(a.options)),
		Children:      make([]Box, 0, len(nodes)),
		Edges:         make([]Link, 0, len(edges)),
	}
	for k, v := range a.options {
		req.LayoutOptions[k] = v
	}
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.ID] = true
		w, h := n.Width, n.Height
		if w <= 0 {
			w = a.defaultWidth
		}
		if h <= 0 {
			h = a.defaultHeight
		}
		req.Children = append(req.Children, Box{ID: n.ID, Width: w, Height: h})
	}
	for _, e := range edges {
		if !known[e.Source] || !known[e.Target] {
			continue
		}
		req.Edges = append(req.Edges, Link{
			ID:      e.ID,
			Sources: []string{e.Source},
			Targets: []string{e.Target},
		})
	}
	return req
}

// Apply lays out nodes and returns copies with new positions. Positions are
// shifted so the top-left placed node sits at the origin and rounded to two
// decimals. Nodes the engine did not place keep their position.
func (a *Adapter) Apply(ctx context.Context, nodes []graph.Node, edges []graph.Edge) ([]graph.Node, error) {
	if len(nodes) == 0 {
		return nodes, nil
	}

	res, err := a.engine.Layout(ctx, a.Request(nodes, edges))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		a.logger.Error("layout engine failed", "nodes", len(nodes), "error", err)
		return nil, errors.Wrap(err, errors.CategoryExternal, "layout engine failed").
			WithTextCode(designer.CodeLayoutFailed)
	}

	placed := make(map[string]Box, len(res.Children))
	minX, minY := math.Inf(1), math.Inf(1)
	for _, c := range res.Children {
		if c.X == nil || c.Y == nil {
			continue
		}
		placed[c.ID] = c
		minX = math.Min(minX, *c.X)
		minY = math.Min(minY, *c.Y)
	}
	if len(placed) == 0 {
		minX, minY = 0, 0
	}

	out := make([]graph.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n
		c, ok := placed[n.ID]
		if !ok {
			continue
		}
		out[i].Position.X = round2(*c.X - minX)
		out[i].Position.Y = round2(*c.Y - minY)
	}

	a.logger.Debug("layout applied", "nodes", len(nodes), "placed", len(placed))
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// IsLayoutInitialized reports whether nodes already carry a layout: the set
// is non-empty and no node sits at the origin.
func IsLayoutInitialized(nodes []graph.Node) bool {
	if len(nodes) == 0 {
		return false
	}
	for _, n := range nodes {
		if n.Position.X == 0 && n.Position.Y == 0 {
			return false
		}
	}
	return true
}
