package layout

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

const sweeps = 4

// LayeredEngine is an in-process layered (Sugiyama style) engine over a
// gonum graph. It breaks cycles by depth-first search, assigns longest-path
// layers in topological order, orders each layer by barycenter sweeps and
// stacks disconnected components.
type LayeredEngine struct{}

func NewLayeredEngine() *LayeredEngine {
	return &LayeredEngine{}
}

type spacing struct {
	layers    float64
	nodes     float64
	component float64
	direction string
}

func readSpacing(opts map[string]string) spacing {
	s := spacing{
		layers:    140,
		nodes:     80,
		component: 120,
		direction: "RIGHT",
	}
	edgeNode := 60.0
	if v, ok := parseFloat(opts, OptSpacingBetweenLayers); ok {
		s.layers = v
	}
	if v, ok := parseFloat(opts, OptSpacingEdgeNodeLayers); ok {
		edgeNode = v
	}
	if v, ok := parseFloat(opts, OptSpacingNodeNode); ok {
		s.nodes = v
	}
	if v, ok := parseFloat(opts, OptSpacingComponentToComp); ok {
		s.component = v
	}
	// edges leave room on both sides of the layer gap
	if 2*edgeNode > s.layers {
		s.layers = 2 * edgeNode
	}
	if d := strings.ToUpper(strings.TrimSpace(opts[OptDirection])); d != "" {
		s.direction = d
	}
	return s
}

func parseFloat(opts map[string]string, key string) (float64, bool) {
	raw, ok := opts[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

type lgraph struct {
	boxes []Box
	index map[string]int
	g     *simple.DirectedGraph
}

// buildGraph indexes boxes by position. Self loops, duplicate edges and
// edges with unknown endpoints are dropped.
func buildGraph(req Request) *lgraph {
	g := &lgraph{
		boxes: req.Children,
		index: make(map[string]int, len(req.Children)),
		g:     simple.NewDirectedGraph(),
	}
	for i, b := range req.Children {
		g.g.AddNode(simple.Node(i))
		if _, dup := g.index[b.ID]; !dup {
			g.index[b.ID] = i
		}
	}
	for _, e := range req.Edges {
		for _, s := range e.Sources {
			from, ok := g.index[s]
			if !ok {
				continue
			}
			for _, t := range e.Targets {
				to, ok := g.index[t]
				if !ok || to == from {
					continue
				}
				g.g.SetEdge(g.g.NewEdge(simple.Node(from), simple.Node(to)))
			}
		}
	}
	return g
}

func nodeIDs(nodes graph.Nodes) []int {
	out := []int{}
	for nodes.Next() {
		out = append(out, int(nodes.Node().ID()))
	}
	sort.Ints(out)
	return out
}

func (g *lgraph) succ(n int) []int { return nodeIDs(g.g.From(int64(n))) }

func (g *lgraph) pred(n int) []int { return nodeIDs(g.g.To(int64(n))) }

// components returns node indices grouped by weakly connected component,
// in order of first appearance.
func (g *lgraph) components() [][]int {
	var out [][]int
	for _, comp := range topo.ConnectedComponents(graph.Undirect{G: g.g}) {
		members := make([]int, len(comp))
		for i, n := range comp {
			members[i] = int(n.ID())
		}
		sort.Ints(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// acyclic returns the successor lists of the component with back edges
// reversed.
func (g *lgraph) acyclic(members []int) map[int][]int {
	in := make(map[int]bool, len(members))
	for _, m := range members {
		in[m] = true
	}
	const (
		white = iota
		grey
		black
	)
	state := make(map[int]int, len(members))
	dag := make(map[int][]int, len(members))

	var visit func(n int)
	visit = func(n int) {
		state[n] = grey
		for _, m := range g.succ(n) {
			if !in[m] {
				continue
			}
			switch state[m] {
			case white:
				dag[n] = append(dag[n], m)
				visit(m)
			case grey:
				if !slices.Contains(dag[m], n) {
					dag[m] = append(dag[m], n)
				}
			default:
				dag[n] = append(dag[n], m)
			}
		}
		state[n] = black
	}

	// roots first so the natural flow direction is kept
	for _, m := range members {
		if len(g.pred(m)) == 0 && state[m] == white {
			visit(m)
		}
	}
	for _, m := range members {
		if state[m] == white {
			visit(m)
		}
	}
	return dag
}

// assignLayers puts every node one layer past its deepest predecessor.
func assignLayers(members []int, dag map[int][]int) map[int]int {
	d := simple.NewDirectedGraph()
	for _, m := range members {
		d.AddNode(simple.Node(m))
	}
	for n, ts := range dag {
		for _, t := range ts {
			d.SetEdge(d.NewEdge(simple.Node(n), simple.Node(t)))
		}
	}
	layer := make(map[int]int, len(members))
	order, err := topo.Sort(d)
	if err != nil {
		// unreachable: acyclic reverses every back edge
		return layer
	}
	for _, n := range order {
		from := int(n.ID())
		for _, t := range dag[from] {
			if layer[from]+1 > layer[t] {
				layer[t] = layer[from] + 1
			}
		}
	}
	return layer
}

func orderLayers(members []int, layer map[int]int, dag map[int][]int) [][]int {
	depth := 0
	for _, m := range members {
		if layer[m] > depth {
			depth = layer[m]
		}
	}
	layers := make([][]int, depth+1)
	for _, m := range members {
		layers[layer[m]] = append(layers[layer[m]], m)
	}

	up := map[int][]int{}
	for n, ts := range dag {
		for _, t := range ts {
			up[t] = append(up[t], n)
		}
	}

	pos := map[int]float64{}
	reindex := func(l []int) {
		for i, n := range l {
			pos[n] = float64(i)
		}
	}
	for _, l := range layers {
		reindex(l)
	}

	sortBy := func(l []int, neighbours map[int][]int) {
		bary := make(map[int]float64, len(l))
		for _, n := range l {
			ns := neighbours[n]
			if len(ns) == 0 {
				bary[n] = pos[n]
				continue
			}
			sum := 0.0
			for _, m := range ns {
				sum += pos[m]
			}
			bary[n] = sum / float64(len(ns))
		}
		sort.SliceStable(l, func(i, j int) bool {
			return bary[l[i]] < bary[l[j]]
		})
		reindex(l)
	}

	for i := 0; i < sweeps; i++ {
		for k := 1; k < len(layers); k++ {
			sortBy(layers[k], up)
		}
		for k := len(layers) - 2; k >= 0; k-- {
			sortBy(layers[k], dag)
		}
	}
	return layers
}

func (e *LayeredEngine) Layout(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	sp := readSpacing(req.LayoutOptions)
	g := buildGraph(req)
	horizontal := sp.direction == "RIGHT" || sp.direction == "LEFT"

	// main axis runs across layers, cross axis within a layer
	mainSize := func(b Box) float64 {
		if horizontal {
			return b.Width
		}
		return b.Height
	}
	crossSize := func(b Box) float64 {
		if horizontal {
			return b.Height
		}
		return b.Width
	}

	mainPos := make([]float64, len(g.boxes))
	crossPos := make([]float64, len(g.boxes))
	placed := make([]bool, len(g.boxes))

	offset := 0.0
	for _, members := range g.components() {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		dag := g.acyclic(members)
		layers := orderLayers(members, assignLayers(members, dag), dag)

		extents := make([]float64, len(layers))
		maxExtent := 0.0
		for k, l := range layers {
			for i, n := range l {
				if i > 0 {
					extents[k] += sp.nodes
				}
				extents[k] += crossSize(g.boxes[n])
			}
			if extents[k] > maxExtent {
				maxExtent = extents[k]
			}
		}

		along := 0.0
		for k, l := range layers {
			thickness := 0.0
			cross := offset + (maxExtent-extents[k])/2
			for _, n := range l {
				mainPos[n] = along
				crossPos[n] = cross
				placed[n] = true
				cross += crossSize(g.boxes[n]) + sp.nodes
				if s := mainSize(g.boxes[n]); s > thickness {
					thickness = s
				}
			}
			along += thickness + sp.layers
		}
		offset += maxExtent + sp.component
	}

	maxMain := 0.0
	for i, b := range g.boxes {
		if end := mainPos[i] + mainSize(b); end > maxMain {
			maxMain = end
		}
	}

	out := Result{Children: make([]Box, 0, len(g.boxes))}
	for i, b := range g.boxes {
		res := Box{ID: b.ID, Width: b.Width, Height: b.Height}
		if placed[i] {
			m := mainPos[i]
			if sp.direction == "LEFT" || sp.direction == "UP" {
				m = maxMain - m - mainSize(b)
			}
			x, y := m, crossPos[i]
			if !horizontal {
				x, y = crossPos[i], m
			}
			res.X, res.Y = &x, &y
		}
		out.Children = append(out.Children, res)
	}
	return out, nil
}
