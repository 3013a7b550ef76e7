package layout

import "context"

// Option keys understood by engines. Values follow the ELK option names so a
// request can be handed to an external ELK service unchanged.
const (
	OptAlgorithm              = "elk.algorithm"
	OptDirection              = "elk.direction"
	OptSpacingBetweenLayers   = "elk.layered.spacing.nodeNodeBetweenLayers"
	OptSpacingEdgeNodeLayers  = "elk.layered.spacing.edgeNodeBetweenLayers"
	OptSpacingNodeNode        = "elk.spacing.nodeNode"
	OptSpacingComponentToComp = "elk.spacing.componentComponent"
)

const (
	DefaultNodeWidth  = 240.0
	DefaultNodeHeight = 160.0
)

// DefaultOptions is the layered, left-to-right configuration used by the editor.
func DefaultOptions() map[string]string {
	return map[string]string{
		OptAlgorithm:              "layered",
		OptDirection:              "RIGHT",
		OptSpacingBetweenLayers:   "140",
		OptSpacingEdgeNodeLayers:  "60",
		OptSpacingNodeNode:        "80",
		OptSpacingComponentToComp: "120",
	}
}

// Box is a node in a layout request or result. X and Y are nil when the
// engine did not place the node.
type Box struct {
	ID     string   `json:"id"`
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Width  float64  `json:"width"`
	Height float64  `json:"height"`
}

type Link struct {
	ID      string   `json:"id"`
	Sources []string `json:"sources"`
	Targets []string `json:"targets"`
}

// Request is the graph handed to an engine.
type Request struct {
	ID            string            `json:"id"`
	LayoutOptions map[string]string `json:"layoutOptions,omitempty"`
	Children      []Box             `json:"children"`
	Edges         []Link            `json:"edges"`
}

type Result struct {
	Children []Box `json:"children"`
}

// Engine computes positions for a request.
type Engine interface {
	Layout(ctx context.Context, req Request) (Result, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, req Request) (Result, error)

func (f EngineFunc) Layout(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
