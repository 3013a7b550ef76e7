package graph

import (
	"fmt"

	"github.com/goliatone/go-flow-designer/flow"
)

// UniqueNodeID returns "<type>_<n>" for the smallest n >= 1 not in use.
// Gaps left by deleted nodes are reused.
func UniqueNodeID(typ flow.NodeType, nodes []Node) string {
	used := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		used[n.ID] = struct{}{}
	}
	return smallestFree(string(typ)+"_", used)
}

// UniqueEdgeID returns "e<n>" for the smallest n >= 1 not in use. Ids of
// parallel groups count as used so a new edge never collides with one.
func UniqueEdgeID(edges []Edge) string {
	used := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		used[e.ID] = struct{}{}
		if e.Data.ParallelGroup != "" {
			used[e.Data.ParallelGroup] = struct{}{}
		}
	}
	return smallestFree("e", used)
}

func smallestFree(prefix string, used map[string]struct{}) string {
	for n := 1; ; n++ {
		id := fmt.Sprintf("%s%d", prefix, n)
		if _, ok := used[id]; !ok {
			return id
		}
	}
}
