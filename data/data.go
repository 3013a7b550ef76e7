// Package data ships the flows embedded in the binary.
package data

import (
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/goliatone/go-flow-designer/flow"
)

// SampleFlowID is the flow loaded when nothing else is provided.
const SampleFlowID = "credit_application_flow"

//go:embed flows
var embeddedFS embed.FS

// FlowsFS returns the embedded flow documents rooted at `data/flows`.
func FlowsFS() fs.FS {
	sub, err := fs.Sub(embeddedFS, "flows")
	if err != nil {
		return embeddedFS
	}
	return sub
}

// Names lists the ids of the embedded flows.
func Names() []string {
	entries, err := fs.ReadDir(FlowsFS(), ".")
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".json" {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(out)
	return out
}

// Raw returns the document bytes of embedded flow id.
func Raw(id string) ([]byte, error) {
	return fs.ReadFile(FlowsFS(), id+".json")
}

// Load parses and validates embedded flow id.
func Load(id string) (flow.Definition, error) {
	raw, err := Raw(id)
	if err != nil {
		return flow.Definition{}, err
	}
	return flow.Parse(raw)
}

// SampleFlow returns the default sample document.
func SampleFlow() (flow.Definition, error) {
	return Load(SampleFlowID)
}
