// Package analysis scans a checked-out repository and produces the structural
// summary that drives README generation.
package analysis

import (
	"maps"
	"slices"
)

// Summary is the structural description of one repository checkout.
type Summary struct {
	ProjectName string   `json:"project_name"`
	Languages   []string `json:"languages"`
	// Dependencies is keyed by ecosystem ("python", "node", "go", ...).
	Dependencies map[string][]string `json:"dependencies"`
	// Infrastructure flags, e.g. "dockerfile", "docker_compose".
	Infrastructure map[string]bool `json:"infrastructure"`
	FileTree       []string        `json:"file_tree"`
	// Readme is the repository's own README, if any, truncated.
	Readme string `json:"readme,omitempty"`
}

// Normalized returns a deep copy with every list sorted, so two summaries with
// the same members compare and serialize identically.
func (s Summary) Normalized() Summary {
	out := Summary{
		ProjectName:    s.ProjectName,
		Languages:      sortedCopy(s.Languages),
		Dependencies:   make(map[string][]string, len(s.Dependencies)),
		Infrastructure: make(map[string]bool, len(s.Infrastructure)),
		FileTree:       sortedCopy(s.FileTree),
		Readme:         s.Readme,
	}
	for eco, deps := range s.Dependencies {
		out.Dependencies[eco] = sortedCopy(deps)
	}
	maps.Copy(out.Infrastructure, s.Infrastructure)
	return out
}

// Ecosystems returns dependency ecosystem names in sorted order.
func (s Summary) Ecosystems() []string {
	return slices.Sorted(maps.Keys(s.Dependencies))
}

// InfrastructureKeys returns infrastructure flag names in sorted order.
func (s Summary) InfrastructureKeys() []string {
	return slices.Sorted(maps.Keys(s.Infrastructure))
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	slices.Sort(out)
	return out
}
