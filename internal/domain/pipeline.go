package domain

import (
	"fmt"
	"regexp"
)

// PipelineNode is one wired step of a PipelineDAG (§3.1). Inputs map each
// declared input name to either a literal value or a template string that
// the Template Resolver rewrites at run time.
type PipelineNode struct {
	ID      string         `json:"id"` // sequential n1, n2, ... (§3.1 invariant)
	BlockID string         `json:"block_id"`
	Inputs  map[string]any `json:"inputs"`
}

// PipelineEdge is a directed dependency between two node ids.
type PipelineEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PipelineDAG is a wired automation (§3.1).
type PipelineDAG struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	UserPrompt string         `json:"user_prompt"`
	Nodes      []PipelineNode `json:"nodes"`
	Edges      []PipelineEdge `json:"edges"`
	MemoryKeys []string       `json:"memory_keys,omitempty"`
}

var sequentialNodeIDRe = regexp.MustCompile(`^n(\d+)$`)

// NodeByID returns the node with the given id, or (nil, false).
func (p *PipelineDAG) NodeByID(id string) (*PipelineNode, bool) {
	for i := range p.Nodes {
		if p.Nodes[i].ID == id {
			return &p.Nodes[i], true
		}
	}
	return nil, false
}

// Validate enforces the PipelineDAG invariants from §3.1: node ids are
// sequential n1,n2,...; every edge references existing nodes; the graph is
// acyclic. It does not check block_id resolution or template references —
// those require a registry/RunState and are checked by Wire and the Doer
// respectively.
func (p *PipelineDAG) Validate() error {
	seen := make(map[string]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		if n.ID == "" {
			return NewDomainError(ErrCodeInvalidInput, "pipeline node missing id", nil)
		}
		m := sequentialNodeIDRe.FindStringSubmatch(n.ID)
		if m == nil {
			return NewDomainError(ErrCodeInvalidInput, fmt.Sprintf("node id %q is not of the form n<seq>", n.ID), nil)
		}
		if seen[n.ID] {
			return NewDomainError(ErrCodeInvalidInput, fmt.Sprintf("duplicate node id %q", n.ID), nil)
		}
		seen[n.ID] = true
		if n.BlockID == "" {
			return NewDomainError(ErrCodeInvalidInput, fmt.Sprintf("node %q missing block_id", n.ID), nil)
		}
	}

	for _, e := range p.Edges {
		if !seen[e.From] {
			return NewDomainError(ErrCodeInvalidInput, fmt.Sprintf("edge references unknown node %q", e.From), nil)
		}
		if !seen[e.To] {
			return NewDomainError(ErrCodeInvalidInput, fmt.Sprintf("edge references unknown node %q", e.To), nil)
		}
	}

	if _, err := p.TopologicalLevels(); err != nil {
		return err
	}
	return nil
}

// TopologicalLevels groups node ids into level batches: level 0 has no
// predecessors, level k's nodes have all predecessors in levels < k. This is
// the "wave" the Doer executes concurrently per level (§4.4, §5). Returns
// CycleError if the graph is not acyclic.
func (p *PipelineDAG) TopologicalLevels() ([][]string, error) {
	indegree := make(map[string]int, len(p.Nodes))
	adj := make(map[string][]string, len(p.Nodes))
	for _, n := range p.Nodes {
		indegree[n.ID] = 0
	}
	for _, e := range p.Edges {
		indegree[e.To]++
		adj[e.From] = append(adj[e.From], e.To)
	}

	remaining := len(p.Nodes)
	var levels [][]string
	var frontier []string
	for id, d := range indegree {
		if d == 0 {
			frontier = append(frontier, id)
		}
	}

	for len(frontier) > 0 {
		levels = append(levels, frontier)
		remaining -= len(frontier)
		var next []string
		for _, id := range frontier {
			for _, dst := range adj[id] {
				indegree[dst]--
				if indegree[dst] == 0 {
					next = append(next, dst)
				}
			}
		}
		frontier = next
	}

	if remaining != 0 {
		return nil, CycleError(p.ID)
	}
	return levels, nil
}
