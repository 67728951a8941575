package types

// GraphSpec describes a component graph as loaded from the wiring document.
// Nodes execute sequentially along the traversed path; edges carry optional
// predicates evaluated against the pipeline state.
type GraphSpec struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Entry       string     `json:"entry"`
	Nodes       []NodeSpec `json:"nodes"`

	// InputKeys lists state keys the caller is expected to supply in the
	// entry payload. Used by validation to resolve predicate references.
	InputKeys []string `json:"input_keys,omitempty"`
}

// NodeSpec is a named component plus its outgoing edges.
type NodeSpec struct {
	Name      string     `json:"name"`
	Component string     `json:"component"`
	Edges     []EdgeSpec `json:"edges,omitempty"`
}

// TerminalTarget is the reserved edge target that ends an execution.
const TerminalTarget = "terminal"

// EdgeSpec is an outgoing edge. An empty When predicate is unconditional
// and acts as the default edge. Target is either a node name or "terminal".
type EdgeSpec struct {
	When   string `json:"when,omitempty"`
	Target string `json:"target"`
}

// Node returns the node with the given name, or nil.
func (g *GraphSpec) Node(name string) *NodeSpec {
	for i := range g.Nodes {
		if g.Nodes[i].Name == name {
			return &g.Nodes[i]
		}
	}
	return nil
}
