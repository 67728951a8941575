package pipeline

import (
	"context"
	"fmt"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// Component is a named unit of pipeline work. Run receives the current
// state and returns a partial update to merge into it; it must not mutate
// the input state.
type Component interface {
	Run(ctx context.Context, state types.State) (types.State, error)
}

// ComponentFunc adapts a function to the Component interface.
type ComponentFunc func(ctx context.Context, state types.State) (types.State, error)

// Run calls the function.
func (f ComponentFunc) Run(ctx context.Context, state types.State) (types.State, error) {
	return f(ctx, state)
}

// KeyProducer is optionally implemented by components that can declare the
// state keys they write. Validation uses the declarations to check edge
// predicates statically; components that do not declare keys are skipped
// by that check.
type KeyProducer interface {
	ProducedKeys() []string
}

// node is a resolved graph node: its component plus outgoing edges.
type node struct {
	name      string
	component Component
	compName  string
	edges     []types.EdgeSpec
}

// Graph is a validated, executable component graph. Immutable after Build.
type Graph struct {
	name  string
	entry string
	nodes map[string]*node
	eval  *Evaluator
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Build resolves a graph spec against a component catalog and validates it.
// All configuration problems are reported at build time; a graph that
// builds cleanly cannot hit cycle or dangling-target errors at runtime.
func Build(spec *types.GraphSpec, components map[string]Component) (*Graph, error) {
	if spec.Name == "" {
		return nil, &ValidationError{Graph: spec.Name, Message: "graph name is required"}
	}
	if spec.Entry == "" {
		return nil, &ValidationError{Graph: spec.Name, Message: "entry node is required"}
	}
	if len(spec.Nodes) == 0 {
		return nil, &ValidationError{Graph: spec.Name, Message: "graph has no nodes"}
	}

	g := &Graph{
		name:  spec.Name,
		entry: spec.Entry,
		nodes: make(map[string]*node, len(spec.Nodes)),
		eval:  NewEvaluator(),
	}

	for _, ns := range spec.Nodes {
		if _, dup := g.nodes[ns.Name]; dup {
			return nil, &ValidationError{Graph: spec.Name, Message: fmt.Sprintf("duplicate node %q", ns.Name)}
		}
		comp, ok := components[ns.Component]
		if !ok {
			return nil, &ValidationError{Graph: spec.Name, Message: fmt.Sprintf("node %q references unknown component %q", ns.Name, ns.Component)}
		}
		g.nodes[ns.Name] = &node{
			name:      ns.Name,
			component: comp,
			compName:  ns.Component,
			edges:     ns.Edges,
		}
	}

	if _, ok := g.nodes[spec.Entry]; !ok {
		return nil, &ValidationError{Graph: spec.Name, Message: fmt.Sprintf("entry node %q does not exist", spec.Entry)}
	}

	if err := g.validateEdges(); err != nil {
		return nil, err
	}
	if err := g.validateReachable(); err != nil {
		return nil, err
	}
	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}
	if err := g.validatePredicateKeys(spec); err != nil {
		return nil, err
	}

	return g, nil
}

// validateEdges checks edge targets and compiles predicates.
func (g *Graph) validateEdges() error {
	for _, n := range g.nodes {
		for i, edge := range n.edges {
			if edge.Target != types.TerminalTarget {
				if _, ok := g.nodes[edge.Target]; !ok {
					return &ValidationError{Graph: g.name, Message: fmt.Sprintf("node %q edge %d targets unknown node %q", n.name, i, edge.Target)}
				}
			}
			if edge.When == "" {
				continue
			}
			if err := g.eval.Compile(edge.When); err != nil {
				return &ValidationError{Graph: g.name, Message: fmt.Sprintf("node %q edge %d: %v", n.name, i, err)}
			}
		}
	}
	return nil
}

// validateReachable checks that every node is reachable from the entry.
func (g *Graph) validateReachable() error {
	visited := make(map[string]bool, len(g.nodes))
	var walk func(name string)
	walk = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, edge := range g.nodes[name].edges {
			if edge.Target != types.TerminalTarget {
				walk(edge.Target)
			}
		}
	}
	walk(g.entry)

	for name := range g.nodes {
		if !visited[name] {
			return &ValidationError{Graph: g.name, Message: fmt.Sprintf("node %q is unreachable from entry %q", name, g.entry)}
		}
	}
	return nil
}

// validateAcyclic runs a three-color DFS and reports the first back edge.
func (g *Graph) validateAcyclic() error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(name string) *CycleError
	visit = func(name string) *CycleError {
		color[name] = grey
		stack = append(stack, name)
		for _, edge := range g.nodes[name].edges {
			if edge.Target == types.TerminalTarget {
				continue
			}
			switch color[edge.Target] {
			case grey:
				// Trim the stack to the cycle start for the error message.
				cycle := append([]string{}, stack...)
				for i, n := range cycle {
					if n == edge.Target {
						cycle = cycle[i:]
						break
					}
				}
				return &CycleError{Graph: g.name, Nodes: append(cycle, edge.Target)}
			case white:
				if err := visit(edge.Target); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return nil
	}

	for name := range g.nodes {
		if color[name] == white {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// validatePredicateKeys is the best-effort static check that predicates
// only reference keys an upstream node is guaranteed to have written (or
// that arrive in the entry payload). Components that do not declare their
// produced keys disable the check along their path.
func (g *Graph) validatePredicateKeys(spec *types.GraphSpec) error {
	available := make(map[string]bool, len(spec.InputKeys))
	allKnown := true
	for _, key := range spec.InputKeys {
		available[key] = true
	}

	// Walk from entry accumulating declared keys. Sequential traversal
	// means every executed node's keys are visible to everything downstream
	// on its path; a conservative union over all nodes keeps this simple.
	visited := make(map[string]bool, len(g.nodes))
	var walk func(name string) error
	walk = func(name string) error {
		if visited[name] {
			return nil
		}
		visited[name] = true
		n := g.nodes[name]

		if producer, ok := n.component.(KeyProducer); ok {
			for _, key := range producer.ProducedKeys() {
				available[key] = true
			}
		} else {
			allKnown = false
		}

		for _, edge := range n.edges {
			if edge.When != "" && allKnown {
				idents, err := Identifiers(edge.When)
				if err != nil {
					return &ValidationError{Graph: g.name, Message: err.Error()}
				}
				for _, ident := range idents {
					if !available[ident] {
						return &ValidationError{
							Graph:   g.name,
							Message: fmt.Sprintf("node %q predicate %q references key %q that no upstream node writes", name, edge.When, ident),
						}
					}
				}
			}
			if edge.Target != types.TerminalTarget {
				if err := walk(edge.Target); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(g.entry)
}
