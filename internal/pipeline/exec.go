package pipeline

import (
	"context"
	"time"

	"github.com/integrated-assistant/mcp-go/internal/metrics"
	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// Execute runs the graph from its entry node with the entry payload merged
// into a fresh state, and returns the final state. Nodes execute strictly
// sequentially along the traversed path; cancellation is observed at node
// boundaries.
func (g *Graph) Execute(ctx context.Context, entryPayload types.State) (types.State, error) {
	state := make(types.State, len(entryPayload))
	state.Merge(entryPayload)

	current := g.entry
	for {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		n := g.nodes[current]

		start := time.Now()
		update, err := n.component.Run(ctx, state)
		metrics.NodeDuration.WithLabelValues(g.name, n.name).Observe(time.Since(start).Seconds())
		if err != nil {
			return state, &NodeError{Graph: g.name, Node: n.name, Cause: err}
		}
		state.Merge(update)

		next, err := g.nextTarget(n, state)
		if err != nil {
			return state, err
		}
		if next == types.TerminalTarget {
			return state, nil
		}
		current = next
	}
}

// nextTarget evaluates the node's outgoing edges in declaration order and
// returns the first match. A node without edges terminates the execution.
func (g *Graph) nextTarget(n *node, state types.State) (string, error) {
	if len(n.edges) == 0 {
		return types.TerminalTarget, nil
	}

	env := map[string]interface{}(state)
	for _, edge := range n.edges {
		if edge.When == "" {
			return edge.Target, nil
		}
		ok, err := g.eval.EvaluateBool(edge.When, env)
		if err != nil {
			return "", &MissingStateKeyError{
				Graph:      g.name,
				Node:       n.name,
				Expression: edge.When,
				Cause:      err,
			}
		}
		if ok {
			return edge.Target, nil
		}
	}
	return "", &NoMatchingEdgeError{Graph: g.name, Node: n.name}
}
