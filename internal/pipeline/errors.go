package pipeline

import (
	"fmt"
	"strings"
)

// CycleError is a registration-time error reporting a cycle in a graph.
type CycleError struct {
	Graph string
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("graph %q contains a cycle through: %s", e.Graph, strings.Join(e.Nodes, " -> "))
}

// ValidationError is a registration-time error for an invalid graph
// definition other than a cycle.
type ValidationError struct {
	Graph   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("graph %q: %s", e.Graph, e.Message)
}

// NoMatchingEdgeError is returned when a node finishes and none of its
// outgoing edges match the current state. A node with no edges terminates
// normally; having edges but no match is a configuration error.
type NoMatchingEdgeError struct {
	Graph string
	Node  string
}

func (e *NoMatchingEdgeError) Error() string {
	return fmt.Sprintf("graph %q: no matching edge out of node %q", e.Graph, e.Node)
}

// MissingStateKeyError is returned when an edge predicate references a
// state key that no executed node has written.
type MissingStateKeyError struct {
	Graph      string
	Node       string
	Expression string
	Cause      error
}

func (e *MissingStateKeyError) Error() string {
	return fmt.Sprintf("graph %q node %q: predicate %q references missing state: %v",
		e.Graph, e.Node, e.Expression, e.Cause)
}

func (e *MissingStateKeyError) Unwrap() error { return e.Cause }

// NodeError wraps a component failure with its node position.
type NodeError struct {
	Graph string
	Node  string
	Cause error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("graph %q node %q: %v", e.Graph, e.Node, e.Cause)
}

func (e *NodeError) Unwrap() error { return e.Cause }
