// Package component holds the pipeline components used by the built-in
// graphs. Each component does one step: it reads a few state keys, calls a
// capability through the resolver, and writes its outputs back.
package component

import (
	"context"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// Invoker is the slice of the capability resolver components depend on.
type Invoker interface {
	Invoke(ctx context.Context, capability string, input types.State) (*types.Result, error)
}

// InvokerFunc adapts a function to the Invoker interface. Used in tests
// and for late binding against a reloadable catalog.
type InvokerFunc func(ctx context.Context, capability string, input types.State) (*types.Result, error)

func (f InvokerFunc) Invoke(ctx context.Context, capability string, input types.State) (*types.Result, error) {
	return f(ctx, capability, input)
}

// carryDegraded copies the degraded marker into the output so downstream
// edges and API consumers can see that a fallback served this step.
func carryDegraded(out types.State, result *types.Result) types.State {
	if result.Degraded {
		out["degraded"] = true
	}
	return out
}
