// Package mock provides an always-healthy backend used as the last rung of
// fallback chains and in tests. Its output is tagged degraded by the chain
// configuration, never by the mock itself.
package mock

import (
	"context"
	"fmt"
	"time"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// Backend answers any invocation with a canned response.
type Backend struct {
	name       string
	capability string
	output     types.State
	delay      time.Duration
}

// New creates a mock serving the given capability. output is returned on
// every Invoke, merged with a marker describing what was mocked.
func New(name, capability string, output types.State) *Backend {
	if output == nil {
		output = types.State{}
	}
	return &Backend{name: name, capability: capability, output: output}
}

// WithDelay makes Invoke sleep before answering, for timeout tests.
func (b *Backend) WithDelay(d time.Duration) *Backend {
	b.delay = d
	return b
}

func (b *Backend) Name() string       { return b.name }
func (b *Backend) Capability() string { return b.capability }

func (b *Backend) Health(ctx context.Context) error { return nil }

func (b *Backend) Invoke(ctx context.Context, input types.State) (types.State, error) {
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out := b.output.Clone()
	if _, ok := out["mocked"]; !ok {
		out["mocked"] = true
	}
	if _, ok := out["text"]; !ok && b.capability == types.CapabilityGenerate {
		out["text"] = fmt.Sprintf("[mock %s output]", b.capability)
	}
	if _, ok := out["transcript"]; !ok && b.capability == types.CapabilityTranscribe {
		out["transcript"] = "[mock transcript unavailable]"
	}
	return out, nil
}
