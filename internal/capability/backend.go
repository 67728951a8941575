// Package capability provides the backend adapter contract and the
// priority-ordered fallback resolver that routes capability invocations
// to interchangeable backends.
package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// Backend wraps one concrete capability provider behind a uniform
// health/invoke contract. Implementations must be safe for concurrent use.
type Backend interface {
	// Name is the unique backend identifier within its capability chain.
	Name() string

	// Capability is the logical capability this backend serves.
	Capability() string

	// Health probes the provider. It must be fast and side-effect free;
	// a nil return means the backend can serve invocations.
	Health(ctx context.Context) error

	// Invoke performs one unit of work for the capability.
	Invoke(ctx context.Context, input types.State) (types.State, error)
}

// FailureKind classifies a backend-local failure inside a resolution.
type FailureKind string

const (
	FailureUnhealthy  FailureKind = "backend_unhealthy"
	FailureTimeout    FailureKind = "backend_timeout"
	FailureInvocation FailureKind = "backend_invocation_error"
)

// BackendFailure records why one backend in a chain was skipped.
type BackendFailure struct {
	Backend string      `json:"backend"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (f BackendFailure) String() string {
	return fmt.Sprintf("%s: %s (%s)", f.Backend, f.Message, f.Kind)
}

// AllBackendsError is returned when every backend in a capability chain was
// tried and none succeeded. Failures preserve chain order.
type AllBackendsError struct {
	Capability string
	Failures   []BackendFailure
}

func (e *AllBackendsError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("all backends failed for capability %q: %s",
		e.Capability, strings.Join(parts, "; "))
}

// UnknownCapabilityError is returned when no chain exists for a capability.
type UnknownCapabilityError struct {
	Capability string
}

func (e *UnknownCapabilityError) Error() string {
	return fmt.Sprintf("unknown capability %q", e.Capability)
}
