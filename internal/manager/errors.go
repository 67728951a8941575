package manager

import (
	"context"
	"errors"

	"github.com/integrated-assistant/mcp-go/internal/capability"
	"github.com/integrated-assistant/mcp-go/internal/pipeline"
)

// errorKind classifies an execution failure into the structured kind
// recorded on the task, so callers can branch without parsing messages.
func errorKind(err error) string {
	var (
		allBackends *capability.AllBackendsError
		unknownCap  *capability.UnknownCapabilityError
		noEdge      *pipeline.NoMatchingEdgeError
		missingKey  *pipeline.MissingStateKeyError
		nodeErr     *pipeline.NodeError
	)

	switch {
	case errors.As(err, &allBackends):
		return "all_backends_failed"
	case errors.As(err, &missingKey):
		return "missing_state_key"
	case errors.As(err, &noEdge):
		return "no_matching_edge"
	case errors.As(err, &unknownCap):
		return "configuration_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrUnknownTaskKind):
		return "unknown_task_kind"
	case errors.As(err, &nodeErr):
		return "component_error"
	default:
		return "internal_error"
	}
}
