package component

import (
	"context"
	"fmt"
	"strings"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

const draftFollowupSystem = "You draft short follow-up emails after meetings. Use the summary, the action items and any related context provided. Reply with the email body only."

// DraftFollowup writes a follow-up email from the summary and action
// items, plus any retrieved context.
type DraftFollowup struct {
	invoker Invoker
}

func NewDraftFollowup(invoker Invoker) *DraftFollowup {
	return &DraftFollowup{invoker: invoker}
}

func (c *DraftFollowup) Run(ctx context.Context, state types.State) (types.State, error) {
	summary := state.String("summary")
	if summary == "" {
		return nil, fmt.Errorf("state has no summary to draft from")
	}

	var sb strings.Builder
	sb.WriteString("Summary:\n")
	sb.WriteString(summary)
	if actions, ok := state["action_items"].([]interface{}); ok && len(actions) > 0 {
		sb.WriteString("\n\nAction items:\n")
		for _, a := range actions {
			fmt.Fprintf(&sb, "- %v\n", a)
		}
	}
	if related := state.String("context"); related != "" {
		sb.WriteString("\nRelated context:\n")
		sb.WriteString(related)
	}

	result, err := c.invoker.Invoke(ctx, types.CapabilityGenerate, types.State{
		"system": draftFollowupSystem,
		"prompt": sb.String(),
	})
	if err != nil {
		return nil, err
	}

	out := types.State{
		"draft": result.Output.String("text"),
	}
	return carryDegraded(out, result), nil
}

func (c *DraftFollowup) ProducedKeys() []string {
	return []string{"draft", "degraded"}
}
