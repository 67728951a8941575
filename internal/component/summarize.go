package component

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

const summarizeSystem = "You summarize meeting transcripts. Reply with a concise summary covering decisions, open questions and next steps."

// Summarize condenses a transcript via the generate-text capability.
type Summarize struct {
	invoker Invoker
}

func NewSummarize(invoker Invoker) *Summarize {
	return &Summarize{invoker: invoker}
}

func (c *Summarize) Run(ctx context.Context, state types.State) (types.State, error) {
	transcript := state.String("transcript")
	if transcript == "" {
		return nil, fmt.Errorf("state has no transcript to summarize")
	}

	result, err := c.invoker.Invoke(ctx, types.CapabilityGenerate, types.State{
		"system": summarizeSystem,
		"prompt": transcript,
	})
	if err != nil {
		return nil, err
	}

	out := types.State{
		"summary": result.Output.String("text"),
	}
	return carryDegraded(out, result), nil
}

func (c *Summarize) ProducedKeys() []string {
	return []string{"summary", "degraded"}
}

const extractActionsSystem = `You extract action items from meeting summaries. Reply with a JSON array of strings, one per action item. Reply with [] if there are none.`

// ExtractActions pulls action items out of a summary and sets
// has_action_items for the follow-up branch.
type ExtractActions struct {
	invoker Invoker
}

func NewExtractActions(invoker Invoker) *ExtractActions {
	return &ExtractActions{invoker: invoker}
}

func (c *ExtractActions) Run(ctx context.Context, state types.State) (types.State, error) {
	summary := state.String("summary")
	if summary == "" {
		return nil, fmt.Errorf("state has no summary to extract actions from")
	}

	result, err := c.invoker.Invoke(ctx, types.CapabilityGenerate, types.State{
		"system": extractActionsSystem,
		"prompt": summary,
	})
	if err != nil {
		return nil, err
	}

	items := parseActionItems(result.Output.String("text"))
	actions := make([]interface{}, 0, len(items))
	for _, item := range items {
		actions = append(actions, item)
	}

	out := types.State{
		"action_items":     actions,
		"has_action_items": len(actions) > 0,
	}
	return carryDegraded(out, result), nil
}

func (c *ExtractActions) ProducedKeys() []string {
	return []string{"action_items", "has_action_items", "degraded"}
}

// parseActionItems accepts a JSON array, optionally wrapped in a markdown
// code fence, and falls back to line splitting for models that ignore the
// format instruction.
func parseActionItems(text string) []string {
	trimmed := strings.TrimSpace(text)
	if fenced := strings.TrimPrefix(trimmed, "```json"); fenced != trimmed {
		trimmed = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(fenced), "```"))
	} else if fenced := strings.TrimPrefix(trimmed, "```"); fenced != trimmed {
		trimmed = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(fenced), "```"))
	}

	var items []string
	if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
		return items
	}

	var out []string
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*• "))
		if line == "" || line == "[]" {
			continue
		}
		out = append(out, line)
	}
	return out
}
