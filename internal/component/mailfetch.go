package component

import (
	"context"
	"fmt"
	"strings"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// MailFetch pulls recent messages through the mail-sync capability and
// flattens them into a transcript-shaped blob the rest of the email
// pipeline can summarize and index.
type MailFetch struct {
	invoker Invoker
}

func NewMailFetch(invoker Invoker) *MailFetch {
	return &MailFetch{invoker: invoker}
}

func (c *MailFetch) Run(ctx context.Context, state types.State) (types.State, error) {
	input := types.State{}
	if q, ok := state["query"]; ok {
		input["query"] = q
	}
	if n, ok := state["max_results"]; ok {
		input["max_results"] = n
	}

	result, err := c.invoker.Invoke(ctx, types.CapabilityMailSync, input)
	if err != nil {
		return nil, err
	}

	messages, _ := result.Output["messages"].([]interface{})
	var sb strings.Builder
	for i, m := range messages {
		entry, ok := m.(map[string]interface{})
		if !ok {
			continue
		}
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		if subject, ok := entry["subject"].(string); ok {
			fmt.Fprintf(&sb, "Subject: %s\n", subject)
		}
		if from, ok := entry["from"].(string); ok {
			fmt.Fprintf(&sb, "From: %s\n", from)
		}
		if body, ok := entry["body"].(string); ok && body != "" {
			sb.WriteString(body)
		} else if snippet, ok := entry["snippet"].(string); ok {
			sb.WriteString(snippet)
		}
	}

	out := types.State{
		"messages":      messages,
		"message_count": len(messages),
		"transcript":    sb.String(),
		"source":        "mail",
	}
	return carryDegraded(out, result), nil
}

func (c *MailFetch) ProducedKeys() []string {
	return []string{"messages", "message_count", "transcript", "source", "degraded"}
}
