package component

import (
	"context"
	"fmt"
	"strings"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// Retrieve fetches related context from the vector store for the current
// summary (or an explicit query), feeding the follow-up draft.
type Retrieve struct {
	invoker Invoker
	topK    int
}

func NewRetrieve(invoker Invoker) *Retrieve {
	return &Retrieve{invoker: invoker, topK: 3}
}

func (c *Retrieve) Run(ctx context.Context, state types.State) (types.State, error) {
	query := state.String("query")
	if query == "" {
		query = state.String("summary")
	}
	if query == "" {
		return nil, fmt.Errorf("state has neither query nor summary to retrieve for")
	}

	result, err := c.invoker.Invoke(ctx, types.CapabilitySearch, types.State{
		"query": query,
		"top_k": c.topK,
	})
	if err != nil {
		return nil, err
	}

	var snippets []string
	if matches, ok := result.Output["matches"].([]interface{}); ok {
		for _, m := range matches {
			entry, ok := m.(map[string]interface{})
			if !ok {
				continue
			}
			if content, ok := entry["content"].(string); ok && content != "" {
				snippets = append(snippets, content)
			}
		}
	}

	out := types.State{
		"context":       strings.Join(snippets, "\n---\n"),
		"context_count": len(snippets),
	}
	return carryDegraded(out, result), nil
}

func (c *Retrieve) ProducedKeys() []string {
	return []string{"context", "context_count", "degraded"}
}

// IndexTranscript stores the transcript (or summary for mail) in the
// vector store so later retrievals can find it.
type IndexTranscript struct {
	invoker Invoker
}

func NewIndexTranscript(invoker Invoker) *IndexTranscript {
	return &IndexTranscript{invoker: invoker}
}

func (c *IndexTranscript) Run(ctx context.Context, state types.State) (types.State, error) {
	content := state.String("transcript")
	if content == "" {
		content = state.String("summary")
	}
	if content == "" {
		return nil, fmt.Errorf("state has nothing to index")
	}

	input := types.State{"content": content}
	metadata := map[string]interface{}{}
	if v := state.String("source"); v != "" {
		metadata["source"] = v
	}
	if v := state.String("audio_path"); v != "" {
		metadata["audio_path"] = v
	}
	if len(metadata) > 0 {
		input["metadata"] = metadata
	}

	result, err := c.invoker.Invoke(ctx, types.CapabilityIndex, input)
	if err != nil {
		return nil, err
	}

	out := types.State{
		"indexed":     true,
		"document_id": result.Output.String("id"),
	}
	return carryDegraded(out, result), nil
}

func (c *IndexTranscript) ProducedKeys() []string {
	return []string{"indexed", "document_id", "degraded"}
}
