package component

import (
	"context"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// Transcribe turns an audio file into a transcript via the
// transcribe-audio capability.
type Transcribe struct {
	invoker Invoker
}

func NewTranscribe(invoker Invoker) *Transcribe {
	return &Transcribe{invoker: invoker}
}

func (c *Transcribe) Run(ctx context.Context, state types.State) (types.State, error) {
	input := types.State{
		"audio_path": state["audio_path"],
	}
	if lang, ok := state["language"]; ok {
		input["language"] = lang
	}

	result, err := c.invoker.Invoke(ctx, types.CapabilityTranscribe, input)
	if err != nil {
		return nil, err
	}

	out := types.State{
		"transcript":         result.Output.String("transcript"),
		"transcribe_backend": result.Backend,
	}
	return carryDegraded(out, result), nil
}

func (c *Transcribe) ProducedKeys() []string {
	return []string{"transcript", "transcribe_backend", "degraded"}
}
