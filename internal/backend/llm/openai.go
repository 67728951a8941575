// Package llm provides generate-text backend adapters over the OpenAI and
// Anthropic SDKs and over a local Ollama-style HTTP model server.
package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// OpenAIOptions configure the OpenAI adapter.
type OpenAIOptions struct {
	Name      string
	Model     string
	MaxTokens int64
	BaseURL   string
	APIKey    string
}

// OpenAI wraps the OpenAI Chat Completions API behind the backend contract.
type OpenAI struct {
	client openai.Client
	opts   OpenAIOptions
}

// NewOpenAI creates the adapter. An empty API key falls back to the SDK's
// environment lookup.
func NewOpenAI(optFns ...func(o *OpenAIOptions)) *OpenAI {
	opts := OpenAIOptions{
		Name:      "openai",
		Model:     openai.ChatModelGPT4oMini,
		MaxTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &OpenAI{client: openai.NewClient(clientOpts...), opts: opts}
}

func (b *OpenAI) Name() string       { return b.opts.Name }
func (b *OpenAI) Capability() string { return types.CapabilityGenerate }

// Health lists models as a cheap authenticated round trip.
func (b *OpenAI) Health(ctx context.Context) error {
	if _, err := b.client.Models.List(ctx); err != nil {
		return fmt.Errorf("openai models: %w", err)
	}
	return nil
}

// Invoke reads "prompt" (and optional "system") from the input and writes
// "text" plus the model used.
func (b *OpenAI) Invoke(ctx context.Context, input types.State) (types.State, error) {
	prompt := input.String("prompt")
	if prompt == "" {
		return nil, fmt.Errorf("input is missing prompt")
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if system := input.String("system"); system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               b.opts.Model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(b.opts.MaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	return types.State{
		"text":  resp.Choices[0].Message.Content,
		"model": b.opts.Model,
	}, nil
}
