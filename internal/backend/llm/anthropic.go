package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// AnthropicOptions configure the Anthropic adapter.
type AnthropicOptions struct {
	Name      string
	Model     anthropic.Model
	MaxTokens int64
	APIKey    string
}

// Anthropic wraps the Anthropic Messages API behind the backend contract.
type Anthropic struct {
	client *anthropic.Client
	opts   AnthropicOptions
}

// NewAnthropic creates the adapter using the official client. An empty API
// key falls back to the SDK's environment lookup.
func NewAnthropic(optFns ...func(o *AnthropicOptions)) *Anthropic {
	opts := AnthropicOptions{
		Name:      "anthropic",
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Anthropic{client: &client, opts: opts}
}

func (b *Anthropic) Name() string       { return b.opts.Name }
func (b *Anthropic) Capability() string { return types.CapabilityGenerate }

// Health issues a minimal one-token request; the Messages API has no
// dedicated ping endpoint.
func (b *Anthropic) Health(ctx context.Context) error {
	_, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     b.opts.Model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("anthropic ping: %w", err)
	}
	return nil
}

// Invoke reads "prompt" (and optional "system") from the input and writes
// "text" plus the model used.
func (b *Anthropic) Invoke(ctx context.Context, input types.State) (types.State, error) {
	prompt := input.String("prompt")
	if prompt == "" {
		return nil, fmt.Errorf("input is missing prompt")
	}

	params := anthropic.MessageNewParams{
		Model:     b.opts.Model,
		MaxTokens: b.opts.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system := input.String("system"); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	return types.State{
		"text":  sb.String(),
		"model": string(b.opts.Model),
	}, nil
}
