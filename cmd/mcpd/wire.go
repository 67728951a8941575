package main

import (
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"golang.org/x/oauth2"

	"github.com/integrated-assistant/mcp-go/internal/backend/llm"
	"github.com/integrated-assistant/mcp-go/internal/backend/mailsync"
	"github.com/integrated-assistant/mcp-go/internal/backend/mock"
	"github.com/integrated-assistant/mcp-go/internal/backend/transcribe"
	"github.com/integrated-assistant/mcp-go/internal/backend/vector"
	"github.com/integrated-assistant/mcp-go/internal/capability"
	"github.com/integrated-assistant/mcp-go/internal/component"
	"github.com/integrated-assistant/mcp-go/internal/config"
	"github.com/integrated-assistant/mcp-go/internal/pipeline"
	"github.com/integrated-assistant/mcp-go/internal/registry"
	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// buildCatalog assembles backends, components and graphs from the wiring
// document into a validated catalog. Called at startup and on every reload.
func buildCatalog(cfg *config.Config, wiring *config.Wiring, invoker component.Invoker, store *vector.Store, logger *slog.Logger) (*registry.Catalog, error) {
	resolverCfg := &capability.Config{
		HealthTimeout:  cfg.HealthTimeout,
		InvokeTimeout:  cfg.InvokeTimeout,
		HealthCacheTTL: cfg.HealthCacheTTL,
	}
	builder := registry.NewBuilder(resolverCfg, logger)

	for _, chain := range wiring.Chains {
		for _, spec := range chain.Backends {
			if !spec.Enabled {
				continue
			}
			backend, err := buildBackend(cfg, spec, store)
			if err != nil {
				return nil, fmt.Errorf("backend %q: %w", spec.Name, err)
			}
			if err := builder.RegisterBackend(backend); err != nil {
				return nil, err
			}
		}
		if err := builder.RegisterChain(chain); err != nil {
			return nil, err
		}
	}

	for name, comp := range defaultComponents(invoker) {
		if err := builder.RegisterComponent(name, comp); err != nil {
			return nil, err
		}
	}

	for _, graph := range wiring.Graphs {
		if err := builder.RegisterGraph(graph); err != nil {
			return nil, err
		}
	}

	return builder.Build()
}

// buildBackend constructs one adapter from its wiring spec.
func buildBackend(cfg *config.Config, spec types.BackendSpec, store *vector.Store) (capability.Backend, error) {
	switch spec.Driver {
	case "openai":
		return llm.NewOpenAI(func(o *llm.OpenAIOptions) {
			o.Name = spec.Name
			o.APIKey = cfg.OpenAIAPIKey
			if spec.Model != "" {
				o.Model = spec.Model
			}
			if spec.Endpoint != "" {
				o.BaseURL = spec.Endpoint
			}
		}), nil

	case "anthropic":
		return llm.NewAnthropic(func(o *llm.AnthropicOptions) {
			o.Name = spec.Name
			o.APIKey = cfg.AnthropicAPIKey
			if spec.Model != "" {
				o.Model = anthropic.Model(spec.Model)
			}
		}), nil

	case "local-llm":
		return llm.NewLocal(func(o *llm.LocalOptions) {
			o.Name = spec.Name
			o.Endpoint = cfg.LocalLLMEndpoint
			o.Model = cfg.LocalLLMModel
			if spec.Endpoint != "" {
				o.Endpoint = spec.Endpoint
			}
			if spec.Model != "" {
				o.Model = spec.Model
			}
		}), nil

	case "whisper-http":
		return transcribe.NewWhisper(func(o *transcribe.WhisperOptions) {
			o.Name = spec.Name
			o.Endpoint = cfg.WhisperEndpoint
			if spec.Endpoint != "" {
				o.Endpoint = spec.Endpoint
			}
			if spec.Model != "" {
				o.Model = spec.Model
			}
		}), nil

	case "chromem":
		switch spec.Capability {
		case types.CapabilitySearch:
			return vector.NewSearchBackend(spec.Name, store), nil
		case types.CapabilityIndex:
			return vector.NewIndexBackend(spec.Name, store), nil
		default:
			return nil, fmt.Errorf("chromem driver does not serve capability %q", spec.Capability)
		}

	case "gmail":
		if cfg.GmailToken == "" {
			return nil, fmt.Errorf("gmail backend enabled but GMAIL_TOKEN is not set")
		}
		return mailsync.NewGmail(func(o *mailsync.GmailOptions) {
			o.Name = spec.Name
			o.TokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GmailToken})
		})

	case "mock":
		return mock.New(spec.Name, spec.Capability, nil), nil

	default:
		return nil, fmt.Errorf("unknown driver %q", spec.Driver)
	}
}

// defaultComponents wires the built-in pipeline components to the live
// resolver.
func defaultComponents(invoker component.Invoker) map[string]pipeline.Component {
	return map[string]pipeline.Component{
		"transcribe":       component.NewTranscribe(invoker),
		"summarize":        component.NewSummarize(invoker),
		"extract_actions":  component.NewExtractActions(invoker),
		"retrieve":         component.NewRetrieve(invoker),
		"draft_followup":   component.NewDraftFollowup(invoker),
		"index_transcript": component.NewIndexTranscript(invoker),
		"mail_fetch":       component.NewMailFetch(invoker),
	}
}
