package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// LocalOptions configure the local model server adapter.
type LocalOptions struct {
	Name     string
	Endpoint string
	Model    string
	Client   *http.Client
}

// Local talks to an Ollama-compatible model server over HTTP. It is the
// usual offline fallback behind the hosted providers.
type Local struct {
	opts   LocalOptions
	client *http.Client
}

// NewLocal creates the adapter. Endpoint defaults to the standard Ollama
// address.
func NewLocal(optFns ...func(o *LocalOptions)) *Local {
	opts := LocalOptions{
		Name:     "local-llm",
		Endpoint: "http://127.0.0.1:11434",
		Model:    "llama3.2",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &Local{opts: opts, client: client}
}

func (b *Local) Name() string       { return b.opts.Name }
func (b *Local) Capability() string { return types.CapabilityGenerate }

// Health hits the server root, which Ollama answers with 200.
func (b *Local) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.opts.Endpoint+"/", nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("local model server unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("local model server returned %d", resp.StatusCode)
	}
	return nil
}

type localGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type localGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Invoke posts to /api/generate without streaming and returns the full
// completion as "text".
func (b *Local) Invoke(ctx context.Context, input types.State) (types.State, error) {
	prompt := input.String("prompt")
	if prompt == "" {
		return nil, fmt.Errorf("input is missing prompt")
	}

	body, err := json.Marshal(localGenerateRequest{
		Model:  b.opts.Model,
		Prompt: prompt,
		System: input.String("system"),
		Stream: false,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.opts.Endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("local generate returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out localGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode local generate response: %w", err)
	}

	return types.State{
		"text":  out.Response,
		"model": b.opts.Model,
	}, nil
}
