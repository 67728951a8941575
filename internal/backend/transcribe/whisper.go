// Package transcribe provides the transcribe-audio backend adapter for a
// whisper HTTP server.
package transcribe

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

// WhisperOptions configure the whisper server adapter.
type WhisperOptions struct {
	Name     string
	Endpoint string
	Model    string
	Client   *http.Client
}

// Whisper talks to a whisper transcription server over HTTP.
type Whisper struct {
	opts   WhisperOptions
	client *http.Client
}

// NewWhisper creates the adapter.
func NewWhisper(optFns ...func(o *WhisperOptions)) *Whisper {
	opts := WhisperOptions{
		Name:     "whisper-http",
		Endpoint: "http://127.0.0.1:9090",
		Model:    "base",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Whisper{opts: opts, client: client}
}

func (b *Whisper) Name() string       { return b.opts.Name }
func (b *Whisper) Capability() string { return types.CapabilityTranscribe }

// Health hits the server's /health endpoint.
func (b *Whisper) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.opts.Endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("whisper server unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whisper server returned %d", resp.StatusCode)
	}
	return nil
}

type whisperRequest struct {
	AudioPath string `json:"audio_path"`
	Model     string `json:"model,omitempty"`
	Language  string `json:"language,omitempty"`
}

type whisperResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Invoke reads "audio_path" (and optional "language") from the input and
// writes "transcript" plus detected language and duration.
func (b *Whisper) Invoke(ctx context.Context, input types.State) (types.State, error) {
	audioPath := input.String("audio_path")
	if audioPath == "" {
		return nil, fmt.Errorf("input is missing audio_path")
	}

	body, err := json.Marshal(whisperRequest{
		AudioPath: audioPath,
		Model:     b.opts.Model,
		Language:  input.String("language"),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.opts.Endpoint+"/transcribe", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper transcribe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("whisper transcribe returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}

	result := types.State{
		"transcript": out.Text,
	}
	if out.Language != "" {
		result["language"] = out.Language
	}
	if out.Duration > 0 {
		result["duration_seconds"] = out.Duration
	}
	return result, nil
}
