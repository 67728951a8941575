package component

import (
	"context"
	"testing"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

func TestParseActionItems(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{
			name: "json array",
			text: `["send the deck", "book a room"]`,
			want: 2,
		},
		{
			name: "fenced json array",
			text: "```json\n[\"send the deck\"]\n```",
			want: 1,
		},
		{
			name: "empty array",
			text: `[]`,
			want: 0,
		},
		{
			name: "bullet list fallback",
			text: "- send the deck\n- book a room\n- follow up with legal",
			want: 3,
		},
		{
			name: "blank",
			text: "   ",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseActionItems(tt.text)
			if len(got) != tt.want {
				t.Errorf("parseActionItems(%q) = %v, want %d items", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractActions_SetsBranchKey(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		wantFlag bool
	}{
		{name: "with actions", reply: `["do the thing"]`, wantFlag: true},
		{name: "without actions", reply: `[]`, wantFlag: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoker := InvokerFunc(func(ctx context.Context, capability string, input types.State) (*types.Result, error) {
				if capability != types.CapabilityGenerate {
					t.Errorf("capability = %q, want %q", capability, types.CapabilityGenerate)
				}
				return &types.Result{Output: types.State{"text": tt.reply}, Backend: "fake"}, nil
			})

			out, err := NewExtractActions(invoker).Run(context.Background(), types.State{"summary": "notes"})
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if got := out.Bool("has_action_items"); got != tt.wantFlag {
				t.Errorf("has_action_items = %v, want %v", got, tt.wantFlag)
			}
		})
	}
}

func TestSummarize_RequiresTranscript(t *testing.T) {
	invoker := InvokerFunc(func(ctx context.Context, capability string, input types.State) (*types.Result, error) {
		t.Fatal("resolver must not be called without a transcript")
		return nil, nil
	})

	if _, err := NewSummarize(invoker).Run(context.Background(), types.State{}); err == nil {
		t.Error("expected error for missing transcript")
	}
}

func TestSummarize_CarriesDegradedFlag(t *testing.T) {
	invoker := InvokerFunc(func(ctx context.Context, capability string, input types.State) (*types.Result, error) {
		return &types.Result{
			Output:   types.State{"text": "short summary"},
			Backend:  "mock-generate",
			Degraded: true,
		}, nil
	})

	out, err := NewSummarize(invoker).Run(context.Background(), types.State{"transcript": "long transcript"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !out.Bool("degraded") {
		t.Error("degraded marker must be carried into the pipeline state")
	}
	if out.String("summary") != "short summary" {
		t.Errorf("summary = %q", out.String("summary"))
	}
}
