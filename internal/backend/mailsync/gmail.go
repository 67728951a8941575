// Package mailsync provides the mail-sync backend adapter for the Gmail
// REST API.
package mailsync

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

const gmailAPIBase = "https://gmail.googleapis.com/gmail/v1/users/me"

// GmailOptions configure the Gmail adapter.
type GmailOptions struct {
	Name        string
	TokenSource oauth2.TokenSource
	BaseURL     string
}

// Gmail syncs recent messages through the Gmail REST API using an OAuth2
// token source.
type Gmail struct {
	opts   GmailOptions
	client *http.Client
}

// NewGmail creates the adapter. The token source must be non-nil; refresh
// is handled by the oauth2 transport.
func NewGmail(optFns ...func(o *GmailOptions)) (*Gmail, error) {
	opts := GmailOptions{
		Name:    "gmail",
		BaseURL: gmailAPIBase,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.TokenSource == nil {
		return nil, fmt.Errorf("gmail backend requires an oauth2 token source")
	}
	return &Gmail{
		opts:   opts,
		client: oauth2.NewClient(context.Background(), opts.TokenSource),
	}, nil
}

func (b *Gmail) Name() string       { return b.opts.Name }
func (b *Gmail) Capability() string { return types.CapabilityMailSync }

// Health fetches the profile, which also validates the token.
func (b *Gmail) Health(ctx context.Context) error {
	var profile struct {
		EmailAddress string `json:"emailAddress"`
	}
	if err := b.get(ctx, "/profile", &profile); err != nil {
		return fmt.Errorf("gmail profile: %w", err)
	}
	return nil
}

type gmailMessageList struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type gmailMessage struct {
	ID      string `json:"id"`
	Snippet string `json:"snippet"`
	Payload struct {
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
		Body struct {
			Data string `json:"data"`
		} `json:"body"`
		Parts []struct {
			MimeType string `json:"mimeType"`
			Body     struct {
				Data string `json:"data"`
			} `json:"body"`
		} `json:"parts"`
	} `json:"payload"`
}

// Invoke reads optional "query" and "max_results" and writes "messages", a
// list of {id, subject, from, snippet, body}.
func (b *Gmail) Invoke(ctx context.Context, input types.State) (types.State, error) {
	maxResults := 10
	switch v := input["max_results"].(type) {
	case int:
		maxResults = v
	case float64:
		maxResults = int(v)
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	params := url.Values{}
	params.Set("maxResults", strconv.Itoa(maxResults))
	if q := input.String("query"); q != "" {
		params.Set("q", q)
	}

	var list gmailMessageList
	if err := b.get(ctx, "/messages?"+params.Encode(), &list); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]interface{}, 0, len(list.Messages))
	for _, ref := range list.Messages {
		var msg gmailMessage
		if err := b.get(ctx, "/messages/"+ref.ID+"?format=full", &msg); err != nil {
			return nil, fmt.Errorf("fetch message %s: %w", ref.ID, err)
		}

		entry := map[string]interface{}{
			"id":      msg.ID,
			"snippet": msg.Snippet,
		}
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "subject":
				entry["subject"] = h.Value
			case "from":
				entry["from"] = h.Value
			case "date":
				entry["date"] = h.Value
			}
		}
		if body := decodeBody(msg); body != "" {
			entry["body"] = body
		}
		messages = append(messages, entry)
	}

	return types.State{
		"messages": messages,
		"count":    len(messages),
	}, nil
}

func (b *Gmail) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.opts.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gmail api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeBody prefers the top-level body, then the first text/plain part.
func decodeBody(msg gmailMessage) string {
	if data := msg.Payload.Body.Data; data != "" {
		if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
			return string(decoded)
		}
	}
	for _, part := range msg.Payload.Parts {
		if part.MimeType != "text/plain" || part.Body.Data == "" {
			continue
		}
		if decoded, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
			return string(decoded)
		}
	}
	return ""
}
