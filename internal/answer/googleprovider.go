package answer

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GoogleProvider wraps the Gemini SDK, generalized from
// internal/llm/google/client.go — the composer needs only plain text
// generation, so the tool-call/thought-summary handling there is dropped.
type GoogleProvider struct {
	name     string
	priority int
	model    string
	client   *genai.Client
}

// NewGoogleProvider constructs a provider. baseURL/httpClient, when non-empty/
// non-nil (used by tests), redirect the SDK at a substitute endpoint instead
// of the public Gemini API.
func NewGoogleProvider(ctx context.Context, name string, priority int, apiKey, model, baseURL string, httpClient *http.Client) (*GoogleProvider, error) {
	cfg := &genai.ClientConfig{APIKey: apiKey, HTTPClient: httpClient}
	if base := strings.TrimSpace(baseURL); base != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimSuffix(base, "/") + "/"}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init google client: %w", err)
	}
	return &GoogleProvider{name: name, priority: priority, model: model, client: client}, nil
}

func (p *GoogleProvider) Name() string       { return p.name }
func (p *GoogleProvider) Kind() ProviderKind { return KindDirect }
func (p *GoogleProvider) Priority() int      { return p.priority }

func (p *GoogleProvider) ChatStream(ctx context.Context, model string, messages []Message, onDelta func(StreamDelta)) (string, error) {
	if model == "" {
		model = p.model
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.RoleUser
		text := m.Content
		switch m.Role {
		case "assistant":
			role = genai.RoleModel
		case "system":
			text = "[system] " + text
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: text}}})
	}

	stream := p.client.Models.GenerateContentStream(ctx, model, contents, nil)
	for resp, err := range stream {
		if err != nil {
			return "", err
		}
		if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil && !part.Thought && part.Text != "" && onDelta != nil {
				onDelta(StreamDelta{Content: part.Text})
			}
		}
	}
	return "", nil
}

var _ Provider = (*GoogleProvider)(nil)
