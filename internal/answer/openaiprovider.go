package answer

import (
	"context"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIProvider wraps the OpenAI chat-completions SDK. With a non-default
// BaseURL it also serves the OpenRouter aggregator and any OpenAI-compatible
// local server (llama.cpp, vLLM, LM Studio) — the same client, three kinds,
// generalized from internal/llm/openai/client.go's single-purpose Client.
type OpenAIProvider struct {
	name     string
	kind     ProviderKind
	priority int
	model    string
	sdk      sdk.Client
}

// NewOpenAIProvider constructs a provider. baseURL empty means the public
// OpenAI API; otherwise it points at an aggregator or self-hosted endpoint.
func NewOpenAIProvider(name string, kind ProviderKind, priority int, apiKey, baseURL, model string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{name: name, kind: kind, priority: priority, model: model, sdk: sdk.NewClient(opts...)}
}

func (p *OpenAIProvider) Name() string          { return p.name }
func (p *OpenAIProvider) Kind() ProviderKind    { return p.kind }
func (p *OpenAIProvider) Priority() int         { return p.priority }

func (p *OpenAIProvider) ChatStream(ctx context.Context, model string, messages []Message, onDelta func(StreamDelta)) (string, error) {
	if model == "" {
		model = p.model
	}
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(model),
		Messages: adaptMessages(messages),
	}

	stream := p.sdk.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	var responseID string
	for stream.Next() {
		chunk := stream.Current()
		if chunk.ID != "" {
			responseID = chunk.ID
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" && onDelta != nil {
				onDelta(StreamDelta{Content: choice.Delta.Content})
			}
		}
	}
	if err := stream.Err(); err != nil {
		return responseID, err
	}
	return responseID, nil
}

func adaptMessages(messages []Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, sdk.SystemMessage(m.Content))
		case "assistant":
			out = append(out, sdk.AssistantMessage(m.Content))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}
	return out
}

var _ Provider = (*OpenAIProvider)(nil)
