package answer

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider wraps the Anthropic messages SDK, generalized from
// internal/llm/anthropic/client.go's streaming loop (dropping the
// tool-call/thinking-block accumulation that composer doesn't need — the
// answer core only ever asks for a single text completion over retrieved
// context, never tool use).
type AnthropicProvider struct {
	name      string
	priority  int
	model     string
	maxTokens int64
	sdk       anthropic.Client
}

// NewAnthropicProvider constructs a provider. baseURL empty means the public
// Anthropic API; a non-empty value (used by tests) points the SDK elsewhere.
func NewAnthropicProvider(name string, priority int, apiKey, model string, maxTokens int64, baseURL string) *AnthropicProvider {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{
		name: name, priority: priority, model: model, maxTokens: maxTokens,
		sdk: anthropic.NewClient(opts...),
	}
}

func (p *AnthropicProvider) Name() string       { return p.name }
func (p *AnthropicProvider) Kind() ProviderKind { return KindDirect }
func (p *AnthropicProvider) Priority() int      { return p.priority }

func (p *AnthropicProvider) ChatStream(ctx context.Context, model string, messages []Message, onDelta func(StreamDelta)) (string, error) {
	if model == "" {
		model = p.model
	}

	var system string
	converted := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = m.Content
		case "assistant":
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  converted,
		MaxTokens: p.maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := p.sdk.Messages.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	var acc anthropic.Message
	for stream.Next() {
		event := stream.Current()
		_ = acc.Accumulate(event)
		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && onDelta != nil {
				onDelta(StreamDelta{Content: text.Text})
			}
		}
	}
	if err := stream.Err(); err != nil {
		return acc.ID, err
	}
	return acc.ID, nil
}

var _ Provider = (*AnthropicProvider)(nil)
