package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aretw0/tripflow/pkg/domain"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// Anthropic classifies utterances through the Messages API.
type Anthropic struct {
	client *anthropic.Client
	opts   Options
}

// NewAnthropic creates an Anthropic extractor. Without an API key the client
// falls back to ANTHROPIC_API_KEY.
func NewAnthropic(optFns ...func(o *Options)) *Anthropic {
	opts := defaults(DefaultAnthropicModel, optFns)

	clientOpts := []option.RequestOption{option.WithMaxRetries(1)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Anthropic{client: &client, opts: opts}
}

// Classify implements ports.Extractor.
func (m *Anthropic) Classify(ctx context.Context, transcript string, previous *domain.TripRecord) ([]byte, error) {
	user, err := m.opts.Prompt.User(transcript, previous)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(m.opts.Model),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: m.opts.Prompt.System()}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	return nonEmpty(text.String())
}
