package extractor

import (
	"context"
	"fmt"

	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI classifies utterances through the Chat Completions API.
type OpenAI struct {
	client *openai.Client
	opts   Options
}

// NewOpenAI creates an OpenAI extractor. Without an API key the client falls
// back to OPENAI_API_KEY.
func NewOpenAI(optFns ...func(o *Options)) *OpenAI {
	opts := defaults(DefaultOpenAIModel, optFns)

	clientOpts := []option.RequestOption{option.WithMaxRetries(1)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(clientOpts...)
	return &OpenAI{client: &client, opts: opts}
}

// Classify implements ports.Extractor.
func (m *OpenAI) Classify(ctx context.Context, transcript string, previous *domain.TripRecord) ([]byte, error) {
	user, err := m.opts.Prompt.User(transcript, previous)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(m.opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(m.opts.Prompt.System()),
			openai.UserMessage(user),
		},
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return nonEmpty(resp.Choices[0].Message.Content)
}
