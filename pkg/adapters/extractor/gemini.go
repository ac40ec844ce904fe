package extractor

import (
	"context"
	"fmt"

	"github.com/aretw0/tripflow/pkg/domain"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini classifies utterances with a JSON response schema, so the model
// cannot answer outside the expected shape.
type Gemini struct {
	client *genai.Client
	opts   Options
}

// NewGemini creates a Gemini extractor.
func NewGemini(ctx context.Context, optFns ...func(o *Options)) (*Gemini, error) {
	opts := defaults(DefaultGeminiModel, optFns)

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{client: client, opts: opts}, nil
}

// Classify implements ports.Extractor.
func (m *Gemini) Classify(ctx context.Context, transcript string, previous *domain.TripRecord) ([]byte, error) {
	user, err := m.opts.Prompt.User(transcript, previous)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(m.opts.Prompt.System(), genai.RoleUser),
		Temperature:       genai.Ptr(float32(m.opts.Temperature)),
		MaxOutputTokens:   int32(m.opts.MaxTokens),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini api error: %w", err)
	}
	return nonEmpty(resp.Text())
}

func responseSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	enum := func(values []string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Enum: values}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"intent":        enum(stringsOf(domain.Intents)),
			"source":        str("pickup place, English name"),
			"destination":   str("drop place, English name"),
			"tripType":      enum(stringsOf(domain.TripTypes)),
			"tripStartDate": str("dd/mm/yyyy hh:mm AM/PM"),
			"tripEndDate":   str("dd/mm/yyyy hh:mm AM/PM"),
			"preferences": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"vehicleType": enum(stringsOf(domain.VehicleTypes)),
					"language":    enum(stringsOf(domain.Languages)),
				},
			},
			"greeting":      {Type: genai.TypeBoolean},
			"generalQuery":  {Type: genai.TypeBoolean},
			"agentResponse": str("one short sentence for the caller"),
		},
		Required: []string{"intent"},
	}
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
