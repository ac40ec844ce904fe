// Package extractor implements ports.Extractor on top of hosted language models.
//
// Every provider sends the same Prompt and returns the model's raw text; the
// reducer owns parsing and validation.
package extractor

import (
	"context"
	"errors"
	"strings"

	"github.com/aretw0/tripflow/pkg/domain"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("model returned no content")

// Options configure a provider adapter.
type Options struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int64
	Prompt      Prompt
}

// Func adapts a plain function to ports.Extractor.
type Func func(ctx context.Context, transcript string, previous *domain.TripRecord) ([]byte, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, transcript string, previous *domain.TripRecord) ([]byte, error) {
	return f(ctx, transcript, previous)
}

func defaults(model string, optFns []func(o *Options)) Options {
	opts := Options{
		Model:       model,
		Temperature: 0,
		MaxTokens:   1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

func nonEmpty(text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}
	return []byte(text), nil
}
