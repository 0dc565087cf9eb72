package clients

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms/googleai"
)

const (
	// DefaultModel is the default model to use if none is specified
	DefaultModel = "gemini-3-flash-preview"
	ProModel     = "gemini-3-pro-preview"
)

// GoogleAI returns a Gemini chat model. An empty model selects DefaultModel.
func GoogleAI(ctx context.Context, apiKey, model string) (*googleai.GoogleAI, error) {
	if apiKey == "" {
		return nil, errors.New("GOOGLE_API_KEY is not set")
	}
	if model == "" {
		model = DefaultModel
	}

	// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models
	return googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
}
