package clients

import (
	"errors"

	"github.com/tmc/langchaingo/llms/anthropic"
)

const (
	Claude4Sonnet = "claude-sonnet-4-20250514"
	Claude4Opus   = "claude-opus-4-20250514"
	Claude35Haiku = "claude-3-5-haiku-20241022"
)

// AnthropicAI returns a Claude chat model. An empty model selects Claude4Sonnet.
func AnthropicAI(apiKey, model string) (*anthropic.LLM, error) {
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is not set")
	}
	if model == "" {
		model = Claude4Sonnet
	}
	return anthropic.New(anthropic.WithToken(apiKey), anthropic.WithModel(model))
}
