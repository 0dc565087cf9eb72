package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// Role temperatures.
const (
	PlannerTemperature = 0.6
	WriterTemperature  = 0.5
	JudgeTemperature   = 0.7
)

const (
	ProviderGoogle    = "google"
	ProviderAnthropic = "anthropic"
)

// Chat completes single prompts against a langchaingo model.
type Chat struct {
	Model       llms.Model
	Temperature float64
	// MaxAttempts bounds retries of failed or empty generations. Zero means 3.
	MaxAttempts int
	Logger      *slog.Logger
}

// NewChat wraps model with the given sampling temperature.
func NewChat(model llms.Model, temperature float64, logger *slog.Logger) *Chat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chat{Model: model, Temperature: temperature, MaxAttempts: 3, Logger: logger}
}

// Invoke sends prompt as a single human message and returns the first choice.
func (c *Chat) Invoke(ctx context.Context, prompt string) (string, error) {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			c.logger().Warn("Retrying LLM generation", "attempt", i+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second * time.Duration(i)):
			}
		}

		resp, err := c.Model.GenerateContent(ctx, []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeHuman, prompt),
		}, llms.WithTemperature(c.Temperature))
		if err != nil {
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			if ctx.Err() != nil {
				return "", lastErr
			}
			continue
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
			lastErr = errors.New("llm returned no content")
			continue
		}
		return resp.Choices[0].Content, nil
	}

	return "", fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
}

func (c *Chat) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// NewModel builds a chat model for provider ("google" or "anthropic").
func NewModel(ctx context.Context, provider, apiKey, model string) (llms.Model, error) {
	switch strings.ToLower(provider) {
	case "", ProviderGoogle:
		return GoogleAI(ctx, apiKey, model)
	case ProviderAnthropic:
		return AnthropicAI(apiKey, model)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", provider)
	}
}
