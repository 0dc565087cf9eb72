package embeddings

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const (
	DefaultGoogleModel = "gemini-embedding-001"
	DefaultDimension   = 768
	// maxBatch is the number of texts sent per EmbedContent call.
	maxBatch = 100
)

// GoogleEmbedder wraps Gemini embeddings
type GoogleEmbedder struct {
	client *genai.Client
	model  string
	dim    int
}

// NewGoogleEmbedder creates a Gemini embedder producing vectors of the given dimension.
func NewGoogleEmbedder(ctx context.Context, model, apiKey string, dim int) (*GoogleEmbedder, error) {
	if model == "" {
		model = DefaultGoogleModel
	}
	if dim <= 0 {
		dim = DefaultDimension
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings client: %w", err)
	}

	return &GoogleEmbedder{
		client: client,
		model:  model,
		dim:    dim,
	}, nil
}

func (e *GoogleEmbedder) Dimension() int { return e.dim }
func (e *GoogleEmbedder) Model() string  { return e.model }

// EmbedTexts generates embeddings for multiple texts, batching requests.
func (e *GoogleEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, 0, len(texts))
	outputDim := int32(e.dim)

	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			contents = append(contents, &genai.Content{
				Parts: []*genai.Part{{Text: text}},
			})
		}

		res, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
			OutputDimensionality: &outputDim,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to embed texts: %w", err)
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("expected %d embeddings, got %d", end-start, len(res.Embeddings))
		}
		for _, emb := range res.Embeddings {
			if len(emb.Values) == 0 {
				return nil, errors.New("gemini returned no embedding")
			}
			result = append(result, emb.Values)
		}
	}

	return result, nil
}
