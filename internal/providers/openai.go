package providers

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const openaiDefaultEmbModel = "text-embedding-3-small"

// OpenAIEmbedder implements Embedder over the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	limiter    *rate.Limiter
}

// NewOpenAIEmbedder creates an OpenAI embeddings provider.
func NewOpenAIEmbedder(cfg EmbedderConfig) *OpenAIEmbedder {
	model := cfg.Model
	if model == "" {
		model = openaiDefaultEmbModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 1536 // text-embedding-3-small default
	}

	var client *openai.Client
	if cfg.APIKey != "" {
		client = openai.NewClient(cfg.APIKey)
	}

	return &OpenAIEmbedder{
		client:     client,
		model:      model,
		dimensions: dims,
		limiter:    newLimiter(500, 50),
	}
}

// Name returns the provider's unique identifier.
func (p *OpenAIEmbedder) Name() string {
	return "openai-embeddings"
}

// Available returns true if the provider is configured and ready.
func (p *OpenAIEmbedder) Available() bool {
	return p.client != nil
}

// Dimensions returns the dimensionality of produced vectors.
func (p *OpenAIEmbedder) Dimensions() int {
	return p.dimensions
}

// Embed returns the embedding vector for the text.
func (p *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.client == nil {
		return nil, fmt.Errorf("openai embeddings provider not configured")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: p.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed; %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}

	return resp.Data[0].Embedding, nil
}
