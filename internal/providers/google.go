package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

const googleDefaultEmbModel = "gemini-embedding-001"

// GoogleEmbedder implements Embedder over the Gemini embeddings API.
// The underlying client is created lazily on first use.
type GoogleEmbedder struct {
	mu         sync.Mutex
	apiKey     string
	model      string
	dimensions int
	client     *genai.Client
	limiter    *rate.Limiter
}

// NewGoogleEmbedder creates a Google embeddings provider.
func NewGoogleEmbedder(cfg EmbedderConfig) *GoogleEmbedder {
	model := cfg.Model
	if model == "" {
		model = googleDefaultEmbModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 3072 // gemini-embedding-001 default
	}

	return &GoogleEmbedder{
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: dims,
		limiter:    newLimiter(300, 30),
	}
}

// Name returns the provider's unique identifier.
func (p *GoogleEmbedder) Name() string {
	return "google-embeddings"
}

// Available returns true if the provider is configured and ready.
func (p *GoogleEmbedder) Available() bool {
	return p.apiKey != ""
}

// Dimensions returns the dimensionality of produced vectors.
func (p *GoogleEmbedder) Dimensions() int {
	return p.dimensions
}

func (p *GoogleEmbedder) ensureClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	if p.apiKey == "" {
		return nil, fmt.Errorf("google embeddings provider not configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client; %w", err)
	}
	p.client = client
	return client, nil
}

// Embed returns the embedding vector for the text.
func (p *GoogleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	client, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	em := client.EmbeddingModel(p.model)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("embedding request failed; %w", err)
	}
	if res.Embedding == nil {
		return nil, fmt.Errorf("embedding response contained no data")
	}

	return res.Embedding.Values, nil
}
