// Package providers holds the text-embedding providers used by schema/context
// retrieval, behind a common interface so the retriever does not care which
// vendor is configured.
package providers

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Embedder produces a vector embedding for a piece of text.
type Embedder interface {
	// Name returns the provider's unique identifier.
	Name() string

	// Available returns true if the provider is configured and ready.
	Available() bool

	// Embed returns the embedding vector for the text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality of produced vectors.
	Dimensions() int
}

// EmbedderConfig selects and configures an embedding provider.
type EmbedderConfig struct {
	Provider   string
	Model      string
	Dimensions int
	APIKey     string
}

// NewEmbedder builds the configured provider.
func NewEmbedder(cfg EmbedderConfig) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbedder(cfg), nil
	case "google":
		return NewGoogleEmbedder(cfg), nil
	default:
		return nil, fmt.Errorf("unrecognized embeddings provider %q", cfg.Provider)
	}
}

// newLimiter builds a request rate limiter from a requests-per-minute budget.
func newLimiter(requestsPerMinute, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
}
