// Package speech issues short-lived speech synthesis tokens to clients so
// the subscription key never leaves the server.
package speech

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Tokens are valid for 10 minutes upstream; refreshing after 9 leaves a
// margin for in-flight client use.
const tokenTTL = 9 * time.Minute

// TokenResponse is what clients receive. Token is empty when issuing failed,
// with Error carrying the reason.
type TokenResponse struct {
	Token    string `json:"token"`
	Region   string `json:"region"`
	Language string `json:"language"`
	Error    string `json:"error,omitempty"`
}

// Config identifies the upstream region and subscription.
type Config struct {
	Region   string
	Language string
	Key      string
}

// TokenService fetches and caches issue tokens.
type TokenService struct {
	cfg       Config
	client    *http.Client
	logger    *slog.Logger
	endpoints []string

	mu        sync.Mutex
	token     string
	fetchedAt time.Time
}

// Option configures a TokenService.
type Option func(*TokenService)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *TokenService) {
		if client != nil {
			s.client = client
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *TokenService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEndpoints overrides the issue-token endpoints, primary first.
func WithEndpoints(endpoints ...string) Option {
	return func(s *TokenService) {
		if len(endpoints) > 0 {
			s.endpoints = endpoints
		}
	}
}

// NewTokenService builds a service for the configured region. The regional
// STS endpoint is tried first; some regions only answer on the TTS host, so
// a 404 falls through to it.
func NewTokenService(cfg Config, opts ...Option) *TokenService {
	s := &TokenService{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
		endpoints: []string{
			fmt.Sprintf("https://%s.api.cognitive.microsoft.com/sts/v1.0/issueToken", cfg.Region),
			fmt.Sprintf("https://%s.tts.speech.microsoft.com/sts/v1.0/issueToken", cfg.Region),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns a cached or freshly issued token. Failures degrade to an
// empty token with the reason attached, so the HTTP surface can always
// answer.
func (s *TokenService) Token(ctx context.Context) TokenResponse {
	resp := TokenResponse{Region: s.cfg.Region, Language: s.cfg.Language}

	if s.cfg.Key == "" {
		resp.Error = "speech subscription key not configured"
		return resp
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Since(s.fetchedAt) < tokenTTL {
		resp.Token = s.token
		return resp
	}

	token, err := s.issue(ctx)
	if err != nil {
		s.logger.Warn("failed to issue speech token", "error", err)
		resp.Error = err.Error()
		return resp
	}

	s.token = token
	s.fetchedAt = time.Now()
	resp.Token = token
	return resp
}

// issue walks the endpoint list; only a 404 moves on to the next endpoint,
// any other failure is terminal.
func (s *TokenService) issue(ctx context.Context) (string, error) {
	var lastErr error

	for _, endpoint := range s.endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return "", fmt.Errorf("failed to build token request; %w", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", s.cfg.Key)
		req.Header.Set("Content-Length", "0")

		httpResp, err := s.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("token request failed; %w", err)
		}

		body, err := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("failed to read token response; %w", err)
		}

		switch {
		case httpResp.StatusCode == http.StatusOK:
			return string(body), nil
		case httpResp.StatusCode == http.StatusNotFound:
			lastErr = fmt.Errorf("token endpoint %s not found", endpoint)
			continue
		default:
			return "", fmt.Errorf("token endpoint returned status %d", httpResp.StatusCode)
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no token endpoints configured")
	}
	return "", lastErr
}
