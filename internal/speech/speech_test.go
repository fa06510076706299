package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*TokenService, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc := NewTokenService(
		Config{Region: "westeurope", Language: "fr-FR", Key: "test-key"},
		WithHTTPClient(srv.Client()),
		WithEndpoints(srv.URL),
	)
	return svc, srv
}

func TestTokenIssuesAndCaches(t *testing.T) {
	var requests int
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "test-key" {
			t.Errorf("subscription key header = %q", got)
		}
		w.Write([]byte("issued-token"))
	})

	first := svc.Token(context.Background())
	second := svc.Token(context.Background())

	if first.Token != "issued-token" {
		t.Errorf("token = %q", first.Token)
	}
	if first.Region != "westeurope" || first.Language != "fr-FR" {
		t.Errorf("region/language = %q/%q", first.Region, first.Language)
	}
	if second.Token != first.Token {
		t.Errorf("cached token = %q, want %q", second.Token, first.Token)
	}
	if requests != 1 {
		t.Errorf("upstream requests = %d, want 1 (second call served from cache)", requests)
	}
}

func TestTokenRetriesAlternateEndpointOn404(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer primary.Close()
	alternate := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("alternate-token"))
	}))
	defer alternate.Close()

	svc := NewTokenService(
		Config{Region: "westeurope", Language: "fr-FR", Key: "test-key"},
		WithEndpoints(primary.URL, alternate.URL),
	)

	resp := svc.Token(context.Background())

	if resp.Token != "alternate-token" {
		t.Errorf("token = %q, want token from alternate endpoint", resp.Token)
	}
	if resp.Error != "" {
		t.Errorf("error = %q, want empty", resp.Error)
	}
}

func TestTokenNon404FailureIsTerminal(t *testing.T) {
	var alternateHit bool
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer primary.Close()
	alternate := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		alternateHit = true
	}))
	defer alternate.Close()

	svc := NewTokenService(
		Config{Region: "westeurope", Key: "bad-key"},
		WithEndpoints(primary.URL, alternate.URL),
	)

	resp := svc.Token(context.Background())

	if resp.Token != "" {
		t.Errorf("token = %q, want empty on auth failure", resp.Token)
	}
	if resp.Error == "" {
		t.Error("expected error detail on auth failure")
	}
	if alternateHit {
		t.Error("401 must not fall through to the alternate endpoint")
	}
}

func TestTokenWithoutKeyDegrades(t *testing.T) {
	svc := NewTokenService(Config{Region: "westeurope", Language: "fr-FR"})

	resp := svc.Token(context.Background())

	if resp.Token != "" {
		t.Errorf("token = %q, want empty without a key", resp.Token)
	}
	if resp.Error == "" {
		t.Error("expected an explanatory error without a key")
	}
	if resp.Region != "westeurope" {
		t.Errorf("region = %q, degraded response still carries region", resp.Region)
	}
}
