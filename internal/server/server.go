// Package server exposes the conversational assistant and the graph store
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/villagegraph/assistant/internal/extract"
	"github.com/villagegraph/assistant/internal/graphstore"
	"github.com/villagegraph/assistant/internal/metrics"
	"github.com/villagegraph/assistant/internal/retrieval"
	"github.com/villagegraph/assistant/internal/speech"
	"github.com/villagegraph/assistant/internal/viz"
)

// Config holds the listener settings.
type Config struct {
	Port            int
	Bind            string
	ShutdownTimeout time.Duration
}

// ChatService runs one conversational turn. Failures arrive folded into the
// reply text, never as an error.
type ChatService interface {
	SendMessage(ctx context.Context, threadID, message, grounding string) (string, string)
}

// ContextProvider assembles schema plus grounding context for a user query.
type ContextProvider interface {
	GetContext(ctx context.Context, userQuery string) retrieval.SchemaContext
}

// QueryExtractor recovers a Cypher query from an assistant answer.
type QueryExtractor interface {
	Extract(ctx context.Context, answer string, schema graphstore.Schema) extract.Extraction
}

// TokenIssuer hands out speech synthesis tokens.
type TokenIssuer interface {
	Token(ctx context.Context) speech.TokenResponse
}

// Deps are the services the HTTP surface fronts. Store and Retriever are
// required; the rest may be nil, in which case their endpoints answer 503.
type Deps struct {
	Store     graphstore.Store
	Retriever ContextProvider
	Chat      ChatService
	Extractor QueryExtractor
	Speech    TokenIssuer
}

// Server is the HTTP server. It is safe for concurrent use.
type Server struct {
	mu     sync.RWMutex
	config Config
	deps   Deps
	logger *slog.Logger
	router *chi.Mux
	server *http.Server
}

// NewServer creates the server and wires its routes.
func NewServer(config Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config: config,
		deps:   deps,
		logger: logger,
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(requestID)
	s.router.Use(requestLogger(s.logger))

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Post("/api/chat", s.handleChat)
	s.router.Get("/api/examples", s.handleExamples)
	s.router.Get("/api/speech-token", s.handleSpeechToken)
	s.router.Get("/api/neo4j/schema", s.handleSchema)
	s.router.Post("/api/neo4j/query", s.handleQuery)
}

// Handler returns the HTTP handler for testing purposes.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.router
}

// ChatRequest is one user turn.
type ChatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
}

// ChatResponse carries the reply, the thread to continue on, and the Cypher
// query behind the answer when one could be recovered.
type ChatResponse struct {
	Response    string `json:"response"`
	ThreadID    string `json:"thread_id"`
	CypherQuery string `json:"cypher_query,omitempty"`
}

// handleChat runs one conversational turn: retrieve grounding context for
// the message, run the assistant, then try to recover the Cypher query
// behind the reply for visualization.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.deps.Chat == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "chat not available")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "message is required")
		return
	}

	schemaCtx := s.deps.Retriever.GetContext(r.Context(), req.Message)
	reply, threadID := s.deps.Chat.SendMessage(r.Context(), req.ThreadID, req.Message, schemaCtx.RelationsInfo)

	resp := ChatResponse{Response: reply, ThreadID: threadID}
	if s.deps.Extractor != nil {
		if extraction := s.deps.Extractor.Extract(r.Context(), reply, schemaCtx.Schema); extraction.IsValid {
			resp.CypherQuery = extraction.Query
		}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// handleSchema returns the live schema, enriched with grounding context when
// a query parameter is supplied.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	schemaCtx := s.deps.Retriever.GetContext(r.Context(), r.URL.Query().Get("query"))

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(schemaCtx)
}

// QueryRequest is a raw Cypher query.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse is the normalized result plus hints for client-side
// rendering.
type QueryResponse struct {
	graphstore.QueryResult
	Hints viz.Hints `json:"hints"`
	Graph viz.Graph `json:"graph"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(graphstore.QueryResult{
			Status:  graphstore.StatusError,
			Message: "No query provided",
		})
		return
	}

	result := s.deps.Store.RunQuery(r.Context(), req.Query, nil)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(QueryResponse{
		QueryResult: result,
		Hints:       viz.Annotate(result),
		Graph:       viz.BuildGraph(result),
	})
}

// exampleQuestions seed the client with starting points for the deployment.
var exampleQuestions = []string{
	"Quels sont les capteurs présents à l'école maternelle?",
	"Quelle est la température actuelle dans la mairie?",
	"Montre-moi la consommation d'énergie de tous les bâtiments",
	"Quelles sont les relations entre les capteurs et les bâtiments?",
	"Quelle est la production d'énergie solaire actuelle?",
}

func (s *Server) handleExamples(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(exampleQuestions)
}

func (s *Server) handleSpeechToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.deps.Speech == nil {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(speech.TokenResponse{Error: "speech not configured"})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.deps.Speech.Token(r.Context()))
}

// LivezResponse is the response format for the /healthz endpoint.
type LivezResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(LivezResponse{Status: "alive"})
}

// ReadyzResponse reports which optional components are wired.
type ReadyzResponse struct {
	Status string `json:"status"`
	Chat   bool   `json:"chat"`
	Speech bool   `json:"speech"`
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(ReadyzResponse{
		Status: "ready",
		Chat:   s.deps.Chat != nil,
		Speech: s.deps.Speech != nil,
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}

// Start starts the HTTP server and blocks until it is stopped.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Bind, s.config.Port)

	s.mu.Lock()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}
	server := s.server
	s.mu.Unlock()

	s.logger.Info("http server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error; %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	server := s.server
	s.mu.RUnlock()

	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown http server; %w", err)
	}
	return nil
}
