// Package serve runs the HTTP service.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/villagegraph/assistant/internal/assistant"
	"github.com/villagegraph/assistant/internal/config"
	"github.com/villagegraph/assistant/internal/extract"
	"github.com/villagegraph/assistant/internal/graphstore"
	"github.com/villagegraph/assistant/internal/providers"
	"github.com/villagegraph/assistant/internal/retrieval"
	"github.com/villagegraph/assistant/internal/server"
	"github.com/villagegraph/assistant/internal/speech"
)

// ServeCmd runs the assistant HTTP service in the foreground.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the assistant HTTP service",
	Long: "Run the assistant HTTP service.\n\n" +
		"Connects to the Neo4j knowledge graph, wires the conversational assistant and " +
		"context retrieval, and serves the chat and graph APIs until interrupted. " +
		"Use standard backgrounding methods like '&', 'nohup', or a service runner to " +
		"keep it running in the background.",
	Example: `  # Run the service in the foreground
  villagegraph serve

  # Run in the background
  villagegraph serve &`,
	PreRunE: validateServe,
	RunE:    runServe,
}

func validateServe(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := graphstore.NewNeo4jStore(
		graphstore.WithConfig(graphstore.Config{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.ResolvePassword(),
			Database: cfg.Neo4j.Database,
		}),
		graphstore.WithLogger(slog.Default()),
	)
	if err := store.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to graph store; %w", err)
	}
	defer store.Close(context.Background())

	deps := server.Deps{
		Store:     store,
		Retriever: buildRetriever(cfg, store),
		Chat:      buildChat(cfg, store),
		Extractor: buildExtractor(cfg),
		Speech:    buildSpeech(cfg),
	}

	srv := server.NewServer(server.Config{
		Port:            cfg.Server.Port,
		Bind:            cfg.Server.Bind,
		ShutdownTimeout: time.Duration(cfg.Server.ShutdownTimeout) * time.Second,
	}, deps, slog.Default())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	slog.Info("service started",
		"bind", cfg.Server.Bind,
		"port", cfg.Server.Port,
		"neo4j_uri", cfg.Neo4j.URI,
	)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error; %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// buildRetriever wires vector-grounded context retrieval. Without an
// embeddings key the retriever still serves the plain schema.
func buildRetriever(cfg *config.Config, store graphstore.Store) *retrieval.Retriever {
	var embedder providers.Embedder
	if cfg.Retrieval.Enabled {
		e, err := providers.NewEmbedder(providers.EmbedderConfig{
			Provider:   cfg.Embeddings.Provider,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			APIKey:     cfg.Embeddings.ResolveAPIKey(),
		})
		if err != nil {
			slog.Warn("embeddings provider unavailable, serving schema without vector grounding", "error", err)
		} else {
			embedder = e
		}
	}

	return retrieval.NewRetriever(store, embedder, retrieval.Config{
		Enabled:       cfg.Retrieval.Enabled,
		TopK:          cfg.Retrieval.TopK,
		RelationIndex: cfg.Retrieval.RelationIndex,
		ExampleIndex:  cfg.Retrieval.ExampleIndex,
	}, slog.Default())
}

// buildChat wires the assistants-API conversation service. Misconfiguration
// leaves chat nil and the endpoint answers 503.
func buildChat(cfg *config.Config, store graphstore.Store) server.ChatService {
	client, err := assistant.NewOpenAIClient(assistant.ClientConfig{
		APIKey:      cfg.Assistant.ResolveAPIKey(),
		BaseURL:     cfg.Assistant.BaseURL,
		AssistantID: cfg.Assistant.AssistantID,
	})
	if err != nil {
		slog.Warn("chat unavailable", "error", err)
		return nil
	}

	dispatcher := assistant.NewDispatcher(store, slog.Default())
	slog.Info("tool catalogue ready", "tools", dispatcher.ToolNames())
	return assistant.NewService(client, dispatcher,
		assistant.WithPollInterval(time.Duration(cfg.Assistant.PollIntervalMs)*time.Millisecond),
		assistant.WithPollTimeout(time.Duration(cfg.Assistant.PollTimeoutSec)*time.Second),
		assistant.WithLogger(slog.Default()),
	)
}

// buildExtractor wires Cypher extraction. Without an API key only the
// deterministic scanner runs.
func buildExtractor(cfg *config.Config) server.QueryExtractor {
	opts := []extract.Option{extract.WithLogger(slog.Default())}

	if key := cfg.Assistant.ResolveAPIKey(); key != "" {
		clientCfg := openai.DefaultConfig(key)
		if cfg.Assistant.BaseURL != "" {
			clientCfg.BaseURL = cfg.Assistant.BaseURL
		}
		opts = append(opts, extract.WithChatClient(openai.NewClientWithConfig(clientCfg), cfg.Assistant.Model))
	}

	return extract.NewExtractor(opts...)
}

func buildSpeech(cfg *config.Config) server.TokenIssuer {
	key := cfg.Speech.ResolveKey()
	if key == "" {
		return nil
	}

	opts := []speech.Option{speech.WithLogger(slog.Default())}
	if cfg.Speech.Endpoint != "" {
		opts = append(opts, speech.WithEndpoints(cfg.Speech.Endpoint))
	}

	return speech.NewTokenService(speech.Config{
		Region:   cfg.Speech.Region,
		Language: cfg.Speech.Language,
		Key:      key,
	}, opts...)
}
