package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a config validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation failures.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString("config validation failed:\n")
	for _, err := range e {
		b.WriteString("  - ")
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

// validEmbeddingsProviders lists recognized embeddings providers.
var validEmbeddingsProviders = map[string]bool{
	"openai": true,
	"google": true,
}

// Validate checks the configuration for structural problems.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, ValidationError{"server.port", fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Server.Port)})
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, ValidationError{"server.shutdown_timeout", "must not be negative"})
	}

	if cfg.Neo4j.URI == "" {
		errs = append(errs, ValidationError{"neo4j.uri", "must not be empty"})
	}
	if cfg.Neo4j.Username == "" {
		errs = append(errs, ValidationError{"neo4j.username", "must not be empty"})
	}

	if cfg.Assistant.PollIntervalMs <= 0 {
		errs = append(errs, ValidationError{"assistant.poll_interval_ms", "must be positive"})
	}
	if cfg.Assistant.PollTimeoutSec <= 0 {
		errs = append(errs, ValidationError{"assistant.poll_timeout_sec", "must be positive"})
	}

	if !validEmbeddingsProviders[cfg.Embeddings.Provider] {
		errs = append(errs, ValidationError{"embeddings.provider", fmt.Sprintf("unrecognized provider %q", cfg.Embeddings.Provider)})
	}
	if cfg.Embeddings.Dimensions <= 0 {
		errs = append(errs, ValidationError{"embeddings.dimensions", "must be positive"})
	}

	if cfg.Retrieval.TopK <= 0 {
		errs = append(errs, ValidationError{"retrieval.top_k", "must be positive"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
