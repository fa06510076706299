package config

import "github.com/spf13/viper"

// Default configuration values.
const (
	DefaultLogLevel = "info"
	DefaultLogFile  = "~/.config/villagegraph/villagegraph.log"

	DefaultServerPort            = 7800
	DefaultServerBind            = "127.0.0.1"
	DefaultServerShutdownTimeout = 30 // seconds

	DefaultNeo4jURI         = "bolt://localhost:7687"
	DefaultNeo4jUsername    = "neo4j"
	DefaultNeo4jPasswordEnv = "NEO4J_PASSWORD"
	DefaultNeo4jDatabase    = "neo4j"

	DefaultAssistantModel     = "gpt-4o"
	DefaultAssistantAPIKeyEnv = "OPENAI_API_KEY"
	DefaultPollIntervalMs     = 500
	DefaultPollTimeoutSec     = 120

	DefaultEmbeddingsProvider   = "openai"
	DefaultEmbeddingsModel      = "text-embedding-3-small"
	DefaultEmbeddingsDimensions = 1536
	DefaultEmbeddingsAPIKeyEnv  = "OPENAI_API_KEY"

	DefaultRetrievalTopK          = 15
	DefaultRetrievalRelationIndex = "relation_docs"
	DefaultRetrievalExampleIndex  = "query_examples"

	DefaultSpeechRegion   = "westeurope"
	DefaultSpeechKeyEnv   = "AZURE_SPEECH_KEY"
	DefaultSpeechLanguage = "fr-FR"
)

// setViperDefaults registers all default configuration values.
// Called before reading config files so partial files still validate.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", DefaultLogFile)

	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.bind", DefaultServerBind)
	v.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)

	v.SetDefault("neo4j.uri", DefaultNeo4jURI)
	v.SetDefault("neo4j.username", DefaultNeo4jUsername)
	v.SetDefault("neo4j.password_env", DefaultNeo4jPasswordEnv)
	v.SetDefault("neo4j.database", DefaultNeo4jDatabase)

	v.SetDefault("assistant.model", DefaultAssistantModel)
	v.SetDefault("assistant.api_key_env", DefaultAssistantAPIKeyEnv)
	v.SetDefault("assistant.poll_interval_ms", DefaultPollIntervalMs)
	v.SetDefault("assistant.poll_timeout_sec", DefaultPollTimeoutSec)

	v.SetDefault("embeddings.provider", DefaultEmbeddingsProvider)
	v.SetDefault("embeddings.model", DefaultEmbeddingsModel)
	v.SetDefault("embeddings.dimensions", DefaultEmbeddingsDimensions)
	v.SetDefault("embeddings.api_key_env", DefaultEmbeddingsAPIKeyEnv)

	v.SetDefault("retrieval.enabled", true)
	v.SetDefault("retrieval.top_k", DefaultRetrievalTopK)
	v.SetDefault("retrieval.relation_index", DefaultRetrievalRelationIndex)
	v.SetDefault("retrieval.example_index", DefaultRetrievalExampleIndex)

	v.SetDefault("speech.region", DefaultSpeechRegion)
	v.SetDefault("speech.key_env", DefaultSpeechKeyEnv)
	v.SetDefault("speech.language", DefaultSpeechLanguage)
}

// NewDefaultConfig returns a Config populated with default values.
func NewDefaultConfig() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		LogFile:  DefaultLogFile,
		Server: ServerConfig{
			Port:            DefaultServerPort,
			Bind:            DefaultServerBind,
			ShutdownTimeout: DefaultServerShutdownTimeout,
		},
		Neo4j: Neo4jConfig{
			URI:         DefaultNeo4jURI,
			Username:    DefaultNeo4jUsername,
			PasswordEnv: DefaultNeo4jPasswordEnv,
			Database:    DefaultNeo4jDatabase,
		},
		Assistant: AssistantConfig{
			Model:          DefaultAssistantModel,
			APIKeyEnv:      DefaultAssistantAPIKeyEnv,
			PollIntervalMs: DefaultPollIntervalMs,
			PollTimeoutSec: DefaultPollTimeoutSec,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   DefaultEmbeddingsProvider,
			Model:      DefaultEmbeddingsModel,
			Dimensions: DefaultEmbeddingsDimensions,
			APIKeyEnv:  DefaultEmbeddingsAPIKeyEnv,
		},
		Retrieval: RetrievalConfig{
			Enabled:       true,
			TopK:          DefaultRetrievalTopK,
			RelationIndex: DefaultRetrievalRelationIndex,
			ExampleIndex:  DefaultRetrievalExampleIndex,
		},
		Speech: SpeechConfig{
			Region:   DefaultSpeechRegion,
			KeyEnv:   DefaultSpeechKeyEnv,
			Language: DefaultSpeechLanguage,
		},
	}
}
