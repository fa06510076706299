package config

import "os"

// Config is the root configuration structure for the application.
type Config struct {
	LogLevel   string           `yaml:"log_level" mapstructure:"log_level"`
	LogFile    string           `yaml:"log_file" mapstructure:"log_file"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Neo4j      Neo4jConfig      `yaml:"neo4j" mapstructure:"neo4j"`
	Assistant  AssistantConfig  `yaml:"assistant" mapstructure:"assistant"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" mapstructure:"embeddings"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" mapstructure:"retrieval"`
	Speech     SpeechConfig     `yaml:"speech" mapstructure:"speech"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int `yaml:"port" mapstructure:"port"`
	Bind            string `yaml:"bind" mapstructure:"bind"`
	ShutdownTimeout int `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"` // seconds
}

// Neo4jConfig holds graph database connection configuration.
type Neo4jConfig struct {
	URI         string `yaml:"uri" mapstructure:"uri"`
	Username    string `yaml:"username" mapstructure:"username"`
	PasswordEnv string `yaml:"password_env" mapstructure:"password_env"`
	Database    string `yaml:"database" mapstructure:"database"`
}

// ResolvePassword returns the database password from the configured
// environment variable.
func (c *Neo4jConfig) ResolvePassword() string {
	return os.Getenv(c.PasswordEnv)
}

// AssistantConfig holds the conversational-completion service configuration.
type AssistantConfig struct {
	AssistantID    string  `yaml:"assistant_id" mapstructure:"assistant_id"`
	Model          string  `yaml:"model" mapstructure:"model"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey         *string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	APIKeyEnv      string  `yaml:"api_key_env" mapstructure:"api_key_env"`
	PollIntervalMs int     `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	PollTimeoutSec int     `yaml:"poll_timeout_sec" mapstructure:"poll_timeout_sec"`
}

// ResolveAPIKey returns the API key from config or falls back to the
// configured environment variable.
func (c *AssistantConfig) ResolveAPIKey() string {
	if c.APIKey != nil && *c.APIKey != "" {
		return *c.APIKey
	}
	return os.Getenv(c.APIKeyEnv)
}

// EmbeddingsConfig holds embeddings provider configuration.
type EmbeddingsConfig struct {
	Provider   string  `yaml:"provider" mapstructure:"provider"`
	Model      string  `yaml:"model" mapstructure:"model"`
	Dimensions int     `yaml:"dimensions" mapstructure:"dimensions"`
	APIKey     *string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	APIKeyEnv  string  `yaml:"api_key_env" mapstructure:"api_key_env"`
}

// ResolveAPIKey returns the API key from config or falls back to the
// configured environment variable.
func (c *EmbeddingsConfig) ResolveAPIKey() string {
	if c.APIKey != nil && *c.APIKey != "" {
		return *c.APIKey
	}
	return os.Getenv(c.APIKeyEnv)
}

// RetrievalConfig holds vector-index retrieval configuration.
type RetrievalConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	TopK          int    `yaml:"top_k" mapstructure:"top_k"`
	RelationIndex string `yaml:"relation_index" mapstructure:"relation_index"`
	ExampleIndex  string `yaml:"example_index" mapstructure:"example_index"`
}

// SpeechConfig holds the speech token passthrough configuration.
type SpeechConfig struct {
	Region   string `yaml:"region" mapstructure:"region"`
	KeyEnv   string `yaml:"key_env" mapstructure:"key_env"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Language string `yaml:"language" mapstructure:"language"`
}

// ResolveKey returns the speech subscription key from the configured
// environment variable.
func (c *SpeechConfig) ResolveKey() string {
	return os.Getenv(c.KeyEnv)
}
