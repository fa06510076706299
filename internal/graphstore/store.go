// Package graphstore is the read-only access layer over the Neo4j graph.
// It executes Cypher, normalizes driver-native values into plain records,
// and exposes the fixed catalogue of inspection operations the assistant's
// tools dispatch to.
package graphstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/villagegraph/assistant/internal/metrics"
)

// Store is the interface consumed by the tool dispatcher and HTTP handlers.
type Store interface {
	// RunQuery executes arbitrary Cypher with bound parameters. It never
	// returns a Go error; failures are folded into the result status.
	RunQuery(ctx context.Context, query string, params map[string]any) QueryResult

	// GetSchema enumerates node labels, relationship types, their property
	// keys, and the observed connection patterns.
	GetSchema(ctx context.Context) Schema

	// GetNodeInfo looks up a single node by its identifier property.
	GetNodeInfo(ctx context.Context, nodeID string) QueryResult

	// FindRelationships returns all adjacent nodes and connecting
	// relationships for a node, direction collapsed.
	FindRelationships(ctx context.Context, nodeID string) QueryResult

	// FindSensorReadings returns id/name/value triples for every Thing node
	// carrying a latest_value.
	FindSensorReadings(ctx context.Context) QueryResult

	// CountNodesByType returns a count per node label.
	CountNodesByType(ctx context.Context) QueryResult

	// GetNodeProperties returns the union of property keys across nodes of a label.
	GetNodeProperties(ctx context.Context, label string) QueryResult

	// FindNodesByType returns all nodes carrying a label.
	FindNodesByType(ctx context.Context, label string) QueryResult

	// FindPathBetweenNodes returns the shortest undirected path between two
	// nodes identified by their identifier property.
	FindPathBetweenNodes(ctx context.Context, startID, endID string) QueryResult

	// Connect establishes the driver connection. Called lazily by RunQuery
	// when not already connected.
	Connect(ctx context.Context) error

	// Close releases the driver.
	Close(ctx context.Context) error
}

// Config holds connection settings for the Neo4j store.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// DefaultConfig returns sensible local-development defaults.
func DefaultConfig() Config {
	return Config{
		URI:      "bolt://localhost:7687",
		Username: "neo4j",
		Database: "neo4j",
	}
}

// rawQueryFunc executes a query and returns the raw column list and rows.
// Swapped out in tests.
type rawQueryFunc func(ctx context.Context, query string, params map[string]any) ([]string, [][]any, error)

// Neo4jStore implements Store over the Bolt driver. The driver is a pooled,
// long-lived resource created on first use; each query runs in its own
// short-lived session so no transactional state is shared across requests.
type Neo4jStore struct {
	mu        sync.Mutex
	config    Config
	logger    *slog.Logger
	driver    neo4j.DriverWithContext
	connected bool

	queryFn rawQueryFunc
}

// Option configures the Neo4j store.
type Option func(*Neo4jStore)

// WithConfig sets the connection configuration.
func WithConfig(cfg Config) Option {
	return func(s *Neo4jStore) {
		s.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Neo4jStore) {
		s.logger = logger
	}
}

// NewNeo4jStore creates a store. No connection is made until Connect or the
// first query.
func NewNeo4jStore(opts ...Option) *Neo4jStore {
	s := &Neo4jStore{
		config: DefaultConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.queryFn = s.runRaw

	return s
}

// Connect establishes and verifies the driver connection.
func (s *Neo4jStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}

	driver, err := neo4j.NewDriverWithContext(
		s.config.URI,
		neo4j.BasicAuth(s.config.Username, s.config.Password, ""),
	)
	if err != nil {
		return fmt.Errorf("failed to create neo4j driver; %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return fmt.Errorf("failed to verify neo4j connectivity; %w", err)
	}

	s.driver = driver
	s.connected = true
	s.logger.Info("connected to neo4j", "uri", s.config.URI, "database", s.config.Database)

	return nil
}

// Close releases the driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	err := s.driver.Close(ctx)
	s.driver = nil
	s.connected = false
	s.logger.Info("disconnected from neo4j")

	return err
}

// ensureConnected connects lazily on first use.
func (s *Neo4jStore) ensureConnected(ctx context.Context) error {
	s.mu.Lock()
	connected := s.connected
	s.mu.Unlock()

	if connected {
		return nil
	}
	return s.Connect(ctx)
}

// RunQuery executes Cypher and normalizes the result. All failures become an
// error-status result; nothing is raised to the caller.
func (s *Neo4jStore) RunQuery(ctx context.Context, query string, params map[string]any) QueryResult {
	if params == nil {
		params = map[string]any{}
	}

	keys, rows, err := s.queryFn(ctx, query, params)
	if err != nil {
		metrics.GraphQueriesTotal.WithLabelValues(StatusError).Inc()
		s.logger.Error("cypher query failed", "error", err)
		return errorResult(err.Error())
	}

	metrics.GraphQueriesTotal.WithLabelValues(StatusSuccess).Inc()
	return successResult(normalizeRows(keys, rows))
}

// runRaw executes a query in a fresh read session and collects raw rows.
func (s *Neo4jStore) runRaw(ctx context.Context, query string, params map[string]any) ([]string, [][]any, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return nil, nil, err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.config.Database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, nil, err
	}

	keys, err := result.Keys()
	if err != nil {
		return nil, nil, err
	}

	var rows [][]any
	for result.Next(ctx) {
		values := result.Record().Values
		row := make([]any, len(values))
		copy(row, values)
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, nil, err
	}

	return keys, rows, nil
}
