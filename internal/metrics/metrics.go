// Package metrics provides Prometheus metrics for the assistant service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "villagegraph"
)

// Conversation metrics track assistant turns.
var (
	// ChatTurnsTotal is the total number of conversational turns by outcome.
	ChatTurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_turns_total",
		Help:      "Total number of conversational turns",
	}, []string{"outcome"})

	// ChatTurnDuration is a histogram of turn duration in seconds, including
	// every tool round trip.
	ChatTurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "chat_turn_duration_seconds",
		Help:      "Duration of a conversational turn in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 9), // 0.5s to ~128s
	})

	// ToolCallsTotal is the total number of tool calls dispatched by tool name.
	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_calls_total",
		Help:      "Total number of tool calls dispatched to the graph store",
	}, []string{"tool"})
)

// Graph metrics track graph store operations.
var (
	// GraphQueriesTotal is the total number of graph queries by status.
	GraphQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "graph_queries_total",
		Help:      "Total number of graph queries executed",
	}, []string{"status"})
)

// Extraction metrics track Cypher recovery outcomes.
var (
	// ExtractionsTotal is the total number of extraction attempts by layer
	// and outcome.
	ExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extractions_total",
		Help:      "Total number of Cypher extraction attempts",
	}, []string{"layer", "outcome"})
)

// Retrieval metrics track vector grounding.
var (
	// RetrievalsTotal is the total number of context retrievals by outcome.
	RetrievalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retrievals_total",
		Help:      "Total number of grounding context retrievals",
	}, []string{"outcome"})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
