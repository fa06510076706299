package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/villagegraph/assistant/internal/graphstore"
	"github.com/villagegraph/assistant/internal/metrics"
)

// Tool names form a closed catalogue. The model may only request these;
// anything else gets an isolated "not implemented" payload.
const (
	ToolGetSchema         = "neo4j_get_schema"
	ToolRunQuery          = "neo4j_run_query"
	ToolGetNodeInfo       = "neo4j_get_node_info"
	ToolFindRelationships = "neo4j_find_relationships"
	ToolFindSensorReads   = "neo4j_find_sensor_readings"
	ToolCountNodesByType  = "neo4j_count_nodes_by_type"
	ToolGetNodeProperties = "neo4j_get_node_properties"
	ToolFindNodesByType   = "neo4j_find_nodes_by_type"
	ToolFindPath          = "neo4j_find_path_between_nodes"
)

// toolHandler executes one catalogue operation with already-parsed arguments.
type toolHandler func(ctx context.Context, args map[string]any) any

// Dispatcher routes tool calls from the model to graph store operations.
type Dispatcher struct {
	store    graphstore.Store
	logger   *slog.Logger
	handlers map[string]toolHandler
}

// NewDispatcher builds the dispatch table over the store.
func NewDispatcher(store graphstore.Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{store: store, logger: logger}

	d.handlers = map[string]toolHandler{
		ToolGetSchema: func(ctx context.Context, args map[string]any) any {
			return d.store.GetSchema(ctx)
		},
		ToolRunQuery: func(ctx context.Context, args map[string]any) any {
			return d.store.RunQuery(ctx, stringArg(args, "query"), nil)
		},
		ToolGetNodeInfo: func(ctx context.Context, args map[string]any) any {
			return d.store.GetNodeInfo(ctx, stringArg(args, "node_id"))
		},
		ToolFindRelationships: func(ctx context.Context, args map[string]any) any {
			return d.store.FindRelationships(ctx, stringArg(args, "node_id"))
		},
		ToolFindSensorReads: func(ctx context.Context, args map[string]any) any {
			return d.store.FindSensorReadings(ctx)
		},
		ToolCountNodesByType: func(ctx context.Context, args map[string]any) any {
			return d.store.CountNodesByType(ctx)
		},
		ToolGetNodeProperties: func(ctx context.Context, args map[string]any) any {
			return d.store.GetNodeProperties(ctx, stringArg(args, "node_label"))
		},
		ToolFindNodesByType: func(ctx context.Context, args map[string]any) any {
			return d.store.FindNodesByType(ctx, stringArg(args, "node_type"))
		},
		ToolFindPath: func(ctx context.Context, args map[string]any) any {
			return d.store.FindPathBetweenNodes(ctx, stringArg(args, "start_id"), stringArg(args, "end_id"))
		},
	}

	return d
}

// ToolNames returns the catalogue in sorted order, for startup diagnostics.
func (d *Dispatcher) ToolNames() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch resolves every call in a batch to exactly one output, keyed by the
// call's identifier. Malformed JSON arguments degrade to empty arguments; an
// unknown tool name produces a per-call error payload without affecting
// sibling calls.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []ToolCall) []ToolOutput {
	outputs := make([]ToolOutput, 0, len(calls))

	for _, call := range calls {
		args := map[string]any{}
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				d.logger.Warn("malformed tool arguments, dispatching with empty args",
					"tool", call.Name, "error", err)
				args = map[string]any{}
			}
		}

		handler, ok := d.handlers[call.Name]
		var result any
		if ok {
			d.logger.Info("dispatching tool call", "tool", call.Name)
			metrics.ToolCallsTotal.WithLabelValues(call.Name).Inc()
			result = handler(ctx, args)
		} else {
			d.logger.Warn("tool not implemented", "tool", call.Name)
			metrics.ToolCallsTotal.WithLabelValues("unknown").Inc()
			result = map[string]any{
				"status":  "error",
				"message": fmt.Sprintf("Function %s not implemented", call.Name),
			}
		}

		outputs = append(outputs, ToolOutput{
			CallID: call.ID,
			Output: marshalOutput(result),
		})
	}

	return outputs
}

// marshalOutput serializes a tool result; a marshal failure is itself folded
// into an error payload so the run can still resume.
func marshalOutput(result any) string {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"status":"error","message":"failed to serialize tool output: %s"}`, err)
	}
	return string(data)
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
