package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/villagegraph/assistant/internal/graphstore"
)

// stubStore satisfies graphstore.Store with canned results and records the
// operations that were invoked.
type stubStore struct {
	calls []string
}

func (s *stubStore) record(op string) graphstore.QueryResult {
	s.calls = append(s.calls, op)
	return graphstore.QueryResult{
		Status:  graphstore.StatusSuccess,
		Results: []graphstore.Record{{"op": op}},
	}
}

func (s *stubStore) Connect(ctx context.Context) error { return nil }
func (s *stubStore) Close(ctx context.Context) error { return nil }

func (s *stubStore) RunQuery(ctx context.Context, query string, params map[string]any) graphstore.QueryResult {
	s.calls = append(s.calls, "run_query:"+query)
	return graphstore.QueryResult{Status: graphstore.StatusSuccess, Results: []graphstore.Record{}}
}

func (s *stubStore) GetSchema(ctx context.Context) graphstore.Schema {
	s.calls = append(s.calls, "get_schema")
	return graphstore.Schema{}
}

func (s *stubStore) GetNodeInfo(ctx context.Context, nodeID string) graphstore.QueryResult {
	return s.record("get_node_info:" + nodeID)
}

func (s *stubStore) FindRelationships(ctx context.Context, nodeID string) graphstore.QueryResult {
	return s.record("find_relationships:" + nodeID)
}

func (s *stubStore) FindSensorReadings(ctx context.Context) graphstore.QueryResult {
	return s.record("find_sensor_readings")
}

func (s *stubStore) CountNodesByType(ctx context.Context) graphstore.QueryResult {
	return s.record("count_nodes_by_type")
}

func (s *stubStore) GetNodeProperties(ctx context.Context, label string) graphstore.QueryResult {
	return s.record("get_node_properties:" + label)
}

func (s *stubStore) FindNodesByType(ctx context.Context, label string) graphstore.QueryResult {
	return s.record("find_nodes_by_type:" + label)
}

func (s *stubStore) FindPathBetweenNodes(ctx context.Context, startID, endID string) graphstore.QueryResult {
	return s.record("find_path:" + startID + "->" + endID)
}

// fakeClient scripts the run lifecycle: RetrieveRun and SubmitToolOutputs
// pop successive states off their queues.
type fakeClient struct {
	threadID      string
	createdThread bool
	posted        []string
	createRunErr  error
	initialRun    Run
	retrieveQueue []Run
	retrieveErr   error
	submitQueue   []Run
	submitted     [][]ToolOutput
	messages      []ThreadMessage
	listErr       error
}

func (f *fakeClient) CreateThread(ctx context.Context) (string, error) {
	f.createdThread = true
	if f.threadID == "" {
		f.threadID = "thread_new"
	}
	return f.threadID, nil
}

func (f *fakeClient) CreateUserMessage(ctx context.Context, threadID, content string) error {
	f.posted = append(f.posted, content)
	return nil
}

func (f *fakeClient) CreateRun(ctx context.Context, threadID, additionalInstructions string) (Run, error) {
	if f.createRunErr != nil {
		return Run{}, f.createRunErr
	}
	return f.initialRun, nil
}

func (f *fakeClient) RetrieveRun(ctx context.Context, threadID, runID string) (Run, error) {
	if f.retrieveErr != nil {
		return Run{}, f.retrieveErr
	}
	if len(f.retrieveQueue) == 0 {
		return Run{ID: runID, Status: RunStatusInProgress}, nil
	}
	run := f.retrieveQueue[0]
	f.retrieveQueue = f.retrieveQueue[1:]
	return run, nil
}

func (f *fakeClient) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (Run, error) {
	f.submitted = append(f.submitted, outputs)
	if len(f.submitQueue) == 0 {
		return Run{ID: runID, Status: RunStatusCompleted}, nil
	}
	run := f.submitQueue[0]
	f.submitQueue = f.submitQueue[1:]
	return run, nil
}

func (f *fakeClient) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.messages, nil
}

func newTestService(client RunClient) (*Service, *stubStore) {
	store := &stubStore{}
	dispatcher := NewDispatcher(store, nil)
	svc := NewService(client, dispatcher,
		WithPollInterval(time.Millisecond),
		WithPollTimeout(time.Second),
	)
	return svc, store
}

func TestSendMessageCreatesThreadAndReturnsReply(t *testing.T) {
	client := &fakeClient{
		initialRun: Run{ID: "run_1", Status: RunStatusQueued, CreatedAt: 100},
		retrieveQueue: []Run{
			{ID: "run_1", Status: RunStatusInProgress, CreatedAt: 100},
			{ID: "run_1", Status: RunStatusCompleted, CreatedAt: 100},
		},
		messages: []ThreadMessage{
			{Role: "assistant", CreatedAt: 150, Text: "There are 42 sensors."},
			{Role: "user", CreatedAt: 99, Text: "How many sensors are there?"},
		},
	}
	svc, _ := newTestService(client)

	reply, threadID := svc.SendMessage(context.Background(), "", "How many sensors are there?", "")

	if !client.createdThread {
		t.Fatal("expected a thread to be created for an empty thread ID")
	}
	if threadID != "thread_new" {
		t.Errorf("threadID = %q, want %q", threadID, "thread_new")
	}
	if reply != "There are 42 sensors." {
		t.Errorf("reply = %q, want assistant message", reply)
	}
	if len(client.posted) != 1 || client.posted[0] != "How many sensors are there?" {
		t.Errorf("posted messages = %v", client.posted)
	}
}

func TestSendMessageDispatchesMixedToolBatch(t *testing.T) {
	client := &fakeClient{
		threadID: "thread_1",
		initialRun: Run{
			ID:        "run_1",
			Status:    RunStatusRequiresAction,
			CreatedAt: 100,
			ToolCalls: []ToolCall{
				{ID: "call_1", Name: ToolGetNodeInfo, Arguments: `{"node_id":"sensor-7"}`},
				{ID: "call_2", Name: "neo4j_drop_database", Arguments: `{}`},
				{ID: "call_3", Name: ToolCountNodesByType, Arguments: `{broken`},
			},
		},
		messages: []ThreadMessage{
			{Role: "assistant", CreatedAt: 150, Text: "Done."},
		},
	}
	svc, store := newTestService(client)

	reply, _ := svc.SendMessage(context.Background(), "thread_1", "inspect sensor-7", "")

	if reply != "Done." {
		t.Fatalf("reply = %q, want %q", reply, "Done.")
	}
	if len(client.submitted) != 1 {
		t.Fatalf("expected one batch submission, got %d", len(client.submitted))
	}
	outputs := client.submitted[0]
	if len(outputs) != 3 {
		t.Fatalf("expected 3 outputs, got %d", len(outputs))
	}

	byCall := map[string]string{}
	for _, out := range outputs {
		byCall[out.CallID] = out.Output
	}

	if !strings.Contains(byCall["call_1"], "get_node_info:sensor-7") {
		t.Errorf("call_1 output = %q, want node info result", byCall["call_1"])
	}

	var unknown map[string]any
	if err := json.Unmarshal([]byte(byCall["call_2"]), &unknown); err != nil {
		t.Fatalf("call_2 output is not valid JSON: %v", err)
	}
	if unknown["status"] != "error" {
		t.Errorf("unknown tool status = %v, want error", unknown["status"])
	}
	if !strings.Contains(unknown["message"].(string), "not implemented") {
		t.Errorf("unknown tool message = %v", unknown["message"])
	}

	// Malformed arguments degrade to empty args; the call still runs.
	if !strings.Contains(byCall["call_3"], "count_nodes_by_type") {
		t.Errorf("call_3 output = %q, want count result", byCall["call_3"])
	}

	for _, op := range store.calls {
		if strings.Contains(op, "drop") {
			t.Errorf("unknown tool reached the store: %s", op)
		}
	}
}

func TestSendMessageHandlesNestedToolRounds(t *testing.T) {
	client := &fakeClient{
		threadID: "thread_1",
		initialRun: Run{
			ID: "run_1", Status: RunStatusRequiresAction, CreatedAt: 100,
			ToolCalls: []ToolCall{{ID: "call_1", Name: ToolGetSchema}},
		},
		submitQueue: []Run{
			{
				ID: "run_1", Status: RunStatusRequiresAction, CreatedAt: 100,
				ToolCalls: []ToolCall{{ID: "call_2", Name: ToolFindSensorReads}},
			},
			{ID: "run_1", Status: RunStatusCompleted, CreatedAt: 100},
		},
		messages: []ThreadMessage{
			{Role: "assistant", CreatedAt: 160, Text: "Here are the readings."},
		},
	}
	svc, store := newTestService(client)

	reply, _ := svc.SendMessage(context.Background(), "thread_1", "latest readings?", "")

	if reply != "Here are the readings." {
		t.Fatalf("reply = %q", reply)
	}
	if len(client.submitted) != 2 {
		t.Fatalf("expected 2 batch submissions, got %d", len(client.submitted))
	}
	if len(store.calls) != 2 {
		t.Fatalf("store calls = %v, want two operations", store.calls)
	}
}

func TestSendMessageFoldsPollingFailureIntoReply(t *testing.T) {
	client := &fakeClient{
		threadID:    "thread_1",
		initialRun:  Run{ID: "run_1", Status: RunStatusQueued, CreatedAt: 100},
		retrieveErr: errors.New("upstream unavailable"),
	}
	svc, _ := newTestService(client)

	reply, threadID := svc.SendMessage(context.Background(), "thread_1", "hello", "")

	if !strings.HasPrefix(reply, "Error: ") {
		t.Errorf("reply = %q, want Error prefix", reply)
	}
	if threadID != "thread_1" {
		t.Errorf("threadID = %q, want thread preserved across the failed turn", threadID)
	}
}

func TestSendMessageReportsTerminalRunFailure(t *testing.T) {
	client := &fakeClient{
		threadID: "thread_1",
		initialRun: Run{
			ID: "run_1", Status: RunStatusFailed, CreatedAt: 100,
			LastError: "rate limit exceeded",
		},
	}
	svc, _ := newTestService(client)

	reply, _ := svc.SendMessage(context.Background(), "thread_1", "hello", "")

	if !strings.Contains(reply, "failed") || !strings.Contains(reply, "rate limit exceeded") {
		t.Errorf("reply = %q, want failure status and cause", reply)
	}
}

func TestSendMessageApologizesWhenNoNewAssistantMessage(t *testing.T) {
	client := &fakeClient{
		threadID:   "thread_1",
		initialRun: Run{ID: "run_1", Status: RunStatusCompleted, CreatedAt: 100},
		messages: []ThreadMessage{
			// Older than the run, must not be picked up.
			{Role: "assistant", CreatedAt: 50, Text: "stale answer"},
		},
	}
	svc, _ := newTestService(client)

	reply, _ := svc.SendMessage(context.Background(), "thread_1", "hello", "")

	if reply != apologyReply {
		t.Errorf("reply = %q, want apology", reply)
	}
}

func TestSendMessageTimesOutStuckRun(t *testing.T) {
	client := &fakeClient{
		threadID:   "thread_1",
		initialRun: Run{ID: "run_1", Status: RunStatusInProgress, CreatedAt: 100},
	}
	svc, _ := newTestService(client)
	svc.pollTimeout = 10 * time.Millisecond

	reply, _ := svc.SendMessage(context.Background(), "thread_1", "hello", "")

	if !strings.HasPrefix(reply, "Error: ") || !strings.Contains(reply, "did not complete") {
		t.Errorf("reply = %q, want timeout error", reply)
	}
}

// loopingClient answers every tool submission with another requires_action
// round, modeling a model that never stops asking for tools.
type loopingClient struct {
	fakeClient
}

func (f *loopingClient) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (Run, error) {
	f.submitted = append(f.submitted, outputs)
	return Run{
		ID: runID, Status: RunStatusRequiresAction, CreatedAt: 100,
		ToolCalls: []ToolCall{{ID: "call_again", Name: ToolGetSchema}},
	}, nil
}

func TestSendMessageTimesOutEndlessToolRounds(t *testing.T) {
	client := &loopingClient{fakeClient: fakeClient{
		threadID: "thread_1",
		initialRun: Run{
			ID: "run_1", Status: RunStatusRequiresAction, CreatedAt: 100,
			ToolCalls: []ToolCall{{ID: "call_1", Name: ToolGetSchema}},
		},
	}}
	svc, _ := newTestService(client)
	svc.pollTimeout = 10 * time.Millisecond

	// Runs that bounce straight back into requires_action never pass
	// through a pending state, so the deadline must apply to tool rounds
	// too. Run in a goroutine so a regression fails instead of hanging.
	done := make(chan string, 1)
	go func() {
		reply, _ := svc.SendMessage(context.Background(), "thread_1", "hello", "")
		done <- reply
	}()

	select {
	case reply := <-done:
		if !strings.HasPrefix(reply, "Error: ") || !strings.Contains(reply, "did not complete") {
			t.Errorf("reply = %q, want timeout error", reply)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendMessage still running long after the poll timeout elapsed")
	}
}

func TestDispatcherCoversFullCatalogue(t *testing.T) {
	store := &stubStore{}
	dispatcher := NewDispatcher(store, nil)

	names := dispatcher.ToolNames()
	if len(names) != 9 {
		t.Fatalf("catalogue size = %d, want 9", len(names))
	}

	calls := []ToolCall{
		{ID: "1", Name: ToolGetSchema},
		{ID: "2", Name: ToolRunQuery, Arguments: `{"query":"MATCH (n) RETURN n LIMIT 1"}`},
		{ID: "3", Name: ToolGetNodeInfo, Arguments: `{"node_id":"a"}`},
		{ID: "4", Name: ToolFindRelationships, Arguments: `{"node_id":"a"}`},
		{ID: "5", Name: ToolFindSensorReads},
		{ID: "6", Name: ToolCountNodesByType},
		{ID: "7", Name: ToolGetNodeProperties, Arguments: `{"node_label":"Thing"}`},
		{ID: "8", Name: ToolFindNodesByType, Arguments: `{"node_type":"Thing"}`},
		{ID: "9", Name: ToolFindPath, Arguments: `{"start_id":"a","end_id":"b"}`},
	}

	outputs := dispatcher.Dispatch(context.Background(), calls)
	if len(outputs) != len(calls) {
		t.Fatalf("outputs = %d, want %d", len(outputs), len(calls))
	}
	for _, out := range outputs {
		if out.Output == "" {
			t.Errorf("call %s produced empty output", out.CallID)
		}
	}
	if len(store.calls) != len(calls) {
		t.Errorf("store operations = %d, want %d", len(store.calls), len(calls))
	}
}
