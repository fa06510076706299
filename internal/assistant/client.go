package assistant

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// RunStatus mirrors the lifecycle states of an assistant run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusExpired        RunStatus = "expired"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
)

// Pending reports whether the run is still being executed server-side.
func (s RunStatus) Pending() bool {
	return s == RunStatusQueued || s == RunStatusInProgress || s == RunStatusCancelling
}

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolOutput is the serialized result for one tool call.
type ToolOutput struct {
	CallID string
	Output string
}

// Run is the subset of run state the orchestration loop acts on.
type Run struct {
	ID        string
	Status    RunStatus
	CreatedAt int64
	ToolCalls []ToolCall
	LastError string
}

// ThreadMessage is one message on a thread, text parts already flattened.
type ThreadMessage struct {
	Role      string
	CreatedAt int64
	Text      string
}

// RunClient abstracts the assistants API surface the service depends on.
// Tests substitute a scripted implementation.
type RunClient interface {
	CreateThread(ctx context.Context) (string, error)
	CreateUserMessage(ctx context.Context, threadID, content string) error
	CreateRun(ctx context.Context, threadID, additionalInstructions string) (Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (Run, error)
	// ListMessages returns the thread's messages, newest first.
	ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error)
}

// OpenAIClient implements RunClient against the OpenAI assistants API.
type OpenAIClient struct {
	client      *openai.Client
	assistantID string
}

// ClientConfig carries the credentials and target assistant.
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	AssistantID string
}

// NewOpenAIClient builds the API-backed client. It fails closed when the key
// or assistant identifier is missing so misconfiguration surfaces at startup
// rather than mid-conversation.
func NewOpenAIClient(cfg ClientConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("assistant API key not configured")
	}
	if cfg.AssistantID == "" {
		return nil, fmt.Errorf("assistant ID not configured")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.AssistantVersion = "v2"

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		assistantID: cfg.AssistantID,
	}, nil
}

func (c *OpenAIClient) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("failed to create thread; %w", err)
	}
	return thread.ID, nil
}

func (c *OpenAIClient) CreateUserMessage(ctx context.Context, threadID, content string) error {
	_, err := c.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    string(openai.ThreadMessageRoleUser),
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("failed to post message to thread %s; %w", threadID, err)
	}
	return nil
}

func (c *OpenAIClient) CreateRun(ctx context.Context, threadID, additionalInstructions string) (Run, error) {
	req := openai.RunRequest{AssistantID: c.assistantID}
	if additionalInstructions != "" {
		req.AdditionalInstructions = additionalInstructions
	}
	run, err := c.client.CreateRun(ctx, threadID, req)
	if err != nil {
		return Run{}, fmt.Errorf("failed to create run; %w", err)
	}
	return fromAPIRun(run), nil
}

func (c *OpenAIClient) RetrieveRun(ctx context.Context, threadID, runID string) (Run, error) {
	run, err := c.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return Run{}, fmt.Errorf("failed to retrieve run %s; %w", runID, err)
	}
	return fromAPIRun(run), nil
}

func (c *OpenAIClient) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (Run, error) {
	apiOutputs := make([]openai.ToolOutput, 0, len(outputs))
	for _, out := range outputs {
		output := out.Output
		apiOutputs = append(apiOutputs, openai.ToolOutput{
			ToolCallID: out.CallID,
			Output:     &output,
		})
	}

	run, err := c.client.SubmitToolOutputs(ctx, threadID, runID, openai.SubmitToolOutputsRequest{
		ToolOutputs: apiOutputs,
	})
	if err != nil {
		return Run{}, fmt.Errorf("failed to submit tool outputs for run %s; %w", runID, err)
	}
	return fromAPIRun(run), nil
}

func (c *OpenAIClient) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	list, err := c.client.ListMessage(ctx, threadID, nil, nil, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for thread %s; %w", threadID, err)
	}

	messages := make([]ThreadMessage, 0, len(list.Messages))
	for _, msg := range list.Messages {
		var parts []string
		for _, content := range msg.Content {
			if content.Text != nil {
				parts = append(parts, content.Text.Value)
			}
		}
		messages = append(messages, ThreadMessage{
			Role:      msg.Role,
			CreatedAt: int64(msg.CreatedAt),
			Text:      strings.Join(parts, "\n"),
		})
	}
	return messages, nil
}

// fromAPIRun flattens the API run into the loop's view of it.
func fromAPIRun(run openai.Run) Run {
	out := Run{
		ID:        run.ID,
		Status:    RunStatus(run.Status),
		CreatedAt: run.CreatedAt,
	}
	if run.LastError != nil {
		out.LastError = run.LastError.Message
	}
	if run.RequiredAction != nil && run.RequiredAction.SubmitToolOutputs != nil {
		for _, call := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			})
		}
	}
	return out
}
