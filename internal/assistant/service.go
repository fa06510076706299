package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/villagegraph/assistant/internal/metrics"
)

const (
	// DefaultPollInterval paces run status checks.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultPollTimeout bounds one conversational turn end to end,
	// including every tool round trip.
	DefaultPollTimeout = 120 * time.Second

	// apologyReply is returned when a run completes but no assistant
	// message newer than the run can be found on the thread.
	apologyReply = "Sorry, I couldn't process your request. Please try again."
)

// Service drives one conversational turn against the assistants API,
// dispatching tool calls to the graph store as the model requests them.
type Service struct {
	client       RunClient
	dispatcher   *Dispatcher
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPollInterval overrides the run polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithPollTimeout overrides the per-turn wall clock ceiling.
func WithPollTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollTimeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService builds the orchestration service over an API client and a tool
// dispatcher.
func NewService(client RunClient, dispatcher *Dispatcher, opts ...Option) *Service {
	s := &Service{
		client:       client,
		dispatcher:   dispatcher,
		pollInterval: DefaultPollInterval,
		pollTimeout:  DefaultPollTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendMessage posts a user message to the thread (creating one when threadID
// is empty), runs the assistant to completion, and returns the assistant's
// reply. Grounding context rides on the run as additional instructions so it
// never persists in the thread history.
//
// Failures never escape as errors: every failure mode is folded into a
// textual reply so the caller can always show something, and the thread
// identifier is returned in all cases so the conversation survives the bad
// turn.
func (s *Service) SendMessage(ctx context.Context, threadID, message, grounding string) (string, string) {
	start := time.Now()
	reply, threadID, err := s.runTurn(ctx, threadID, message, grounding)
	metrics.ChatTurnDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ChatTurnsTotal.WithLabelValues("error").Inc()
		s.logger.Error("conversation turn failed", "thread_id", threadID, "error", err)
		return fmt.Sprintf("Error: %s", err), threadID
	}
	metrics.ChatTurnsTotal.WithLabelValues("ok").Inc()
	return reply, threadID
}

func (s *Service) runTurn(ctx context.Context, threadID, message, grounding string) (string, string, error) {
	if threadID == "" {
		id, err := s.client.CreateThread(ctx)
		if err != nil {
			return "", "", err
		}
		threadID = id
		s.logger.Info("created conversation thread", "thread_id", threadID)
	}

	if err := s.client.CreateUserMessage(ctx, threadID, message); err != nil {
		return "", threadID, err
	}

	run, err := s.client.CreateRun(ctx, threadID, buildInstructions(grounding))
	if err != nil {
		return "", threadID, err
	}
	s.logger.Info("run created", "thread_id", threadID, "run_id", run.ID)

	run, err = s.awaitRun(ctx, threadID, run)
	if err != nil {
		return "", threadID, err
	}

	switch run.Status {
	case RunStatusCompleted:
		reply, err := s.latestReply(ctx, threadID, run.CreatedAt)
		if err != nil {
			return "", threadID, err
		}
		return reply, threadID, nil
	case RunStatusFailed, RunStatusExpired, RunStatusCancelled:
		if run.LastError != "" {
			return "", threadID, fmt.Errorf("run ended with status %s: %s", run.Status, run.LastError)
		}
		return "", threadID, fmt.Errorf("run ended with status %s", run.Status)
	default:
		return "", threadID, fmt.Errorf("run ended in unexpected status %s", run.Status)
	}
}

// awaitRun polls the run until it reaches a terminal state, answering every
// requires_action pause with a full batch of tool outputs. Submitting outputs
// can put the run straight back into requires_action, so the loop keeps
// going until the run settles or the turn deadline passes.
func (s *Service) awaitRun(ctx context.Context, threadID string, run Run) (Run, error) {
	deadline := time.Now().Add(s.pollTimeout)

	for {
		// The deadline bounds the whole turn, tool rounds included. A run
		// can come back from SubmitToolOutputs already in requires_action
		// without ever being pending, so the check cannot live only in the
		// polling loop below.
		if time.Now().After(deadline) {
			return run, fmt.Errorf("run %s did not complete within %s", run.ID, s.pollTimeout)
		}

		for run.Status.Pending() {
			if time.Now().After(deadline) {
				return run, fmt.Errorf("run %s did not complete within %s", run.ID, s.pollTimeout)
			}
			select {
			case <-ctx.Done():
				return run, ctx.Err()
			case <-time.After(s.pollInterval):
			}

			var err error
			run, err = s.client.RetrieveRun(ctx, threadID, run.ID)
			if err != nil {
				return run, err
			}
		}

		if run.Status != RunStatusRequiresAction {
			return run, nil
		}

		s.logger.Info("run requires tool outputs",
			"run_id", run.ID, "calls", len(run.ToolCalls))
		outputs := s.dispatcher.Dispatch(ctx, run.ToolCalls)

		var err error
		run, err = s.client.SubmitToolOutputs(ctx, threadID, run.ID, outputs)
		if err != nil {
			return run, err
		}
	}
}

// latestReply fetches the newest assistant message created after the run
// started. A completed run with no such message yields the apology reply
// rather than an error.
func (s *Service) latestReply(ctx context.Context, threadID string, since int64) (string, error) {
	messages, err := s.client.ListMessages(ctx, threadID)
	if err != nil {
		return "", err
	}

	var best *ThreadMessage
	for i := range messages {
		msg := &messages[i]
		if msg.Role != "assistant" || msg.CreatedAt <= since {
			continue
		}
		if best == nil || msg.CreatedAt > best.CreatedAt {
			best = msg
		}
	}
	if best == nil || best.Text == "" {
		return apologyReply, nil
	}
	return best.Text, nil
}

// buildInstructions shapes the retrieved grounding into per-run additional
// instructions. An empty grounding yields no instructions at all.
func buildInstructions(grounding string) string {
	if grounding == "" {
		return ""
	}
	return fmt.Sprintf(
		"Use the following context about the graph when choosing tools and writing Cypher queries:\n\n%s",
		grounding,
	)
}
