package coach

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/stridecoach/stride/internal/llm"
	"github.com/stridecoach/stride/internal/markers"
	"github.com/stridecoach/stride/internal/trainlog"
)

// UsageRecorder receives one record per model call. Recording is
// best-effort; a failing recorder never fails the turn.
type UsageRecorder interface {
	Record(kind string, u llm.Usage, actions int) error
}

// Coach runs complete chat turns for one user: context assembly, the model
// call, marker extraction, and action execution.
type Coach struct {
	store    Store
	client   llm.Client
	userID   string
	logger   *log.Logger
	executor *Executor
	usage    UsageRecorder
}

// New creates a Coach. logger may be nil.
func New(s Store, client llm.Client, userID string, logger *log.Logger) *Coach {
	return &Coach{
		store:    s,
		client:   client,
		userID:   userID,
		logger:   logger,
		executor: NewExecutor(s, logger),
	}
}

// SetUsage attaches a usage recorder. nil disables recording.
func (c *Coach) SetUsage(r UsageRecorder) {
	c.usage = r
}

// TurnResult is everything one chat turn produces for the caller.
type TurnResult struct {
	Reply         string         `json:"reply"`
	ActionResults []ActionResult `json:"action_results"`
	Usage         llm.Usage      `json:"usage"`
}

// ChatTurn runs one turn: the newest user message is the last entry of
// history. Marker-driven side effects are applied before returning, and
// their results ride along with the cleaned reply.
func (c *Coach) ChatTurn(ctx context.Context, history []llm.Message, now time.Time) (*TurnResult, error) {
	system, err := BuildSystemPrompt(c.store, c.userID, now)
	if err != nil {
		return nil, fmt.Errorf("build system prompt: %w", err)
	}

	text, usage, err := c.client.Complete(ctx, system, history)
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}

	reply, actions := markers.Parse(text)

	var results []ActionResult
	if len(actions) > 0 {
		results = c.executor.Execute(actions, now)
		c.logf("chat turn executed %d action(s)", len(results))
	}

	c.logf("chat turn model=%s in=%d out=%d cost=$%.6f actions=%d",
		usage.Model, usage.InputTokens, usage.OutputTokens, usage.CostUSD, len(results))
	c.recordUsage("chat", usage, len(results))

	return &TurnResult{Reply: reply, ActionResults: results, Usage: usage}, nil
}

// IngestWorkout turns a free-form workout description into structured log
// entries via the model and appends them to the training log. The parsed
// entries are returned for display.
func (c *Coach) IngestWorkout(ctx context.Context, description string, now time.Time) ([]trainlog.Entry, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("empty workout description")
	}

	system := BuildLogParserPrompt(now)
	text, usage, err := c.client.Complete(ctx, system, []llm.Message{{Role: "user", Content: description}})
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}
	c.recordUsage("log_parse", usage, 0)

	entries, err := trainlog.ParseJSON([]byte(stripCodeFence(text)))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("model produced no log entries")
	}

	current, _, err := c.store.Read(trainlog.LogFile)
	if err != nil {
		return nil, err
	}
	updated, err := trainlog.AppendCSV(current, entries)
	if err != nil {
		return nil, err
	}
	if err := c.store.Write(trainlog.LogFile, updated); err != nil {
		return nil, err
	}

	c.logf("ingested %d log entr(ies) from description", len(entries))
	return entries, nil
}

// stripCodeFence tolerates models that wrap JSON in a markdown fence despite
// instructions not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func (c *Coach) recordUsage(kind string, u llm.Usage, actions int) {
	if c.usage == nil {
		return
	}
	if err := c.usage.Record(kind, u, actions); err != nil {
		c.logf("record usage: %v", err)
	}
}

func (c *Coach) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
