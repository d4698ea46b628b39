package coach

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridecoach/stride/internal/llm"
	"github.com/stridecoach/stride/internal/store"
)

func TestChatTurn_PlainReply(t *testing.T) {
	s, _ := newFixture(t)
	mock := &llm.Mock{Replies: []string{"Looking solid. Keep the paces honest."}}
	c := New(s, mock, "alice", nil)

	res, err := c.ChatTurn(context.Background(), []llm.Message{{Role: "user", Content: "how am I doing?"}}, noon(2026, 2, 19))
	require.NoError(t, err)

	assert.Equal(t, "Looking solid. Keep the paces honest.", res.Reply)
	assert.Empty(t, res.ActionResults)
	assert.Equal(t, 1, mock.Calls)
	// The system prompt carries today's plan section.
	assert.Contains(t, mock.Systems[0], "TODAY'S PLAN (Thu Feb 19 — Quality run):")
}

func TestChatTurn_MarkersDriveSideEffects(t *testing.T) {
	s, _ := newFixture(t)
	mock := &llm.Mock{Replies: []string{
		"Dial it back today. [SAVE_NOTE: calf tight, poor sleep]\n<PLAN_UPDATE>\n## Thu Feb 19 — Easy spin\n\n- 30 min easy spin\n</PLAN_UPDATE>",
	}}
	c := New(s, mock, "alice", nil)

	res, err := c.ChatTurn(context.Background(), []llm.Message{{Role: "user", Content: "calf is tight"}}, noon(2026, 2, 19))
	require.NoError(t, err)

	assert.Equal(t, "Dial it back today.", res.Reply)
	require.Len(t, res.ActionResults, 2)
	assert.True(t, res.ActionResults[0].Success)
	assert.True(t, res.ActionResults[1].Success, res.ActionResults[1].Detail)

	notes, _, err := s.Read(NotesFile)
	require.NoError(t, err)
	assert.Contains(t, string(notes), "calf tight, poor sleep")

	plan, _, err := s.Read("coach/" + planName)
	require.NoError(t, err)
	assert.Contains(t, string(plan), "## Thu Feb 19 — Easy spin")
}

func TestChatTurn_FailedActionStillReturnsReply(t *testing.T) {
	s := store.New(t.TempDir()) // no plan files at all
	mock := &llm.Mock{Replies: []string{"Rest today.\n<PLAN_UPDATE>\n- rest\n</PLAN_UPDATE>"}}
	c := New(s, mock, "alice", nil)

	res, err := c.ChatTurn(context.Background(), nil, noon(2026, 2, 19))
	require.NoError(t, err)

	assert.Equal(t, "Rest today.", res.Reply)
	require.Len(t, res.ActionResults, 1)
	assert.False(t, res.ActionResults[0].Success)
	assert.NotEmpty(t, res.ActionResults[0].Detail)
}

func TestChatTurn_ModelErrorPropagates(t *testing.T) {
	s, _ := newFixture(t)
	mock := &llm.Mock{Err: fmt.Errorf("upstream timeout")}
	c := New(s, mock, "alice", nil)

	_, err := c.ChatTurn(context.Background(), nil, noon(2026, 2, 19))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestIngestWorkout(t *testing.T) {
	s, _ := newFixture(t)
	mock := &llm.Mock{Replies: []string{
		"```json\n[{\"date\":\"2026-02-19\",\"session_type\":\"Strength\",\"activity_type\":\"lift\",\"exercise\":\"Bench Press\",\"set_type\":\"work\",\"set_number\":1,\"reps\":8,\"weight_lb\":135,\"notes\":\"\"}]\n```",
	}}
	c := New(s, mock, "alice", nil)

	entries, err := c.IngestWorkout(context.Background(), "benched 135 for 8", noon(2026, 2, 19))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Bench Press", entries[0].Exercise)

	data, ok, err := s.Read("training_log.csv")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(data), "Bench Press")
	// The parser prompt, not the coach prompt, was used.
	assert.Contains(t, mock.Systems[0], "fitness data parser")
}

func TestIngestWorkout_BadModelOutput(t *testing.T) {
	s, _ := newFixture(t)
	mock := &llm.Mock{Replies: []string{"I could not parse that."}}
	c := New(s, mock, "alice", nil)

	_, err := c.IngestWorkout(context.Background(), "benched a lot", noon(2026, 2, 19))
	require.Error(t, err)
}

func TestIngestWorkout_EmptyDescription(t *testing.T) {
	s, _ := newFixture(t)
	c := New(s, &llm.Mock{}, "alice", nil)

	_, err := c.IngestWorkout(context.Background(), "   ", noon(2026, 2, 19))
	require.Error(t, err)
}

type recordedUsage struct {
	kind    string
	actions int
}

type usageSpy struct {
	records []recordedUsage
}

func (u *usageSpy) Record(kind string, _ llm.Usage, actions int) error {
	u.records = append(u.records, recordedUsage{kind: kind, actions: actions})
	return nil
}

func TestUsageRecorderSeesEveryModelCall(t *testing.T) {
	s, _ := newFixture(t)
	mock := &llm.Mock{Replies: []string{
		"Noted. [SAVE_NOTE: new 5k PR]",
		"[{\"date\":\"2026-02-19\",\"exercise\":\"Run\",\"duration_min\":25}]",
	}}
	c := New(s, mock, "alice", nil)

	spy := &usageSpy{}
	c.SetUsage(spy)

	_, err := c.ChatTurn(context.Background(), []llm.Message{{Role: "user", Content: "ran a 5k PR"}}, noon(2026, 2, 19))
	require.NoError(t, err)
	_, err = c.IngestWorkout(context.Background(), "easy 5k in 25 min", noon(2026, 2, 19))
	require.NoError(t, err)

	require.Len(t, spy.records, 2)
	assert.Equal(t, recordedUsage{kind: "chat", actions: 1}, spy.records[0])
	assert.Equal(t, recordedUsage{kind: "log_parse", actions: 0}, spy.records[1])
}
