package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stridecoach/stride/internal/coach"
	"github.com/stridecoach/stride/internal/ipc"
	"github.com/stridecoach/stride/internal/llm"
	"github.com/stridecoach/stride/internal/model"
)

// newTestDaemon wires a daemon the way Run does, minus the lock, watcher,
// and signal handling.
func newTestDaemon(t *testing.T, client llm.Client) (*Daemon, *bytes.Buffer) {
	t.Helper()

	cfg := model.Default()
	cfg.Logging.Level = "debug"

	var buf bytes.Buffer
	d := newDaemon(t.TempDir(), cfg, &buf, nil)
	d.started = time.Now()
	d.client = client
	d.executor = coach.NewExecutor(d.store, d.logger)
	if client != nil {
		d.coach = coach.New(d.store, client, cfg.User.ID, d.logger)
	}
	return d, &buf
}

// writePlanFor drops a plan file whose window covers now and whose document
// has a section for today and tomorrow.
func writePlanFor(t *testing.T, dataDir string, now time.Time) string {
	t.Helper()

	start := now.AddDate(0, 0, -3)
	end := start.AddDate(0, 0, 13)
	name := fmt.Sprintf("two-week-plan-%s_to_%s.md",
		start.Format("2006-01-02"), end.Format("2006-01-02"))

	doc := fmt.Sprintf("# Two-Week Plan\n\n## %s - Intervals\n- 6x800m @ 5k pace\n\n## %s - Easy Run\n- 40 min conversational\n",
		now.Format("Mon Jan 2"), now.AddDate(0, 0, 1).Format("Mon Jan 2"))

	coachDir := filepath.Join(dataDir, coach.CoachDir)
	if err := os.MkdirAll(coachDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(coachDir, name), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	return name
}

func mustRequest(t *testing.T, command string, params any) *ipc.Request {
	t.Helper()
	req, err := ipc.NewRequest(command, params)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"info":    LogLevelInfo,
		"warn":    LogLevelWarn,
		"WARNING": LogLevelWarn,
		"error":   LogLevelError,
		"bogus":   LogLevelInfo,
		"":        LogLevelInfo,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q): got %d, want %d", in, got, want)
		}
	}
}

func TestStatusReportsPlanAndLog(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	now := time.Now()
	name := writePlanFor(t, d.dataDir, now)

	logCSV := "date,exercise,reps\n" + now.Format("2006-01-02") + ",Bench Press,8\n"
	if err := os.WriteFile(filepath.Join(d.dataDir, "training_log.csv"), []byte(logCSV), 0644); err != nil {
		t.Fatal(err)
	}

	resp := d.handleStatus(mustRequest(t, "status", nil))
	if !resp.Success {
		t.Fatalf("status failed: %+v", resp.Error)
	}

	var status StatusData
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		t.Fatal(err)
	}
	if status.PID != os.Getpid() {
		t.Errorf("pid: got %d", status.PID)
	}
	if status.ChatEnabled {
		t.Error("chat should be disabled without a client")
	}
	if status.Plan == nil || status.Plan.Name != name {
		t.Fatalf("plan: got %+v, want %s", status.Plan, name)
	}
	if !status.Plan.InWindow {
		t.Error("plan should be in window")
	}
	if status.LogEntries != 1 {
		t.Errorf("log entries: got %d, want 1", status.LogEntries)
	}
}

func TestPlanTodayFindsSection(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	now := time.Now()
	name := writePlanFor(t, d.dataDir, now)

	resp := d.handlePlanToday(mustRequest(t, "plan_today", nil))
	if !resp.Success {
		t.Fatalf("plan_today failed: %+v", resp.Error)
	}

	var data PlanTodayData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Plan != name {
		t.Errorf("plan: got %q, want %q", data.Plan, name)
	}
	if !data.Found {
		t.Fatal("expected today's section to be found")
	}
	if !strings.Contains(data.Heading, "Intervals") {
		t.Errorf("heading: got %q", data.Heading)
	}
	if !strings.Contains(data.Body, "6x800m") {
		t.Errorf("body: got %q", data.Body)
	}
}

func TestPlanTodayWithoutPlans(t *testing.T) {
	d, _ := newTestDaemon(t, nil)

	resp := d.handlePlanToday(mustRequest(t, "plan_today", nil))
	if resp.Success {
		t.Fatal("expected failure with no plan files")
	}
	if resp.Error.Code != ipc.ErrCodeNoPlan {
		t.Errorf("error code: got %q, want %q", resp.Error.Code, ipc.ErrCodeNoPlan)
	}
}

func TestNoteAppendCreatesNotesFile(t *testing.T) {
	d, _ := newTestDaemon(t, nil)

	resp := d.handleNoteAppend(mustRequest(t, "note_append", NoteParams{Content: "felt strong today"}))
	if !resp.Success {
		t.Fatalf("note_append failed: %+v", resp.Error)
	}

	data, err := os.ReadFile(filepath.Join(d.dataDir, coach.NotesFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# Coach Session Notes") {
		t.Errorf("notes file missing header:\n%s", data)
	}
	if !strings.Contains(string(data), "felt strong today") {
		t.Errorf("notes file missing content:\n%s", data)
	}
}

func TestNoteAppendRejectsEmpty(t *testing.T) {
	d, _ := newTestDaemon(t, nil)

	resp := d.handleNoteAppend(mustRequest(t, "note_append", NoteParams{Content: "   "}))
	if resp.Success {
		t.Fatal("expected validation failure for empty note")
	}
	if resp.Error.Code != ipc.ErrCodeValidation {
		t.Errorf("error code: got %q", resp.Error.Code)
	}
}

func TestChatExecutesActions(t *testing.T) {
	mock := &llm.Mock{Replies: []string{"Nice session! [SAVE_NOTE: hit a bench PR]"}}
	d, _ := newTestDaemon(t, mock)

	resp := d.handleChat(mustRequest(t, "chat", ChatParams{
		History: []llm.Message{{Role: "user", Content: "just benched 225 for 3"}},
	}))
	if !resp.Success {
		t.Fatalf("chat failed: %+v", resp.Error)
	}

	var result coach.TurnResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(result.Reply, "SAVE_NOTE") {
		t.Errorf("reply should be cleaned of markers: %q", result.Reply)
	}
	if len(result.ActionResults) != 1 || !result.ActionResults[0].Success {
		t.Fatalf("action results: %+v", result.ActionResults)
	}

	notes, err := os.ReadFile(filepath.Join(d.dataDir, coach.NotesFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(notes), "hit a bench PR") {
		t.Errorf("note not persisted:\n%s", notes)
	}
}

func TestChatDisabledWithoutClient(t *testing.T) {
	d, _ := newTestDaemon(t, nil)

	resp := d.handleChat(mustRequest(t, "chat", ChatParams{
		History: []llm.Message{{Role: "user", Content: "hello"}},
	}))
	if resp.Success {
		t.Fatal("expected failure without a model client")
	}
	if resp.Error.Code != ipc.ErrCodeUpstream {
		t.Errorf("error code: got %q", resp.Error.Code)
	}
}

func TestChatRequiresHistory(t *testing.T) {
	d, _ := newTestDaemon(t, &llm.Mock{})

	resp := d.handleChat(mustRequest(t, "chat", ChatParams{}))
	if resp.Success || resp.Error.Code != ipc.ErrCodeValidation {
		t.Errorf("expected validation error, got %+v", resp)
	}
}

func TestLogIngestAppendsEntries(t *testing.T) {
	mock := &llm.Mock{Replies: []string{
		`[{"date":"2026-02-18","session_name":"Push Day","exercise":"Bench Press","set_number":1,"reps":8,"weight_lb":185}]`,
	}}
	d, _ := newTestDaemon(t, mock)

	resp := d.handleLogIngest(mustRequest(t, "log_ingest", IngestParams{
		Description: "bench 185x8",
	}))
	if !resp.Success {
		t.Fatalf("log_ingest failed: %+v", resp.Error)
	}

	var data IngestData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.Entries) != 1 || data.Entries[0].Exercise != "Bench Press" {
		t.Fatalf("entries: %+v", data.Entries)
	}

	csv, err := os.ReadFile(filepath.Join(d.dataDir, "training_log.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(csv), "Bench Press") {
		t.Errorf("log not appended:\n%s", csv)
	}
}

func TestRescanWarnsOnOverlap(t *testing.T) {
	d, buf := newTestDaemon(t, nil)

	coachDir := filepath.Join(d.dataDir, coach.CoachDir)
	if err := os.MkdirAll(coachDir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"two-week-plan-2026-02-16_to_2026-03-01.md",
		"two-week-plan-2026-02-23_to_2026-03-08.md",
	} {
		if err := os.WriteFile(filepath.Join(coachDir, name), []byte("# Plan\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	d.rescanPlans()

	if !strings.Contains(buf.String(), "plan windows overlap") {
		t.Errorf("expected overlap warning in log:\n%s", buf.String())
	}
}

func TestServerRoundTrip(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	d.registerHandlers()
	if err := d.server.Start(); err != nil {
		t.Fatal(err)
	}
	defer d.server.Stop()

	client := ipc.NewClient(filepath.Join(d.dataDir, ipc.SocketName))
	client.SetTimeout(5 * time.Second)

	resp, err := client.SendCommand("ping", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Fatalf("ping failed: %+v", resp.Error)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	d, buf := newTestDaemon(t, nil)

	d.Shutdown()
	d.Shutdown()

	if got := strings.Count(buf.String(), "daemon stopped"); got != 1 {
		t.Errorf("shutdown ran %d times, want 1", got)
	}
}
