package status

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stridecoach/stride/internal/daemon"
	"github.com/stridecoach/stride/internal/ipc"
)

func writePlan(t *testing.T, dataDir string, now time.Time) string {
	t.Helper()

	start := now.AddDate(0, 0, -2)
	end := start.AddDate(0, 0, 13)
	name := fmt.Sprintf("two-week-plan-%s_to_%s.md",
		start.Format("2006-01-02"), end.Format("2006-01-02"))

	doc := fmt.Sprintf("# Plan\n\n## %s - Tempo Run\n- 3x10 min at threshold\n",
		now.Format("Mon Jan 2"))

	coachDir := filepath.Join(dataDir, "coach")
	if err := os.MkdirAll(coachDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(coachDir, name), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	return name
}

func TestCollectWithoutDaemon(t *testing.T) {
	dataDir := t.TempDir()
	now := time.Now()
	name := writePlan(t, dataDir, now)

	logCSV := "date,exercise,reps\n" + now.Format("2006-01-02") + ",Squat,5\n"
	if err := os.WriteFile(filepath.Join(dataDir, "training_log.csv"), []byte(logCSV), 0644); err != nil {
		t.Fatal(err)
	}

	report := Collect(dataDir)

	if report.Daemon.Running {
		t.Error("daemon should be reported down")
	}
	if report.Plan == nil || report.Plan.Name != name {
		t.Fatalf("plan: got %+v, want %s", report.Plan, name)
	}
	if !report.Plan.InWindow {
		t.Error("plan should be in window")
	}
	if report.Today == nil || !report.Today.Found {
		t.Fatalf("today: got %+v", report.Today)
	}
	if report.LogEntries != 1 {
		t.Errorf("log entries: got %d, want 1", report.LogEntries)
	}
}

func TestCollectEmptyDirectory(t *testing.T) {
	report := Collect(t.TempDir())

	if report.Daemon.Running {
		t.Error("daemon should be reported down")
	}
	if report.Plan != nil {
		t.Errorf("plan: got %+v, want nil", report.Plan)
	}
	if report.LogEntries != 0 {
		t.Errorf("log entries: got %d", report.LogEntries)
	}
}

func TestCollectFromDaemon(t *testing.T) {
	dataDir := t.TempDir()

	srv := ipc.NewServer(filepath.Join(dataDir, ipc.SocketName))
	srv.Handle("status", func(req *ipc.Request) *ipc.Response {
		return ipc.SuccessResponse(daemon.StatusData{
			PID:         4242,
			UptimeSec:   90,
			Model:       "sonar-pro",
			ChatEnabled: true,
			Plan: &daemon.PlanStatus{
				Name:     "two-week-plan-2026-02-16_to_2026-03-01.md",
				Start:    "2026-02-16",
				End:      "2026-03-01",
				InWindow: true,
			},
			LogEntries: 7,
		})
	})
	srv.Handle("plan_today", func(req *ipc.Request) *ipc.Response {
		return ipc.SuccessResponse(daemon.PlanTodayData{
			Plan:    "two-week-plan-2026-02-16_to_2026-03-01.md",
			Date:    "2026-02-18",
			Found:   true,
			Heading: "## Wed Feb 18 - Intervals",
		})
	})
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	defer srv.Stop()

	report := Collect(dataDir)

	if !report.Daemon.Running {
		t.Fatal("daemon should be reported running")
	}
	if report.Daemon.PID != 4242 || report.Daemon.Model != "sonar-pro" {
		t.Errorf("daemon status: %+v", report.Daemon)
	}
	if !report.Daemon.ChatEnabled {
		t.Error("chat should be enabled")
	}
	if report.Plan == nil || !report.Plan.InWindow {
		t.Fatalf("plan: got %+v", report.Plan)
	}
	if report.Today == nil || report.Today.Heading != "## Wed Feb 18 - Intervals" {
		t.Fatalf("today: got %+v", report.Today)
	}
	if report.LogEntries != 7 {
		t.Errorf("log entries: got %d, want 7", report.LogEntries)
	}
}
