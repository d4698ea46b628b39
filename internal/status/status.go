// Package status reports the daemon, the active plan, and today's session
// in one view. It asks the daemon when one is running and falls back to
// reading the data directory directly when not.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/stridecoach/stride/internal/coach"
	"github.com/stridecoach/stride/internal/daemon"
	"github.com/stridecoach/stride/internal/ipc"
	"github.com/stridecoach/stride/internal/plandoc"
	"github.com/stridecoach/stride/internal/planfile"
	"github.com/stridecoach/stride/internal/store"
	"github.com/stridecoach/stride/internal/trainlog"
	"github.com/stridecoach/stride/internal/usage"
)

type Report struct {
	Daemon       DaemonStatus       `json:"daemon"`
	Plan         *daemon.PlanStatus `json:"plan,omitempty"`
	Today        *TodayStatus       `json:"today,omitempty"`
	LogEntries   int                `json:"log_entries"`
	MonthCalls   int                `json:"month_calls"`
	MonthCostUSD float64            `json:"month_cost_usd"`
}

type DaemonStatus struct {
	Running     bool   `json:"running"`
	PID         int    `json:"pid,omitempty"`
	UptimeSec   int64  `json:"uptime_sec,omitempty"`
	Model       string `json:"model,omitempty"`
	ChatEnabled bool   `json:"chat_enabled"`
}

type TodayStatus struct {
	Found   bool   `json:"found"`
	Heading string `json:"heading,omitempty"`
}

// Collect builds the status report for a data directory.
func Collect(dataDir string) Report {
	client := ipc.NewClient(filepath.Join(dataDir, ipc.SocketName))
	client.SetTimeout(5 * time.Second)

	if resp, err := client.SendCommand("status", nil); err == nil && resp.Success {
		return fromDaemon(client, resp.Data)
	}
	return fromFiles(dataDir)
}

func fromDaemon(client *ipc.Client, data json.RawMessage) Report {
	var ds daemon.StatusData
	if err := json.Unmarshal(data, &ds); err != nil {
		return Report{Daemon: DaemonStatus{Running: true}}
	}

	report := Report{
		Daemon: DaemonStatus{
			Running:     true,
			PID:         ds.PID,
			UptimeSec:   ds.UptimeSec,
			Model:       ds.Model,
			ChatEnabled: ds.ChatEnabled,
		},
		Plan:         ds.Plan,
		LogEntries:   ds.LogEntries,
		MonthCalls:   ds.MonthCalls,
		MonthCostUSD: ds.MonthCostUSD,
	}

	if resp, err := client.SendCommand("plan_today", nil); err == nil && resp.Success {
		var today daemon.PlanTodayData
		if err := json.Unmarshal(resp.Data, &today); err == nil {
			report.Today = &TodayStatus{Found: today.Found, Heading: today.Heading}
		}
	}
	return report
}

// fromFiles answers from the data directory alone; the daemon being down
// should not hide the plan from the user.
func fromFiles(dataDir string) Report {
	report := Report{Daemon: DaemonStatus{Running: false}}

	st := store.New(dataDir)
	now := time.Now()

	names, err := st.List(coach.CoachDir)
	if err != nil {
		return report
	}
	plan, ok := planfile.FindActive(names, now)
	if !ok {
		return report
	}
	report.Plan = &daemon.PlanStatus{
		Name:     plan.Name,
		Start:    plan.Start.Format("2006-01-02"),
		End:      plan.End.Format("2006-01-02"),
		InWindow: plan.Contains(now),
	}

	if doc, ok, err := st.Read(path.Join(coach.CoachDir, plan.Name)); err == nil && ok {
		section := plandoc.ExtractSection(string(doc), now)
		report.Today = &TodayStatus{Found: section.Found, Heading: section.Heading}
	}

	if data, ok, err := st.Read(trainlog.LogFile); err == nil && ok {
		if entries, err := trainlog.ParseCSV(data); err == nil {
			report.LogEntries = len(entries)
		}
	}

	ledger := usage.NewLedger(filepath.Join(dataDir, "logs", "usage.jsonl"), 0)
	if calls, cost, err := ledger.MonthToDate(now); err == nil {
		report.MonthCalls = calls
		report.MonthCostUSD = cost
	}
	return report
}

// Run prints the status report, as JSON when jsonOutput is set.
func Run(dataDir string, jsonOutput bool) error {
	report := Collect(dataDir)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printReport(report)
	return nil
}

func printReport(r Report) {
	if r.Daemon.Running {
		fmt.Printf("Daemon:  running (pid %d, up %s, model %s)\n",
			r.Daemon.PID, (time.Duration(r.Daemon.UptimeSec) * time.Second).String(), r.Daemon.Model)
		if !r.Daemon.ChatEnabled {
			fmt.Println("         chat disabled: no API key configured")
		}
	} else {
		fmt.Println("Daemon:  not running")
	}

	if r.Plan == nil {
		fmt.Println("Plan:    none configured")
	} else {
		window := "in window"
		if !r.Plan.InWindow {
			window = "outside window"
		}
		fmt.Printf("Plan:    %s (%s to %s, %s)\n", r.Plan.Name, r.Plan.Start, r.Plan.End, window)
	}

	switch {
	case r.Today == nil:
	case r.Today.Found:
		fmt.Printf("Today:   %s\n", r.Today.Heading)
	default:
		fmt.Println("Today:   no section for today")
	}

	fmt.Printf("Log:     %d entries\n", r.LogEntries)
	fmt.Printf("Usage:   %d calls this month, $%.4f\n", r.MonthCalls, r.MonthCostUSD)
}
