package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/stridecoach/stride/internal/coach"
	"github.com/stridecoach/stride/internal/ipc"
	"github.com/stridecoach/stride/internal/llm"
	"github.com/stridecoach/stride/internal/markers"
	"github.com/stridecoach/stride/internal/plandoc"
	"github.com/stridecoach/stride/internal/planfile"
	"github.com/stridecoach/stride/internal/trainlog"
)

// ChatParams carries one chat turn's history; the newest user message is the
// last entry.
type ChatParams struct {
	History []llm.Message `json:"history"`
}

type NoteParams struct {
	Content string `json:"content"`
}

type IngestParams struct {
	Description string `json:"description"`
}

// StatusData is the daemon's answer to the status command.
type StatusData struct {
	PID          int         `json:"pid"`
	UptimeSec    int64       `json:"uptime_sec"`
	DataDir      string      `json:"data_dir"`
	Model        string      `json:"model"`
	ChatEnabled  bool        `json:"chat_enabled"`
	Plan         *PlanStatus `json:"plan,omitempty"`
	LogEntries   int         `json:"log_entries"`
	MonthCalls   int         `json:"month_calls"`
	MonthCostUSD float64     `json:"month_cost_usd"`
}

type PlanStatus struct {
	Name     string `json:"name"`
	Start    string `json:"start"`
	End      string `json:"end"`
	InWindow bool   `json:"in_window"`
}

// PlanTodayData is the active plan's section for one calendar day.
type PlanTodayData struct {
	Plan    string `json:"plan"`
	Date    string `json:"date"`
	Found   bool   `json:"found"`
	Heading string `json:"heading,omitempty"`
	Body    string `json:"body,omitempty"`
}

type IngestData struct {
	Entries []trainlog.Entry `json:"entries"`
}

func (d *Daemon) registerHandlers() {
	d.server.Handle("ping", func(req *ipc.Request) *ipc.Response {
		return ipc.SuccessResponse(map[string]string{"status": "ok"})
	})

	d.server.Handle("shutdown", func(req *ipc.Request) *ipc.Response {
		d.log(LogLevelInfo, "shutdown requested via IPC")
		go d.Shutdown()
		return ipc.SuccessResponse(map[string]string{"status": "shutdown_accepted"})
	})

	d.server.Handle("status", d.handleStatus)
	d.server.Handle("plan_today", d.handlePlanToday)
	d.server.Handle("chat", d.handleChat)
	d.server.Handle("note_append", d.handleNoteAppend)
	d.server.Handle("log_ingest", d.handleLogIngest)
}

func (d *Daemon) handleStatus(req *ipc.Request) *ipc.Response {
	status := StatusData{
		PID:         os.Getpid(),
		UptimeSec:   int64(time.Since(d.started).Seconds()),
		DataDir:     d.dataDir,
		Model:       d.config.Coach.Model,
		ChatEnabled: d.coach != nil,
	}

	names, err := d.store.List(coach.CoachDir)
	if err != nil {
		return ipc.ErrorResponse(ipc.ErrCodeInternal, err.Error())
	}
	now := time.Now()
	if plan, ok := planfile.FindActive(names, now); ok {
		status.Plan = &PlanStatus{
			Name:     plan.Name,
			Start:    plan.Start.Format("2006-01-02"),
			End:      plan.End.Format("2006-01-02"),
			InWindow: plan.Contains(now),
		}
	}

	if data, ok, err := d.store.Read(trainlog.LogFile); err == nil && ok {
		if entries, err := trainlog.ParseCSV(data); err == nil {
			status.LogEntries = len(entries)
		}
	}

	if calls, cost, err := d.ledger.MonthToDate(now); err == nil {
		status.MonthCalls = calls
		status.MonthCostUSD = cost
	}
	return ipc.SuccessResponse(status)
}

func (d *Daemon) handlePlanToday(req *ipc.Request) *ipc.Response {
	now := time.Now()

	names, err := d.store.List(coach.CoachDir)
	if err != nil {
		return ipc.ErrorResponse(ipc.ErrCodeInternal, err.Error())
	}
	plan, ok := planfile.FindActive(names, now)
	if !ok {
		return ipc.ErrorResponse(ipc.ErrCodeNoPlan, "no plan files configured")
	}

	doc, ok, err := d.store.Read(path.Join(coach.CoachDir, plan.Name))
	if err != nil {
		return ipc.ErrorResponse(ipc.ErrCodeInternal, err.Error())
	}
	if !ok {
		return ipc.ErrorResponse(ipc.ErrCodeNotFound, fmt.Sprintf("plan file %s disappeared", plan.Name))
	}

	section := plandoc.ExtractSection(string(doc), now)
	return ipc.SuccessResponse(PlanTodayData{
		Plan:    plan.Name,
		Date:    now.Format("2006-01-02"),
		Found:   section.Found,
		Heading: section.Heading,
		Body:    section.Body,
	})
}

func (d *Daemon) handleChat(req *ipc.Request) *ipc.Response {
	if d.coach == nil {
		return ipc.ErrorResponse(ipc.ErrCodeUpstream,
			fmt.Sprintf("chat is disabled: no API key in $%s", d.config.Coach.APIKeyEnv))
	}

	var p ChatParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return ipc.ErrorResponse(ipc.ErrCodeValidation, err.Error())
	}
	if len(p.History) == 0 {
		return ipc.ErrorResponse(ipc.ErrCodeValidation, "history must contain at least one message")
	}

	result, err := d.coach.ChatTurn(d.ctx, p.History, time.Now())
	if err != nil {
		return ipc.ErrorResponse(ipc.ErrCodeUpstream, err.Error())
	}
	return ipc.SuccessResponse(result)
}

func (d *Daemon) handleNoteAppend(req *ipc.Request) *ipc.Response {
	var p NoteParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return ipc.ErrorResponse(ipc.ErrCodeValidation, err.Error())
	}
	if strings.TrimSpace(p.Content) == "" {
		return ipc.ErrorResponse(ipc.ErrCodeValidation, "note content is empty")
	}

	results := d.executor.Execute([]markers.Action{
		{Kind: markers.KindSaveNote, Content: p.Content},
	}, time.Now())
	if !results[0].Success {
		return ipc.ErrorResponse(ipc.ErrCodeInternal, results[0].Detail)
	}
	return ipc.SuccessResponse(map[string]string{"status": "saved"})
}

func (d *Daemon) handleLogIngest(req *ipc.Request) *ipc.Response {
	if d.coach == nil {
		return ipc.ErrorResponse(ipc.ErrCodeUpstream,
			fmt.Sprintf("log parsing is disabled: no API key in $%s", d.config.Coach.APIKeyEnv))
	}

	var p IngestParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return ipc.ErrorResponse(ipc.ErrCodeValidation, err.Error())
	}
	if strings.TrimSpace(p.Description) == "" {
		return ipc.ErrorResponse(ipc.ErrCodeValidation, "workout description is empty")
	}

	entries, err := d.coach.IngestWorkout(d.ctx, p.Description, time.Now())
	if err != nil {
		return ipc.ErrorResponse(ipc.ErrCodeUpstream, err.Error())
	}
	return ipc.SuccessResponse(IngestData{Entries: entries})
}
