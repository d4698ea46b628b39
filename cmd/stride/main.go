package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/stridecoach/stride/internal/coach"
	"github.com/stridecoach/stride/internal/daemon"
	"github.com/stridecoach/stride/internal/ipc"
	"github.com/stridecoach/stride/internal/llm"
	"github.com/stridecoach/stride/internal/markers"
	"github.com/stridecoach/stride/internal/model"
	"github.com/stridecoach/stride/internal/plandoc"
	"github.com/stridecoach/stride/internal/planfile"
	"github.com/stridecoach/stride/internal/profile"
	"github.com/stridecoach/stride/internal/setup"
	"github.com/stridecoach/stride/internal/status"
	"github.com/stridecoach/stride/internal/store"
	"github.com/stridecoach/stride/internal/trainlog"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "daemon":
		runDaemon(os.Args[2:])
	case "stop":
		runStop(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "plan":
		runPlan(os.Args[2:])
	case "chat":
		runChat(os.Args[2:])
	case "note":
		runNote(os.Args[2:])
	case "log":
		runLog(os.Args[2:])
	case "profile":
		runProfile(os.Args[2:])
	case "version":
		fmt.Printf("stride %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runInit(args []string) {
	dir := "."
	var userID, displayName string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--user":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--user requires a value")
				os.Exit(1)
			}
			i++
			userID = args[i]
		case "--name":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--name requires a value")
				os.Exit(1)
			}
			i++
			displayName = args[i]
		default:
			if strings.HasPrefix(args[i], "-") {
				fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: stride init [dir] [--user <id>] [--name <display name>]\n", args[i])
				os.Exit(1)
			}
			dir = args[i]
		}
	}

	if err := setup.Run(dir, userID, displayName); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	abs, _ := filepath.Abs(dir)
	fmt.Printf("Initialized stride data directory in %s\n", abs)
	fmt.Println("Next: set your API key and run 'stride daemon'.")
}

func runDaemon(_ []string) {
	dataDir := mustDataDir()
	cfg := mustConfig(dataDir)

	d, err := daemon.New(dataDir, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create daemon: %v\n", err)
		os.Exit(1)
	}
	if err := d.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "daemon: %v\n", err)
		os.Exit(1)
	}
}

func runStop(_ []string) {
	dataDir := mustDataDir()

	client := ipc.NewClient(filepath.Join(dataDir, ipc.SocketName))
	resp, err := client.SendCommand("shutdown", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stop: %v\n", err)
		os.Exit(1)
	}
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "stop failed: %s\n", errorMessage(resp))
		os.Exit(1)
	}
	fmt.Println("shutdown requested")
}

func runStatus(args []string) {
	jsonOutput := false
	for _, a := range args {
		switch a {
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: stride status [--json]\n", a)
			os.Exit(1)
		}
	}

	dataDir := mustDataDir()
	if err := status.Run(dataDir, jsonOutput); err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		os.Exit(1)
	}
}

// runPlan prints today's section of the active plan. It asks the daemon
// when one is running and reads the files directly when not.
func runPlan(args []string) {
	dateArg := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--date":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--date requires a value (YYYY-MM-DD)")
				os.Exit(1)
			}
			i++
			dateArg = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: stride plan [--date YYYY-MM-DD]\n", args[i])
			os.Exit(1)
		}
	}

	dataDir := mustDataDir()

	target := time.Now()
	if dateArg != "" {
		day, err := time.ParseInLocation("2006-01-02", dateArg, time.Local)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid date %q: %v\n", dateArg, err)
			os.Exit(1)
		}
		target = day.Add(12 * time.Hour)
	}

	// The daemon only answers for today; any other date is resolved locally.
	if dateArg == "" {
		client := ipc.NewClient(filepath.Join(dataDir, ipc.SocketName))
		client.SetTimeout(5 * time.Second)
		if resp, err := client.SendCommand("plan_today", nil); err == nil {
			printPlanResponse(resp)
			return
		}
	}

	st := store.New(dataDir)
	names, err := st.List(coach.CoachDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plan: %v\n", err)
		os.Exit(1)
	}
	plan, ok := planfile.FindActive(names, target)
	if !ok {
		fmt.Fprintln(os.Stderr, "plan: no plan files configured. Run 'stride init' first.")
		os.Exit(1)
	}

	doc, ok, err := st.Read(path.Join(coach.CoachDir, plan.Name))
	if err != nil || !ok {
		fmt.Fprintf(os.Stderr, "plan: read %s: %v\n", plan.Name, err)
		os.Exit(1)
	}

	section := plandoc.ExtractSection(string(doc), target)
	printSection(plan.Name, target.Format("2006-01-02"), section.Found, section.Heading, section.Body)
}

func printPlanResponse(resp *ipc.Response) {
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "plan: %s\n", errorMessage(resp))
		os.Exit(1)
	}
	var data daemon.PlanTodayData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		fmt.Fprintf(os.Stderr, "plan: decode response: %v\n", err)
		os.Exit(1)
	}
	printSection(data.Plan, data.Date, data.Found, data.Heading, data.Body)
}

func printSection(planName, date string, found bool, heading, body string) {
	fmt.Printf("%s (%s)\n\n", planName, date)
	if !found {
		fmt.Println("No section for this date.")
		return
	}
	fmt.Println(heading)
	if body != "" {
		fmt.Println(body)
	}
}

func runChat(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: stride chat <message>")
		os.Exit(1)
	}
	message := strings.Join(args, " ")

	dataDir := mustDataDir()

	client := ipc.NewClient(filepath.Join(dataDir, ipc.SocketName))
	resp, err := client.SendCommand("chat", daemon.ChatParams{
		History: []llm.Message{{Role: "user", Content: message}},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat: %v\n", err)
		os.Exit(1)
	}
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "chat failed: %s\n", errorMessage(resp))
		os.Exit(1)
	}

	var result coach.TurnResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		fmt.Fprintf(os.Stderr, "chat: decode response: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(result.Reply)
	for _, r := range result.ActionResults {
		if r.Success {
			fmt.Fprintf(os.Stderr, "[applied %s]\n", r.Kind)
		} else {
			fmt.Fprintf(os.Stderr, "[%s failed: %s]\n", r.Kind, r.Detail)
		}
	}
	fmt.Fprintf(os.Stderr, "[%s: %d in / %d out, $%.4f]\n",
		result.Usage.Model, result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.CostUSD)
}

// runNote appends a session note, via the daemon when running and directly
// otherwise. Notes are append-only so the direct path is safe.
func runNote(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: stride note <text>")
		os.Exit(1)
	}
	content := strings.Join(args, " ")

	dataDir := mustDataDir()

	client := ipc.NewClient(filepath.Join(dataDir, ipc.SocketName))
	client.SetTimeout(5 * time.Second)
	if resp, err := client.SendCommand("note_append", daemon.NoteParams{Content: content}); err == nil {
		if !resp.Success {
			fmt.Fprintf(os.Stderr, "note failed: %s\n", errorMessage(resp))
			os.Exit(1)
		}
		fmt.Println("note saved")
		return
	}

	executor := coach.NewExecutor(store.New(dataDir), nil)
	results := executor.Execute([]markers.Action{
		{Kind: markers.KindSaveNote, Content: content},
	}, time.Now())
	if !results[0].Success {
		fmt.Fprintf(os.Stderr, "note failed: %s\n", results[0].Detail)
		os.Exit(1)
	}
	fmt.Println("note saved")
}

func runLog(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: stride log <add|show> [options]")
		os.Exit(1)
	}
	switch args[0] {
	case "add":
		runLogAdd(args[1:])
	case "show":
		runLogShow(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown log subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "usage: stride log <add|show> [options]")
		os.Exit(1)
	}
}

// runLogAdd sends a free-form workout description to the daemon, which
// parses it into structured entries via the model.
func runLogAdd(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: stride log add <description>")
		os.Exit(1)
	}
	description := strings.Join(args, " ")

	dataDir := mustDataDir()

	client := ipc.NewClient(filepath.Join(dataDir, ipc.SocketName))
	resp, err := client.SendCommand("log_ingest", daemon.IngestParams{Description: description})
	if err != nil {
		fmt.Fprintf(os.Stderr, "log add: %v\n", err)
		os.Exit(1)
	}
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "log add failed: %s\n", errorMessage(resp))
		os.Exit(1)
	}

	var data daemon.IngestData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		fmt.Fprintf(os.Stderr, "log add: decode response: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("logged %d entr(ies)\n", len(data.Entries))
	for _, e := range data.Entries {
		fmt.Printf("  %s %s\n", e.Date, e.Exercise)
	}
}

func runLogShow(_ []string) {
	dataDir := mustDataDir()

	st := store.New(dataDir)
	data, ok, err := st.Read(trainlog.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log show: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("No entries logged yet.")
		return
	}

	entries, err := trainlog.ParseCSV(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log show: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(trainlog.Summary(entries, time.Now(), 40))
}

func runProfile(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: stride profile <show|set> [options]")
		os.Exit(1)
	}
	switch args[0] {
	case "show":
		runProfileShow(args[1:])
	case "set":
		runProfileSet(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown profile subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "usage: stride profile <show|set> [options]")
		os.Exit(1)
	}
}

func runProfileShow(_ []string) {
	dataDir := mustDataDir()
	cfg := mustConfig(dataDir)

	p, err := profile.Load(store.New(dataDir), cfg.User.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "profile: %v\n", err)
		os.Exit(1)
	}
	if p == nil {
		fmt.Println("No profile set. Run 'stride profile set --about <text>'.")
		return
	}

	out, _ := json.MarshalIndent(p, "", "  ")
	fmt.Println(string(out))
}

func runProfileSet(args []string) {
	var displayName, about string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--name":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--name requires a value")
				os.Exit(1)
			}
			i++
			displayName = args[i]
		case "--about":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--about requires a value")
				os.Exit(1)
			}
			i++
			about = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: stride profile set [--name <display name>] --about <text>\n", args[i])
			os.Exit(1)
		}
	}

	if about == "" {
		fmt.Fprintln(os.Stderr, "usage: stride profile set [--name <display name>] --about <text>")
		os.Exit(1)
	}

	dataDir := mustDataDir()
	cfg := mustConfig(dataDir)
	st := store.New(dataDir)

	p, err := profile.Load(st, cfg.User.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "profile: %v\n", err)
		os.Exit(1)
	}
	if p == nil {
		p = &profile.Profile{UserID: cfg.User.ID}
	}
	if displayName != "" {
		p.DisplayName = displayName
	} else if p.DisplayName == "" {
		p.DisplayName = cfg.User.DisplayName
	}
	p.AthleteProfile = about

	if err := profile.Save(st, p, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "profile: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("profile saved")
}

func errorMessage(resp *ipc.Response) string {
	if resp.Error == nil {
		return "unknown error"
	}
	return fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
}

// findDataDir locates the stride data directory: $STRIDE_DATA when set,
// otherwise the nearest ancestor directory containing stride.yaml.
func findDataDir() string {
	if env := os.Getenv("STRIDE_DATA"); env != "" {
		return env
	}

	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, model.ConfigFile)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func mustDataDir() string {
	dataDir := findDataDir()
	if dataDir == "" {
		fmt.Fprintln(os.Stderr, "error: no stride data directory found. Run 'stride init <dir>' first, or set $STRIDE_DATA.")
		os.Exit(1)
	}
	return dataDir
}

func mustConfig(dataDir string) model.Config {
	cfg, err := model.Load(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `stride %s — AI training coach over plain files

Usage: stride <command> [options]

Setup:
  init [dir] [--user <id>] [--name <name>]   Initialize a data directory
  profile set [--name <n>] --about <text>    Save your athlete profile
  profile show                               Show the saved profile

Daily use:
  plan [--date YYYY-MM-DD]   Show the plan for a day
  chat <message>             Talk to the coach (may edit the plan or save notes)
  note <text>                Append a session note yourself
  log add <description>      Log a workout in plain words
  log show                   Summarize the training log
  status [--json]            Daemon, plan window, and log overview

Daemon:
  daemon            Run the coach daemon (foreground)
  stop              Ask the daemon to shut down
  version           Show version
  help              Show this help

`, version)
}
