// Package setup handles stride data directory initialization.
package setup

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stridecoach/stride/internal/coach"
	"github.com/stridecoach/stride/internal/model"
	"github.com/stridecoach/stride/internal/store"
	"github.com/stridecoach/stride/templates"
)

// Run initializes a stride data directory: the directory skeleton, a
// stride.yaml from the template, the default progression rules, and a
// starter two-week plan whose window begins today. userID and displayName
// override the template values when non-empty.
func Run(dataDir, userID, displayName string) error {
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}

	if _, err := os.Stat(filepath.Join(abs, model.ConfigFile)); err == nil {
		return fmt.Errorf("%s already exists in %s", model.ConfigFile, abs)
	}

	for _, d := range []string{coach.CoachDir, "users", "logs", "locks"} {
		if err := os.MkdirAll(filepath.Join(abs, d), 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	st := store.New(abs)

	cfg, err := generateConfig(userID, displayName)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", model.ConfigFile, err)
	}
	if err := st.Write(model.ConfigFile, out); err != nil {
		return fmt.Errorf("write %s: %w", model.ConfigFile, err)
	}

	prog, err := fs.ReadFile(templates.FS, "progression.md")
	if err != nil {
		return fmt.Errorf("read progression template: %w", err)
	}
	if err := st.Write(coach.ProgressionFile, prog); err != nil {
		return fmt.Errorf("write progression rules: %w", err)
	}

	if err := writeStarterPlan(st, time.Now()); err != nil {
		return fmt.Errorf("write starter plan: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(abs, "users", cfg.User.ID), 0755); err != nil {
		return fmt.Errorf("create user directory: %w", err)
	}

	// Create daemon.lock (empty)
	if err := os.WriteFile(filepath.Join(abs, "locks", "daemon.lock"), nil, 0600); err != nil {
		return fmt.Errorf("create daemon.lock: %w", err)
	}

	return nil
}

func generateConfig(userID, displayName string) (model.Config, error) {
	data, err := fs.ReadFile(templates.FS, "stride.yaml")
	if err != nil {
		return model.Config{}, fmt.Errorf("read config template: %w", err)
	}

	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.Config{}, fmt.Errorf("parse config template: %w", err)
	}

	if userID != "" {
		cfg.User.ID = userID
	}
	if displayName != "" {
		cfg.User.DisplayName = displayName
	}
	return cfg, nil
}

// writeStarterPlan seeds a plan file covering today through day 13, one
// rest-day section per day, so the coach has something to patch from the
// first conversation.
func writeStarterPlan(st *store.Store, now time.Time) error {
	start := now
	end := start.AddDate(0, 0, 13)
	name := fmt.Sprintf("two-week-plan-%s_to_%s.md",
		start.Format("2006-01-02"), end.Format("2006-01-02"))

	var b strings.Builder
	b.WriteString("# Two-Week Training Plan\n\n")
	b.WriteString("Edit freely. The coach patches day sections in place when you agree\n")
	b.WriteString("to changes in chat.\n")
	for i := 0; i < 14; i++ {
		day := start.AddDate(0, 0, i)
		fmt.Fprintf(&b, "\n## %s - Rest\n- Ask the coach to draft this day.\n", day.Format("Mon Jan 2"))
	}

	return st.Write(path.Join(coach.CoachDir, name), []byte(b.String()))
}
