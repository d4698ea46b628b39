// Package coach applies the AI coach's structured actions to a user's data
// area and assembles the context the model sees each turn.
package coach

import (
	"fmt"
	"log"
	"path"
	"time"

	"github.com/stridecoach/stride/internal/markers"
	"github.com/stridecoach/stride/internal/plandoc"
	"github.com/stridecoach/stride/internal/planfile"
)

// Fixed layout inside a user's data area.
const (
	CoachDir        = "coach"
	NotesFile       = "coach/session-notes.md"
	ProgressionFile = "coach/progression.md"
)

// Store is the document store contract the coach consumes. Absence is
// reported via the bool, not an error; errors mean storage actually failed.
type Store interface {
	Read(rel string) ([]byte, bool, error)
	Write(rel string, content []byte) error
	Exists(rel string) bool
	List(dir string) ([]string, error)
}

// ActionResult reports the outcome of one executed action. Results are never
// persisted; they flow back to the caller for display.
type ActionResult struct {
	Kind    markers.Kind `json:"kind"`
	Success bool         `json:"success"`
	Detail  string       `json:"detail,omitempty"`
}

// Executor applies coach actions in order with per-action fault isolation.
type Executor struct {
	store  Store
	logger *log.Logger
}

// NewExecutor creates an Executor. logger may be nil.
func NewExecutor(s Store, logger *log.Logger) *Executor {
	return &Executor{store: s, logger: logger}
}

// Execute runs every action in input order and returns one result per
// action. A failed action never short-circuits the ones after it.
func (e *Executor) Execute(actions []markers.Action, ref time.Time) []ActionResult {
	results := make([]ActionResult, 0, len(actions))
	for _, a := range actions {
		results = append(results, e.executeOne(a, ref))
	}
	return results
}

func (e *Executor) executeOne(a markers.Action, ref time.Time) (result ActionResult) {
	result = ActionResult{Kind: a.Kind, Success: true}

	// Collaborator faults surface as errors below, but a panic inside one
	// must not take down the remaining actions either.
	defer func() {
		if r := recover(); r != nil {
			result = ActionResult{Kind: a.Kind, Detail: fmt.Sprintf("panic: %v", r)}
		}
	}()

	var err error
	switch a.Kind {
	case markers.KindSaveNote:
		err = e.appendNote(a.Content, ref)
	case markers.KindEditPlan:
		err = e.editPlan(a, ref)
	default:
		err = fmt.Errorf("unknown action kind %q", a.Kind)
	}

	if err != nil {
		result.Success = false
		result.Detail = err.Error()
		e.logf("action %s failed: %v", a.Kind, err)
	}
	return result
}

// editPlan resolves the action's target date, finds the plan file whose
// window covers it, and patches that day's section in place.
func (e *Executor) editPlan(a markers.Action, ref time.Time) error {
	target := ref
	if a.TargetDate != "" {
		day, err := time.ParseInLocation("2006-01-02", a.TargetDate, ref.Location())
		if err != nil {
			return fmt.Errorf("invalid plan update date %q: %w", a.TargetDate, err)
		}
		// Noon keeps the date stable across day-boundary drift.
		target = day.Add(12 * time.Hour)
	}

	names, err := e.store.List(CoachDir)
	if err != nil {
		return fmt.Errorf("scan plan directory: %w", err)
	}
	plan, ok := planfile.FindActive(names, target)
	if !ok {
		return fmt.Errorf("no active plan file for %s", target.Format("2006-01-02"))
	}

	rel := path.Join(CoachDir, plan.Name)
	doc, ok, err := e.store.Read(rel)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("plan file %s disappeared", plan.Name)
	}

	patched, ok := plandoc.PatchSection(string(doc), target, a.Replacement)
	if !ok {
		return fmt.Errorf("no section for %s in %s", target.Format("2006-01-02"), plan.Name)
	}

	if err := e.store.Write(rel, []byte(patched)); err != nil {
		return err
	}
	e.logf("patched %s section %s", plan.Name, target.Format("2006-01-02"))
	return nil
}

func (e *Executor) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
