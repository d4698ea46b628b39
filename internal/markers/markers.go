// Package markers extracts structured coach actions from free-form model
// output. Two grammars are recognized and stripped from the visible reply:
//
//	[SAVE_NOTE: one or two sentences]
//
//	<PLAN_UPDATE date="2026-02-21">
//	## Sat Feb 21 — Rest
//	Easy day.
//	</PLAN_UPDATE>
//
// The date attribute is optional; without it the update targets the caller's
// reference day.
package markers

import (
	"regexp"
	"strings"
)

// Kind discriminates the action variants.
type Kind string

const (
	KindSaveNote Kind = "save_note"
	KindEditPlan Kind = "edit_plan"
)

// Action is one structured request extracted from a reply. Actions live only
// for the request that produced them; only their effects persist.
type Action struct {
	Kind        Kind
	Content     string // save_note: note text
	Replacement string // edit_plan: replacement markdown
	TargetDate  string // edit_plan: optional YYYY-MM-DD from the date attribute
}

var (
	saveNotePattern   = regexp.MustCompile(`\[SAVE_NOTE:\s*([^\]]*?)\s*\]`)
	planUpdatePattern = regexp.MustCompile(`(?s)<PLAN_UPDATE(?:\s+date="([^"]+)")?>(.*?)</PLAN_UPDATE>`)
)

// Parse strips all markers from text and returns the cleaned reply plus the
// extracted actions in order of appearance. Bracket markers are stripped
// before block markers so a bracket nested inside block content is still
// removed. A marker with empty content is removed but produces no action.
// Replies with zero actions are the common case.
func Parse(text string) (string, []Action) {
	var actions []Action

	cleaned := saveNotePattern.ReplaceAllStringFunc(text, func(match string) string {
		content := strings.TrimSpace(saveNotePattern.FindStringSubmatch(match)[1])
		if content != "" {
			actions = append(actions, Action{Kind: KindSaveNote, Content: content})
		}
		return ""
	})

	cleaned = planUpdatePattern.ReplaceAllStringFunc(cleaned, func(match string) string {
		m := planUpdatePattern.FindStringSubmatch(match)
		replacement := strings.TrimSpace(m[2])
		if replacement != "" {
			actions = append(actions, Action{
				Kind:        KindEditPlan,
				Replacement: replacement,
				TargetDate:  m[1],
			})
		}
		return ""
	})

	return strings.TrimSpace(cleaned), actions
}
