package coach

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/stridecoach/stride/internal/plandoc"
	"github.com/stridecoach/stride/internal/planfile"
	"github.com/stridecoach/stride/internal/profile"
	"github.com/stridecoach/stride/internal/trainlog"
)

const (
	notesTailChars      = 3000
	progressionChars    = 3000
	olderSessionEntries = 40
)

const coachInstructions = `Respond in plain text. Be direct, specific, and actionable. Bullet points are fine.

AFTER your reply, you may append one or both of the following special markers if needed — place them at the very end, each on its own line:

[SAVE_NOTE: one or two sentence note about what the athlete mentioned — sleep quality, soreness, mood, energy, injuries, etc. Only include if they shared something personally relevant.]

<PLAN_UPDATE>
## DayOfWeek Month DD — Updated session title here
Full replacement markdown for the body of today's plan section. Always start with the ## heading line (you may update the title to reflect what actually changed). Only include if you are actually changing what they should do today — swapping an exercise, reducing volume, or recommending rest. Do not truncate — write the complete replacement.
</PLAN_UPDATE>

IMPORTANT: Only append markers when genuinely needed. Most replies will have no markers at all. Never invent markers if nothing changed.`

// BuildSystemPrompt assembles the coach's full system prompt for one turn:
// athlete profile, tiered log summary, prior session notes, today's plan
// section, and the progression rules excerpt. Missing documents degrade to
// placeholders; only real storage failures return an error.
func BuildSystemPrompt(s Store, userID string, now time.Time) (string, error) {
	prof, err := profile.Load(s, userID)
	if err != nil {
		return "", err
	}

	logSummary, err := logSummary(s, now)
	if err != nil {
		return "", err
	}

	notes, err := NotesSummary(s, notesTailChars)
	if err != nil {
		return "", err
	}
	notesSection := ""
	if notes != "" {
		notesSection = fmt.Sprintf("\nCOACH SESSION NOTES (your memory of prior conversations):\n%s\n", notes)
	}

	todaySection, err := todayPlanSection(s, now)
	if err != nil {
		return "", err
	}

	progression, err := progressionExcerpt(s)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`You are a personal fitness coach with deep knowledge of this athlete. You are direct, specific, and give actionable advice. You know their full history and goals. Never be vague.

%s

RECENT TRAINING LOG (last ~%d entries, newest last):
%s
%s
%s

PROGRESSION RULES SUMMARY:
%s

Today's date: %s

%s`,
		profile.PromptText(prof),
		olderSessionEntries,
		logSummary,
		notesSection,
		todaySection,
		progression,
		now.Format("Mon Jan 2 2006"),
		coachInstructions,
	), nil
}

func logSummary(s Store, now time.Time) (string, error) {
	data, ok, err := s.Read(trainlog.LogFile)
	if err != nil {
		return "", err
	}
	if !ok {
		return "No entries logged yet.", nil
	}
	entries, err := trainlog.ParseCSV(data)
	if err != nil {
		// A corrupt log should not take down the whole turn.
		return fmt.Sprintf("(training log unreadable: %v)", err), nil
	}
	return trainlog.Summary(entries, now, olderSessionEntries), nil
}

func todayPlanSection(s Store, now time.Time) (string, error) {
	names, err := s.List(CoachDir)
	if err != nil {
		return "", err
	}
	plan, ok := planfile.FindActive(names, now)
	if !ok {
		return "TODAY'S PLAN: No plan configured.", nil
	}

	doc, ok, err := s.Read(path.Join(CoachDir, plan.Name))
	if err != nil {
		return "", err
	}
	if !ok {
		return "TODAY'S PLAN: No plan configured.", nil
	}

	section := plandoc.ExtractSection(string(doc), now)
	if !section.Found {
		return "TODAY'S PLAN: Outside the current plan window.", nil
	}
	return fmt.Sprintf("TODAY'S PLAN (%s):\n%s", section.Heading, section.Body), nil
}

func progressionExcerpt(s Store) (string, error) {
	data, ok, err := s.Read(ProgressionFile)
	if err != nil {
		return "", err
	}
	if !ok {
		return "(No progression rules on file.)", nil
	}
	text := string(data)
	if len(text) > progressionChars {
		text = text[:progressionChars]
	}
	return text, nil
}

// BuildLogParserPrompt is the system prompt that turns a free-form workout
// description into structured log entries.
func BuildLogParserPrompt(now time.Time) string {
	return fmt.Sprintf(`You are a fitness data parser. Convert free-form workout descriptions into structured JSON arrays.

Today's date: %s

CSV schema fields (for reference):
%s

Rules:
- session_type: one of "Strength", "Conditioning", "Core", "Mobility"
- activity_type: one of "lift", "run", "football", "core", "mobility"
- set_type: "warmup", "work", "top_set", or "" if not applicable
- set_number: integer (1-indexed per exercise), null if not applicable
- All weight/reps/duration fields: number or null
- Leave fields null/empty if not mentioned
- If the user says "just the bar", weight_lb = 44 (standard bar weight for this athlete)
- Split each set into a separate entry
- For exercises with multiple sets, generate one entry per set

Return ONLY a valid JSON array of objects with exactly these keys:
%s

No explanations, no markdown, just the JSON array.`,
		now.Format("2006-01-02"),
		strings.Join(trainlog.Columns, ","),
		strings.Join(trainlog.Columns, ", "),
	)
}
