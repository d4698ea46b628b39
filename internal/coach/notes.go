package coach

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const notesHeader = "# Coach Session Notes\n<!-- Auto-appended by AI coach. Do not edit manually. -->\n"

// notesHeaderPattern strips the title line and the comment line below it.
var notesHeaderPattern = regexp.MustCompile(`^#[^\n]*\n[^\n]*\n`)

// appendNote adds a timestamped entry to the session-notes document,
// creating it with the fixed header when absent.
func (e *Executor) appendNote(content string, ref time.Time) error {
	entry := fmt.Sprintf("\n## %s\n%s\n", ref.Format("2006-01-02 15:04"), strings.TrimSpace(content))

	current, ok, err := e.store.Read(NotesFile)
	if err != nil {
		return err
	}
	if !ok {
		return e.store.Write(NotesFile, []byte(notesHeader+entry))
	}
	return e.store.Write(NotesFile, append(current, []byte(entry)...))
}

// NotesSummary returns the tail of the session notes for the coach prompt:
// the header comment is stripped and at most the last maxChars characters
// are kept. Empty when no notes exist yet.
func NotesSummary(s Store, maxChars int) (string, error) {
	data, ok, err := s.Read(NotesFile)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}

	content := strings.TrimSpace(notesHeaderPattern.ReplaceAllString(string(data), ""))
	if len(content) > maxChars {
		content = content[len(content)-maxChars:]
	}
	return content, nil
}
