package plandoc

import (
	"strings"
	"time"
)

// Section is one day section of a plan document: the heading line (without
// its `## ` marker) and the body text up to the next heading.
type Section struct {
	Heading string
	Body    string
	Found   bool
}

// ExtractSection returns the section whose heading resolves to the same
// calendar day as target. Scanning is top-to-bottom and stops at the first
// match. A missing day is a normal outcome, reported via Found=false.
func ExtractSection(doc string, target time.Time) Section {
	lines := strings.Split(doc, "\n")

	idx := -1
	for i, line := range lines {
		if d, ok := ResolveHeadingDate(line, target); ok && SameDay(d, target) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Section{}
	}

	heading := strings.TrimSpace(strings.TrimPrefix(lines[idx], "##"))

	var body []string
	for _, line := range lines[idx+1:] {
		if strings.HasPrefix(line, "## ") {
			break
		}
		body = append(body, line)
	}

	return Section{
		Heading: heading,
		Body:    strings.TrimSpace(strings.Join(body, "\n")),
		Found:   true,
	}
}

// PatchSection replaces the section for target with replacement and returns
// the rewritten document. When the trimmed replacement starts with a `## `
// line that line becomes the new heading; otherwise the original heading is
// kept and the whole replacement becomes the body. The rebuilt section is
// always padded with exactly one blank line on each side of the body, so
// repeated patches never accumulate extra spacing. Every other section passes
// through byte-for-byte. When no heading matches, the document is returned
// unchanged with ok=false.
//
// Replacement text is untrusted: a body line that itself starts with `## `
// will be read as a section boundary by later extractions. Callers must keep
// literal `## ` lines out of agent-generated body prose.
func PatchSection(doc string, target time.Time, replacement string) (string, bool) {
	lines := strings.Split(doc, "\n")

	start := -1
	for i, line := range lines {
		if d, ok := ResolveHeadingDate(line, target); ok && SameDay(d, target) {
			start = i
			break
		}
	}
	if start == -1 {
		return doc, false
	}

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "## ") {
			end = i
			break
		}
	}

	trimmed := strings.TrimSpace(replacement)
	replLines := strings.Split(trimmed, "\n")

	heading := lines[start]
	body := trimmed
	if strings.HasPrefix(replLines[0], "## ") {
		heading = replLines[0]
		body = strings.TrimSpace(strings.Join(replLines[1:], "\n"))
	}

	var out []string
	out = append(out, lines[:start]...)
	out = append(out, heading, "", body, "")
	out = append(out, lines[end:]...)
	return strings.Join(out, "\n"), true
}
