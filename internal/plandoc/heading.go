// Package plandoc parses and patches date-sectioned training plan documents.
//
// A plan document is plain Markdown divided into day sections by second-level
// headings of the form:
//
//	## Thu Feb 19 — Quality run (intervals) + core (short)
//
// The weekday prefix and the em-dash title are optional; only the 3-letter
// month abbreviation and the day number are significant. Headings carry no
// year, so every lookup takes a reference date that supplies it.
package plandoc

import (
	"regexp"
	"strconv"
	"time"
)

// HeadingPattern matches the first month+day token after a `##` marker.
// First match wins; a title that contains a month-like token before the real
// date will shadow it. Callers own that constraint.
var HeadingPattern = regexp.MustCompile(`^##[^#].*?([A-Z][a-z]{2})\s+(\d{1,2})`)

var months = map[string]time.Month{
	"Jan": time.January,
	"Feb": time.February,
	"Mar": time.March,
	"Apr": time.April,
	"May": time.May,
	"Jun": time.June,
	"Jul": time.July,
	"Aug": time.August,
	"Sep": time.September,
	"Oct": time.October,
	"Nov": time.November,
	"Dec": time.December,
}

// ResolveHeadingDate parses a heading line into a calendar date. The year is
// never read from the line; it comes from ref. Returns false when the line is
// not a second-level heading or carries no recognizable month+day token.
func ResolveHeadingDate(line string, ref time.Time) (time.Time, bool) {
	m := HeadingPattern.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}
	month, ok := months[m[1]]
	if !ok {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(ref.Year(), month, day, 0, 0, 0, 0, ref.Location()), true
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
