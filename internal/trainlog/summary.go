package trainlog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Summary renders the tiered log summary fed to the coach prompt: full
// per-set detail for the last 14 days, older sessions compressed to one line
// per date+session. maxOlder bounds how many older entries are considered,
// newest last.
func Summary(entries []Entry, now time.Time, maxOlder int) string {
	if len(entries) == 0 {
		return "No entries logged yet."
	}

	cutoff := now.AddDate(0, 0, -14).Format("2006-01-02")

	var recent, older []Entry
	for _, e := range entries {
		if e.Date >= cutoff {
			recent = append(recent, e)
		} else {
			older = append(older, e)
		}
	}
	if len(older) > maxOlder {
		older = older[len(older)-maxOlder:]
	}

	var recentLines []string
	for _, e := range recent {
		recentLines = append(recentLines, e.detailLine())
	}

	// One compressed line per date+session, preserving first-seen order.
	var sessionKeys []string
	sessions := make(map[string][]string)
	for _, e := range older {
		session := e.SessionName
		if session == "" {
			session = e.SessionType
		}
		key := e.Date + "|" + session
		if _, ok := sessions[key]; !ok {
			sessionKeys = append(sessionKeys, key)
		}
		sessions[key] = append(sessions[key], e.compactExercise())
	}

	var parts []string
	if len(sessionKeys) > 0 {
		parts = append(parts, fmt.Sprintf("OLDER SESSIONS (compressed, last %d sessions before 14 days ago):", len(sessionKeys)))
		for _, key := range sessionKeys {
			date, session, _ := strings.Cut(key, "|")
			exercises := sessions[key]
			line := fmt.Sprintf("[%s] %s: %s", date, session, strings.Join(head(exercises, 6), ", "))
			if len(exercises) > 6 {
				line += fmt.Sprintf(" (+%d more)", len(exercises)-6)
			}
			parts = append(parts, line)
		}
		parts = append(parts, "", "LAST 14 DAYS (full detail):")
	}

	if len(recentLines) > 0 {
		parts = append(parts, recentLines...)
	} else {
		parts = append(parts, "No sessions in last 14 days.")
	}
	return strings.Join(parts, "\n")
}

func (e Entry) detailLine() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Date, e.Exercise)}
	if e.SessionName != "" {
		parts = append(parts, "("+e.SessionName+")")
	}
	if e.SetType != "" {
		parts = append(parts, e.SetType)
	}
	if e.Reps != nil {
		parts = append(parts, fmt.Sprintf("%d reps", *e.Reps))
	}
	if e.WeightLb != nil {
		parts = append(parts, "@ "+num(*e.WeightLb)+" lb")
	}
	if e.WeightEachDbLb != nil {
		parts = append(parts, num(*e.WeightEachDbLb)+" lb each")
	}
	if e.DurationMin != nil {
		parts = append(parts, num(*e.DurationMin)+" min")
	}
	if e.DistanceKm != nil {
		parts = append(parts, num(*e.DistanceKm)+" km")
	}
	if e.Notes != "" {
		parts = append(parts, "— "+e.Notes)
	}
	return strings.Join(parts, " ")
}

func (e Entry) compactExercise() string {
	parts := []string{e.Exercise}
	switch {
	case e.Reps != nil && e.WeightLb != nil:
		parts = append(parts, fmt.Sprintf("%d×%slb", *e.Reps, num(*e.WeightLb)))
	case e.DistanceKm != nil:
		parts = append(parts, num(*e.DistanceKm)+"km")
	case e.DurationMin != nil:
		parts = append(parts, num(*e.DurationMin)+"min")
	}
	return strings.Join(parts, " ")
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func head(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
