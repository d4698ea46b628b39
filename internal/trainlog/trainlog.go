// Package trainlog reads, appends, and summarizes the CSV training log.
package trainlog

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// LogFile is the training log's fixed location inside a user's data area.
const LogFile = "training_log.csv"

// Columns is the CSV schema, in column order. The log-parser prompt promises
// the model exactly these keys, so order and spelling are load-bearing.
var Columns = []string{
	"date", "session_name", "session_type", "activity_type", "exercise",
	"variant_or_details", "set_type", "set_number", "reps", "weight_lb",
	"weight_each_db_lb", "assistance_level", "duration_min", "distance_km",
	"pace_note", "rpe", "notes",
}

// Entry is one logged set or session line. Numeric fields are pointers:
// absent in the CSV (or null in model output) means nil, never zero.
type Entry struct {
	Date             string   `json:"date"`
	SessionName      string   `json:"session_name"`
	SessionType      string   `json:"session_type"`
	ActivityType     string   `json:"activity_type"`
	Exercise         string   `json:"exercise"`
	VariantOrDetails string   `json:"variant_or_details"`
	SetType          string   `json:"set_type"`
	SetNumber        *int     `json:"set_number"`
	Reps             *int     `json:"reps"`
	WeightLb         *float64 `json:"weight_lb"`
	WeightEachDbLb   *float64 `json:"weight_each_db_lb"`
	AssistanceLevel  *float64 `json:"assistance_level"`
	DurationMin      *float64 `json:"duration_min"`
	DistanceKm       *float64 `json:"distance_km"`
	PaceNote         string   `json:"pace_note"`
	RPE              *float64 `json:"rpe"`
	Notes            string   `json:"notes"`
}

// ParseCSV decodes the full training log. Columns are matched by header
// name, so column order in the file does not matter. Blank or non-numeric
// values in numeric columns become nil.
func ParseCSV(data []byte) ([]Entry, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse training log: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var entries []Entry
	for _, row := range records[1:] {
		if len(row) == 0 {
			continue
		}
		entries = append(entries, Entry{
			Date:             strings.TrimSpace(field(row, "date")),
			SessionName:      field(row, "session_name"),
			SessionType:      field(row, "session_type"),
			ActivityType:     field(row, "activity_type"),
			Exercise:         strings.TrimSpace(field(row, "exercise")),
			VariantOrDetails: field(row, "variant_or_details"),
			SetType:          field(row, "set_type"),
			SetNumber:        toInt(field(row, "set_number")),
			Reps:             toInt(field(row, "reps")),
			WeightLb:         toFloat(field(row, "weight_lb")),
			WeightEachDbLb:   toFloat(field(row, "weight_each_db_lb")),
			AssistanceLevel:  toFloat(field(row, "assistance_level")),
			DurationMin:      toFloat(field(row, "duration_min")),
			DistanceKm:       toFloat(field(row, "distance_km")),
			PaceNote:         field(row, "pace_note"),
			RPE:              toFloat(field(row, "rpe")),
			Notes:            field(row, "notes"),
		})
	}
	return entries, nil
}

// ParseJSON decodes a model-produced JSON array of log entries, validating
// that every entry carries a date and an exercise.
func ParseJSON(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse log entries: %w", err)
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Date) == "" {
			return nil, fmt.Errorf("entry %d: missing date", i)
		}
		if strings.TrimSpace(e.Exercise) == "" && strings.TrimSpace(e.SessionName) == "" {
			return nil, fmt.Errorf("entry %d: missing exercise and session name", i)
		}
	}
	return entries, nil
}

// AppendCSV returns the log content with entries appended, creating the
// header row when the current content is empty.
func AppendCSV(current []byte, entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if len(bytes.TrimSpace(current)) == 0 {
		if err := w.Write(Columns); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	} else {
		buf.Write(current)
		if current[len(current)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}

	for _, e := range entries {
		if err := w.Write(e.record()); err != nil {
			return nil, fmt.Errorf("write entry: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush log: %w", err)
	}
	return buf.Bytes(), nil
}

func (e Entry) record() []string {
	return []string{
		e.Date, e.SessionName, e.SessionType, e.ActivityType, e.Exercise,
		e.VariantOrDetails, e.SetType, fmtInt(e.SetNumber), fmtInt(e.Reps),
		fmtFloat(e.WeightLb), fmtFloat(e.WeightEachDbLb), fmtFloat(e.AssistanceLevel),
		fmtFloat(e.DurationMin), fmtFloat(e.DistanceKm), e.PaceNote,
		fmtFloat(e.RPE), e.Notes,
	}
}

func toInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Tolerate "3.0" style values in integer columns.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		n = int(f)
	}
	return &n
}

func toFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func fmtInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func fmtFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
