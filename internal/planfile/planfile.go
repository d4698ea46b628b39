// Package planfile selects the active plan document from a directory of
// date-ranged plan files named two-week-plan-<start>_to_<end>.md.
package planfile

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

// NamePattern is the anchored filename convention for plan files.
var NamePattern = regexp.MustCompile(`^two-week-plan-(\d{4}-\d{2}-\d{2})_to_(\d{4}-\d{2}-\d{2})\.md$`)

// Plan is one plan file with its window parsed from the filename.
// Start and End are inclusive calendar dates at midnight UTC.
type Plan struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Contains reports whether ref falls inside the plan's [start, end+1d)
// half-open window. The extra day tolerates same-day edge effects from
// timezone truncation.
func (p Plan) Contains(ref time.Time) bool {
	return !ref.Before(p.Start) && ref.Before(p.End.AddDate(0, 0, 1))
}

// Parse filters a directory listing down to well-formed plan files. A name
// that fails the pattern, or one whose dates do not parse, is dropped
// silently rather than failing the scan. Results are sorted by start date
// (then name) so selection does not depend on listing order.
func Parse(names []string) []Plan {
	var plans []Plan
	for _, name := range names {
		m := NamePattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		start, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			continue
		}
		end, err := time.Parse("2006-01-02", m[2])
		if err != nil {
			continue
		}
		plans = append(plans, Plan{Name: name, Start: start, End: end})
	}

	sort.Slice(plans, func(i, j int) bool {
		if !plans[i].Start.Equal(plans[j].Start) {
			return plans[i].Start.Before(plans[j].Start)
		}
		return plans[i].Name < plans[j].Name
	})
	return plans
}

// FindActive selects the plan whose window contains ref, falling back to the
// most recently started plan when no window matches. ok=false means no plan
// files exist at all — callers treat that as "no plan configured", not an
// error.
func FindActive(names []string, ref time.Time) (Plan, bool) {
	plans := Parse(names)
	if len(plans) == 0 {
		return Plan{}, false
	}

	for _, p := range plans {
		if p.Contains(ref) {
			return p, true
		}
	}

	latest := plans[0]
	for _, p := range plans[1:] {
		if p.Start.After(latest.Start) {
			latest = p
		}
	}
	return latest, true
}

// Overlaps returns a human-readable description per overlapping window pair.
// Overlapping windows are a configuration problem worth surfacing; selection
// still resolves deterministically to the earliest-starting match.
func Overlaps(plans []Plan) []string {
	var out []string
	for i := 0; i < len(plans); i++ {
		for j := i + 1; j < len(plans); j++ {
			a, b := plans[i], plans[j]
			if !a.Start.After(b.End) && !b.Start.After(a.End) {
				out = append(out, fmt.Sprintf("plan windows overlap: %s and %s", a.Name, b.Name))
			}
		}
	}
	return out
}
