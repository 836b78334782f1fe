// Package due derives due-date status labels and rolls recurring reminders
// forward.
package due

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/starford/tiledash/internal/models"
)

// Tone is the display severity of a due date.
type Tone string

// Tones.
const (
	ToneDefault Tone = "default"
	ToneWarning Tone = "warning"
	ToneError   Tone = "error"
)

// DueSoonDays is the inclusive upper bound of the "due soon" window.
const DueSoonDays = 3

// Info describes a due date relative to a reference day.
type Info struct {
	IsOverdue  bool   `json:"isOverdue"`
	IsDueToday bool   `json:"isDueToday"`
	IsDueSoon  bool   `json:"isDueSoon"`
	DaysUntil  int    `json:"daysUntil"`
	Label      string `json:"label"`
	Tone       Tone   `json:"tone"`
}

// Parse reads a due date as YYYY-MM-DD or RFC3339. Date-only values are
// interpreted in loc.
func Parse(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("due: parse %q: %w", s, err)
	}
	return t.In(loc), nil
}

// Evaluate returns status information for dueDate as seen on now's
// calendar day. It returns nil when dueDate is empty or unparseable.
func Evaluate(dueDate string, now time.Time) *Info {
	if strings.TrimSpace(dueDate) == "" {
		return nil
	}
	d, err := Parse(dueDate, now.Location())
	if err != nil {
		return nil
	}
	days := DaysBetween(now, d)
	info := &Info{DaysUntil: days}
	switch {
	case days < 0:
		info.IsOverdue = true
		info.Label = fmt.Sprintf("Overdue by %d %s", -days, plural(-days))
		info.Tone = ToneError
	case days == 0:
		info.IsDueToday = true
		info.Label = "Due today"
		info.Tone = ToneWarning
	case days <= DueSoonDays:
		info.IsDueSoon = true
		info.Label = fmt.Sprintf("Due in %d %s", days, plural(days))
		info.Tone = ToneWarning
	default:
		info.Label = FormatDate(d, now)
		info.Tone = ToneDefault
	}
	return info
}

// DaysBetween returns the whole number of calendar days from from's day to
// to's day, both taken in from's location.
func DaysBetween(from, to time.Time) int {
	loc := from.Location()
	a := midnight(from, loc)
	b := midnight(to.In(loc), loc)
	// Midnights can be 23 or 25 hours apart around DST switches.
	return int(math.Round(b.Sub(a).Hours() / 24))
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// FormatDate renders d as "Jan 2", adding the year when it differs from now.
func FormatDate(d, now time.Time) string {
	if d.Year() == now.Year() {
		return d.Format("Jan 2")
	}
	return d.Format("Jan 2, 2006")
}

func plural(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}

// NextRecurrence advances base by one period of kind. Month arithmetic uses
// time.AddDate normalization, so Jan 31 + 1 month lands on Mar 2 or 3.
// Unknown kinds return base unchanged.
func NextRecurrence(base string, kind models.Recurrence) (string, error) {
	t, err := Parse(base, time.UTC)
	if err != nil {
		return "", err
	}
	switch kind {
	case models.RecurDaily:
		t = t.AddDate(0, 0, 1)
	case models.RecurWeekly:
		t = t.AddDate(0, 0, 7)
	case models.RecurMonthly:
		t = t.AddDate(0, 1, 0)
	}
	return t.UTC().Format(time.RFC3339), nil
}
