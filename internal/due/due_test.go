package due

import (
	"strings"
	"testing"
	"time"

	"github.com/starford/tiledash/internal/models"
)

var now = time.Date(2026, time.March, 10, 15, 30, 0, 0, time.UTC)

func day(offset int) string {
	return now.AddDate(0, 0, offset).Format(time.DateOnly)
}

func TestEvaluateEmpty(t *testing.T) {
	if Evaluate("", now) != nil {
		t.Error("empty due date should yield nil")
	}
	if Evaluate("not a date", now) != nil {
		t.Error("unparseable due date should yield nil")
	}
}

func TestEvaluateBoundaries(t *testing.T) {
	cases := []struct {
		offset int
		label  string
		tone   Tone
	}{
		{-2, "Overdue by 2 days", ToneError},
		{-1, "Overdue by 1 day", ToneError},
		{0, "Due today", ToneWarning},
		{1, "Due in 1 day", ToneWarning},
		{3, "Due in 3 days", ToneWarning},
		{4, "Mar 14", ToneDefault},
	}
	for _, tc := range cases {
		info := Evaluate(day(tc.offset), now)
		if info == nil {
			t.Fatalf("offset %d: nil info", tc.offset)
		}
		if info.Label != tc.label {
			t.Errorf("offset %d: label = %q, want %q", tc.offset, info.Label, tc.label)
		}
		if info.Tone != tc.tone {
			t.Errorf("offset %d: tone = %q, want %q", tc.offset, info.Tone, tc.tone)
		}
		if info.DaysUntil != tc.offset {
			t.Errorf("offset %d: daysUntil = %d", tc.offset, info.DaysUntil)
		}
	}
}

func TestEvaluateFlags(t *testing.T) {
	if info := Evaluate(day(-1), now); !info.IsOverdue || info.IsDueSoon || info.IsDueToday {
		t.Errorf("overdue flags wrong: %+v", info)
	}
	if info := Evaluate(day(0), now); !info.IsDueToday || info.IsDueSoon {
		t.Errorf("today flags wrong: %+v", info)
	}
	if info := Evaluate(day(3), now); !info.IsDueSoon {
		t.Errorf("due soon flags wrong: %+v", info)
	}
	if info := Evaluate(day(4), now); info.IsDueSoon || info.IsOverdue || info.IsDueToday {
		t.Errorf("far flags wrong: %+v", info)
	}
}

func TestEvaluateOtherYearIncludesYear(t *testing.T) {
	info := Evaluate("2027-01-05", now)
	if info.Label != "Jan 5, 2027" {
		t.Errorf("label = %q", info.Label)
	}
}

func TestEvaluateRFC3339(t *testing.T) {
	info := Evaluate(now.Add(48*time.Hour).Format(time.RFC3339), now)
	if info == nil || info.DaysUntil != 2 {
		t.Fatalf("info = %+v", info)
	}
}

func TestEvaluateLargeOffsets(t *testing.T) {
	for _, off := range []int{-5000, -366, 366, 5000} {
		info := Evaluate(day(off), now)
		if info == nil || info.DaysUntil != off {
			t.Errorf("offset %d: %+v", off, info)
		}
		if off < 0 && !strings.HasPrefix(info.Label, "Overdue by ") {
			t.Errorf("offset %d: label %q", off, info.Label)
		}
	}
}

func TestDaysBetweenAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	from := time.Date(2026, time.March, 7, 12, 0, 0, 0, loc)
	to := time.Date(2026, time.March, 9, 0, 0, 0, 0, loc)
	if got := DaysBetween(from, to); got != 2 {
		t.Errorf("DaysBetween across DST = %d, want 2", got)
	}
}

func TestNextRecurrence(t *testing.T) {
	cases := []struct {
		base string
		kind models.Recurrence
		want string
	}{
		{"2026-03-10", models.RecurDaily, "2026-03-11T00:00:00Z"},
		{"2026-03-10", models.RecurWeekly, "2026-03-17T00:00:00Z"},
		{"2026-03-10", models.RecurMonthly, "2026-04-10T00:00:00Z"},
		{"2026-01-31", models.RecurMonthly, "2026-03-03T00:00:00Z"},
		{"2026-12-31T08:00:00Z", models.RecurDaily, "2027-01-01T08:00:00Z"},
		{"2026-03-10", models.RecurNone, "2026-03-10T00:00:00Z"},
	}
	for _, tc := range cases {
		got, err := NextRecurrence(tc.base, tc.kind)
		if err != nil {
			t.Fatalf("NextRecurrence(%q, %q): %v", tc.base, tc.kind, err)
		}
		if got != tc.want {
			t.Errorf("NextRecurrence(%q, %q) = %q, want %q", tc.base, tc.kind, got, tc.want)
		}
	}
	if _, err := NextRecurrence("nope", models.RecurDaily); err == nil {
		t.Error("expected error for bad base date")
	}
}
