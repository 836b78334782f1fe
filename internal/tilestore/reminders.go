package tilestore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/tiledash/internal/due"
	"github.com/starford/tiledash/internal/models"
)

// Reminder kinds announced by SweepReminders.
const (
	KindOverdue  = "overdue"
	KindDueToday = "due-today"
	KindDueSoon  = "due-soon"
	KindReminder = "reminder"
)

// SweepReminders announces overdue, due-today and due-soon tiles and
// recurring reminders that fall on today. Each tile is announced at most
// once per kind per day. Recurring reminders whose base date has passed
// are rolled forward to today or later. It returns the notifications
// added by this sweep.
func (s *Store) SweepReminders(ctx context.Context) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	today := now.Format(time.DateOnly)
	stamp := models.Stamp(now)
	var added []models.Notification
	changed := false

	announce := func(t models.Tile, kind, title, msg, typ string) {
		key := t.ID + "|" + kind
		if s.sent[key] == today {
			return
		}
		s.sent[key] = today
		added = append(added, s.notes.Add(models.Notification{
			Title:     title,
			Message:   msg,
			Type:      typ,
			Timestamp: stamp,
			TileID:    t.ID,
		}))
	}

	for i := range s.tiles {
		t := s.tiles[i]
		if info := due.Evaluate(t.DueDate, now); info != nil {
			switch {
			case info.IsOverdue:
				announce(t, KindOverdue, fmt.Sprintf("📌 %s is overdue!", t.Title), info.Label, models.NotifyError)
			case info.IsDueToday:
				announce(t, KindDueToday, fmt.Sprintf("⏰ %s is due today", t.Title), info.Label, models.NotifyWarning)
			case info.IsDueSoon:
				announce(t, KindDueSoon, fmt.Sprintf("⏰ %s is due soon", t.Title), info.Label, models.NotifyInfo)
			}
		}

		r := t.Reminder
		if r == nil || r.Recurring == "" || r.Recurring == models.RecurNone || r.BaseDate == "" {
			continue
		}
		next, rolled, err := rollForward(r.BaseDate, r.Recurring, now)
		if err != nil {
			s.logger.Warn("tilestore: unreadable reminder date",
				slog.String("id", t.ID), slog.String("baseDate", r.BaseDate))
			continue
		}
		if rolled {
			s.tiles[i].Reminder = &models.Reminder{Recurring: r.Recurring, BaseDate: next}
			changed = true
		}
		if d, err := due.Parse(next, now.Location()); err == nil && due.DaysBetween(now, d) == 0 {
			announce(t, KindReminder, fmt.Sprintf("🔔 %s", t.Title), fmt.Sprintf("Recurring %s reminder", r.Recurring), models.NotifyInfo)
		}
	}
	if changed {
		s.markDirty()
	}
	return added
}

// rollForward advances base by whole periods of kind until it falls on
// now's day or later.
func rollForward(base string, kind models.Recurrence, now time.Time) (string, bool, error) {
	cur := base
	rolled := false
	// Bounded so a corrupt date far in the past cannot spin.
	for i := 0; i < 10000; i++ {
		d, err := due.Parse(cur, now.Location())
		if err != nil {
			return "", false, err
		}
		if due.DaysBetween(now, d) >= 0 {
			return cur, rolled, nil
		}
		cur, err = due.NextRecurrence(cur, kind)
		if err != nil {
			return "", false, err
		}
		rolled = true
	}
	return cur, rolled, nil
}
