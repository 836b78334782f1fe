// Package models defines the domain types for tiledash.
package models

import "time"

// Variant selects the layout partition a tile is rendered in.
type Variant string

// Tile variants. An empty variant is treated as regular.
const (
	VariantRegular Variant = "regular"
	VariantLarge   Variant = "large"
)

// IsLarge reports whether v is the large variant.
func (v Variant) IsLarge() bool {
	return v == VariantLarge
}

// Recurrence is the repeat kind of a reminder.
type Recurrence string

// Recurrence kinds.
const (
	RecurNone    Recurrence = "none"
	RecurDaily   Recurrence = "daily"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
)

// Reminder is a recurring nudge attached to a tile.
type Reminder struct {
	Recurring Recurrence `json:"recurring"`
	BaseDate  string     `json:"baseDate"`
}

// Subtask is a checklist item inside a tile.
type Subtask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Tile is a named container of notes, photos and planning metadata.
type Tile struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug,omitempty"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Color       string    `json:"color"`
	Icon        string    `json:"icon"`
	Progress    *int      `json:"progress,omitempty"`
	Order       int       `json:"order"`
	Variant     Variant   `json:"variant,omitempty"`
	Status      string    `json:"status,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	DueDate     string    `json:"dueDate,omitempty"`
	Reminder    *Reminder `json:"reminder,omitempty"`
	DependsOn   []string  `json:"dependsOn,omitempty"`
	Subtasks    []Subtask `json:"subtasks,omitempty"`
	LastUpdated string    `json:"lastUpdated"`
}

// IsLarge reports whether the tile renders in the large partition.
func (t Tile) IsLarge() bool {
	return t.Variant.IsLarge()
}

// Clone returns a deep copy so callers never share slices with the store.
func (t Tile) Clone() Tile {
	c := t
	if t.Progress != nil {
		p := *t.Progress
		c.Progress = &p
	}
	if t.Reminder != nil {
		r := *t.Reminder
		c.Reminder = &r
	}
	if t.DependsOn != nil {
		c.DependsOn = append([]string(nil), t.DependsOn...)
	}
	if t.Subtasks != nil {
		c.Subtasks = append([]Subtask(nil), t.Subtasks...)
	}
	return c
}

// SubtaskCompletion returns the rounded percentage of completed subtasks,
// or 0 when the tile has none.
func (t Tile) SubtaskCompletion() int {
	if len(t.Subtasks) == 0 {
		return 0
	}
	done := 0
	for _, st := range t.Subtasks {
		if st.Completed {
			done++
		}
	}
	return (done*100 + len(t.Subtasks)/2) / len(t.Subtasks)
}

// Photo is an attachment owned by a single tile.
type Photo struct {
	ID         string `json:"id"`
	TileID     string `json:"tileId"`
	Base64Data string `json:"base64Data"`
	Thumbnail  string `json:"thumbnail"`
	Timestamp  string `json:"timestamp"`
	Caption    string `json:"caption,omitempty"`
	Filename   string `json:"filename,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
}

// Settings is the dashboard-wide singleton.
type Settings struct {
	DarkMode   bool     `json:"darkMode"`
	TileOrder  []string `json:"tileOrder"`
	LastBackup string   `json:"lastBackup,omitempty"`
}

// Clone returns a copy that does not share the order slice.
func (s Settings) Clone() Settings {
	c := s
	c.TileOrder = append([]string{}, s.TileOrder...)
	return c
}

// Notification types.
const (
	NotifyInfo    = "info"
	NotifySuccess = "success"
	NotifyWarning = "warning"
	NotifyError   = "error"
)

// Notification is an ephemeral entry in the notification center.
type Notification struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	TileID    string `json:"tileId,omitempty"`
	Read      bool   `json:"read"`
}

// TileVersion is a point-in-time copy of a tile taken before it changed.
type TileVersion struct {
	ID        int64     `json:"id"`
	TileID    string    `json:"tileId"`
	Tile      Tile      `json:"tile"`
	CreatedAt time.Time `json:"createdAt"`
}

// SharedLink grants read-only access to a tile through a random token.
type SharedLink struct {
	ID         int64      `json:"id"`
	TileID     string     `json:"tileId"`
	ShareToken string     `json:"shareToken"`
	IsActive   bool       `json:"isActive"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Expired reports whether the link has an expiry in the past relative to now.
func (l SharedLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}
