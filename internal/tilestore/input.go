package tilestore

import (
	"errors"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tiledash/internal/apperr"
	"github.com/starford/tiledash/internal/due"
	"github.com/starford/tiledash/internal/models"
)

var hexColorRe = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// TileInput is the payload for creating a tile.
type TileInput struct {
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	Color     string           `json:"color"`
	Icon      string           `json:"icon"`
	Progress  *int             `json:"progress,omitempty"`
	Variant   models.Variant   `json:"variant,omitempty"`
	Status    string           `json:"status,omitempty"`
	Priority  string           `json:"priority,omitempty"`
	DueDate   string           `json:"dueDate,omitempty"`
	Reminder  *models.Reminder `json:"reminder,omitempty"`
	DependsOn []string         `json:"dependsOn,omitempty"`
	Subtasks  []models.Subtask `json:"subtasks,omitempty"`
}

// Validate checks every field and reports all violations at once.
func (in TileInput) Validate() error {
	return apperr.FromValidation(validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Color, validation.Length(0, 7), validation.Match(hexColorRe).Error("must be a hex color like #RRGGBB")),
		validation.Field(&in.Icon, validation.Length(0, 64)),
		validation.Field(&in.Progress, validation.Min(0), validation.Max(100)),
		validation.Field(&in.Variant, validation.In(models.VariantRegular, models.VariantLarge)),
		validation.Field(&in.Status, validation.Length(0, 32)),
		validation.Field(&in.Priority, validation.Length(0, 32)),
		validation.Field(&in.DueDate, validation.By(dateRule)),
		validation.Field(&in.Reminder, validation.By(reminderRule)),
		validation.Field(&in.DependsOn, validation.Each(validation.Required)),
		validation.Field(&in.Subtasks, validation.By(subtasksRule)),
	))
}

// TilePatch carries the fields of an update. Nil fields are left unchanged.
type TilePatch struct {
	Title     *string           `json:"title,omitempty"`
	Content   *string           `json:"content,omitempty"`
	Color     *string           `json:"color,omitempty"`
	Icon      *string           `json:"icon,omitempty"`
	Progress  *int              `json:"progress,omitempty"`
	Variant   *models.Variant   `json:"variant,omitempty"`
	Status    *string           `json:"status,omitempty"`
	Priority  *string           `json:"priority,omitempty"`
	DueDate   *string           `json:"dueDate,omitempty"`
	Reminder  *models.Reminder  `json:"reminder,omitempty"`
	DependsOn *[]string         `json:"dependsOn,omitempty"`
	Subtasks  *[]models.Subtask `json:"subtasks,omitempty"`
}

// Validate checks the supplied fields.
func (p TilePatch) Validate() error {
	return apperr.FromValidation(validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&p.Color, validation.Length(0, 7), validation.Match(hexColorRe).Error("must be a hex color like #RRGGBB")),
		validation.Field(&p.Icon, validation.Length(0, 64)),
		validation.Field(&p.Progress, validation.Min(0), validation.Max(100)),
		validation.Field(&p.Variant, validation.In(models.VariantRegular, models.VariantLarge)),
		validation.Field(&p.Status, validation.Length(0, 32)),
		validation.Field(&p.Priority, validation.Length(0, 32)),
		validation.Field(&p.DueDate, validation.By(dateRule)),
		validation.Field(&p.Reminder, validation.By(reminderRule)),
		validation.Field(&p.DependsOn, validation.By(func(v any) error {
			deps, _ := v.(*[]string)
			if deps == nil {
				return nil
			}
			return validation.Validate(*deps, validation.Each(validation.Required))
		})),
		validation.Field(&p.Subtasks, validation.By(subtasksRule)),
	))
}

// PhotoInput is the payload for attaching a photo to a tile.
type PhotoInput struct {
	TileID     string `json:"tileId"`
	Base64Data string `json:"base64Data"`
	Thumbnail  string `json:"thumbnail"`
	Caption    string `json:"caption,omitempty"`
	Filename   string `json:"filename,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
}

// Validate checks the photo payload.
func (in PhotoInput) Validate() error {
	return apperr.FromValidation(validation.ValidateStruct(&in,
		validation.Field(&in.TileID, validation.Required),
		validation.Field(&in.Base64Data, validation.Required),
		validation.Field(&in.Caption, validation.Length(0, 500)),
		validation.Field(&in.Filename, validation.Length(0, 255)),
	))
}

// SettingsPatch carries settings changes. TileOrder is applied as a
// reorder, not stored verbatim.
type SettingsPatch struct {
	DarkMode   *bool     `json:"darkMode,omitempty"`
	TileOrder  *[]string `json:"tileOrder,omitempty"`
	LastBackup *string   `json:"lastBackup,omitempty"`
}

// Validate checks the settings payload.
func (p SettingsPatch) Validate() error {
	return apperr.FromValidation(validation.ValidateStruct(&p,
		validation.Field(&p.LastBackup, validation.By(func(v any) error {
			s, _ := v.(*string)
			if s == nil || *s == "" {
				return nil
			}
			if _, err := time.Parse(time.RFC3339Nano, *s); err != nil {
				return errors.New("must be an RFC3339 timestamp")
			}
			return nil
		})),
	))
}

func dateRule(v any) error {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case *string:
		if x == nil {
			return nil
		}
		s = *x
	}
	if s == "" {
		return nil
	}
	if _, err := due.Parse(s, time.UTC); err != nil {
		return errors.New("must be a date (YYYY-MM-DD) or RFC3339 timestamp")
	}
	return nil
}

func reminderRule(v any) error {
	r, _ := v.(*models.Reminder)
	if r == nil {
		return nil
	}
	switch r.Recurring {
	case "", models.RecurNone, models.RecurDaily, models.RecurWeekly, models.RecurMonthly:
	default:
		return errors.New("recurring must be one of none, daily, weekly, monthly")
	}
	if r.Recurring != "" && r.Recurring != models.RecurNone && r.BaseDate == "" {
		return errors.New("baseDate is required for a recurring reminder")
	}
	return dateRule(r.BaseDate)
}

func subtasksRule(v any) error {
	var list []models.Subtask
	switch x := v.(type) {
	case []models.Subtask:
		list = x
	case *[]models.Subtask:
		if x == nil {
			return nil
		}
		list = *x
	}
	for _, st := range list {
		if st.Title == "" {
			return errors.New("every subtask needs a title")
		}
	}
	return nil
}
