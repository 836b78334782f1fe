package models

import "time"

// LargeNotesTileID is the id of the seeded notes tile that lives in the
// large partition.
const LargeNotesTileID = "todo-notes"

// DefaultIcon is used when a tile has no usable icon.
const DefaultIcon = "folder-open"

// TimestampLayout formats stored timestamps: UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Stamp formats t with TimestampLayout.
func Stamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// DefaultTiles returns the seed tile set stamped with now. Colors are the
// raw seed colors; callers normalize them before use.
func DefaultTiles(now time.Time) []Tile {
	ts := Stamp(now)
	seed := []struct {
		id, title, color, icon string
		variant                Variant
	}{
		{"research", "Research", "#4f46e5", "flask-conical", ""},
		{"charters", "Charters", "#0891b2", "file-text", ""},
		{"vessels", "Vessels", "#0284c7", "ship", ""},
		{"equipment", "Equipment", "#7c3aed", "settings", ""},
		{"operations", "Operations", "#ea580c", "wrench", ""},
		{"methodology", "Methodology", "#16a34a", "bar-chart", ""},
		{"storyboard", "Storyboard", "#dc2626", "film", ""},
		{"personal", "Personal", "#db2777", "user", ""},
		{"photos", "Photos", "#65a30d", "camera", ""},
		{LargeNotesTileID, "To-Do & Notes", "#FFFFBA", "file-text", VariantLarge},
	}
	out := make([]Tile, len(seed))
	for i, s := range seed {
		out[i] = Tile{
			ID:          s.id,
			Slug:        s.id,
			Title:       s.title,
			Color:       s.color,
			Icon:        s.icon,
			Order:       i,
			Variant:     s.variant,
			LastUpdated: ts,
		}
	}
	return out
}

// DefaultSettings returns settings whose order matches DefaultTiles.
func DefaultSettings() Settings {
	tiles := DefaultTiles(time.Time{})
	order := make([]string, len(tiles))
	for i, t := range tiles {
		order[i] = t.ID
	}
	return Settings{TileOrder: order}
}
