// Package backup serializes dashboard state to portable snapshots and keeps
// a bounded history of them.
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/starford/tiledash/internal/apperr"
	"github.com/starford/tiledash/internal/models"
)

// CurrentVersion is the snapshot format version written by New.
const CurrentVersion = 1

// FormatVersion is a snapshot format version. Older exports wrote it as a
// string such as "1.0"; both forms decode.
type FormatVersion int

func (v *FormatVersion) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = FormatVersion(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("backup: version: %w", err)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("backup: version %q: %w", s, err)
	}
	*v = FormatVersion(n)
	return nil
}

// Snapshot is a full point-in-time export of tiles, photos and settings.
type Snapshot struct {
	Version   FormatVersion    `json:"version"`
	Timestamp string           `json:"timestamp"`
	Tiles     []models.Tile    `json:"tiles"`
	Photos    []models.Photo   `json:"photos"`
	Settings  *models.Settings `json:"settings,omitempty"`
	ID        string           `json:"id,omitempty"`
}

// New builds a snapshot of the given state taken at now.
func New(tiles []models.Tile, photos []models.Photo, settings models.Settings, now time.Time) Snapshot {
	if tiles == nil {
		tiles = []models.Tile{}
	}
	if photos == nil {
		photos = []models.Photo{}
	}
	s := settings.Clone()
	return Snapshot{
		Version:   CurrentVersion,
		Timestamp: models.Stamp(now),
		Tiles:     tiles,
		Photos:    photos,
		Settings:  &s,
		ID:        fmt.Sprintf("backup-%d", now.UnixMilli()),
	}
}

// Time parses the snapshot timestamp. Unparseable timestamps yield the zero
// time.
func (s Snapshot) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, s.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Marshal encodes s as indented JSON.
func Marshal(s Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("backup: marshal: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a snapshot file. The payload must carry a version, a
// timestamp and a tiles array.
func Unmarshal(data []byte) (Snapshot, error) {
	var head struct {
		Version   json.RawMessage `json:"version"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Snapshot{}, apperr.InvalidFormat("failed to parse backup: %v", err)
	}
	var version FormatVersion
	if len(head.Version) == 0 || json.Unmarshal(head.Version, &version) != nil || version == 0 {
		return Snapshot{}, apperr.InvalidFormat("missing version")
	}
	var ts string
	if len(head.Timestamp) == 0 || json.Unmarshal(head.Timestamp, &ts) != nil || ts == "" {
		return Snapshot{}, apperr.InvalidFormat("missing timestamp")
	}
	return ParseImport(data)
}

// ParseImport decodes an import payload, which only has to carry a tiles
// array. Photos and settings stay nil when absent.
func ParseImport(data []byte) (Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, apperr.InvalidFormat("failed to parse payload: %v", err)
	}
	tiles, ok := raw["tiles"]
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(tiles), []byte("[")) {
		return Snapshot{}, apperr.InvalidFormat("tiles array is required")
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, apperr.InvalidFormat("failed to decode payload: %v", err)
	}
	if s.Tiles == nil {
		s.Tiles = []models.Tile{}
	}
	return s, nil
}
