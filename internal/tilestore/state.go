package tilestore

import (
	"context"
	"log/slog"

	"github.com/starford/tiledash/internal/backup"
	"github.com/starford/tiledash/internal/models"
)

// Settings returns a copy of the dashboard settings.
func (s *Store) Settings() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Clone()
}

// UpdateSettings applies p. A supplied tile order is reconciled against the
// regular tiles rather than stored verbatim.
func (s *Store) UpdateSettings(ctx context.Context, p SettingsPatch) (models.Settings, error) {
	if err := p.Validate(); err != nil {
		return models.Settings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.DarkMode != nil {
		s.settings.DarkMode = *p.DarkMode
	}
	if p.LastBackup != nil {
		s.settings.LastBackup = *p.LastBackup
	}
	if p.TileOrder != nil {
		s.reorderLocked(*p.TileOrder)
	}
	s.markDirty()
	return s.settings.Clone(), nil
}

// Snapshot captures the current state without side effects.
func (s *Store) Snapshot() backup.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return backup.New(cloneTiles(s.tiles), append([]models.Photo{}, s.photos...), s.settings, s.now())
}

// ExportSnapshot captures the current state and records the export time as
// the last backup.
func (s *Store) ExportSnapshot() backup.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.settings.LastBackup = models.Stamp(now)
	s.markDirty()
	return backup.New(cloneTiles(s.tiles), append([]models.Photo{}, s.photos...), s.settings, now)
}

// Import replaces the tile collection with the one in data, and photos and
// settings when data carries them. Nothing changes when data is invalid.
func (s *Store) Import(ctx context.Context, data []byte) error {
	snap, err := backup.ParseImport(data)
	if err != nil {
		s.logger.Warn("tilestore: import rejected", slog.String("error", err.Error()))
		return err
	}
	tiles := s.migrate(snap.Tiles)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles = tiles
	if snap.Photos != nil {
		s.photos = append([]models.Photo{}, snap.Photos...)
	}
	if snap.Settings != nil {
		s.settings = orderedSettings(*snap.Settings, tiles)
	} else {
		s.settings = orderedSettings(s.settings, tiles)
	}
	s.markDirty()
	s.notes.Add(models.Notification{
		Title:     "Import complete",
		Message:   "Dashboard data was imported successfully.",
		Type:      models.NotifySuccess,
		Timestamp: models.Stamp(s.now()),
	})
	s.logger.Info("tilestore: imported", slog.Int("tiles", len(tiles)))
	return nil
}

// Reset restores the default tiles and settings and drops every photo.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles = defaultTiles(s.now())
	s.photos = nil
	s.settings = orderedSettings(models.DefaultSettings(), s.tiles)
	s.markDirty()
	s.logger.Info("tilestore: reset to defaults")
}

// Reload re-reads persisted state after an external edit. The external
// state wins over unsaved local changes.
func (s *Store) Reload(ctx context.Context) error {
	s.logger.Info("tilestore: reloading after external change")
	return s.Load(ctx)
}
