package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/tiledash/internal/apperr"
	"github.com/starford/tiledash/internal/backup"
	"github.com/starford/tiledash/internal/models"
	"github.com/starford/tiledash/internal/sse"
	"github.com/starford/tiledash/internal/thumb"
	"github.com/starford/tiledash/internal/tilestore"
)

// ListPhotos returns the photos of tileID, or all photos when it is empty.
func (s *Service) ListPhotos(_ context.Context, tileID string) []models.Photo {
	return s.store.Photos(tileID)
}

// GetPhoto returns one photo.
func (s *Service) GetPhoto(_ context.Context, id string) (models.Photo, error) {
	return s.store.Photo(id)
}

// PhotoContent returns the decoded bytes and media type of a photo.
func (s *Service) PhotoContent(_ context.Context, id string) (thumb.DataURL, error) {
	p, err := s.store.Photo(id)
	if err != nil {
		return thumb.DataURL{}, err
	}
	d, err := thumb.ParseDataURL(p.Base64Data)
	if err != nil {
		return thumb.DataURL{}, err
	}
	if d.MimeType == "" {
		d.MimeType = p.MimeType
	}
	if d.MimeType == "" {
		d.MimeType = "application/octet-stream"
	}
	return d, nil
}

// AddPhoto attaches a photo. When the client sends no thumbnail and the
// payload is an image, one is generated.
func (s *Service) AddPhoto(ctx context.Context, in tilestore.PhotoInput) (models.Photo, error) {
	if err := in.Validate(); err != nil {
		return models.Photo{}, err
	}
	d, err := thumb.ParseDataURL(in.Base64Data)
	if err != nil {
		return models.Photo{}, apperr.ValidationErrors{{Field: "base64Data", Message: err.Error()}}
	}
	if in.MimeType == "" {
		in.MimeType = d.MimeType
	}
	if in.Thumbnail == "" {
		tn, err := thumb.FromDataURL(in.Base64Data)
		switch {
		case err == nil:
			in.Thumbnail = tn
		case errors.Is(err, thumb.ErrTooLarge):
			return models.Photo{}, apperr.ValidationErrors{{Field: "base64Data", Message: "image dimensions are too large"}}
		case errors.Is(err, thumb.ErrNotImage):
		default:
			s.logger.Warn("dashboard: thumbnail failed", slog.String("error", err.Error()))
		}
	}
	p, err := s.store.AddPhoto(ctx, in)
	if err != nil {
		return models.Photo{}, err
	}
	s.events.PublishTileEvent("updated", p.TileID)
	return p, nil
}

// DeletePhoto removes a photo.
func (s *Service) DeletePhoto(ctx context.Context, id string) error {
	p, err := s.store.Photo(id)
	if err != nil {
		return err
	}
	if err := s.store.DeletePhoto(ctx, id); err != nil {
		return err
	}
	s.events.PublishTileEvent("updated", p.TileID)
	return nil
}

// Settings returns the dashboard settings.
func (s *Service) Settings(_ context.Context) models.Settings {
	return s.store.Settings()
}

// UpdateSettings applies p.
func (s *Service) UpdateSettings(ctx context.Context, p tilestore.SettingsPatch) (models.Settings, error) {
	st, err := s.store.UpdateSettings(ctx, p)
	if err != nil {
		return models.Settings{}, err
	}
	if p.TileOrder != nil {
		s.events.Publish(sse.Event{Type: sse.TilesReordered, Data: map[string][]string{"tileOrder": st.TileOrder}})
	}
	s.events.Publish(sse.Event{Type: sse.SettingsUpdated, Data: st})
	return st, nil
}

// Reset restores the default dashboard.
func (s *Service) Reset(ctx context.Context) {
	s.store.Reset(ctx)
	s.events.Publish(sse.Event{Type: sse.DashboardUpdated, Data: map[string]string{"reason": "reset"}})
}

// Export returns a full snapshot and records it as the last backup.
func (s *Service) Export(_ context.Context) backup.Snapshot {
	return s.store.ExportSnapshot()
}

// ExportCSV writes the tile table as CSV.
func (s *Service) ExportCSV(_ context.Context, w io.Writer) error {
	return backup.WriteCSV(w, s.store.Tiles())
}

// Import replaces dashboard data with the payload.
func (s *Service) Import(ctx context.Context, data []byte) error {
	if err := s.store.Import(ctx, data); err != nil {
		return err
	}
	s.events.Publish(sse.Event{Type: sse.DashboardUpdated, Data: map[string]string{"reason": "import"}})
	return nil
}

// CreateBackup stores a snapshot of the current state in the history.
func (s *Service) CreateBackup(ctx context.Context) (backup.Snapshot, error) {
	snap := s.store.ExportSnapshot()
	if err := s.history.Store(ctx, snap); err != nil {
		return backup.Snapshot{}, err
	}
	s.logger.Info("dashboard: backup stored", slog.String("id", snap.ID))
	return snap, nil
}

// ListBackups returns stored snapshots, newest first.
func (s *Service) ListBackups(ctx context.Context) ([]backup.Snapshot, error) {
	return s.history.List(ctx)
}

// DeleteBackup removes a stored snapshot.
func (s *Service) DeleteBackup(ctx context.Context, id string) error {
	return s.history.Delete(ctx, id)
}

// RestoreBackup replaces the dashboard with stored snapshot id.
func (s *Service) RestoreBackup(ctx context.Context, id string) error {
	snap, err := s.history.Get(ctx, id)
	if err != nil {
		return err
	}
	data, err := backup.Marshal(snap)
	if err != nil {
		return err
	}
	return s.Import(ctx, data)
}

// Notifications returns the notification center, newest first.
func (s *Service) Notifications(_ context.Context) []models.Notification {
	return s.store.Notifications().List()
}

// UnreadNotifications counts unread notifications.
func (s *Service) UnreadNotifications(_ context.Context) int {
	return s.store.Notifications().Unread()
}

// MarkNotificationRead flags one notification as read.
func (s *Service) MarkNotificationRead(_ context.Context, id string) error {
	if !s.store.Notifications().MarkRead(id) {
		return fmt.Errorf("notification %q: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// ClearNotifications empties the notification center.
func (s *Service) ClearNotifications(_ context.Context) {
	s.store.Notifications().Clear()
}

// SweepReminders raises due-date and reminder notifications and publishes
// each one.
func (s *Service) SweepReminders(ctx context.Context) []models.Notification {
	added := s.store.SweepReminders(ctx)
	for _, n := range added {
		s.events.Publish(sse.Event{Type: sse.Notification, Data: n})
	}
	return added
}

// RunReminders sweeps once immediately and then every interval until ctx
// is done.
func (s *Service) RunReminders(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	s.SweepReminders(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepReminders(ctx)
		}
	}
}

// ExternalChange reloads the store after persisted data was edited by
// another process.
func (s *Service) ExternalChange(ctx context.Context, keys []string) {
	if err := s.store.Reload(ctx); err != nil {
		s.logger.Error("dashboard: reload failed", slog.String("error", err.Error()))
		return
	}
	s.events.Publish(sse.Event{Type: sse.DashboardUpdated, Data: map[string]string{"reason": "external", "keys": strings.Join(keys, ",")}})
}
