package tilestore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/starford/tiledash/internal/apperr"
	"github.com/starford/tiledash/internal/models"
)

// Photos returns the photos attached to tileID, oldest first. An empty
// tileID returns every photo.
func (s *Store) Photos(tileID string) []models.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Photo{}
	for _, p := range s.photos {
		if tileID == "" || p.TileID == tileID {
			out = append(out, p)
		}
	}
	return out
}

// Photo returns the photo with id.
func (s *Store) Photo(id string) (models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.photos {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Photo{}, fmt.Errorf("photo %q: %w", id, apperr.ErrNotFound)
}

// AddPhoto attaches a photo to an existing tile.
func (s *Store) AddPhoto(ctx context.Context, in PhotoInput) (models.Photo, error) {
	if err := in.Validate(); err != nil {
		return models.Photo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(in.TileID) < 0 {
		return models.Photo{}, fmt.Errorf("tile %q: %w", in.TileID, apperr.ErrNotFound)
	}
	now := s.now()
	p := models.Photo{
		ID:         fmt.Sprintf("photo-%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		TileID:     in.TileID,
		Base64Data: in.Base64Data,
		Thumbnail:  in.Thumbnail,
		Timestamp:  models.Stamp(now),
		Caption:    in.Caption,
		Filename:   in.Filename,
		MimeType:   in.MimeType,
	}
	s.photos = append(s.photos, p)
	s.markDirty()
	return p, nil
}

// DeletePhoto removes the photo with id.
func (s *Store) DeletePhoto(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.photos {
		if p.ID == id {
			s.photos = append(s.photos[:i], s.photos[i+1:]...)
			s.markDirty()
			return nil
		}
	}
	return fmt.Errorf("photo %q: %w", id, apperr.ErrNotFound)
}
