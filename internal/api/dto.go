package api

import (
	"time"

	"github.com/starford/tiledash/internal/dashboard"
	"github.com/starford/tiledash/internal/tilestore"
)

// CreateTileRequest is the request body for creating a tile.
type CreateTileRequest = tilestore.TileInput

// UpdateTileRequest is the request body for a partial tile update.
type UpdateTileRequest = tilestore.TilePatch

// CreatePhotoRequest is the request body for attaching a photo.
type CreatePhotoRequest = tilestore.PhotoInput

// UpdateSettingsRequest is the request body for changing settings.
type UpdateSettingsRequest = tilestore.SettingsPatch

// TileDetail is a tile with its derived display fields.
type TileDetail = dashboard.TileDetail

// TileListResponse wraps tile listings.
type TileListResponse struct {
	Tiles []TileDetail `json:"tiles" validate:"required"`
	Total int          `json:"total" example:"10" validate:"required"`
}

// ReorderRequest carries the new relative order of the visible regular tiles.
type ReorderRequest struct {
	TileIDs []string `json:"tileIds" example:"vessels,research" validate:"required"`
}

// ReorderResponse is the full tile order after a reorder.
type ReorderResponse struct {
	TileOrder []string `json:"tileOrder" validate:"required"`
}

// NoteRequest is a quick note appended to a tile.
type NoteRequest struct {
	Text string `json:"text" example:"call the harbour master" validate:"required"`
}

// CreateShareRequest optionally limits a share link's lifetime.
type CreateShareRequest struct {
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// UpdateShareRequest changes a share link.
type UpdateShareRequest struct {
	IsActive    *bool      `json:"isActive,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	ClearExpiry bool       `json:"clearExpiry,omitempty"`
}

// PhotoUploadResponse is returned after a multipart photo upload.
type PhotoUploadResponse struct {
	ID       string `json:"id" example:"photo-1712345678901-1a2b3c4d" validate:"required"`
	Filename string `json:"filename" example:"dock.jpg" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/api/photos/photo-1712345678901-1a2b3c4d/raw" validate:"required"`
}
