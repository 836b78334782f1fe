// Package persist moves tile store state to and from a storage medium.
package persist

import (
	"context"

	"github.com/starford/tiledash/internal/models"
)

// Storage keys used by Local.
const (
	KeyTiles    = "tiledash_tiles"
	KeyPhotos   = "tiledash_photos"
	KeySettings = "tiledash_settings"
)

// Adapter is the boundary between the tile store and a storage medium. It
// never holds authoritative state. Loads report found=false when nothing
// has been stored yet.
type Adapter interface {
	LoadTiles(ctx context.Context) ([]models.Tile, bool, error)
	SaveTiles(ctx context.Context, tiles []models.Tile) error
	LoadSettings(ctx context.Context) (models.Settings, bool, error)
	SaveSettings(ctx context.Context, s models.Settings) error
	LoadPhotos(ctx context.Context) ([]models.Photo, bool, error)
	SavePhotos(ctx context.Context, photos []models.Photo) error
}
