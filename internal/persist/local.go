package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/starford/tiledash/internal/checksum"
	"github.com/starford/tiledash/internal/models"
	"github.com/starford/tiledash/internal/storage"
)

// Local stores each collection as a JSON blob on a storage.Provider.
type Local struct {
	p    storage.Provider
	sums *checksum.Tracker
}

// NewLocal creates a Local adapter over p.
func NewLocal(p storage.Provider) *Local {
	return &Local{p: p, sums: checksum.NewTracker()}
}

// IsOwnWrite reports whether data is the blob this adapter last wrote
// under key.
func (l *Local) IsOwnWrite(key string, data []byte) bool {
	return l.sums.Matches(key, data)
}

func (l *Local) LoadTiles(ctx context.Context) ([]models.Tile, bool, error) {
	var tiles []models.Tile
	found, err := l.load(ctx, KeyTiles, &tiles)
	return tiles, found, err
}

func (l *Local) SaveTiles(ctx context.Context, tiles []models.Tile) error {
	if tiles == nil {
		tiles = []models.Tile{}
	}
	return l.save(ctx, KeyTiles, tiles)
}

func (l *Local) LoadSettings(ctx context.Context) (models.Settings, bool, error) {
	var s models.Settings
	found, err := l.load(ctx, KeySettings, &s)
	return s, found, err
}

func (l *Local) SaveSettings(ctx context.Context, s models.Settings) error {
	return l.save(ctx, KeySettings, s)
}

func (l *Local) LoadPhotos(ctx context.Context) ([]models.Photo, bool, error) {
	var photos []models.Photo
	found, err := l.load(ctx, KeyPhotos, &photos)
	return photos, found, err
}

func (l *Local) SavePhotos(ctx context.Context, photos []models.Photo) error {
	if photos == nil {
		photos = []models.Photo{}
	}
	return l.save(ctx, KeyPhotos, photos)
}

func (l *Local) load(ctx context.Context, key string, v any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	data, found, err := l.p.Get(key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("persist: decode %s: %w", key, err)
	}
	return true, nil
}

func (l *Local) save(ctx context.Context, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("persist: encode %s: %w", key, err)
	}
	l.sums.Record(key, data)
	if err := l.p.Set(key, data); err != nil {
		l.sums.Forget(key)
		return fmt.Errorf("persist: save %s: %w", key, err)
	}
	return nil
}
