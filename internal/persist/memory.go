package persist

import (
	"context"
	"sync"

	"github.com/starford/tiledash/internal/models"
)

// Memory keeps state in process. It backs the "memory" storage driver and
// tests.
type Memory struct {
	mu       sync.Mutex
	tiles    []models.Tile
	photos   []models.Photo
	settings *models.Settings
	saves    int
}

// NewMemory creates an empty Memory adapter.
func NewMemory() *Memory {
	return &Memory{}
}

// Saves counts SaveTiles calls.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) LoadTiles(context.Context) ([]models.Tile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tiles == nil {
		return nil, false, nil
	}
	out := make([]models.Tile, len(m.tiles))
	for i, t := range m.tiles {
		out[i] = t.Clone()
	}
	return out, true, nil
}

func (m *Memory) SaveTiles(_ context.Context, tiles []models.Tile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiles = make([]models.Tile, len(tiles))
	for i, t := range tiles {
		m.tiles[i] = t.Clone()
	}
	m.saves++
	return nil
}

func (m *Memory) LoadSettings(context.Context) (models.Settings, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return models.Settings{}, false, nil
	}
	return m.settings.Clone(), true, nil
}

func (m *Memory) SaveSettings(_ context.Context, s models.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := s.Clone()
	m.settings = &c
	return nil
}

func (m *Memory) LoadPhotos(context.Context) ([]models.Photo, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.photos == nil {
		return nil, false, nil
	}
	return append([]models.Photo{}, m.photos...), true, nil
}

func (m *Memory) SavePhotos(_ context.Context, photos []models.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos = append([]models.Photo{}, photos...)
	return nil
}
