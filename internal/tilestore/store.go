// Package tilestore holds the authoritative in-memory tile collection,
// settings and photos, and persists them through a persist.Adapter.
package tilestore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/tiledash/internal/icon"
	"github.com/starford/tiledash/internal/models"
	"github.com/starford/tiledash/internal/palette"
	"github.com/starford/tiledash/internal/persist"
	"github.com/starford/tiledash/internal/reorder"
	"github.com/starford/tiledash/internal/status"
)

// DefaultDebounce is how long the store waits after the last mutation
// before writing.
const DefaultDebounce = 500 * time.Millisecond

// Scheduler runs f once after d. The returned stop function cancels the
// call if it has not run yet.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type wallScheduler struct{}

func (wallScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Option configures a Store.
type Option func(*Store)

// WithScheduler replaces the wall-clock timer used for debounced saves.
func WithScheduler(s Scheduler) Option {
	return func(st *Store) { st.sched = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(st *Store) { st.now = now }
}

// WithDebounce sets the save delay.
func WithDebounce(d time.Duration) Option {
	return func(st *Store) {
		if d > 0 {
			st.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(st *Store) { st.logger = l }
}

// WithNotifications shares a notification ring with the store.
func WithNotifications(r *status.Ring) Option {
	return func(st *Store) { st.notes = r }
}

// Store is the single writer of dashboard state. All methods are safe for
// concurrent use; mutations are applied under one lock and persisted later.
type Store struct {
	adapter  persist.Adapter
	sched    Scheduler
	now      func() time.Time
	debounce time.Duration
	logger   *slog.Logger
	notes    *status.Ring

	mu       sync.Mutex
	tiles    []models.Tile
	photos   []models.Photo
	settings models.Settings
	dirty    bool
	stop     func() bool
	// sent maps tile id and reminder kind to the day it was last announced.
	sent map[string]string

	// saveMu serializes writes so an older state never lands after a newer one.
	saveMu sync.Mutex
}

// New creates a Store over adapter. Call Load before use.
func New(adapter persist.Adapter, opts ...Option) *Store {
	s := &Store{
		adapter:  adapter,
		sched:    wallScheduler{},
		now:      time.Now,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		sent:     make(map[string]string),
	}
	for _, o := range opts {
		o(s)
	}
	if s.notes == nil {
		s.notes = status.NewRing()
	}
	s.tiles = defaultTiles(s.now())
	s.settings = orderedSettings(models.Settings{}, s.tiles)
	return s
}

// Notifications returns the notification ring the store reports to.
func (s *Store) Notifications() *status.Ring {
	return s.notes
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Load replaces in-memory state with what the adapter holds. Unreadable or
// absent data falls back to defaults and is logged, never returned.
func (s *Store) Load(ctx context.Context) error {
	tiles, found, err := s.adapter.LoadTiles(ctx)
	switch {
	case err != nil:
		s.logger.Warn("tilestore: stored tiles unreadable, using defaults", slog.String("error", err.Error()))
		tiles = defaultTiles(s.now())
	case !found:
		s.logger.Info("tilestore: no stored tiles, seeding defaults")
		tiles = defaultTiles(s.now())
	default:
		tiles = s.migrate(tiles)
		tiles = backfillNotesTile(tiles, s.now())
	}

	photos, _, err := s.adapter.LoadPhotos(ctx)
	if err != nil {
		s.logger.Warn("tilestore: stored photos unreadable, starting empty", slog.String("error", err.Error()))
		photos = nil
	}

	settings, found, err := s.adapter.LoadSettings(ctx)
	if err != nil {
		s.logger.Warn("tilestore: stored settings unreadable, using defaults", slog.String("error", err.Error()))
		found = false
	}
	if !found {
		settings = models.Settings{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPending()
	s.tiles = tiles
	s.photos = photos
	s.settings = orderedSettings(settings, tiles)
	s.dirty = false
	s.logger.Info("tilestore: loaded",
		slog.Int("tiles", len(s.tiles)),
		slog.Int("photos", len(s.photos)))
	return nil
}

// Flush writes pending changes immediately.
func (s *Store) Flush(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	s.cancelPending()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	tiles := cloneTiles(s.tiles)
	photos := append([]models.Photo{}, s.photos...)
	settings := s.settings.Clone()
	s.dirty = false
	s.mu.Unlock()

	err := s.write(ctx, tiles, photos, settings)
	if err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
	}
	return err
}

func (s *Store) write(ctx context.Context, tiles []models.Tile, photos []models.Photo, settings models.Settings) error {
	if err := s.adapter.SaveTiles(ctx, tiles); err != nil {
		return fmt.Errorf("tilestore: save tiles: %w", err)
	}
	if err := s.adapter.SavePhotos(ctx, photos); err != nil {
		return fmt.Errorf("tilestore: save photos: %w", err)
	}
	if err := s.adapter.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("tilestore: save settings: %w", err)
	}
	return nil
}

// markDirty schedules a save, superseding any pending one. Callers hold mu.
func (s *Store) markDirty() {
	s.dirty = true
	s.cancelPending()
	s.stop = s.sched.AfterFunc(s.debounce, func() {
		if err := s.Flush(context.Background()); err != nil {
			s.logger.Error("tilestore: debounced save failed", slog.String("error", err.Error()))
		}
	})
}

func (s *Store) cancelPending() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

// migrate canonicalizes tiles read from storage or an import. Empty and
// repeated ids are replaced so every id is unique.
func (s *Store) migrate(tiles []models.Tile) []models.Tile {
	out := make([]models.Tile, len(tiles))
	seen := make(map[string]bool, len(tiles))
	for i, t := range tiles {
		t = t.Clone()
		if t.ID == "" || seen[t.ID] {
			fresh := uuid.NewString()
			s.logger.Warn("tilestore: reassigned tile id",
				slog.String("id", t.ID),
				slog.String("new_id", fresh),
				slog.String("title", t.Title))
			t.ID = fresh
		}
		seen[t.ID] = true
		t.Icon = icon.Migrate(t.Icon, s.logger)
		t.Color = palette.Normalize(t.Color)
		if t.ID == models.LargeNotesTileID && t.Variant == "" {
			t.Variant = models.VariantLarge
		}
		if t.Variant == "" {
			t.Variant = models.VariantRegular
		}
		out[i] = t
	}
	ensureSlugs(out)
	return out
}

func defaultTiles(now time.Time) []models.Tile {
	tiles := models.DefaultTiles(now)
	for i := range tiles {
		tiles[i].Color = palette.Normalize(tiles[i].Color)
		if tiles[i].Variant == "" {
			tiles[i].Variant = models.VariantRegular
		}
	}
	return tiles
}

// backfillNotesTile appends the large notes tile when stored data predates
// it.
func backfillNotesTile(tiles []models.Tile, now time.Time) []models.Tile {
	maxOrder := -1
	for _, t := range tiles {
		if t.ID == models.LargeNotesTileID {
			return tiles
		}
		if t.Order > maxOrder {
			maxOrder = t.Order
		}
	}
	for _, t := range defaultTiles(now) {
		if t.ID == models.LargeNotesTileID {
			t.Order = maxOrder + 1
			return append(tiles, t)
		}
	}
	return tiles
}

// orderedSettings keeps s but recomputes TileOrder from tiles when it does
// not name exactly the current tile set.
func orderedSettings(s models.Settings, tiles []models.Tile) models.Settings {
	s = s.Clone()
	if sameIDs(s.TileOrder, tiles) {
		return s
	}
	sorted := reorder.Sorted(tiles)
	s.TileOrder = make([]string, len(sorted))
	for i, t := range sorted {
		s.TileOrder[i] = t.ID
	}
	return s
}

func sameIDs(order []string, tiles []models.Tile) bool {
	if len(order) != len(tiles) {
		return false
	}
	want := make(map[string]bool, len(tiles))
	for _, t := range tiles {
		want[t.ID] = true
	}
	for _, id := range order {
		if !want[id] {
			return false
		}
		delete(want, id)
	}
	return len(want) == 0
}

func cloneTiles(tiles []models.Tile) []models.Tile {
	out := make([]models.Tile, len(tiles))
	for i, t := range tiles {
		out[i] = t.Clone()
	}
	return out
}
