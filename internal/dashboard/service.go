// Package dashboard coordinates the tile store with version history, share
// links, backups and live events. HTTP and MCP front ends call into it.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/starford/tiledash/internal/backup"
	"github.com/starford/tiledash/internal/checksum"
	"github.com/starford/tiledash/internal/due"
	"github.com/starford/tiledash/internal/models"
	"github.com/starford/tiledash/internal/palette"
	"github.com/starford/tiledash/internal/sqlstore"
	"github.com/starford/tiledash/internal/sse"
	"github.com/starford/tiledash/internal/tilestore"
)

// Publisher receives change events. *sse.Broker satisfies it.
type Publisher interface {
	Publish(event sse.Event)
	PublishTileEvent(kind, id string)
}

type nopPublisher struct{}

func (nopPublisher) Publish(sse.Event)               {}
func (nopPublisher) PublishTileEvent(string, string) {}

// TileDetail is a tile with the values derived from it for display.
type TileDetail struct {
	models.Tile
	Checksum          string    `json:"checksum"`
	TextColor         string    `json:"textColor"`
	Due               *due.Info `json:"due,omitempty"`
	SubtaskCompletion int       `json:"subtaskCompletion"`
}

// SharedTile is what a share link exposes.
type SharedTile struct {
	Tile   TileDetail     `json:"tile"`
	Photos []models.Photo `json:"photos"`
}

// Service is the application layer over the dashboard state.
type Service struct {
	store   *tilestore.Store
	db      *sqlstore.DB
	history *backup.History
	events  Publisher
	logger  *slog.Logger
}

// NewService wires the store with the database that keeps tile versions and
// share links, and the backup history. events may be nil.
func NewService(store *tilestore.Store, db *sqlstore.DB, history *backup.History, events Publisher, logger *slog.Logger) *Service {
	if events == nil {
		events = nopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, db: db, history: history, events: events, logger: logger}
}

func (s *Service) detail(t models.Tile) TileDetail {
	return TileDetail{
		Tile:              t,
		Checksum:          tileChecksum(t),
		TextColor:         palette.TextColor(t.Color),
		Due:               due.Evaluate(t.DueDate, s.store.Now()),
		SubtaskCompletion: t.SubtaskCompletion(),
	}
}

func (s *Service) details(tiles []models.Tile) []TileDetail {
	out := make([]TileDetail, len(tiles))
	for i, t := range tiles {
		out[i] = s.detail(t)
	}
	return out
}

func tileChecksum(t models.Tile) string {
	data, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	return checksum.Sum(data)
}

// ListTiles returns every tile matching q in display order.
func (s *Service) ListTiles(_ context.Context, q string) []TileDetail {
	return s.details(s.store.Search(q))
}

// GetTile returns one tile.
func (s *Service) GetTile(_ context.Context, id string) (TileDetail, error) {
	t, err := s.store.Get(id)
	if err != nil {
		return TileDetail{}, err
	}
	return s.detail(t), nil
}

// GetTileBySlug returns the tile with slug.
func (s *Service) GetTileBySlug(_ context.Context, slug string) (TileDetail, error) {
	t, err := s.store.BySlug(slug)
	if err != nil {
		return TileDetail{}, err
	}
	return s.detail(t), nil
}

// CreateTile adds a tile.
func (s *Service) CreateTile(ctx context.Context, in tilestore.TileInput) (TileDetail, error) {
	t, err := s.store.Create(ctx, in)
	if err != nil {
		return TileDetail{}, err
	}
	s.events.PublishTileEvent("created", t.ID)
	return s.detail(t), nil
}

// UpdateTile applies p to tile id. A non-empty ifMatch must equal the
// tile's current checksum. The previous state is kept as a version.
func (s *Service) UpdateTile(ctx context.Context, id string, p tilestore.TilePatch, ifMatch string) (TileDetail, error) {
	if err := p.Validate(); err != nil {
		return TileDetail{}, err
	}
	prev, t, err := s.store.UpdateIf(ctx, id, p, func(cur models.Tile) bool {
		return ifMatch == "" || ifMatch == tileChecksum(cur)
	})
	if err != nil {
		return TileDetail{}, err
	}
	if _, err := s.db.SaveVersion(ctx, prev, s.store.Now()); err != nil {
		s.logger.Warn("dashboard: version snapshot failed", slog.String("id", id), slog.String("error", err.Error()))
	}
	s.events.PublishTileEvent("updated", id)
	return s.detail(t), nil
}

// DeleteTile removes a tile with its photos, versions and share links.
func (s *Service) DeleteTile(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.db.DeleteVersions(ctx, id); err != nil {
		return err
	}
	if err := s.db.DeleteSharesForTile(ctx, id); err != nil {
		return err
	}
	s.events.PublishTileEvent("deleted", id)
	return nil
}

// AppendNote adds a bullet paragraph to a tile.
func (s *Service) AppendNote(ctx context.Context, id, text string) (TileDetail, error) {
	prev, err := s.store.Get(id)
	if err != nil {
		return TileDetail{}, err
	}
	t, err := s.store.AppendNote(ctx, id, text)
	if err != nil {
		return TileDetail{}, err
	}
	if _, err := s.db.SaveVersion(ctx, prev, s.store.Now()); err != nil {
		s.logger.Warn("dashboard: version snapshot failed", slog.String("id", id), slog.String("error", err.Error()))
	}
	s.events.PublishTileEvent("updated", id)
	return s.detail(t), nil
}

// Reorder applies a new relative order to the named regular tiles and
// returns the full order.
func (s *Service) Reorder(ctx context.Context, ids []string) []string {
	order := s.store.Reorder(ctx, ids)
	s.events.Publish(sse.Event{Type: sse.TilesReordered, Data: map[string][]string{"tileOrder": order}})
	return order
}

// ListVersions returns the saved versions of tile id, newest first.
func (s *Service) ListVersions(ctx context.Context, id string) ([]models.TileVersion, error) {
	if _, err := s.store.Get(id); err != nil {
		return nil, err
	}
	return s.db.ListVersions(ctx, id)
}

// RestoreVersion puts version vid of tile id back in place. The state it
// replaces is itself kept as a version.
func (s *Service) RestoreVersion(ctx context.Context, id string, vid int64) (TileDetail, error) {
	cur, err := s.store.Get(id)
	if err != nil {
		return TileDetail{}, err
	}
	v, err := s.db.GetVersion(ctx, id, vid)
	if err != nil {
		return TileDetail{}, err
	}
	if _, err := s.db.SaveVersion(ctx, cur, s.store.Now()); err != nil {
		return TileDetail{}, err
	}
	t, err := s.store.Restore(ctx, v.Tile)
	if err != nil {
		return TileDetail{}, err
	}
	s.events.PublishTileEvent("updated", id)
	return s.detail(t), nil
}

// Overdue returns tiles past their due date.
func (s *Service) Overdue(_ context.Context) []TileDetail {
	return s.details(s.store.Overdue())
}

// DueSoon returns tiles due today or in the next few days.
func (s *Service) DueSoon(_ context.Context) []TileDetail {
	return s.details(s.store.DueSoon())
}

// BlockedBy returns the tiles id depends on.
func (s *Service) BlockedBy(_ context.Context, id string) ([]TileDetail, error) {
	tiles, err := s.store.BlockedBy(id)
	if err != nil {
		return nil, err
	}
	return s.details(tiles), nil
}

// Blocking returns the tiles waiting on id.
func (s *Service) Blocking(_ context.Context, id string) ([]TileDetail, error) {
	tiles, err := s.store.Blocking(id)
	if err != nil {
		return nil, err
	}
	return s.details(tiles), nil
}

// Timeline returns tiles most recently updated first.
func (s *Service) Timeline(_ context.Context, limit int) []TileDetail {
	tiles := s.store.Tiles()
	sort.SliceStable(tiles, func(i, j int) bool { return tiles[i].LastUpdated > tiles[j].LastUpdated })
	if limit > 0 && len(tiles) > limit {
		tiles = tiles[:limit]
	}
	return s.details(tiles)
}

// CreateShare issues a share link for tile id.
func (s *Service) CreateShare(ctx context.Context, id string, expiresAt *time.Time) (models.SharedLink, error) {
	if _, err := s.store.Get(id); err != nil {
		return models.SharedLink{}, err
	}
	return s.db.CreateShare(ctx, id, expiresAt, s.store.Now())
}

// ListShares returns the links issued for tile id.
func (s *Service) ListShares(ctx context.Context, id string) ([]models.SharedLink, error) {
	if _, err := s.store.Get(id); err != nil {
		return nil, err
	}
	return s.db.ListShares(ctx, id)
}

// UpdateShare changes a link's active flag or expiry.
func (s *Service) UpdateShare(ctx context.Context, id int64, p sqlstore.SharePatch) (models.SharedLink, error) {
	return s.db.UpdateShare(ctx, id, p)
}

// DeleteShare revokes a link.
func (s *Service) DeleteShare(ctx context.Context, id int64) error {
	return s.db.DeleteShare(ctx, id)
}

// Shared resolves token to the tile it exposes.
func (s *Service) Shared(ctx context.Context, token string) (SharedTile, error) {
	link, err := s.db.ResolveShare(ctx, token, s.store.Now())
	if err != nil {
		return SharedTile{}, err
	}
	t, err := s.store.Get(link.TileID)
	if err != nil {
		return SharedTile{}, fmt.Errorf("shared tile: %w", err)
	}
	return SharedTile{Tile: s.detail(t), Photos: s.store.Photos(t.ID)}, nil
}
