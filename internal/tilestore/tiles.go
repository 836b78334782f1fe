package tilestore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/tiledash/internal/apperr"
	"github.com/starford/tiledash/internal/icon"
	"github.com/starford/tiledash/internal/models"
	"github.com/starford/tiledash/internal/palette"
	"github.com/starford/tiledash/internal/reorder"
	"github.com/starford/tiledash/internal/richtext"
	"github.com/starford/tiledash/internal/status"
)

// Tiles returns a copy of every tile, regular tiles first, each partition by
// order.
func (s *Store) Tiles() []models.Tile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return reorder.Sorted(cloneTiles(s.tiles))
}

// Search returns the tiles whose title or plain-text content contains q,
// case-insensitively. An empty q matches everything.
func (s *Store) Search(q string) []models.Tile {
	all := s.Tiles()
	q = strings.TrimSpace(q)
	if q == "" {
		return all
	}
	lq := strings.ToLower(q)
	out := []models.Tile{}
	for _, t := range all {
		if strings.Contains(strings.ToLower(t.Title), lq) || richtext.Contains(t.Content, q) {
			out = append(out, t)
		}
	}
	return out
}

// Get returns the tile with id.
func (s *Store) Get(id string) (models.Tile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.Tile{}, fmt.Errorf("tile %q: %w", id, apperr.ErrNotFound)
	}
	return s.tiles[i].Clone(), nil
}

// BySlug returns the tile with slug.
func (s *Store) BySlug(slug string) (models.Tile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tiles {
		if t.Slug == slug {
			return t.Clone(), nil
		}
	}
	return models.Tile{}, fmt.Errorf("tile slug %q: %w", slug, apperr.ErrNotFound)
}

// Create adds a tile at the end of the collection.
func (s *Store) Create(ctx context.Context, in TileInput) (models.Tile, error) {
	if err := in.Validate(); err != nil {
		return models.Tile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := models.Tile{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Content:     in.Content,
		Color:       palette.Normalize(in.Color),
		Icon:        in.Icon,
		Progress:    in.Progress,
		Order:       len(s.tiles),
		Variant:     in.Variant,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		Reminder:    in.Reminder,
		DependsOn:   in.DependsOn,
		Subtasks:    withSubtaskIDs(in.Subtasks),
		LastUpdated: models.Stamp(s.now()),
	}
	if t.Icon == "" {
		t.Icon = models.DefaultIcon
	} else {
		t.Icon = icon.Migrate(t.Icon, s.logger)
	}
	if t.Variant == "" {
		t.Variant = models.VariantRegular
	}
	t.Slug = s.uniqueSlug(richtext.Slug(t.Title), "")
	t = t.Clone()

	s.tiles = append(s.tiles, t)
	s.settings.TileOrder = s.insertOrder(t)
	s.warnOnCycle(t.ID, t.Title, t.DependsOn)
	s.markDirty()
	s.logger.Info("tilestore: tile created", slog.String("id", t.ID), slog.String("title", t.Title))
	return t.Clone(), nil
}

// insertOrder returns the tile order with t added at the end of its
// variant's group, so regular ids stay ahead of large ones.
func (s *Store) insertOrder(t models.Tile) []string {
	order := s.settings.TileOrder
	at := len(order)
	if !t.IsLarge() {
		for i, id := range order {
			if j := s.indexOf(id); j >= 0 && s.tiles[j].IsLarge() {
				at = i
				break
			}
		}
	}
	out := make([]string, 0, len(order)+1)
	out = append(out, order[:at]...)
	out = append(out, t.ID)
	return append(out, order[at:]...)
}

// Update merges the supplied fields into the tile with id. The id and order
// never change; lastUpdated is always refreshed.
func (s *Store) Update(ctx context.Context, id string, p TilePatch) (models.Tile, error) {
	_, t, err := s.UpdateIf(ctx, id, p, nil)
	return t, err
}

// UpdateIf is Update guarded by match, which is called with the current
// tile while the store is locked. A false match fails with
// apperr.ErrConflict and changes nothing. prev is the tile before the patch.
func (s *Store) UpdateIf(ctx context.Context, id string, p TilePatch, match func(models.Tile) bool) (prev, updated models.Tile, err error) {
	if err := p.Validate(); err != nil {
		return models.Tile{}, models.Tile{}, err
	}
	if p.DependsOn != nil {
		for _, dep := range *p.DependsOn {
			if dep == id {
				return models.Tile{}, models.Tile{}, apperr.ValidationErrors{{Field: "dependsOn", Message: "a tile cannot depend on itself"}}
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.Tile{}, models.Tile{}, fmt.Errorf("tile %q: %w", id, apperr.ErrNotFound)
	}
	if match != nil && !match(s.tiles[i].Clone()) {
		return models.Tile{}, models.Tile{}, fmt.Errorf("tile %q changed: %w", id, apperr.ErrConflict)
	}
	prev = s.tiles[i].Clone()
	t := s.tiles[i].Clone()
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Content != nil {
		t.Content = *p.Content
	}
	if p.Color != nil {
		t.Color = palette.Normalize(*p.Color)
	}
	if p.Icon != nil {
		t.Icon = icon.Migrate(*p.Icon, s.logger)
	}
	if p.Progress != nil {
		v := *p.Progress
		t.Progress = &v
	}
	if p.Variant != nil {
		t.Variant = *p.Variant
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Reminder != nil {
		r := *p.Reminder
		t.Reminder = &r
		if r.Recurring == "" && r.BaseDate == "" {
			t.Reminder = nil
		}
	}
	if p.DependsOn != nil {
		t.DependsOn = append([]string(nil), (*p.DependsOn)...)
		s.warnOnCycle(t.ID, t.Title, t.DependsOn)
	}
	if p.Subtasks != nil {
		t.Subtasks = withSubtaskIDs(*p.Subtasks)
	}
	t.LastUpdated = models.Stamp(s.now())

	s.tiles[i] = t
	s.markDirty()
	return prev, t.Clone(), nil
}

// Restore overwrites the stored tile that has t's id with t's content,
// keeping the current order and slug.
func (s *Store) Restore(ctx context.Context, t models.Tile) (models.Tile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(t.ID)
	if i < 0 {
		return models.Tile{}, fmt.Errorf("tile %q: %w", t.ID, apperr.ErrNotFound)
	}
	cur := s.tiles[i]
	t = t.Clone()
	t.Order = cur.Order
	t.Slug = cur.Slug
	t.Variant = cur.Variant
	t.Icon = icon.Migrate(t.Icon, s.logger)
	t.Color = palette.Normalize(t.Color)
	t.LastUpdated = models.Stamp(s.now())
	s.tiles[i] = t
	s.markDirty()
	return t.Clone(), nil
}

// Delete removes the tile with id together with its photos.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("tile %q: %w", id, apperr.ErrNotFound)
	}
	s.tiles = append(s.tiles[:i], s.tiles[i+1:]...)

	photos := s.photos[:0]
	for _, p := range s.photos {
		if p.TileID != id {
			photos = append(photos, p)
		}
	}
	s.photos = photos

	order := make([]string, 0, len(s.settings.TileOrder))
	for _, oid := range s.settings.TileOrder {
		if oid != id {
			order = append(order, oid)
		}
	}
	s.settings.TileOrder = order
	s.markDirty()
	s.logger.Info("tilestore: tile deleted", slog.String("id", id))
	return nil
}

// Reorder applies a new relative order of the regular tiles named in
// subsetIDs and returns the full id order.
func (s *Store) Reorder(ctx context.Context, subsetIDs []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reorderLocked(subsetIDs)
}

func (s *Store) reorderLocked(subsetIDs []string) []string {
	res := reorder.Reconcile(s.tiles, subsetIDs)
	s.tiles = res.Tiles
	s.settings.TileOrder = res.Order
	s.markDirty()
	return append([]string(nil), res.Order...)
}

// AppendNote adds text as a bullet paragraph at the end of the tile content.
func (s *Store) AppendNote(ctx context.Context, id, text string) (models.Tile, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Tile{}, apperr.ValidationErrors{{Field: "text", Message: "cannot be blank"}}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.Tile{}, fmt.Errorf("tile %q: %w", id, apperr.ErrNotFound)
	}
	s.tiles[i].Content = richtext.AppendNote(s.tiles[i].Content, text)
	s.tiles[i].LastUpdated = models.Stamp(s.now())
	s.markDirty()
	return s.tiles[i].Clone(), nil
}

// Overdue returns the tiles whose due date has passed.
func (s *Store) Overdue() []models.Tile {
	return status.Overdue(s.Tiles(), s.now())
}

// DueSoon returns the tiles due today or within the next few days.
func (s *Store) DueSoon() []models.Tile {
	return status.DueSoon(s.Tiles(), s.now())
}

// BlockedBy returns the tiles id depends on.
func (s *Store) BlockedBy(id string) ([]models.Tile, error) {
	tiles := s.Tiles()
	if !containsID(tiles, id) {
		return nil, fmt.Errorf("tile %q: %w", id, apperr.ErrNotFound)
	}
	return status.BlockedBy(tiles, id), nil
}

// Blocking returns the tiles that depend on id.
func (s *Store) Blocking(id string) ([]models.Tile, error) {
	tiles := s.Tiles()
	if !containsID(tiles, id) {
		return nil, fmt.Errorf("tile %q: %w", id, apperr.ErrNotFound)
	}
	return status.Blocking(tiles, id), nil
}

func (s *Store) warnOnCycle(id, title string, deps []string) {
	cycle := status.FindCycle(s.tiles, id, deps)
	if cycle == nil {
		return
	}
	titles := make([]string, len(cycle))
	for i, cid := range cycle {
		titles[i] = cid
		if j := s.indexOf(cid); j >= 0 {
			titles[i] = s.tiles[j].Title
		} else if cid == id {
			titles[i] = title
		}
	}
	s.notes.Add(models.Notification{
		Title:     "Circular dependency",
		Message:   strings.Join(titles, " → "),
		Type:      models.NotifyWarning,
		Timestamp: models.Stamp(s.now()),
		TileID:    id,
	})
	s.logger.Warn("tilestore: dependency cycle", slog.String("id", id), slog.Any("cycle", cycle))
}

// indexOf returns the slice index of id, or -1. Callers hold mu.
func (s *Store) indexOf(id string) int {
	for i, t := range s.tiles {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// uniqueSlug returns base, or base-2, base-3... when another tile than
// except already uses it. Callers hold mu.
func (s *Store) uniqueSlug(base, except string) string {
	taken := make(map[string]bool, len(s.tiles))
	for _, t := range s.tiles {
		if t.ID != except {
			taken[t.Slug] = true
		}
	}
	return nextFree(base, taken)
}

// ensureSlugs fills in missing slugs and resolves duplicates in place.
// The first tile holding a slug keeps it.
func ensureSlugs(tiles []models.Tile) {
	taken := make(map[string]bool, len(tiles))
	for i, t := range tiles {
		if t.Slug == "" || taken[t.Slug] {
			base := t.Slug
			if base == "" {
				base = richtext.Slug(t.Title)
			}
			tiles[i].Slug = nextFree(base, taken)
		}
		taken[tiles[i].Slug] = true
	}
}

func nextFree(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if !taken[candidate] {
			return candidate
		}
	}
}

func withSubtaskIDs(in []models.Subtask) []models.Subtask {
	if in == nil {
		return nil
	}
	out := make([]models.Subtask, len(in))
	for i, st := range in {
		if st.ID == "" {
			st.ID = uuid.NewString()
		}
		out[i] = st
	}
	return out
}

func containsID(tiles []models.Tile, id string) bool {
	for _, t := range tiles {
		if t.ID == id {
			return true
		}
	}
	return false
}
