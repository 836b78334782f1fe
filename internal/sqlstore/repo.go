package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/tiledash/internal/apperr"
	"github.com/starford/tiledash/internal/models"
	"github.com/starford/tiledash/internal/persist"
)

// Verify *DB satisfies persist.Adapter at compile time.
var _ persist.Adapter = (*DB)(nil)

const settingsKey = "settings"

// Marker rows in the settings table recording that a collection has been
// saved at least once, so an empty table still loads as found.
const (
	tilesSavedKey  = "saved:tiles"
	photosSavedKey = "saved:photos"
)

func markSaved(ctx context.Context, tx *sql.Tx, key string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, '1')
		ON CONFLICT(key) DO NOTHING
	`, key)
	if err != nil {
		return fmt.Errorf("sqlstore: mark %s: %w", key, err)
	}
	return nil
}

func (db *DB) saved(ctx context.Context, key string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM settings WHERE key = ?`, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlstore: read %s: %w", key, err)
	}
	return n > 0, nil
}

// LoadTiles returns every stored tile ordered by position. found is false
// until SaveTiles has run once, even for an empty set.
func (db *DB) LoadTiles(ctx context.Context) ([]models.Tile, bool, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT data FROM tiles ORDER BY position, id`)
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: load tiles: %w", err)
	}
	defer rows.Close()

	var out []models.Tile
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, false, err
		}
		var t models.Tile
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, true, fmt.Errorf("sqlstore: decode tile: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(out) > 0 {
		return out, true, nil
	}
	found, err := db.saved(ctx, tilesSavedKey)
	return out, found, err
}

// SaveTiles replaces the stored tile set within a transaction.
func (db *DB) SaveTiles(ctx context.Context, tiles []models.Tile) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.ExecContext(ctx, `DELETE FROM tiles`); err != nil {
		return fmt.Errorf("sqlstore: clear tiles: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tiles (id, slug, title, position, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sqlstore: prepare tile insert: %w", err)
	}
	defer stmt.Close()
	for _, t := range tiles {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("sqlstore: encode tile %s: %w", t.ID, err)
		}
		// Large tiles order independently; keep them after regular ones.
		pos := t.Order
		if t.IsLarge() {
			pos += len(tiles)
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.Slug, t.Title, pos, string(data), t.LastUpdated); err != nil {
			return fmt.Errorf("sqlstore: insert tile %s: %w", t.ID, err)
		}
	}
	if err := markSaved(ctx, tx, tilesSavedKey); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadPhotos returns every stored photo in insertion order. found follows
// the same rule as LoadTiles.
func (db *DB) LoadPhotos(ctx context.Context) ([]models.Photo, bool, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT data FROM photos ORDER BY seq`)
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: load photos: %w", err)
	}
	defer rows.Close()

	var out []models.Photo
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, false, err
		}
		var p models.Photo
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, true, fmt.Errorf("sqlstore: decode photo: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(out) > 0 {
		return out, true, nil
	}
	found, err := db.saved(ctx, photosSavedKey)
	return out, found, err
}

// SavePhotos replaces the stored photo set within a transaction.
func (db *DB) SavePhotos(ctx context.Context, photos []models.Photo) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM photos`); err != nil {
		return fmt.Errorf("sqlstore: clear photos: %w", err)
	}
	for i, p := range photos {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("sqlstore: encode photo %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO photos (id, tile_id, seq, data) VALUES (?, ?, ?, ?)`,
			p.ID, p.TileID, i, string(data)); err != nil {
			return fmt.Errorf("sqlstore: insert photo %s: %w", p.ID, err)
		}
	}
	if err := markSaved(ctx, tx, photosSavedKey); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadSettings returns the settings singleton.
func (db *DB) LoadSettings(ctx context.Context) (models.Settings, bool, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Settings{}, false, nil
	}
	if err != nil {
		return models.Settings{}, false, fmt.Errorf("sqlstore: load settings: %w", err)
	}
	var s models.Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return models.Settings{}, true, fmt.Errorf("sqlstore: decode settings: %w", err)
	}
	return s, true, nil
}

// SaveSettings upserts the settings singleton.
func (db *DB) SaveSettings(ctx context.Context, s models.Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("sqlstore: encode settings: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, settingsKey, string(data))
	if err != nil {
		return fmt.Errorf("sqlstore: save settings: %w", err)
	}
	return nil
}

// TileBySlug looks a stored tile up by slug.
func (db *DB) TileBySlug(ctx context.Context, slug string) (models.Tile, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx, `SELECT data FROM tiles WHERE slug = ? LIMIT 1`, slug).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Tile{}, fmt.Errorf("sqlstore: slug %s: %w", slug, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Tile{}, fmt.Errorf("sqlstore: tile by slug: %w", err)
	}
	var t models.Tile
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return models.Tile{}, fmt.Errorf("sqlstore: decode tile: %w", err)
	}
	return t, nil
}
