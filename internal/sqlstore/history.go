package sqlstore

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/tiledash/internal/apperr"
	"github.com/starford/tiledash/internal/models"
)

// SaveVersion records t as a point-in-time version of its tile.
func (db *DB) SaveVersion(ctx context.Context, t models.Tile, at time.Time) (models.TileVersion, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return models.TileVersion{}, fmt.Errorf("sqlstore: encode version: %w", err)
	}
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO tile_versions (tile_id, data, created_at) VALUES (?, ?, ?)`,
		t.ID, string(data), at.UTC())
	if err != nil {
		return models.TileVersion{}, fmt.Errorf("sqlstore: insert version: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.TileVersion{}, fmt.Errorf("sqlstore: version id: %w", err)
	}
	return models.TileVersion{ID: id, TileID: t.ID, Tile: t, CreatedAt: at.UTC()}, nil
}

// ListVersions returns the versions of tileID, newest first.
func (db *DB) ListVersions(ctx context.Context, tileID string) ([]models.TileVersion, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, tile_id, data, created_at FROM tile_versions
		WHERE tile_id = ?
		ORDER BY created_at DESC, id DESC
	`, tileID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list versions: %w", err)
	}
	defer rows.Close()

	out := []models.TileVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetVersion returns version id of tileID.
func (db *DB) GetVersion(ctx context.Context, tileID string, id int64) (models.TileVersion, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, tile_id, data, created_at FROM tile_versions WHERE id = ? AND tile_id = ?`, id, tileID)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TileVersion{}, fmt.Errorf("sqlstore: version %d: %w", id, apperr.ErrNotFound)
	}
	return v, err
}

// DeleteVersions drops the history of tileID.
func (db *DB) DeleteVersions(ctx context.Context, tileID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM tile_versions WHERE tile_id = ?`, tileID); err != nil {
		return fmt.Errorf("sqlstore: delete versions: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(s scanner) (models.TileVersion, error) {
	var (
		v   models.TileVersion
		raw string
	)
	if err := s.Scan(&v.ID, &v.TileID, &raw, &v.CreatedAt); err != nil {
		return models.TileVersion{}, err
	}
	if err := json.Unmarshal([]byte(raw), &v.Tile); err != nil {
		return models.TileVersion{}, fmt.Errorf("sqlstore: decode version: %w", err)
	}
	return v, nil
}

// NewShareToken returns 16 random bytes, hex encoded.
func NewShareToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("sqlstore: share token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CreateShare issues an active share link for tileID.
func (db *DB) CreateShare(ctx context.Context, tileID string, expiresAt *time.Time, now time.Time) (models.SharedLink, error) {
	token, err := NewShareToken()
	if err != nil {
		return models.SharedLink{}, err
	}
	var exp any
	if expiresAt != nil {
		exp = expiresAt.UTC()
	}
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO shared_links (tile_id, share_token, is_active, expires_at, created_at)
		VALUES (?, ?, 1, ?, ?)
	`, tileID, token, exp, now.UTC())
	if err != nil {
		return models.SharedLink{}, fmt.Errorf("sqlstore: insert share: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.SharedLink{}, fmt.Errorf("sqlstore: share id: %w", err)
	}
	return db.GetShare(ctx, id)
}

// GetShare returns share link id.
func (db *DB) GetShare(ctx context.Context, id int64) (models.SharedLink, error) {
	l, err := scanShare(db.conn.QueryRowContext(ctx, shareSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.SharedLink{}, fmt.Errorf("sqlstore: share %d: %w", id, apperr.ErrNotFound)
	}
	return l, err
}

// ListShares returns the links issued for tileID, newest first.
func (db *DB) ListShares(ctx context.Context, tileID string) ([]models.SharedLink, error) {
	rows, err := db.conn.QueryContext(ctx, shareSelect+` WHERE tile_id = ? ORDER BY id DESC`, tileID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list shares: %w", err)
	}
	defer rows.Close()

	out := []models.SharedLink{}
	for rows.Next() {
		l, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// SharePatch carries the mutable fields of a share link. Nil fields are
// left unchanged; ClearExpiry removes the expiry.
type SharePatch struct {
	IsActive    *bool
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// UpdateShare applies p to share link id.
func (db *DB) UpdateShare(ctx context.Context, id int64, p SharePatch) (models.SharedLink, error) {
	l, err := db.GetShare(ctx, id)
	if err != nil {
		return models.SharedLink{}, err
	}
	if p.IsActive != nil {
		l.IsActive = *p.IsActive
	}
	if p.ClearExpiry {
		l.ExpiresAt = nil
	} else if p.ExpiresAt != nil {
		e := p.ExpiresAt.UTC()
		l.ExpiresAt = &e
	}
	var exp any
	if l.ExpiresAt != nil {
		exp = *l.ExpiresAt
	}
	if _, err := db.conn.ExecContext(ctx,
		`UPDATE shared_links SET is_active = ?, expires_at = ? WHERE id = ?`,
		l.IsActive, exp, id); err != nil {
		return models.SharedLink{}, fmt.Errorf("sqlstore: update share: %w", err)
	}
	return l, nil
}

// DeleteShare removes share link id.
func (db *DB) DeleteShare(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM shared_links WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlstore: delete share: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlstore: share %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// DeleteSharesForTile removes every link issued for tileID.
func (db *DB) DeleteSharesForTile(ctx context.Context, tileID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM shared_links WHERE tile_id = ?`, tileID); err != nil {
		return fmt.Errorf("sqlstore: delete shares: %w", err)
	}
	return nil
}

// ResolveShare returns the link for token. Unknown and inactive links are
// ErrNotFound; links past their expiry are ErrGone.
func (db *DB) ResolveShare(ctx context.Context, token string, now time.Time) (models.SharedLink, error) {
	l, err := scanShare(db.conn.QueryRowContext(ctx, shareSelect+` WHERE share_token = ?`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return models.SharedLink{}, fmt.Errorf("sqlstore: share token: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return models.SharedLink{}, err
	}
	if !l.IsActive {
		return models.SharedLink{}, fmt.Errorf("sqlstore: share inactive: %w", apperr.ErrNotFound)
	}
	if l.Expired(now) {
		return models.SharedLink{}, fmt.Errorf("sqlstore: share expired: %w", apperr.ErrGone)
	}
	return l, nil
}

const shareSelect = `SELECT id, tile_id, share_token, is_active, expires_at, created_at FROM shared_links`

func scanShare(s scanner) (models.SharedLink, error) {
	var (
		l   models.SharedLink
		exp sql.NullTime
	)
	if err := s.Scan(&l.ID, &l.TileID, &l.ShareToken, &l.IsActive, &exp, &l.CreatedAt); err != nil {
		return models.SharedLink{}, err
	}
	if exp.Valid {
		t := exp.Time
		l.ExpiresAt = &t
	}
	return l, nil
}
