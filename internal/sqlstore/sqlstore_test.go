package sqlstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/tiledash/internal/apperr"
	"github.com/starford/tiledash/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "tiledash-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var now = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)
	var v int
	if err := db.conn.QueryRow(`PRAGMA user_version`).Scan(&v); err != nil {
		t.Fatal(err)
	}
	if v != currentVersion {
		t.Errorf("user_version = %d, want %d", v, currentVersion)
	}
	for _, table := range []string{"tiles", "photos", "settings", "tile_versions", "shared_links"} {
		var n int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&n); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestTilesRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	if _, found, err := db.LoadTiles(ctx); err != nil || found {
		t.Fatalf("empty load: found=%v err=%v", found, err)
	}

	tiles := models.DefaultTiles(now)
	if err := db.SaveTiles(ctx, tiles); err != nil {
		t.Fatalf("SaveTiles: %v", err)
	}
	got, found, err := db.LoadTiles(ctx)
	if err != nil || !found {
		t.Fatalf("LoadTiles: found=%v err=%v", found, err)
	}
	if len(got) != len(tiles) {
		t.Fatalf("len = %d", len(got))
	}
	if got[len(got)-1].ID != models.LargeNotesTileID {
		t.Errorf("large tile not last: %s", got[len(got)-1].ID)
	}

	// Saving a smaller set replaces the table.
	if err := db.SaveTiles(ctx, tiles[:2]); err != nil {
		t.Fatalf("SaveTiles: %v", err)
	}
	got, _, _ = db.LoadTiles(ctx)
	if len(got) != 2 {
		t.Errorf("len after replace = %d", len(got))
	}

	bySlug, err := db.TileBySlug(ctx, tiles[1].Slug)
	if err != nil || bySlug.ID != tiles[1].ID {
		t.Errorf("TileBySlug = %+v, %v", bySlug, err)
	}
	if _, err := db.TileBySlug(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing slug err = %v", err)
	}
}

func TestEmptySetsStayFound(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	if err := db.SaveTiles(ctx, models.DefaultTiles(now)); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveTiles(ctx, []models.Tile{}); err != nil {
		t.Fatalf("SaveTiles: %v", err)
	}
	tiles, found, err := db.LoadTiles(ctx)
	if err != nil || !found || len(tiles) != 0 {
		t.Errorf("LoadTiles = %d tiles, found=%v err=%v; want 0, true", len(tiles), found, err)
	}

	if _, found, _ := db.LoadPhotos(ctx); found {
		t.Error("photos found before any save")
	}
	if err := db.SavePhotos(ctx, nil); err != nil {
		t.Fatalf("SavePhotos: %v", err)
	}
	if _, found, err := db.LoadPhotos(ctx); err != nil || !found {
		t.Errorf("LoadPhotos found=%v err=%v, want found", found, err)
	}

	// Markers live beside the settings row without disturbing it.
	if _, found, _ := db.LoadSettings(ctx); found {
		t.Error("settings found before SaveSettings")
	}
}

func TestPhotosAndSettings(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	photos := []models.Photo{{ID: "p2", TileID: "a"}, {ID: "p1", TileID: "b"}}
	if err := db.SavePhotos(ctx, photos); err != nil {
		t.Fatalf("SavePhotos: %v", err)
	}
	got, found, err := db.LoadPhotos(ctx)
	if err != nil || !found || len(got) != 2 || got[0].ID != "p2" {
		t.Fatalf("LoadPhotos = %+v found=%v err=%v", got, found, err)
	}

	if _, found, _ := db.LoadSettings(ctx); found {
		t.Error("settings should start absent")
	}
	_ = db.SaveSettings(ctx, models.Settings{DarkMode: true})
	_ = db.SaveSettings(ctx, models.Settings{DarkMode: false, TileOrder: []string{"x"}})
	s, found, err := db.LoadSettings(ctx)
	if err != nil || !found || s.DarkMode || len(s.TileOrder) != 1 {
		t.Errorf("settings = %+v found=%v err=%v", s, found, err)
	}
}

func TestVersions(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	tile := models.Tile{ID: "a", Title: "First"}
	v1, err := db.SaveVersion(ctx, tile, now)
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}
	tile.Title = "Second"
	if _, err := db.SaveVersion(ctx, tile, now.Add(time.Minute)); err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}

	list, err := db.ListVersions(ctx, "a")
	if err != nil || len(list) != 2 {
		t.Fatalf("ListVersions = %v, %v", list, err)
	}
	if list[0].Tile.Title != "Second" {
		t.Errorf("newest first violated: %q", list[0].Tile.Title)
	}

	got, err := db.GetVersion(ctx, "a", v1.ID)
	if err != nil || got.Tile.Title != "First" {
		t.Errorf("GetVersion = %+v, %v", got, err)
	}
	if _, err := db.GetVersion(ctx, "other", v1.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("foreign version err = %v", err)
	}

	_ = db.DeleteVersions(ctx, "a")
	if list, _ := db.ListVersions(ctx, "a"); len(list) != 0 {
		t.Errorf("versions left: %d", len(list))
	}
}

func TestShares(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	link, err := db.CreateShare(ctx, "a", nil, now)
	if err != nil {
		t.Fatalf("CreateShare: %v", err)
	}
	if len(link.ShareToken) != 32 || !link.IsActive || link.ExpiresAt != nil {
		t.Errorf("link = %+v", link)
	}

	if _, err := db.ResolveShare(ctx, link.ShareToken, now); err != nil {
		t.Errorf("ResolveShare: %v", err)
	}
	if _, err := db.ResolveShare(ctx, "unknown", now); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown token err = %v", err)
	}

	past := now.Add(-time.Hour)
	if _, err := db.UpdateShare(ctx, link.ID, SharePatch{ExpiresAt: &past}); err != nil {
		t.Fatalf("UpdateShare: %v", err)
	}
	if _, err := db.ResolveShare(ctx, link.ShareToken, now); !errors.Is(err, apperr.ErrGone) {
		t.Errorf("expired token err = %v", err)
	}

	off := false
	updated, err := db.UpdateShare(ctx, link.ID, SharePatch{IsActive: &off, ClearExpiry: true})
	if err != nil || updated.IsActive || updated.ExpiresAt != nil {
		t.Fatalf("UpdateShare = %+v, %v", updated, err)
	}
	if _, err := db.ResolveShare(ctx, link.ShareToken, now); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("inactive token err = %v", err)
	}

	list, _ := db.ListShares(ctx, "a")
	if len(list) != 1 {
		t.Errorf("ListShares len = %d", len(list))
	}
	if err := db.DeleteShare(ctx, link.ID); err != nil {
		t.Fatalf("DeleteShare: %v", err)
	}
	if err := db.DeleteShare(ctx, link.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second DeleteShare err = %v", err)
	}
}
