package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/starford/tiledash/internal/backup"
	"github.com/starford/tiledash/internal/dashboard"
	"github.com/starford/tiledash/internal/due"
	"github.com/starford/tiledash/internal/models"
	"github.com/starford/tiledash/internal/persist"
	"github.com/starford/tiledash/internal/testutil"
	"github.com/starford/tiledash/internal/tilestore"
)

func TestRenderStatus(t *testing.T) {
	color.NoColor = true
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	progress := 40

	tiles := []dashboard.TileDetail{
		{
			Tile: models.Tile{ID: "research", Title: "Research", Progress: &progress,
				LastUpdated: models.Stamp(now.Add(-2 * time.Hour))},
			Due: &due.Info{IsOverdue: true, Label: "2 days overdue"},
		},
		{
			Tile: models.Tile{ID: "vessels", Title: "Vessels", LastUpdated: "garbage"},
		},
	}

	var buf bytes.Buffer
	renderStatus(&buf, tiles, now)
	out := buf.String()

	for _, want := range []string{"research", "2 days overdue", "40%", "2 hours ago", "vessels", "2 tiles, 1 overdue"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestExport(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := tilestore.New(persist.NewMemory(),
		tilestore.WithScheduler(&testutil.FakeScheduler{}),
		tilestore.WithLogger(logger))
	if err := store.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	history := backup.NewHistory(backup.NewDiskv(t.TempDir()), backup.DefaultMax)
	svc := dashboard.NewService(store, testutil.TestDB(t), history, nil, logger)

	var buf bytes.Buffer
	if err := export(context.Background(), svc, "json", &buf); err != nil {
		t.Fatal(err)
	}
	snap, err := backup.ParseImport(buf.Bytes())
	if err != nil || len(snap.Tiles) != 10 {
		t.Fatalf("json export = %d tiles, %v", len(snap.Tiles), err)
	}

	buf.Reset()
	if err := export(context.Background(), svc, "csv", &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "To-Do & Notes") {
		t.Errorf("csv export = %s", buf.String())
	}
}
