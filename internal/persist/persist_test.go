package persist

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/tiledash/internal/models"
	"github.com/starford/tiledash/internal/storage"
)

func newLocal(t *testing.T) (*storage.FS, *Local) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return fs, NewLocal(fs)
}

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, l := newLocal(t)

	if _, found, err := l.LoadTiles(ctx); err != nil || found {
		t.Fatalf("empty LoadTiles: found=%v err=%v", found, err)
	}

	tiles := models.DefaultTiles(time.Now())
	if err := l.SaveTiles(ctx, tiles); err != nil {
		t.Fatalf("SaveTiles: %v", err)
	}
	got, found, err := l.LoadTiles(ctx)
	if err != nil || !found {
		t.Fatalf("LoadTiles: found=%v err=%v", found, err)
	}
	if len(got) != len(tiles) || got[0].ID != tiles[0].ID {
		t.Errorf("tiles = %+v", got)
	}

	s := models.Settings{DarkMode: true, TileOrder: []string{"a"}}
	if err := l.SaveSettings(ctx, s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	gs, found, _ := l.LoadSettings(ctx)
	if !found || !gs.DarkMode || len(gs.TileOrder) != 1 {
		t.Errorf("settings = %+v", gs)
	}

	if err := l.SavePhotos(ctx, nil); err != nil {
		t.Fatalf("SavePhotos: %v", err)
	}
	photos, found, _ := l.LoadPhotos(ctx)
	if !found || photos == nil || len(photos) != 0 {
		t.Errorf("photos = %#v found=%v", photos, found)
	}
}

func TestLocalMalformedBlob(t *testing.T) {
	fs, l := newLocal(t)
	_ = fs.Set(KeyTiles, []byte("{not json"))
	if _, found, err := l.LoadTiles(context.Background()); err == nil || !found {
		t.Errorf("expected decode error, found=%v err=%v", found, err)
	}
}

func TestLocalRecognizesOwnWrites(t *testing.T) {
	fs, l := newLocal(t)
	_ = l.SaveSettings(context.Background(), models.Settings{DarkMode: true})
	data, _, _ := fs.Get(KeySettings)
	if !l.IsOwnWrite(KeySettings, data) {
		t.Error("own write not recognized")
	}
	if l.IsOwnWrite(KeySettings, []byte(`{"darkMode":false}`)) {
		t.Error("foreign data recognized as own")
	}
}

func TestLocalCancelledContext(t *testing.T) {
	_, l := newLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.SaveTiles(ctx, nil); err == nil {
		t.Error("expected error on cancelled context")
	}
}

func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatchReportsExternalEditsOnly(t *testing.T) {
	fs, l := newLocal(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var batches [][]string
	go Watch(ctx, fs, l, logger, func(keys []string) {
		mu.Lock()
		batches = append(batches, keys)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = l.SaveSettings(context.Background(), models.Settings{DarkMode: true})
	time.Sleep(3 * WatchDebounce)
	mu.Lock()
	if len(batches) != 0 {
		t.Errorf("own write reported: %v", batches)
	}
	mu.Unlock()

	_ = os.WriteFile(filepath.Join(fs.Root(), KeyTiles+".json"), []byte(`[]`), 0o644)
	_ = os.WriteFile(filepath.Join(fs.Root(), "unrelated.json"), []byte(`{}`), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) == 1 && len(batches[0]) == 1 && batches[0][0] == KeyTiles
	}, "external edit not reported")
}
