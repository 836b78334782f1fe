package persist

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/tiledash/internal/storage"
)

// WatchDebounce coalesces bursts of external edits into one reload.
const WatchDebounce = 200 * time.Millisecond

// ChangeCallback is called once per settled burst of external edits with
// the set of keys that changed.
type ChangeCallback func(keys []string)

// Watch observes the data directory of fs and reports edits made by other
// processes to the blobs Local owns. Writes made through local are
// recognized by checksum and ignored. It blocks until ctx is cancelled.
func Watch(ctx context.Context, fs *storage.FS, local *Local, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(fs.Root()); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", fs.Root()))

	pending := make(map[string]bool)
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func(key string) {
		pending[key] = true
		if timer == nil {
			timer = time.NewTimer(WatchDebounce)
			timerCh = timer.C
		} else {
			timer.Reset(WatchDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			keys := make([]string, 0, len(pending))
			for k := range pending {
				keys = append(keys, k)
			}
			pending = make(map[string]bool)
			timer, timerCh = nil, nil
			logger.Info("watcher: external change", slog.Any("keys", keys))
			if cb != nil {
				cb(keys)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			key, ok := fs.KeyFromPath(ev.Name)
			if !ok || !owned(key) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, found, readErr := fs.Get(key)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("key", key), slog.String("error", readErr.Error()))
					continue
				}
				if found && local.IsOwnWrite(key, data) {
					continue
				}
				schedule(key)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				schedule(key)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func owned(key string) bool {
	return key == KeyTiles || key == KeyPhotos || key == KeySettings
}
