package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/peterbourgon/diskv/v3"

	"github.com/starford/tiledash/internal/apperr"
)

// DefaultMax is the number of snapshots History retains by default.
const DefaultMax = 10

const historyKey = "tiles_backups"

// KV is the blob medium the history list is stored in. *diskv.Diskv
// satisfies it.
type KV interface {
	Has(key string) bool
	Read(key string) ([]byte, error)
	Write(key string, val []byte) error
}

// NewDiskv opens a diskv store rooted at basePath for use with History.
func NewDiskv(basePath string) *diskv.Diskv {
	return diskv.New(diskv.Options{
		BasePath:     basePath,
		CacheSizeMax: 1024 * 1024, // 1MB
	})
}

// History is a bounded, newest-first list of snapshots.
type History struct {
	mu  sync.Mutex
	kv  KV
	max int
}

// NewHistory creates a History keeping at most max snapshots.
func NewHistory(kv KV, max int) *History {
	if max <= 0 {
		max = DefaultMax
	}
	return &History{kv: kv, max: max}
}

// Store adds s, sorts by timestamp descending and keeps the newest entries.
func (h *History) Store(_ context.Context, s Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	list, err := h.load()
	if err != nil {
		return err
	}
	list = append([]Snapshot{s}, list...)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Time().After(list[j].Time())
	})
	if len(list) > h.max {
		list = list[:h.max]
	}
	return h.save(list)
}

// List returns the stored snapshots, newest first.
func (h *History) List(_ context.Context) ([]Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load()
}

// Get returns the snapshot with id.
func (h *History) Get(_ context.Context, id string) (Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list, err := h.load()
	if err != nil {
		return Snapshot{}, err
	}
	for _, s := range list {
		if s.ID == id {
			return s, nil
		}
	}
	return Snapshot{}, fmt.Errorf("backup: %s: %w", id, apperr.ErrNotFound)
}

// Delete removes the snapshot with id.
func (h *History) Delete(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	list, err := h.load()
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, s := range list {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(list) {
		return fmt.Errorf("backup: %s: %w", id, apperr.ErrNotFound)
	}
	return h.save(kept)
}

func (h *History) load() ([]Snapshot, error) {
	if !h.kv.Has(historyKey) {
		return []Snapshot{}, nil
	}
	data, err := h.kv.Read(historyKey)
	if err != nil {
		return nil, fmt.Errorf("backup: read history: %w", err)
	}
	var list []Snapshot
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("backup: decode history: %w", err)
	}
	if list == nil {
		list = []Snapshot{}
	}
	return list, nil
}

func (h *History) save(list []Snapshot) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("backup: encode history: %w", err)
	}
	if err := h.kv.Write(historyKey, data); err != nil {
		return fmt.Errorf("backup: write history: %w", err)
	}
	return nil
}
