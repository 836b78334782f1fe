package status

import (
	"sync"

	"github.com/google/uuid"

	"github.com/starford/tiledash/internal/models"
)

// MaxNotifications bounds the notification center.
const MaxNotifications = 50

// Ring holds notifications newest-first, dropping the oldest past
// MaxNotifications. It is safe for concurrent use.
type Ring struct {
	mu    sync.Mutex
	items []models.Notification
}

// NewRing creates an empty Ring.
func NewRing() *Ring {
	return &Ring{}
}

// Add prepends n, assigning an id when it has none, and returns the stored
// notification.
func (r *Ring) Add(n models.Notification) models.Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Type == "" {
		n.Type = models.NotifyInfo
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append([]models.Notification{n}, r.items...)
	if len(r.items) > MaxNotifications {
		r.items = r.items[:MaxNotifications]
	}
	return n
}

// List returns a copy of all notifications, newest first.
func (r *Ring) List() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Notification{}, r.items...)
}

// MarkRead flags the notification with id as read. It reports whether the
// id was found.
func (r *Ring) MarkRead(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id {
			r.items[i].Read = true
			return true
		}
	}
	return false
}

// Unread counts notifications not yet read.
func (r *Ring) Unread() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, it := range r.items {
		if !it.Read {
			n++
		}
	}
	return n
}

// Clear drops every notification.
func (r *Ring) Clear() {
	r.mu.Lock()
	r.items = nil
	r.mu.Unlock()
}
