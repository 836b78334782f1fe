// Package checksum fingerprints persisted blobs so a process can tell its
// own writes apart from external edits.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Tracker remembers the last digest written under each key.
type Tracker struct {
	mu   sync.Mutex
	sums map[string]string
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{sums: make(map[string]string)}
}

// Record stores the digest of data as the latest write for key.
func (t *Tracker) Record(key string, data []byte) {
	t.mu.Lock()
	t.sums[key] = Sum(data)
	t.mu.Unlock()
}

// Forget drops key.
func (t *Tracker) Forget(key string) {
	t.mu.Lock()
	delete(t.sums, key)
	t.mu.Unlock()
}

// Matches reports whether data is exactly what was last recorded for key.
func (t *Tracker) Matches(key string, data []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	sum, ok := t.sums[key]
	return ok && sum == Sum(data)
}
