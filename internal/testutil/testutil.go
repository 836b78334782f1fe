// Package testutil provides shared test helpers for databases and virtual
// time.
package testutil

import (
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/starford/tiledash/internal/sqlstore"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *sqlstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp(t.TempDir(), "tiledash-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()

	db, err := sqlstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// FakeScheduler runs timers against a virtual clock advanced by tests.
type FakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

// AfterFunc schedules f to run once the virtual clock has advanced by d.
func (s *FakeScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ft := &fakeTimer{at: s.now + d, f: f}
	s.timers = append(s.timers, ft)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ft.stopped || ft.fired {
			return false
		}
		ft.stopped = true
		return true
	}
}

// Advance moves the virtual clock forward and runs every timer that came
// due, in deadline order, on the calling goroutine.
func (s *FakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []*fakeTimer
	var rest []*fakeTimer
	for _, ft := range s.timers {
		switch {
		case ft.stopped || ft.fired:
		case ft.at <= s.now:
			ft.fired = true
			due = append(due, ft)
		default:
			rest = append(rest, ft)
		}
	}
	s.timers = rest
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, ft := range due {
		ft.f()
	}
}

// Pending counts timers that have neither fired nor been stopped.
func (s *FakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ft := range s.timers {
		if !ft.stopped && !ft.fired {
			n++
		}
	}
	return n
}
