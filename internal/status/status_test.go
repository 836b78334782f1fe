package status

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/starford/tiledash/internal/models"
)

var now = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func dueIn(days int) string {
	return now.AddDate(0, 0, days).Format(time.DateOnly)
}

func ids(tiles []models.Tile) []string {
	out := []string{}
	for _, t := range tiles {
		out = append(out, t.ID)
	}
	return out
}

func TestOverdueAndDueSoon(t *testing.T) {
	tiles := []models.Tile{
		{ID: "late", DueDate: dueIn(-2)},
		{ID: "today", DueDate: dueIn(0)},
		{ID: "soon", DueDate: dueIn(3)},
		{ID: "later", DueDate: dueIn(4)},
		{ID: "none"},
		{ID: "junk", DueDate: "someday"},
	}
	if got := ids(Overdue(tiles, now)); !reflect.DeepEqual(got, []string{"late"}) {
		t.Errorf("Overdue = %v", got)
	}
	if got := ids(DueSoon(tiles, now)); !reflect.DeepEqual(got, []string{"today", "soon"}) {
		t.Errorf("DueSoon = %v", got)
	}
}

func TestBlockedByAndBlocking(t *testing.T) {
	tiles := []models.Tile{
		{ID: "a", DependsOn: []string{"b", "ghost", "c"}},
		{ID: "b"},
		{ID: "c", DependsOn: []string{"b"}},
	}
	if got := ids(BlockedBy(tiles, "a")); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("BlockedBy(a) = %v", got)
	}
	if got := BlockedBy(tiles, "missing"); got != nil {
		t.Errorf("BlockedBy(missing) = %v", got)
	}
	if got := ids(Blocking(tiles, "b")); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("Blocking(b) = %v", got)
	}
	if got := ids(Blocking(tiles, "a")); len(got) != 0 {
		t.Errorf("Blocking(a) = %v", got)
	}
}

func TestFindCycle(t *testing.T) {
	tiles := []models.Tile{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"c"}},
		{ID: "c"},
		{ID: "d"},
	}
	if got := FindCycle(tiles, "c", []string{"a"}); !reflect.DeepEqual(got, []string{"c", "a", "b", "c"}) {
		t.Errorf("cycle = %v", got)
	}
	if got := FindCycle(tiles, "c", []string{"d"}); got != nil {
		t.Errorf("expected no cycle, got %v", got)
	}
	if got := FindCycle(tiles, "d", []string{"d"}); !reflect.DeepEqual(got, []string{"d", "d"}) {
		t.Errorf("self cycle = %v", got)
	}
	if got := FindCycle(tiles, "new", []string{"a", "ghost"}); got != nil {
		t.Errorf("new tile cycle = %v", got)
	}
}

func TestRingCapsNewestFirst(t *testing.T) {
	r := NewRing()
	for i := 0; i < MaxNotifications+5; i++ {
		r.Add(models.Notification{Title: fmt.Sprintf("n%d", i)})
	}
	items := r.List()
	if len(items) != MaxNotifications {
		t.Fatalf("len = %d", len(items))
	}
	if items[0].Title != fmt.Sprintf("n%d", MaxNotifications+4) {
		t.Errorf("newest = %q", items[0].Title)
	}
	if items[len(items)-1].Title != "n5" {
		t.Errorf("oldest kept = %q", items[len(items)-1].Title)
	}
	if items[0].ID == "" || items[0].Type != models.NotifyInfo {
		t.Errorf("defaults not applied: %+v", items[0])
	}
}

func TestRingReadAndClear(t *testing.T) {
	r := NewRing()
	a := r.Add(models.Notification{Title: "a"})
	r.Add(models.Notification{Title: "b"})
	if r.Unread() != 2 {
		t.Fatalf("unread = %d", r.Unread())
	}
	if !r.MarkRead(a.ID) {
		t.Fatal("MarkRead returned false")
	}
	if r.MarkRead("missing") {
		t.Error("MarkRead(missing) returned true")
	}
	if r.Unread() != 1 {
		t.Errorf("unread = %d", r.Unread())
	}
	r.Clear()
	if len(r.List()) != 0 {
		t.Error("Clear left items")
	}
}
