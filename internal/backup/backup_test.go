package backup

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/starford/tiledash/internal/apperr"
	"github.com/starford/tiledash/internal/models"
)

var base = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func TestNewStampsIDAndVersion(t *testing.T) {
	s := New(nil, nil, models.DefaultSettings(), base)
	if s.Version != 1 {
		t.Errorf("version = %d", s.Version)
	}
	if s.ID != fmt.Sprintf("backup-%d", base.UnixMilli()) {
		t.Errorf("id = %q", s.ID)
	}
	if s.Timestamp != "2026-03-10T12:00:00.000Z" {
		t.Errorf("timestamp = %q", s.Timestamp)
	}
	if s.Tiles == nil || s.Photos == nil || s.Settings == nil {
		t.Error("collections should be non-nil")
	}
	if !s.Time().Equal(base) {
		t.Errorf("Time() = %v", s.Time())
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	tiles := models.DefaultTiles(base)
	s := New(tiles, nil, models.DefaultSettings(), base)
	data, err := Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got.Tiles) != len(tiles) || got.ID != s.ID {
		t.Errorf("round trip lost data: %d tiles, id %q", len(got.Tiles), got.ID)
	}
}

func TestUnmarshalRejectsBadFormat(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"no version":    `{"timestamp":"2026-03-10T12:00:00Z","tiles":[]}`,
		"zero version":  `{"version":0,"timestamp":"2026-03-10T12:00:00Z","tiles":[]}`,
		"no timestamp":  `{"version":1,"tiles":[]}`,
		"no tiles":      `{"version":1,"timestamp":"2026-03-10T12:00:00Z"}`,
		"tiles object":  `{"version":1,"timestamp":"2026-03-10T12:00:00Z","tiles":{}}`,
		"array payload": `[]`,
	}
	for name, in := range cases {
		_, err := Unmarshal([]byte(in))
		var ife *apperr.InvalidFormatError
		if !errors.As(err, &ife) {
			t.Errorf("%s: err = %v, want InvalidFormatError", name, err)
		}
	}
}

func TestParseImportOnlyNeedsTiles(t *testing.T) {
	s, err := ParseImport([]byte(`{"tiles":[{"id":"a","title":"A"}]}`))
	if err != nil {
		t.Fatalf("ParseImport: %v", err)
	}
	if len(s.Tiles) != 1 || s.Photos != nil || s.Settings != nil {
		t.Errorf("unexpected snapshot: %+v", s)
	}
}

type mapKV map[string][]byte

func (m mapKV) Has(key string) bool {
	_, ok := m[key]
	return ok
}

func (m mapKV) Read(key string) ([]byte, error) {
	v, ok := m[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return v, nil
}

func (m mapKV) Write(key string, val []byte) error { m[key] = val; return nil }

func TestHistoryCapsAtTen(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(NewDiskv(t.TempDir()), DefaultMax)
	for i := 0; i < 11; i++ {
		if err := h.Store(ctx, New(nil, nil, models.Settings{}, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Store %d: %v", i, err)
		}
	}
	list, err := h.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 10 {
		t.Fatalf("len = %d, want 10", len(list))
	}
	for i := 1; i < len(list); i++ {
		if !list[i-1].Time().After(list[i].Time()) {
			t.Errorf("not newest-first at %d", i)
		}
	}
	oldest := New(nil, nil, models.Settings{}, base)
	if _, err := h.Get(ctx, oldest.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("oldest snapshot should be evicted, err = %v", err)
	}
}

func TestHistorySortsOutOfOrderInserts(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(mapKV{}, 3)
	for _, m := range []int{5, 1, 9, 3} {
		_ = h.Store(ctx, New(nil, nil, models.Settings{}, base.Add(time.Duration(m)*time.Minute)))
	}
	list, _ := h.List(ctx)
	var got []int
	for _, s := range list {
		got = append(got, int(s.Time().Sub(base)/time.Minute))
	}
	if fmt.Sprint(got) != "[9 5 3]" {
		t.Errorf("order = %v", got)
	}
}

func TestHistoryGetDelete(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(mapKV{}, 0)
	s := New(nil, nil, models.Settings{}, base)
	_ = h.Store(ctx, s)
	got, err := h.Get(ctx, s.ID)
	if err != nil || got.ID != s.ID {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if err := h.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := h.Delete(ctx, s.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Delete err = %v", err)
	}
	list, _ := h.List(ctx)
	if len(list) != 0 {
		t.Errorf("list = %v", list)
	}
}

func TestWriteCSV(t *testing.T) {
	long := "<p>" + strings.Repeat("x", 150) + "</p>"
	tiles := []models.Tile{
		{Title: "Plan", Status: "active", Priority: "high", DueDate: "2026-04-01", Content: "<p>a, b, c</p>"},
		{Title: "Empty", Content: long},
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, tiles); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	if strings.Join(rows[0], "|") != "Title|Status|Priority|Due Date|Content (first 100 chars)" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][4] != "a; b; c" {
		t.Errorf("content = %q", rows[1][4])
	}
	if rows[2][1] != "N/A" || rows[2][2] != "N/A" || rows[2][3] != "N/A" {
		t.Errorf("missing values = %v", rows[2])
	}
	if len(rows[2][4]) != 100 {
		t.Errorf("content length = %d", len(rows[2][4]))
	}
}

func TestUnmarshalAcceptsLegacyStringVersion(t *testing.T) {
	s, err := Unmarshal([]byte(`{"version":"1.0","timestamp":"2026-03-10T12:00:00.000Z","tiles":[],"settings":{"darkMode":true,"tileOrder":[]}}`))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if s.Version != 1 || s.Settings == nil || !s.Settings.DarkMode {
		t.Errorf("snapshot = %+v", s)
	}
}
