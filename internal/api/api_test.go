package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/starford/tiledash/internal/backup"
	"github.com/starford/tiledash/internal/dashboard"
	"github.com/starford/tiledash/internal/persist"
	"github.com/starford/tiledash/internal/testutil"
	"github.com/starford/tiledash/internal/tilestore"
)

// testEnv builds a service over in-memory persistence and a temp SQLite DB.
// An empty authToken disables authentication.
func testEnv(t *testing.T, authToken string) (*dashboard.Service, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (*dashboard.Service, http.Handler) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := tilestore.New(persist.NewMemory(),
		tilestore.WithScheduler(&testutil.FakeScheduler{}),
		tilestore.WithLogger(logger))
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	history := backup.NewHistory(backup.NewDiskv(t.TempDir()), backup.DefaultMax)
	svc := dashboard.NewService(store, testutil.TestDB(t), history, nil, logger)
	return svc, NewRouter(svc, authEnabled, token, sseHandler)
}

func do(t *testing.T, router http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetTile(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/tiles", map[string]any{"title": "Garden", "color": "#22C55E"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created TileDetail
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.Slug != "garden" || created.Checksum == "" {
		t.Errorf("created = %+v", created)
	}

	w = do(t, router, http.MethodGet, "/tiles/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if etag := w.Header().Get("ETag"); etag != `"`+created.Checksum+`"` {
		t.Errorf("ETag = %s, want %q", etag, created.Checksum)
	}

	w = do(t, router, http.MethodGet, "/tiles/slug/garden", nil)
	if w.Code != http.StatusOK {
		t.Errorf("get by slug status = %d", w.Code)
	}
}

func TestCreateTileValidation(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/tiles", map[string]any{"title": "", "progress": 140})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp errResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	fields := map[string]bool{}
	for _, f := range resp.Fields {
		fields[f.Field] = true
	}
	if !fields["title"] || !fields["progress"] {
		t.Errorf("fields = %+v", resp.Fields)
	}

	req := httptest.NewRequest(http.MethodPost, "/tiles", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON = %d, want 400", rec.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/tiles/research", nil)
	etag := w.Header().Get("ETag")

	w = do(t, router, http.MethodPatch, "/tiles/research", map[string]any{"title": "Lab"}, "If-Match", `"stale"`)
	if w.Code != http.StatusConflict {
		t.Fatalf("stale If-Match = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPatch, "/tiles/research", map[string]any{"title": "Lab"}, "If-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") == etag {
		t.Error("ETag did not change after update")
	}

	w = do(t, router, http.MethodGet, "/tiles/research/versions", nil)
	var versions struct {
		Versions []json.RawMessage `json:"versions"`
	}
	_ = json.NewDecoder(w.Body).Decode(&versions)
	if len(versions.Versions) != 1 {
		t.Errorf("versions = %d, want 1", len(versions.Versions))
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPatch, "/tiles/vessels", map[string]any{"progress": 40})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d", w.Code)
	}
	var got TileDetail
	_ = json.NewDecoder(w.Body).Decode(&got)
	if got.Progress == nil || *got.Progress != 40 {
		t.Errorf("progress = %v", got.Progress)
	}
}

func TestUpdateTile_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPatch, "/tiles/ghost", map[string]any{"title": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestDeleteTile(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodDelete, "/tiles/storyboard", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/tiles/storyboard", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	w := do(t, router, http.MethodGet, "/settings", nil)
	if strings.Contains(w.Body.String(), `"storyboard"`) {
		t.Error("deleted tile still in tile order")
	}
}

func TestListTilesAndSearch(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/tiles", nil)
	var list TileListResponse
	_ = json.NewDecoder(w.Body).Decode(&list)
	if list.Total != 10 {
		t.Errorf("total = %d, want 10", list.Total)
	}

	w = do(t, router, http.MethodGet, "/tiles?q=vess", nil)
	_ = json.NewDecoder(w.Body).Decode(&list)
	if list.Total != 1 || list.Tiles[0].ID != "vessels" {
		t.Errorf("search = %+v", list)
	}
}

func TestReorderTiles(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/tiles/reorder", ReorderRequest{TileIDs: []string{"charters", "research"}})
	if w.Code != http.StatusOK {
		t.Fatalf("reorder = %d", w.Code)
	}
	var resp ReorderResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.TileOrder) != 10 || resp.TileOrder[0] != "charters" || resp.TileOrder[1] != "research" {
		t.Errorf("order = %v", resp.TileOrder)
	}
}

func TestAppendNote(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/tiles/todo-notes/notes", NoteRequest{Text: "call <dock>"})
	if w.Code != http.StatusOK {
		t.Fatalf("append = %d", w.Code)
	}
	var got TileDetail
	_ = json.NewDecoder(w.Body).Decode(&got)
	if !strings.Contains(got.Content, "call &lt;dock&gt;") {
		t.Errorf("note not escaped: %q", got.Content)
	}
	if w := do(t, router, http.MethodPost, "/tiles/todo-notes/notes", NoteRequest{Text: "  "}); w.Code != http.StatusBadRequest {
		t.Errorf("blank note = %d, want 400", w.Code)
	}
}

func TestSharedTileIsPublic(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodPost, "/tiles/personal/shares", nil, "Authorization", "Bearer secret123")
	if w.Code != http.StatusCreated {
		t.Fatalf("create share = %d, body = %s", w.Code, w.Body.String())
	}
	var link struct {
		ID         int64  `json:"id"`
		ShareToken string `json:"shareToken"`
	}
	_ = json.NewDecoder(w.Body).Decode(&link)

	w = do(t, router, http.MethodGet, "/shared/"+link.ShareToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("shared = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"personal"`) {
		t.Errorf("shared body = %s", w.Body.String())
	}

	past := time.Now().Add(-time.Hour)
	w = do(t, router, http.MethodPatch, "/shares/"+strconv.FormatInt(link.ID, 10), UpdateShareRequest{ExpiresAt: &past}, "Authorization", "Bearer secret123")
	if w.Code != http.StatusOK {
		t.Fatalf("update share = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/shared/"+link.ShareToken, nil); w.Code != http.StatusGone {
		t.Errorf("expired share = %d, want 410", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/shared/unknown", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown share = %d, want 404", w.Code)
	}
}

func TestUploadPhoto(t *testing.T) {
	_, router := testEnv(t, "")

	var img bytes.Buffer
	_ = png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 64, 48)))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "../dock.png")
	_, _ = part.Write(img.Bytes())
	_ = mw.WriteField("caption", "north dock")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/tiles/photos/photos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var resp PhotoUploadResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp.Filename != "dock.png" || resp.Size != int64(img.Len()) {
		t.Errorf("resp = %+v", resp)
	}

	w = do(t, router, http.MethodGet, "/photos/"+resp.ID+"/raw", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("raw = %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if !bytes.Equal(w.Body.Bytes(), img.Bytes()) {
		t.Error("raw bytes differ from upload")
	}

	w = do(t, router, http.MethodGet, "/photos?tileId=photos", nil)
	if !strings.Contains(w.Body.String(), resp.ID) {
		t.Errorf("list = %s", w.Body.String())
	}
	if w := do(t, router, http.MethodDelete, "/photos/"+resp.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete photo = %d", w.Code)
	}
}

func TestUploadPhoto_MissingFile(t *testing.T) {
	_, router := testEnv(t, "")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("caption", "nothing")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/tiles/photos/photos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file = %d, want 400", w.Code)
	}
}

func TestExportImport(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, `attachment; filename="dashboard-backup-`) {
		t.Errorf("Content-Disposition = %s", cd)
	}
	exported := w.Body.Bytes()

	do(t, router, http.MethodDelete, "/tiles/research", nil)

	req := httptest.NewRequest(http.MethodPost, "/import", bytes.NewReader(exported))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("import = %d, body = %s", rec.Code, rec.Body.String())
	}
	if w := do(t, router, http.MethodGet, "/tiles/research", nil); w.Code != http.StatusOK {
		t.Errorf("imported tile missing: %d", w.Code)
	}

	w = do(t, router, http.MethodPost, "/import", map[string]any{"photos": []any{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("import without tiles = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodGet, "/export.csv", nil)
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("csv content type = %s", w.Header().Get("Content-Type"))
	}
}

func TestBackupsEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/backups", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create backup = %d, body = %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	_ = json.NewDecoder(w.Body).Decode(&created)

	w = do(t, router, http.MethodGet, "/backups", nil)
	if !strings.Contains(w.Body.String(), created.ID) {
		t.Errorf("list = %s", w.Body.String())
	}
	if w := do(t, router, http.MethodPost, "/backups/"+created.ID+"/restore", nil); w.Code != http.StatusNoContent {
		t.Errorf("restore = %d", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/backups/backup-0/restore", nil); w.Code != http.StatusNotFound {
		t.Errorf("restore unknown = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/backups/"+created.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPatch, "/settings", map[string]any{"darkMode": true})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"darkMode":true`) {
		t.Fatalf("patch settings = %d %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, "/reset", nil); w.Code != http.StatusNoContent {
		t.Fatalf("reset = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/settings", nil)
	if strings.Contains(w.Body.String(), `"darkMode":true`) {
		t.Error("reset kept dark mode")
	}
}

func TestNotificationsEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodPost, "/notifications/nope/read", nil); w.Code != http.StatusNotFound {
		t.Errorf("mark unknown = %d, want 404", w.Code)
	}
	w := do(t, router, http.MethodGet, "/notifications", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"unread":0`) {
		t.Errorf("list = %d %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodDelete, "/notifications", nil); w.Code != http.StatusNoContent {
		t.Errorf("clear = %d", w.Code)
	}
}

func TestStatusViews(t *testing.T) {
	_, router := testEnv(t, "")

	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	do(t, router, http.MethodPatch, "/tiles/charters", map[string]any{"dueDate": yesterday})

	w := do(t, router, http.MethodGet, "/status/overdue", nil)
	var list TileListResponse
	_ = json.NewDecoder(w.Body).Decode(&list)
	if list.Total != 1 || list.Tiles[0].ID != "charters" {
		t.Errorf("overdue = %+v", list)
	}

	do(t, router, http.MethodPatch, "/tiles/vessels", map[string]any{"dependsOn": []string{"charters"}})
	w = do(t, router, http.MethodGet, "/tiles/charters/blocking", nil)
	_ = json.NewDecoder(w.Body).Decode(&list)
	if list.Total != 1 || list.Tiles[0].ID != "vessels" {
		t.Errorf("blocking = %+v", list)
	}
	if w := do(t, router, http.MethodGet, "/tiles/ghost/blocked-by", nil); w.Code != http.StatusNotFound {
		t.Errorf("blocked-by unknown = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodPost, "/tiles", map[string]any{"title": "Auth"}, "Authorization", "Bearer secret123")
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/tiles?access_token=secret123", nil); w.Code != http.StatusOK {
		t.Errorf("query token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/tiles", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/tiles", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodGet, "/tiles", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func blockingSSE() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "secret", blockingSSE())

	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "tok", blockingSSE())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
